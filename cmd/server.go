package cmd

import (
	"PopBattle/logger"
	"PopBattle/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动 PopBattle 服务器",
	Long:  `启动 PopBattle 的 HTTP 服务器，提供房间、歌单和排行榜 API`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		defer logger.Sync()
		return server.Start(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
