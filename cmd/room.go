package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"PopBattle/cache"
	"PopBattle/config"
	"PopBattle/core/room"
	"PopBattle/db"

	"github.com/spf13/cobra"
)

var roomCode string

var roomCmd = &cobra.Command{
	Use:   "room",
	Short: "查看房间状态",
	Long:  `从 Redis 读取一个房间，打印状态、玩家、分数和剩余存活时间。`,
	Run: func(cmd *cobra.Command, args []string) {
		if roomCode == "" {
			fmt.Println("请用 -c 指定房间号")
			os.Exit(1)
		}

		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("加载配置失败: %v", err)
		}
		if err := db.ConnectRedis(cfg); err != nil {
			log.Fatalf("无法连接到Redis: %v", err)
		}
		defer db.CloseRedis()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		code := room.NormalizeCode(roomCode)
		store := cache.NewRoomStore(db.RedisClient, cache.WithRoomTTL(cfg.RoomTTL()))
		r, err := store.Get(ctx, code)
		if err != nil {
			log.Fatalf("读取房间 %s 失败: %v", code, err)
		}
		ttl, err := store.Remaining(ctx, code)
		if err != nil {
			log.Fatalf("读取房间过期时间失败: %v", err)
		}

		fmt.Printf("房间 %s  状态: %s  版本: %d  剩余: %s\n", r.ID, r.Status, r.Version, ttl.Round(time.Second))
		fmt.Printf("歌单: %s (%s)  曲库: %d 首\n", r.PlaylistName, r.PlaylistID, len(r.AllTracks))
		if r.EndsAt != nil {
			fmt.Printf("本轮截止: %s\n", time.UnixMilli(*r.EndsAt).Format(time.RFC3339))
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "\nID\tNAME\tHOST\tVALIDATED\tSCORE")
		for _, p := range r.Players {
			host := ""
			if p.ID == r.HostID {
				host = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%d\n", p.ID, p.Name, host, p.Validated, p.Score)
		}
		w.Flush()
	},
}

func init() {
	roomCmd.Flags().StringVarP(&roomCode, "code", "c", "", "房间号")
	rootCmd.AddCommand(roomCmd)
}
