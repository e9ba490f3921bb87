package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"PopBattle/config"
	"PopBattle/core/spotify"
	"PopBattle/model"

	"github.com/spf13/cobra"
)

var playlistRef string

var spotifyCmd = &cobra.Command{
	Use:   "spotify",
	Short: "Spotify 歌单查询工具",
	Long:  `获取一个歌单的曲目，按热度从高到低打印，用来检查歌单能否开一局。`,
	Run: func(cmd *cobra.Command, args []string) {
		id := spotify.ParsePlaylistID(playlistRef)
		if id == "" {
			fmt.Println("请用 -p 指定歌单链接或 id")
			os.Exit(1)
		}

		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("加载配置失败: %v", err)
		}

		tokens := spotify.NewTokenSource(cfg.SpotifyClientID, cfg.SpotifyClientSecret,
			cfg.SpotifyAccountsURL, cfg.TokenSafetyMargin(), nil)
		client := spotify.NewClient(tokens,
			spotify.WithBaseURL(cfg.SpotifyAPIURL),
			spotify.WithMarket(cfg.SpotifyMarket))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		fmt.Printf("正在获取歌单: %s\n", id)
		info, tracks, err := client.Playlist(ctx, id)
		if err != nil {
			log.Fatalf("获取歌单失败: %v", err)
		}

		fmt.Printf("\n%s - %s (%d 首)\n\n", info.Name, info.Owner, info.TotalTracks)
		sorted := append([]model.Track(nil), tracks...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Popularity > sorted[j].Popularity })

		distinct := map[int]bool{}
		for i, t := range sorted {
			distinct[t.Popularity] = true
			artists := t.Artist
			if len(t.Featuring) > 0 {
				artists += " feat. " + strings.Join(t.Featuring, ", ")
			}
			fmt.Printf("%3d. [%3d] %s - %s\n", i+1, t.Popularity, t.Name, artists)
		}
		fmt.Printf("\n共 %d 首，%d 个不同热度值\n", len(tracks), len(distinct))
	},
}

func init() {
	spotifyCmd.Flags().StringVarP(&playlistRef, "playlist", "p", "", "歌单链接、spotify:playlist: URI 或 id")
	rootCmd.AddCommand(spotifyCmd)
}
