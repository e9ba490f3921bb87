package server

import (
	"net/http"
	"strconv"

	"PopBattle/core/game"
	"PopBattle/core/spotify"
	"PopBattle/model"

	"github.com/gorilla/mux"
)

// PlaylistHandler 歌单和排行榜处理器
type PlaylistHandler struct {
	catalog     Catalog
	leaderboard Leaderboard
}

// NewPlaylistHandler 创建歌单处理器
func NewPlaylistHandler(catalog Catalog, leaderboard Leaderboard) *PlaylistHandler {
	return &PlaylistHandler{catalog: catalog, leaderboard: leaderboard}
}

// PlaylistResponse 歌单响应
type PlaylistResponse struct {
	Playlist *model.PlaylistInfo `json:"playlist"`
	Tracks   []model.Track       `json:"tracks"`
}

// LeaderboardResponse 排行榜响应
type LeaderboardResponse struct {
	PlaylistID string              `json:"playlistId"`
	Scores     []model.RoundRecord `json:"scores"`
}

// GetPlaylistHandler GET /api/spotify/playlist/{id}，id 也可以是歌单链接
func (h *PlaylistHandler) GetPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	id := spotify.ParsePlaylistID(mux.Vars(r)["id"])
	if id == "" {
		writeError(w, game.ValidationFailed("invalid playlist id"))
		return
	}

	info, tracks, err := h.catalog.Playlist(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PlaylistResponse{Playlist: info, Tracks: tracks})
}

// LeaderboardHandler GET /api/playlists/{id}/leaderboard?limit=n
func (h *PlaylistHandler) LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, game.ValidationFailed("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	scores, err := h.leaderboard.TopScores(r.Context(), id, limit)
	if err != nil {
		writeError(w, game.Upstream("history unavailable", err))
		return
	}
	writeJSON(w, http.StatusOK, LeaderboardResponse{PlaylistID: id, Scores: scores})
}
