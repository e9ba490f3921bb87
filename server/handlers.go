package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"PopBattle/core/game"
	"PopBattle/logger"
	"PopBattle/model"
)

const maxBodyBytes = 2 << 20 // 100 首歌的曲库大约几十 KB

// RoomService 房间服务接口，*room.Service 实现了它
type RoomService interface {
	Create(ctx context.Context, hostName string, playlist model.PlaylistInfo, tracks []model.Track) (*model.Room, error)
	Get(ctx context.Context, code string) (*model.Room, error)
	Apply(ctx context.Context, code string, action game.Action, actorID string, p game.Payload) (game.Result, error)
}

// Catalog 歌单查询，*spotify.Client 实现了它
type Catalog interface {
	Playlist(ctx context.Context, playlistID string) (*model.PlaylistInfo, []model.Track, error)
}

// Leaderboard 对局历史查询，repository.RoundRepository 实现了它
type Leaderboard interface {
	TopScores(ctx context.Context, playlistID string, limit int) ([]model.RoundRecord, error)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("写入响应失败", logger.ErrorField(err))
	}
}

// statusFor 错误类型到 HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, game.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, game.ErrValidationFailed):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrUpstreamFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError 只把面向调用方的信息写进响应，底层原因留在日志里
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := game.Message(err)
	if status == http.StatusInternalServerError {
		logger.Error("未处理的错误", logger.ErrorField(err))
		msg = "internal server error"
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return game.ValidationFailed("invalid request body")
	}
	return nil
}
