package server

import (
	"net/http"

	"PopBattle/core/auth"
	"PopBattle/core/game"
	"PopBattle/core/room"
	"PopBattle/model"

	"github.com/gorilla/mux"
)

// RoomHandler 房间 HTTP 处理器
type RoomHandler struct {
	rooms  RoomService
	tokens *auth.TokenIssuer
}

// NewRoomHandler 创建房间处理器。tokens 为 nil 或未配置密钥时不校验玩家身份
func NewRoomHandler(rooms RoomService, tokens *auth.TokenIssuer) *RoomHandler {
	return &RoomHandler{rooms: rooms, tokens: tokens}
}

// CreateRoomRequest 创建房间请求
type CreateRoomRequest struct {
	HostName      string        `json:"hostName"`
	PlaylistID    string        `json:"playlistId"`
	PlaylistName  string        `json:"playlistName"`
	PlaylistImage string        `json:"playlistImage"`
	Tracks        []model.Track `json:"tracks"`
}

// CreateRoomResponse 创建房间响应
type CreateRoomResponse struct {
	RoomCode string      `json:"roomCode"`
	HostID   string      `json:"hostId"`
	Room     *model.Room `json:"room"`
	Token    string      `json:"token,omitempty"`
}

// ApplyRequest 房间操作请求
type ApplyRequest struct {
	Action     string   `json:"action"`
	PlayerID   string   `json:"playerId"`
	PlayerName string   `json:"playerName"`
	Order      []string `json:"order"`
	Token      string   `json:"token"` // sendBeacon 无法设置请求头
}

// RoomResponse 房间操作响应，join 时带上新玩家的 id 和 token
type RoomResponse struct {
	PlayerID string      `json:"playerId,omitempty"`
	Room     *model.Room `json:"room"`
	Token    string      `json:"token,omitempty"`
}

// CreateRoomHandler POST /api/rooms
func (h *RoomHandler) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	playlist := model.PlaylistInfo{ID: req.PlaylistID, Name: req.PlaylistName, Image: req.PlaylistImage}
	created, err := h.rooms.Create(r.Context(), req.HostName, playlist, req.Tracks)
	if err != nil {
		writeError(w, err)
		return
	}

	token, err := h.issue(created.ID, created.HostID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, CreateRoomResponse{
		RoomCode: created.ID,
		HostID:   created.HostID,
		Room:     created,
		Token:    token,
	})
}

// GetRoomHandler GET /api/rooms/{code}
func (h *RoomHandler) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	rm, err := h.rooms.Get(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RoomResponse{Room: rm})
}

// ApplyHandler PUT /api/rooms/{code}，也接受 POST（页面关闭时 sendBeacon 发送的 leave）
func (h *RoomHandler) ApplyHandler(w http.ResponseWriter, r *http.Request) {
	code := room.NormalizeCode(mux.Vars(r)["code"])

	var req ApplyRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	action := game.Action(req.Action)

	if err := h.authorize(r, code, action, req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.rooms.Apply(r.Context(), code, action, req.PlayerID, game.Payload{
		PlayerName: req.PlayerName,
		Order:      req.Order,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	resp := RoomResponse{Room: res.Room}
	if action == game.ActionJoin {
		resp.PlayerID = res.PlayerID
		if resp.Token, err = h.issue(code, res.PlayerID); err != nil {
			writeError(w, err)
			return
		}
	}
	if res.Deleted {
		resp.Room = nil
	}
	writeJSON(w, http.StatusOK, resp)
}

// authorize 启用令牌后，除 join 和 force_end 外的操作都要求令牌属于 playerId
func (h *RoomHandler) authorize(r *http.Request, code string, action game.Action, req ApplyRequest) error {
	if !h.tokens.Enabled() || action == game.ActionJoin || action == game.ActionForceEnd {
		return nil
	}
	token := auth.BearerToken(r.Header.Get("Authorization"))
	if token == "" {
		token = req.Token
	}
	if err := h.tokens.Verify(token, code, req.PlayerID); err != nil {
		return game.Forbidden("invalid or missing player token")
	}
	return nil
}

func (h *RoomHandler) issue(code, playerID string) (string, error) {
	if !h.tokens.Enabled() {
		return "", nil
	}
	token, err := h.tokens.Issue(code, playerID)
	if err != nil {
		return "", err
	}
	return token, nil
}
