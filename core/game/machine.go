package game

import (
	"strings"
	"time"

	"PopBattle/model"
)

// Action 房间操作类型
type Action string

const (
	ActionJoin        Action = "join"
	ActionLeave       Action = "leave"
	ActionStart       Action = "start"
	ActionUpdateOrder Action = "update_order"
	ActionValidate    Action = "validate"
	ActionForceEnd    Action = "force_end"
	ActionRestart     Action = "restart"
)

// DefaultRoundDuration is the time limit of one round.
const DefaultRoundDuration = 60 * time.Second

// Payload 各个操作附带的参数
type Payload struct {
	PlayerName string   // join
	Order      []string // update_order
}

// Env is everything a transition needs from the outside world.
type Env struct {
	Now           time.Time
	Rand          Rand
	NewID         func() string
	RoundDuration time.Duration
}

func (e Env) roundDuration() time.Duration {
	if e.RoundDuration <= 0 {
		return DefaultRoundDuration
	}
	return e.RoundDuration
}

// Result 一次状态转换的结果
type Result struct {
	Room     *model.Room
	PlayerID string // join 时新玩家的 id
	Deleted  bool   // 最后一名玩家离开，房间应被删除
	Changed  bool   // false 表示无需写回（例如重复的 force_end）
	Finished bool   // 本次转换使房间进入 results
}

// NewRoom 创建房间：选出第一轮曲目，房主作为第一个玩家加入
func NewRoom(code, hostName string, playlist model.PlaylistInfo, pool []model.Track, env Env) (*model.Room, error) {
	hostName = strings.TrimSpace(hostName)
	if hostName == "" {
		return nil, ValidationFailed("host name is required")
	}
	if playlist.ID == "" {
		return nil, ValidationFailed("playlist id is required")
	}

	tracks, correct, err := SelectRound(pool, env.Rand)
	if err != nil {
		return nil, err
	}

	hostID := env.NewID()
	return &model.Room{
		ID:            code,
		HostID:        hostID,
		PlaylistID:    playlist.ID,
		PlaylistName:  playlist.Name,
		PlaylistImage: playlist.Image,
		AllTracks:     append([]model.Track(nil), pool...),
		Tracks:        tracks,
		Players: []model.Player{{
			ID:       hostID,
			Name:     hostName,
			Order:    model.TrackIDs(tracks),
			JoinedAt: env.Now.UnixMilli(),
		}},
		Status:       model.RoomStatusWaiting,
		CorrectOrder: correct,
	}, nil
}

// Apply computes the next room for action. The input room is never modified; on error
// the caller keeps its current state.
func Apply(room *model.Room, action Action, actorID string, p Payload, env Env) (Result, error) {
	next := room.Clone()
	res := Result{Room: next, Changed: true}

	var err error
	switch action {
	case ActionJoin:
		res.PlayerID, err = join(next, p.PlayerName, env)
	case ActionLeave:
		res.Deleted, err = leave(next, actorID)
	case ActionStart:
		err = start(next, actorID, env)
	case ActionUpdateOrder:
		err = updateOrder(next, actorID, p.Order)
	case ActionValidate:
		err = validate(next, actorID)
	case ActionForceEnd:
		res.Changed = forceEnd(next)
	case ActionRestart:
		err = restart(next, actorID, env)
	default:
		err = ValidationFailed("unknown action")
	}
	if err != nil {
		return Result{}, err
	}

	res.Finished = room.Status != model.RoomStatusResults && next.Status == model.RoomStatusResults
	return res, nil
}

func join(r *model.Room, name string, env Env) (string, error) {
	if r.Status != model.RoomStatusWaiting {
		return "", InvalidState("game already started")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ValidationFailed("player name is required")
	}
	for _, p := range r.Players {
		if p.Name == name {
			return "", Conflict("name already taken")
		}
	}

	id := env.NewID()
	r.Players = append(r.Players, model.Player{
		ID:       id,
		Name:     name,
		Order:    model.TrackIDs(r.Tracks),
		JoinedAt: env.Now.UnixMilli(),
	})
	return id, nil
}

// leave 移除玩家；房主离开时按加入时间把房主转给资历最老的玩家
func leave(r *model.Room, actorID string) (bool, error) {
	idx := -1
	for i, p := range r.Players {
		if p.ID == actorID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, NotFound("player not found")
	}

	if r.HostID == actorID {
		successor := -1
		for i, p := range r.Players {
			if i == idx {
				continue
			}
			if successor < 0 || p.JoinedAt < r.Players[successor].JoinedAt {
				successor = i
			}
		}
		if successor >= 0 {
			r.HostID = r.Players[successor].ID
		}
	}

	r.Players = append(r.Players[:idx], r.Players[idx+1:]...)
	if len(r.Players) == 0 {
		return true, nil
	}

	if r.Status == model.RoomStatusPlaying && allValidated(r) {
		r.Status = model.RoomStatusResults
	}
	return false, nil
}

func start(r *model.Room, actorID string, env Env) error {
	if r.HostID != actorID {
		return Forbidden("only host can start")
	}
	if r.Status != model.RoomStatusWaiting {
		return InvalidState("game already started")
	}

	startedAt := env.Now.UnixMilli()
	endsAt := env.Now.Add(env.roundDuration()).UnixMilli()
	r.Status = model.RoomStatusPlaying
	r.StartedAt = &startedAt
	r.EndsAt = &endsAt
	return nil
}

func updateOrder(r *model.Room, actorID string, order []string) error {
	if r.Status != model.RoomStatusPlaying {
		return InvalidState("game not in progress")
	}
	p := r.Player(actorID)
	if p == nil {
		return NotFound("player not found")
	}
	if p.Validated {
		return Conflict("already validated")
	}
	if !isPermutation(order, r.CorrectOrder) {
		return ValidationFailed("order must contain each round track exactly once")
	}

	p.Order = append([]string(nil), order...)
	return nil
}

func validate(r *model.Room, actorID string) error {
	if r.Status != model.RoomStatusPlaying {
		return InvalidState("game not in progress")
	}
	p := r.Player(actorID)
	if p == nil {
		return NotFound("player not found")
	}
	if p.Validated {
		return Conflict("already validated")
	}

	p.Score = Score(p.Order, r.CorrectOrder)
	p.Validated = true
	if allValidated(r) {
		r.Status = model.RoomStatusResults
	}
	return nil
}

// forceEnd 计时结束：给未提交的玩家按当前排序计分。非 playing 状态下为空操作
func forceEnd(r *model.Room) bool {
	if r.Status != model.RoomStatusPlaying {
		return false
	}
	for i := range r.Players {
		p := &r.Players[i]
		if !p.Validated {
			p.Score = Score(p.Order, r.CorrectOrder)
			p.Validated = true
		}
	}
	r.Status = model.RoomStatusResults
	return true
}

func restart(r *model.Room, actorID string, env Env) error {
	if r.HostID != actorID {
		return Forbidden("only host can restart")
	}

	tracks, correct, err := SelectRound(r.AllTracks, env.Rand)
	if err != nil {
		return err
	}

	r.Tracks = tracks
	r.CorrectOrder = correct
	r.Status = model.RoomStatusWaiting
	r.StartedAt = nil
	r.EndsAt = nil
	initial := model.TrackIDs(tracks)
	for i := range r.Players {
		r.Players[i].Order = append([]string(nil), initial...)
		r.Players[i].Score = 0
		r.Players[i].Validated = false
	}
	return nil
}

func allValidated(r *model.Room) bool {
	for _, p := range r.Players {
		if !p.Validated {
			return false
		}
	}
	return true
}

func isPermutation(order, ids []string) bool {
	if len(order) != len(ids) {
		return false
	}
	want := make(map[string]int, len(ids))
	for _, id := range ids {
		want[id]++
	}
	for _, id := range order {
		if want[id] == 0 {
			return false
		}
		want[id]--
	}
	return true
}
