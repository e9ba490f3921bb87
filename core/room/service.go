package room

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"PopBattle/cache"
	"PopBattle/core/game"
	"PopBattle/logger"
	"PopBattle/metrics"
	"PopBattle/model"

	"github.com/google/uuid"
)

const maxCodeAttempts = 10

// Store 房间存储，*cache.RoomStore 实现了它
type Store interface {
	Get(ctx context.Context, code string) (*model.Room, error)
	Create(ctx context.Context, room *model.Room) error
	Update(ctx context.Context, code string, fn cache.UpdateFunc) (cache.Mutation, error)
}

// HistoryRecorder receives every room that just reached results.
type HistoryRecorder interface {
	RecordRound(ctx context.Context, room *model.Room, finishedAt time.Time) error
}

// Service 房间服务：每个请求只做一次 读取 → 状态转换 → 写回
type Service struct {
	store         Store
	history       HistoryRecorder
	metrics       *metrics.Manager
	rng           game.Rand
	now           func() time.Time
	newID         func() string
	roundDuration time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithClock 注入时钟
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRand 注入随机源（选曲和房间号）。调用方无需自行加锁
func WithRand(rng game.Rand) Option {
	return func(s *Service) { s.rng = &lockedRand{r: rng} }
}

// WithIDGenerator 注入玩家 id 生成器
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// WithRoundDuration 设置每轮时长
func WithRoundDuration(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.roundDuration = d
		}
	}
}

// WithHistory 设置对局历史记录器
func WithHistory(h HistoryRecorder) Option {
	return func(s *Service) {
		if h != nil {
			s.history = h
		}
	}
}

// WithMetrics 设置指标收集器
func WithMetrics(m *metrics.Manager) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// NewService 创建房间服务
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:         store,
		history:       nopHistory{},
		metrics:       metrics.Default(),
		rng:           &lockedRand{r: rand.New(rand.NewSource(time.Now().UnixNano()))},
		now:           time.Now,
		newID:         uuid.NewString,
		roundDuration: game.DefaultRoundDuration,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) env() game.Env {
	return game.Env{
		Now:           s.now(),
		Rand:          s.rng,
		NewID:         s.newID,
		RoundDuration: s.roundDuration,
	}
}

// Create 创建房间，房主作为第一个玩家加入
func (s *Service) Create(ctx context.Context, hostName string, playlist model.PlaylistInfo, tracks []model.Track) (*model.Room, error) {
	room, err := game.NewRoom("", hostName, playlist, tracks, s.env())
	if err != nil {
		s.metrics.RoomAction("create", game.KindName(err))
		logger.Warn("创建房间被拒绝",
			logger.String("playlistId", playlist.ID),
			logger.Int("poolSize", len(tracks)),
			logger.ErrorField(err))
		return nil, err
	}

	for i := 0; i < maxCodeAttempts; i++ {
		room.ID = NewCode(s.rng)

		start := time.Now()
		err = s.store.Create(ctx, room)
		s.metrics.ObserveStore("create", start)
		if errors.Is(err, cache.ErrRoomExists) {
			logger.Debug("房间号冲突，重新生成", logger.String("roomCode", room.ID))
			continue
		}
		if err != nil {
			s.metrics.RoomAction("create", "upstream_failure")
			logger.Error("写入房间失败", logger.String("roomCode", room.ID), logger.ErrorField(err))
			return nil, game.Upstream("room store unavailable", err)
		}

		s.metrics.RoomAction("create", "ok")
		s.metrics.RoomCreated()
		logger.Info("房间创建成功",
			logger.String("roomCode", room.ID),
			logger.String("hostId", room.HostID),
			logger.String("playlistId", room.PlaylistID),
			logger.Int("poolSize", len(room.AllTracks)))
		return room, nil
	}

	s.metrics.RoomAction("create", "upstream_failure")
	logger.Error("无法生成唯一房间号", logger.Int("attempts", maxCodeAttempts))
	return nil, game.Upstream("could not allocate a room code", errors.New("room code space exhausted"))
}

// Get 读取房间
func (s *Service) Get(ctx context.Context, code string) (*model.Room, error) {
	code = NormalizeCode(code)

	start := time.Now()
	room, err := s.store.Get(ctx, code)
	s.metrics.ObserveStore("get", start)
	if err != nil {
		err = s.translate(err)
		if !errors.Is(err, game.ErrNotFound) {
			logger.Error("读取房间失败", logger.String("roomCode", code), logger.ErrorField(err))
		}
		return nil, err
	}
	return room, nil
}

// Apply 对房间执行一个操作并写回。房间被乐观锁拒绝时会基于最新状态重算，
// 重试耗尽后返回 Conflict
func (s *Service) Apply(ctx context.Context, code string, action game.Action, actorID string, p game.Payload) (game.Result, error) {
	code = NormalizeCode(code)

	var res game.Result
	start := time.Now()
	_, err := s.store.Update(ctx, code, func(current *model.Room) (cache.Mutation, error) {
		r, err := game.Apply(current, action, actorID, p, s.env())
		if err != nil {
			return cache.Mutation{}, err
		}
		res = r
		return cache.Mutation{Room: r.Room, Delete: r.Deleted, Skip: !r.Changed}, nil
	})
	s.metrics.ObserveStore("update", start)

	if err != nil {
		err = s.translate(err)
		s.metrics.RoomAction(string(action), game.KindName(err))
		if errors.Is(err, game.ErrUpstreamFailure) {
			logger.Error("房间操作失败",
				logger.String("roomCode", code),
				logger.String("action", string(action)),
				logger.String("playerId", actorID),
				logger.ErrorField(err))
		} else {
			logger.Warn("房间操作被拒绝",
				logger.String("roomCode", code),
				logger.String("action", string(action)),
				logger.String("playerId", actorID),
				logger.String("reason", game.Message(err)))
		}
		return game.Result{}, err
	}

	s.metrics.RoomAction(string(action), "ok")
	logger.Info("房间操作成功",
		logger.String("roomCode", code),
		logger.String("action", string(action)),
		logger.String("playerId", actorID),
		logger.String("status", string(res.Room.Status)),
		logger.Bool("changed", res.Changed))

	if res.Deleted {
		s.metrics.RoomDeleted()
		logger.Info("最后一名玩家离开，房间已删除", logger.String("roomCode", code))
	}
	if res.Finished {
		s.recordRound(ctx, res.Room)
	}
	return res, nil
}

// recordRound 记录失败只打日志，不影响本次操作
func (s *Service) recordRound(ctx context.Context, room *model.Room) {
	if err := s.history.RecordRound(context.WithoutCancel(ctx), room, s.now()); err != nil {
		logger.Warn("记录对局历史失败", logger.String("roomCode", room.ID), logger.ErrorField(err))
	}
}

// translate 把存储层错误映射为错误类型
func (s *Service) translate(err error) error {
	var gameErr *game.Error
	switch {
	case errors.As(err, &gameErr):
		return err
	case errors.Is(err, cache.ErrRoomNotFound):
		return game.NotFound("room not found")
	case errors.Is(err, cache.ErrVersionConflict):
		s.metrics.StoreConflict()
		return game.Conflict("room was modified concurrently, retry")
	default:
		return game.Upstream("room store unavailable", err)
	}
}

type nopHistory struct{}

func (nopHistory) RecordRound(context.Context, *model.Room, time.Time) error { return nil }

// lockedRand makes a game.Rand safe for concurrent requests.
type lockedRand struct {
	mu sync.Mutex
	r  game.Rand
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

func (l *lockedRand) Shuffle(n int, swap func(i, j int)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.r.Shuffle(n, swap)
}
