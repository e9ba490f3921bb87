package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"PopBattle/model"

	"github.com/go-redis/redis/v8"
)

const (
	roomKey           = "room:%s" // String: 整个房间的 JSON
	defaultRoomTTL    = time.Hour
	defaultMaxRetries = 5
)

var (
	// ErrRoomNotFound 房间不存在或已过期
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomExists 创建时房间号已被占用
	ErrRoomExists = errors.New("room already exists")
	// ErrVersionConflict 多次重试后仍有并发写入
	ErrVersionConflict = errors.New("room was modified concurrently")
)

// RoomKey 房间的 Redis key
func RoomKey(code string) string {
	return fmt.Sprintf(roomKey, code)
}

// Mutation is what an UpdateFunc wants done with the room it was given.
type Mutation struct {
	Room   *model.Room
	Delete bool // 删除房间（最后一名玩家离开）
	Skip   bool // 不写回，直接返回 Room
}

// UpdateFunc computes the mutation for the current stored room. It may run more than once
// when another writer gets in first, so it must not have side effects.
type UpdateFunc func(current *model.Room) (Mutation, error)

// RoomStore 房间存储：每个房间一个 key，每次写入刷新过期时间
type RoomStore struct {
	client     *redis.Client
	ttl        time.Duration
	maxRetries int
}

// RoomStoreOption configures a RoomStore.
type RoomStoreOption func(*RoomStore)

// WithRoomTTL 设置房间过期时间
func WithRoomTTL(ttl time.Duration) RoomStoreOption {
	return func(s *RoomStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithMaxRetries 设置乐观锁冲突时的最大尝试次数
func WithMaxRetries(n int) RoomStoreOption {
	return func(s *RoomStore) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// NewRoomStore 创建房间存储
func NewRoomStore(client *redis.Client, opts ...RoomStoreOption) *RoomStore {
	s := &RoomStore{client: client, ttl: defaultRoomTTL, maxRetries: defaultMaxRetries}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the configured room expiration.
func (s *RoomStore) TTL() time.Duration { return s.ttl }

// Get 读取房间
func (s *RoomStore) Get(ctx context.Context, code string) (*model.Room, error) {
	if s.client == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}

	data, err := s.client.Get(ctx, RoomKey(code)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return decodeRoom(data)
}

// Create 写入新房间，房间号已存在时返回 ErrRoomExists
func (s *RoomStore) Create(ctx context.Context, room *model.Room) error {
	if s.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	room.Version = 1
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("failed to marshal room: %w", err)
	}

	ok, err := s.client.SetNX(ctx, RoomKey(room.ID), data, s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrRoomExists
	}
	return nil
}

// Delete 删除房间
func (s *RoomStore) Delete(ctx context.Context, code string) error {
	if s.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	return s.client.Del(ctx, RoomKey(code)).Err()
}

// Remaining 房间剩余的存活时间，不存在时返回 ErrRoomNotFound
func (s *RoomStore) Remaining(ctx context.Context, code string) (time.Duration, error) {
	d, err := s.client.TTL(ctx, RoomKey(code)).Result()
	if err != nil {
		return 0, err
	}
	if d == -2 {
		return 0, ErrRoomNotFound
	}
	return d, nil
}

// Update 读-改-写一个房间。用 WATCH/MULTI 做乐观锁：如果读之后 key 被别人改过，
// 事务放弃并基于最新状态重新执行 fn，最多 maxRetries 次。
func (s *RoomStore) Update(ctx context.Context, code string, fn UpdateFunc) (Mutation, error) {
	if s.client == nil {
		return Mutation{}, fmt.Errorf("Redis client not initialized")
	}

	key := RoomKey(code)
	var result Mutation

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if err == redis.Nil {
				return ErrRoomNotFound
			}
			return err
		}
		current, err := decodeRoom(data)
		if err != nil {
			return err
		}

		m, err := fn(current)
		if err != nil {
			return err
		}
		if m.Skip {
			result = m
			return nil
		}

		var payload []byte
		if !m.Delete {
			m.Room.Version = current.Version + 1
			if payload, err = json.Marshal(m.Room); err != nil {
				return fmt.Errorf("failed to marshal room: %w", err)
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if m.Delete {
				pipe.Del(ctx, key)
			} else {
				pipe.Set(ctx, key, payload, s.ttl)
			}
			return nil
		})
		if err != nil {
			return err
		}
		result = m
		return nil
	}

	for i := 0; i < s.maxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return Mutation{}, err
	}
	return Mutation{}, ErrVersionConflict
}

func decodeRoom(data []byte) (*model.Room, error) {
	var room model.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}
	return &room, nil
}
