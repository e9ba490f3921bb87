package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	trackPopularityKey   = "track:popularity:%s" // String: CachedTrack JSON
	defaultPopularityTTL = 7 * 24 * time.Hour
)

// CachedTrack 缓存的曲目热度
type CachedTrack struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Artist     string `json:"artist"`
	Popularity int    `json:"popularity"`
	CachedAt   int64  `json:"cachedAt"` // Unix 毫秒
}

// PopularityCache 曲目热度的读穿缓存，超过新鲜期的值视为不存在
type PopularityCache struct {
	client    *redis.Client
	freshness time.Duration
	now       func() time.Time
}

// NewPopularityCache 创建热度缓存，freshness <= 0 时使用 7 天
func NewPopularityCache(client *redis.Client, freshness time.Duration) *PopularityCache {
	if freshness <= 0 {
		freshness = defaultPopularityTTL
	}
	return &PopularityCache{client: client, freshness: freshness, now: time.Now}
}

// GetTrackPopularityKey 曲目热度的 Redis key
func GetTrackPopularityKey(trackID string) string {
	return fmt.Sprintf(trackPopularityKey, trackID)
}

// BatchGet 批量读取仍在新鲜期内的热度
func (c *PopularityCache) BatchGet(ctx context.Context, ids []string) (map[string]int, error) {
	result := make(map[string]int, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	if c.client == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}

	pipe := c.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, GetTrackPopularityKey(id))
	}
	// redis.Nil 只表示部分 key 不存在
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	now := c.now()
	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			continue
		}
		var cached CachedTrack
		if err := json.Unmarshal(data, &cached); err != nil {
			continue
		}
		if now.Sub(time.UnixMilli(cached.CachedAt)) > c.freshness {
			continue
		}
		result[ids[i]] = cached.Popularity
	}
	return result, nil
}

// BatchPut 批量写入热度，带过期时间
func (c *PopularityCache) BatchPut(ctx context.Context, tracks []CachedTrack) error {
	if len(tracks) == 0 {
		return nil
	}
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	now := c.now().UnixMilli()
	pipe := c.client.Pipeline()
	for _, t := range tracks {
		t.CachedAt = now
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("failed to marshal cached track: %w", err)
		}
		pipe.Set(ctx, GetTrackPopularityKey(t.ID), data, c.freshness)
	}
	_, err := pipe.Exec(ctx)
	return err
}
