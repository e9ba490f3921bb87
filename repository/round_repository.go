package repository

import (
	"context"
	"time"

	"PopBattle/model"

	"gorm.io/gorm"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

// RoundRepository 对局历史数据访问接口
type RoundRepository interface {
	// RecordRound 记录一轮结束时每个玩家的成绩
	RecordRound(ctx context.Context, room *model.Room, finishedAt time.Time) error
	// TopScores 某个歌单的最高成绩
	TopScores(ctx context.Context, playlistID string, limit int) ([]model.RoundRecord, error)
}

// gormRoundRepository GORM 实现
type gormRoundRepository struct {
	db *gorm.DB
}

// NewGormRoundRepository 创建 GORM 对局历史仓库
func NewGormRoundRepository(db *gorm.DB) RoundRepository {
	return &gormRoundRepository{db: db}
}

// RecordRound 一个玩家一行，批量插入
func (r *gormRoundRepository) RecordRound(ctx context.Context, room *model.Room, finishedAt time.Time) error {
	if len(room.Players) == 0 {
		return nil
	}

	records := make([]model.RoundRecord, 0, len(room.Players))
	for _, p := range room.Players {
		records = append(records, model.RoundRecord{
			RoomCode:   room.ID,
			PlaylistID: room.PlaylistID,
			PlayerName: p.Name,
			Score:      p.Score,
			FinishedAt: finishedAt,
		})
	}
	return r.db.WithContext(ctx).Create(&records).Error
}

// TopScores 按分数降序、完成时间升序
func (r *gormRoundRepository) TopScores(ctx context.Context, playlistID string, limit int) ([]model.RoundRecord, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}

	var records []model.RoundRecord
	err := r.db.WithContext(ctx).
		Where("playlist_id = ?", playlistID).
		Order("score DESC").
		Order("finished_at ASC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// NopRoundRepository 未启用历史记录时使用
type NopRoundRepository struct{}

// RecordRound does nothing.
func (NopRoundRepository) RecordRound(context.Context, *model.Room, time.Time) error { return nil }

// TopScores always returns an empty list.
func (NopRoundRepository) TopScores(context.Context, string, int) ([]model.RoundRecord, error) {
	return []model.RoundRecord{}, nil
}
