package model

import "time"

// RoomStatus 房间状态
type RoomStatus string

const (
	RoomStatusWaiting RoomStatus = "waiting"
	RoomStatusPlaying RoomStatus = "playing"
	RoomStatusResults RoomStatus = "results"
)

// Player 房间内的玩家
type Player struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Order     []string `json:"order"`     // 当前提交的排序（track id）
	Score     int      `json:"score"`     // 位置正确的数量 0..10
	Validated bool     `json:"validated"` // 本轮是否已锁定
	JoinedAt  int64    `json:"joinedAt"`  // Unix 毫秒时间戳，房主继承按此排序
}

// Room 对战房间，整体序列化后存储在 Redis 的 room:<code> 中
type Room struct {
	ID            string     `json:"id"`
	HostID        string     `json:"hostId"`
	PlaylistID    string     `json:"playlistId"`
	PlaylistName  string     `json:"playlistName"`
	PlaylistImage string     `json:"playlistImage"`
	AllTracks     []Track    `json:"allTracks"`
	Tracks        []Track    `json:"tracks"` // 本轮的 10 首
	Players       []Player   `json:"players"`
	Status        RoomStatus `json:"status"`
	StartedAt     *int64     `json:"startedAt"` // Unix 毫秒
	EndsAt        *int64     `json:"endsAt"`    // Unix 毫秒
	CorrectOrder  []string   `json:"correctOrder"`
	Version       int64      `json:"version"` // 乐观锁版本号，每次写入递增
}

// Player returns the player with the given id, or nil.
func (r *Room) Player(id string) *Player {
	for i := range r.Players {
		if r.Players[i].ID == id {
			return &r.Players[i]
		}
	}
	return nil
}

// Clone 深拷贝，状态机在副本上修改，失败时原房间保持不变
func (r *Room) Clone() *Room {
	c := *r
	c.AllTracks = append([]Track(nil), r.AllTracks...)
	c.Tracks = append([]Track(nil), r.Tracks...)
	c.CorrectOrder = append([]string(nil), r.CorrectOrder...)
	c.Players = make([]Player, len(r.Players))
	for i, p := range r.Players {
		p.Order = append([]string(nil), p.Order...)
		c.Players[i] = p
	}
	if r.StartedAt != nil {
		v := *r.StartedAt
		c.StartedAt = &v
	}
	if r.EndsAt != nil {
		v := *r.EndsAt
		c.EndsAt = &v
	}
	return &c
}

// RoundRecord 一轮结束后每个玩家的成绩（MySQL 持久化）
type RoundRecord struct {
	ID         int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	RoomCode   string    `json:"roomCode" gorm:"size:8;index;not null"`
	PlaylistID string    `json:"playlistId" gorm:"size:64;index;not null"`
	PlayerName string    `json:"playerName" gorm:"size:100;not null"`
	Score      int       `json:"score" gorm:"index"`
	FinishedAt time.Time `json:"finishedAt" gorm:"index"`
}

// TableName 指定表名
func (RoundRecord) TableName() string {
	return "round_records"
}
