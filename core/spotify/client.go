package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"PopBattle/cache"
	"PopBattle/core/game"
	"PopBattle/logger"
	"PopBattle/metrics"
	"PopBattle/model"
)

const (
	defaultAPIURL = "https://api.spotify.com/v1"
	defaultMarket = "FR"
	tracksLimit   = 100
)

// TokenProvider supplies bearer tokens for catalog requests.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// PopularityStore 热度读穿缓存，*cache.PopularityCache 实现了它
type PopularityStore interface {
	BatchGet(ctx context.Context, ids []string) (map[string]int, error)
	BatchPut(ctx context.Context, tracks []cache.CachedTrack) error
}

// Client Spotify Web API 客户端
type Client struct {
	baseURL    string
	market     string
	httpClient *http.Client
	tokens     TokenProvider
	popularity PopularityStore
	metrics    *metrics.Manager
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL 设置 API 基础地址
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithMarket 设置市场（影响可播放性和热度）
func WithMarket(market string) Option {
	return func(c *Client) {
		if market != "" {
			c.market = market
		}
	}
}

// WithHTTPClient 设置 HTTP 客户端
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithPopularityCache 设置热度缓存，不设置时直接使用目录返回的热度
func WithPopularityCache(p PopularityStore) Option {
	return func(c *Client) { c.popularity = p }
}

// WithMetrics 设置指标收集器
func WithMetrics(m *metrics.Manager) Option {
	return func(c *Client) {
		if m != nil {
			c.metrics = m
		}
	}
}

// NewClient 创建客户端
func NewClient(tokens TokenProvider, opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultAPIURL,
		market:     defaultMarket,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		tokens:     tokens,
		metrics:    metrics.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type apiImage struct {
	URL string `json:"url"`
}

type apiPlaylist struct {
	Name   string     `json:"name"`
	Images []apiImage `json:"images"`
	Owner  struct {
		DisplayName string `json:"display_name"`
	} `json:"owner"`
	Tracks struct {
		Total int `json:"total"`
	} `json:"tracks"`
}

type apiTrack struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Popularity int    `json:"popularity"`
	PreviewURL string `json:"preview_url"`
	Artists    []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Images      []apiImage `json:"images"`
		ReleaseDate string     `json:"release_date"`
	} `json:"album"`
}

type apiTracksPage struct {
	Items []struct {
		Track *apiTrack `json:"track"`
	} `json:"items"`
}

// Playlist 获取歌单信息和前 100 首歌。热度优先取缓存中仍新鲜的值，其余写回缓存
func (c *Client) Playlist(ctx context.Context, playlistID string) (*model.PlaylistInfo, []model.Track, error) {
	if playlistID == "" {
		return nil, nil, game.ValidationFailed("playlist id is required")
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("[Playlist] 获取歌单", logger.String("playlistId", playlistID))

	var pl apiPlaylist
	if err := c.get(ctx, token, "/playlists/"+url.PathEscape(playlistID), nil, &pl); err != nil {
		return nil, nil, err
	}

	info := &model.PlaylistInfo{
		ID:          playlistID,
		Name:        orDefault(pl.Name, "Unknown playlist"),
		Owner:       orDefault(pl.Owner.DisplayName, "Unknown"),
		TotalTracks: pl.Tracks.Total,
	}
	if len(pl.Images) > 0 {
		info.Image = pl.Images[0].URL
	}

	query := url.Values{
		"limit":  {fmt.Sprintf("%d", tracksLimit)},
		"market": {c.market},
	}
	var page apiTracksPage
	if err := c.get(ctx, token, "/playlists/"+url.PathEscape(playlistID)+"/tracks", query, &page); err != nil {
		return nil, nil, err
	}

	raw := make([]*apiTrack, 0, len(page.Items))
	ids := make([]string, 0, len(page.Items))
	for _, item := range page.Items {
		// 本地文件或已下架的曲目没有 id
		if item.Track == nil || item.Track.ID == "" {
			continue
		}
		raw = append(raw, item.Track)
		ids = append(ids, item.Track.ID)
	}

	cached := c.cachedPopularity(ctx, ids)

	tracks := make([]model.Track, 0, len(raw))
	toCache := make([]cache.CachedTrack, 0, len(raw))
	for _, t := range raw {
		track := toTrack(t)
		if pop, ok := cached[t.ID]; ok {
			track.Popularity = pop
		} else {
			toCache = append(toCache, cache.CachedTrack{
				ID:         track.ID,
				Name:       track.Name,
				Artist:     track.Artist,
				Popularity: track.Popularity,
			})
		}
		tracks = append(tracks, track)
	}
	c.metrics.PopularityLookups(len(cached), len(toCache))

	if c.popularity != nil && len(toCache) > 0 {
		if err := c.popularity.BatchPut(ctx, toCache); err != nil {
			logger.Warn("[Playlist] 写入热度缓存失败", logger.String("playlistId", playlistID), logger.ErrorField(err))
		}
	}

	logger.Info("[Playlist] 成功获取歌单",
		logger.String("playlistId", playlistID),
		logger.String("name", info.Name),
		logger.Int("tracks", len(tracks)),
		logger.Int("cacheHits", len(cached)))
	return info, tracks, nil
}

// cachedPopularity 缓存不可用时当作全部未命中
func (c *Client) cachedPopularity(ctx context.Context, ids []string) map[string]int {
	if c.popularity == nil {
		return map[string]int{}
	}
	cached, err := c.popularity.BatchGet(ctx, ids)
	if err != nil {
		logger.Warn("[Playlist] 读取热度缓存失败", logger.ErrorField(err))
		return map[string]int{}
	}
	return cached
}

func (c *Client) get(ctx context.Context, token, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return game.Upstream("failed to build catalog request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("[Catalog] 请求失败", logger.String("path", path), logger.ErrorField(err))
		return game.Upstream("catalog unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return game.NotFound("playlist not found")
	case resp.StatusCode != http.StatusOK:
		logger.Error("[Catalog] 响应异常", logger.String("path", path), logger.Int("status", resp.StatusCode))
		return game.Upstream("catalog request failed", fmt.Errorf("GET %s returned %d", path, resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return game.Upstream("failed to decode catalog response", err)
	}
	return nil
}

func toTrack(t *apiTrack) model.Track {
	track := model.Track{
		ID:          t.ID,
		Name:        t.Name,
		Artist:      "Unknown",
		Featuring:   []string{},
		ReleaseDate: t.Album.ReleaseDate,
		Popularity:  t.Popularity,
		PreviewURL:  t.PreviewURL,
	}
	if len(t.Artists) > 0 {
		track.Artist = orDefault(t.Artists[0].Name, "Unknown")
		for _, a := range t.Artists[1:] {
			track.Featuring = append(track.Featuring, a.Name)
		}
	}
	if len(t.Album.Images) > 0 {
		track.Cover = t.Album.Images[0].URL
	}
	return track
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
