package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"PopBattle/core/game"
	"PopBattle/logger"
)

// TokenSource 客户端凭证模式获取 access token，缓存到过期前 margin 为止
type TokenSource struct {
	clientID     string
	clientSecret string
	accountsURL  string
	margin       time.Duration
	httpClient   *http.Client
	now          func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewTokenSource 创建 token 获取器
func NewTokenSource(clientID, clientSecret, accountsURL string, margin time.Duration, httpClient *http.Client) *TokenSource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &TokenSource{
		clientID:     clientID,
		clientSecret: clientSecret,
		accountsURL:  strings.TrimRight(accountsURL, "/"),
		margin:       margin,
		httpClient:   httpClient,
		now:          time.Now,
	}
}

// Token 返回有效的 access token，必要时刷新。并发调用只会有一个去刷新
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Before(s.expiresAt) {
		return s.token, nil
	}
	if s.clientID == "" || s.clientSecret == "" {
		return "", game.Upstream("catalog credentials not configured", fmt.Errorf("SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET are required"))
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.accountsURL+"/api/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", game.Upstream("failed to build token request", err)
	}
	req.SetBasicAuth(s.clientID, s.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		logger.Error("[Token] 请求失败", logger.ErrorField(err))
		return "", game.Upstream("failed to reach catalog accounts service", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Error("[Token] 获取 token 失败", logger.Int("status", resp.StatusCode))
		return "", game.Upstream("failed to get catalog token", fmt.Errorf("token endpoint returned %d", resp.StatusCode))
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", game.Upstream("failed to decode catalog token", err)
	}
	if body.AccessToken == "" {
		return "", game.Upstream("failed to get catalog token", fmt.Errorf("empty access_token"))
	}

	s.token = body.AccessToken
	s.expiresAt = s.now().Add(time.Duration(body.ExpiresIn)*time.Second - s.margin)
	logger.Debug("[Token] 已刷新", logger.Duration("validFor", s.expiresAt.Sub(s.now())))
	return s.token, nil
}
