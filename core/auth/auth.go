package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken 请求未携带 token
	ErrMissingToken = errors.New("missing session token")
	// ErrInvalidToken token 无效、过期或不属于该玩家
	ErrInvalidToken = errors.New("invalid session token")
)

// Claims 玩家会话 token 的声明：sub 为玩家 id，room 为房间号
type Claims struct {
	Room string `json:"room"`
	jwt.RegisteredClaims
}

// TokenIssuer 签发和校验玩家会话 token（HS256）。secret 为空时不启用
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer 创建 token 签发器
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock replaces the clock used for issuing and expiry checks.
func (t *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	t.now = now
	return t
}

// Enabled reports whether tokens are issued and required.
func (t *TokenIssuer) Enabled() bool {
	return t != nil && len(t.secret) > 0
}

// Issue 为房间内的玩家签发 token
func (t *TokenIssuer) Issue(roomCode, playerID string) (string, error) {
	now := t.now()
	claims := Claims{
		Room: roomCode,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   playerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify 校验 token 是否由本服务签发、未过期，且属于指定房间的指定玩家
func (t *TokenIssuer) Verify(token, roomCode, playerID string) error {
	if token == "" {
		return ErrMissingToken
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Room != roomCode || claims.Subject != playerID {
		return ErrInvalidToken
	}
	return nil
}

// BearerToken 从 Authorization 头中取出 token
func BearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
