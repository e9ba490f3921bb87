package config

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix 带前缀的环境变量优先级最高，例如 POPBATTLE_REDIS_HOST
const EnvPrefix = "POPBATTLE_"

// ConfigFileEnv 指定 YAML 配置文件路径的环境变量
const ConfigFileEnv = "POPBATTLE_CONFIG"

// Config stores the application configuration.
type Config struct {
	Addr     string `koanf:"addr"`
	LogLevel string `koanf:"log_level"`
	LogFile  string `koanf:"log_file"`

	// Redis配置
	RedisHost     string `koanf:"redis_host"`
	RedisPort     string `koanf:"redis_port"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	// 房间
	RoomTTLSeconds     int `koanf:"room_ttl_seconds"`
	RoundSeconds       int `koanf:"round_seconds"`
	PopularityTTLHours int `koanf:"popularity_ttl_hours"`

	// Spotify
	SpotifyClientID          string `koanf:"spotify_client_id"`
	SpotifyClientSecret      string `koanf:"spotify_client_secret"`
	SpotifyMarket            string `koanf:"spotify_market"`
	SpotifyAccountsURL       string `koanf:"spotify_accounts_url"`
	SpotifyAPIURL            string `koanf:"spotify_api_url"`
	TokenSafetyMarginSeconds int    `koanf:"token_safety_margin_seconds"`

	// 玩家令牌，为空时信任请求体里的 playerId
	JWTSecret string `koanf:"jwt_secret"`

	// 对局历史（MySQL）
	HistoryEnabled bool   `koanf:"history_enabled"`
	DBHost         string `koanf:"db_host"`
	DBPort         string `koanf:"db_port"`
	DBUser         string `koanf:"db_user"`
	DBPassword     string `koanf:"db_password"`
	DBName         string `koanf:"db_name"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Addr:                     ":8080",
		LogLevel:                 "info",
		RedisHost:                "127.0.0.1",
		RedisPort:                "6379",
		RoomTTLSeconds:           3600,
		RoundSeconds:             60,
		PopularityTTLHours:       7 * 24,
		SpotifyMarket:            "FR",
		SpotifyAccountsURL:       "https://accounts.spotify.com",
		SpotifyAPIURL:            "https://api.spotify.com/v1",
		TokenSafetyMarginSeconds: 300,
		DBHost:                   "127.0.0.1",
		DBPort:                   "3306",
		DBUser:                   "root",
		DBName:                   "popbattle",
	}
}

// RoomTTL 房间在 Redis 中的过期时间
func (c *Config) RoomTTL() time.Duration { return time.Duration(c.RoomTTLSeconds) * time.Second }

// RoundDuration 每轮时长
func (c *Config) RoundDuration() time.Duration { return time.Duration(c.RoundSeconds) * time.Second }

// PopularityTTL 热度缓存的新鲜期
func (c *Config) PopularityTTL() time.Duration {
	return time.Duration(c.PopularityTTLHours) * time.Hour
}

// TokenSafetyMargin 令牌提前刷新的余量
func (c *Config) TokenSafetyMargin() time.Duration {
	return time.Duration(c.TokenSafetyMarginSeconds) * time.Second
}

// Load loads configuration: defaults, then the YAML file named by POPBATTLE_CONFIG,
// then plain environment variables (REDIS_HOST, ...), then POPBATTLE_ prefixed ones.
// A .env file in the working directory is loaded into the environment first.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}
	return LoadFile(os.Getenv(ConfigFileEnv))
}

// LoadFile is Load without the .env step, reading the YAML file at path if non-empty.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	known := knownKeys()

	// 兼容不带前缀的变量名，例如 REDIS_HOST、SPOTIFY_CLIENT_ID
	plain := env.Provider("", ".", func(s string) string {
		key := strings.ToLower(s)
		if !known[key] {
			return ""
		}
		return key
	})
	if err := k.Load(plain, nil); err != nil {
		return nil, err
	}

	prefixed := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	})
	if err := k.Load(prefixed, nil); err != nil {
		return nil, err
	}

	cfg := *Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Addr == "" {
		return errors.New("addr must not be empty")
	}
	if c.RoomTTLSeconds <= 0 {
		return errors.New("room_ttl_seconds must be positive")
	}
	if c.RoundSeconds <= 0 {
		return errors.New("round_seconds must be positive")
	}
	if c.PopularityTTLHours <= 0 {
		return errors.New("popularity_ttl_hours must be positive")
	}
	if c.TokenSafetyMarginSeconds < 0 {
		return errors.New("token_safety_margin_seconds must not be negative")
	}
	return nil
}

func knownKeys() map[string]bool {
	return map[string]bool{
		"addr": true, "log_level": true, "log_file": true,
		"redis_host": true, "redis_port": true, "redis_password": true, "redis_db": true,
		"room_ttl_seconds": true, "round_seconds": true, "popularity_ttl_hours": true,
		"spotify_client_id": true, "spotify_client_secret": true, "spotify_market": true,
		"spotify_accounts_url": true, "spotify_api_url": true, "token_safety_margin_seconds": true,
		"jwt_secret": true, "history_enabled": true,
		"db_host": true, "db_port": true, "db_user": true, "db_password": true, "db_name": true,
	}
}
