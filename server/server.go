package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PopBattle/cache"
	"PopBattle/config"
	"PopBattle/core/auth"
	"PopBattle/core/room"
	"PopBattle/core/spotify"
	"PopBattle/db"
	"PopBattle/logger"
	"PopBattle/metrics"
	"PopBattle/model"
	"PopBattle/repository"

	"github.com/gorilla/mux"
)

// Deps 路由需要的依赖
type Deps struct {
	Rooms       RoomService
	Catalog     Catalog
	Leaderboard Leaderboard
	Tokens      *auth.TokenIssuer
	Metrics     *metrics.Manager
	Ping        func(ctx context.Context) error
}

// NewRouter 创建路由
func NewRouter(d Deps) *mux.Router {
	if d.Metrics == nil {
		d.Metrics = metrics.Default()
	}

	roomHandler := NewRoomHandler(d.Rooms, d.Tokens)
	playlistHandler := NewPlaylistHandler(d.Catalog, d.Leaderboard)

	router := mux.NewRouter()
	router.Use(corsMiddleware)
	router.Use(metricsMiddleware(d.Metrics))

	// 房间
	router.HandleFunc("/api/rooms", roomHandler.CreateRoomHandler).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/rooms/{code}", roomHandler.GetRoomHandler).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/api/rooms/{code}", roomHandler.ApplyHandler).Methods(http.MethodPut, http.MethodPost)

	// 歌单
	router.HandleFunc("/api/spotify/playlist/{id}", playlistHandler.GetPlaylistHandler).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/api/playlists/{id}/leaderboard", playlistHandler.LeaderboardHandler).Methods(http.MethodGet, http.MethodOptions)

	router.HandleFunc("/healthz", healthHandler(d.Ping)).Methods(http.MethodGet)
	router.Handle("/metrics", d.Metrics.Handler()).Methods(http.MethodGet)

	return router
}

// corsMiddleware 添加 CORS 头，预检请求直接返回
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// metricsMiddleware 按路由模板统计请求，避免房间号撑爆标签
func metricsMiddleware(m *metrics.Manager) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := "unknown"
			if cur := mux.CurrentRoute(r); cur != nil {
				if tpl, err := cur.GetPathTemplate(); err == nil {
					route = tpl
				}
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r)
			m.HTTPRequest(route, r.Method, rec.status, time.Since(start))
		})
	}
}

func healthHandler(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				logger.Warn("健康检查失败", logger.ErrorField(err))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// Start 连接依赖并启动 HTTP 服务，收到中断信号后优雅关闭
func Start(cfg *config.Config) error {
	// Connect to Redis
	if err := db.ConnectRedis(cfg); err != nil {
		return err
	}
	defer db.CloseRedis()
	logger.Info("Successfully connected to Redis",
		logger.String("host", cfg.RedisHost),
		logger.String("port", cfg.RedisPort))

	// 对局历史
	var history repository.RoundRepository = repository.NopRoundRepository{}
	if cfg.HistoryEnabled {
		if err := db.ConnectGormDB(cfg); err != nil {
			return err
		}
		defer db.CloseGormDB()
		if err := db.AutoMigrateModels(&model.RoundRecord{}); err != nil {
			return err
		}
		history = repository.NewGormRoundRepository(db.GormDB)
	}

	m := metrics.Default()
	store := cache.NewRoomStore(db.RedisClient, cache.WithRoomTTL(cfg.RoomTTL()))
	rooms := room.NewService(store,
		room.WithRoundDuration(cfg.RoundDuration()),
		room.WithHistory(history),
		room.WithMetrics(m),
	)

	tokens := spotify.NewTokenSource(cfg.SpotifyClientID, cfg.SpotifyClientSecret,
		cfg.SpotifyAccountsURL, cfg.TokenSafetyMargin(), nil)
	catalog := spotify.NewClient(tokens,
		spotify.WithBaseURL(cfg.SpotifyAPIURL),
		spotify.WithMarket(cfg.SpotifyMarket),
		spotify.WithPopularityCache(cache.NewPopularityCache(db.RedisClient, cfg.PopularityTTL())),
		spotify.WithMetrics(m),
	)

	router := NewRouter(Deps{
		Rooms:       rooms,
		Catalog:     catalog,
		Leaderboard: history,
		Tokens:      auth.NewTokenIssuer(cfg.JWTSecret, cfg.RoomTTL()),
		Metrics:     m,
		Ping: func(ctx context.Context) error {
			return db.RedisClient.Ping(ctx).Err()
		},
	})

	// 设置服务器超时
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 配置文件热加载：目前只有日志级别在运行时生效
	if path := os.Getenv(config.ConfigFileEnv); path != "" {
		err := config.Watch(ctx, path, func(c *config.Config) {
			logger.SetLevel(logger.LogLevel(c.LogLevel))
			logger.Info("配置已重新加载", logger.String("logLevel", c.LogLevel))
		}, func(err error) {
			logger.Warn("重新加载配置失败", logger.ErrorField(err))
		})
		if err != nil {
			logger.Warn("无法监听配置文件", logger.String("path", path), logger.ErrorField(err))
		}
	}

	// 创建一个通道来接收操作系统信号
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", logger.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		return err
	}
	logger.Info("Shutting down server...")

	// 创建一个5秒超时的上下文
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	// 优雅关闭服务器
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}
