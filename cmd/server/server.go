package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/thereayou/chat-relay/internal/badgerstore"
	"github.com/thereayou/chat-relay/internal/config"
	"github.com/thereayou/chat-relay/internal/database"
	"github.com/thereayou/chat-relay/internal/directory"
	"github.com/thereayou/chat-relay/internal/gateway"
	"github.com/thereayou/chat-relay/internal/handlers"
	"github.com/thereayou/chat-relay/internal/messagelog"
	"github.com/thereayou/chat-relay/internal/realtime"
	"github.com/thereayou/chat-relay/internal/rooms"
	"github.com/thereayou/chat-relay/internal/services"
	"github.com/thereayou/chat-relay/internal/store"
	"github.com/thereayou/chat-relay/pkg/auth"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	cfg    config.Config
	log    *slog.Logger
	store  store.Store
	redis  *redis.Client
	app    *App
	server *http.Server
}

// App is the wired service graph behind the HTTP router.
type App struct {
	Router *gin.Engine
	Hub    *realtime.Hub
	Auth   *services.AuthService
}

func NewServer(ctx context.Context, cfg config.Config, log *slog.Logger) (*Server, error) {
	st, err := openStore(cfg, log)
	if err != nil {
		return nil, err
	}

	var (
		rdb       *redis.Client
		blacklist auth.Blacklist = auth.NewMemoryBlacklist()
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb = redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			_ = st.Close()
			return nil, fmt.Errorf("redis connect failed: %w", err)
		}
		blacklist = auth.NewRedisBlacklist(rdb)
	} else {
		log.Warn("REDIS_URL not set, revoked tokens are kept in memory")
	}

	app := NewApp(cfg, st, blacklist, log)
	return &Server{
		cfg:   cfg,
		log:   log,
		store: st,
		redis: rdb,
		app:   app,
		server: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           app.Router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func openStore(cfg config.Config, log *slog.Logger) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		db, err := database.Connect(cfg.DatabaseURL, log)
		if err != nil {
			return nil, fmt.Errorf("postgres connect failed: %w", err)
		}
		return db, nil
	default:
		s, err := badgerstore.Open(cfg.BadgerPath, log)
		if err != nil {
			return nil, fmt.Errorf("badger open failed: %w", err)
		}
		return s, nil
	}
}

// NewApp wires the services around st and builds the router.
func NewApp(cfg config.Config, st store.Store, blacklist auth.Blacklist, log *slog.Logger) *App {
	hub := realtime.NewHub(log, realtime.Options{Shards: cfg.HubShards, QueueSize: cfg.SubscriberQueueSize})
	tokens := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)

	dir := directory.New(st, log, cfg.OperationTimeout)
	authSvc := services.NewAuthService(dir, tokens, blacklist, log)
	roomSvc := rooms.NewService(st, st, st, hub, log, cfg.OperationTimeout)
	msgLog := messagelog.New(st, roomSvc, hub, log, messagelog.Options{
		Timeout:          cfg.OperationTimeout,
		DefaultPageLimit: cfg.HistoryPageLimit,
	})

	h := Handlers{
		Auth:     handlers.NewAuthHandler(authSvc, log),
		Users:    handlers.NewUserHandler(dir, log),
		Rooms:    handlers.NewRoomHandler(roomSvc, dir, log),
		Messages: handlers.NewHTTPMessageHandler(msgLog, log),
		WS: handlers.NewWebSocketHandler(hub, authSvc, roomSvc, msgLog,
			gateway.RateLimit{PerSecond: cfg.WSRatePerSecond, Burst: cfg.WSRateBurst}, cfg.Origins(), log),
	}
	return &App{Router: NewRouter(h, authSvc, log), Hub: hub, Auth: authSvc}
}

// Run serves until ctx is cancelled, then drains in-flight requests and
// closes every live session.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server starting", "port", s.cfg.Port, "store", s.cfg.StoreDriver)
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server run error: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.app.Hub.Shutdown()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) Close() {
	if s.redis != nil {
		_ = s.redis.Close()
	}
	s.log.Info("closing store")
	if err := s.store.Close(); err != nil {
		s.log.Error("close store", "error", err)
	}
}
