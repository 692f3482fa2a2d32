package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/matchline/internal/api"
	"github.com/lalith-99/matchline/internal/chat"
	"github.com/lalith-99/matchline/internal/config"
	"github.com/lalith-99/matchline/internal/db"
	"github.com/lalith-99/matchline/internal/middleware"
	"github.com/lalith-99/matchline/internal/observ"
	"github.com/lalith-99/matchline/internal/provider"
	"github.com/lalith-99/matchline/internal/pubsub"
	"github.com/lalith-99/matchline/internal/repository"
	"github.com/lalith-99/matchline/internal/repository/memory"
	"github.com/lalith-99/matchline/internal/repository/postgres"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]api.HealthCheck{}

	repos, closeRepos, err := openRepositories(ctx, cfg, logger, checks)
	if err != nil {
		return err
	}
	defer closeRepos()

	var broker pubsub.Broker
	switch cfg.Broker {
	case config.BrokerRedis:
		rb, err := pubsub.NewRedisBroker(ctx, cfg.RedisURL, logger)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		checks["redis"] = rb.Health
		broker = rb
	default:
		logger.Warn("using in-process broker; live events will not cross instances")
		broker = pubsub.NewMemoryBroker(logger)
	}
	defer broker.Close()

	userRepo := repos.users
	matchRepo := repos.matches
	hub := provider.NewHub(repos.chat, broker, cfg.ChatAPISecret, cfg.ChatTokenTTL, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observ.NewMetrics(registry)

	channelID, err := chat.ChannelIDScheme(cfg.ChannelIDScheme)
	if err != nil {
		return err
	}

	tokens := chat.NewTokenService(userRepo, hub, logger.Named("chat-tokens"))
	resolver := chat.NewResolver(matchRepo, userRepo, hub, channelID, logger.Named("chat-resolver"), metrics)
	synchronizer := chat.NewSynchronizer(tokens, hub, resolver, logger.Named("chat-session"), metrics)

	authHandler := api.NewAuthHandler(userRepo, cfg.JWTSecret, cfg.SessionTTL, logger)
	userHandler := api.NewUserHandler(userRepo, logger)
	matchHandler := api.NewMatchHandler(matchRepo, userRepo, logger)
	chatHandler := api.NewChatHandler(tokens, resolver, logger)
	messageHandler := api.NewMessageHandler(synchronizer, logger)
	socketHandler := api.NewSocketHandler(synchronizer, logger)
	healthHandler := api.NewHealthHandler(checks, logger)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := gin.New()
	srv.Use(gin.Recovery(), middleware.RequestID(logger), middleware.AccessLog(logger))

	// Public routes: probes, scraping and the endpoints that hand out
	// session tokens.
	srv.GET("/v1/health", healthHandler.Health)
	srv.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	srv.POST("/v1/auth/signup", authHandler.Signup)
	srv.POST("/v1/auth/login", authHandler.Login)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger)
	v1 := srv.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg.JWTSecret), limiter.Middleware())

	v1.GET("/users/me", userHandler.GetMe)
	v1.GET("/matches", matchHandler.List)
	v1.POST("/chat/token", chatHandler.Token)
	v1.POST("/matches/:userId/channel", chatHandler.ResolveChannel)
	v1.GET("/matches/:userId/messages", messageHandler.List)
	v1.GET("/matches/:userId/ws", socketHandler.Serve)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting matchline",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
		zap.String("store", cfg.Store),
		zap.String("broker", cfg.Broker),
		zap.String("channel_id_scheme", cfg.ChannelIDScheme),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve http: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

type repositories struct {
	users   repository.UserRepository
	matches repository.MatchRepository
	chat    provider.Stores
}

// openRepositories connects the configured store and registers its
// health check. The returned func releases it.
func openRepositories(ctx context.Context, cfg *config.Config, logger *zap.Logger, checks map[string]api.HealthCheck) (repositories, func(), error) {
	if cfg.Store == config.StoreMemory {
		logger.Warn("using in-memory store; data is lost on restart")
		store := memory.New()
		return repositories{
			users:   store.Users(),
			matches: store.Matches(),
			chat:    provider.StoresFrom(store),
		}, func() {}, nil
	}

	database, err := db.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return repositories{}, nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return repositories{}, nil, fmt.Errorf("migrate database: %w", err)
	}
	checks["postgres"] = database.Health

	// Each store gets the same pool; pgxpool is safe for concurrent use.
	pool := database.Pool()
	return repositories{
		users:   postgres.NewUserStore(pool),
		matches: postgres.NewMatchStore(pool),
		chat: provider.Stores{
			Users:    postgres.NewChatUserStore(pool),
			Channels: postgres.NewChannelStore(pool),
			Members:  postgres.NewMembershipStore(pool),
			Messages: postgres.NewMessageStore(pool),
		},
	}, database.Close, nil
}
