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
	"github.com/pulsechat/pulse/internal/api"
	"github.com/pulsechat/pulse/internal/config"
	"github.com/pulsechat/pulse/internal/db"
	"github.com/pulsechat/pulse/internal/middleware"
	"github.com/pulsechat/pulse/internal/observ"
	"github.com/pulsechat/pulse/internal/ratelimit"
	"github.com/pulsechat/pulse/internal/realtime"
	"github.com/pulsechat/pulse/internal/repository/postgres"
	"go.uber.org/zap"
)

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

	// Startup has no request deadline; Background() is the right root here.
	database, err := db.New(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	// Redis only backs the rate limiter, which fails open, so a missing
	// Redis degrades to "no rate limiting" instead of refusing to boot.
	rdb, err := db.NewRedis(context.Background(), cfg.RedisURL, logger)
	if err != nil {
		logger.Warn("redis unavailable, rate limiting disabled", zap.Error(err))
		rdb = nil
	} else {
		defer rdb.Close()
	}

	pool := database.Pool()
	userRepo := postgres.NewUserStore(pool)
	chatRepo := postgres.NewChatStore(pool)
	messageRepo := postgres.NewMessageStore(pool)

	hub := realtime.NewHub(chatRepo, messageRepo, logger)
	wsHandler := realtime.NewHandler(hub, userRepo, cfg.AccessSecret, logger)

	authHandler := api.NewAuthHandler(userRepo, cfg.AccessSecret, cfg.RefreshSecret, logger)
	userHandler := api.NewUserHandler(userRepo, logger)
	chatHandler := api.NewChatHandler(chatRepo, logger)
	messageHandler := api.NewMessageHandler(messageRepo, chatRepo, logger)

	limiter := ratelimit.New(rdb, 100, time.Minute, logger)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := gin.New()
	srv.Use(gin.Recovery())

	// Public: health for load balancers, auth to obtain tokens, and the
	// WebSocket handshake (it authenticates itself via the token query
	// parameter — browsers cannot set headers on WebSocket connects).
	srv.GET("/v1/health", func(c *gin.Context) {
		if err := database.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authGroup := srv.Group("/v1/auth")
	authGroup.Use(limiter.Middleware())
	authGroup.POST("/signup", authHandler.Signup)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/refresh", authHandler.Refresh)

	srv.GET("/v1/ws", limiter.Middleware(), wsHandler.Serve)

	v1 := srv.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg.AccessSecret))
	v1.GET("/users/me", userHandler.GetMe)
	v1.GET("/chats", chatHandler.List)
	v1.POST("/chats", chatHandler.Create)
	v1.GET("/chats/:id", chatHandler.GetByID)
	v1.GET("/chats/:id/participants", chatHandler.ListParticipants)
	v1.GET("/chats/:id/messages", messageHandler.List)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting pulse",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	return nil
}
