// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/spa-auth/internal/auth"
	"github.com/yourusername/spa-auth/internal/config"
	"github.com/yourusername/spa-auth/internal/logging"
	"github.com/yourusername/spa-auth/internal/users"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.GinMode != gin.ReleaseMode)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.GeneratedSecret {
		logger.Warn("SESSION_SECRET is not set; using a per-process secret")
	}

	db, err := setupDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	rdb, sessionStore, err := setupSessionStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer rdb.Close()

	service := auth.NewService(
		users.NewStore(db),
		auth.NewBcryptHasher(cfg.BcryptCost),
		sessionStore,
		logger.Named("auth"),
	)
	authManager := auth.NewManager(service, sessionStore, logger.Named("auth"))

	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(logging.Middleware(logger), gin.Recovery())
	router.Use(cors.New(corsConfig(cfg)))

	// クッキーには署名付きのセッションIDのみを保存する
	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(auth.SessionOptions(
		int(cfg.SessionLifetime.Seconds()),
		cfg.GinMode == gin.ReleaseMode,
	))
	router.Use(sessions.Sessions(auth.SessionCookieName, store))

	setupRoutes(router, authManager)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting API server", zap.String("addr", srv.Addr), zap.String("mode", cfg.GinMode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func corsConfig(cfg *config.Config) cors.Config {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		"X-CSRF-Token", // CSRF保護用ヘッダー
	}
	// フロントエンドがレスポンスヘッダーから CSRF トークンを読み取れるように公開
	corsConfig.ExposeHeaders = []string{"X-CSRF-Token"}
	return corsConfig
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "spa-auth-api",
		"version": "0.1.0",
	})
}

// setupRoutes はヘルスチェックと認証 API を登録します。
func setupRoutes(router *gin.Engine, authManager *auth.Manager) {
	router.GET("/health", handleHealth)
	authManager.RegisterRoutes(router.Group("/api"))
}
