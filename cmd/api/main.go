package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SergeiKhy/shortlink/internal/config"
	"github.com/SergeiKhy/shortlink/internal/handler"
	"github.com/SergeiKhy/shortlink/internal/middleware"
	"github.com/SergeiKhy/shortlink/internal/repository"
	"github.com/SergeiKhy/shortlink/internal/repository/migrations"
	"github.com/SergeiKhy/shortlink/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.App)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	if !cfg.App.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	linkRepo, closeStore, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open link store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer closeStore()

	linkService := service.NewLinkService(linkRepo, service.Config{
		BaseURL:    cfg.App.BaseURL,
		SlugLength: cfg.Links.SlugLength,
		BcryptCost: cfg.Links.BcryptCost,
	}, logger)

	var apiKeyMiddleware gin.HandlerFunc
	if len(cfg.Auth.APIKeys) > 0 {
		apiKeyMiddleware = middleware.RequireAPIKey(cfg.Auth.APIKeys)
		logger.Info("API key authentication enabled", zap.Int("keys_count", len(cfg.Auth.APIKeys)))
	}

	router := handler.NewRouter(
		linkService,
		linkRepo,
		middleware.NewMetrics(),
		apiKeyMiddleware,
		cfg.CORS.AllowedOrigins,
		logger,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting",
			zap.String("port", cfg.App.Port),
			zap.String("base_url", cfg.App.BaseURL),
			zap.String("store", cfg.Store.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func newLogger(cfg config.AppConfig) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// openStore connects the configured backend and returns its close func.
func openStore(cfg *config.Config, logger *zap.Logger) (repository.LinkRepository, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		if cfg.DB.AutoMigrate {
			if err := migrate(cfg.DB.DSN(), logger); err != nil {
				return nil, nil, err
			}
		}

		db, err := repository.NewPostgresDB(cfg.DB)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Connected to PostgreSQL")
		return repository.NewLinkRepository(db), db.Close, nil

	case config.DriverRedis:
		client, err := repository.NewRedisClient(cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Connected to Redis")
		return repository.NewRedisLinkRepository(client), func() { _ = client.Close() }, nil

	case config.DriverSQLite:
		db, err := repository.NewSQLiteDB(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Opened SQLite database", zap.String("path", cfg.SQLite.Path))
		return repository.NewSQLiteLinkRepository(db), func() { _ = db.Close() }, nil
	}

	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

func migrate(dsn string, logger *zap.Logger) error {
	migrator, err := migrations.New(dsn, logger)
	if err != nil {
		return err
	}
	defer migrator.Close()

	return migrator.Up()
}
