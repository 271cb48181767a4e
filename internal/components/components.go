package components

import (
	"context"
	"fmt"
	"os"
	"time"

	"log/slog"

	"github.com/ShibagniBhattacharjee06/lifelinex/internal/api"
	"github.com/ShibagniBhattacharjee06/lifelinex/internal/config"
	"github.com/ShibagniBhattacharjee06/lifelinex/internal/redis"
	"github.com/ShibagniBhattacharjee06/lifelinex/internal/report"
	"github.com/ShibagniBhattacharjee06/lifelinex/internal/service"
	"github.com/ShibagniBhattacharjee06/lifelinex/internal/storage/postgres"
	"github.com/ShibagniBhattacharjee06/lifelinex/internal/ws"
	"github.com/ShibagniBhattacharjee06/lifelinex/pkg/logger"
)

type Components struct {
	logger      *slog.Logger
	HttpServer  *api.Server
	Postgres    *postgres.Postgres
	Redis       *redis.Redis
	AlertQ      *redis.AlertQueue
	Hub         *ws.Hub
	AlertSender *service.AlertSender
}

func InitComponents(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Components, error) {
	logger.Info("Initializing Postgres")
	storage, err := postgres.NewPostgres(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to init postgres", slog.Any("error", err))
		return nil, fmt.Errorf("failed to init postgres: %w", err)
	}

	logger.Info("Initializing Redis")
	redisClient, err := redis.NewRedis(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to init redis: %w", err)
	}

	alertQueue := redis.NewAlertQueue(redisClient.Client, "alerts:queue")
	heatmapCache := redis.NewHeatmapCache(redisClient)

	hub := ws.NewHub(logger)

	dispatchSvc := service.NewDispatchService(
		storage.Incidents(),
		storage.Users(),
		alertQueue,
		hub,
		logger,
		cfg.Dispatch.RadiusKM,
		cfg.Dispatch.DefaultRadiusKM,
		cfg.Dispatch.TrackBaseURL,
	)
	authSvc := service.NewAuthService(storage.Users(), logger, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	analyticsSvc := service.NewAnalyticsService(storage.Analytics(), heatmapCache, logger)

	srv := service.NewService(dispatchSvc, authSvc, analyticsSvc)

	reports := report.NewGenerator(storage.Incidents())
	alertSender := service.NewAlertSender(logger, cfg.Alert, alertQueue)

	httpServer := api.NewServer(cfg, logger, srv, hub, reports)
	logger.Info("Initialized server")

	return &Components{
		logger:      logger,
		HttpServer:  httpServer,
		Postgres:    storage,
		Redis:       redisClient,
		AlertQ:      alertQueue,
		Hub:         hub,
		AlertSender: alertSender,
	}, nil
}

func SetupLogger(env string) *slog.Logger {
	switch env {
	case "local":
		return logger.SetupPrettySlog()
	case "dev":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			}),
		)
	case "prod":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	default:
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	}
}

func (c *Components) ShutdownAll() {
	start := time.Now()
	c.logger.Info("Component shutdown started")

	c.Hub.Close()
	c.Postgres.Pool.Close()
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.logger.Error("Redis close failed", slog.String("err", err.Error()))
		}
	}

	c.logger.Info("All components shut down",
		slog.Duration("latency", time.Since(start)))
}
