package service

import (
	"context"
	"time"

	"log/slog"

	"github.com/ShibagniBhattacharjee06/lifelinex/internal/domain"
)

const heatmapTTL = 30 * time.Second

type analyticsService struct {
	repo   AnalyticsRepository
	cache  HeatmapCache
	logger *slog.Logger
}

func NewAnalyticsService(repo AnalyticsRepository, cache HeatmapCache, logger *slog.Logger) AnalyticsService {
	return &analyticsService{
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

// Heatmap serves from cache when fresh; the aggregation query scans the
// whole incidents table and the map view polls it.
func (s *analyticsService) Heatmap(ctx context.Context) ([]domain.HeatPoint, error) {
	if points, err := s.cache.Get(ctx); err == nil && points != nil {
		return points, nil
	}

	points, err := s.repo.Heatmap(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, points, heatmapTTL); err != nil {
		s.logger.Warn("heatmap cache write failed", slog.Any("error", err))
	}

	return points, nil
}

func (s *analyticsService) Stats(ctx context.Context) (*domain.AdminStats, error) {
	return s.repo.Stats(ctx)
}
