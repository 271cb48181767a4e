package postgres

import (
	"context"
	"log/slog"

	"github.com/ShibagniBhattacharjee06/lifelinex/internal/domain"
	"github.com/ShibagniBhattacharjee06/lifelinex/pkg/e"

	"github.com/jackc/pgx/v5/pgxpool"
)

type AnalyticsRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewAnalyticsRepo(pool *pgxpool.Pool, logger *slog.Logger) *AnalyticsRepo {
	return &AnalyticsRepo{pool: pool, logger: logger}
}

func (p *AnalyticsRepo) Heatmap(ctx context.Context) ([]domain.HeatPoint, error) {
	const op = "postgres.Analytics.Heatmap"

	const query = `
		SELECT ST_Y(geo_point::geometry) AS lat,
		       ST_X(geo_point::geometry) AS lng,
		       priority_score
		FROM incidents
	`
	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		p.logger.Error("db query failed", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}
	defer rows.Close()

	points := make([]domain.HeatPoint, 0, 32)
	for rows.Next() {
		var pnt domain.HeatPoint
		var score int
		if err := rows.Scan(&pnt.Lat, &pnt.Lng, &score); err != nil {
			p.logger.Error("row scan failed", slog.String("op", op), slog.Any("error", err))
			return nil, e.WrapError(ctx, op, err)
		}
		pnt.Weight = float64(score) / 100.0
		points = append(points, pnt)
	}
	if err := rows.Err(); err != nil {
		p.logger.Error("rows err", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}

	return points, nil
}

func (p *AnalyticsRepo) Stats(ctx context.Context) (*domain.AdminStats, error) {
	const op = "postgres.Analytics.Stats"

	const overview = `
		SELECT COUNT(*),
		       COALESCE(AVG(priority_score), 0),
		       COUNT(*) FILTER (WHERE status = 'resolved')
		FROM incidents
	`
	stats := &domain.AdminStats{BloodDemand: map[string]int64{}}
	if err := p.pool.QueryRow(ctx, overview).Scan(&stats.TotalSOS, &stats.AvgPriority, &stats.ResolvedCount); err != nil {
		p.logger.Error("db queryrow failed", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}

	const demand = `
		SELECT blood_group, COUNT(*)
		FROM incidents
		WHERE type = 'blood_request' AND blood_group IS NOT NULL
		GROUP BY blood_group
	`
	rows, err := p.pool.Query(ctx, demand)
	if err != nil {
		p.logger.Error("db query failed", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}
	defer rows.Close()

	for rows.Next() {
		var group string
		var count int64
		if err := rows.Scan(&group, &count); err != nil {
			p.logger.Error("row scan failed", slog.String("op", op), slog.Any("error", err))
			return nil, e.WrapError(ctx, op, err)
		}
		stats.BloodDemand[group] = count
	}
	if err := rows.Err(); err != nil {
		p.logger.Error("rows err", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}

	return stats, nil
}
