package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ShibagniBhattacharjee06/lifelinex/internal/domain"

	goredis "github.com/redis/go-redis/v9"
)

// HeatmapCache keeps the public heatmap payload out of Postgres on every
// page load. A miss returns (nil, nil).
type HeatmapCache struct {
	client *goredis.Client
	key    string
}

func NewHeatmapCache(r *Redis) *HeatmapCache {
	return &HeatmapCache{
		client: r.Client,
		key:    "analytics:heatmap",
	}
}

func (c *HeatmapCache) Get(ctx context.Context) ([]domain.HeatPoint, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var points []domain.HeatPoint
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, err
	}
	return points, nil
}

func (c *HeatmapCache) Set(ctx context.Context, points []domain.HeatPoint, ttl time.Duration) error {
	b, err := json.Marshal(points)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key, b, ttl).Err()
}
