package policies

import (
	"context"
	"time"

	"innkeep/internal/domain/availability"
)

// StatsCache keeps occupancy snapshots; a miss is not an error.
type StatsCache interface {
	Get(ctx context.Context, key string) (availability.OccupancyStats, bool, error)
	Set(ctx context.Context, key string, stats availability.OccupancyStats, ttl time.Duration) error
}
