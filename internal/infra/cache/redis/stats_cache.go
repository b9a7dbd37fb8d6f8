package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"innkeep/internal/app/handlers/occupancy"
	"innkeep/internal/app/outbox"
	"innkeep/internal/app/policies"
	"innkeep/internal/domain/availability"
)

// StatsCache stores occupancy snapshots as JSON under the occupancy key prefix.
type StatsCache struct {
	client *goredis.Client
	logger *slog.Logger
}

func NewClient(addr string) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:         addr,
		DB:           0,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
}

func NewStatsCache(client *goredis.Client, logger *slog.Logger) *StatsCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsCache{client: client, logger: logger}
}

func (c *StatsCache) Get(ctx context.Context, key string) (availability.OccupancyStats, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return availability.OccupancyStats{}, false, nil
	}
	if err != nil {
		return availability.OccupancyStats{}, false, fmt.Errorf("redis: get %s: %w", key, err)
	}
	var stats availability.OccupancyStats
	if err := json.Unmarshal(data, &stats); err != nil {
		// a snapshot we cannot read is a miss
		return availability.OccupancyStats{}, false, nil
	}
	return stats, true, nil
}

func (c *StatsCache) Set(ctx context.Context, key string, stats availability.OccupancyStats, ttl time.Duration) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// Invalidate deletes every snapshot of the company.
func (c *StatsCache) Invalidate(ctx context.Context, company string) error {
	iter := c.client.Scan(ctx, 0, CompanyPattern(company), 200).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// Deliver drops the snapshots of tenants whose calendar changed.
func (c *StatsCache) Deliver(ctx context.Context, records []outbox.EventRecord) {
	for _, company := range touchedCompanies(records) {
		if err := c.Invalidate(ctx, company); err != nil {
			c.logger.Warn("stats cache invalidation failed", "company_id", company, "err", err)
		}
	}
}

func (c *StatsCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// CompanyPattern matches every cached snapshot of company.
func CompanyPattern(company string) string {
	return occupancy.CacheKeyPrefix + escapeGlob(company) + ":*"
}

// touchedCompanies lists, once each, the tenants of records that change occupancy.
func touchedCompanies(records []outbox.EventRecord) []string {
	seen := map[string]bool{}
	var out []string
	for _, rec := range records {
		if rec.Tenant == "" || seen[rec.Tenant] || !changesOccupancy(rec.Name) {
			continue
		}
		seen[rec.Tenant] = true
		out = append(out, rec.Tenant)
	}
	return out
}

func changesOccupancy(name string) bool {
	return strings.HasPrefix(name, "reservation.") ||
		(strings.HasPrefix(name, "calendar.") && name != "calendar.overbooking_prevented") ||
		strings.HasPrefix(name, "availability.")
}

func escapeGlob(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)
	return r.Replace(s)
}

var (
	_ outbox.Sink         = (*StatsCache)(nil)
	_ policies.StatsCache = (*StatsCache)(nil)
)
