package occupancy

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"innkeep/internal/app/dto"
	"innkeep/internal/app/handlers/support"
	"innkeep/internal/app/policies"
	"innkeep/internal/app/queries"
	"innkeep/internal/app/uow"
	"innkeep/internal/domain/availability"
	"innkeep/internal/domain/rooms"
	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/tenancy"
)

const computeStatsKey = "occupancy.stats"

// CacheKeyPrefix prefixes every cached snapshot; the company follows it.
const CacheKeyPrefix = "occupancy:"

type ComputeStatsQuery struct {
	Scope   tenancy.Scope
	RoomIDs []string  `validate:"max=500,dive,required"`
	From    time.Time `validate:"required"`
	To      time.Time `validate:"required"`
}

func (q ComputeStatsQuery) Key() string { return computeStatsKey }

func (q ComputeStatsQuery) TenantScope() tenancy.Scope { return q.Scope }

// ComputeStatsHandler serves snapshots from Cache when one is wired.
// Cache failures degrade to a fresh computation.
type ComputeStatsHandler struct {
	UoWFactory uow.UoWFactory
	Cache      policies.StatsCache
	TTL        time.Duration
	MaxDays    int
	Logger     *slog.Logger
}

func (h *ComputeStatsHandler) Handle(ctx context.Context, q ComputeStatsQuery) (dto.OccupancyStats, error) {
	stats, err := h.compute(ctx, q)
	if err != nil {
		return dto.OccupancyStats{}, err
	}
	return dto.MapOccupancy(stats), nil
}

func (h *ComputeStatsHandler) compute(ctx context.Context, q ComputeStatsQuery) (availability.OccupancyStats, error) {
	span, err := daterange.NewSpan(q.From, q.To)
	if err != nil {
		return availability.OccupancyStats{}, availability.Invalid("to", "must not precede from")
	}
	key := CacheKey(q.Scope.Company, span, q.RoomIDs)
	if h.Cache != nil && h.TTL > 0 {
		cached, ok, err := h.Cache.Get(ctx, key)
		if err != nil {
			h.logger().Warn("stats cache read failed", "key", key, "error", err)
		} else if ok {
			return cached, nil
		}
	}
	stats, err := Compute(ctx, h.UoWFactory, q.Scope.Company, support.RoomIDs(q.RoomIDs), span, h.MaxDays)
	if err != nil {
		return availability.OccupancyStats{}, err
	}
	if h.Cache != nil && h.TTL > 0 {
		if err := h.Cache.Set(ctx, key, stats, h.TTL); err != nil {
			h.logger().Warn("stats cache write failed", "key", key, "error", err)
		}
	}
	return stats, nil
}

func (h *ComputeStatsHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Compute loads the grid for the window and reduces it.
func Compute(ctx context.Context, factory uow.UoWFactory, company tenancy.CompanyID, roomIDs []rooms.RoomID, span daterange.Span, maxDays int) (availability.OccupancyStats, error) {
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, factory)
	if err != nil {
		return availability.OccupancyStats{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	grid, err := support.LoadGrid(ctx, unit, company, roomIDs, span, maxDays)
	if err != nil {
		return availability.OccupancyStats{}, err
	}
	return availability.ComputeStats(grid)
}

// CacheKey is stable for the same request regardless of room order.
func CacheKey(company tenancy.CompanyID, span daterange.Span, roomIDs []string) string {
	ids := append([]string(nil), roomIDs...)
	sort.Strings(ids)
	scope := "all"
	if len(ids) > 0 {
		scope = strings.Join(ids, ",")
	}
	return CacheKeyPrefix + string(company) + ":" + span.From.Format(daterange.Layout) + ":" + span.To.Format(daterange.Layout) + ":" + scope
}

var _ queries.Handler[ComputeStatsQuery, dto.OccupancyStats] = (*ComputeStatsHandler)(nil)
