package calendar

import (
	"context"
	"time"

	"innkeep/internal/app/dto"
	"innkeep/internal/app/handlers/support"
	"innkeep/internal/app/queries"
	"innkeep/internal/app/uow"
	"innkeep/internal/domain/availability"
	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/tenancy"
)

const buildGridKey = "calendar.grid"

type BuildGridQuery struct {
	Scope   tenancy.Scope
	RoomIDs []string  `validate:"max=500,dive,required"`
	From    time.Time `validate:"required"`
	To      time.Time `validate:"required"`
}

func (q BuildGridQuery) Key() string { return buildGridKey }

func (q BuildGridQuery) TenantScope() tenancy.Scope { return q.Scope }

type BuildGridHandler struct {
	UoWFactory uow.UoWFactory
	MaxDays    int
}

func (h *BuildGridHandler) Handle(ctx context.Context, q BuildGridQuery) (dto.Grid, error) {
	span, err := daterange.NewSpan(q.From, q.To)
	if err != nil {
		return dto.Grid{}, availability.Invalid("to", "must not precede from")
	}
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Grid{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	grid, err := support.LoadGrid(ctx, unit, q.Scope.Company, support.RoomIDs(q.RoomIDs), span, h.MaxDays)
	if err != nil {
		return dto.Grid{}, err
	}
	return dto.MapGrid(grid), nil
}

var _ queries.Handler[BuildGridQuery, dto.Grid] = (*BuildGridHandler)(nil)
