package calendar

import (
	"context"
	"fmt"
	"time"

	"innkeep/internal/app/commands"
	"innkeep/internal/app/dto"
	"innkeep/internal/app/handlers/support"
	"innkeep/internal/app/middleware"
	"innkeep/internal/app/outbox"
	"innkeep/internal/app/queries"
	"innkeep/internal/app/uow"
	"innkeep/internal/domain/availability"
	"innkeep/internal/domain/rooms"
	"innkeep/internal/domain/tenancy"
)

const (
	createBlockPeriodKey     = "calendar.block_period.create"
	deactivateBlockPeriodKey = "calendar.block_period.deactivate"
	listBlockPeriodsKey      = "calendar.block_period.list"
)

type CreateBlockPeriodCommand struct {
	Scope tenancy.Scope
	// RoomIDs empty blocks every room of the company.
	RoomIDs         []string  `validate:"max=500,dive,required"`
	Start           time.Time `validate:"required"`
	End             time.Time
	Reason          string `validate:"max=256"`
	Recurrence      availability.Recurrence
	IdempotencyKeyV string `validate:"max=128"`
}

func (c CreateBlockPeriodCommand) Key() string { return createBlockPeriodKey }

func (c CreateBlockPeriodCommand) TenantScope() tenancy.Scope { return c.Scope }

func (c CreateBlockPeriodCommand) IdempotencyKey() string {
	return support.ScopedKey(string(c.Scope.Company), c.IdempotencyKeyV)
}

func (c CreateBlockPeriodCommand) ResultPrototype() any { return &dto.BlockPeriod{} }

// CreateBlockPeriodHandler stores the period and expands it into tagged cells.
type CreateBlockPeriodHandler struct {
	HorizonDays int
	IDGenerator func() string
	Clock       func() time.Time
}

func (h *CreateBlockPeriodHandler) Handle(ctx context.Context, cmd CreateBlockPeriodCommand) (*dto.BlockPeriod, error) {
	unit, err := support.WriteUnit(ctx)
	if err != nil {
		return nil, err
	}
	now := support.Now(h.Clock)
	period, err := availability.NewBlockPeriod(availability.NewBlockPeriodParams{
		ID:         availability.BlockPeriodID(support.NewID(h.IDGenerator)),
		Scope:      cmd.Scope,
		Rooms:      support.RoomIDs(cmd.RoomIDs),
		Start:      cmd.Start,
		End:        cmd.End,
		Reason:     cmd.Reason,
		Recurrence: cmd.Recurrence,
		Now:        now,
	})
	if err != nil {
		return nil, err
	}
	if period.ExceedsHorizon(h.horizon()) {
		return nil, availability.Invalid("end", fmt.Sprintf("period exceeds the %d day horizon", h.horizon()))
	}
	company := cmd.Scope.Company
	scoped, err := unit.Rooms().List(ctx, company, period.Rooms)
	if err != nil {
		return nil, support.MapRoomError(err)
	}
	targets := period.TargetRooms(rooms.IDs(scoped))
	marks := period.Expand(targets, h.horizon())

	if err := unit.Blocks().Save(ctx, period); err != nil {
		return nil, err
	}
	if err := unit.Cells().Block(ctx, company, marks, now); err != nil {
		return nil, err
	}
	period.Record(availability.CalendarBlocked{
		Company: company, Period: period.ID, Rooms: targets, Cells: len(marks), Reason: period.Reason, At: now,
	})
	if err := outbox.Record(ctx, period.Drain()...); err != nil {
		return nil, err
	}
	out := dto.MapBlockPeriod(period)
	out.BlockedCells = len(marks)
	return &out, nil
}

func (h *CreateBlockPeriodHandler) horizon() int {
	if h.HorizonDays > 0 {
		return h.HorizonDays
	}
	return availability.DefaultHorizonDays
}

type DeactivateBlockPeriodCommand struct {
	Scope    tenancy.Scope
	PeriodID string `validate:"required"`
}

func (c DeactivateBlockPeriodCommand) Key() string { return deactivateBlockPeriodKey }

func (c DeactivateBlockPeriodCommand) TenantScope() tenancy.Scope { return c.Scope }

// DeactivateBlockPeriodHandler removes only this period's tags. Cells stay blocked while
// another period tags them and stay unavailable while reserved.
type DeactivateBlockPeriodHandler struct {
	Clock func() time.Time
}

func (h *DeactivateBlockPeriodHandler) Handle(ctx context.Context, cmd DeactivateBlockPeriodCommand) (*dto.DeactivateResult, error) {
	unit, err := support.WriteUnit(ctx)
	if err != nil {
		return nil, err
	}
	company := cmd.Scope.Company
	period, err := unit.Blocks().ByID(ctx, company, availability.BlockPeriodID(cmd.PeriodID))
	if err != nil {
		return nil, err
	}
	now := support.Now(h.Clock)
	if err := period.Deactivate(cmd.Scope.ActorOrSystem(), now); err != nil {
		return nil, err
	}
	if err := unit.Blocks().Save(ctx, period); err != nil {
		return nil, err
	}
	touched, err := unit.Cells().Unblock(ctx, company, period.ID, now)
	if err != nil {
		return nil, err
	}
	period.Record(availability.CalendarReleased{Company: company, Period: period.ID, Unblocked: len(touched), At: now})
	if err := outbox.Record(ctx, period.Drain()...); err != nil {
		return nil, err
	}
	return &dto.DeactivateResult{PeriodID: string(period.ID), Unblocked: len(touched)}, nil
}

type ListBlockPeriodsQuery struct {
	Scope      tenancy.Scope
	ActiveOnly bool
}

func (q ListBlockPeriodsQuery) Key() string { return listBlockPeriodsKey }

func (q ListBlockPeriodsQuery) TenantScope() tenancy.Scope { return q.Scope }

type ListBlockPeriodsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListBlockPeriodsHandler) Handle(ctx context.Context, q ListBlockPeriodsQuery) ([]dto.BlockPeriod, error) {
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	list, err := unit.Blocks().List(ctx, q.Scope.Company, q.ActiveOnly)
	if err != nil {
		return nil, err
	}
	return dto.MapBlockPeriods(list), nil
}

var (
	_ commands.Handler[CreateBlockPeriodCommand, *dto.BlockPeriod]          = (*CreateBlockPeriodHandler)(nil)
	_ commands.Handler[DeactivateBlockPeriodCommand, *dto.DeactivateResult] = (*DeactivateBlockPeriodHandler)(nil)
	_ queries.Handler[ListBlockPeriodsQuery, []dto.BlockPeriod]             = (*ListBlockPeriodsHandler)(nil)
	_ middleware.IdempotentCommand                                          = CreateBlockPeriodCommand{}
)
