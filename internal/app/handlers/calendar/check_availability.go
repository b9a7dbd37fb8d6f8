package calendar

import (
	"context"
	"time"

	"innkeep/internal/app/dto"
	"innkeep/internal/app/handlers/support"
	"innkeep/internal/app/queries"
	"innkeep/internal/app/uow"
	"innkeep/internal/domain/availability"
	"innkeep/internal/domain/rooms"
	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/tenancy"
)

const checkAvailabilityKey = "calendar.check_availability"

type CheckAvailabilityQuery struct {
	Scope                tenancy.Scope
	RoomID               string    `validate:"required"`
	CheckIn              time.Time `validate:"required"`
	CheckOut             time.Time `validate:"required,gtfield=CheckIn"`
	ExcludeReservationID string
	Guests               int `validate:"gte=0,lte=100"`
}

func (q CheckAvailabilityQuery) Key() string { return checkAvailabilityKey }

func (q CheckAvailabilityQuery) TenantScope() tenancy.Scope { return q.Scope }

// CheckAvailabilityHandler is advisory: the writer re-checks inside its own unit.
type CheckAvailabilityHandler struct {
	UoWFactory uow.UoWFactory
	MaxNights  int
}

func (h *CheckAvailabilityHandler) Handle(ctx context.Context, q CheckAvailabilityQuery) (dto.AvailabilityResult, error) {
	stay, err := daterange.New(q.CheckIn, q.CheckOut)
	if err != nil {
		return dto.AvailabilityResult{}, availability.Invalid("check_out", "must be after check_in")
	}
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.AvailabilityResult{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	res, err := support.CheckStay(ctx, unit, q.Scope.Company, availability.StayInput{
		Room:    rooms.RoomID(q.RoomID),
		Stay:    stay,
		Exclude: availability.ReservationID(q.ExcludeReservationID),
		Guests:  q.Guests,
	}, h.MaxNights)
	if err != nil {
		return dto.AvailabilityResult{}, err
	}
	return dto.MapAvailability(res), nil
}

var _ queries.Handler[CheckAvailabilityQuery, dto.AvailabilityResult] = (*CheckAvailabilityHandler)(nil)
