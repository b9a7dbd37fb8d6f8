package reservations

import (
	"context"

	"innkeep/internal/app/dto"
	"innkeep/internal/app/handlers/support"
	"innkeep/internal/app/queries"
	"innkeep/internal/app/uow"
	"innkeep/internal/domain/availability"
	"innkeep/internal/domain/tenancy"
)

const getReservationKey = "reservation.get"

type GetReservationQuery struct {
	Scope         tenancy.Scope
	ReservationID string `validate:"required"`
}

func (q GetReservationQuery) Key() string { return getReservationKey }

func (q GetReservationQuery) TenantScope() tenancy.Scope { return q.Scope }

type GetReservationHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetReservationHandler) Handle(ctx context.Context, q GetReservationQuery) (dto.Reservation, error) {
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Reservation{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	res, err := unit.Reservations().ByID(ctx, q.Scope.Company, availability.ReservationID(q.ReservationID))
	if err != nil {
		return dto.Reservation{}, err
	}
	return dto.MapReservation(res), nil
}

var _ queries.Handler[GetReservationQuery, dto.Reservation] = (*GetReservationHandler)(nil)
