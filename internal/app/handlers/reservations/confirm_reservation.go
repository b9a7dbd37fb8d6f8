package reservations

import (
	"context"
	"errors"
	"time"

	"innkeep/internal/app/commands"
	"innkeep/internal/app/dto"
	"innkeep/internal/app/handlers/support"
	"innkeep/internal/app/outbox"
	"innkeep/internal/domain/availability"
	"innkeep/internal/domain/tenancy"
)

const confirmReservationKey = "reservation.confirm"

type ConfirmReservationCommand struct {
	Scope         tenancy.Scope
	ReservationID string `validate:"required"`
}

func (c ConfirmReservationCommand) Key() string { return confirmReservationKey }

func (c ConfirmReservationCommand) TenantScope() tenancy.Scope { return c.Scope }

type ConfirmReservationHandler struct {
	Clock func() time.Time
}

func (h *ConfirmReservationHandler) Handle(ctx context.Context, cmd ConfirmReservationCommand) (*dto.Reservation, error) {
	unit, err := support.WriteUnit(ctx)
	if err != nil {
		return nil, err
	}
	res, err := unit.Reservations().ByID(ctx, cmd.Scope.Company, availability.ReservationID(cmd.ReservationID))
	if err != nil {
		return nil, err
	}
	if err := res.Confirm(support.Now(h.Clock)); err != nil {
		return nil, err
	}
	if err := saveReservation(ctx, unit.Reservations(), res); err != nil {
		return nil, err
	}
	if err := outbox.Record(ctx, res.Drain()...); err != nil {
		return nil, err
	}
	out := dto.MapReservation(res)
	return &out, nil
}

// saveReservation maps a lost optimistic check to a conflict.
func saveReservation(ctx context.Context, repo availability.ReservationRepository, res *availability.Reservation) error {
	if err := repo.Save(ctx, res); err != nil {
		if errors.Is(err, availability.ErrConcurrentUpdate) {
			return &availability.ConflictError{Reason: availability.ReasonConcurrentWriter, Err: err}
		}
		return err
	}
	return nil
}

var _ commands.Handler[ConfirmReservationCommand, *dto.Reservation] = (*ConfirmReservationHandler)(nil)
