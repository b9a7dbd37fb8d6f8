package reservations

import (
	"context"
	"time"

	"innkeep/internal/app/commands"
	"innkeep/internal/app/dto"
	"innkeep/internal/app/handlers/support"
	"innkeep/internal/app/outbox"
	"innkeep/internal/domain/availability"
	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/tenancy"
)

const cancelReservationKey = "reservation.cancel"

type CancelReservationCommand struct {
	Scope         tenancy.Scope
	ReservationID string `validate:"required"`
	Reason        string `validate:"max=256"`
	// ExpectedVersion, when set, must match the stored version.
	ExpectedVersion int64 `validate:"gte=0"`
}

func (c CancelReservationCommand) Key() string { return cancelReservationKey }

func (c CancelReservationCommand) TenantScope() tenancy.Scope { return c.Scope }

// CancelReservationHandler moves the reservation to CANCELLED and releases exactly the
// nights whose cells still reference it, in the same unit.
type CancelReservationHandler struct {
	Clock func() time.Time
}

func (h *CancelReservationHandler) Handle(ctx context.Context, cmd CancelReservationCommand) (*dto.CancelResult, error) {
	unit, err := support.WriteUnit(ctx)
	if err != nil {
		return nil, err
	}
	company := cmd.Scope.Company
	res, err := unit.Reservations().ByID(ctx, company, availability.ReservationID(cmd.ReservationID))
	if err != nil {
		return nil, err
	}
	if cmd.ExpectedVersion > 0 && cmd.ExpectedVersion != res.Version {
		return nil, &availability.ConflictError{Reason: availability.ReasonConcurrentWriter, Err: availability.ErrConcurrentUpdate}
	}
	now := support.Now(h.Clock)
	if err := res.Cancel(cmd.Reason, now); err != nil {
		return nil, err
	}
	if err := saveReservation(ctx, unit.Reservations(), res); err != nil {
		return nil, err
	}
	released, err := unit.Cells().Release(ctx, company, res.Room, res.Stay.EachNight(), res.ID, now)
	if err != nil {
		return nil, err
	}
	evs := res.Drain()
	for i, ev := range evs {
		if cancelled, ok := ev.(availability.ReservationCancelled); ok {
			cancelled.Released = released
			evs[i] = cancelled
		}
	}
	if err := outbox.Record(ctx, evs...); err != nil {
		return nil, err
	}
	return &dto.CancelResult{
		ReservationID: string(res.ID),
		Status:        string(res.Status),
		Released:      formatNights(released),
	}, nil
}

func formatNights(nights []time.Time) []string {
	out := make([]string, 0, len(nights))
	for _, n := range nights {
		out = append(out, n.Format(daterange.Layout))
	}
	return out
}

var _ commands.Handler[CancelReservationCommand, *dto.CancelResult] = (*CancelReservationHandler)(nil)
