package reservations

import (
	"context"
	"errors"
	"time"

	"innkeep/internal/app/commands"
	"innkeep/internal/app/dto"
	"innkeep/internal/app/handlers/support"
	"innkeep/internal/app/middleware"
	"innkeep/internal/app/outbox"
	"innkeep/internal/domain/availability"
	"innkeep/internal/domain/rooms"
	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/tenancy"
)

const createReservationKey = "reservation.create"

type CreateReservationCommand struct {
	Scope           tenancy.Scope
	RoomID          string    `validate:"required"`
	CheckIn         time.Time `validate:"required"`
	CheckOut        time.Time `validate:"required,gtfield=CheckIn"`
	Guests          int       `validate:"gte=0,lte=100"`
	Hold            bool
	HoldTTL         time.Duration `validate:"gte=0"`
	Reference       string        `validate:"max=128"`
	IdempotencyKeyV string        `validate:"max=128"`
}

func (c CreateReservationCommand) Key() string { return createReservationKey }

func (c CreateReservationCommand) TenantScope() tenancy.Scope { return c.Scope }

func (c CreateReservationCommand) IdempotencyKey() string {
	return support.ScopedKey(string(c.Scope.Company), c.IdempotencyKeyV)
}

func (c CreateReservationCommand) ResultPrototype() any { return &dto.Reservation{} }

// CreateReservationHandler re-checks the stay and claims every night inside the
// command's write unit. Either all nights are claimed or none.
type CreateReservationHandler struct {
	MaxNights   int
	IDGenerator func() string
	Clock       func() time.Time
}

func (h *CreateReservationHandler) Handle(ctx context.Context, cmd CreateReservationCommand) (*dto.Reservation, error) {
	unit, err := support.WriteUnit(ctx)
	if err != nil {
		return nil, err
	}
	stay, err := daterange.New(cmd.CheckIn, cmd.CheckOut)
	if err != nil {
		return nil, availability.Invalid("check_out", "must be after check_in")
	}
	company := cmd.Scope.Company
	room := rooms.RoomID(cmd.RoomID)
	now := support.Now(h.Clock)

	check, err := support.CheckStay(ctx, unit, company, availability.StayInput{Room: room, Stay: stay, Guests: cmd.Guests}, h.MaxNights)
	if err != nil {
		return nil, err
	}
	if !check.Available {
		if check.Reason == availability.ReasonReserved {
			outbox.Notice(ctx, availability.CalendarOverbookingPrevented{Company: company, Room: room, Stay: stay, Reason: check.Reason, At: now})
		}
		return nil, &availability.ConflictError{Reason: check.Reason, Result: &check}
	}

	params := availability.NewReservationParams{
		ID:         availability.ReservationID(support.NewID(h.IDGenerator)),
		Scope:      cmd.Scope,
		Room:       room,
		Stay:       stay,
		Guests:     cmd.Guests,
		TotalPrice: check.TotalPrice,
		Hold:       cmd.Hold,
		Reference:  cmd.Reference,
		Now:        now,
	}
	if cmd.Hold && cmd.HoldTTL > 0 {
		params.HoldExpiresAt = now.Add(cmd.HoldTTL)
	}
	res, err := availability.NewReservation(params)
	if err != nil {
		return nil, err
	}
	if err := unit.Reservations().Insert(ctx, res); err != nil {
		return nil, err
	}
	if err := unit.Cells().Claim(ctx, company, room, stay.EachNight(), res.ID, cmd.Scope.ActorOrSystem(), now); err != nil {
		if errors.Is(err, availability.ErrNightTaken) {
			outbox.Notice(ctx, availability.CalendarOverbookingPrevented{Company: company, Room: room, Stay: stay, Reason: availability.ReasonConcurrentWriter, At: now})
			return nil, &availability.ConflictError{Reason: availability.ReasonConcurrentWriter, Result: &check, Err: err}
		}
		return nil, err
	}
	if err := outbox.Record(ctx, res.Drain()...); err != nil {
		return nil, err
	}
	out := dto.MapReservation(res)
	return &out, nil
}

var _ commands.Handler[CreateReservationCommand, *dto.Reservation] = (*CreateReservationHandler)(nil)
var _ middleware.IdempotentCommand = CreateReservationCommand{}
