package availability

import (
	"time"

	"innkeep/internal/domain/rooms"
	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/shared/events"
	"innkeep/internal/domain/shared/money"
	"innkeep/internal/domain/tenancy"
)

type ReservationID string

type ReservationStatus string

const (
	StatusPendingHold ReservationStatus = "PENDING_HOLD"
	StatusConfirmed   ReservationStatus = "CONFIRMED"
	StatusCancelled   ReservationStatus = "CANCELLED"
)

// Occupies reports whether a reservation in this status holds its nights.
func (s ReservationStatus) Occupies() bool {
	return s == StatusPendingHold || s == StatusConfirmed
}

type Reservation struct {
	ID            ReservationID
	Company       tenancy.CompanyID
	Room          rooms.RoomID
	Stay          daterange.DateRange
	Status        ReservationStatus
	Guests        int
	TotalPrice    money.Money
	HoldExpiresAt time.Time
	Reference     string
	CreatedBy     tenancy.ActorID
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CancelReason  string
	Version       int64
	events.EventRecorder
}

type NewReservationParams struct {
	ID            ReservationID
	Scope         tenancy.Scope
	Room          rooms.RoomID
	Stay          daterange.DateRange
	Guests        int
	TotalPrice    money.Money
	Hold          bool
	HoldExpiresAt time.Time
	Reference     string
	Now           time.Time
}

func NewReservation(p NewReservationParams) (*Reservation, error) {
	v := NewValidationError()
	if p.ID == "" {
		v.Add("id", "required")
	}
	if p.Scope.Company == "" {
		v.Add("company_id", "required")
	}
	if p.Room == "" {
		v.Add("room_id", "required")
	}
	if err := p.Stay.Validate(); err != nil {
		v.Add("check_out", "must be after check_in")
	}
	if p.Guests < 0 {
		v.Add("guests", "must not be negative")
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}
	now := p.Now.UTC()
	status := StatusConfirmed
	var expires time.Time
	if p.Hold {
		status = StatusPendingHold
		expires = p.HoldExpiresAt.UTC()
	}
	r := &Reservation{
		ID:            p.ID,
		Company:       p.Scope.Company,
		Room:          p.Room,
		Stay:          p.Stay,
		Status:        status,
		Guests:        p.Guests,
		TotalPrice:    p.TotalPrice,
		HoldExpiresAt: expires,
		Reference:     p.Reference,
		CreatedBy:     p.Scope.ActorOrSystem(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	r.Record(ReservationCreated{
		Company: r.Company, ReservationID: r.ID, Room: r.Room, Stay: r.Stay,
		Status: r.Status, Total: r.TotalPrice, At: now,
	})
	return r, nil
}

func (r *Reservation) Occupies() bool { return r.Status.Occupies() }

// Confirm turns a pending hold into a confirmed reservation.
func (r *Reservation) Confirm(now time.Time) error {
	if r.Status != StatusPendingHold {
		return ErrInvalidTransition
	}
	if !r.HoldExpiresAt.IsZero() && now.After(r.HoldExpiresAt) {
		return &ConflictError{Reason: ReasonHoldExpired}
	}
	r.Status = StatusConfirmed
	r.HoldExpiresAt = time.Time{}
	r.UpdatedAt = now.UTC()
	r.Record(ReservationConfirmed{Company: r.Company, ReservationID: r.ID, Room: r.Room, Stay: r.Stay, At: r.UpdatedAt})
	return nil
}

// Cancel moves the reservation to CANCELLED; the caller releases its nights in the same unit.
func (r *Reservation) Cancel(reason string, now time.Time) error {
	if !r.Occupies() {
		return ErrInvalidTransition
	}
	r.Status = StatusCancelled
	r.CancelReason = reason
	r.UpdatedAt = now.UTC()
	r.Record(ReservationCancelled{Company: r.Company, ReservationID: r.ID, Room: r.Room, Stay: r.Stay, Reason: reason, At: r.UpdatedAt})
	return nil
}

// Clone copies the reservation without its pending events.
func (r *Reservation) Clone() *Reservation {
	out := *r
	out.EventRecorder = events.EventRecorder{}
	return &out
}
