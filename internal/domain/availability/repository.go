package availability

import (
	"context"
	"time"

	"innkeep/internal/domain/rooms"
	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/shared/money"
	"innkeep/internal/domain/tenancy"
)

// CellRepository persists room-date cells. Every method is scoped to one company.
type CellRepository interface {
	// Range returns the persisted cells of the rooms inside the span in one read.
	// An empty room list means every room of the company.
	Range(ctx context.Context, company tenancy.CompanyID, roomIDs []rooms.RoomID, span daterange.Span) ([]Cell, error)
	// Claim assigns every night to the reservation. A night held by another reservation
	// fails the whole call with ErrNightTaken.
	Claim(ctx context.Context, company tenancy.CompanyID, room rooms.RoomID, nights []time.Time, reservation ReservationID, actor tenancy.ActorID, at time.Time) error
	// Release frees the nights still held by the reservation and returns them.
	Release(ctx context.Context, company tenancy.CompanyID, room rooms.RoomID, nights []time.Time, reservation ReservationID, at time.Time) ([]time.Time, error)
	// Block tags cells with their owning period, creating missing cells.
	Block(ctx context.Context, company tenancy.CompanyID, marks []BlockMark, at time.Time) error
	// Unblock removes the period tag from every cell carrying it and returns the touched keys.
	Unblock(ctx context.Context, company tenancy.CompanyID, period BlockPeriodID, at time.Time) ([]CellKey, error)
	// SetPrice sets or clears the custom price of the given dates.
	SetPrice(ctx context.Context, company tenancy.CompanyID, room rooms.RoomID, dates []time.Time, price *money.Money, actor tenancy.ActorID, at time.Time) error
}

type BlockPeriodRepository interface {
	ByID(ctx context.Context, company tenancy.CompanyID, id BlockPeriodID) (*BlockPeriod, error)
	// Save inserts or updates; updates are rejected with ErrConcurrentUpdate when Version is stale.
	Save(ctx context.Context, period *BlockPeriod) error
	List(ctx context.Context, company tenancy.CompanyID, activeOnly bool) ([]*BlockPeriod, error)
}

type RuleRepository interface {
	ByID(ctx context.Context, company tenancy.CompanyID, id RuleID) (*Rule, error)
	// ForWindow returns the active rules whose validity window intersects the span, in one read.
	ForWindow(ctx context.Context, company tenancy.CompanyID, span daterange.Span) ([]*Rule, error)
	Save(ctx context.Context, rule *Rule) error
	List(ctx context.Context, company tenancy.CompanyID) ([]*Rule, error)
}

type ReservationRepository interface {
	ByID(ctx context.Context, company tenancy.CompanyID, id ReservationID) (*Reservation, error)
	// Insert fails with ErrDuplicate when the id exists.
	Insert(ctx context.Context, r *Reservation) error
	// Save persists a status change with an optimistic check on Version.
	Save(ctx context.Context, r *Reservation) error
	// Overlapping returns the occupying reservations whose stay intersects the range.
	Overlapping(ctx context.Context, company tenancy.CompanyID, roomIDs []rooms.RoomID, stay daterange.DateRange) ([]*Reservation, error)
}
