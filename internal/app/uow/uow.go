package uow

import (
	"context"
	"time"

	"innkeep/internal/domain/availability"
	"innkeep/internal/domain/rooms"
)

// UnitOfWork coordinates the repositories of one transaction boundary.
// Writes made through a write unit become visible only on Commit.
type UnitOfWork interface {
	Rooms() rooms.Catalog
	Cells() availability.CellRepository
	Blocks() availability.BlockPeriodRepository
	Rules() availability.RuleRepository
	Reservations() availability.ReservationRepository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts units of work. Write units are exclusive per store.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

type TxOptions struct {
	ReadOnly bool
	// LockTimeout bounds the wait for the write lock; zero uses the store default.
	LockTimeout time.Duration
}
