package memory

import (
	"context"
	"sync"

	"innkeep/internal/app/uow"
	"innkeep/internal/domain/availability"
	"innkeep/internal/domain/rooms"
)

// Unit reads committed state overlaid with its own staged writes.
type Unit struct {
	store    *Store
	readOnly bool

	mu    sync.Mutex
	stage *stage
	done  bool
}

func (u *Unit) Rooms() rooms.Catalog { return roomCatalog{u} }
func (u *Unit) Cells() availability.CellRepository { return cellRepository{u} }
func (u *Unit) Blocks() availability.BlockPeriodRepository { return blockRepository{u} }
func (u *Unit) Rules() availability.RuleRepository { return ruleRepository{u} }
func (u *Unit) Reservations() availability.ReservationRepository { return reservationRepository{u} }

func (u *Unit) Commit(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return ErrUnitClosed
	}
	u.done = true
	if u.readOnly {
		return nil
	}
	defer u.store.release()
	return u.store.apply(u.stage)
}

// Rollback drops staged writes. Calling it after Commit is a no-op.
func (u *Unit) Rollback(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return nil
	}
	u.done = true
	u.stage = nil
	if !u.readOnly {
		u.store.release()
	}
	return nil
}

// writable returns the stage of an open write unit. Callers hold u.mu.
func (u *Unit) writable() (*stage, error) {
	if u.done {
		return nil, ErrUnitClosed
	}
	if u.readOnly || u.stage == nil {
		return nil, ErrReadOnly
	}
	return u.stage, nil
}

// staged returns the unit's stage, or nil for read-only units. Callers hold u.mu.
func (u *Unit) staged() *stage {
	if u.readOnly {
		return nil
	}
	return u.stage
}

var _ uow.UnitOfWork = (*Unit)(nil)
