// Package memory keeps the whole engine state in process. Write units are serialized by a
// single writer lock and apply their staged changes on commit; it backs tests and demos.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"innkeep/internal/app/uow"
	"innkeep/internal/domain/availability"
	"innkeep/internal/domain/rooms"
	"innkeep/internal/domain/tenancy"
)

// DefaultLockTimeout bounds the wait for the writer lock.
const DefaultLockTimeout = 2 * time.Second

var (
	ErrLockTimeout = errors.New("memory: writer lock timeout")
	ErrUnitClosed  = errors.New("memory: unit of work already finished")
	ErrReadOnly    = errors.New("memory: write on read-only unit")
)

type roomRef struct {
	company tenancy.CompanyID
	id      rooms.RoomID
}

type cellRef struct {
	company tenancy.CompanyID
	key     availability.CellKey
}

type blockRef struct {
	company tenancy.CompanyID
	id      availability.BlockPeriodID
}

type ruleRef struct {
	company tenancy.CompanyID
	id      availability.RuleID
}

type reservationRef struct {
	company tenancy.CompanyID
	id      availability.ReservationID
}

type Options struct {
	LockTimeout time.Duration
}

// Store is the committed state shared by every unit.
type Store struct {
	mu          sync.RWMutex
	writer      chan struct{}
	lockTimeout time.Duration

	rooms        map[roomRef]rooms.Room
	cells        map[cellRef]availability.Cell
	blocks       map[blockRef]*availability.BlockPeriod
	rules        map[ruleRef]*availability.Rule
	reservations map[reservationRef]*availability.Reservation
	outbox       *Outbox

	failCommits int
}

func New(opts Options) *Store {
	timeout := opts.LockTimeout
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	return &Store{
		writer:       make(chan struct{}, 1),
		lockTimeout:  timeout,
		rooms:        make(map[roomRef]rooms.Room),
		cells:        make(map[cellRef]availability.Cell),
		blocks:       make(map[blockRef]*availability.BlockPeriod),
		rules:        make(map[ruleRef]*availability.Rule),
		reservations: make(map[reservationRef]*availability.Reservation),
		outbox:       newOutbox(),
	}
}

// Outbox returns the event outbox committed together with the store.
func (s *Store) Outbox() *Outbox { return s.outbox }

// Save seeds or replaces a catalog room.
func (s *Store) Save(_ context.Context, room rooms.Room) error {
	if err := room.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[roomRef{room.Company, room.ID}] = room
	return nil
}

// FailNextCommits makes the next n write commits fail as transient store errors.
func (s *Store) FailNextCommits(n int) {
	s.mu.Lock()
	s.failCommits = n
	s.mu.Unlock()
}

// Cell returns the committed cell, if one was ever written.
func (s *Store) Cell(company tenancy.CompanyID, room rooms.RoomID, date time.Time) (availability.Cell, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cells[cellRef{company, availability.KeyOf(room, date)}]
	return c.Clone(), ok
}

// Begin opens a unit. Write units hold the writer lock until Commit or Rollback.
func (s *Store) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	u := &Unit{store: s, readOnly: opts.ReadOnly}
	if opts.ReadOnly {
		return u, nil
	}
	if err := s.acquire(ctx, opts.LockTimeout); err != nil {
		return nil, err
	}
	u.stage = newStage()
	return u, nil
}

func (s *Store) acquire(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = s.lockTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case s.writer <- struct{}{}:
		return nil
	case <-timer.C:
		return availability.Transient("memory.begin", ErrLockTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) release() {
	select {
	case <-s.writer:
	default:
	}
}

func (s *Store) apply(st *stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCommits > 0 {
		s.failCommits--
		return availability.Transient("memory.commit", errors.New("injected commit failure"))
	}
	for ref, c := range st.cells {
		s.cells[ref] = c
	}
	for ref, p := range st.blocks {
		s.blocks[ref] = p
	}
	for ref, r := range st.rules {
		s.rules[ref] = r
	}
	for ref, r := range st.reservations {
		s.reservations[ref] = r
	}
	s.outbox.append(st.outbox)
	return nil
}

// stage holds the writes of one unit until commit.
type stage struct {
	cells        map[cellRef]availability.Cell
	blocks       map[blockRef]*availability.BlockPeriod
	rules        map[ruleRef]*availability.Rule
	reservations map[reservationRef]*availability.Reservation
	outbox       []outboxEntry
}

func newStage() *stage {
	return &stage{
		cells:        make(map[cellRef]availability.Cell),
		blocks:       make(map[blockRef]*availability.BlockPeriod),
		rules:        make(map[ruleRef]*availability.Rule),
		reservations: make(map[reservationRef]*availability.Reservation),
	}
}

func sortCells(cells []availability.Cell) {
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Room != cells[j].Room {
			return cells[i].Room < cells[j].Room
		}
		return cells[i].Date.Before(cells[j].Date)
	})
}

var (
	_ uow.UoWFactory = (*Store)(nil)
	_ rooms.Writer   = (*Store)(nil)
)
