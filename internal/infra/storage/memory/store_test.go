package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"innkeep/internal/app/outbox"
	"innkeep/internal/app/uow"
	"innkeep/internal/domain/availability"
	"innkeep/internal/domain/rooms"
	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/shared/money"
	"innkeep/internal/domain/tenancy"
)

const company tenancy.CompanyID = "acme"

func day(t *testing.T, v string) time.Time {
	t.Helper()
	d, err := daterange.ParseDay(v)
	if err != nil {
		t.Fatalf("parse %s: %v", v, err)
	}
	return d
}

func newStore(t *testing.T) *Store {
	t.Helper()
	s := New(Options{LockTimeout: 50 * time.Millisecond})
	for _, id := range []rooms.RoomID{"a", "b"} {
		room := rooms.Room{ID: id, Company: company, Name: string(id), BasePrice: money.Must(10000, "USD"), Active: true, MaxOccupancy: 2}
		if err := s.Save(context.Background(), room); err != nil {
			t.Fatalf("seed room: %v", err)
		}
	}
	return s
}

func begin(t *testing.T, s *Store, readOnly bool) uow.UnitOfWork {
	t.Helper()
	u, err := s.Begin(context.Background(), uow.TxOptions{ReadOnly: readOnly})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	return u
}

func TestStagedWritesInvisibleUntilCommit(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	nights := []time.Time{day(t, "2025-07-01"), day(t, "2025-07-02")}

	w := begin(t, s, false)
	if err := w.Cells().Claim(ctx, company, "a", nights, "res-1", "ops", time.Now()); err != nil {
		t.Fatalf("claim: %v", err)
	}
	r := begin(t, s, true)
	cells, _ := r.Cells().Range(ctx, company, []rooms.RoomID{"a"}, daterange.Span{From: nights[0], To: nights[1]})
	if len(cells) != 0 {
		t.Fatalf("uncommitted claim leaked: %+v", cells)
	}
	if err := w.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	cells, _ = r.Cells().Range(ctx, company, []rooms.RoomID{"a"}, daterange.Span{From: nights[0], To: nights[1]})
	if len(cells) != 2 || cells[0].ReservationID != "res-1" || cells[0].IsAvailable {
		t.Fatalf("expected committed claim, got %+v", cells)
	}
}

func TestRollbackDiscardsWrites(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	w := begin(t, s, false)
	_ = w.Cells().Claim(ctx, company, "a", []time.Time{day(t, "2025-07-01")}, "res-1", "", time.Now())
	if err := w.Rollback(ctx); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if _, ok := s.Cell(company, "a", day(t, "2025-07-01")); ok {
		t.Fatal("rolled back claim must not persist")
	}
}

func TestWriterLockTimeoutIsTransient(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	first := begin(t, s, false)
	defer first.Rollback(ctx)

	_, err := s.Begin(ctx, uow.TxOptions{LockTimeout: 10 * time.Millisecond})
	if !errors.Is(err, availability.ErrTransientStore) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if _, err := s.Begin(ctx, uow.TxOptions{ReadOnly: true}); err != nil {
		t.Fatalf("readers must not wait for the writer: %v", err)
	}
}

func TestClaimRejectsTakenNight(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	nights := []time.Time{day(t, "2025-07-01"), day(t, "2025-07-02")}
	w := begin(t, s, false)
	_ = w.Cells().Claim(ctx, company, "a", nights[1:], "res-1", "", time.Now())
	_ = w.Commit(ctx)

	w = begin(t, s, false)
	defer w.Rollback(ctx)
	err := w.Cells().Claim(ctx, company, "a", nights, "res-2", "", time.Now())
	if !errors.Is(err, availability.ErrNightTaken) {
		t.Fatalf("expected ErrNightTaken, got %v", err)
	}
	cells, _ := w.Cells().Range(ctx, company, []rooms.RoomID{"a"}, daterange.Span{From: nights[0], To: nights[1]})
	if len(cells) != 1 {
		t.Fatalf("failed claim must not stage partial nights, got %+v", cells)
	}
}

func TestUnblockKeepsOtherPeriods(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	d := day(t, "2025-07-01")
	w := begin(t, s, false)
	_ = w.Cells().Block(ctx, company, []availability.BlockMark{
		{Room: "a", Date: d, Period: "p1", Reason: "maintenance"},
		{Room: "a", Date: d, Period: "p2", Reason: "owner"},
		{Room: "b", Date: d, Period: "p1", Reason: "maintenance"},
	}, time.Now())
	_ = w.Commit(ctx)

	w = begin(t, s, false)
	keys, err := w.Cells().Unblock(ctx, company, "p1", time.Now())
	if err != nil {
		t.Fatalf("unblock: %v", err)
	}
	_ = w.Commit(ctx)
	if len(keys) != 2 {
		t.Fatalf("expected two touched cells, got %v", keys)
	}
	a, _ := s.Cell(company, "a", d)
	b, _ := s.Cell(company, "b", d)
	if !a.IsBlocked || a.BlockReason != "owner" {
		t.Fatalf("cell a must stay blocked by p2: %+v", a)
	}
	if b.IsBlocked || !b.IsAvailable {
		t.Fatalf("cell b must reopen: %+v", b)
	}
}

func TestReservationVersioning(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	stay, _ := daterange.New(day(t, "2025-07-01"), day(t, "2025-07-03"))
	res, err := availability.NewReservation(availability.NewReservationParams{
		ID: "res-1", Scope: tenancy.Scope{Company: company}, Room: "a", Stay: stay,
		TotalPrice: money.Must(20000, "USD"), Now: time.Now(),
	})
	if err != nil {
		t.Fatalf("new reservation: %v", err)
	}
	w := begin(t, s, false)
	if err := w.Reservations().Insert(ctx, res); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := w.Reservations().Insert(ctx, res); !errors.Is(err, availability.ErrDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	_ = w.Commit(ctx)

	w = begin(t, s, false)
	defer w.Rollback(ctx)
	stale := res.Clone()
	if err := w.Reservations().Save(ctx, res); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := w.Reservations().Save(ctx, stale); !errors.Is(err, availability.ErrConcurrentUpdate) {
		t.Fatalf("expected concurrent update, got %v", err)
	}
	got, err := w.Reservations().Overlapping(ctx, company, []rooms.RoomID{"a"}, stay)
	if err != nil || len(got) != 1 || got[0].Version != 2 {
		t.Fatalf("unexpected overlapping result %v %v", got, err)
	}
}

func TestRoomListing(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	r := begin(t, s, true)
	all, err := r.Rooms().List(ctx, company, nil)
	if err != nil || len(all) != 2 || all[0].ID != "a" {
		t.Fatalf("unexpected rooms %v %v", all, err)
	}
	if _, err := r.Rooms().List(ctx, company, []rooms.RoomID{"a", "zz"}); !errors.Is(err, rooms.ErrRoomNotFound) {
		t.Fatalf("expected room not found, got %v", err)
	}
	if other, _ := r.Rooms().List(ctx, "globex", nil); len(other) != 0 {
		t.Fatalf("rooms leaked across companies: %v", other)
	}
}

func TestOutboxCommitsWithUnit(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	w := begin(t, s, false)
	txCtx := uow.ContextWithUnitOfWork(ctx, w)
	if err := s.Outbox().Add(txCtx, outbox.EventRecord{ID: "e1", Name: "reservation.created"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(s.Outbox().Pending()) != 0 {
		t.Fatal("outbox record visible before commit")
	}
	_ = w.Commit(ctx)
	if pending := s.Outbox().Pending(); len(pending) != 1 || pending[0].ID != "e1" {
		t.Fatalf("expected committed record, got %v", pending)
	}
	claimed, _ := s.Outbox().Claim(ctx, 10, time.Now())
	_ = s.Outbox().MarkSent(ctx, claimed[0].ID)
	if len(s.Outbox().Pending()) != 0 {
		t.Fatal("sent record still pending")
	}
}

func TestInjectedCommitFailureReleasesLock(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	s.FailNextCommits(1)
	w := begin(t, s, false)
	if err := w.Commit(ctx); !errors.Is(err, availability.ErrTransientStore) {
		t.Fatalf("expected transient commit failure, got %v", err)
	}
	w = begin(t, s, false)
	if err := w.Commit(ctx); err != nil {
		t.Fatalf("second commit: %v", err)
	}
}
