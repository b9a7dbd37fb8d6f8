package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	appoutbox "innkeep/internal/app/outbox"
	"innkeep/internal/app/uow"
	"innkeep/internal/domain/availability"
	"innkeep/internal/domain/rooms"
	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/shared/money"
	"innkeep/internal/domain/tenancy"
)

const company tenancy.CompanyID = "acme"

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := daterange.ParseDay(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return d
}

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), Options{Path: filepath.Join(t.TempDir(), "innkeep.db"), LockTimeout: 200 * time.Millisecond})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	for _, id := range []rooms.RoomID{"a", "b"} {
		room := rooms.Room{ID: id, Company: company, Name: "Room " + string(id), BasePrice: money.Must(10000, "USD"), Active: true, MaxOccupancy: 2}
		if err := s.Save(context.Background(), room); err != nil {
			t.Fatalf("save room: %v", err)
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

func TestMigrationsAreIdempotent(t *testing.T) {
	s := newStore(t)
	applied, err := RunMigrations(context.Background(), s.writer)
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if len(applied) != 0 {
		t.Fatalf("expected nothing to apply, got %v", applied)
	}
}

func TestRoomCatalogKeepsRequestOrder(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	u := begin(t, s, true)
	defer u.Rollback(ctx)

	list, err := u.Rooms().List(ctx, company, []rooms.RoomID{"b", "a", "b"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "b" || list[1].ID != "a" || list[0].BasePrice.Amount != 10000 {
		t.Fatalf("unexpected rooms %+v", list)
	}
	if _, err := u.Rooms().List(ctx, company, []rooms.RoomID{"zz"}); !errors.Is(err, rooms.ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
	if _, err := u.Rooms().ByID(ctx, "other", "a"); !errors.Is(err, rooms.ErrRoomNotFound) {
		t.Fatalf("rooms must be tenant scoped, got %v", err)
	}
}

func TestClaimCommitAndConflict(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	nights := []time.Time{day(t, "2025-07-01"), day(t, "2025-07-02")}

	w := begin(t, s, false)
	if err := w.Cells().Claim(ctx, company, "a", nights[1:], "res-1", "ops", time.Now()); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := w.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	w = begin(t, s, false)
	err := w.Cells().Claim(ctx, company, "a", nights, "res-2", "ops", time.Now())
	if !errors.Is(err, availability.ErrNightTaken) {
		t.Fatalf("expected ErrNightTaken, got %v", err)
	}
	_ = w.Rollback(ctx)

	r := begin(t, s, true)
	defer r.Rollback(ctx)
	cells, err := r.Cells().Range(ctx, company, []rooms.RoomID{"a"}, daterange.Span{From: nights[0], To: nights[1]})
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(cells) != 1 || cells[0].ReservationID != "res-1" || cells[0].IsAvailable || cells[0].UpdatedBy != "ops" {
		t.Fatalf("unexpected cells %+v", cells)
	}
	if err := cells[0].CheckInvariant(); err != nil {
		t.Fatalf("invariant: %v", err)
	}
}

func TestRollbackDiscardsWrites(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	d := day(t, "2025-07-01")
	w := begin(t, s, false)
	_ = w.Cells().Claim(ctx, company, "a", []time.Time{d}, "res-1", "", time.Now())
	if err := w.Rollback(ctx); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	r := begin(t, s, true)
	defer r.Rollback(ctx)
	cells, _ := r.Cells().Range(ctx, company, nil, daterange.Span{From: d, To: d})
	if len(cells) != 0 {
		t.Fatalf("rolled back claim must not persist, got %+v", cells)
	}
}

func TestReadOnlyUnitRejectsWrites(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	u := begin(t, s, true)
	defer u.Rollback(ctx)
	err := u.Cells().Claim(ctx, company, "a", []time.Time{day(t, "2025-07-01")}, "res-1", "", time.Now())
	if !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
}

func TestWriterLockTimeoutIsTransient(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	first := begin(t, s, false)
	defer first.Rollback(ctx)

	_, err := s.Begin(ctx, uow.TxOptions{LockTimeout: 20 * time.Millisecond})
	if !errors.Is(err, availability.ErrTransientStore) {
		t.Fatalf("expected transient error, got %v", err)
	}
	reader, err := s.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		t.Fatalf("readers must not wait for the writer: %v", err)
	}
	_ = reader.Rollback(ctx)
}

func TestUnblockKeepsOtherPeriods(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	d := day(t, "2025-07-01")
	w := begin(t, s, false)
	err := w.Cells().Block(ctx, company, []availability.BlockMark{
		{Room: "a", Date: d, Period: "p1", Reason: "maintenance"},
		{Room: "a", Date: d, Period: "p2", Reason: "owner"},
		{Room: "b", Date: d, Period: "p1", Reason: "maintenance"},
	}, time.Now())
	if err != nil {
		t.Fatalf("block: %v", err)
	}
	keys, err := w.Cells().Unblock(ctx, company, "p1", time.Now())
	if err != nil {
		t.Fatalf("unblock: %v", err)
	}
	if len(keys) != 2 || keys[0].Room != "a" || keys[1].Room != "b" {
		t.Fatalf("unexpected keys %+v", keys)
	}
	cells, _ := w.Cells().Range(ctx, company, nil, daterange.Span{From: d, To: d})
	if len(cells) != 2 {
		t.Fatalf("expected two cells, got %+v", cells)
	}
	if !cells[0].IsBlocked || cells[0].BlockReason != "owner" || len(cells[0].BlockedBy) != 1 {
		t.Fatalf("room a must stay blocked by p2: %+v", cells[0])
	}
	if cells[1].IsBlocked || !cells[1].IsAvailable {
		t.Fatalf("room b must reopen: %+v", cells[1])
	}
	_ = w.Rollback(ctx)
}

func TestSetPriceStoresAndClears(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	d := day(t, "2025-12-24")
	price := money.Must(15000, "USD")
	w := begin(t, s, false)
	defer w.Rollback(ctx)
	if err := w.Cells().SetPrice(ctx, company, "a", []time.Time{d}, &price, "ops", time.Now()); err != nil {
		t.Fatalf("set: %v", err)
	}
	cells, _ := w.Cells().Range(ctx, company, []rooms.RoomID{"a"}, daterange.Span{From: d, To: d})
	if len(cells) != 1 || cells[0].CustomPrice == nil || cells[0].CustomPrice.Amount != 15000 {
		t.Fatalf("expected custom price, got %+v", cells)
	}
	if err := w.Cells().SetPrice(ctx, company, "a", []time.Time{d}, nil, "ops", time.Now()); err != nil {
		t.Fatalf("clear: %v", err)
	}
	cells, _ = w.Cells().Range(ctx, company, []rooms.RoomID{"a"}, daterange.Span{From: d, To: d})
	if cells[0].CustomPrice != nil {
		t.Fatalf("expected cleared price, got %+v", cells[0].CustomPrice)
	}
}

func TestReservationVersioning(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	stay := daterange.DateRange{CheckIn: day(t, "2025-07-01"), CheckOut: day(t, "2025-07-04")}
	res := &availability.Reservation{
		ID: "res-1", Company: company, Room: "a", Stay: stay, Status: availability.StatusConfirmed,
		Guests: 2, TotalPrice: money.Must(30000, "USD"), CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	w := begin(t, s, false)
	if err := w.Reservations().Insert(ctx, res); err != nil {
		t.Fatalf("insert: %v", err)
	}
	dup := *res
	if err := w.Reservations().Insert(ctx, &dup); !errors.Is(err, availability.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	_ = w.Commit(ctx)

	w = begin(t, s, false)
	defer w.Rollback(ctx)
	got, err := w.Reservations().ByID(ctx, company, "res-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Version != 1 || !got.Stay.CheckOut.Equal(stay.CheckOut) || got.TotalPrice.Amount != 30000 {
		t.Fatalf("unexpected reservation %+v", got)
	}
	stale := *got
	got.Status = availability.StatusCancelled
	if err := w.Reservations().Save(ctx, got); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := w.Reservations().Save(ctx, &stale); !errors.Is(err, availability.ErrConcurrentUpdate) {
		t.Fatalf("expected ErrConcurrentUpdate, got %v", err)
	}
	overlap, err := w.Reservations().Overlapping(ctx, company, nil, stay)
	if err != nil || len(overlap) != 0 {
		t.Fatalf("cancelled reservation must not overlap: %v %+v", err, overlap)
	}
	if _, err := w.Reservations().ByID(ctx, "other", "res-1"); !errors.Is(err, availability.ErrReservationNotFound) {
		t.Fatalf("reservations must be tenant scoped, got %v", err)
	}
}

func TestRuleRoundTripKeepsPayload(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	room := rooms.RoomID("a")
	rule := &availability.Rule{
		ID: "min", Company: company, Room: &room, Payload: availability.MinStay{Nights: 3},
		Priority: 1, Active: true, ValidFrom: day(t, "2025-07-01"), ValidTo: day(t, "2025-07-31"),
	}
	w := begin(t, s, false)
	defer w.Rollback(ctx)
	if err := w.Rules().Save(ctx, rule); err != nil {
		t.Fatalf("save: %v", err)
	}
	inWindow, err := w.Rules().ForWindow(ctx, company, daterange.Span{From: day(t, "2025-07-30"), To: day(t, "2025-08-02")})
	if err != nil || len(inWindow) != 1 {
		t.Fatalf("expected one rule in window: %v %+v", err, inWindow)
	}
	if inWindow[0].Payload.(availability.MinStay).Nights != 3 || *inWindow[0].Room != "a" || inWindow[0].Version != 1 {
		t.Fatalf("unexpected rule %+v", inWindow[0])
	}
	outside, _ := w.Rules().ForWindow(ctx, company, daterange.Span{From: day(t, "2025-08-01"), To: day(t, "2025-08-02")})
	if len(outside) != 0 {
		t.Fatalf("expected no rules outside window, got %+v", outside)
	}
}

func TestOutboxCommitsWithUnit(t *testing.T) {
	s := newStore(t)
	box := s.Outbox()
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	rec := appoutbox.EventRecord{ID: "ev-1", Name: "reservation.created", Payload: []byte(`{}`), OccurredAt: now, Tenant: "acme", Headers: map[string]string{"company_id": "acme"}}

	unit := begin(t, s, false)
	ctx := uow.ContextWithUnitOfWork(context.Background(), unit)
	if err := box.Add(ctx, rec); err != nil {
		t.Fatalf("add: %v", err)
	}
	_ = unit.Rollback(ctx)
	if got, _ := box.Claim(context.Background(), 10, now); len(got) != 0 {
		t.Fatalf("rolled back record must not be claimable, got %+v", got)
	}

	unit = begin(t, s, false)
	ctx = uow.ContextWithUnitOfWork(context.Background(), unit)
	_ = box.Add(ctx, rec)
	if err := unit.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	got, err := box.Claim(context.Background(), 10, now)
	if err != nil || len(got) != 1 || got[0].Headers["company_id"] != "acme" {
		t.Fatalf("expected committed record: %v %+v", err, got)
	}
	if again, _ := box.Claim(context.Background(), 10, now); len(again) != 0 {
		t.Fatal("claimed record must be leased")
	}
	_ = box.MarkFailed(context.Background(), "ev-1", errors.New("broker down"), now)
	got, _ = box.Claim(context.Background(), 10, now)
	if len(got) != 1 || got[0].Attempts != 1 {
		t.Fatalf("expected retry with one attempt, got %+v", got)
	}
	_ = box.MarkSent(context.Background(), "ev-1")
	if got, _ := box.Claim(context.Background(), 10, now.Add(time.Hour)); len(got) != 0 {
		t.Fatalf("sent record must not return, got %+v", got)
	}
}
