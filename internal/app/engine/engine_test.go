package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"innkeep/internal/app/handlers/calendar"
	"innkeep/internal/app/handlers/occupancy"
	"innkeep/internal/app/handlers/reservations"
	"innkeep/internal/app/handlers/rules"
	"innkeep/internal/app/outbox"
	"innkeep/internal/app/uow"
	"innkeep/internal/domain/availability"
	"innkeep/internal/domain/rooms"
	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/shared/money"
	"innkeep/internal/domain/tenancy"
	"innkeep/internal/infra/storage/memory"
	"innkeep/internal/infra/validation"
)

var acme = tenancy.Scope{Company: "acme", Actor: "front-desk"}

type recordingSink struct {
	mu    sync.Mutex
	names []string
}

func (s *recordingSink) Deliver(_ context.Context, records []outbox.EventRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.names = append(s.names, r.Name)
	}
}

func (s *recordingSink) seen(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.names {
		if v == name {
			n++
		}
	}
	return n
}

type fixture struct {
	engine *Engine
	store  *memory.Store
	sink   *recordingSink
}

func newFixture(t *testing.T, mutate func(*Config)) fixture {
	t.Helper()
	store := memory.New(memory.Options{LockTimeout: time.Second})
	for _, r := range []rooms.Room{
		{ID: "101", Company: "acme", Name: "Garden", BasePrice: money.Must(10000, "USD"), Active: true, MaxOccupancy: 2},
		{ID: "102", Company: "acme", Name: "Sea view", BasePrice: money.Must(15000, "USD"), Active: true, MaxOccupancy: 4},
		{ID: "900", Company: "globex", Name: "Other", BasePrice: money.Must(5000, "EUR"), Active: true, MaxOccupancy: 2},
	} {
		if err := store.Save(context.Background(), r); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	sink := &recordingSink{}
	cfg := Config{
		UoWFactory:   store,
		Validator:    validation.New(),
		Idempotency:  memory.NewIdempotencyStore(time.Hour),
		Outbox:       store.Outbox(),
		Sinks:        sink,
		RetryBackoff: []time.Duration{time.Millisecond, time.Millisecond},
		Clock:        func() time.Time { return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC) },
	}
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return fixture{engine: e, store: store, sink: sink}
}

func day(t *testing.T, v string) time.Time {
	t.Helper()
	d, err := daterange.ParseDay(v)
	if err != nil {
		t.Fatalf("parse %s: %v", v, err)
	}
	return d
}

func createCmd(t *testing.T, room, in, out string) reservations.CreateReservationCommand {
	return reservations.CreateReservationCommand{Scope: acme, RoomID: room, CheckIn: day(t, in), CheckOut: day(t, out), Guests: 2}
}

func TestCheckThenCreate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	check, err := f.engine.CheckAvailability(ctx, calendar.CheckAvailabilityQuery{
		Scope: acme, RoomID: "101", CheckIn: day(t, "2025-07-01"), CheckOut: day(t, "2025-07-04"), Guests: 2,
	})
	if err != nil || !check.Available || check.TotalPrice.Amount != 30000 {
		t.Fatalf("unexpected check %+v %v", check, err)
	}
	res, err := f.engine.CreateReservation(ctx, createCmd(t, "101", "2025-07-01", "2025-07-04"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.Status != string(availability.StatusConfirmed) || res.Nights != 3 || res.TotalPrice.Amount != 30000 {
		t.Fatalf("unexpected reservation %+v", res)
	}
	if f.sink.seen("reservation.created") != 1 {
		t.Fatalf("expected created event after commit, got %v", f.sink.names)
	}
	if len(f.store.Outbox().Pending()) != 1 {
		t.Fatalf("expected one durable outbox record")
	}

	_, err = f.engine.CreateReservation(ctx, createCmd(t, "101", "2025-07-03", "2025-07-05"))
	c, ok := availability.IsConflict(err)
	if !ok || c.Reason != availability.ReasonReserved {
		t.Fatalf("expected reserved conflict, got %v", err)
	}
	if f.sink.seen("calendar.overbooking_prevented") != 1 {
		t.Fatalf("expected overbooking notice, got %v", f.sink.names)
	}
	// Back-to-back stays share the turnover day.
	if _, err := f.engine.CreateReservation(ctx, createCmd(t, "101", "2025-07-04", "2025-07-06")); err != nil {
		t.Fatalf("turnover day must be bookable: %v", err)
	}
}

func TestConcurrentCreatesExactlyOneWins(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	const writers = 8
	var wins, conflicts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.CreateReservation(ctx, createCmd(t, "102", "2025-08-10", "2025-08-13"))
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, availability.ErrConflict):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 || conflicts.Load() != writers-1 {
		t.Fatalf("expected one winner, got wins=%d conflicts=%d", wins.Load(), conflicts.Load())
	}
}

func TestCancelReleasesNightsButKeepsBlocks(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	res, err := f.engine.CreateReservation(ctx, createCmd(t, "101", "2025-07-01", "2025-07-04"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	period, err := f.engine.CreateBlockPeriod(ctx, calendar.CreateBlockPeriodCommand{
		Scope: acme, RoomIDs: []string{"101"}, Start: day(t, "2025-07-02"), End: day(t, "2025-07-02"), Reason: "plumbing",
	})
	if err != nil || period.BlockedCells != 1 {
		t.Fatalf("block: %+v %v", period, err)
	}
	cancelled, err := f.engine.CancelReservation(ctx, reservations.CancelReservationCommand{Scope: acme, ReservationID: res.ID, Reason: "guest"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(cancelled.Released) != 3 {
		t.Fatalf("expected three released nights, got %v", cancelled.Released)
	}
	free, _ := f.engine.CheckAvailability(ctx, calendar.CheckAvailabilityQuery{Scope: acme, RoomID: "101", CheckIn: day(t, "2025-07-01"), CheckOut: day(t, "2025-07-02")})
	if !free.Available {
		t.Fatalf("released night must be bookable: %+v", free)
	}
	blocked, _ := f.engine.CheckAvailability(ctx, calendar.CheckAvailabilityQuery{Scope: acme, RoomID: "101", CheckIn: day(t, "2025-07-02"), CheckOut: day(t, "2025-07-03")})
	if blocked.Available || blocked.Reason != availability.ReasonBlocked {
		t.Fatalf("blocked night must stay closed: %+v", blocked)
	}

	if _, err := f.engine.DeactivateBlockPeriod(ctx, calendar.DeactivateBlockPeriodCommand{Scope: acme, PeriodID: period.ID}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	open, _ := f.engine.CheckAvailability(ctx, calendar.CheckAvailabilityQuery{Scope: acme, RoomID: "101", CheckIn: day(t, "2025-07-02"), CheckOut: day(t, "2025-07-03")})
	if !open.Available {
		t.Fatalf("deactivated period must reopen the night: %+v", open)
	}
}

type countingFactory struct {
	inner uow.UoWFactory
	reads *atomic.Int32
}

func (f countingFactory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	u, err := f.inner.Begin(ctx, opts)
	if err != nil {
		return nil, err
	}
	return countingUnit{UnitOfWork: u, reads: f.reads}, nil
}

type countingUnit struct {
	uow.UnitOfWork
	reads *atomic.Int32
}

func (u countingUnit) Rooms() rooms.Catalog {
	return countingRooms{Catalog: u.UnitOfWork.Rooms(), reads: u.reads}
}

func (u countingUnit) Cells() availability.CellRepository {
	return countingCells{CellRepository: u.UnitOfWork.Cells(), reads: u.reads}
}

func (u countingUnit) Rules() availability.RuleRepository {
	return countingRules{RuleRepository: u.UnitOfWork.Rules(), reads: u.reads}
}

func (u countingUnit) Reservations() availability.ReservationRepository {
	return countingReservations{ReservationRepository: u.UnitOfWork.Reservations(), reads: u.reads}
}

type countingRooms struct {
	rooms.Catalog
	reads *atomic.Int32
}

func (c countingRooms) List(ctx context.Context, company tenancy.CompanyID, ids []rooms.RoomID) ([]rooms.Room, error) {
	c.reads.Add(1)
	return c.Catalog.List(ctx, company, ids)
}

type countingCells struct {
	availability.CellRepository
	reads *atomic.Int32
}

func (c countingCells) Range(ctx context.Context, company tenancy.CompanyID, ids []rooms.RoomID, span daterange.Span) ([]availability.Cell, error) {
	c.reads.Add(1)
	return c.CellRepository.Range(ctx, company, ids, span)
}

type countingRules struct {
	availability.RuleRepository
	reads *atomic.Int32
}

func (c countingRules) ForWindow(ctx context.Context, company tenancy.CompanyID, span daterange.Span) ([]*availability.Rule, error) {
	c.reads.Add(1)
	return c.RuleRepository.ForWindow(ctx, company, span)
}

type countingReservations struct {
	availability.ReservationRepository
	reads *atomic.Int32
}

func (c countingReservations) Overlapping(ctx context.Context, company tenancy.CompanyID, ids []rooms.RoomID, stay daterange.DateRange) ([]*availability.Reservation, error) {
	c.reads.Add(1)
	return c.ReservationRepository.Overlapping(ctx, company, ids, stay)
}

func TestGridUsesFourReadsRegardlessOfWindow(t *testing.T) {
	var reads atomic.Int32
	f := newFixture(t, func(cfg *Config) {
		cfg.UoWFactory = countingFactory{inner: cfg.UoWFactory, reads: &reads}
	})
	ctx := context.Background()
	for _, to := range []string{"2025-01-07", "2025-12-31"} {
		reads.Store(0)
		grid, err := f.engine.BuildGrid(ctx, calendar.BuildGridQuery{Scope: acme, From: day(t, "2025-01-01"), To: day(t, to)})
		if err != nil {
			t.Fatalf("grid: %v", err)
		}
		if len(grid.Rooms) != 2 {
			t.Fatalf("expected the two acme rooms, got %d", len(grid.Rooms))
		}
		if reads.Load() != 4 {
			t.Fatalf("window to %s: expected 4 reads, got %d", to, reads.Load())
		}
	}
}

func TestIdempotentCreateReplays(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	cmd := createCmd(t, "101", "2025-09-01", "2025-09-03")
	cmd.IdempotencyKeyV = "req-42"
	first, err := f.engine.CreateReservation(ctx, cmd)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := f.engine.CreateReservation(ctx, cmd)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("replay returned a new reservation %s != %s", second.ID, first.ID)
	}
	if f.sink.seen("reservation.created") != 1 {
		t.Fatalf("replay must not emit events again: %v", f.sink.names)
	}
}

func TestRetryExhaustionIsTransientConflict(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.store.FailNextCommits(1)
	if _, err := f.engine.CreateReservation(ctx, createCmd(t, "101", "2025-10-01", "2025-10-02")); err != nil {
		t.Fatalf("a single transient failure must be retried: %v", err)
	}

	f.store.FailNextCommits(10)
	_, err := f.engine.CreateReservation(ctx, createCmd(t, "102", "2025-10-01", "2025-10-02"))
	c, ok := availability.IsConflict(err)
	if !ok || !c.Transient || c.Reason != availability.ReasonStoreBusy {
		t.Fatalf("expected transient store_busy conflict, got %v", err)
	}
	f.store.FailNextCommits(0)
}

func TestTenantIsolation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.engine.CheckAvailability(ctx, calendar.CheckAvailabilityQuery{RoomID: "101", CheckIn: day(t, "2025-07-01"), CheckOut: day(t, "2025-07-02")})
	if !errors.Is(err, availability.ErrValidation) {
		t.Fatalf("missing company must fail validation, got %v", err)
	}
	globex := tenancy.Scope{Company: "globex"}
	_, err = f.engine.CheckAvailability(ctx, calendar.CheckAvailabilityQuery{Scope: globex, RoomID: "101", CheckIn: day(t, "2025-07-01"), CheckOut: day(t, "2025-07-02")})
	if !errors.Is(err, availability.ErrValidation) {
		t.Fatalf("another company's room must be unknown, got %v", err)
	}
	res, err := f.engine.CreateReservation(ctx, createCmd(t, "101", "2025-07-01", "2025-07-02"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.engine.GetReservation(ctx, reservations.GetReservationQuery{Scope: globex, ReservationID: res.ID}); !errors.Is(err, availability.ErrReservationNotFound) {
		t.Fatalf("reservation leaked across tenants: %v", err)
	}
}

func TestRulesShapeAvailability(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	room := "101"
	_, err := f.engine.UpsertRule(ctx, rules.UpsertRuleCommand{
		Scope: acme, RoomID: &room, Type: string(availability.RuleMinStay), Config: []byte(`{"nights":3}`), Priority: 1,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	_, err = f.engine.CreateReservation(ctx, createCmd(t, "101", "2025-07-01", "2025-07-03"))
	if c, ok := availability.IsConflict(err); !ok || c.Reason != availability.ReasonMinStay {
		t.Fatalf("expected min stay conflict, got %v", err)
	}
	if _, err := f.engine.CreateReservation(ctx, createCmd(t, "102", "2025-07-01", "2025-07-03")); err != nil {
		t.Fatalf("room-specific rule must not apply to other rooms: %v", err)
	}
	list, err := f.engine.ListRules(ctx, rules.ListRulesQuery{Scope: acme})
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one rule, got %v %v", list, err)
	}

	_, err = f.engine.UpsertRule(ctx, rules.UpsertRuleCommand{Scope: acme, Type: "DISCOUNT", Config: []byte(`{}`)})
	if !errors.Is(err, availability.ErrValidation) {
		t.Fatalf("unknown rule type must fail validation, got %v", err)
	}
}

func TestPriceOverrideFlowsIntoStats(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	price := money.Must(20000, "USD")
	if _, err := f.engine.SetDatePrice(ctx, calendar.SetDatePriceCommand{
		Scope: acme, RoomID: "101", From: day(t, "2025-07-01"), To: day(t, "2025-07-02"), Price: &price,
	}); err != nil {
		t.Fatalf("set price: %v", err)
	}
	eur := money.Must(100, "EUR")
	_, err := f.engine.SetDatePrice(ctx, calendar.SetDatePriceCommand{Scope: acme, RoomID: "101", From: day(t, "2025-07-01"), To: day(t, "2025-07-01"), Price: &eur})
	if !errors.Is(err, availability.ErrValidation) {
		t.Fatalf("foreign currency must be rejected, got %v", err)
	}
	res, err := f.engine.CreateReservation(ctx, createCmd(t, "101", "2025-07-01", "2025-07-04"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.TotalPrice.Amount != 50000 {
		t.Fatalf("expected 2 overridden nights + 1 base, got %d", res.TotalPrice.Amount)
	}
	stats, err := f.engine.ComputeOccupancyStats(ctx, occupancy.ComputeStatsQuery{Scope: acme, From: day(t, "2025-07-01"), To: day(t, "2025-07-04")})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.OccupiedNights != 3 || stats.Revenue.Amount != 50000 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestStatsForCompanyWithoutRooms(t *testing.T) {
	f := newFixture(t, nil)
	initech := tenancy.Scope{Company: "initech", Actor: "ops"}
	stats, err := f.engine.ComputeOccupancyStats(context.Background(), occupancy.ComputeStatsQuery{
		Scope: initech, From: day(t, "2025-07-01"), To: day(t, "2025-07-04"),
	})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Rooms != 0 || stats.TotalRoomNights != 0 || stats.OccupancyRate != 0 || !stats.Revenue.IsZero() {
		t.Fatalf("expected zero stats, got %+v", stats)
	}
	if len(stats.Days) != 4 {
		t.Fatalf("expected one entry per day, got %d", len(stats.Days))
	}
}

func TestBlockPeriodBeyondHorizonIsRejected(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.HorizonDays = 730 })
	_, err := f.engine.CreateBlockPeriod(context.Background(), calendar.CreateBlockPeriodCommand{
		Scope:      acme,
		Start:      day(t, "2025-01-01"),
		End:        day(t, "2325-01-01"),
		Recurrence: availability.Recurrence{Kind: availability.RecurWeekly, Weekdays: []time.Weekday{time.Saturday}},
	})
	if !errors.Is(err, availability.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if f.sink.seen("calendar.blocked") != 0 {
		t.Fatal("rejected period must not emit events")
	}
}

func TestHoldConfirm(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	cmd := createCmd(t, "102", "2025-07-01", "2025-07-02")
	cmd.Hold, cmd.HoldTTL = true, 15*time.Minute
	hold, err := f.engine.CreateReservation(ctx, cmd)
	if err != nil || hold.Status != string(availability.StatusPendingHold) {
		t.Fatalf("hold: %+v %v", hold, err)
	}
	confirmed, err := f.engine.ConfirmReservation(ctx, reservations.ConfirmReservationCommand{Scope: acme, ReservationID: hold.ID})
	if err != nil || confirmed.Status != string(availability.StatusConfirmed) {
		t.Fatalf("confirm: %+v %v", confirmed, err)
	}
}
