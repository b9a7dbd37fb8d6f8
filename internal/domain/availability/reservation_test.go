package availability

import (
	"errors"
	"testing"
	"time"

	"innkeep/internal/domain/shared/money"
	"innkeep/internal/domain/tenancy"
)

func newHold(t *testing.T, expires time.Time) *Reservation {
	t.Helper()
	r, err := NewReservation(NewReservationParams{
		ID:            "res-1",
		Scope:         tenancy.Scope{Company: testCompany},
		Room:          "a",
		Stay:          stay(t, "2025-07-01", "2025-07-03"),
		Guests:        2,
		TotalPrice:    money.Must(20000, "USD"),
		Hold:          true,
		HoldExpiresAt: expires,
		Now:           time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("new reservation: %v", err)
	}
	return r
}

func TestReservationLifecycle(t *testing.T) {
	r := newHold(t, time.Time{})
	if r.Status != StatusPendingHold || !r.Occupies() || r.CreatedBy != tenancy.SystemActor {
		t.Fatalf("unexpected new reservation %+v", r)
	}
	now := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	if err := r.Confirm(now); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := r.Confirm(now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if err := r.Cancel("guest request", now); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if r.Occupies() {
		t.Fatal("cancelled reservation must not occupy nights")
	}
	if err := r.Cancel("again", now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	names := []string{}
	for _, ev := range r.Drain() {
		names = append(names, ev.EventName())
	}
	if len(names) != 3 || names[0] != "reservation.created" || names[2] != "reservation.cancelled" {
		t.Fatalf("unexpected events %v", names)
	}
}

func TestConfirmExpiredHoldConflicts(t *testing.T) {
	r := newHold(t, time.Date(2025, 6, 1, 12, 15, 0, 0, time.UTC))
	err := r.Confirm(time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC))
	c, ok := IsConflict(err)
	if !ok || c.Reason != ReasonHoldExpired {
		t.Fatalf("expected hold expired conflict, got %v", err)
	}
}
