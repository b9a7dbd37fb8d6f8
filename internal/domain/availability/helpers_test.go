package availability

import (
	"testing"
	"time"

	"innkeep/internal/domain/rooms"
	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/shared/money"
	"innkeep/internal/domain/tenancy"
)

const testCompany tenancy.CompanyID = "acme"

func day(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := daterange.ParseDay(value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return d
}

func stay(t *testing.T, in, out string) daterange.DateRange {
	t.Helper()
	dr, err := daterange.New(day(t, in), day(t, out))
	if err != nil {
		t.Fatalf("stay %s..%s: %v", in, out, err)
	}
	return dr
}

func span(t *testing.T, from, to string) daterange.Span {
	t.Helper()
	s, err := daterange.NewSpan(day(t, from), day(t, to))
	if err != nil {
		t.Fatalf("span %s..%s: %v", from, to, err)
	}
	return s
}

func testRoom(id string, base int64) rooms.Room {
	return rooms.Room{
		ID:           rooms.RoomID(id),
		Company:      testCompany,
		Name:         "Room " + id,
		BasePrice:    money.Must(base, "USD"),
		Active:       true,
		MaxOccupancy: 2,
	}
}

func roomRef(id string) *rooms.RoomID {
	r := rooms.RoomID(id)
	return &r
}

func rule(id string, room *rooms.RoomID, priority int, payload RulePayload) *Rule {
	return &Rule{
		ID:        RuleID(id),
		Company:   testCompany,
		Room:      room,
		Payload:   payload,
		Priority:  priority,
		Active:    true,
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func buildRow(t *testing.T, in GridInput) GridRow {
	t.Helper()
	g, err := BuildGrid(in)
	if err != nil {
		t.Fatalf("build grid: %v", err)
	}
	if len(g.Rows) != 1 {
		t.Fatalf("expected one row, got %d", len(g.Rows))
	}
	return g.Rows[0]
}
