package availability

import (
	"testing"

	"innkeep/internal/domain/rooms"
)

func TestComputeStats(t *testing.T) {
	s := stay(t, "2025-07-02", "2025-07-04")
	var cells []Cell
	for _, n := range s.EachNight() {
		c := DefaultCell(testCompany, "a", n)
		_ = c.Claim("res-1")
		cells = append(cells, c)
	}
	blocked := DefaultCell(testCompany, "b", day(t, "2025-07-01"))
	blocked.AddBlock("bp-1", "maintenance")
	cells = append(cells, blocked)

	g, err := BuildGrid(GridInput{
		Company:      testCompany,
		Rooms:        []rooms.Room{testRoom("a", 10000), testRoom("b", 8000)},
		Span:         span(t, "2025-07-01", "2025-07-05"),
		Cells:        cells,
		Reservations: []*Reservation{{ID: "res-1", Room: "a", Stay: s, Status: StatusConfirmed}},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	stats, err := ComputeStats(g)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalRoomNights != 10 || stats.OccupiedNights != 2 || stats.BlockedNights != 1 || stats.AvailableNights != 7 {
		t.Fatalf("unexpected totals %+v", stats)
	}
	if stats.OccupancyRate != 0.2 {
		t.Fatalf("expected rate 0.2, got %v", stats.OccupancyRate)
	}
	if stats.Revenue.Amount != 20000 || stats.Revenue.Currency != "USD" {
		t.Fatalf("unexpected revenue %v", stats.Revenue)
	}
	if stats.Days[1].CheckIns != 1 || stats.Days[3].CheckOuts != 1 {
		t.Fatalf("unexpected boundary counts %+v", stats.Days)
	}
}

func TestComputeStatsEmptyGrid(t *testing.T) {
	stats, err := ComputeStats(Grid{Span: span(t, "2025-07-01", "2025-07-02")})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.OccupancyRate != 0 || len(stats.Days) != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}
