package availability

import (
	"errors"
	"testing"
)

func TestCellBlockTagsAreIndependent(t *testing.T) {
	c := DefaultCell(testCompany, "a", day(t, "2025-07-01"))
	if !c.AddBlock("bp-2", "maintenance") || !c.AddBlock("bp-1", "owner stay") {
		t.Fatal("expected both tags to be added")
	}
	if c.AddBlock("bp-1", "owner stay") {
		t.Fatal("re-adding a tag must be a no-op")
	}
	if c.BlockReason != "owner stay" {
		t.Fatalf("expected reason of the lowest period id, got %q", c.BlockReason)
	}
	if !c.RemoveBlock("bp-1") {
		t.Fatal("expected tag removal")
	}
	if !c.IsBlocked || c.IsAvailable || c.BlockReason != "maintenance" {
		t.Fatalf("cell must stay blocked by the other period: %+v", c)
	}
	c.RemoveBlock("bp-2")
	if c.IsBlocked || !c.IsAvailable || c.BlockReason != "" {
		t.Fatalf("cell must reopen once no tag remains: %+v", c)
	}
}

func TestUnblockKeepsReservedCellUnavailable(t *testing.T) {
	c := DefaultCell(testCompany, "a", day(t, "2025-07-01"))
	if err := c.Claim("res-1"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	c.AddBlock("bp-1", "x")
	c.RemoveBlock("bp-1")
	if c.IsAvailable {
		t.Fatal("reserved cell must not become available")
	}
	if err := c.CheckInvariant(); err != nil {
		t.Fatalf("unexpected invariant violation: %v", err)
	}
}

func TestClaimNeverOverwrites(t *testing.T) {
	c := DefaultCell(testCompany, "a", day(t, "2025-07-01"))
	if err := c.Claim("res-1"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := c.Claim("res-2"); !errors.Is(err, ErrNightTaken) {
		t.Fatalf("expected ErrNightTaken, got %v", err)
	}
	if c.ReservationID != "res-1" {
		t.Fatalf("claim overwritten: %s", c.ReservationID)
	}
	if c.Release("res-2") {
		t.Fatal("release by a different reservation must be ignored")
	}
	if !c.Release("res-1") || !c.IsAvailable {
		t.Fatalf("expected release: %+v", c)
	}
}

func TestReleaseUnderActiveBlockStaysUnavailable(t *testing.T) {
	c := DefaultCell(testCompany, "a", day(t, "2025-07-01"))
	_ = c.Claim("res-1")
	c.AddBlock("bp-1", "x")
	c.Release("res-1")
	if c.IsAvailable || !c.IsBlocked {
		t.Fatalf("blocked cell must stay unavailable after release: %+v", c)
	}
}

func TestCheckInvariantDetectsCorruption(t *testing.T) {
	cases := map[string]Cell{
		"reserved and available": {Room: "a", Date: day(t, "2025-07-01"), IsAvailable: true, ReservationID: "r"},
		"blocked and available":  {Room: "a", Date: day(t, "2025-07-01"), IsAvailable: true, IsBlocked: true, BlockedBy: []BlockTag{{Period: "bp"}}},
		"untagged block":         {Room: "a", Date: day(t, "2025-07-01"), IsBlocked: true},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			if err := c.CheckInvariant(); !errors.Is(err, ErrInvariantViolation) {
				t.Fatalf("expected invariant violation, got %v", err)
			}
		})
	}
}
