package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"innkeep/internal/app/uow"
	"innkeep/internal/infra/storage/memory"
)

func TestLoadRoomFixturesSkipsInvalidRooms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rooms.json")
	data := `[
		{"company_id": "acme", "id": "101", "name": "Garden", "base_price": {"amount": 10000, "currency": "USD"}, "max_occupancy": 2},
		{"company_id": "acme", "id": "102", "base_price": {"amount": 9000, "currency": "USD"}, "active": false},
		{"company_id": "", "id": "x", "base_price": {"amount": 1, "currency": "USD"}}
	]`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	store := memory.New(memory.Options{LockTimeout: time.Second})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := loadRoomFixtures(context.Background(), path, store, logger); err != nil {
		t.Fatalf("load: %v", err)
	}

	unit, err := store.Begin(context.Background(), uow.TxOptions{ReadOnly: true})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer unit.Rollback(context.Background())
	active, err := unit.Rooms().List(context.Background(), "acme", nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 1 || active[0].ID != "101" || active[0].MaxOccupancy != 2 {
		t.Fatalf("expected only the active fixture, got %+v", active)
	}
	inactive, err := unit.Rooms().ByID(context.Background(), "acme", "102")
	if err != nil || inactive.Active {
		t.Fatalf("expected stored inactive room, got %+v %v", inactive, err)
	}
}

func TestLoadRoomFixturesMissingFile(t *testing.T) {
	store := memory.New(memory.Options{})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := loadRoomFixtures(context.Background(), filepath.Join(t.TempDir(), "none.json"), store, logger); err != nil {
		t.Fatalf("missing file must be skipped, got %v", err)
	}
}
