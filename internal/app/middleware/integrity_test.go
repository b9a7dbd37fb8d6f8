package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"innkeep/internal/app/commands"
	"innkeep/internal/app/queries"
	"innkeep/internal/domain/availability"
)

type releaseNights struct{}

func (releaseNights) Key() string { return "test.release_nights" }

type readGrid struct{}

func (readGrid) Key() string { return "test.read_grid" }

func corrupted() error {
	return &availability.InvariantViolation{
		Company: "acme", Room: "101", Date: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), Detail: "reserved cell marked available",
	}
}

func decodeRecords(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		rec := map[string]any{}
		if err := dec.Decode(&rec); err != nil {
			t.Fatalf("decode log: %v", err)
		}
		out = append(out, rec)
	}
	return out
}

func TestIntegrityAlertsLogsCommandViolations(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler[releaseNights, any](bus, commands.HandlerFunc[releaseNights, any](
		func(context.Context, releaseNights) (any, error) { return nil, corrupted() },
	))
	chain := ChainCommands(bus, IntegrityAlerts(logger))

	_, err := chain.Dispatch(context.Background(), releaseNights{})
	var iv *availability.InvariantViolation
	if !errors.As(err, &iv) {
		t.Fatalf("violation must pass through, got %v", err)
	}
	records := decodeRecords(t, &buf)
	if len(records) != 1 {
		t.Fatalf("expected one alert, got %d", len(records))
	}
	rec := records[0]
	if rec["alert"] != AlertDataIntegrity || rec["message"] != "test.release_nights" || rec["room_id"] != "101" || rec["date"] != "2025-07-01" {
		t.Fatalf("unexpected alert record %v", rec)
	}
}

func TestIntegrityAlertsIgnoresOtherErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler[releaseNights, any](bus, commands.HandlerFunc[releaseNights, any](
		func(context.Context, releaseNights) (any, error) { return nil, availability.ErrReservationNotFound },
	))
	chain := ChainCommands(bus, IntegrityAlerts(logger))

	if _, err := chain.Dispatch(context.Background(), releaseNights{}); !errors.Is(err, availability.ErrReservationNotFound) {
		t.Fatalf("unexpected error %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no alert, got %s", buf.String())
	}
}

func TestQueryIntegrityAlertsLogsViolations(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	bus := queries.NewInMemoryBus()
	queries.RegisterHandler[readGrid, any](bus, queries.HandlerFunc[readGrid, any](
		func(context.Context, readGrid) (any, error) { return nil, corrupted() },
	))
	chain := ChainQueries(bus, QueryIntegrityAlerts(logger))

	if _, err := chain.Ask(context.Background(), readGrid{}); err == nil {
		t.Fatal("expected error")
	}
	records := decodeRecords(t, &buf)
	if len(records) != 1 || records[0]["alert"] != AlertDataIntegrity || records[0]["company_id"] != "acme" {
		t.Fatalf("unexpected alert records %v", records)
	}
}
