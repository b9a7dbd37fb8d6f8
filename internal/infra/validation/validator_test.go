package validation

import (
	"context"
	"errors"
	"testing"
	"time"

	"innkeep/internal/domain/availability"
)

type stayRequest struct {
	RoomID          string    `validate:"required"`
	CheckIn         time.Time `validate:"required"`
	CheckOut        time.Time `validate:"required,gtfield=CheckIn"`
	Guests          int       `validate:"gte=0,lte=100"`
	IdempotencyKeyV string    `validate:"max=4"`
}

func TestValidateMapsFieldErrors(t *testing.T) {
	in := time.Date(2025, 7, 5, 0, 0, 0, 0, time.UTC)
	err := New().Validate(context.Background(), stayRequest{
		CheckIn:         in,
		CheckOut:        in,
		Guests:          -1,
		IdempotencyKeyV: "too-long",
	})
	var verr *availability.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	want := map[string]string{
		"room_id":         "required",
		"check_out":       "must be after check_in",
		"guests":          "must be >= 0",
		"idempotency_key": "must be at most 4",
	}
	for field, msg := range want {
		if verr.Fields[field] != msg {
			t.Errorf("field %s: expected %q, got %q", field, msg, verr.Fields[field])
		}
	}
}

func TestValidatePassesValidAndNonStruct(t *testing.T) {
	v := New()
	in := time.Date(2025, 7, 5, 0, 0, 0, 0, time.UTC)
	if err := v.Validate(context.Background(), stayRequest{RoomID: "a", CheckIn: in, CheckOut: in.AddDate(0, 0, 1)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := v.Validate(context.Background(), "not a struct"); err != nil {
		t.Fatalf("non-struct messages must pass, got %v", err)
	}
}

func TestSnake(t *testing.T) {
	cases := map[string]string{"RoomID": "room_id", "CheckIn": "check_in", "HoldTTL": "hold_ttl", "Guests": "guests", "RoomIDs[0]": "room_ids[0]"}
	for in, want := range cases {
		if got := snake(in); got != want {
			t.Errorf("snake(%q) = %q, want %q", in, got, want)
		}
	}
}
