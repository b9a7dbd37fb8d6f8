package availability

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"innkeep/internal/domain/shared/money"
	"innkeep/internal/domain/tenancy"
)

func TestPayloadCodecKeepsTypedConfig(t *testing.T) {
	payloads := []RulePayload{
		MinStay{Nights: 3},
		MaxStay{Nights: 10},
		ClosedToArrival{Closed: true},
		ClosedToDeparture{Closed: true},
		PriceOverride{Price: money.Must(12000, "USD")},
	}
	for _, p := range payloads {
		data, err := EncodePayload(p)
		if err != nil {
			t.Fatalf("encode %s: %v", p.Type(), err)
		}
		got, err := DecodePayload(data)
		if err != nil {
			t.Fatalf("decode %s: %v", p.Type(), err)
		}
		if !reflect.DeepEqual(got, p) {
			t.Fatalf("expected %#v, got %#v", p, got)
		}
	}
}

func TestDecodePayloadRejectsUnknownType(t *testing.T) {
	_, err := DecodePayload([]byte(`{"type":"DISCOUNT","config":{}}`))
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNewRuleValidatesPayload(t *testing.T) {
	_, err := NewRule(RuleParams{
		ID:      "r1",
		Scope:   tenancy.Scope{Company: testCompany},
		Payload: MinStay{Nights: 0},
		Now:     time.Now(),
	})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Fields["payload.nights"] == "" {
		t.Fatalf("expected payload.nights error, got %v", err)
	}
}

func TestRuleUpdateKeepsIdentity(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r, err := NewRule(RuleParams{ID: "r1", Scope: tenancy.Scope{Company: testCompany}, Payload: MinStay{Nights: 2}, Active: true, Now: created})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	r.ClearEvents()
	err = r.Update(RuleParams{Scope: tenancy.Scope{Company: testCompany, Actor: "ops"}, Payload: MinStay{Nights: 4}, Active: true, Now: created.Add(time.Hour)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if r.ID != "r1" || !r.CreatedAt.Equal(created) || r.UpdatedBy != "ops" {
		t.Fatalf("identity changed: %+v", r)
	}
	evs := r.PendingEvents()
	if len(evs) != 1 || evs[0].EventName() != "availability.rule_upserted" {
		t.Fatalf("expected upsert event, got %v", evs)
	}
	if err := r.Update(RuleParams{Payload: nil}); err == nil {
		t.Fatal("expected validation error for missing payload")
	}
	if r.Payload.(MinStay).Nights != 4 {
		t.Fatal("failed update must not change the rule")
	}
}
