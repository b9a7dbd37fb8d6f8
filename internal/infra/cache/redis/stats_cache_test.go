package redis

import (
	"reflect"
	"testing"

	"innkeep/internal/app/outbox"
)

func TestTouchedCompanies(t *testing.T) {
	records := []outbox.EventRecord{
		{Name: "reservation.created", Tenant: "acme"},
		{Name: "calendar.blocked", Tenant: "acme"},
		{Name: "calendar.overbooking_prevented", Tenant: "globex"},
		{Name: "calendar.price_set", Tenant: "initech"},
		{Name: "reservation.cancelled"},
	}
	got := touchedCompanies(records)
	if want := []string{"acme", "initech"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestCompanyPatternEscapesGlob(t *testing.T) {
	if got := CompanyPattern("ac*me"); got != `occupancy:ac\*me:*` {
		t.Fatalf("unexpected pattern %q", got)
	}
}
