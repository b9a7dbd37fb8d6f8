package availability

import (
	"reflect"
	"testing"
	"time"

	"innkeep/internal/domain/shared/money"
)

func TestResolveDefaultsWithoutRules(t *testing.T) {
	ec := Resolve("a", day(t, "2025-07-01"), nil)
	if ec.MinNights != 1 || ec.MaxNights != 0 || ec.ClosedToArrival || ec.ClosedToDeparture || ec.PriceOverride != nil {
		t.Fatalf("unexpected defaults %+v", ec)
	}
}

func TestResolveMinStayMaxWinsAcrossTiers(t *testing.T) {
	rules := []*Rule{
		rule("company", nil, 1, MinStay{Nights: 2}),
		rule("room", roomRef("a"), 9, MinStay{Nights: 3}),
	}
	ec := Resolve("a", day(t, "2025-07-01"), rules)
	if ec.MinNights != 3 {
		t.Fatalf("expected min nights 3, got %d", ec.MinNights)
	}
	rules[0].Payload = MinStay{Nights: 5}
	if ec := Resolve("a", day(t, "2025-07-01"), rules); ec.MinNights != 5 {
		t.Fatalf("company restriction must still combine, got %d", ec.MinNights)
	}
}

func TestResolveMaxStayTakesTightest(t *testing.T) {
	rules := []*Rule{
		rule("r1", nil, 1, MaxStay{Nights: 14}),
		rule("r2", roomRef("a"), 1, MaxStay{Nights: 7}),
	}
	if ec := Resolve("a", day(t, "2025-07-01"), rules); ec.MaxNights != 7 {
		t.Fatalf("expected max nights 7, got %d", ec.MaxNights)
	}
}

func TestResolveRoomTierBeatsCompanyRegardlessOfPriority(t *testing.T) {
	rules := []*Rule{
		rule("company", nil, 0, PriceOverride{Price: money.Must(9000, "USD")}),
		rule("room", roomRef("a"), 50, PriceOverride{Price: money.Must(12000, "USD")}),
	}
	ec := Resolve("a", day(t, "2025-07-01"), rules)
	if ec.PriceOverride == nil || ec.PriceOverride.Amount != 12000 {
		t.Fatalf("expected room override, got %+v", ec.PriceOverride)
	}
	other := Resolve("b", day(t, "2025-07-01"), rules)
	if other.PriceOverride == nil || other.PriceOverride.Amount != 9000 {
		t.Fatalf("expected company override for other rooms, got %+v", other.PriceOverride)
	}
}

func TestResolveLowerPriorityNumberWinsInTier(t *testing.T) {
	rules := []*Rule{
		rule("late", nil, 5, PriceOverride{Price: money.Must(100, "USD")}),
		rule("early", nil, 1, PriceOverride{Price: money.Must(200, "USD")}),
	}
	ec := Resolve("a", day(t, "2025-07-01"), rules)
	if ec.PriceOverride.Amount != 200 {
		t.Fatalf("expected priority 1 override, got %v", ec.PriceOverride)
	}
	want := []RuleSource{{Field: RulePriceOverride, Rule: "early"}}
	if !reflect.DeepEqual(ec.Sources, want) {
		t.Fatalf("unexpected sources %+v", ec.Sources)
	}
}

func TestResolveFiltersInactiveAndOutOfWindow(t *testing.T) {
	inactive := rule("inactive", nil, 0, ClosedToArrival{Closed: true})
	inactive.Active = false
	expired := rule("expired", nil, 0, ClosedToDeparture{Closed: true})
	expired.ValidTo = day(t, "2025-06-30")
	weekend := rule("weekend", nil, 0, MinStay{Nights: 2})
	weekend.Weekdays = []time.Weekday{time.Saturday}
	otherRoom := rule("other", roomRef("b"), 0, MinStay{Nights: 4})

	// 2025-07-01 is a Tuesday.
	ec := Resolve("a", day(t, "2025-07-01"), []*Rule{inactive, expired, weekend, otherRoom})
	if ec.ClosedToArrival || ec.ClosedToDeparture || ec.MinNights != 1 {
		t.Fatalf("expected no matching rules, got %+v", ec)
	}
	if ec := Resolve("a", day(t, "2025-07-05"), []*Rule{weekend}); ec.MinNights != 2 {
		t.Fatalf("expected saturday min stay, got %d", ec.MinNights)
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	a := rule("a", nil, 1, PriceOverride{Price: money.Must(100, "USD")})
	b := rule("b", nil, 1, PriceOverride{Price: money.Must(200, "USD")})
	first := Resolve("x", day(t, "2025-07-01"), []*Rule{b, a})
	second := Resolve("x", day(t, "2025-07-01"), []*Rule{a, b})
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("resolution depends on input order: %+v vs %+v", first, second)
	}
	if first.PriceOverride.Amount != 100 {
		t.Fatalf("expected tie broken by id, got %v", first.PriceOverride)
	}
}
