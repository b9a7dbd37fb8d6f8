package availability

import (
	"sort"
	"time"

	"innkeep/internal/domain/rooms"
	"innkeep/internal/domain/shared/money"
)

// EffectiveConstraint is the resolved rule output for one room and date.
type EffectiveConstraint struct {
	MinNights         int
	MaxNights         int // 0 means unlimited
	ClosedToArrival   bool
	ClosedToDeparture bool
	PriceOverride     *money.Money
	Sources           []RuleSource
}

// RuleSource names the rule that determined one field of the constraint.
type RuleSource struct {
	Field RuleType
	Rule  RuleID
}

// DefaultConstraint applies when no rule matches.
func DefaultConstraint() EffectiveConstraint {
	return EffectiveConstraint{MinNights: 1}
}

// Resolve computes the effective constraint for a room and date. It is deterministic for equal inputs.
func Resolve(room rooms.RoomID, date time.Time, candidates []*Rule) EffectiveConstraint {
	return resolveOrdered(date, OrderRules(room, candidates))
}

// OrderRules keeps the active rules applicable to room and sorts them into evaluation order:
// room-specific before company-wide, then ascending priority, creation time and id.
func OrderRules(room rooms.RoomID, candidates []*Rule) []*Rule {
	out := make([]*Rule, 0, len(candidates))
	for _, r := range candidates {
		if r == nil || !r.Active || r.Payload == nil || !r.AppliesToRoom(room) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.RoomSpecific() != b.RoomSpecific() {
			return a.RoomSpecific()
		}
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out
}

func resolveOrdered(date time.Time, ordered []*Rule) EffectiveConstraint {
	ec := DefaultConstraint()
	var (
		minSrc, maxSrc     RuleID
		ctaSet, ctdSet     bool
		ctaSrc, ctdSrc     RuleID
		priceSet           bool
		priceSrc           RuleID
		minMatched, maxSet bool
	)
	for _, r := range ordered {
		if !r.ValidOn(date) {
			continue
		}
		switch p := r.Payload.(type) {
		case MinStay:
			if !minMatched || p.Nights > ec.MinNights {
				ec.MinNights = p.Nights
				minSrc = r.ID
				minMatched = true
			}
		case MaxStay:
			if !maxSet || p.Nights < ec.MaxNights {
				ec.MaxNights = p.Nights
				maxSrc = r.ID
				maxSet = true
			}
		case ClosedToArrival:
			if !ctaSet {
				ec.ClosedToArrival = p.Closed
				ctaSrc = r.ID
				ctaSet = true
			}
		case ClosedToDeparture:
			if !ctdSet {
				ec.ClosedToDeparture = p.Closed
				ctdSrc = r.ID
				ctdSet = true
			}
		case PriceOverride:
			if !priceSet {
				price := p.Price
				ec.PriceOverride = &price
				priceSrc = r.ID
				priceSet = true
			}
		}
	}
	if ec.MinNights < 1 {
		ec.MinNights = 1
	}
	if minMatched {
		ec.Sources = append(ec.Sources, RuleSource{Field: RuleMinStay, Rule: minSrc})
	}
	if maxSet {
		ec.Sources = append(ec.Sources, RuleSource{Field: RuleMaxStay, Rule: maxSrc})
	}
	if ctaSet {
		ec.Sources = append(ec.Sources, RuleSource{Field: RuleClosedToArrival, Rule: ctaSrc})
	}
	if ctdSet {
		ec.Sources = append(ec.Sources, RuleSource{Field: RuleClosedToDeparture, Rule: ctdSrc})
	}
	if priceSet {
		ec.Sources = append(ec.Sources, RuleSource{Field: RulePriceOverride, Rule: priceSrc})
	}
	return ec
}
