package availability

import (
	"encoding/json"
	"fmt"
	"time"

	"innkeep/internal/domain/rooms"
	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/shared/events"
	"innkeep/internal/domain/shared/money"
	"innkeep/internal/domain/tenancy"
)

type RuleID string

type RuleType string

const (
	RuleMinStay           RuleType = "MIN_STAY"
	RuleMaxStay           RuleType = "MAX_STAY"
	RuleClosedToArrival   RuleType = "CLOSED_TO_ARRIVAL"
	RuleClosedToDeparture RuleType = "CLOSED_TO_DEPARTURE"
	RulePriceOverride     RuleType = "PRICE_OVERRIDE"
)

// RulePayload is the typed configuration of a rule. Exactly one implementation exists per RuleType.
type RulePayload interface {
	Type() RuleType
	validate(v *ValidationError)
}

type MinStay struct {
	Nights int `json:"nights"`
}

func (MinStay) Type() RuleType { return RuleMinStay }

func (p MinStay) validate(v *ValidationError) {
	if p.Nights < 1 {
		v.Add("payload.nights", "must be at least 1")
	}
}

type MaxStay struct {
	Nights int `json:"nights"`
}

func (MaxStay) Type() RuleType { return RuleMaxStay }

func (p MaxStay) validate(v *ValidationError) {
	if p.Nights < 1 {
		v.Add("payload.nights", "must be at least 1")
	}
}

type ClosedToArrival struct {
	Closed bool `json:"closed"`
}

func (ClosedToArrival) Type() RuleType { return RuleClosedToArrival }

func (ClosedToArrival) validate(*ValidationError) {}

type ClosedToDeparture struct {
	Closed bool `json:"closed"`
}

func (ClosedToDeparture) Type() RuleType { return RuleClosedToDeparture }

func (ClosedToDeparture) validate(*ValidationError) {}

type PriceOverride struct {
	Price money.Money `json:"price"`
}

func (PriceOverride) Type() RuleType { return RulePriceOverride }

func (p PriceOverride) validate(v *ValidationError) {
	if err := p.Price.Validate(); err != nil {
		v.Add("payload.price", err.Error())
	}
}

type payloadEnvelope struct {
	Type   RuleType        `json:"type"`
	Config json.RawMessage `json:"config"`
}

// EncodePayload stores a payload as {"type": ..., "config": {...}}.
func EncodePayload(p RulePayload) ([]byte, error) {
	if p == nil {
		return nil, Invalid("payload", "required")
	}
	cfg, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return json.Marshal(payloadEnvelope{Type: p.Type(), Config: cfg})
}

// DecodePayload reverses EncodePayload. Unknown types are rejected.
func DecodePayload(data []byte) (RulePayload, error) {
	var env payloadEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("availability: decode rule payload: %w", err)
	}
	return DecodeTypedPayload(env.Type, env.Config)
}

// DecodeTypedPayload builds the payload for a known type from its raw config.
func DecodeTypedPayload(t RuleType, config []byte) (RulePayload, error) {
	if len(config) == 0 {
		config = []byte("{}")
	}
	var (
		p   RulePayload
		err error
	)
	switch t {
	case RuleMinStay:
		var c MinStay
		err = json.Unmarshal(config, &c)
		p = c
	case RuleMaxStay:
		var c MaxStay
		err = json.Unmarshal(config, &c)
		p = c
	case RuleClosedToArrival:
		var c ClosedToArrival
		err = json.Unmarshal(config, &c)
		p = c
	case RuleClosedToDeparture:
		var c ClosedToDeparture
		err = json.Unmarshal(config, &c)
		p = c
	case RulePriceOverride:
		var c PriceOverride
		err = json.Unmarshal(config, &c)
		p = c
	default:
		return nil, Invalid("type", fmt.Sprintf("unknown rule type %q", t))
	}
	if err != nil {
		return nil, Invalid("config", err.Error())
	}
	return p, nil
}

// Rule is a priority-ordered constraint or price override for a room (or every room) and date.
type Rule struct {
	ID        RuleID
	Company   tenancy.CompanyID
	Room      *rooms.RoomID // nil applies to all rooms of the company
	Payload   RulePayload
	Priority  int
	Active    bool
	ValidFrom time.Time // zero means unbounded
	ValidTo   time.Time // inclusive; zero means unbounded
	Weekdays  []time.Weekday
	CreatedAt time.Time
	UpdatedBy tenancy.ActorID
	UpdatedAt time.Time
	Version   int64
	events.EventRecorder
}

func (r *Rule) Type() RuleType {
	if r.Payload == nil {
		return ""
	}
	return r.Payload.Type()
}

func (r *Rule) RoomSpecific() bool { return r.Room != nil }

func (r *Rule) AppliesToRoom(room rooms.RoomID) bool {
	return r.Room == nil || *r.Room == room
}

// ValidOn reports whether the validity window and weekday filter include the date.
func (r *Rule) ValidOn(date time.Time) bool {
	d := daterange.Day(date)
	if !r.ValidFrom.IsZero() && d.Before(daterange.Day(r.ValidFrom)) {
		return false
	}
	if !r.ValidTo.IsZero() && d.After(daterange.Day(r.ValidTo)) {
		return false
	}
	if len(r.Weekdays) == 0 {
		return true
	}
	for _, wd := range r.Weekdays {
		if wd == d.Weekday() {
			return true
		}
	}
	return false
}

// Overlaps reports whether the validity window intersects the span.
func (r *Rule) Overlaps(span daterange.Span) bool {
	if !r.ValidFrom.IsZero() && daterange.Day(r.ValidFrom).After(span.To) {
		return false
	}
	if !r.ValidTo.IsZero() && daterange.Day(r.ValidTo).Before(span.From) {
		return false
	}
	return true
}

func (r *Rule) Validate() error {
	v := NewValidationError()
	if r.ID == "" {
		v.Add("id", "required")
	}
	if r.Company == "" {
		v.Add("company_id", "required")
	}
	if r.Room != nil && *r.Room == "" {
		v.Add("room_id", "must not be empty when set")
	}
	if r.Payload == nil {
		v.Add("payload", "required")
	} else {
		r.Payload.validate(v)
	}
	if r.Priority < 0 {
		v.Add("priority", "must not be negative")
	}
	if !r.ValidFrom.IsZero() && !r.ValidTo.IsZero() && r.ValidTo.Before(r.ValidFrom) {
		v.Add("valid_to", "must not precede valid_from")
	}
	for _, wd := range r.Weekdays {
		if wd < time.Sunday || wd > time.Saturday {
			v.Add("weekdays", "weekday out of range")
		}
	}
	return v.OrNil()
}

type RuleParams struct {
	ID        RuleID
	Scope     tenancy.Scope
	Room      *rooms.RoomID
	Payload   RulePayload
	Priority  int
	Active    bool
	ValidFrom time.Time
	ValidTo   time.Time
	Weekdays  []time.Weekday
	Now       time.Time
}

// NewRule builds and validates a fresh rule.
func NewRule(p RuleParams) (*Rule, error) {
	r := &Rule{
		ID:        p.ID,
		Company:   p.Scope.Company,
		Room:      p.Room,
		Payload:   p.Payload,
		Priority:  p.Priority,
		Active:    p.Active,
		Weekdays:  append([]time.Weekday(nil), p.Weekdays...),
		CreatedAt: p.Now.UTC(),
		UpdatedBy: p.Scope.ActorOrSystem(),
		UpdatedAt: p.Now.UTC(),
	}
	if !p.ValidFrom.IsZero() {
		r.ValidFrom = daterange.Day(p.ValidFrom)
	}
	if !p.ValidTo.IsZero() {
		r.ValidTo = daterange.Day(p.ValidTo)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	r.recordUpsert(true)
	return r, nil
}

func (r *Rule) recordUpsert(created bool) {
	r.Record(RuleUpserted{Company: r.Company, RuleID: r.ID, Type: r.Type(), Room: r.Room, Active: r.Active, Created: created, At: r.UpdatedAt})
}

// Update replaces the mutable fields of an existing rule, keeping its identity and creation time.
func (r *Rule) Update(p RuleParams) error {
	next := *r
	next.EventRecorder = events.EventRecorder{}
	next.Room = p.Room
	next.Payload = p.Payload
	next.Priority = p.Priority
	next.Active = p.Active
	next.ValidFrom, next.ValidTo = time.Time{}, time.Time{}
	if !p.ValidFrom.IsZero() {
		next.ValidFrom = daterange.Day(p.ValidFrom)
	}
	if !p.ValidTo.IsZero() {
		next.ValidTo = daterange.Day(p.ValidTo)
	}
	next.Weekdays = append([]time.Weekday(nil), p.Weekdays...)
	if err := next.Validate(); err != nil {
		return err
	}
	r.Room, r.Payload, r.Priority, r.Active = next.Room, next.Payload, next.Priority, next.Active
	r.ValidFrom, r.ValidTo, r.Weekdays = next.ValidFrom, next.ValidTo, next.Weekdays
	r.UpdatedBy = p.Scope.ActorOrSystem()
	r.UpdatedAt = p.Now.UTC()
	r.recordUpsert(false)
	return nil
}

// Clone copies the rule without its pending events.
func (r *Rule) Clone() *Rule {
	out := *r
	out.EventRecorder = events.EventRecorder{}
	if r.Room != nil {
		room := *r.Room
		out.Room = &room
	}
	out.Weekdays = append([]time.Weekday(nil), r.Weekdays...)
	return &out
}
