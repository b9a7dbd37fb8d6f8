package dto

import (
	"encoding/json"
	"time"

	"innkeep/internal/domain/availability"
)

type Rule struct {
	ID        string          `json:"id"`
	RoomID    *string         `json:"room_id,omitempty"`
	Type      string          `json:"type"`
	Config    json.RawMessage `json:"config"`
	Priority  int             `json:"priority"`
	Active    bool            `json:"active"`
	ValidFrom string          `json:"valid_from,omitempty"`
	ValidTo   string          `json:"valid_to,omitempty"`
	Weekdays  []int           `json:"weekdays,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedBy string          `json:"updated_by"`
	UpdatedAt time.Time       `json:"updated_at"`
	Created   bool            `json:"created,omitempty"`
}

func MapRule(r *availability.Rule) Rule {
	if r == nil {
		return Rule{}
	}
	cfg, _ := json.Marshal(r.Payload)
	out := Rule{
		ID:        string(r.ID),
		Type:      string(r.Type()),
		Config:    cfg,
		Priority:  r.Priority,
		Active:    r.Active,
		ValidFrom: formatDay(r.ValidFrom),
		ValidTo:   formatDay(r.ValidTo),
		CreatedAt: r.CreatedAt,
		UpdatedBy: string(r.UpdatedBy),
		UpdatedAt: r.UpdatedAt,
	}
	if r.Room != nil {
		id := string(*r.Room)
		out.RoomID = &id
	}
	for _, wd := range r.Weekdays {
		out.Weekdays = append(out.Weekdays, int(wd))
	}
	return out
}

func MapRules(list []*availability.Rule) []Rule {
	out := make([]Rule, 0, len(list))
	for _, r := range list {
		out = append(out, MapRule(r))
	}
	return out
}
