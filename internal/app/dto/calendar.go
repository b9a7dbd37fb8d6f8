package dto

import (
	"time"

	"innkeep/internal/domain/availability"
)

type Recurrence struct {
	Kind      string `json:"kind"`
	Weekdays  []int  `json:"weekdays,omitempty"`
	FromMonth int    `json:"from_month,omitempty"`
	FromDay   int    `json:"from_day,omitempty"`
	ToMonth   int    `json:"to_month,omitempty"`
	ToDay     int    `json:"to_day,omitempty"`
}

type BlockPeriod struct {
	ID            string     `json:"id"`
	RoomIDs       []string   `json:"room_ids"`
	AllRooms      bool       `json:"all_rooms"`
	Start         string     `json:"start"`
	End           string     `json:"end,omitempty"`
	Reason        string     `json:"reason"`
	Recurrence    Recurrence `json:"recurrence"`
	Active        bool       `json:"active"`
	CreatedBy     string     `json:"created_by"`
	CreatedAt     time.Time  `json:"created_at"`
	DeactivatedBy string     `json:"deactivated_by,omitempty"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
	BlockedCells  int        `json:"blocked_cells,omitempty"`
}

func MapBlockPeriod(p *availability.BlockPeriod) BlockPeriod {
	if p == nil {
		return BlockPeriod{}
	}
	roomIDs := make([]string, 0, len(p.Rooms))
	for _, r := range p.Rooms {
		roomIDs = append(roomIDs, string(r))
	}
	rec := Recurrence{
		Kind:      string(p.Recurrence.Kind),
		FromMonth: int(p.Recurrence.FromMonth),
		FromDay:   p.Recurrence.FromDay,
		ToMonth:   int(p.Recurrence.ToMonth),
		ToDay:     p.Recurrence.ToDay,
	}
	for _, wd := range p.Recurrence.Weekdays {
		rec.Weekdays = append(rec.Weekdays, int(wd))
	}
	return BlockPeriod{
		ID:            string(p.ID),
		RoomIDs:       roomIDs,
		AllRooms:      p.AllRooms(),
		Start:         formatDay(p.Start),
		End:           formatDay(p.End),
		Reason:        p.Reason,
		Recurrence:    rec,
		Active:        p.Active,
		CreatedBy:     string(p.CreatedBy),
		CreatedAt:     p.CreatedAt,
		DeactivatedBy: string(p.DeactivatedBy),
		DeactivatedAt: formatTime(p.DeactivatedAt),
	}
}

func MapBlockPeriods(list []*availability.BlockPeriod) []BlockPeriod {
	out := make([]BlockPeriod, 0, len(list))
	for _, p := range list {
		out = append(out, MapBlockPeriod(p))
	}
	return out
}

type DeactivateResult struct {
	PeriodID  string `json:"period_id"`
	Unblocked int    `json:"unblocked_cells"`
}

type PriceResult struct {
	RoomID string `json:"room_id"`
	From   string `json:"from"`
	To     string `json:"to"`
	Dates  int    `json:"dates"`
}
