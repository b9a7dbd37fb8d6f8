package availability

import (
	"strings"
	"time"

	"innkeep/internal/domain/rooms"
	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/shared/events"
	"innkeep/internal/domain/tenancy"
)

// DefaultHorizonDays caps the projection of open-ended periods.
const DefaultHorizonDays = 730

type BlockPeriodID string

type RecurrenceKind string

const (
	RecurNone   RecurrenceKind = "NONE"
	RecurWeekly RecurrenceKind = "WEEKLY"
	RecurAnnual RecurrenceKind = "ANNUAL"
)

// Recurrence describes how a period repeats inside its window.
// Weekly uses Weekdays; Annual uses the From/To month-day pair, which may wrap the year end.
type Recurrence struct {
	Kind      RecurrenceKind `json:"kind"`
	Weekdays  []time.Weekday `json:"weekdays,omitempty"`
	FromMonth time.Month     `json:"from_month,omitempty"`
	FromDay   int            `json:"from_day,omitempty"`
	ToMonth   time.Month     `json:"to_month,omitempty"`
	ToDay     int            `json:"to_day,omitempty"`
}

func (r Recurrence) kind() RecurrenceKind {
	if r.Kind == "" {
		return RecurNone
	}
	return r.Kind
}

func (r Recurrence) validate(v *ValidationError) {
	switch r.kind() {
	case RecurNone:
	case RecurWeekly:
		if len(r.Weekdays) == 0 {
			v.Add("recurrence.weekdays", "at least one weekday required")
		}
		for _, wd := range r.Weekdays {
			if wd < time.Sunday || wd > time.Saturday {
				v.Add("recurrence.weekdays", "weekday out of range")
			}
		}
	case RecurAnnual:
		if !validMonthDay(r.FromMonth, r.FromDay) {
			v.Add("recurrence.from", "invalid month/day")
		}
		if !validMonthDay(r.ToMonth, r.ToDay) {
			v.Add("recurrence.to", "invalid month/day")
		}
	default:
		v.Add("recurrence.kind", "unknown recurrence kind")
	}
}

func validMonthDay(m time.Month, d int) bool {
	if m < time.January || m > time.December || d < 1 {
		return false
	}
	// Feb 29 is allowed; non-leap years clamp it to Feb 28.
	return d <= daysIn(2000, m)
}

func daysIn(year int, m time.Month) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func clampedDate(year int, m time.Month, d int) time.Time {
	if max := daysIn(year, m); d > max {
		d = max
	}
	return time.Date(year, m, d, 0, 0, 0, 0, time.UTC)
}

// BlockPeriod is an operator-declared unavailable period, possibly recurring.
type BlockPeriod struct {
	ID            BlockPeriodID
	Company       tenancy.CompanyID
	Rooms         []rooms.RoomID // empty means every room of the company
	Start         time.Time
	End           time.Time // inclusive; zero means open-ended
	Reason        string
	Recurrence    Recurrence
	Active        bool
	CreatedBy     tenancy.ActorID
	CreatedAt     time.Time
	DeactivatedBy tenancy.ActorID
	DeactivatedAt time.Time
	Version       int64
	events.EventRecorder
}

type NewBlockPeriodParams struct {
	ID         BlockPeriodID
	Scope      tenancy.Scope
	Rooms      []rooms.RoomID
	Start      time.Time
	End        time.Time
	Reason     string
	Recurrence Recurrence
	Now        time.Time
}

func NewBlockPeriod(p NewBlockPeriodParams) (*BlockPeriod, error) {
	v := NewValidationError()
	if p.ID == "" {
		v.Add("id", "required")
	}
	if p.Scope.Company == "" {
		v.Add("company_id", "required")
	}
	if p.Start.IsZero() {
		v.Add("start", "required")
	}
	start := daterange.Day(p.Start)
	var end time.Time
	if !p.End.IsZero() {
		end = daterange.Day(p.End)
		if end.Before(start) {
			v.Add("end", "must not precede start")
		}
	}
	p.Recurrence.validate(v)
	seen := make(map[rooms.RoomID]struct{}, len(p.Rooms))
	roomList := make([]rooms.RoomID, 0, len(p.Rooms))
	for _, id := range p.Rooms {
		id = rooms.RoomID(strings.TrimSpace(string(id)))
		if id == "" {
			v.Add("rooms", "room id must not be empty")
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		roomList = append(roomList, id)
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(p.Reason)
	if reason == "" {
		reason = "blocked"
	}
	rec := p.Recurrence
	rec.Kind = rec.kind()
	return &BlockPeriod{
		ID:         p.ID,
		Company:    p.Scope.Company,
		Rooms:      roomList,
		Start:      start,
		End:        end,
		Reason:     reason,
		Recurrence: rec,
		Active:     true,
		CreatedBy:  p.Scope.ActorOrSystem(),
		CreatedAt:  p.Now.UTC(),
	}, nil
}

// AllRooms reports whether the period applies to every room of the company.
func (b *BlockPeriod) AllRooms() bool { return len(b.Rooms) == 0 }

// Window is the concrete projection range. It never reaches past horizonDays from Start,
// whether the period is open-ended or not.
func (b *BlockPeriod) Window(horizonDays int) daterange.Span {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	limit := b.Start.AddDate(0, 0, horizonDays-1)
	end := b.End
	if end.IsZero() || end.After(limit) {
		end = limit
	}
	return daterange.Span{From: b.Start, To: end}
}

// ExceedsHorizon reports whether an explicit end lies beyond the projection horizon.
func (b *BlockPeriod) ExceedsHorizon(horizonDays int) bool {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	return !b.End.IsZero() && daterange.DaysBetween(b.Start, b.End) >= horizonDays
}

// Occurrences projects the pattern over the window, one span per occurrence.
func (b *BlockPeriod) Occurrences(horizonDays int) []daterange.Span {
	window := b.Window(horizonDays)
	switch b.Recurrence.kind() {
	case RecurWeekly:
		return weeklyOccurrences(window, b.Recurrence.Weekdays)
	case RecurAnnual:
		return annualOccurrences(window, b.Recurrence)
	default:
		return []daterange.Span{window}
	}
}

func weeklyOccurrences(window daterange.Span, weekdays []time.Weekday) []daterange.Span {
	var set [7]bool
	for _, wd := range weekdays {
		set[wd] = true
	}
	var out []daterange.Span
	var cur *daterange.Span
	for _, d := range window.Days() {
		if !set[d.Weekday()] {
			cur = nil
			continue
		}
		if cur != nil {
			cur.To = d
			continue
		}
		out = append(out, daterange.Span{From: d, To: d})
		cur = &out[len(out)-1]
	}
	return out
}

func annualOccurrences(window daterange.Span, r Recurrence) []daterange.Span {
	var out []daterange.Span
	for year := window.From.Year() - 1; year <= window.To.Year(); year++ {
		from := clampedDate(year, r.FromMonth, r.FromDay)
		to := clampedDate(year, r.ToMonth, r.ToDay)
		if to.Before(from) {
			to = clampedDate(year+1, r.ToMonth, r.ToDay)
		}
		if span, ok := window.Intersect(daterange.Span{From: from, To: to}); ok {
			out = append(out, span)
		}
	}
	return out
}

// BlockMark is one (room, date) pair a period claims as blocked.
type BlockMark struct {
	Room   rooms.RoomID
	Date   time.Time
	Period BlockPeriodID
	Reason string
}

// Expand turns the period into concrete marks for the given rooms.
// The result is a set: each (room, date) appears once.
func (b *BlockPeriod) Expand(target []rooms.RoomID, horizonDays int) []BlockMark {
	occurrences := b.Occurrences(horizonDays)
	seen := make(map[CellKey]struct{})
	var marks []BlockMark
	for _, room := range target {
		for _, occ := range occurrences {
			for _, d := range occ.Days() {
				key := KeyOf(room, d)
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				marks = append(marks, BlockMark{Room: room, Date: d, Period: b.ID, Reason: b.Reason})
			}
		}
	}
	return marks
}

// TargetRooms resolves the period scope against the company rooms.
func (b *BlockPeriod) TargetRooms(companyRooms []rooms.RoomID) []rooms.RoomID {
	if b.AllRooms() {
		return append([]rooms.RoomID(nil), companyRooms...)
	}
	return append([]rooms.RoomID(nil), b.Rooms...)
}

// Deactivate marks the period inactive; cells are released by the caller.
func (b *BlockPeriod) Deactivate(actor tenancy.ActorID, now time.Time) error {
	if !b.Active {
		return ErrInvalidTransition
	}
	b.Active = false
	b.DeactivatedBy = actor
	b.DeactivatedAt = now.UTC()
	return nil
}

// Clone copies the period without its pending events.
func (b *BlockPeriod) Clone() *BlockPeriod {
	out := *b
	out.EventRecorder = events.EventRecorder{}
	out.Rooms = append([]rooms.RoomID(nil), b.Rooms...)
	out.Recurrence.Weekdays = append([]time.Weekday(nil), b.Recurrence.Weekdays...)
	return &out
}
