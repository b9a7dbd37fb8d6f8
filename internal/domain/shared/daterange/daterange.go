package daterange

import (
	"errors"
	"time"
)

var (
	ErrInvalidRange = errors.New("daterange: checkout must be after checkin")
	ErrInvalidSpan  = errors.New("daterange: span end must not precede start")
)

// Layout is the calendar date format used on the wire and in storage keys.
const Layout = "2006-01-02"

// Day truncates t to the UTC calendar day it falls on.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay reads a YYYY-MM-DD value as a UTC calendar day.
func ParseDay(value string) (time.Time, error) {
	t, err := time.Parse(Layout, value)
	if err != nil {
		return time.Time{}, err
	}
	return Day(t), nil
}

// DaysBetween returns the whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

// DateRange represents a half-open interval [checkIn, checkOut)
type DateRange struct {
	CheckIn  time.Time `json:"check_in"`
	CheckOut time.Time `json:"check_out"`
}

func New(checkIn, checkOut time.Time) (DateRange, error) {
	dr := DateRange{CheckIn: Day(checkIn), CheckOut: Day(checkOut)}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

func (dr DateRange) Validate() error {
	if dr.CheckOut.IsZero() || dr.CheckIn.IsZero() {
		return ErrInvalidRange
	}
	if !dr.CheckOut.After(dr.CheckIn) {
		return ErrInvalidRange
	}
	return nil
}

func (dr DateRange) Nights() int {
	return DaysBetween(dr.CheckIn, dr.CheckOut)
}

// EachNight lists every occupied night; the checkout day is not included.
func (dr DateRange) EachNight() []time.Time {
	n := dr.Nights()
	if n <= 0 {
		return nil
	}
	out := make([]time.Time, 0, n)
	for d := Day(dr.CheckIn); d.Before(dr.CheckOut); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// LastNight is the night before checkout.
func (dr DateRange) LastNight() time.Time {
	return Day(dr.CheckOut).AddDate(0, 0, -1)
}

// Nights as an inclusive span, handy for bulk reads.
func (dr DateRange) Span() Span {
	return Span{From: Day(dr.CheckIn), To: dr.LastNight()}
}

func (dr DateRange) Overlaps(other DateRange) bool {
	return dr.CheckIn.Before(other.CheckOut) && other.CheckIn.Before(dr.CheckOut)
}

func (dr DateRange) ContainsDate(t time.Time) bool {
	t = Day(t)
	return (t.Equal(dr.CheckIn) || t.After(dr.CheckIn)) && t.Before(dr.CheckOut)
}

// Span is an inclusive calendar window [From, To].
type Span struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func NewSpan(from, to time.Time) (Span, error) {
	s := Span{From: Day(from), To: Day(to)}
	if err := s.Validate(); err != nil {
		return Span{}, err
	}
	return s, nil
}

func (s Span) Validate() error {
	if s.From.IsZero() || s.To.IsZero() {
		return ErrInvalidSpan
	}
	if s.To.Before(s.From) {
		return ErrInvalidSpan
	}
	return nil
}

// Len is the number of calendar days covered, both ends included.
func (s Span) Len() int {
	if s.To.Before(s.From) {
		return 0
	}
	return DaysBetween(s.From, s.To) + 1
}

func (s Span) Days() []time.Time {
	n := s.Len()
	out := make([]time.Time, 0, n)
	for d := Day(s.From); !d.After(s.To); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

func (s Span) Contains(t time.Time) bool {
	t = Day(t)
	return !t.Before(s.From) && !t.After(s.To)
}

// Intersect returns the overlap of two spans, false when they are disjoint.
func (s Span) Intersect(other Span) (Span, bool) {
	from := s.From
	if other.From.After(from) {
		from = other.From
	}
	to := s.To
	if other.To.Before(to) {
		to = other.To
	}
	if to.Before(from) {
		return Span{}, false
	}
	return Span{From: from, To: to}, true
}
