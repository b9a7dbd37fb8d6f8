package availability

import (
	"time"

	"innkeep/internal/domain/rooms"
	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/shared/money"
	"innkeep/internal/domain/tenancy"
)

type PriceSource string

const (
	PriceFromCell PriceSource = "cell"
	PriceFromRule PriceSource = "rule"
	PriceFromBase PriceSource = "base"
)

// GridCell is the computed view of one room-night.
type GridCell struct {
	Date          time.Time
	Available     bool
	Blocked       bool
	BlockReason   string
	ReservationID ReservationID
	Price         money.Money
	PriceSource   PriceSource
	Constraint    EffectiveConstraint
	// CheckIn and CheckOut flag reservation boundaries falling on this date.
	CheckIn  []ReservationID
	CheckOut []ReservationID
}

type GridRow struct {
	Room  rooms.Room
	Cells []GridCell
}

// Nights returns the cells of the stay nights, or false when the row does not cover them all.
func (r GridRow) Nights(stay daterange.DateRange) ([]GridCell, bool) {
	if len(r.Cells) == 0 {
		return nil, false
	}
	start := daterange.DaysBetween(r.Cells[0].Date, stay.CheckIn)
	n := stay.Nights()
	if start < 0 || n <= 0 || start+n > len(r.Cells) {
		return nil, false
	}
	return r.Cells[start : start+n], true
}

// Grid is the transient rooms × dates matrix for a window. It is never persisted.
type Grid struct {
	Company tenancy.CompanyID
	Span    daterange.Span
	Rows    []GridRow
}

func (g Grid) Row(room rooms.RoomID) (GridRow, bool) {
	for _, row := range g.Rows {
		if row.Room.ID == room {
			return row, true
		}
	}
	return GridRow{}, false
}

// GridInput holds the results of the bulk reads for one window.
type GridInput struct {
	Company      tenancy.CompanyID
	Rooms        []rooms.Room
	Span         daterange.Span
	Cells        []Cell
	Rules        []*Rule
	Reservations []*Reservation
}

// BuildGrid merges persisted cells, resolved rules and reservations into the grid.
// Cells absent from the input are default-constructed. Any corrupted cell aborts the build.
func BuildGrid(in GridInput) (Grid, error) {
	if err := in.Span.Validate(); err != nil {
		return Grid{}, Invalid("span", err.Error())
	}
	idx := IndexCells(in.Cells)
	arrivals, departures := boundaries(in.Span, in.Reservations)
	days := in.Span.Days()

	grid := Grid{Company: in.Company, Span: in.Span, Rows: make([]GridRow, 0, len(in.Rooms))}
	for _, room := range in.Rooms {
		ordered := OrderRules(room.ID, in.Rules)
		row := GridRow{Room: room, Cells: make([]GridCell, 0, len(days))}
		for _, d := range days {
			cell := idx.At(in.Company, room.ID, d)
			if cell.Company == "" {
				cell.Company = in.Company
			}
			if err := cell.CheckInvariant(); err != nil {
				return Grid{}, err
			}
			constraint := resolveOrdered(d, ordered)
			price, source, err := effectivePrice(room, cell, constraint)
			if err != nil {
				return Grid{}, err
			}
			key := KeyOf(room.ID, d)
			row.Cells = append(row.Cells, GridCell{
				Date:          d,
				Available:     cell.Open(),
				Blocked:       cell.IsBlocked,
				BlockReason:   cell.BlockReason,
				ReservationID: cell.ReservationID,
				Price:         price,
				PriceSource:   source,
				Constraint:    constraint,
				CheckIn:       arrivals[key],
				CheckOut:      departures[key],
			})
		}
		grid.Rows = append(grid.Rows, row)
	}
	return grid, nil
}

// effectivePrice applies cell price, then rule override, then the room base price.
func effectivePrice(room rooms.Room, cell Cell, c EffectiveConstraint) (money.Money, PriceSource, error) {
	price, source := room.BasePrice, PriceFromBase
	switch {
	case cell.CustomPrice != nil:
		price, source = *cell.CustomPrice, PriceFromCell
	case c.PriceOverride != nil:
		price, source = *c.PriceOverride, PriceFromRule
	}
	if room.BasePrice.Currency != "" && !price.SameCurrency(room.BasePrice) {
		return money.Money{}, "", &InvariantViolation{
			Company: cell.Company, Room: room.ID, Date: cell.Date,
			Detail: "price currency " + price.Currency + " differs from room currency " + room.BasePrice.Currency,
		}
	}
	return price, source, nil
}

func boundaries(span daterange.Span, list []*Reservation) (map[CellKey][]ReservationID, map[CellKey][]ReservationID) {
	in := map[CellKey][]ReservationID{}
	out := map[CellKey][]ReservationID{}
	for _, r := range list {
		if r == nil || !r.Occupies() {
			continue
		}
		if span.Contains(r.Stay.CheckIn) {
			k := KeyOf(r.Room, r.Stay.CheckIn)
			in[k] = append(in[k], r.ID)
		}
		if span.Contains(r.Stay.CheckOut) {
			k := KeyOf(r.Room, r.Stay.CheckOut)
			out[k] = append(out[k], r.ID)
		}
	}
	return in, out
}
