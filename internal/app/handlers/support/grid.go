package support

import (
	"context"
	"errors"
	"fmt"

	"innkeep/internal/app/uow"
	"innkeep/internal/domain/availability"
	"innkeep/internal/domain/rooms"
	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/tenancy"
)

// DefaultGridMaxDays bounds one grid request.
const DefaultGridMaxDays = 366

// LoadGrid builds the grid for the window with four bulk reads: rooms, cells, rules and
// reservations. The number of reads does not depend on the window length.
func LoadGrid(ctx context.Context, unit uow.UnitOfWork, company tenancy.CompanyID, roomIDs []rooms.RoomID, span daterange.Span, maxDays int) (availability.Grid, error) {
	if maxDays <= 0 {
		maxDays = DefaultGridMaxDays
	}
	if err := span.Validate(); err != nil {
		return availability.Grid{}, availability.Invalid("to", "must not precede from")
	}
	if span.Len() > maxDays {
		return availability.Grid{}, availability.Invalid("to", fmt.Sprintf("window exceeds %d days", maxDays))
	}
	roomList, err := unit.Rooms().List(ctx, company, roomIDs)
	if err != nil {
		return availability.Grid{}, MapRoomError(err)
	}
	ids := rooms.IDs(roomList)
	if len(ids) == 0 {
		return availability.Grid{Company: company, Span: span}, nil
	}
	cells, err := unit.Cells().Range(ctx, company, ids, span)
	if err != nil {
		return availability.Grid{}, err
	}
	rules, err := unit.Rules().ForWindow(ctx, company, span)
	if err != nil {
		return availability.Grid{}, err
	}
	// One day of slack on both sides catches departures on the first day and arrivals on the last.
	boundary := daterange.DateRange{CheckIn: span.From.AddDate(0, 0, -1), CheckOut: span.To.AddDate(0, 0, 1)}
	reservations, err := unit.Reservations().Overlapping(ctx, company, ids, boundary)
	if err != nil {
		return availability.Grid{}, err
	}
	return availability.BuildGrid(availability.GridInput{
		Company:      company,
		Rooms:        roomList,
		Span:         span,
		Cells:        cells,
		Rules:        rules,
		Reservations: reservations,
	})
}

// CheckStay loads the single-room grid covering the stay and evaluates it.
func CheckStay(ctx context.Context, unit uow.UnitOfWork, company tenancy.CompanyID, in availability.StayInput, maxNights int) (availability.CheckResult, error) {
	if err := in.Stay.Validate(); err != nil {
		return availability.CheckResult{}, availability.Invalid("check_out", "must be after check_in")
	}
	grid, err := LoadGrid(ctx, unit, company, []rooms.RoomID{in.Room}, in.Stay.Span(), maxNights)
	if err != nil {
		return availability.CheckResult{}, err
	}
	row, ok := grid.Row(in.Room)
	if !ok {
		return availability.CheckResult{}, availability.Invalid("room_id", "unknown room")
	}
	return availability.CheckStay(in, row)
}

// MapRoomError turns catalog misses into validation failures.
func MapRoomError(err error) error {
	if errors.Is(err, rooms.ErrRoomNotFound) {
		return availability.Invalid("room_id", "unknown room")
	}
	return err
}
