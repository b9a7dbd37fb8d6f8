package availability

import (
	"time"

	"innkeep/internal/domain/rooms"
	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/shared/money"
)

// Failure reasons reported by CheckStay and the writer.
const (
	ReasonRoomInactive      = "room_inactive"
	ReasonOverCapacity      = "over_capacity"
	ReasonBlocked           = "blocked"
	ReasonReserved          = "reserved"
	ReasonMinStay           = "min_stay"
	ReasonMaxStay           = "max_stay"
	ReasonClosedToArrival   = "closed_to_arrival"
	ReasonClosedToDeparture = "closed_to_departure"
	ReasonConcurrentWriter  = "concurrent_writer"
	ReasonHoldExpired       = "hold_expired"
	ReasonStoreBusy         = "store_busy"
)

type StayInput struct {
	Room    rooms.RoomID
	Stay    daterange.DateRange
	Exclude ReservationID
	Guests  int
}

// CheckResult answers whether one stay can be booked and at what price.
type CheckResult struct {
	Room              rooms.RoomID
	Stay              daterange.DateRange
	Available         bool
	Reason            string
	Violations        []string
	BlockedDates      []time.Time
	ReservedDates     []time.Time
	TotalPrice        money.Money
	MinNightsRequired int
	MaxNightsAllowed  int
	Nights            int
}

// CheckStay evaluates a stay against the grid row covering its nights. It never mutates state.
func CheckStay(in StayInput, row GridRow) (CheckResult, error) {
	if err := in.Stay.Validate(); err != nil {
		return CheckResult{}, Invalid("check_out", "must be after check_in")
	}
	nights, ok := row.Nights(in.Stay)
	if !ok {
		return CheckResult{}, Invalid("stay", "grid row does not cover the stay")
	}
	res := CheckResult{
		Room:              in.Room,
		Stay:              in.Stay,
		Nights:            len(nights),
		MinNightsRequired: 1,
		TotalPrice:        money.Zero(row.Room.BasePrice.Currency),
	}
	violated := map[string]bool{}
	violate := func(reason string) {
		if !violated[reason] {
			violated[reason] = true
			res.Violations = append(res.Violations, reason)
		}
	}

	if !row.Room.Active {
		violate(ReasonRoomInactive)
	}
	if in.Guests > 0 && row.Room.MaxOccupancy > 0 && in.Guests > row.Room.MaxOccupancy {
		violate(ReasonOverCapacity)
	}

	lastNight := in.Stay.LastNight()
	for _, c := range nights {
		// A night can be blocked and held by another reservation at once; it is listed under both.
		if c.Blocked || (c.ReservationID == "" && !c.Available) {
			res.BlockedDates = append(res.BlockedDates, c.Date)
			violate(ReasonBlocked)
		}
		if c.ReservationID != "" && c.ReservationID != in.Exclude {
			res.ReservedDates = append(res.ReservedDates, c.Date)
			violate(ReasonReserved)
		}
		if c.Constraint.MinNights > res.MinNightsRequired {
			res.MinNightsRequired = c.Constraint.MinNights
		}
		if max := c.Constraint.MaxNights; max > 0 && (res.MaxNightsAllowed == 0 || max < res.MaxNightsAllowed) {
			res.MaxNightsAllowed = max
		}
		if c.Constraint.ClosedToArrival && c.Date.Equal(in.Stay.CheckIn) {
			violate(ReasonClosedToArrival)
		}
		if c.Constraint.ClosedToDeparture && c.Date.Equal(lastNight) {
			violate(ReasonClosedToDeparture)
		}
		sum, err := res.TotalPrice.Add(c.Price)
		if err != nil {
			return CheckResult{}, &InvariantViolation{Room: in.Room, Date: c.Date, Detail: err.Error()}
		}
		res.TotalPrice = sum
	}
	if res.MinNightsRequired > res.Nights {
		violate(ReasonMinStay)
	}
	if res.MaxNightsAllowed > 0 && res.Nights > res.MaxNightsAllowed {
		violate(ReasonMaxStay)
	}

	res.Available = len(res.Violations) == 0
	if !res.Available {
		res.Reason = res.Violations[0]
	}
	return res, nil
}
