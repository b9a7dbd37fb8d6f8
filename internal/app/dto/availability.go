package dto

import (
	"innkeep/internal/domain/availability"
	"innkeep/internal/domain/shared/money"
)

type AvailabilityResult struct {
	RoomID            string      `json:"room_id"`
	CheckIn           string      `json:"check_in"`
	CheckOut          string      `json:"check_out"`
	Available         bool        `json:"available"`
	Reason            string      `json:"reason,omitempty"`
	Violations        []string    `json:"violations,omitempty"`
	BlockedDates      []string    `json:"blocked_dates"`
	ReservedDates     []string    `json:"reserved_dates"`
	Nights            int         `json:"nights"`
	TotalPrice        money.Money `json:"total_price"`
	MinNightsRequired int         `json:"min_nights_required"`
	MaxNightsAllowed  int         `json:"max_nights_allowed,omitempty"`
}

func MapAvailability(res availability.CheckResult) AvailabilityResult {
	return AvailabilityResult{
		RoomID:            string(res.Room),
		CheckIn:           formatDay(res.Stay.CheckIn),
		CheckOut:          formatDay(res.Stay.CheckOut),
		Available:         res.Available,
		Reason:            res.Reason,
		Violations:        res.Violations,
		BlockedDates:      formatDays(res.BlockedDates),
		ReservedDates:     formatDays(res.ReservedDates),
		Nights:            res.Nights,
		TotalPrice:        res.TotalPrice,
		MinNightsRequired: res.MinNightsRequired,
		MaxNightsAllowed:  res.MaxNightsAllowed,
	}
}

type GridCell struct {
	Date              string      `json:"date"`
	Available         bool        `json:"available"`
	Blocked           bool        `json:"blocked"`
	BlockReason       string      `json:"block_reason,omitempty"`
	ReservationID     string      `json:"reservation_id,omitempty"`
	Price             money.Money `json:"price"`
	PriceSource       string      `json:"price_source"`
	MinNights         int         `json:"min_nights"`
	MaxNights         int         `json:"max_nights,omitempty"`
	ClosedToArrival   bool        `json:"closed_to_arrival,omitempty"`
	ClosedToDeparture bool        `json:"closed_to_departure,omitempty"`
	CheckIns          []string    `json:"check_ins,omitempty"`
	CheckOuts         []string    `json:"check_outs,omitempty"`
}

type GridRow struct {
	RoomID    string      `json:"room_id"`
	Name      string      `json:"name"`
	Active    bool        `json:"active"`
	BasePrice money.Money `json:"base_price"`
	Cells     []GridCell  `json:"cells"`
}

type Grid struct {
	CompanyID string    `json:"company_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Rooms     []GridRow `json:"rooms"`
}

func MapGrid(g availability.Grid) Grid {
	out := Grid{
		CompanyID: string(g.Company),
		From:      formatDay(g.Span.From),
		To:        formatDay(g.Span.To),
		Rooms:     make([]GridRow, 0, len(g.Rows)),
	}
	for _, row := range g.Rows {
		r := GridRow{
			RoomID:    string(row.Room.ID),
			Name:      row.Room.Name,
			Active:    row.Room.Active,
			BasePrice: row.Room.BasePrice,
			Cells:     make([]GridCell, 0, len(row.Cells)),
		}
		for _, c := range row.Cells {
			r.Cells = append(r.Cells, GridCell{
				Date:              formatDay(c.Date),
				Available:         c.Available,
				Blocked:           c.Blocked,
				BlockReason:       c.BlockReason,
				ReservationID:     string(c.ReservationID),
				Price:             c.Price,
				PriceSource:       string(c.PriceSource),
				MinNights:         c.Constraint.MinNights,
				MaxNights:         c.Constraint.MaxNights,
				ClosedToArrival:   c.Constraint.ClosedToArrival,
				ClosedToDeparture: c.Constraint.ClosedToDeparture,
				CheckIns:          reservationIDs(c.CheckIn),
				CheckOuts:         reservationIDs(c.CheckOut),
			})
		}
		out.Rooms = append(out.Rooms, r)
	}
	return out
}

func reservationIDs(ids []availability.ReservationID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, string(id))
	}
	return out
}

type DayStats struct {
	Date      string      `json:"date"`
	Occupied  int         `json:"occupied"`
	Available int         `json:"available"`
	Blocked   int         `json:"blocked"`
	CheckIns  int         `json:"check_ins"`
	CheckOuts int         `json:"check_outs"`
	Revenue   money.Money `json:"revenue"`
}

type OccupancyStats struct {
	From            string      `json:"from"`
	To              string      `json:"to"`
	Rooms           int         `json:"rooms"`
	TotalRoomNights int         `json:"total_room_nights"`
	OccupiedNights  int         `json:"occupied_nights"`
	AvailableNights int         `json:"available_nights"`
	BlockedNights   int         `json:"blocked_nights"`
	OccupancyRate   float64     `json:"occupancy_rate"`
	Revenue         money.Money `json:"revenue"`
	Days            []DayStats  `json:"days"`
}

func MapOccupancy(s availability.OccupancyStats) OccupancyStats {
	out := OccupancyStats{
		From:            formatDay(s.Span.From),
		To:              formatDay(s.Span.To),
		Rooms:           s.Rooms,
		TotalRoomNights: s.TotalRoomNights,
		OccupiedNights:  s.OccupiedNights,
		AvailableNights: s.AvailableNights,
		BlockedNights:   s.BlockedNights,
		OccupancyRate:   s.OccupancyRate,
		Revenue:         s.Revenue,
		Days:            make([]DayStats, 0, len(s.Days)),
	}
	for _, d := range s.Days {
		out.Days = append(out.Days, DayStats{
			Date: formatDay(d.Date), Occupied: d.Occupied, Available: d.Available, Blocked: d.Blocked,
			CheckIns: d.CheckIns, CheckOuts: d.CheckOuts, Revenue: d.Revenue,
		})
	}
	return out
}

type ReportExport struct {
	Location  string `json:"location"`
	Key       string `json:"key"`
	SizeBytes int64  `json:"size_bytes"`
}
