package availability

import (
	"time"

	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/shared/money"
)

type DayStats struct {
	Date      time.Time   `json:"date"`
	Occupied  int         `json:"occupied"`
	Available int         `json:"available"`
	Blocked   int         `json:"blocked"`
	CheckIns  int         `json:"check_ins"`
	CheckOuts int         `json:"check_outs"`
	Revenue   money.Money `json:"revenue"`
}

type OccupancyStats struct {
	Span            daterange.Span `json:"span"`
	Rooms           int            `json:"rooms"`
	TotalRoomNights int            `json:"total_room_nights"`
	OccupiedNights  int            `json:"occupied_nights"`
	AvailableNights int            `json:"available_nights"`
	BlockedNights   int            `json:"blocked_nights"`
	OccupancyRate   float64        `json:"occupancy_rate"`
	Revenue         money.Money    `json:"revenue"`
	Days            []DayStats     `json:"days"`
}

// ComputeStats reduces a grid into per-day and period totals.
// Revenue sums effective prices of occupied nights; mixed currencies are an error.
func ComputeStats(g Grid) (OccupancyStats, error) {
	days := g.Span.Days()
	currency := ""
	for _, row := range g.Rows {
		if row.Room.BasePrice.Currency != "" {
			currency = row.Room.BasePrice.Currency
			break
		}
	}
	stats := OccupancyStats{
		Span:    g.Span,
		Rooms:   len(g.Rows),
		Revenue: money.Zero(currency),
		Days:    make([]DayStats, len(days)),
	}
	for i, d := range days {
		stats.Days[i] = DayStats{Date: d, Revenue: money.Zero(currency)}
	}
	for _, row := range g.Rows {
		for i, c := range row.Cells {
			if i >= len(stats.Days) {
				break
			}
			day := &stats.Days[i]
			day.CheckIns += len(c.CheckIn)
			day.CheckOuts += len(c.CheckOut)
			stats.TotalRoomNights++
			switch {
			case c.ReservationID != "":
				day.Occupied++
				stats.OccupiedNights++
				rev, err := day.Revenue.Add(c.Price)
				if err != nil {
					return OccupancyStats{}, err
				}
				day.Revenue = rev
				if stats.Revenue, err = stats.Revenue.Add(c.Price); err != nil {
					return OccupancyStats{}, err
				}
			case c.Blocked:
				day.Blocked++
				stats.BlockedNights++
			case c.Available:
				day.Available++
				stats.AvailableNights++
			}
		}
	}
	if stats.TotalRoomNights > 0 {
		stats.OccupancyRate = float64(stats.OccupiedNights) / float64(stats.TotalRoomNights)
	}
	return stats, nil
}
