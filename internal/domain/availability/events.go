package availability

import (
	"time"

	"innkeep/internal/domain/rooms"
	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/shared/money"
	"innkeep/internal/domain/tenancy"
)

type ReservationCreated struct {
	Company       tenancy.CompanyID   `json:"company_id"`
	ReservationID ReservationID       `json:"reservation_id"`
	Room          rooms.RoomID        `json:"room_id"`
	Stay          daterange.DateRange `json:"stay"`
	Status        ReservationStatus   `json:"status"`
	Total         money.Money         `json:"total"`
	At            time.Time           `json:"at"`
}

func (e ReservationCreated) EventName() string     { return "reservation.created" }
func (e ReservationCreated) AggregateID() string   { return string(e.ReservationID) }
func (e ReservationCreated) OccurredAt() time.Time { return e.At }
func (e ReservationCreated) TenantID() string      { return string(e.Company) }

type ReservationConfirmed struct {
	Company       tenancy.CompanyID   `json:"company_id"`
	ReservationID ReservationID       `json:"reservation_id"`
	Room          rooms.RoomID        `json:"room_id"`
	Stay          daterange.DateRange `json:"stay"`
	At            time.Time           `json:"at"`
}

func (e ReservationConfirmed) EventName() string     { return "reservation.confirmed" }
func (e ReservationConfirmed) AggregateID() string   { return string(e.ReservationID) }
func (e ReservationConfirmed) OccurredAt() time.Time { return e.At }
func (e ReservationConfirmed) TenantID() string      { return string(e.Company) }

type ReservationCancelled struct {
	Company       tenancy.CompanyID   `json:"company_id"`
	ReservationID ReservationID       `json:"reservation_id"`
	Room          rooms.RoomID        `json:"room_id"`
	Stay          daterange.DateRange `json:"stay"`
	Reason        string              `json:"reason,omitempty"`
	Released      []time.Time         `json:"released,omitempty"`
	At            time.Time           `json:"at"`
}

func (e ReservationCancelled) EventName() string     { return "reservation.cancelled" }
func (e ReservationCancelled) AggregateID() string   { return string(e.ReservationID) }
func (e ReservationCancelled) OccurredAt() time.Time { return e.At }
func (e ReservationCancelled) TenantID() string      { return string(e.Company) }

type CalendarBlocked struct {
	Company tenancy.CompanyID `json:"company_id"`
	Period  BlockPeriodID     `json:"period_id"`
	Rooms   []rooms.RoomID    `json:"rooms"`
	Cells   int               `json:"cells"`
	Reason  string            `json:"reason"`
	At      time.Time         `json:"at"`
}

func (e CalendarBlocked) EventName() string     { return "calendar.blocked" }
func (e CalendarBlocked) AggregateID() string   { return string(e.Period) }
func (e CalendarBlocked) OccurredAt() time.Time { return e.At }
func (e CalendarBlocked) TenantID() string      { return string(e.Company) }

type CalendarReleased struct {
	Company   tenancy.CompanyID `json:"company_id"`
	Period    BlockPeriodID     `json:"period_id"`
	Unblocked int               `json:"unblocked"`
	At        time.Time         `json:"at"`
}

func (e CalendarReleased) EventName() string     { return "calendar.released" }
func (e CalendarReleased) AggregateID() string   { return string(e.Period) }
func (e CalendarReleased) OccurredAt() time.Time { return e.At }
func (e CalendarReleased) TenantID() string      { return string(e.Company) }

// CalendarOverbookingPrevented is emitted when a claim lost to an existing reservation.
type CalendarOverbookingPrevented struct {
	Company tenancy.CompanyID   `json:"company_id"`
	Room    rooms.RoomID        `json:"room_id"`
	Stay    daterange.DateRange `json:"stay"`
	Reason  string              `json:"reason"`
	At      time.Time           `json:"at"`
}

func (e CalendarOverbookingPrevented) EventName() string     { return "calendar.overbooking_prevented" }
func (e CalendarOverbookingPrevented) AggregateID() string   { return string(e.Room) }
func (e CalendarOverbookingPrevented) OccurredAt() time.Time { return e.At }
func (e CalendarOverbookingPrevented) TenantID() string      { return string(e.Company) }

type CalendarPriceSet struct {
	Company tenancy.CompanyID `json:"company_id"`
	Room    rooms.RoomID      `json:"room_id"`
	Span    daterange.Span    `json:"span"`
	Price   *money.Money      `json:"price,omitempty"`
	At      time.Time         `json:"at"`
}

func (e CalendarPriceSet) EventName() string     { return "calendar.price_set" }
func (e CalendarPriceSet) AggregateID() string   { return string(e.Room) }
func (e CalendarPriceSet) OccurredAt() time.Time { return e.At }
func (e CalendarPriceSet) TenantID() string      { return string(e.Company) }

type RuleUpserted struct {
	Company tenancy.CompanyID `json:"company_id"`
	RuleID  RuleID            `json:"rule_id"`
	Type    RuleType          `json:"type"`
	Room    *rooms.RoomID     `json:"room_id,omitempty"`
	Active  bool              `json:"active"`
	Created bool              `json:"created"`
	At      time.Time         `json:"at"`
}

func (e RuleUpserted) EventName() string     { return "availability.rule_upserted" }
func (e RuleUpserted) AggregateID() string   { return string(e.RuleID) }
func (e RuleUpserted) OccurredAt() time.Time { return e.At }
func (e RuleUpserted) TenantID() string      { return string(e.Company) }
