package mongo

import (
	"time"

	"innkeep/internal/domain/availability"
	"innkeep/internal/domain/rooms"
	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/shared/money"
	"innkeep/internal/domain/tenancy"
)

// Documents are keyed "<company>/<id>" so identifiers never collide across tenants.
func docID(company tenancy.CompanyID, parts ...string) string {
	id := string(company)
	for _, p := range parts {
		id += "/" + p
	}
	return id
}

func formatDay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(daterange.Layout)
}

func parseDay(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := daterange.ParseDay(s)
	if err != nil {
		return time.Time{}
	}
	return t
}

type roomDocument struct {
	ID           string      `bson:"_id"`
	RoomID       string      `bson:"room_id"`
	Company      string      `bson:"company_id"`
	Name         string      `bson:"name"`
	BasePrice    money.Money `bson:"base_price"`
	Active       bool        `bson:"active"`
	MaxOccupancy int         `bson:"max_occupancy"`
}

func newRoomDocument(r rooms.Room) roomDocument {
	return roomDocument{
		ID:           docID(r.Company, string(r.ID)),
		RoomID:       string(r.ID),
		Company:      string(r.Company),
		Name:         r.Name,
		BasePrice:    r.BasePrice,
		Active:       r.Active,
		MaxOccupancy: r.MaxOccupancy,
	}
}

func (d roomDocument) toRoom() rooms.Room {
	return rooms.Room{
		ID:           rooms.RoomID(d.RoomID),
		Company:      tenancy.CompanyID(d.Company),
		Name:         d.Name,
		BasePrice:    d.BasePrice,
		Active:       d.Active,
		MaxOccupancy: d.MaxOccupancy,
	}
}

type blockTagDocument struct {
	Period string `bson:"period"`
	Reason string `bson:"reason"`
}

type cellDocument struct {
	ID            string             `bson:"_id"`
	Company       string             `bson:"company_id"`
	Room          string             `bson:"room_id"`
	Date          string             `bson:"date"`
	IsAvailable   bool               `bson:"is_available"`
	IsBlocked     bool               `bson:"is_blocked"`
	BlockReason   string             `bson:"block_reason,omitempty"`
	BlockedBy     []blockTagDocument `bson:"blocked_by,omitempty"`
	CustomPrice   *money.Money       `bson:"custom_price,omitempty"`
	ReservationID string             `bson:"reservation_id,omitempty"`
	UpdatedBy     string             `bson:"updated_by,omitempty"`
	UpdatedAt     time.Time          `bson:"updated_at"`
}

func cellID(company tenancy.CompanyID, key availability.CellKey) string {
	return docID(company, string(key.Room), formatDay(key.Date))
}

func newCellDocument(c availability.Cell) cellDocument {
	doc := cellDocument{
		ID:            cellID(c.Company, c.Key()),
		Company:       string(c.Company),
		Room:          string(c.Room),
		Date:          formatDay(c.Date),
		IsAvailable:   c.IsAvailable,
		IsBlocked:     c.IsBlocked,
		BlockReason:   c.BlockReason,
		CustomPrice:   c.CustomPrice,
		ReservationID: string(c.ReservationID),
		UpdatedBy:     string(c.UpdatedBy),
		UpdatedAt:     c.UpdatedAt,
	}
	for _, tag := range c.BlockedBy {
		doc.BlockedBy = append(doc.BlockedBy, blockTagDocument{Period: string(tag.Period), Reason: tag.Reason})
	}
	return doc
}

func (d cellDocument) toCell() availability.Cell {
	c := availability.Cell{
		Company:       tenancy.CompanyID(d.Company),
		Room:          rooms.RoomID(d.Room),
		Date:          parseDay(d.Date),
		IsAvailable:   d.IsAvailable,
		IsBlocked:     d.IsBlocked,
		BlockReason:   d.BlockReason,
		CustomPrice:   d.CustomPrice,
		ReservationID: availability.ReservationID(d.ReservationID),
		UpdatedBy:     tenancy.ActorID(d.UpdatedBy),
		UpdatedAt:     d.UpdatedAt,
	}
	for _, tag := range d.BlockedBy {
		c.BlockedBy = append(c.BlockedBy, availability.BlockTag{Period: availability.BlockPeriodID(tag.Period), Reason: tag.Reason})
	}
	return c
}

type recurrenceDocument struct {
	Kind      string `bson:"kind"`
	Weekdays  []int  `bson:"weekdays,omitempty"`
	FromMonth int    `bson:"from_month,omitempty"`
	FromDay   int    `bson:"from_day,omitempty"`
	ToMonth   int    `bson:"to_month,omitempty"`
	ToDay     int    `bson:"to_day,omitempty"`
}

type blockDocument struct {
	ID            string             `bson:"_id"`
	PeriodID      string             `bson:"period_id"`
	Company       string             `bson:"company_id"`
	Rooms         []string           `bson:"rooms"`
	Start         string             `bson:"start"`
	End           string             `bson:"end,omitempty"`
	Reason        string             `bson:"reason"`
	Recurrence    recurrenceDocument `bson:"recurrence"`
	Active        bool               `bson:"active"`
	CreatedBy     string             `bson:"created_by"`
	CreatedAt     time.Time          `bson:"created_at"`
	DeactivatedBy string             `bson:"deactivated_by,omitempty"`
	DeactivatedAt time.Time          `bson:"deactivated_at,omitempty"`
	Version       int64              `bson:"version"`
}

func newBlockDocument(p *availability.BlockPeriod) blockDocument {
	doc := blockDocument{
		ID:            docID(p.Company, string(p.ID)),
		PeriodID:      string(p.ID),
		Company:       string(p.Company),
		Rooms:         make([]string, 0, len(p.Rooms)),
		Start:         formatDay(p.Start),
		End:           formatDay(p.End),
		Reason:        p.Reason,
		Active:        p.Active,
		CreatedBy:     string(p.CreatedBy),
		CreatedAt:     p.CreatedAt,
		DeactivatedBy: string(p.DeactivatedBy),
		DeactivatedAt: p.DeactivatedAt,
		Version:       p.Version,
		Recurrence: recurrenceDocument{
			Kind:      string(p.Recurrence.Kind),
			FromMonth: int(p.Recurrence.FromMonth),
			FromDay:   p.Recurrence.FromDay,
			ToMonth:   int(p.Recurrence.ToMonth),
			ToDay:     p.Recurrence.ToDay,
		},
	}
	for _, r := range p.Rooms {
		doc.Rooms = append(doc.Rooms, string(r))
	}
	for _, wd := range p.Recurrence.Weekdays {
		doc.Recurrence.Weekdays = append(doc.Recurrence.Weekdays, int(wd))
	}
	return doc
}

func (d blockDocument) toPeriod() *availability.BlockPeriod {
	p := &availability.BlockPeriod{
		ID:            availability.BlockPeriodID(d.PeriodID),
		Company:       tenancy.CompanyID(d.Company),
		Start:         parseDay(d.Start),
		End:           parseDay(d.End),
		Reason:        d.Reason,
		Active:        d.Active,
		CreatedBy:     tenancy.ActorID(d.CreatedBy),
		CreatedAt:     d.CreatedAt,
		DeactivatedBy: tenancy.ActorID(d.DeactivatedBy),
		DeactivatedAt: d.DeactivatedAt,
		Version:       d.Version,
		Recurrence: availability.Recurrence{
			Kind:      availability.RecurrenceKind(d.Recurrence.Kind),
			FromMonth: time.Month(d.Recurrence.FromMonth),
			FromDay:   d.Recurrence.FromDay,
			ToMonth:   time.Month(d.Recurrence.ToMonth),
			ToDay:     d.Recurrence.ToDay,
		},
	}
	for _, r := range d.Rooms {
		p.Rooms = append(p.Rooms, rooms.RoomID(r))
	}
	for _, wd := range d.Recurrence.Weekdays {
		p.Recurrence.Weekdays = append(p.Recurrence.Weekdays, time.Weekday(wd))
	}
	return p
}

type ruleDocument struct {
	ID        string    `bson:"_id"`
	RuleID    string    `bson:"rule_id"`
	Company   string    `bson:"company_id"`
	Room      *string   `bson:"room_id,omitempty"`
	Type      string    `bson:"type"`
	Payload   []byte    `bson:"payload"`
	Priority  int       `bson:"priority"`
	Active    bool      `bson:"active"`
	ValidFrom string    `bson:"valid_from,omitempty"`
	ValidTo   string    `bson:"valid_to,omitempty"`
	Weekdays  []int     `bson:"weekdays,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedBy string    `bson:"updated_by,omitempty"`
	UpdatedAt time.Time `bson:"updated_at"`
	Version   int64     `bson:"version"`
}

func newRuleDocument(r *availability.Rule) (ruleDocument, error) {
	payload, err := availability.EncodePayload(r.Payload)
	if err != nil {
		return ruleDocument{}, err
	}
	doc := ruleDocument{
		ID:        docID(r.Company, string(r.ID)),
		RuleID:    string(r.ID),
		Company:   string(r.Company),
		Type:      string(r.Type()),
		Payload:   payload,
		Priority:  r.Priority,
		Active:    r.Active,
		ValidFrom: formatDay(r.ValidFrom),
		ValidTo:   formatDay(r.ValidTo),
		CreatedAt: r.CreatedAt,
		UpdatedBy: string(r.UpdatedBy),
		UpdatedAt: r.UpdatedAt,
		Version:   r.Version,
	}
	if r.Room != nil {
		room := string(*r.Room)
		doc.Room = &room
	}
	for _, wd := range r.Weekdays {
		doc.Weekdays = append(doc.Weekdays, int(wd))
	}
	return doc, nil
}

func (d ruleDocument) toRule() (*availability.Rule, error) {
	payload, err := availability.DecodePayload(d.Payload)
	if err != nil {
		return nil, err
	}
	r := &availability.Rule{
		ID:        availability.RuleID(d.RuleID),
		Company:   tenancy.CompanyID(d.Company),
		Payload:   payload,
		Priority:  d.Priority,
		Active:    d.Active,
		ValidFrom: parseDay(d.ValidFrom),
		ValidTo:   parseDay(d.ValidTo),
		CreatedAt: d.CreatedAt,
		UpdatedBy: tenancy.ActorID(d.UpdatedBy),
		UpdatedAt: d.UpdatedAt,
		Version:   d.Version,
	}
	if d.Room != nil {
		room := rooms.RoomID(*d.Room)
		r.Room = &room
	}
	for _, wd := range d.Weekdays {
		r.Weekdays = append(r.Weekdays, time.Weekday(wd))
	}
	return r, nil
}

type reservationDocument struct {
	ID            string      `bson:"_id"`
	ReservationID string      `bson:"reservation_id"`
	Company       string      `bson:"company_id"`
	Room          string      `bson:"room_id"`
	CheckIn       string      `bson:"check_in"`
	CheckOut      string      `bson:"check_out"`
	Status        string      `bson:"status"`
	Guests        int         `bson:"guests"`
	TotalPrice    money.Money `bson:"total_price"`
	HoldExpiresAt time.Time   `bson:"hold_expires_at,omitempty"`
	Reference     string      `bson:"reference,omitempty"`
	CreatedBy     string      `bson:"created_by"`
	CreatedAt     time.Time   `bson:"created_at"`
	UpdatedAt     time.Time   `bson:"updated_at"`
	CancelReason  string      `bson:"cancel_reason,omitempty"`
	Version       int64       `bson:"version"`
}

func newReservationDocument(r *availability.Reservation) reservationDocument {
	return reservationDocument{
		ID:            docID(r.Company, string(r.ID)),
		ReservationID: string(r.ID),
		Company:       string(r.Company),
		Room:          string(r.Room),
		CheckIn:       formatDay(r.Stay.CheckIn),
		CheckOut:      formatDay(r.Stay.CheckOut),
		Status:        string(r.Status),
		Guests:        r.Guests,
		TotalPrice:    r.TotalPrice,
		HoldExpiresAt: r.HoldExpiresAt,
		Reference:     r.Reference,
		CreatedBy:     string(r.CreatedBy),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		CancelReason:  r.CancelReason,
		Version:       r.Version,
	}
}

func (d reservationDocument) toReservation() *availability.Reservation {
	return &availability.Reservation{
		ID:            availability.ReservationID(d.ReservationID),
		Company:       tenancy.CompanyID(d.Company),
		Room:          rooms.RoomID(d.Room),
		Stay:          daterange.DateRange{CheckIn: parseDay(d.CheckIn), CheckOut: parseDay(d.CheckOut)},
		Status:        availability.ReservationStatus(d.Status),
		Guests:        d.Guests,
		TotalPrice:    d.TotalPrice,
		HoldExpiresAt: d.HoldExpiresAt,
		Reference:     d.Reference,
		CreatedBy:     tenancy.ActorID(d.CreatedBy),
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
		CancelReason:  d.CancelReason,
		Version:       d.Version,
	}
}
