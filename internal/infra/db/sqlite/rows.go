package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"innkeep/internal/domain/availability"
	"innkeep/internal/domain/rooms"
	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/shared/money"
	"innkeep/internal/domain/tenancy"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
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

// timeLayout is fixed width so stored instants compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type blockTagRow struct {
	Period string `json:"period"`
	Reason string `json:"reason"`
}

type blockRow struct {
	ID            string                  `json:"id"`
	Company       string                  `json:"company_id"`
	Rooms         []string                `json:"rooms"`
	Start         string                  `json:"start"`
	End           string                  `json:"end,omitempty"`
	Reason        string                  `json:"reason"`
	Recurrence    availability.Recurrence `json:"recurrence"`
	Active        bool                    `json:"active"`
	CreatedBy     string                  `json:"created_by"`
	CreatedAt     string                  `json:"created_at"`
	DeactivatedBy string                  `json:"deactivated_by,omitempty"`
	DeactivatedAt string                  `json:"deactivated_at,omitempty"`
}

func encodeBlock(p *availability.BlockPeriod) ([]byte, error) {
	row := blockRow{
		ID:            string(p.ID),
		Company:       string(p.Company),
		Rooms:         make([]string, 0, len(p.Rooms)),
		Start:         formatDay(p.Start),
		End:           formatDay(p.End),
		Reason:        p.Reason,
		Recurrence:    p.Recurrence,
		Active:        p.Active,
		CreatedBy:     string(p.CreatedBy),
		CreatedAt:     formatTime(p.CreatedAt),
		DeactivatedBy: string(p.DeactivatedBy),
		DeactivatedAt: formatTime(p.DeactivatedAt),
	}
	for _, r := range p.Rooms {
		row.Rooms = append(row.Rooms, string(r))
	}
	return json.Marshal(row)
}

func decodeBlock(data []byte, version int64) (*availability.BlockPeriod, error) {
	var row blockRow
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, err
	}
	p := &availability.BlockPeriod{
		ID:            availability.BlockPeriodID(row.ID),
		Company:       tenancy.CompanyID(row.Company),
		Start:         parseDay(row.Start),
		End:           parseDay(row.End),
		Reason:        row.Reason,
		Recurrence:    row.Recurrence,
		Active:        row.Active,
		CreatedBy:     tenancy.ActorID(row.CreatedBy),
		CreatedAt:     parseTime(row.CreatedAt),
		DeactivatedBy: tenancy.ActorID(row.DeactivatedBy),
		DeactivatedAt: parseTime(row.DeactivatedAt),
		Version:       version,
	}
	for _, r := range row.Rooms {
		p.Rooms = append(p.Rooms, rooms.RoomID(r))
	}
	return p, nil
}

type ruleRow struct {
	ID        string          `json:"id"`
	Company   string          `json:"company_id"`
	Room      *string         `json:"room_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Priority  int             `json:"priority"`
	Active    bool            `json:"active"`
	ValidFrom string          `json:"valid_from,omitempty"`
	ValidTo   string          `json:"valid_to,omitempty"`
	Weekdays  []time.Weekday  `json:"weekdays,omitempty"`
	CreatedAt string          `json:"created_at"`
	UpdatedBy string          `json:"updated_by,omitempty"`
	UpdatedAt string          `json:"updated_at"`
}

func encodeRule(r *availability.Rule) ([]byte, error) {
	payload, err := availability.EncodePayload(r.Payload)
	if err != nil {
		return nil, err
	}
	row := ruleRow{
		ID:        string(r.ID),
		Company:   string(r.Company),
		Payload:   payload,
		Priority:  r.Priority,
		Active:    r.Active,
		ValidFrom: formatDay(r.ValidFrom),
		ValidTo:   formatDay(r.ValidTo),
		Weekdays:  r.Weekdays,
		CreatedAt: formatTime(r.CreatedAt),
		UpdatedBy: string(r.UpdatedBy),
		UpdatedAt: formatTime(r.UpdatedAt),
	}
	if r.Room != nil {
		room := string(*r.Room)
		row.Room = &room
	}
	return json.Marshal(row)
}

func decodeRule(data []byte, version int64) (*availability.Rule, error) {
	var row ruleRow
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, err
	}
	payload, err := availability.DecodePayload(row.Payload)
	if err != nil {
		return nil, err
	}
	r := &availability.Rule{
		ID:        availability.RuleID(row.ID),
		Company:   tenancy.CompanyID(row.Company),
		Payload:   payload,
		Priority:  row.Priority,
		Active:    row.Active,
		ValidFrom: parseDay(row.ValidFrom),
		ValidTo:   parseDay(row.ValidTo),
		Weekdays:  row.Weekdays,
		CreatedAt: parseTime(row.CreatedAt),
		UpdatedBy: tenancy.ActorID(row.UpdatedBy),
		UpdatedAt: parseTime(row.UpdatedAt),
		Version:   version,
	}
	if row.Room != nil {
		room := rooms.RoomID(*row.Room)
		r.Room = &room
	}
	return r, nil
}

type reservationRow struct {
	ID            string      `json:"id"`
	Company       string      `json:"company_id"`
	Room          string      `json:"room_id"`
	CheckIn       string      `json:"check_in"`
	CheckOut      string      `json:"check_out"`
	Status        string      `json:"status"`
	Guests        int         `json:"guests"`
	TotalPrice    money.Money `json:"total_price"`
	HoldExpiresAt string      `json:"hold_expires_at,omitempty"`
	Reference     string      `json:"reference,omitempty"`
	CreatedBy     string      `json:"created_by"`
	CreatedAt     string      `json:"created_at"`
	UpdatedAt     string      `json:"updated_at"`
	CancelReason  string      `json:"cancel_reason,omitempty"`
}

func encodeReservation(r *availability.Reservation) ([]byte, error) {
	return json.Marshal(reservationRow{
		ID:            string(r.ID),
		Company:       string(r.Company),
		Room:          string(r.Room),
		CheckIn:       formatDay(r.Stay.CheckIn),
		CheckOut:      formatDay(r.Stay.CheckOut),
		Status:        string(r.Status),
		Guests:        r.Guests,
		TotalPrice:    r.TotalPrice,
		HoldExpiresAt: formatTime(r.HoldExpiresAt),
		Reference:     r.Reference,
		CreatedBy:     string(r.CreatedBy),
		CreatedAt:     formatTime(r.CreatedAt),
		UpdatedAt:     formatTime(r.UpdatedAt),
		CancelReason:  r.CancelReason,
	})
}

func decodeReservation(data []byte, version int64) (*availability.Reservation, error) {
	var row reservationRow
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, err
	}
	return &availability.Reservation{
		ID:            availability.ReservationID(row.ID),
		Company:       tenancy.CompanyID(row.Company),
		Room:          rooms.RoomID(row.Room),
		Stay:          daterange.DateRange{CheckIn: parseDay(row.CheckIn), CheckOut: parseDay(row.CheckOut)},
		Status:        availability.ReservationStatus(row.Status),
		Guests:        row.Guests,
		TotalPrice:    row.TotalPrice,
		HoldExpiresAt: parseTime(row.HoldExpiresAt),
		Reference:     row.Reference,
		CreatedBy:     tenancy.ActorID(row.CreatedBy),
		CreatedAt:     parseTime(row.CreatedAt),
		UpdatedAt:     parseTime(row.UpdatedAt),
		CancelReason:  row.CancelReason,
		Version:       version,
	}, nil
}
