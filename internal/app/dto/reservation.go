package dto

import (
	"time"

	"innkeep/internal/domain/availability"
	"innkeep/internal/domain/shared/money"
)

type Reservation struct {
	ID            string      `json:"id"`
	CompanyID     string      `json:"company_id"`
	RoomID        string      `json:"room_id"`
	CheckIn       string      `json:"check_in"`
	CheckOut      string      `json:"check_out"`
	Nights        int         `json:"nights"`
	Status        string      `json:"status"`
	Guests        int         `json:"guests"`
	TotalPrice    money.Money `json:"total_price"`
	HoldExpiresAt *time.Time  `json:"hold_expires_at,omitempty"`
	Reference     string      `json:"reference,omitempty"`
	CreatedBy     string      `json:"created_by"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	Version       int64       `json:"version"`
}

func MapReservation(r *availability.Reservation) Reservation {
	if r == nil {
		return Reservation{}
	}
	return Reservation{
		ID:            string(r.ID),
		CompanyID:     string(r.Company),
		RoomID:        string(r.Room),
		CheckIn:       formatDay(r.Stay.CheckIn),
		CheckOut:      formatDay(r.Stay.CheckOut),
		Nights:        r.Stay.Nights(),
		Status:        string(r.Status),
		Guests:        r.Guests,
		TotalPrice:    r.TotalPrice,
		HoldExpiresAt: formatTime(r.HoldExpiresAt),
		Reference:     r.Reference,
		CreatedBy:     string(r.CreatedBy),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		Version:       r.Version,
	}
}

type CancelResult struct {
	ReservationID string   `json:"reservation_id"`
	Status        string   `json:"status"`
	Released      []string `json:"released_nights"`
}
