package rooms

import (
	"context"
	"errors"
	"strings"

	"innkeep/internal/domain/shared/money"
	"innkeep/internal/domain/tenancy"
)

var (
	ErrRoomNotFound  = errors.New("rooms: room not found")
	ErrInvalidRoom   = errors.New("rooms: invalid room")
	ErrRoomIDMissing = errors.New("rooms: room id required")
)

type RoomID string

// Room is the read-only projection of the room catalog the engine prices against.
type Room struct {
	ID           RoomID
	Company      tenancy.CompanyID
	Name         string
	BasePrice    money.Money
	Active       bool
	MaxOccupancy int
}

func (r Room) Validate() error {
	if strings.TrimSpace(string(r.ID)) == "" {
		return ErrRoomIDMissing
	}
	if r.Company == "" {
		return tenancy.ErrCompanyRequired
	}
	if err := r.BasePrice.Validate(); err != nil {
		return errors.Join(ErrInvalidRoom, err)
	}
	if r.MaxOccupancy < 0 {
		return ErrInvalidRoom
	}
	return nil
}

// Catalog exposes the rooms of a company.
type Catalog interface {
	ByID(ctx context.Context, company tenancy.CompanyID, id RoomID) (*Room, error)
	// List returns the requested rooms, or every active room of the company when ids is empty.
	// Unknown ids yield ErrRoomNotFound.
	List(ctx context.Context, company tenancy.CompanyID, ids []RoomID) ([]Room, error)
}

// Writer seeds the catalog; the catalog itself is owned by another service.
type Writer interface {
	Save(ctx context.Context, room Room) error
}

// IDs extracts the identifiers of the given rooms preserving order.
func IDs(list []Room) []RoomID {
	out := make([]RoomID, 0, len(list))
	for _, r := range list {
		out = append(out, r.ID)
	}
	return out
}
