package availability

import (
	"sort"
	"time"

	"innkeep/internal/domain/rooms"
	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/shared/money"
	"innkeep/internal/domain/tenancy"
)

// BlockTag records which period blocked a cell and why.
type BlockTag struct {
	Period BlockPeriodID
	Reason string
}

// CellKey is the (room, date) identity of a cell inside a company. It is unique.
type CellKey struct {
	Room rooms.RoomID
	Date time.Time
}

func KeyOf(room rooms.RoomID, date time.Time) CellKey {
	return CellKey{Room: room, Date: daterange.Day(date)}
}

// Cell is the per-room-per-date unit of availability truth.
type Cell struct {
	Company       tenancy.CompanyID
	Room          rooms.RoomID
	Date          time.Time
	IsAvailable   bool
	IsBlocked     bool
	BlockReason   string
	BlockedBy     []BlockTag
	CustomPrice   *money.Money
	ReservationID ReservationID
	UpdatedBy     tenancy.ActorID
	UpdatedAt     time.Time
}

// DefaultCell is the state of a date no one has touched yet.
func DefaultCell(company tenancy.CompanyID, room rooms.RoomID, date time.Time) Cell {
	return Cell{Company: company, Room: room, Date: daterange.Day(date), IsAvailable: true}
}

func (c Cell) Key() CellKey { return KeyOf(c.Room, c.Date) }

func (c Cell) Reserved() bool { return c.ReservationID != "" }

// Open reports whether a new stay may take this night.
func (c Cell) Open() bool {
	return c.IsAvailable && !c.IsBlocked && !c.Reserved()
}

// CheckInvariant validates the flag combination persisted for the cell.
func (c Cell) CheckInvariant() error {
	switch {
	case c.Reserved() && c.IsAvailable:
		return c.violation("reserved cell marked available")
	case c.IsAvailable && c.IsBlocked:
		return c.violation("blocked cell marked available")
	case c.IsBlocked != (len(c.BlockedBy) > 0):
		return c.violation("block flag disagrees with owning periods")
	}
	return nil
}

func (c Cell) violation(detail string) error {
	return &InvariantViolation{Company: c.Company, Room: c.Room, Date: c.Date, Detail: detail}
}

// Clone copies the cell including its slices and pointers.
func (c Cell) Clone() Cell {
	out := c
	out.BlockedBy = append([]BlockTag(nil), c.BlockedBy...)
	if c.CustomPrice != nil {
		p := *c.CustomPrice
		out.CustomPrice = &p
	}
	return out
}

// AddBlock tags the cell with the owning period. It returns false when the tag was already present.
func (c *Cell) AddBlock(period BlockPeriodID, reason string) bool {
	for _, tag := range c.BlockedBy {
		if tag.Period == period {
			return false
		}
	}
	c.BlockedBy = append(c.BlockedBy, BlockTag{Period: period, Reason: reason})
	sort.Slice(c.BlockedBy, func(i, j int) bool { return c.BlockedBy[i].Period < c.BlockedBy[j].Period })
	c.IsBlocked = true
	c.IsAvailable = false
	c.BlockReason = c.BlockedBy[0].Reason
	return true
}

// RemoveBlock drops the period tag; the cell reopens only when no tag and no reservation remain.
func (c *Cell) RemoveBlock(period BlockPeriodID) bool {
	idx := -1
	for i, tag := range c.BlockedBy {
		if tag.Period == period {
			idx = i
			break
		}
	}
	if idx == -1 {
		return false
	}
	c.BlockedBy = append(c.BlockedBy[:idx], c.BlockedBy[idx+1:]...)
	if len(c.BlockedBy) == 0 {
		c.BlockedBy = nil
		c.IsBlocked = false
		c.BlockReason = ""
		c.IsAvailable = !c.Reserved()
		return true
	}
	c.BlockReason = c.BlockedBy[0].Reason
	return true
}

// BlockedByPeriod reports whether the period owns a tag on this cell.
func (c Cell) BlockedByPeriod(period BlockPeriodID) bool {
	for _, tag := range c.BlockedBy {
		if tag.Period == period {
			return true
		}
	}
	return false
}

// Claim assigns the night to a reservation. A night held by another reservation is never overwritten.
func (c *Cell) Claim(reservation ReservationID) error {
	if c.Reserved() && c.ReservationID != reservation {
		return ErrNightTaken
	}
	c.ReservationID = reservation
	c.IsAvailable = false
	return nil
}

// Release frees the night if it is still held by the given reservation.
func (c *Cell) Release(reservation ReservationID) bool {
	if reservation == "" || c.ReservationID != reservation {
		return false
	}
	c.ReservationID = ""
	c.IsAvailable = !c.IsBlocked
	return true
}

// CellIndex gives O(1) access to the persisted cells of a window.
type CellIndex map[CellKey]Cell

func IndexCells(cells []Cell) CellIndex {
	idx := make(CellIndex, len(cells))
	for _, c := range cells {
		idx[c.Key()] = c
	}
	return idx
}

// At returns the persisted cell or a default one.
func (idx CellIndex) At(company tenancy.CompanyID, room rooms.RoomID, date time.Time) Cell {
	if c, ok := idx[KeyOf(room, date)]; ok {
		return c
	}
	return DefaultCell(company, room, date)
}
