package memory

import (
	"context"
	"sort"
	"time"

	"innkeep/internal/domain/availability"
	"innkeep/internal/domain/rooms"
	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/shared/money"
	"innkeep/internal/domain/tenancy"
)

type roomCatalog struct{ u *Unit }

func (r roomCatalog) ByID(_ context.Context, company tenancy.CompanyID, id rooms.RoomID) (*rooms.Room, error) {
	s := r.u.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomRef{company, id}]
	if !ok {
		return nil, rooms.ErrRoomNotFound
	}
	return &room, nil
}

func (r roomCatalog) List(_ context.Context, company tenancy.CompanyID, ids []rooms.RoomID) ([]rooms.Room, error) {
	s := r.u.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(ids) > 0 {
		out := make([]rooms.Room, 0, len(ids))
		seen := make(map[rooms.RoomID]bool, len(ids))
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			room, ok := s.rooms[roomRef{company, id}]
			if !ok {
				return nil, rooms.ErrRoomNotFound
			}
			out = append(out, room)
		}
		return out, nil
	}
	var out []rooms.Room
	for ref, room := range s.rooms {
		if ref.company == company && room.Active {
			out = append(out, room)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type cellRepository struct{ u *Unit }

// lookup returns the staged or committed cell. Callers hold u.mu and store.mu.
func (r cellRepository) lookup(ref cellRef) (availability.Cell, bool) {
	if st := r.u.staged(); st != nil {
		if c, ok := st.cells[ref]; ok {
			return c, true
		}
	}
	c, ok := r.u.store.cells[ref]
	return c, ok
}

func (r cellRepository) current(company tenancy.CompanyID, room rooms.RoomID, date time.Time) availability.Cell {
	if c, ok := r.lookup(cellRef{company, availability.KeyOf(room, date)}); ok {
		return c.Clone()
	}
	return availability.DefaultCell(company, room, date)
}

func (r cellRepository) Range(_ context.Context, company tenancy.CompanyID, roomIDs []rooms.RoomID, span daterange.Span) ([]availability.Cell, error) {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	r.u.store.mu.RLock()
	defer r.u.store.mu.RUnlock()
	var out []availability.Cell
	days := span.Days()
	for _, room := range roomIDs {
		for _, d := range days {
			if c, ok := r.lookup(cellRef{company, availability.KeyOf(room, d)}); ok {
				out = append(out, c.Clone())
			}
		}
	}
	sortCells(out)
	return out, nil
}

func (r cellRepository) Claim(_ context.Context, company tenancy.CompanyID, room rooms.RoomID, nights []time.Time, reservation availability.ReservationID, actor tenancy.ActorID, at time.Time) error {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	st, err := r.u.writable()
	if err != nil {
		return err
	}
	r.u.store.mu.RLock()
	defer r.u.store.mu.RUnlock()
	claimed := make([]availability.Cell, 0, len(nights))
	for _, n := range nights {
		c := r.current(company, room, n)
		if !c.Open() && c.ReservationID != reservation {
			return availability.ErrNightTaken
		}
		if err := c.Claim(reservation); err != nil {
			return err
		}
		c.UpdatedBy, c.UpdatedAt = actor, at
		claimed = append(claimed, c)
	}
	for _, c := range claimed {
		st.cells[cellRef{company, c.Key()}] = c
	}
	return nil
}

func (r cellRepository) Release(_ context.Context, company tenancy.CompanyID, room rooms.RoomID, nights []time.Time, reservation availability.ReservationID, at time.Time) ([]time.Time, error) {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	st, err := r.u.writable()
	if err != nil {
		return nil, err
	}
	r.u.store.mu.RLock()
	defer r.u.store.mu.RUnlock()
	var released []time.Time
	for _, n := range nights {
		c := r.current(company, room, n)
		if !c.Release(reservation) {
			continue
		}
		c.UpdatedAt = at
		st.cells[cellRef{company, c.Key()}] = c
		released = append(released, c.Date)
	}
	return released, nil
}

func (r cellRepository) Block(_ context.Context, company tenancy.CompanyID, marks []availability.BlockMark, at time.Time) error {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	st, err := r.u.writable()
	if err != nil {
		return err
	}
	r.u.store.mu.RLock()
	defer r.u.store.mu.RUnlock()
	for _, m := range marks {
		c := r.current(company, m.Room, m.Date)
		if c.AddBlock(m.Period, m.Reason) {
			c.UpdatedAt = at
			st.cells[cellRef{company, c.Key()}] = c
		}
	}
	return nil
}

func (r cellRepository) Unblock(_ context.Context, company tenancy.CompanyID, period availability.BlockPeriodID, at time.Time) ([]availability.CellKey, error) {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	st, err := r.u.writable()
	if err != nil {
		return nil, err
	}
	r.u.store.mu.RLock()
	defer r.u.store.mu.RUnlock()
	refs := make(map[cellRef]struct{})
	for ref, c := range r.u.store.cells {
		if ref.company == company && c.BlockedByPeriod(period) {
			refs[ref] = struct{}{}
		}
	}
	for ref, c := range st.cells {
		if ref.company == company && c.BlockedByPeriod(period) {
			refs[ref] = struct{}{}
		}
	}
	keys := make([]availability.CellKey, 0, len(refs))
	for ref := range refs {
		c, _ := r.lookup(ref)
		c = c.Clone()
		if !c.RemoveBlock(period) {
			continue
		}
		c.UpdatedAt = at
		st.cells[ref] = c
		keys = append(keys, ref.key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Room != keys[j].Room {
			return keys[i].Room < keys[j].Room
		}
		return keys[i].Date.Before(keys[j].Date)
	})
	return keys, nil
}

func (r cellRepository) SetPrice(_ context.Context, company tenancy.CompanyID, room rooms.RoomID, dates []time.Time, price *money.Money, actor tenancy.ActorID, at time.Time) error {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	st, err := r.u.writable()
	if err != nil {
		return err
	}
	r.u.store.mu.RLock()
	defer r.u.store.mu.RUnlock()
	for _, d := range dates {
		c := r.current(company, room, d)
		c.CustomPrice = nil
		if price != nil {
			p := *price
			c.CustomPrice = &p
		}
		c.UpdatedBy, c.UpdatedAt = actor, at
		st.cells[cellRef{company, c.Key()}] = c
	}
	return nil
}

type blockRepository struct{ u *Unit }

func (r blockRepository) lookup(ref blockRef) (*availability.BlockPeriod, bool) {
	if st := r.u.staged(); st != nil {
		if p, ok := st.blocks[ref]; ok {
			return p, true
		}
	}
	p, ok := r.u.store.blocks[ref]
	return p, ok
}

func (r blockRepository) ByID(_ context.Context, company tenancy.CompanyID, id availability.BlockPeriodID) (*availability.BlockPeriod, error) {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	r.u.store.mu.RLock()
	defer r.u.store.mu.RUnlock()
	p, ok := r.lookup(blockRef{company, id})
	if !ok {
		return nil, availability.ErrBlockPeriodNotFound
	}
	return p.Clone(), nil
}

func (r blockRepository) Save(_ context.Context, period *availability.BlockPeriod) error {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	st, err := r.u.writable()
	if err != nil {
		return err
	}
	r.u.store.mu.RLock()
	defer r.u.store.mu.RUnlock()
	ref := blockRef{period.Company, period.ID}
	stored, exists := r.lookupVersion(ref)
	if err := checkVersion(stored, exists, period.Version); err != nil {
		return err
	}
	period.Version++
	st.blocks[ref] = period.Clone()
	return nil
}

func (r blockRepository) lookupVersion(ref blockRef) (int64, bool) {
	p, ok := r.lookup(ref)
	if !ok {
		return 0, false
	}
	return p.Version, true
}

func (r blockRepository) List(_ context.Context, company tenancy.CompanyID, activeOnly bool) ([]*availability.BlockPeriod, error) {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	r.u.store.mu.RLock()
	defer r.u.store.mu.RUnlock()
	merged := make(map[blockRef]*availability.BlockPeriod)
	for ref, p := range r.u.store.blocks {
		if ref.company == company {
			merged[ref] = p
		}
	}
	if st := r.u.staged(); st != nil {
		for ref, p := range st.blocks {
			if ref.company == company {
				merged[ref] = p
			}
		}
	}
	out := make([]*availability.BlockPeriod, 0, len(merged))
	for _, p := range merged {
		if activeOnly && !p.Active {
			continue
		}
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type ruleRepository struct{ u *Unit }

func (r ruleRepository) lookup(ref ruleRef) (*availability.Rule, bool) {
	if st := r.u.staged(); st != nil {
		if rule, ok := st.rules[ref]; ok {
			return rule, true
		}
	}
	rule, ok := r.u.store.rules[ref]
	return rule, ok
}

func (r ruleRepository) ByID(_ context.Context, company tenancy.CompanyID, id availability.RuleID) (*availability.Rule, error) {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	r.u.store.mu.RLock()
	defer r.u.store.mu.RUnlock()
	rule, ok := r.lookup(ruleRef{company, id})
	if !ok {
		return nil, availability.ErrRuleNotFound
	}
	return rule.Clone(), nil
}

func (r ruleRepository) Save(_ context.Context, rule *availability.Rule) error {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	st, err := r.u.writable()
	if err != nil {
		return err
	}
	r.u.store.mu.RLock()
	defer r.u.store.mu.RUnlock()
	ref := ruleRef{rule.Company, rule.ID}
	var stored int64
	existing, ok := r.lookup(ref)
	if ok {
		stored = existing.Version
	}
	if err := checkVersion(stored, ok, rule.Version); err != nil {
		return err
	}
	rule.Version++
	st.rules[ref] = rule.Clone()
	return nil
}

func (r ruleRepository) all(company tenancy.CompanyID) []*availability.Rule {
	merged := make(map[ruleRef]*availability.Rule)
	for ref, rule := range r.u.store.rules {
		if ref.company == company {
			merged[ref] = rule
		}
	}
	if st := r.u.staged(); st != nil {
		for ref, rule := range st.rules {
			if ref.company == company {
				merged[ref] = rule
			}
		}
	}
	out := make([]*availability.Rule, 0, len(merged))
	for _, rule := range merged {
		out = append(out, rule.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r ruleRepository) ForWindow(_ context.Context, company tenancy.CompanyID, span daterange.Span) ([]*availability.Rule, error) {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	r.u.store.mu.RLock()
	defer r.u.store.mu.RUnlock()
	var out []*availability.Rule
	for _, rule := range r.all(company) {
		if rule.Active && rule.Overlaps(span) {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (r ruleRepository) List(_ context.Context, company tenancy.CompanyID) ([]*availability.Rule, error) {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	r.u.store.mu.RLock()
	defer r.u.store.mu.RUnlock()
	return r.all(company), nil
}

type reservationRepository struct{ u *Unit }

func (r reservationRepository) lookup(ref reservationRef) (*availability.Reservation, bool) {
	if st := r.u.staged(); st != nil {
		if res, ok := st.reservations[ref]; ok {
			return res, true
		}
	}
	res, ok := r.u.store.reservations[ref]
	return res, ok
}

func (r reservationRepository) ByID(_ context.Context, company tenancy.CompanyID, id availability.ReservationID) (*availability.Reservation, error) {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	r.u.store.mu.RLock()
	defer r.u.store.mu.RUnlock()
	res, ok := r.lookup(reservationRef{company, id})
	if !ok {
		return nil, availability.ErrReservationNotFound
	}
	return res.Clone(), nil
}

func (r reservationRepository) Insert(_ context.Context, res *availability.Reservation) error {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	st, err := r.u.writable()
	if err != nil {
		return err
	}
	r.u.store.mu.RLock()
	defer r.u.store.mu.RUnlock()
	ref := reservationRef{res.Company, res.ID}
	if _, exists := r.lookup(ref); exists {
		return availability.ErrDuplicate
	}
	res.Version = 1
	st.reservations[ref] = res.Clone()
	return nil
}

func (r reservationRepository) Save(_ context.Context, res *availability.Reservation) error {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	st, err := r.u.writable()
	if err != nil {
		return err
	}
	r.u.store.mu.RLock()
	defer r.u.store.mu.RUnlock()
	ref := reservationRef{res.Company, res.ID}
	existing, ok := r.lookup(ref)
	if !ok {
		return availability.ErrReservationNotFound
	}
	if existing.Version != res.Version {
		return availability.ErrConcurrentUpdate
	}
	res.Version++
	st.reservations[ref] = res.Clone()
	return nil
}

func (r reservationRepository) Overlapping(_ context.Context, company tenancy.CompanyID, roomIDs []rooms.RoomID, stay daterange.DateRange) ([]*availability.Reservation, error) {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	r.u.store.mu.RLock()
	defer r.u.store.mu.RUnlock()
	wanted := make(map[rooms.RoomID]bool, len(roomIDs))
	for _, id := range roomIDs {
		wanted[id] = true
	}
	merged := make(map[reservationRef]*availability.Reservation)
	for ref, res := range r.u.store.reservations {
		merged[ref] = res
	}
	if st := r.u.staged(); st != nil {
		for ref, res := range st.reservations {
			merged[ref] = res
		}
	}
	var out []*availability.Reservation
	for ref, res := range merged {
		if ref.company != company || !wanted[res.Room] || !res.Occupies() || !res.Stay.Overlaps(stay) {
			continue
		}
		out = append(out, res.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Stay.CheckIn.Equal(out[j].Stay.CheckIn) {
			return out[i].Stay.CheckIn.Before(out[j].Stay.CheckIn)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// checkVersion accepts inserts of new records and updates carrying the stored version.
func checkVersion(stored int64, exists bool, given int64) error {
	switch {
	case !exists && given == 0:
		return nil
	case !exists:
		return availability.ErrConcurrentUpdate
	case given == 0:
		return availability.ErrDuplicate
	case stored != given:
		return availability.ErrConcurrentUpdate
	}
	return nil
}
