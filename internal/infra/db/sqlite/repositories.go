package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"innkeep/internal/domain/availability"
	"innkeep/internal/domain/rooms"
	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/shared/money"
	"innkeep/internal/domain/tenancy"
)

const roomColumns = `room_id, company_id, name, base_amount, currency, active, max_occupancy`

type roomCatalog struct {
	q querier
}

func scanRoom(scan func(...any) error) (rooms.Room, error) {
	var (
		id, company, name, currency string
		amount                      int64
		active, occupancy           int
	)
	if err := scan(&id, &company, &name, &amount, &currency, &active, &occupancy); err != nil {
		return rooms.Room{}, err
	}
	return rooms.Room{
		ID:           rooms.RoomID(id),
		Company:      tenancy.CompanyID(company),
		Name:         name,
		BasePrice:    money.Money{Amount: amount, Currency: currency},
		Active:       active == 1,
		MaxOccupancy: occupancy,
	}, nil
}

func (r roomCatalog) ByID(ctx context.Context, company tenancy.CompanyID, id rooms.RoomID) (*rooms.Room, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE company_id = ? AND room_id = ?`, string(company), string(id))
	room, err := scanRoom(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rooms.ErrRoomNotFound
	}
	if err != nil {
		return nil, mapError("sqlite.rooms.get", err)
	}
	return &room, nil
}

// List returns the requested rooms in request order, or every active room by id.
func (r roomCatalog) List(ctx context.Context, company tenancy.CompanyID, ids []rooms.RoomID) ([]rooms.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE company_id = ?`
	args := []any{string(company)}
	if len(ids) > 0 {
		query += ` AND room_id IN (` + placeholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, string(id))
		}
	} else {
		query += ` AND active = 1`
	}
	rows, err := r.q.QueryContext(ctx, query+` ORDER BY room_id`, args...)
	if err != nil {
		return nil, mapError("sqlite.rooms.list", err)
	}
	defer rows.Close()
	var found []rooms.Room
	for rows.Next() {
		room, err := scanRoom(rows.Scan)
		if err != nil {
			return nil, err
		}
		found = append(found, room)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("sqlite.rooms.list", err)
	}
	if len(ids) == 0 {
		return found, nil
	}
	byID := make(map[rooms.RoomID]rooms.Room, len(found))
	for _, room := range found {
		byID[room.ID] = room
	}
	out := make([]rooms.Room, 0, len(ids))
	seen := make(map[rooms.RoomID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		room, ok := byID[id]
		if !ok {
			return nil, rooms.ErrRoomNotFound
		}
		out = append(out, room)
	}
	return out, nil
}

func saveRoom(ctx context.Context, q querier, room rooms.Room) error {
	_, err := q.ExecContext(ctx, `INSERT INTO rooms (`+roomColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (company_id, room_id) DO UPDATE SET
			name = excluded.name,
			base_amount = excluded.base_amount,
			currency = excluded.currency,
			active = excluded.active,
			max_occupancy = excluded.max_occupancy`,
		string(room.ID), string(room.Company), room.Name, room.BasePrice.Amount, room.BasePrice.Currency,
		boolInt(room.Active), room.MaxOccupancy)
	return err
}

// checkVersion reports ErrConcurrentUpdate when an update matched no row at the expected version.
func checkVersion(res sql.Result, err error) error {
	if err != nil {
		return mapError("sqlite.save", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return availability.ErrConcurrentUpdate
	}
	return nil
}

func insertErr(err error) error {
	if isConstraint(err) {
		return availability.ErrDuplicate
	}
	return mapError("sqlite.insert", err)
}

type blockRepository struct {
	u *Unit
}

func (r blockRepository) ByID(ctx context.Context, company tenancy.CompanyID, id availability.BlockPeriodID) (*availability.BlockPeriod, error) {
	var (
		data    []byte
		version int64
	)
	err := r.u.tx.QueryRowContext(ctx, `SELECT data, version FROM block_periods WHERE company_id = ? AND period_id = ?`,
		string(company), string(id)).Scan(&data, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, availability.ErrBlockPeriodNotFound
	}
	if err != nil {
		return nil, mapError("sqlite.blocks.get", err)
	}
	return decodeBlock(data, version)
}

func (r blockRepository) Save(ctx context.Context, period *availability.BlockPeriod) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	data, err := encodeBlock(period)
	if err != nil {
		return err
	}
	next := period.Version + 1
	if period.Version == 0 {
		_, err = r.u.tx.ExecContext(ctx, `INSERT INTO block_periods (company_id, period_id, active, created_at, version, data)
			VALUES (?, ?, ?, ?, ?, ?)`,
			string(period.Company), string(period.ID), boolInt(period.Active), formatTime(period.CreatedAt), next, string(data))
		if err != nil {
			return insertErr(err)
		}
	} else {
		err = checkVersion(r.u.tx.ExecContext(ctx, `UPDATE block_periods SET active = ?, version = ?, data = ?
			WHERE company_id = ? AND period_id = ? AND version = ?`,
			boolInt(period.Active), next, string(data), string(period.Company), string(period.ID), period.Version))
		if err != nil {
			return err
		}
	}
	period.Version = next
	return nil
}

func (r blockRepository) List(ctx context.Context, company tenancy.CompanyID, activeOnly bool) ([]*availability.BlockPeriod, error) {
	query := `SELECT data, version FROM block_periods WHERE company_id = ?`
	if activeOnly {
		query += ` AND active = 1`
	}
	rows, err := r.u.tx.QueryContext(ctx, query+` ORDER BY created_at, period_id`, string(company))
	if err != nil {
		return nil, mapError("sqlite.blocks.list", err)
	}
	defer rows.Close()
	var out []*availability.BlockPeriod
	for rows.Next() {
		var (
			data    []byte
			version int64
		)
		if err := rows.Scan(&data, &version); err != nil {
			return nil, err
		}
		p, err := decodeBlock(data, version)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, mapError("sqlite.blocks.list", rows.Err())
}

type ruleRepository struct {
	u *Unit
}

func (r ruleRepository) ByID(ctx context.Context, company tenancy.CompanyID, id availability.RuleID) (*availability.Rule, error) {
	var (
		data    []byte
		version int64
	)
	err := r.u.tx.QueryRowContext(ctx, `SELECT data, version FROM availability_rules WHERE company_id = ? AND rule_id = ?`,
		string(company), string(id)).Scan(&data, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, availability.ErrRuleNotFound
	}
	if err != nil {
		return nil, mapError("sqlite.rules.get", err)
	}
	return decodeRule(data, version)
}

func (r ruleRepository) Save(ctx context.Context, rule *availability.Rule) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	data, err := encodeRule(rule)
	if err != nil {
		return err
	}
	next := rule.Version + 1
	if rule.Version == 0 {
		_, err = r.u.tx.ExecContext(ctx, `INSERT INTO availability_rules (company_id, rule_id, active, priority, version, data)
			VALUES (?, ?, ?, ?, ?, ?)`,
			string(rule.Company), string(rule.ID), boolInt(rule.Active), rule.Priority, next, string(data))
		if err != nil {
			return insertErr(err)
		}
	} else {
		err = checkVersion(r.u.tx.ExecContext(ctx, `UPDATE availability_rules SET active = ?, priority = ?, version = ?, data = ?
			WHERE company_id = ? AND rule_id = ? AND version = ?`,
			boolInt(rule.Active), rule.Priority, next, string(data), string(rule.Company), string(rule.ID), rule.Version))
		if err != nil {
			return err
		}
	}
	rule.Version = next
	return nil
}

func (r ruleRepository) find(ctx context.Context, query string, args ...any) ([]*availability.Rule, error) {
	rows, err := r.u.tx.QueryContext(ctx, query+` ORDER BY priority, rule_id`, args...)
	if err != nil {
		return nil, mapError("sqlite.rules.find", err)
	}
	defer rows.Close()
	var out []*availability.Rule
	for rows.Next() {
		var (
			data    []byte
			version int64
		)
		if err := rows.Scan(&data, &version); err != nil {
			return nil, err
		}
		rule, err := decodeRule(data, version)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, mapError("sqlite.rules.find", rows.Err())
}

// ForWindow reads the active rules of the company once and keeps those overlapping span.
func (r ruleRepository) ForWindow(ctx context.Context, company tenancy.CompanyID, span daterange.Span) ([]*availability.Rule, error) {
	all, err := r.find(ctx, `SELECT data, version FROM availability_rules WHERE company_id = ? AND active = 1`, string(company))
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, rule := range all {
		if rule.Overlaps(span) {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (r ruleRepository) List(ctx context.Context, company tenancy.CompanyID) ([]*availability.Rule, error) {
	return r.find(ctx, `SELECT data, version FROM availability_rules WHERE company_id = ?`, string(company))
}

type reservationRepository struct {
	u *Unit
}

func (r reservationRepository) ByID(ctx context.Context, company tenancy.CompanyID, id availability.ReservationID) (*availability.Reservation, error) {
	var (
		data    []byte
		version int64
	)
	err := r.u.tx.QueryRowContext(ctx, `SELECT data, version FROM reservations WHERE company_id = ? AND reservation_id = ?`,
		string(company), string(id)).Scan(&data, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, availability.ErrReservationNotFound
	}
	if err != nil {
		return nil, mapError("sqlite.reservations.get", err)
	}
	return decodeReservation(data, version)
}

func (r reservationRepository) Insert(ctx context.Context, res *availability.Reservation) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	data, err := encodeReservation(res)
	if err != nil {
		return err
	}
	_, err = r.u.tx.ExecContext(ctx, `INSERT INTO reservations (company_id, reservation_id, room_id, check_in, check_out, status, version, data)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?)`,
		string(res.Company), string(res.ID), string(res.Room), formatDay(res.Stay.CheckIn), formatDay(res.Stay.CheckOut),
		string(res.Status), string(data))
	if err != nil {
		return insertErr(err)
	}
	res.Version = 1
	return nil
}

func (r reservationRepository) Save(ctx context.Context, res *availability.Reservation) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	if res.Version == 0 {
		return availability.ErrReservationNotFound
	}
	data, err := encodeReservation(res)
	if err != nil {
		return err
	}
	next := res.Version + 1
	err = checkVersion(r.u.tx.ExecContext(ctx, `UPDATE reservations SET status = ?, version = ?, data = ?
		WHERE company_id = ? AND reservation_id = ? AND version = ?`,
		string(res.Status), next, string(data), string(res.Company), string(res.ID), res.Version))
	if err != nil {
		return err
	}
	res.Version = next
	return nil
}

// Overlapping compares YYYY-MM-DD text: check_in < stay.CheckOut and check_out > stay.CheckIn.
func (r reservationRepository) Overlapping(ctx context.Context, company tenancy.CompanyID, roomIDs []rooms.RoomID, stay daterange.DateRange) ([]*availability.Reservation, error) {
	query := `SELECT data, version FROM reservations
		WHERE company_id = ? AND status IN (?, ?) AND check_in < ? AND check_out > ?`
	args := []any{string(company), string(availability.StatusPendingHold), string(availability.StatusConfirmed),
		formatDay(stay.CheckOut), formatDay(stay.CheckIn)}
	if len(roomIDs) > 0 {
		query += ` AND room_id IN (` + placeholders(len(roomIDs)) + `)`
		for _, id := range roomIDs {
			args = append(args, string(id))
		}
	}
	rows, err := r.u.tx.QueryContext(ctx, query+` ORDER BY check_in, reservation_id`, args...)
	if err != nil {
		return nil, mapError("sqlite.reservations.overlapping", err)
	}
	defer rows.Close()
	var out []*availability.Reservation
	for rows.Next() {
		var (
			data    []byte
			version int64
		)
		if err := rows.Scan(&data, &version); err != nil {
			return nil, err
		}
		res, err := decodeReservation(data, version)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, mapError("sqlite.reservations.overlapping", rows.Err())
}
