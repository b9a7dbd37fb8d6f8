package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"innkeep/internal/domain/availability"
	"innkeep/internal/domain/rooms"
	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/shared/money"
	"innkeep/internal/domain/tenancy"
)

const cellColumns = `company_id, room_id, date, is_available, is_blocked, block_reason, blocked_by,
	custom_amount, custom_currency, reservation_id, updated_by, updated_at`

// keysPerQuery keeps row-value lists under the bound parameter limit.
const keysPerQuery = 400

type cellRepository struct {
	u *Unit
}

func (r cellRepository) Range(ctx context.Context, company tenancy.CompanyID, roomIDs []rooms.RoomID, span daterange.Span) ([]availability.Cell, error) {
	query := `SELECT ` + cellColumns + ` FROM calendar_cells WHERE company_id = ? AND date BETWEEN ? AND ?`
	args := []any{string(company), formatDay(span.From), formatDay(span.To)}
	if len(roomIDs) > 0 {
		query += ` AND room_id IN (` + placeholders(len(roomIDs)) + `)`
		for _, id := range roomIDs {
			args = append(args, string(id))
		}
	}
	query += ` ORDER BY room_id, date`
	return r.find(ctx, query, args...)
}

func (r cellRepository) find(ctx context.Context, query string, args ...any) ([]availability.Cell, error) {
	rows, err := r.u.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError("sqlite.cells.find", err)
	}
	defer rows.Close()
	var out []availability.Cell
	for rows.Next() {
		c, err := scanCell(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, mapError("sqlite.cells.find", rows.Err())
}

func scanCell(rows *sql.Rows) (availability.Cell, error) {
	var (
		company, room, date, reason, blockedBy string
		reservation, updatedBy, updatedAt      string
		available, blocked                     int
		amount                                 sql.NullInt64
		currency                               sql.NullString
	)
	if err := rows.Scan(&company, &room, &date, &available, &blocked, &reason, &blockedBy,
		&amount, &currency, &reservation, &updatedBy, &updatedAt); err != nil {
		return availability.Cell{}, err
	}
	c := availability.Cell{
		Company:       tenancy.CompanyID(company),
		Room:          rooms.RoomID(room),
		Date:          parseDay(date),
		IsAvailable:   available == 1,
		IsBlocked:     blocked == 1,
		BlockReason:   reason,
		ReservationID: availability.ReservationID(reservation),
		UpdatedBy:     tenancy.ActorID(updatedBy),
		UpdatedAt:     parseTime(updatedAt),
	}
	if amount.Valid && currency.Valid {
		c.CustomPrice = &money.Money{Amount: amount.Int64, Currency: currency.String}
	}
	var tags []blockTagRow
	if err := json.Unmarshal([]byte(blockedBy), &tags); err != nil {
		return availability.Cell{}, err
	}
	for _, tag := range tags {
		c.BlockedBy = append(c.BlockedBy, availability.BlockTag{Period: availability.BlockPeriodID(tag.Period), Reason: tag.Reason})
	}
	return c, nil
}

// load returns the current cell for every key, defaulting the untouched ones.
func (r cellRepository) load(ctx context.Context, company tenancy.CompanyID, keys []availability.CellKey) (map[availability.CellKey]availability.Cell, error) {
	idx := make(map[availability.CellKey]availability.Cell, len(keys))
	for start := 0; start < len(keys); start += keysPerQuery {
		end := min(start+keysPerQuery, len(keys))
		chunk := keys[start:end]
		values := make([]string, 0, len(chunk))
		args := []any{string(company)}
		for _, k := range chunk {
			values = append(values, "(?, ?)")
			args = append(args, string(k.Room), formatDay(k.Date))
		}
		cells, err := r.find(ctx, `SELECT `+cellColumns+` FROM calendar_cells
			WHERE company_id = ? AND (room_id, date) IN (VALUES `+strings.Join(values, ", ")+`)`, args...)
		if err != nil {
			return nil, err
		}
		for _, c := range cells {
			idx[c.Key()] = c
		}
	}
	for _, k := range keys {
		if _, ok := idx[k]; !ok {
			idx[k] = availability.DefaultCell(company, k.Room, k.Date)
		}
	}
	return idx, nil
}

func (r cellRepository) put(ctx context.Context, cells []availability.Cell) error {
	if len(cells) == 0 {
		return nil
	}
	stmt, err := r.u.tx.PrepareContext(ctx, `INSERT INTO calendar_cells (`+cellColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (company_id, room_id, date) DO UPDATE SET
			is_available = excluded.is_available,
			is_blocked = excluded.is_blocked,
			block_reason = excluded.block_reason,
			blocked_by = excluded.blocked_by,
			custom_amount = excluded.custom_amount,
			custom_currency = excluded.custom_currency,
			reservation_id = excluded.reservation_id,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, c := range cells {
		tags := make([]blockTagRow, 0, len(c.BlockedBy))
		for _, tag := range c.BlockedBy {
			tags = append(tags, blockTagRow{Period: string(tag.Period), Reason: tag.Reason})
		}
		blockedBy, err := json.Marshal(tags)
		if err != nil {
			return err
		}
		var (
			amount   sql.NullInt64
			currency sql.NullString
		)
		if c.CustomPrice != nil {
			amount = sql.NullInt64{Int64: c.CustomPrice.Amount, Valid: true}
			currency = sql.NullString{String: c.CustomPrice.Currency, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, string(c.Company), string(c.Room), formatDay(c.Date),
			boolInt(c.IsAvailable), boolInt(c.IsBlocked), c.BlockReason, string(blockedBy),
			amount, currency, string(c.ReservationID), string(c.UpdatedBy), formatTime(c.UpdatedAt)); err != nil {
			return err
		}
	}
	return nil
}

func nightKeys(room rooms.RoomID, nights []time.Time) []availability.CellKey {
	keys := make([]availability.CellKey, 0, len(nights))
	for _, n := range nights {
		keys = append(keys, availability.KeyOf(room, n))
	}
	return keys
}

func (r cellRepository) Claim(ctx context.Context, company tenancy.CompanyID, room rooms.RoomID, nights []time.Time, reservation availability.ReservationID, actor tenancy.ActorID, at time.Time) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	keys := nightKeys(room, nights)
	idx, err := r.load(ctx, company, keys)
	if err != nil {
		return err
	}
	claimed := make([]availability.Cell, 0, len(keys))
	for _, k := range keys {
		c := idx[k]
		if !c.Open() && c.ReservationID != reservation {
			return availability.ErrNightTaken
		}
		if err := c.Claim(reservation); err != nil {
			return err
		}
		c.UpdatedBy, c.UpdatedAt = actor, at
		claimed = append(claimed, c)
	}
	return mapError("sqlite.cells.claim", r.put(ctx, claimed))
}

func (r cellRepository) Release(ctx context.Context, company tenancy.CompanyID, room rooms.RoomID, nights []time.Time, reservation availability.ReservationID, at time.Time) ([]time.Time, error) {
	if err := r.u.writable(); err != nil {
		return nil, err
	}
	keys := nightKeys(room, nights)
	idx, err := r.load(ctx, company, keys)
	if err != nil {
		return nil, err
	}
	var (
		changed  []availability.Cell
		released []time.Time
	)
	for _, k := range keys {
		c := idx[k]
		if !c.Release(reservation) {
			continue
		}
		c.UpdatedAt = at
		changed = append(changed, c)
		released = append(released, c.Date)
	}
	if err := r.put(ctx, changed); err != nil {
		return nil, mapError("sqlite.cells.release", err)
	}
	return released, nil
}

func (r cellRepository) Block(ctx context.Context, company tenancy.CompanyID, marks []availability.BlockMark, at time.Time) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	keys := make([]availability.CellKey, 0, len(marks))
	for _, m := range marks {
		keys = append(keys, availability.KeyOf(m.Room, m.Date))
	}
	idx, err := r.load(ctx, company, keys)
	if err != nil {
		return err
	}
	var changed []availability.Cell
	for _, m := range marks {
		k := availability.KeyOf(m.Room, m.Date)
		c := idx[k]
		if c.AddBlock(m.Period, m.Reason) {
			c.UpdatedAt = at
			idx[k] = c
			changed = append(changed, c)
		}
	}
	return mapError("sqlite.cells.block", r.put(ctx, changed))
}

func (r cellRepository) Unblock(ctx context.Context, company tenancy.CompanyID, period availability.BlockPeriodID, at time.Time) ([]availability.CellKey, error) {
	if err := r.u.writable(); err != nil {
		return nil, err
	}
	cells, err := r.find(ctx, `SELECT `+cellColumns+` FROM calendar_cells
		WHERE company_id = ? AND is_blocked = 1
		AND EXISTS (SELECT 1 FROM json_each(calendar_cells.blocked_by) WHERE json_extract(value, '$.period') = ?)
		ORDER BY room_id, date`, string(company), string(period))
	if err != nil {
		return nil, err
	}
	changed := make([]availability.Cell, 0, len(cells))
	keys := make([]availability.CellKey, 0, len(cells))
	for _, c := range cells {
		if !c.RemoveBlock(period) {
			continue
		}
		c.UpdatedAt = at
		changed = append(changed, c)
		keys = append(keys, c.Key())
	}
	if err := r.put(ctx, changed); err != nil {
		return nil, mapError("sqlite.cells.unblock", err)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Room != keys[j].Room {
			return keys[i].Room < keys[j].Room
		}
		return keys[i].Date.Before(keys[j].Date)
	})
	return keys, nil
}

func (r cellRepository) SetPrice(ctx context.Context, company tenancy.CompanyID, room rooms.RoomID, dates []time.Time, price *money.Money, actor tenancy.ActorID, at time.Time) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	keys := nightKeys(room, dates)
	idx, err := r.load(ctx, company, keys)
	if err != nil {
		return err
	}
	changed := make([]availability.Cell, 0, len(keys))
	for _, k := range keys {
		c := idx[k]
		c.CustomPrice = nil
		if price != nil {
			p := *price
			c.CustomPrice = &p
		}
		c.UpdatedBy, c.UpdatedAt = actor, at
		changed = append(changed, c)
	}
	return mapError("sqlite.cells.price", r.put(ctx, changed))
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
