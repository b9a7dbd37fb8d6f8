package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	appoutbox "innkeep/internal/app/outbox"
	"innkeep/internal/app/uow"
)

// DefaultClaimLease hides claimed records from other relays until it runs out.
const DefaultClaimLease = time.Minute

// Outbox stores event records in the outbox table. Records added through a unit
// commit with it.
type Outbox struct {
	db    *sql.DB
	Lease time.Duration
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	var q querier = o.db
	if unit, ok := uow.FromContext(ctx); ok {
		if u, ok := unit.(*Unit); ok {
			if err := u.writable(); err != nil {
				return err
			}
			q = u.tx
		}
	}
	headers, err := json.Marshal(record.Headers)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `INSERT INTO outbox (id, name, aggregate, company_id, payload, headers, occurred_at, next_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.Name, record.Aggregate, record.Tenant, record.Payload, string(headers),
		formatTime(record.OccurredAt), formatTime(record.OccurredAt))
	if err != nil {
		return insertErr(err)
	}
	return nil
}

// Claim leases up to limit due records in commit order.
func (o *Outbox) Claim(ctx context.Context, limit int, now time.Time) ([]appoutbox.EventRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	lease := o.Lease
	if lease <= 0 {
		lease = DefaultClaimLease
	}
	tx, err := o.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapError("sqlite.outbox.claim", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id, name, aggregate, company_id, payload, headers, occurred_at, attempts
		FROM outbox WHERE sent_at IS NULL AND next_at <= ? ORDER BY rowid LIMIT ?`, formatTime(now), limit)
	if err != nil {
		return nil, mapError("sqlite.outbox.claim", err)
	}
	var out []appoutbox.EventRecord
	for rows.Next() {
		var (
			rec                 appoutbox.EventRecord
			headers, occurredAt string
		)
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Aggregate, &rec.Tenant, &rec.Payload, &headers, &occurredAt, &rec.Attempts); err != nil {
			rows.Close()
			return nil, err
		}
		if err := json.Unmarshal([]byte(headers), &rec.Headers); err != nil {
			rows.Close()
			return nil, err
		}
		rec.OccurredAt = parseTime(occurredAt)
		out = append(out, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, mapError("sqlite.outbox.claim", err)
	}
	leased := formatTime(now.Add(lease))
	for _, rec := range out {
		if _, err := tx.ExecContext(ctx, `UPDATE outbox SET next_at = ? WHERE id = ?`, leased, rec.ID); err != nil {
			return nil, mapError("sqlite.outbox.claim", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, mapError("sqlite.outbox.claim", err)
	}
	return out, nil
}

func (o *Outbox) MarkSent(ctx context.Context, id string) error {
	_, err := o.db.ExecContext(ctx, `UPDATE outbox SET sent_at = ? WHERE id = ?`, formatTime(time.Now()), id)
	return mapError("sqlite.outbox.sent", err)
}

func (o *Outbox) MarkFailed(ctx context.Context, id string, cause error, retryAt time.Time) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := o.db.ExecContext(ctx, `UPDATE outbox SET attempts = attempts + 1, next_at = ?, last_error = ? WHERE id = ?`,
		formatTime(retryAt), msg, id)
	return mapError("sqlite.outbox.failed", err)
}

var _ appoutbox.Outbox = (*Outbox)(nil)
