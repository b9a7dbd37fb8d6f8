package memory

import (
	"context"
	"sync"
	"time"

	appoutbox "innkeep/internal/app/outbox"
	"innkeep/internal/app/uow"
)

type outboxEntry struct {
	record   appoutbox.EventRecord
	sent     bool
	attempts int
	nextAt   time.Time
	lastErr  string
}

// Outbox keeps event records committed with the store until the relay marks them sent.
type Outbox struct {
	mu      sync.Mutex
	entries []outboxEntry
}

func newOutbox() *Outbox { return &Outbox{} }

// Add stages the record in the unit found in ctx, or appends it directly outside a unit.
func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	if unit, ok := uow.FromContext(ctx); ok {
		if u, ok := unit.(*Unit); ok {
			u.mu.Lock()
			defer u.mu.Unlock()
			st, err := u.writable()
			if err != nil {
				return err
			}
			st.outbox = append(st.outbox, outboxEntry{record: record})
			return nil
		}
	}
	o.append([]outboxEntry{{record: record}})
	return nil
}

func (o *Outbox) append(entries []outboxEntry) {
	if len(entries) == 0 {
		return
	}
	o.mu.Lock()
	o.entries = append(o.entries, entries...)
	o.mu.Unlock()
}

// Claim returns up to limit unsent records that are due.
func (o *Outbox) Claim(_ context.Context, limit int, now time.Time) ([]appoutbox.EventRecord, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []appoutbox.EventRecord
	for _, e := range o.entries {
		if len(out) >= limit && limit > 0 {
			break
		}
		if e.sent || e.nextAt.After(now) {
			continue
		}
		rec := e.record
		rec.Attempts = e.attempts
		out = append(out, rec)
	}
	return out, nil
}

func (o *Outbox) MarkSent(_ context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.entries {
		if o.entries[i].record.ID == id {
			o.entries[i].sent = true
			return nil
		}
	}
	return nil
}

func (o *Outbox) MarkFailed(_ context.Context, id string, cause error, retryAt time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.entries {
		if o.entries[i].record.ID == id {
			o.entries[i].attempts++
			o.entries[i].nextAt = retryAt
			if cause != nil {
				o.entries[i].lastErr = cause.Error()
			}
			return nil
		}
	}
	return nil
}

// Attempts reports how many deliveries of the record failed.
func (o *Outbox) Attempts(id string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, e := range o.entries {
		if e.record.ID == id {
			return e.attempts
		}
	}
	return 0
}

// Pending lists unsent records in commit order.
func (o *Outbox) Pending() []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []appoutbox.EventRecord
	for _, e := range o.entries {
		if !e.sent {
			out = append(out, e.record)
		}
	}
	return out
}

var _ appoutbox.Outbox = (*Outbox)(nil)
