package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"innkeep/internal/domain/shared/events"
)

// Header keys carried with every record.
const (
	HeaderTenant = "company_id"
	HeaderTrace  = "traceparent"
)

var ErrBatchMissing = errors.New("outbox: no event batch in context")

type EventRecord struct {
	ID         string
	Name       string
	Payload    []byte
	OccurredAt time.Time
	Aggregate  string
	Tenant     string
	Headers    map[string]string
	// Attempts counts failed deliveries; relay sources fill it on claim.
	Attempts int
}

// Outbox persists records inside the caller's unit of work.
type Outbox interface {
	Add(ctx context.Context, record EventRecord) error
}

// Sink receives committed records for live fan-out. Delivery is best effort.
type Sink interface {
	Deliver(ctx context.Context, records []EventRecord)
}

type EventEncoder interface {
	Encode(ev events.DomainEvent) (EventRecord, error)
}

type JSONEventEncoder struct {
	IDGenerator func() string
}

func (e JSONEventEncoder) Encode(ev events.DomainEvent) (EventRecord, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return EventRecord{}, err
	}
	idGen := e.IDGenerator
	if idGen == nil {
		idGen = uuid.NewString
	}
	rec := EventRecord{
		ID:         idGen(),
		Name:       ev.EventName(),
		Payload:    payload,
		OccurredAt: ev.OccurredAt(),
		Aggregate:  ev.AggregateID(),
		Headers:    map[string]string{},
	}
	if scoped, ok := ev.(events.TenantScoped); ok {
		rec.Tenant = scoped.TenantID()
		rec.Headers[HeaderTenant] = rec.Tenant
	}
	return rec, nil
}

// Batch gathers the events of one command. Durable events go to the outbox with the unit;
// notices are delivered live even when the command fails.
type Batch struct {
	mu      sync.Mutex
	durable []events.DomainEvent
	notices []events.DomainEvent
}

type batchKey struct{}

func ContextWithBatch(ctx context.Context) (context.Context, *Batch) {
	b := &Batch{}
	return context.WithValue(ctx, batchKey{}, b), b
}

func BatchFromContext(ctx context.Context) (*Batch, bool) {
	b, ok := ctx.Value(batchKey{}).(*Batch)
	return b, ok && b != nil
}

// Record queues domain events for the outbox of the running command.
func Record(ctx context.Context, evs ...events.DomainEvent) error {
	if len(evs) == 0 {
		return nil
	}
	b, ok := BatchFromContext(ctx)
	if !ok {
		return ErrBatchMissing
	}
	b.mu.Lock()
	b.durable = append(b.durable, evs...)
	b.mu.Unlock()
	return nil
}

// Notice queues an event that is only pushed to live sinks.
func Notice(ctx context.Context, ev events.DomainEvent) {
	if b, ok := BatchFromContext(ctx); ok {
		b.mu.Lock()
		b.notices = append(b.notices, ev)
		b.mu.Unlock()
	}
}

// TakeDurable returns and clears the durable events.
func (b *Batch) TakeDurable() []events.DomainEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.durable
	b.durable = nil
	return out
}

func (b *Batch) TakeNotices() []events.DomainEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.notices
	b.notices = nil
	return out
}

// EncodeAll encodes evs in order.
func EncodeAll(encoder EventEncoder, evs []events.DomainEvent) ([]EventRecord, error) {
	if encoder == nil {
		encoder = JSONEventEncoder{}
	}
	out := make([]EventRecord, 0, len(evs))
	for _, ev := range evs {
		rec, err := encoder.Encode(ev)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Sinks fans records out to several sinks.
type Sinks []Sink

func (s Sinks) Deliver(ctx context.Context, records []EventRecord) {
	if len(records) == 0 {
		return
	}
	for _, sink := range s {
		if sink != nil {
			sink.Deliver(ctx, records)
		}
	}
}
