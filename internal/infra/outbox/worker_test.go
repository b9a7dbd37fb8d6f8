package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	appoutbox "innkeep/internal/app/outbox"
	"innkeep/internal/infra/storage/memory"
)

type publishedMessage struct {
	topic   string
	key     string
	payload []byte
	headers map[string]string
}

type fakeProducer struct {
	mu   sync.Mutex
	fail int
	msgs []publishedMessage
}

func (p *fakeProducer) Publish(_ context.Context, topic, key string, payload []byte, headers map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail > 0 {
		p.fail--
		return errors.New("broker down")
	}
	p.msgs = append(p.msgs, publishedMessage{topic: topic, key: key, payload: payload, headers: headers})
	return nil
}

func TestWorkerPublishesCloudEvents(t *testing.T) {
	ctx := context.Background()
	store := memory.New(memory.Options{})
	rec := appoutbox.EventRecord{
		ID:         "evt-1",
		Name:       "reservation.created",
		Payload:    []byte(`{"reservation_id":"r1"}`),
		OccurredAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
		Aggregate:  "r1",
		Tenant:     "acme",
		Headers:    map[string]string{appoutbox.HeaderTenant: "acme"},
	}
	if err := store.Outbox().Add(ctx, rec); err != nil {
		t.Fatalf("add: %v", err)
	}
	producer := &fakeProducer{}
	w := &Worker{Store: store.Outbox(), Producer: producer, TopicPrefix: "test."}
	sent, err := w.ProcessOnce(ctx)
	if err != nil || sent != 1 {
		t.Fatalf("process: sent=%d err=%v", sent, err)
	}
	msg := producer.msgs[0]
	if msg.topic != "test.reservation.events.v1" || msg.key != "r1" || msg.headers[appoutbox.HeaderTenant] != "acme" {
		t.Fatalf("unexpected message %+v", msg)
	}
	var ce map[string]any
	if err := json.Unmarshal(msg.payload, &ce); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if ce["id"] != "evt-1" || ce["type"] != "reservation.created.v1" || ce["companyid"] != "acme" {
		t.Fatalf("unexpected cloud event %v", ce)
	}
	if len(store.Outbox().Pending()) != 0 {
		t.Fatal("published record still pending")
	}
}

func TestWorkerBacksOffFailedPublish(t *testing.T) {
	ctx := context.Background()
	store := memory.New(memory.Options{})
	_ = store.Outbox().Add(ctx, appoutbox.EventRecord{ID: "evt-1", Name: "calendar.blocked", Payload: []byte(`{}`)})
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	producer := &fakeProducer{fail: 1}
	w := &Worker{
		Store:    store.Outbox(),
		Producer: producer,
		Backoff:  []time.Duration{time.Minute},
		Clock:    func() time.Time { return now },
	}
	if sent, err := w.ProcessOnce(ctx); err != nil || sent != 0 {
		t.Fatalf("expected failed pass, sent=%d err=%v", sent, err)
	}
	if store.Outbox().Attempts("evt-1") != 1 {
		t.Fatal("expected one recorded attempt")
	}
	if sent, _ := w.ProcessOnce(ctx); sent != 0 {
		t.Fatal("record retried before its backoff elapsed")
	}
	now = now.Add(2 * time.Minute)
	if sent, err := w.ProcessOnce(ctx); err != nil || sent != 1 {
		t.Fatalf("expected retry after backoff, sent=%d err=%v", sent, err)
	}
}

func TestWorkerRequiresDependencies(t *testing.T) {
	if err := (&Worker{}).Run(context.Background()); !errors.Is(err, ErrWorkerNotConfigured) {
		t.Fatalf("expected ErrWorkerNotConfigured, got %v", err)
	}
}
