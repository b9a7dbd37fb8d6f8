package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/IBM/sarama"

	"innkeep/internal/app/dto"
	"innkeep/internal/app/handlers/reservations"
	"innkeep/internal/domain/availability"
	"innkeep/internal/infra/storage/memory"
)

type fakeCanceller struct {
	mu    sync.Mutex
	calls []reservations.CancelReservationCommand
	err   error
}

func (f *fakeCanceller) CancelReservation(_ context.Context, cmd reservations.CancelReservationCommand) (*dto.CancelResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, cmd)
	if f.err != nil {
		return nil, f.err
	}
	return &dto.CancelResult{}, nil
}

const cancelled = `{"id":"evt-1","type":"booking.cancelled.v1","data":{"company_id":"acme","reservation_id":"res-1","reason":"guest"}}`

func TestCancellationHandlerDeduplicates(t *testing.T) {
	svc := &fakeCanceller{}
	h := CancellationHandler{Service: svc, Inbox: memory.NewInbox()}
	msg := &sarama.ConsumerMessage{Value: []byte(cancelled)}
	for i := 0; i < 2; i++ {
		if err := h.Handle(context.Background(), msg); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
	if len(svc.calls) != 1 {
		t.Fatalf("expected one cancellation, got %d", len(svc.calls))
	}
	cmd := svc.calls[0]
	if cmd.Scope.Company != "acme" || cmd.Scope.Actor != BookingActor || cmd.ReservationID != "res-1" {
		t.Fatalf("unexpected command %+v", cmd)
	}
}

func TestCancellationHandlerRetriesTransientFailure(t *testing.T) {
	svc := &fakeCanceller{err: availability.Transient("test", errors.New("busy"))}
	h := CancellationHandler{Service: svc, Inbox: memory.NewInbox()}
	msg := &sarama.ConsumerMessage{Value: []byte(cancelled)}
	if err := h.Handle(context.Background(), msg); err == nil {
		t.Fatal("expected transient failure to surface")
	}
	svc.err = nil
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if len(svc.calls) != 2 {
		t.Fatalf("failed delivery must be retried, got %d calls", len(svc.calls))
	}
}

func TestCancellationHandlerAcknowledgesKnownOutcomes(t *testing.T) {
	cases := []struct {
		name  string
		value string
		err   error
	}{
		{"not found", cancelled, availability.ErrReservationNotFound},
		{"already cancelled", cancelled, availability.ErrInvalidTransition},
		{"undecodable", `{`, nil},
		{"missing reservation", `{"id":"evt-2","data":{"company_id":"acme"}}`, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := CancellationHandler{Service: &fakeCanceller{err: tc.err}}
			if err := h.Handle(context.Background(), &sarama.ConsumerMessage{Value: []byte(tc.value)}); err != nil {
				t.Fatalf("expected ack, got %v", err)
			}
		})
	}
}
