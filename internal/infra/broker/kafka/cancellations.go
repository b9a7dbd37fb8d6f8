package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"innkeep/internal/app/dto"
	"innkeep/internal/app/handlers/reservations"
	"innkeep/internal/domain/availability"
	"innkeep/internal/domain/tenancy"
)

// BookingActor is recorded as the actor of cancellations received from the booking service.
const BookingActor tenancy.ActorID = "booking-service"

type Canceller interface {
	CancelReservation(ctx context.Context, cmd reservations.CancelReservationCommand) (*dto.CancelResult, error)
}

type Inbox interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// cancellationEnvelope is the CloudEvents message published on the booking events topic.
type cancellationEnvelope struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	CompanyID string `json:"companyid"`
	Data      struct {
		CompanyID     string `json:"company_id"`
		ReservationID string `json:"reservation_id"`
		Reason        string `json:"reason"`
	} `json:"data"`
}

var ErrMalformedMessage = errors.New("kafka: malformed booking cancellation")

// CancellationHandler releases nights of reservations cancelled upstream.
// Messages are deduplicated by event id; unknown or already cancelled reservations are acknowledged.
type CancellationHandler struct {
	Service Canceller
	Inbox   Inbox
	Logger  *slog.Logger
}

func (h CancellationHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var env cancellationEnvelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		h.logger().Warn("dropping undecodable booking message", "offset", msg.Offset, "err", err)
		return nil
	}
	company := env.Data.CompanyID
	if company == "" {
		company = env.CompanyID
	}
	if env.ID == "" || company == "" || env.Data.ReservationID == "" {
		h.logger().Warn("dropping booking message", "offset", msg.Offset, "err", ErrMalformedMessage)
		return nil
	}
	if h.Inbox != nil {
		seen, err := h.Inbox.Seen(ctx, env.ID)
		if err != nil {
			return fmt.Errorf("kafka: inbox: %w", err)
		}
		if seen {
			return nil
		}
	}
	_, err := h.Service.CancelReservation(ctx, reservations.CancelReservationCommand{
		Scope:         tenancy.Scope{Company: tenancy.CompanyID(company), Actor: BookingActor},
		ReservationID: env.Data.ReservationID,
		Reason:        env.Data.Reason,
	})
	switch {
	case err == nil:
		h.logger().Info("reservation cancelled from booking event", "company_id", company, "reservation_id", env.Data.ReservationID)
		return nil
	case errors.Is(err, availability.ErrReservationNotFound), errors.Is(err, availability.ErrInvalidTransition):
		h.logger().Info("booking cancellation ignored", "company_id", company, "reservation_id", env.Data.ReservationID, "err", err)
		return nil
	default:
		if h.Inbox != nil {
			if ferr := h.Inbox.Forget(ctx, env.ID); ferr != nil {
				return errors.Join(err, ferr)
			}
		}
		return err
	}
}

func (h CancellationHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
