package calendar

import (
	"context"
	"time"

	"innkeep/internal/app/commands"
	"innkeep/internal/app/dto"
	"innkeep/internal/app/handlers/support"
	"innkeep/internal/app/outbox"
	"innkeep/internal/domain/availability"
	"innkeep/internal/domain/rooms"
	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/shared/money"
	"innkeep/internal/domain/tenancy"
)

const setDatePriceKey = "calendar.price.set"

// SetDatePriceCommand sets the operator price of each date in [From, To]; a nil Price clears it.
type SetDatePriceCommand struct {
	Scope  tenancy.Scope
	RoomID string    `validate:"required"`
	From   time.Time `validate:"required"`
	To     time.Time `validate:"required"`
	Price  *money.Money
}

func (c SetDatePriceCommand) Key() string { return setDatePriceKey }

func (c SetDatePriceCommand) TenantScope() tenancy.Scope { return c.Scope }

type SetDatePriceHandler struct {
	MaxDays int
	Clock   func() time.Time
}

func (h *SetDatePriceHandler) Handle(ctx context.Context, cmd SetDatePriceCommand) (*dto.PriceResult, error) {
	unit, err := support.WriteUnit(ctx)
	if err != nil {
		return nil, err
	}
	span, err := daterange.NewSpan(cmd.From, cmd.To)
	if err != nil {
		return nil, availability.Invalid("to", "must not precede from")
	}
	max := h.MaxDays
	if max <= 0 {
		max = support.DefaultGridMaxDays
	}
	if span.Len() > max {
		return nil, availability.Invalid("to", "window too long")
	}
	company := cmd.Scope.Company
	room, err := unit.Rooms().ByID(ctx, company, rooms.RoomID(cmd.RoomID))
	if err != nil {
		return nil, support.MapRoomError(err)
	}
	if cmd.Price != nil {
		if err := cmd.Price.Validate(); err != nil {
			return nil, availability.Invalid("price", err.Error())
		}
		if !cmd.Price.SameCurrency(room.BasePrice) {
			return nil, availability.Invalid("price.currency", "must match the room currency "+room.BasePrice.Currency)
		}
	}
	now := support.Now(h.Clock)
	if err := unit.Cells().SetPrice(ctx, company, room.ID, span.Days(), cmd.Price, cmd.Scope.ActorOrSystem(), now); err != nil {
		return nil, err
	}
	if err := outbox.Record(ctx, availability.CalendarPriceSet{Company: company, Room: room.ID, Span: span, Price: cmd.Price, At: now}); err != nil {
		return nil, err
	}
	return &dto.PriceResult{
		RoomID: string(room.ID),
		From:   span.From.Format(daterange.Layout),
		To:     span.To.Format(daterange.Layout),
		Dates:  span.Len(),
	}, nil
}

var _ commands.Handler[SetDatePriceCommand, *dto.PriceResult] = (*SetDatePriceHandler)(nil)
