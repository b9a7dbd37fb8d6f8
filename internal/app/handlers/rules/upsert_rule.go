package rules

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"innkeep/internal/app/commands"
	"innkeep/internal/app/dto"
	"innkeep/internal/app/handlers/support"
	"innkeep/internal/app/outbox"
	"innkeep/internal/app/queries"
	"innkeep/internal/app/uow"
	"innkeep/internal/domain/availability"
	"innkeep/internal/domain/rooms"
	"innkeep/internal/domain/tenancy"
)

const (
	upsertRuleKey = "availability.rule.upsert"
	listRulesKey  = "availability.rule.list"
)

// UpsertRuleCommand creates a rule when RuleID is empty and replaces it otherwise.
type UpsertRuleCommand struct {
	Scope     tenancy.Scope
	RuleID    string          `validate:"max=128"`
	RoomID    *string         `validate:"omitempty,min=1"`
	Type      string          `validate:"required,oneof=MIN_STAY MAX_STAY CLOSED_TO_ARRIVAL CLOSED_TO_DEPARTURE PRICE_OVERRIDE"`
	Config    json.RawMessage `validate:"required"`
	Priority  int             `validate:"gte=0,lte=10000"`
	Active    *bool
	ValidFrom time.Time
	ValidTo   time.Time
	Weekdays  []int `validate:"max=7,dive,gte=0,lte=6"`
}

func (c UpsertRuleCommand) Key() string { return upsertRuleKey }

func (c UpsertRuleCommand) TenantScope() tenancy.Scope { return c.Scope }

type UpsertRuleHandler struct {
	IDGenerator func() string
	Clock       func() time.Time
}

func (h *UpsertRuleHandler) Handle(ctx context.Context, cmd UpsertRuleCommand) (*dto.Rule, error) {
	unit, err := support.WriteUnit(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := availability.DecodeTypedPayload(availability.RuleType(cmd.Type), cmd.Config)
	if err != nil {
		return nil, err
	}
	company := cmd.Scope.Company
	params := availability.RuleParams{
		Scope:     cmd.Scope,
		Payload:   payload,
		Priority:  cmd.Priority,
		Active:    cmd.Active == nil || *cmd.Active,
		ValidFrom: cmd.ValidFrom,
		ValidTo:   cmd.ValidTo,
		Now:       support.Now(h.Clock),
	}
	for _, wd := range cmd.Weekdays {
		params.Weekdays = append(params.Weekdays, time.Weekday(wd))
	}
	if cmd.RoomID != nil {
		room, err := unit.Rooms().ByID(ctx, company, rooms.RoomID(*cmd.RoomID))
		if err != nil {
			return nil, support.MapRoomError(err)
		}
		id := room.ID
		params.Room = &id
	}

	rule, created, err := h.apply(ctx, unit, company, cmd.RuleID, params)
	if err != nil {
		return nil, err
	}
	if err := unit.Rules().Save(ctx, rule); err != nil {
		if errors.Is(err, availability.ErrConcurrentUpdate) {
			return nil, &availability.ConflictError{Reason: availability.ReasonConcurrentWriter, Err: err}
		}
		return nil, err
	}
	if err := outbox.Record(ctx, rule.Drain()...); err != nil {
		return nil, err
	}
	out := dto.MapRule(rule)
	out.Created = created
	return &out, nil
}

func (h *UpsertRuleHandler) apply(ctx context.Context, unit uow.UnitOfWork, company tenancy.CompanyID, id string, params availability.RuleParams) (*availability.Rule, bool, error) {
	if id == "" {
		params.ID = availability.RuleID(support.NewID(h.IDGenerator))
		rule, err := availability.NewRule(params)
		return rule, true, err
	}
	rule, err := unit.Rules().ByID(ctx, company, availability.RuleID(id))
	switch {
	case errors.Is(err, availability.ErrRuleNotFound):
		// client-chosen ids create the rule on first use
		params.ID = availability.RuleID(id)
		rule, err = availability.NewRule(params)
		return rule, true, err
	case err != nil:
		return nil, false, err
	}
	if err := rule.Update(params); err != nil {
		return nil, false, err
	}
	return rule, false, nil
}

type ListRulesQuery struct {
	Scope tenancy.Scope
}

func (q ListRulesQuery) Key() string { return listRulesKey }

func (q ListRulesQuery) TenantScope() tenancy.Scope { return q.Scope }

type ListRulesHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListRulesHandler) Handle(ctx context.Context, q ListRulesQuery) ([]dto.Rule, error) {
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	list, err := unit.Rules().List(ctx, q.Scope.Company)
	if err != nil {
		return nil, err
	}
	return dto.MapRules(list), nil
}

var (
	_ commands.Handler[UpsertRuleCommand, *dto.Rule] = (*UpsertRuleHandler)(nil)
	_ queries.Handler[ListRulesQuery, []dto.Rule]    = (*ListRulesHandler)(nil)
)
