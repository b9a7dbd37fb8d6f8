// Package engine assembles the handlers and middleware chains and exposes the
// availability operations as typed methods.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"innkeep/internal/app/commands"
	"innkeep/internal/app/dto"
	"innkeep/internal/app/handlers/calendar"
	"innkeep/internal/app/handlers/occupancy"
	"innkeep/internal/app/handlers/reservations"
	"innkeep/internal/app/handlers/rules"
	"innkeep/internal/app/middleware"
	"innkeep/internal/app/outbox"
	"innkeep/internal/app/policies"
	"innkeep/internal/app/queries"
	"innkeep/internal/app/uow"
)

var ErrConfig = errors.New("engine: invalid configuration")

type Config struct {
	UoWFactory  uow.UoWFactory
	Validator   middleware.Validator
	Idempotency middleware.IdempotencyStore
	Outbox      outbox.Outbox
	Encoder     outbox.EventEncoder
	Sinks       outbox.Sink
	Tracer      trace.Tracer
	Logger      *slog.Logger

	// RetryBackoff lists the waits between attempts of a command that hit a busy store.
	RetryBackoff []time.Duration
	LockTimeout  time.Duration

	MaxStayNights int
	GridMaxDays   int
	HorizonDays   int

	StatsCache policies.StatsCache
	StatsTTL   time.Duration
	Reports    policies.ReportStore

	Clock       func() time.Time
	IDGenerator func() string
}

// Engine dispatches through the command and query chains.
type Engine struct {
	commands commands.Bus
	queries  queries.Bus
}

func New(cfg Config) (*Engine, error) {
	if cfg.UoWFactory == nil {
		return nil, errors.Join(ErrConfig, errors.New("uow factory required"))
	}
	if cfg.Validator == nil {
		return nil, errors.Join(ErrConfig, errors.New("validator required"))
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cmdBus := commands.NewInMemoryBus()
	commands.RegisterHandler[reservations.CreateReservationCommand, *dto.Reservation](cmdBus, &reservations.CreateReservationHandler{
		MaxNights: cfg.MaxStayNights, IDGenerator: cfg.IDGenerator, Clock: cfg.Clock,
	})
	commands.RegisterHandler[reservations.ConfirmReservationCommand, *dto.Reservation](cmdBus, &reservations.ConfirmReservationHandler{Clock: cfg.Clock})
	commands.RegisterHandler[reservations.CancelReservationCommand, *dto.CancelResult](cmdBus, &reservations.CancelReservationHandler{Clock: cfg.Clock})
	commands.RegisterHandler[calendar.CreateBlockPeriodCommand, *dto.BlockPeriod](cmdBus, &calendar.CreateBlockPeriodHandler{
		HorizonDays: cfg.HorizonDays, IDGenerator: cfg.IDGenerator, Clock: cfg.Clock,
	})
	commands.RegisterHandler[calendar.DeactivateBlockPeriodCommand, *dto.DeactivateResult](cmdBus, &calendar.DeactivateBlockPeriodHandler{Clock: cfg.Clock})
	commands.RegisterHandler[calendar.SetDatePriceCommand, *dto.PriceResult](cmdBus, &calendar.SetDatePriceHandler{MaxDays: cfg.GridMaxDays, Clock: cfg.Clock})
	commands.RegisterHandler[rules.UpsertRuleCommand, *dto.Rule](cmdBus, &rules.UpsertRuleHandler{IDGenerator: cfg.IDGenerator, Clock: cfg.Clock})

	qBus := queries.NewInMemoryBus()
	queries.RegisterHandler[calendar.CheckAvailabilityQuery, dto.AvailabilityResult](qBus, &calendar.CheckAvailabilityHandler{UoWFactory: cfg.UoWFactory, MaxNights: cfg.MaxStayNights})
	queries.RegisterHandler[calendar.BuildGridQuery, dto.Grid](qBus, &calendar.BuildGridHandler{UoWFactory: cfg.UoWFactory, MaxDays: cfg.GridMaxDays})
	queries.RegisterHandler[calendar.ListBlockPeriodsQuery, []dto.BlockPeriod](qBus, &calendar.ListBlockPeriodsHandler{UoWFactory: cfg.UoWFactory})
	queries.RegisterHandler[rules.ListRulesQuery, []dto.Rule](qBus, &rules.ListRulesHandler{UoWFactory: cfg.UoWFactory})
	queries.RegisterHandler[reservations.GetReservationQuery, dto.Reservation](qBus, &reservations.GetReservationHandler{UoWFactory: cfg.UoWFactory})
	queries.RegisterHandler[occupancy.ComputeStatsQuery, dto.OccupancyStats](qBus, &occupancy.ComputeStatsHandler{
		UoWFactory: cfg.UoWFactory, Cache: cfg.StatsCache, TTL: cfg.StatsTTL, MaxDays: cfg.GridMaxDays, Logger: logger,
	})
	queries.RegisterHandler[occupancy.ExportReportQuery, dto.ReportExport](qBus, &occupancy.ExportReportHandler{
		UoWFactory: cfg.UoWFactory, Store: cfg.Reports, MaxDays: cfg.GridMaxDays, Clock: cfg.Clock,
	})

	var idempotency middleware.CommandMiddleware
	if cfg.Idempotency != nil {
		idempotency = middleware.Idempotency(cfg.Idempotency, nil)
	}
	lockTimeout := cfg.LockTimeout
	txOptions := func(commands.Command) uow.TxOptions { return uow.TxOptions{LockTimeout: lockTimeout} }

	return &Engine{
		commands: middleware.ChainCommands(cmdBus,
			middleware.Tracing(cfg.Tracer),
			middleware.IntegrityAlerts(logger),
			middleware.TenantGuard(),
			middleware.Validation(cfg.Validator),
			idempotency,
			middleware.Retry(cfg.RetryBackoff, logger),
			middleware.Transaction(cfg.UoWFactory, txOptions),
			middleware.Outbox(cfg.Outbox, cfg.Encoder, cfg.Sinks),
		),
		queries: middleware.ChainQueries(qBus,
			middleware.QueryTracing(cfg.Tracer),
			middleware.QueryIntegrityAlerts(logger),
			middleware.QueryTenantGuard(),
			middleware.QueryValidation(cfg.Validator),
		),
	}, nil
}

func (e *Engine) CheckAvailability(ctx context.Context, q calendar.CheckAvailabilityQuery) (dto.AvailabilityResult, error) {
	return queries.Ask[calendar.CheckAvailabilityQuery, dto.AvailabilityResult](ctx, e.queries, q)
}

func (e *Engine) BuildGrid(ctx context.Context, q calendar.BuildGridQuery) (dto.Grid, error) {
	return queries.Ask[calendar.BuildGridQuery, dto.Grid](ctx, e.queries, q)
}

func (e *Engine) ComputeOccupancyStats(ctx context.Context, q occupancy.ComputeStatsQuery) (dto.OccupancyStats, error) {
	return queries.Ask[occupancy.ComputeStatsQuery, dto.OccupancyStats](ctx, e.queries, q)
}

func (e *Engine) ExportOccupancyReport(ctx context.Context, q occupancy.ExportReportQuery) (dto.ReportExport, error) {
	return queries.Ask[occupancy.ExportReportQuery, dto.ReportExport](ctx, e.queries, q)
}

func (e *Engine) GetReservation(ctx context.Context, q reservations.GetReservationQuery) (dto.Reservation, error) {
	return queries.Ask[reservations.GetReservationQuery, dto.Reservation](ctx, e.queries, q)
}

func (e *Engine) ListBlockPeriods(ctx context.Context, q calendar.ListBlockPeriodsQuery) ([]dto.BlockPeriod, error) {
	return queries.Ask[calendar.ListBlockPeriodsQuery, []dto.BlockPeriod](ctx, e.queries, q)
}

func (e *Engine) ListRules(ctx context.Context, q rules.ListRulesQuery) ([]dto.Rule, error) {
	return queries.Ask[rules.ListRulesQuery, []dto.Rule](ctx, e.queries, q)
}

func (e *Engine) CreateReservation(ctx context.Context, cmd reservations.CreateReservationCommand) (*dto.Reservation, error) {
	return commands.Dispatch[reservations.CreateReservationCommand, *dto.Reservation](ctx, e.commands, cmd)
}

func (e *Engine) ConfirmReservation(ctx context.Context, cmd reservations.ConfirmReservationCommand) (*dto.Reservation, error) {
	return commands.Dispatch[reservations.ConfirmReservationCommand, *dto.Reservation](ctx, e.commands, cmd)
}

func (e *Engine) CancelReservation(ctx context.Context, cmd reservations.CancelReservationCommand) (*dto.CancelResult, error) {
	return commands.Dispatch[reservations.CancelReservationCommand, *dto.CancelResult](ctx, e.commands, cmd)
}

func (e *Engine) CreateBlockPeriod(ctx context.Context, cmd calendar.CreateBlockPeriodCommand) (*dto.BlockPeriod, error) {
	return commands.Dispatch[calendar.CreateBlockPeriodCommand, *dto.BlockPeriod](ctx, e.commands, cmd)
}

func (e *Engine) DeactivateBlockPeriod(ctx context.Context, cmd calendar.DeactivateBlockPeriodCommand) (*dto.DeactivateResult, error) {
	return commands.Dispatch[calendar.DeactivateBlockPeriodCommand, *dto.DeactivateResult](ctx, e.commands, cmd)
}

func (e *Engine) SetDatePrice(ctx context.Context, cmd calendar.SetDatePriceCommand) (*dto.PriceResult, error) {
	return commands.Dispatch[calendar.SetDatePriceCommand, *dto.PriceResult](ctx, e.commands, cmd)
}

func (e *Engine) UpsertRule(ctx context.Context, cmd rules.UpsertRuleCommand) (*dto.Rule, error) {
	return commands.Dispatch[rules.UpsertRuleCommand, *dto.Rule](ctx, e.commands, cmd)
}
