package middleware

import (
	"context"
	"errors"
	"log/slog"

	"innkeep/internal/app/commands"
	"innkeep/internal/app/queries"
	"innkeep/internal/domain/availability"
	"innkeep/internal/domain/shared/daterange"
)

// AlertDataIntegrity tags log records that must page someone.
const AlertDataIntegrity = "data_integrity"

// IntegrityAlerts logs every invariant violation a command surfaces, whichever adapter
// dispatched it. The error itself is passed through unchanged.
func IntegrityAlerts(logger *slog.Logger) CommandMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := nextFn(ctx, cmd)
			alertInvariant(ctx, logger, cmd.Key(), err)
			return res, err
		})
	}
}

func QueryIntegrityAlerts(logger *slog.Logger) QueryMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			res, err := nextFn(ctx, q)
			alertInvariant(ctx, logger, q.Key(), err)
			return res, err
		})
	}
}

func alertInvariant(ctx context.Context, logger *slog.Logger, key string, err error) {
	var iv *availability.InvariantViolation
	if !errors.As(err, &iv) {
		return
	}
	logger.ErrorContext(ctx, "cell invariant violated",
		"alert", AlertDataIntegrity,
		"message", key,
		"company_id", iv.Company,
		"room_id", iv.Room,
		"date", iv.Date.Format(daterange.Layout),
		"detail", iv.Detail,
	)
}
