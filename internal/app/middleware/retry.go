package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"innkeep/internal/app/commands"
	"innkeep/internal/domain/availability"
)

// Retry re-runs the whole command on transient store failures. Once the backoff list
// is exhausted the failure surfaces as a transient conflict.
func Retry(backoff []time.Duration, logger *slog.Logger) CommandMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			for attempt := 0; ; attempt++ {
				res, err := nextFn(ctx, cmd)
				if err == nil || !errors.Is(err, availability.ErrTransientStore) {
					return res, err
				}
				if attempt >= len(backoff) {
					logger.WarnContext(ctx, "transient store failure, giving up",
						"command", cmd.Key(), "attempts", attempt+1, "error", err)
					return nil, &availability.ConflictError{Reason: availability.ReasonStoreBusy, Transient: true, Err: err}
				}
				logger.DebugContext(ctx, "transient store failure, retrying",
					"command", cmd.Key(), "attempt", attempt+1, "wait", backoff[attempt])
				timer := time.NewTimer(backoff[attempt])
				select {
				case <-ctx.Done():
					timer.Stop()
					return nil, &availability.ConflictError{Reason: availability.ReasonStoreBusy, Transient: true, Err: ctx.Err()}
				case <-timer.C:
				}
			}
		})
	}
}
