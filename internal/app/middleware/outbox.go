package middleware

import (
	"context"

	"go.opentelemetry.io/otel/propagation"

	"innkeep/internal/app/commands"
	"innkeep/internal/app/outbox"
	"innkeep/internal/app/uow"
)

// Outbox gives each command an event batch. Durable events are added to box inside the
// unit and pushed to sinks after commit; notices reach sinks whatever the outcome.
func Outbox(box outbox.Outbox, encoder outbox.EventEncoder, sinks outbox.Sink) CommandMiddleware {
	if encoder == nil {
		encoder = outbox.JSONEventEncoder{}
	}
	propagator := propagation.TraceContext{}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			batchCtx, batch := outbox.ContextWithBatch(ctx)
			defer func() {
				if sinks == nil {
					return
				}
				if recs, err := outbox.EncodeAll(encoder, batch.TakeNotices()); err == nil {
					sinks.Deliver(ctx, recs)
				}
			}()

			res, err := nextFn(batchCtx, cmd)
			if err != nil {
				return nil, err
			}
			records, err := outbox.EncodeAll(encoder, batch.TakeDurable())
			if err != nil {
				return nil, err
			}
			for i := range records {
				propagator.Inject(ctx, propagation.MapCarrier(records[i].Headers))
				if box == nil {
					continue
				}
				if err := box.Add(ctx, records[i]); err != nil {
					return nil, err
				}
			}
			if sinks != nil && len(records) > 0 {
				deliver := func(c context.Context) { sinks.Deliver(c, records) }
				if !uow.AfterCommit(ctx, deliver) {
					deliver(ctx)
				}
			}
			return res, nil
		})
	}
}
