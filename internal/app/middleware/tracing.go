package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"innkeep/internal/app/commands"
	"innkeep/internal/app/queries"
)

const tracerName = "innkeep/internal/app"

func tracerOrDefault(t trace.Tracer) trace.Tracer {
	if t != nil {
		return t
	}
	return otel.Tracer(tracerName)
}

// Tracing opens one span per dispatched command.
func Tracing(tracer trace.Tracer) CommandMiddleware {
	tracer = tracerOrDefault(tracer)
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			ctx, span := tracer.Start(ctx, "command "+cmd.Key(), trace.WithAttributes(messageAttributes(cmd.Key(), cmd)...))
			defer span.End()
			res, err := nextFn(ctx, cmd)
			finishSpan(span, err)
			return res, err
		})
	}
}

func QueryTracing(tracer trace.Tracer) QueryMiddleware {
	tracer = tracerOrDefault(tracer)
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			ctx, span := tracer.Start(ctx, "query "+q.Key(), trace.WithAttributes(messageAttributes(q.Key(), q)...))
			defer span.End()
			res, err := nextFn(ctx, q)
			finishSpan(span, err)
			return res, err
		})
	}
}

func messageAttributes(key string, message any) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("innkeep.message", key)}
	if scoped, ok := message.(Scoped); ok {
		attrs = append(attrs, attribute.String("innkeep.company_id", string(scoped.TenantScope().Company)))
	}
	return attrs
}

func finishSpan(span trace.Span, err error) {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
