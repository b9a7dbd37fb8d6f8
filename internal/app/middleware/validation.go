package middleware

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"innkeep/internal/app/commands"
	"innkeep/internal/app/queries"
	"innkeep/internal/domain/availability"
)

type Validator interface {
	Validate(ctx context.Context, message any) error
}

// Validation rejects malformed commands before idempotency records or units are touched.
func Validation(v Validator) CommandMiddleware {
	check := validateWith(v)
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := check(ctx, cmd.Key(), cmd); err != nil {
				return nil, err
			}
			return nextFn(ctx, cmd)
		})
	}
}

func QueryValidation(v Validator) QueryMiddleware {
	check := validateWith(v)
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := check(ctx, q.Key(), q); err != nil {
				return nil, err
			}
			return nextFn(ctx, q)
		})
	}
}

// validateWith runs v and notes the rejected fields on the active span.
func validateWith(v Validator) func(ctx context.Context, key string, message any) error {
	if v == nil {
		panic("middleware: validator required")
	}
	return func(ctx context.Context, key string, message any) error {
		err := v.Validate(ctx, message)
		if err == nil {
			return nil
		}
		var verr *availability.ValidationError
		if errors.As(err, &verr) {
			fields := make([]string, 0, len(verr.Fields))
			for f := range verr.Fields {
				fields = append(fields, f)
			}
			sort.Strings(fields)
			trace.SpanFromContext(ctx).AddEvent("validation.rejected", trace.WithAttributes(
				attribute.String("message", key),
				attribute.String("fields", strings.Join(fields, ",")),
			))
		}
		return err
	}
}
