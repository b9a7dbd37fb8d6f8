package middleware

import (
	"context"

	"innkeep/internal/app/commands"
	"innkeep/internal/app/queries"
	"innkeep/internal/domain/availability"
	"innkeep/internal/domain/tenancy"
)

// Scoped is implemented by every command and query that runs for one company.
type Scoped interface {
	TenantScope() tenancy.Scope
}

// TenantGuard rejects messages without a company scope before any handler runs.
func TenantGuard() CommandMiddleware {
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := checkScope(cmd); err != nil {
				return nil, err
			}
			return nextFn(ctx, cmd)
		})
	}
}

func QueryTenantGuard() QueryMiddleware {
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := checkScope(q); err != nil {
				return nil, err
			}
			return nextFn(ctx, q)
		})
	}
}

func checkScope(message any) error {
	scoped, ok := message.(Scoped)
	if !ok {
		return nil
	}
	if err := scoped.TenantScope().Validate(); err != nil {
		return availability.Invalid("company_id", "required")
	}
	return nil
}
