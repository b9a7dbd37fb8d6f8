package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"time"

	"innkeep/internal/app/commands"
	"innkeep/internal/domain/availability"
)

// IdempotentCommand is implemented by commands whose effect must not repeat on client retries.
type IdempotentCommand interface {
	commands.Command
	// IdempotencyKey is already scoped to the tenant; empty disables replay.
	IdempotencyKey() string
	ResultPrototype() any
}

// Error kinds kept with a record so replays return the same class of error.
const (
	errKindConflict   = "conflict"
	errKindValidation = "validation"
	errKindOther      = "error"
)

type IdempotencyRecord struct {
	Key        string
	Command    string
	Payload    []byte
	Error      string
	ErrorKind  string
	OccurredAt time.Time
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (IdempotencyRecord, bool, error)
	Save(ctx context.Context, rec IdempotencyRecord) error
}

type ResultCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

type JSONResultCodec struct{}

func (JSONResultCodec) Encode(v any) ([]byte, error) { return json.Marshal(v) }

func (JSONResultCodec) Decode(data []byte, out any) error { return json.Unmarshal(data, out) }

var (
	errMissingPrototype = errors.New("middleware: idempotent command requires result prototype")
	// ErrIdempotencyKeyReused is returned when a key is replayed for a different command.
	ErrIdempotencyKeyReused = errors.New("middleware: idempotency key reused for another command")
)

func Idempotency(store IdempotencyStore, codec ResultCodec) CommandMiddleware {
	if store == nil {
		panic("middleware: idempotency store required")
	}
	if codec == nil {
		codec = JSONResultCodec{}
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			idCmd, ok := cmd.(IdempotentCommand)
			if !ok {
				return nextFn(ctx, cmd)
			}
			key := idCmd.IdempotencyKey()
			if key == "" {
				return nextFn(ctx, cmd)
			}
			rec, found, err := store.Get(ctx, key)
			if err != nil {
				return nil, err
			}
			if found {
				return replay(rec, idCmd, codec)
			}
			result, err := nextFn(ctx, cmd)
			record := IdempotencyRecord{Key: key, Command: cmd.Key(), OccurredAt: time.Now().UTC()}
			if err != nil {
				// Transient failures must stay retryable under the same key.
				if errors.Is(err, availability.ErrTransientStore) || isTransientConflict(err) {
					return nil, err
				}
				record.ErrorKind, record.Error = describeError(err)
				if saveErr := store.Save(ctx, record); saveErr != nil {
					return nil, errors.Join(err, saveErr)
				}
				return nil, err
			}
			if result != nil {
				payload, encErr := codec.Encode(result)
				if encErr != nil {
					return nil, encErr
				}
				record.Payload = payload
			}
			if saveErr := store.Save(ctx, record); saveErr != nil {
				return nil, saveErr
			}
			return result, nil
		})
	}
}

func replay(rec IdempotencyRecord, cmd IdempotentCommand, codec ResultCodec) (any, error) {
	if rec.Command != "" && rec.Command != cmd.Key() {
		return nil, availability.Invalid("idempotency_key", ErrIdempotencyKeyReused.Error())
	}
	if rec.Error != "" {
		switch rec.ErrorKind {
		case errKindConflict:
			return nil, &availability.ConflictError{Reason: rec.Error}
		case errKindValidation:
			return nil, availability.Invalid("request", rec.Error)
		default:
			return nil, errors.New(rec.Error)
		}
	}
	proto := cmd.ResultPrototype()
	if proto == nil {
		return nil, errMissingPrototype
	}
	if err := codec.Decode(rec.Payload, proto); err != nil {
		return nil, err
	}
	return normalizePrototype(proto), nil
}

func describeError(err error) (kind, message string) {
	if c, ok := availability.IsConflict(err); ok {
		if c.Reason == "" {
			return errKindConflict, "not_available"
		}
		return errKindConflict, c.Reason
	}
	if errors.Is(err, availability.ErrValidation) {
		return errKindValidation, err.Error()
	}
	return errKindOther, err.Error()
}

func isTransientConflict(err error) bool {
	c, ok := availability.IsConflict(err)
	return ok && c.Transient
}

func normalizePrototype(proto any) any {
	rv := reflect.ValueOf(proto)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		return rv.Interface()
	}
	return proto
}
