package availability

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"innkeep/internal/domain/rooms"
	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/tenancy"
)

var (
	ErrValidation         = errors.New("availability: validation failed")
	ErrConflict           = errors.New("availability: not available")
	ErrTransientStore     = errors.New("availability: transient store failure")
	ErrInvariantViolation = errors.New("availability: invariant violation")

	// ErrNightTaken is returned by stores when a claim hits a night already held by another reservation.
	ErrNightTaken = errors.New("availability: night already claimed")
	// ErrConcurrentUpdate is returned when a versioned record changed underneath the caller.
	ErrConcurrentUpdate = errors.New("availability: concurrent update detected")
	// ErrDuplicate is returned when an insert collides with an existing identifier.
	ErrDuplicate = errors.New("availability: record already exists")

	ErrReservationNotFound = errors.New("availability: reservation not found")
	ErrBlockPeriodNotFound = errors.New("availability: block period not found")
	ErrRuleNotFound        = errors.New("availability: rule not found")
	ErrInvalidTransition   = errors.New("availability: invalid reservation status transition")
)

// ValidationError collects malformed input per field. It is raised before any read.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string]string{}}
}

// Invalid builds a single-field validation error.
func Invalid(field, message string) *ValidationError {
	v := NewValidationError()
	v.Add(field, message)
	return v
}

func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, exists := e.Fields[field]; exists {
		return
	}
	e.Fields[field] = message
}

func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

// OrNil returns the error only when at least one field failed.
func (e *ValidationError) OrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "availability: invalid input (" + strings.Join(parts, "; ") + ")"
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ConflictError is the designed outcome when a stay cannot be granted, including losing a race.
type ConflictError struct {
	Reason    string
	Result    *CheckResult
	Transient bool
	Err       error
}

func (e *ConflictError) Error() string {
	msg := "availability: not available"
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

func (e *ConflictError) Unwrap() error { return e.Err }

// TransientStoreError marks lock timeouts and aborted transactions; the whole operation may be retried.
type TransientStoreError struct {
	Op  string
	Err error
}

func Transient(op string, err error) *TransientStoreError {
	return &TransientStoreError{Op: op, Err: err}
}

func (e *TransientStoreError) Error() string {
	if e.Err == nil {
		return "availability: transient store failure in " + e.Op
	}
	return fmt.Sprintf("availability: transient store failure in %s: %v", e.Op, e.Err)
}

func (e *TransientStoreError) Is(target error) bool { return target == ErrTransientStore }

func (e *TransientStoreError) Unwrap() error { return e.Err }

// InvariantViolation signals corrupted cell state. It must halt the operation and never be repaired silently.
type InvariantViolation struct {
	Company tenancy.CompanyID
	Room    rooms.RoomID
	Date    time.Time
	Detail  string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("availability: invariant violation company=%s room=%s date=%s: %s",
		e.Company, e.Room, e.Date.Format(daterange.Layout), e.Detail)
}

func (e *InvariantViolation) Is(target error) bool { return target == ErrInvariantViolation }

// IsConflict extracts a ConflictError from err, if any.
func IsConflict(err error) (*ConflictError, bool) {
	var c *ConflictError
	if errors.As(err, &c) {
		return c, true
	}
	return nil, false
}
