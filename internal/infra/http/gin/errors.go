package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"innkeep/internal/app/dto"
	"innkeep/internal/domain/availability"
	"innkeep/internal/infra/obs"
)

type errorBody struct {
	Error     string                  `json:"error"`
	Message   string                  `json:"message,omitempty"`
	Fields    map[string]string       `json:"fields,omitempty"`
	Reason    string                  `json:"reason,omitempty"`
	Retryable bool                    `json:"retryable,omitempty"`
	Result    *dto.AvailabilityResult `json:"result,omitempty"`
	RequestID string                  `json:"request_id,omitempty"`
}

// writeError maps domain failures onto HTTP. Invariant violations are never retried.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	body := errorBody{RequestID: obs.RequestIDFromContext(c.Request.Context())}
	status := http.StatusInternalServerError

	var (
		verr *availability.ValidationError
		iv   *availability.InvariantViolation
	)
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
		body.Error = "validation_failed"
		body.Fields = verr.Fields
	case errors.Is(err, availability.ErrReservationNotFound),
		errors.Is(err, availability.ErrBlockPeriodNotFound),
		errors.Is(err, availability.ErrRuleNotFound):
		status = http.StatusNotFound
		body.Error = "not_found"
		body.Message = err.Error()
	case errors.As(err, &iv):
		// Already alerted by the bus middleware.
		body.Error = "internal_error"
	case errors.Is(err, availability.ErrInvalidTransition):
		status = http.StatusConflict
		body.Error = "invalid_transition"
		body.Message = err.Error()
	default:
		if conflict, ok := availability.IsConflict(err); ok {
			status = http.StatusConflict
			body.Error = "not_available"
			body.Reason = conflict.Reason
			body.Retryable = conflict.Transient
			if conflict.Result != nil {
				res := dto.MapAvailability(*conflict.Result)
				body.Result = &res
			}
			if conflict.Transient {
				c.Header("Retry-After", "1")
			}
			break
		}
		if errors.Is(err, availability.ErrTransientStore) {
			status = http.StatusServiceUnavailable
			body.Error = "store_unavailable"
			body.Retryable = true
			c.Header("Retry-After", "1")
			break
		}
		body.Error = "internal_error"
		if logger != nil {
			logger.ErrorContext(c.Request.Context(), "request failed", "err", err)
		}
	}
	c.AbortWithStatusJSON(status, body)
}
