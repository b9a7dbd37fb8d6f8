package ginserver

import (
	"strconv"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	"innkeep/internal/domain/availability"
	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/tenancy"
)

const (
	HeaderCompany        = "X-Company-ID"
	HeaderActor          = "X-Actor-ID"
	HeaderIdempotencyKey = "Idempotency-Key"
)

// scope reads the tenant headers; a missing company is a validation failure.
func scope(c *gin.Context) (tenancy.Scope, error) {
	s, err := tenancy.NewScope(c.GetHeader(HeaderCompany), c.GetHeader(HeaderActor))
	if err != nil {
		return tenancy.Scope{}, availability.Invalid("company_id", "header "+HeaderCompany+" required")
	}
	return s, nil
}

// dates parses optional YYYY-MM-DD values, collecting every malformed field.
type dates struct {
	v *availability.ValidationError
}

func (d *dates) parse(field, raw string, required bool) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if required {
			d.fail(field, "required")
		}
		return time.Time{}
	}
	t, err := daterange.ParseDay(raw)
	if err != nil {
		d.fail(field, "must be YYYY-MM-DD")
		return time.Time{}
	}
	return t
}

func (d *dates) fail(field, msg string) {
	if d.v == nil {
		d.v = availability.NewValidationError()
	}
	d.v.Add(field, msg)
}

func (d *dates) err() error {
	if d.v == nil {
		return nil
	}
	return d.v.OrNil()
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func queryInt(c *gin.Context, key string, d *dates) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		d.fail(key, "must be an integer")
		return 0
	}
	return n
}

func invalidBody(err error) error {
	return availability.Invalid("body", "malformed JSON: "+err.Error())
}
