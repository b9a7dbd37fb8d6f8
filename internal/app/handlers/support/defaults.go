package support

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"innkeep/internal/domain/rooms"
)

// Now returns the injected clock reading or the wall clock in UTC.
func Now(clock func() time.Time) time.Time {
	if clock != nil {
		return clock().UTC()
	}
	return time.Now().UTC()
}

// NewID returns an id from gen or a random UUID.
func NewID(gen func() string) string {
	if gen != nil {
		return gen()
	}
	return uuid.NewString()
}

// RoomIDs converts raw identifiers, dropping blanks.
func RoomIDs(raw []string) []rooms.RoomID {
	out := make([]rooms.RoomID, 0, len(raw))
	for _, id := range raw {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, rooms.RoomID(id))
		}
	}
	return out
}

// ScopedKey prefixes a client idempotency key with the tenant.
func ScopedKey(company, key string) string {
	if key == "" {
		return ""
	}
	return company + ":" + key
}
