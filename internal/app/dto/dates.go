package dto

import (
	"time"

	"innkeep/internal/domain/shared/daterange"
)

func formatDay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(daterange.Layout)
}

func formatDays(list []time.Time) []string {
	out := make([]string, 0, len(list))
	for _, d := range list {
		out = append(out, formatDay(d))
	}
	return out
}

func formatTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
