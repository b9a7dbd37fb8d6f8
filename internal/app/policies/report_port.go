package policies

import "context"

// ReportStore uploads generated reports and returns where they can be fetched.
type ReportStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}
