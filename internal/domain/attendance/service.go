package attendance

import (
	"context"
)

// ImportService turns aggregated import rows into attendance records.
type ImportService interface {
	// Import pairs punches into sessions and writes each valid row. Rows that
	// fail are reported and skipped; the rest of the import continues.
	Import(ctx context.Context, req ImportRequest) (ImportResponse, error)
}
