package sheets

import (
	"context"

	"birthdaymemo/internal/core"
)

// HistoryExporter mirrors a user's record into an external sheet.
type HistoryExporter interface {
	ExportHistory(ctx context.Context, username string, rec core.Record) error
}
