package source

import (
	"context"

	"news-webhook-relay/internal/record"
)

// Adapter yields an ordered sequence of raw records from the live dashboard,
// newest-first. Implementations cope internally with page readiness and bot
// challenges; the pipeline never observes partial progress.
type Adapter interface {
	FetchRecords(ctx context.Context, limit int) ([]record.RawRecord, error)
}
