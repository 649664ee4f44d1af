package storage

import (
	"time"
)

// DeliveryRecord captures one relayed news item for auditing. The JSON state
// file stays authoritative for dedup; this archive is optional history.
type DeliveryRecord struct {
	ID          int64
	Fingerprint string
	TimeLabel   string
	Sentiment   string
	Summary     string
	Tickers     []string
	Sector      string
	SinkIndex   int
	Chunks      int
	Translated  bool
	CreatedAt   time.Time
}

// RunRecord summarises one pipeline invocation.
type RunRecord struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time
	Fetched    int
	Delivered  int
	Status     string
	Error      *string
}
