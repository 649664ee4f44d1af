package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertDeliverySQL = `INSERT INTO deliveries (
        fingerprint,
        time_label,
        sentiment,
        summary,
        tickers,
        sector,
        sink_index,
        chunks,
        translated
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    )
    ON CONFLICT (fingerprint) DO NOTHING;`

	listRecentDeliveriesSQL = `SELECT
        id,
        fingerprint,
        time_label,
        sentiment,
        summary,
        tickers,
        sector,
        sink_index,
        chunks,
        translated,
        created_at
    FROM deliveries
    ORDER BY created_at DESC
    LIMIT $1;`

	countDeliveriesSQL = `SELECT COUNT(*) FROM deliveries;`

	insertRunSQL = `INSERT INTO runs (
        started_at,
        finished_at,
        fetched,
        delivered,
        status,
        error
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    )
    RETURNING id;`

	listRunsBetweenSQL = `SELECT
        id,
        started_at,
        finished_at,
        fetched,
        delivered,
        status,
        error
    FROM runs
    WHERE started_at >= $1
      AND started_at < $2
    ORDER BY started_at;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// DeliveryLogStore defines operations for the delivery archive.
type DeliveryLogStore interface {
	InsertDelivery(ctx context.Context, rec DeliveryRecord) error
	ListRecentDeliveries(ctx context.Context, limit int) ([]DeliveryRecord, error)
	CountDeliveries(ctx context.Context) (int64, error)
}

// RunStore defines operations for run summaries.
type RunStore interface {
	InsertRun(ctx context.Context, run RunRecord) (int64, error)
	ListRunsBetween(ctx context.Context, from, to time.Time) ([]RunRecord, error)
}

// AdvisoryLocker exposes advisory lock helpers for watch-mode exclusivity.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to the delivery archive and run summaries.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertDelivery archives one relayed item. Replays of an already-archived
// fingerprint are silently ignored.
func (s *Store) InsertDelivery(ctx context.Context, rec DeliveryRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, insertDeliverySQL,
		rec.Fingerprint,
		rec.TimeLabel,
		rec.Sentiment,
		rec.Summary,
		rec.Tickers,
		rec.Sector,
		rec.SinkIndex,
		rec.Chunks,
		rec.Translated,
	)
	if execErr != nil {
		return fmt.Errorf("insert delivery: %w", execErr)
	}
	return nil
}

// ListRecentDeliveries lists the most recent archived items.
func (s *Store) ListRecentDeliveries(ctx context.Context, limit int) ([]DeliveryRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentDeliveriesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent deliveries: %w", queryErr)
	}
	defer rows.Close()

	records := make([]DeliveryRecord, 0, limit)
	for rows.Next() {
		rec, scanErr := scanDelivery(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// CountDeliveries counts archived items.
func (s *Store) CountDeliveries(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countDeliveriesSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count deliveries: %w", scanErr)
	}
	return count, nil
}

// InsertRun persists a run summary.
func (s *Store) InsertRun(ctx context.Context, run RunRecord) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	var errMsg interface{}
	if run.Error != nil {
		errMsg = *run.Error
	}

	var id int64
	scanErr := pool.QueryRow(ctx, insertRunSQL,
		run.StartedAt,
		run.FinishedAt,
		run.Fetched,
		run.Delivered,
		run.Status,
		errMsg,
	).Scan(&id)
	if scanErr != nil {
		return 0, fmt.Errorf("insert run: %w", scanErr)
	}
	return id, nil
}

// ListRunsBetween lists run summaries within a time window.
func (s *Store) ListRunsBetween(ctx context.Context, from, to time.Time) ([]RunRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRunsBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list runs between: %w", queryErr)
	}
	defer rows.Close()

	runs := make([]RunRecord, 0)
	for rows.Next() {
		var run RunRecord
		var errMsg *string
		if err := rows.Scan(
			&run.ID,
			&run.StartedAt,
			&run.FinishedAt,
			&run.Fetched,
			&run.Delivered,
			&run.Status,
			&errMsg,
		); err != nil {
			return nil, err
		}
		run.Error = errMsg
		runs = append(runs, run)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return runs, nil
}

func scanDelivery(rows pgx.Rows) (DeliveryRecord, error) {
	var rec DeliveryRecord
	if err := rows.Scan(
		&rec.ID,
		&rec.Fingerprint,
		&rec.TimeLabel,
		&rec.Sentiment,
		&rec.Summary,
		&rec.Tickers,
		&rec.Sector,
		&rec.SinkIndex,
		&rec.Chunks,
		&rec.Translated,
		&rec.CreatedAt,
	); err != nil {
		return DeliveryRecord{}, err
	}
	return rec, nil
}
