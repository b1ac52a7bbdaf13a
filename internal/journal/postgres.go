package journal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// DefaultBatchSize is the maximum number of change rows held in memory
	// before an automatic flush is triggered.
	DefaultBatchSize = 100

	// DefaultFlushInterval is how often the background goroutine flushes
	// pending changes even when the batch has not reached DefaultBatchSize.
	DefaultFlushInterval = 100 * time.Millisecond
)

// Postgres is a PostgreSQL-backed Journal for deployments that aggregate
// several watchdogd instances into one database.
//
// Recording is batched: Record accumulates changes in memory and flushes to
// the database either when the buffer reaches batchSize or when the
// background ticker fires, whichever comes first. A busy watch therefore
// costs one round-trip per flush interval, not one per change.
type Postgres struct {
	pool          *pgxpool.Pool
	mu            sync.Mutex
	batch         []Change
	batchSize     int
	flushInterval time.Duration
	stopCh        chan struct{}
	doneCh        chan struct{}
}

var _ Journal = (*Postgres)(nil)

// postgresDDL is the schema, applied idempotently on open.
const postgresDDL = `
CREATE TABLE IF NOT EXISTS change_journal (
    id          BIGSERIAL PRIMARY KEY,
    watch_name  TEXT        NOT NULL,
    watch_path  TEXT        NOT NULL,
    path        TEXT        NOT NULL,
    detected_at TIMESTAMPTZ NOT NULL,
    recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_change_journal_detected
    ON change_journal (detected_at);
`

// OpenPostgres opens a pgxpool connection to connStr, pings the database,
// applies the schema, and starts the background flush goroutine.
//
// batchSize ≤ 0 is replaced with DefaultBatchSize.
// flushInterval ≤ 0 is replaced with DefaultFlushInterval.
func OpenPostgres(ctx context.Context, connStr string, batchSize int, flushInterval time.Duration) (*Postgres, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if flushInterval <= 0 {
		flushInterval = DefaultFlushInterval
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("journal: pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("journal: pool.Ping: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresDDL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("journal: apply schema: %w", err)
	}

	j := &Postgres{
		pool:          pool,
		batch:         make([]Change, 0, batchSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
	go j.flushLoop()
	return j, nil
}

// flushLoop is the background goroutine that ticks on flushInterval and
// calls Flush. It exits when stopCh is closed.
func (j *Postgres) flushLoop() {
	defer close(j.doneCh)
	ticker := time.NewTicker(j.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-j.stopCh:
			return
		case <-ticker.C:
			_ = j.Flush(context.Background())
		}
	}
}

// Record enqueues c for deferred batch insertion. It implements Journal.
//
// If the internal buffer reaches batchSize after appending, Flush is called
// synchronously before returning so the caller observes back-pressure rather
// than unbounded memory growth.
func (j *Postgres) Record(ctx context.Context, c Change) error {
	j.mu.Lock()
	j.batch = append(j.batch, c)
	full := len(j.batch) >= j.batchSize
	j.mu.Unlock()

	if full {
		return j.Flush(ctx)
	}
	return nil
}

// Flush drains the current buffer and sends all rows to PostgreSQL in a
// single pgx.Batch round-trip.
//
// Flush is safe to call concurrently: a mutex swap ensures each call drains
// a distinct snapshot of the buffer.
func (j *Postgres) Flush(ctx context.Context) error {
	j.mu.Lock()
	if len(j.batch) == 0 {
		j.mu.Unlock()
		return nil
	}
	toInsert := j.batch
	j.batch = make([]Change, 0, j.batchSize)
	j.mu.Unlock()

	const query = `
		INSERT INTO change_journal (watch_name, watch_path, path, detected_at)
		VALUES ($1, $2, $3, $4)`

	b := &pgx.Batch{}
	for i := range toInsert {
		c := &toInsert[i]
		b.Queue(query, c.WatchName, c.WatchPath, c.Path, c.DetectedAt.UTC())
	}

	br := j.pool.SendBatch(ctx, b)
	defer br.Close()

	for range toInsert {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("journal: batch exec change: %w", err)
		}
	}
	return nil
}

// Recent returns up to limit changes, newest first. The buffer is flushed
// first so a change recorded just before a query is visible to it.
func (j *Postgres) Recent(ctx context.Context, limit int) ([]Change, error) {
	if limit <= 0 {
		return nil, nil
	}
	if err := j.Flush(ctx); err != nil {
		return nil, err
	}

	rows, err := j.pool.Query(ctx, `
		SELECT id, watch_name, watch_path, path, detected_at
		FROM   change_journal
		ORDER  BY id DESC
		LIMIT  $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: recent query: %w", err)
	}
	defer rows.Close()

	var changes []Change
	for rows.Next() {
		var c Change
		if err := rows.Scan(&c.ID, &c.WatchName, &c.WatchPath, &c.Path, &c.DetectedAt); err != nil {
			return nil, fmt.Errorf("journal: recent scan: %w", err)
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// Prune deletes all changes detected before cutoff and returns the number of
// rows removed.
func (j *Postgres) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := j.Flush(ctx); err != nil {
		return 0, err
	}
	tag, err := j.pool.Exec(ctx,
		`DELETE FROM change_journal WHERE detected_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("journal: prune: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Close stops the background flush goroutine, flushes any remaining buffered
// changes, and closes the connection pool. It is safe to call Close more
// than once; subsequent calls are no-ops.
func (j *Postgres) Close(ctx context.Context) error {
	select {
	case <-j.stopCh:
		// already closed
	default:
		close(j.stopCh)
		<-j.doneCh
		// Best-effort final flush; errors are not propagated on close.
		_ = j.Flush(ctx)
	}
	j.pool.Close()
	return nil
}
