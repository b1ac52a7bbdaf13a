package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver with database/sql
)

// SQLite is a WAL-mode SQLite-backed Journal. It is the default backend: a
// single file, no server, safe for concurrent use.
//
// The database is opened with PRAGMA journal_mode = WAL so the watch
// callbacks recording changes and the status API reading them do not block
// each other.
type SQLite struct {
	db *sql.DB
}

var _ Journal = (*SQLite)(nil)

// sqliteTimeFormat is RFC 3339 with a fixed nine-digit fractional second.
// Timestamps are compared as strings in SQL, so the width must not vary:
// RFC3339Nano trims trailing zeros, which makes "…05Z" sort after
// "…05.3Z" and breaks range predicates like the Prune cutoff.
const sqliteTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// sqliteDDL is the schema, applied idempotently on open.
const sqliteDDL = `
CREATE TABLE IF NOT EXISTS change_journal (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    watch_name  TEXT    NOT NULL,
    watch_path  TEXT    NOT NULL,
    path        TEXT    NOT NULL,
    detected_at TEXT    NOT NULL,
    recorded_at TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_change_journal_recent
    ON change_journal (id DESC);
`

// OpenSQLite opens (or creates) the SQLite database at path, enables WAL
// journal mode, and applies the schema. ":memory:" is accepted for tests but
// loses all data when closed.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %q: %w", path, err)
	}

	// SQLite allows only one writer at a time. A single-connection pool
	// serialises concurrent Record calls instead of surfacing "database is
	// locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: set WAL mode: %w", err)
	}

	// NORMAL synchronous: durable across application crashes, a significant
	// write-throughput improvement over FULL.
	if _, err := db.Exec(`PRAGMA synchronous = NORMAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: set synchronous = NORMAL: %w", err)
	}

	if _, err := db.Exec(sqliteDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: apply schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Record persists c. It implements Journal.
func (j *SQLite) Record(ctx context.Context, c Change) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO change_journal (watch_name, watch_path, path, detected_at)
		 VALUES (?, ?, ?, ?)`,
		c.WatchName,
		c.WatchPath,
		c.Path,
		c.DetectedAt.UTC().Format(sqliteTimeFormat),
	)
	if err != nil {
		return fmt.Errorf("journal: record: %w", err)
	}
	return nil
}

// Recent returns up to limit changes, newest first. limit ≤ 0 returns nil
// without querying.
func (j *SQLite) Recent(ctx context.Context, limit int) ([]Change, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, watch_name, watch_path, path, detected_at
		 FROM   change_journal
		 ORDER  BY id DESC
		 LIMIT  ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: recent query: %w", err)
	}
	defer rows.Close()

	var changes []Change
	for rows.Next() {
		var (
			c     Change
			tsStr string
		)
		if err := rows.Scan(&c.ID, &c.WatchName, &c.WatchPath, &c.Path, &tsStr); err != nil {
			return nil, fmt.Errorf("journal: recent scan: %w", err)
		}

		// RFC3339Nano also parses the fixed-width form.
		c.DetectedAt, err = time.Parse(time.RFC3339Nano, tsStr)
		if err != nil {
			c.DetectedAt, _ = time.Parse(time.RFC3339, tsStr)
		}

		changes = append(changes, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: recent rows: %w", err)
	}
	return changes, nil
}

// Prune deletes all changes detected before cutoff and returns the number of
// rows removed. watchdogd calls this periodically so the journal file does
// not grow without bound.
func (j *SQLite) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx,
		`DELETE FROM change_journal WHERE detected_at < ?`,
		cutoff.UTC().Format(sqliteTimeFormat),
	)
	if err != nil {
		return 0, fmt.Errorf("journal: prune: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("journal: prune rows affected: %w", err)
	}
	return n, nil
}

// Close closes the underlying database. It implements Journal.
func (j *SQLite) Close(context.Context) error {
	if err := j.db.Close(); err != nil {
		return fmt.Errorf("journal: close: %w", err)
	}
	return nil
}
