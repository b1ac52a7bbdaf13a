//go:build integration

// Run with:
//
//	go test -tags integration -v ./internal/journal/...
//
// Requires Docker (for testcontainers-go) and a reachable Docker socket.
package journal_test

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/simongeilfus/Watchdog/internal/journal"
)

// setupDB starts a PostgreSQL container and returns an open Postgres journal
// with a short flush interval so tests do not wait on the background ticker.
func setupDB(t *testing.T) *journal.Postgres {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := tcpostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcpostgres.WithDatabase("watchdog_test"),
		tcpostgres.WithUsername("watchdog"),
		tcpostgres.WithPassword("secret"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = pgContainer.Terminate(context.Background()) })

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	j, err := journal.OpenPostgres(ctx, connStr, 10, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("OpenPostgres: %v", err)
	}
	t.Cleanup(func() { _ = j.Close(context.Background()) })
	return j
}

// TestPostgres_RecordAndRecent verifies round-tripping through the batched
// writer: Recent must observe a change recorded immediately before it.
func TestPostgres_RecordAndRecent(t *testing.T) {
	j := setupDB(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		c := journal.Change{
			WatchName:  "shaders",
			WatchPath:  "/srv/assets/*.frag",
			Path:       "/srv/assets/*.frag",
			DetectedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := j.Record(ctx, c); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	changes, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(changes) != 3 {
		t.Fatalf("Recent returned %d changes, want 3", len(changes))
	}
	if !changes[0].DetectedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("changes[0].DetectedAt = %v, want %v", changes[0].DetectedAt, base.Add(2*time.Minute))
	}
	if changes[0].ID <= changes[1].ID {
		t.Errorf("IDs not descending: %d then %d", changes[0].ID, changes[1].ID)
	}
}

// TestPostgres_BatchSizeFlush verifies that filling the buffer to batchSize
// triggers a synchronous flush.
func TestPostgres_BatchSizeFlush(t *testing.T) {
	j := setupDB(t)
	ctx := context.Background()

	// batchSize is 10 in setupDB; the 10th Record flushes synchronously.
	for i := 0; i < 10; i++ {
		c := journal.Change{
			WatchName:  "bulk",
			WatchPath:  "/data/*",
			Path:       "/data/*",
			DetectedAt: time.Now(),
		}
		if err := j.Record(ctx, c); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	changes, err := j.Recent(ctx, 100)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(changes) != 10 {
		t.Errorf("Recent returned %d changes, want 10", len(changes))
	}
}

// TestPostgres_Prune verifies cutoff-based deletion.
func TestPostgres_Prune(t *testing.T) {
	j := setupDB(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		c := journal.Change{
			WatchName:  "w",
			WatchPath:  "/p",
			Path:       "/p",
			DetectedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := j.Record(ctx, c); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	n, err := j.Prune(ctx, base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 2 {
		t.Errorf("Prune removed %d rows, want 2", n)
	}
}

// TestPostgres_CloseFlushes verifies that buffered changes survive Close and
// are visible to a fresh journal on the same database.
func TestPostgres_CloseFlushes(t *testing.T) {
	ctx := context.Background()

	pgContainer, err := tcpostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcpostgres.WithDatabase("watchdog_test"),
		tcpostgres.WithUsername("watchdog"),
		tcpostgres.WithPassword("secret"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = pgContainer.Terminate(context.Background()) })

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	// Long flush interval: only Close can have flushed the record below.
	j, err := journal.OpenPostgres(ctx, connStr, 100, time.Hour)
	if err != nil {
		t.Fatalf("OpenPostgres: %v", err)
	}
	c := journal.Change{WatchName: "w", WatchPath: "/p", Path: "/p", DetectedAt: time.Now()}
	if err := j.Record(ctx, c); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := j.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := journal.OpenPostgres(ctx, connStr, 10, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close(context.Background()) })

	changes, err := reopened.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(changes) != 1 {
		t.Errorf("Recent after Close returned %d changes, want 1", len(changes))
	}
}
