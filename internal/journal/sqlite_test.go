package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestSQLite(t *testing.T, path string) *SQLite {
	t.Helper()
	j, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite(%q): %v", path, err)
	}
	t.Cleanup(func() { _ = j.Close(context.Background()) })
	return j
}

func testChange(name, path string, at time.Time) Change {
	return Change{
		WatchName:  name,
		WatchPath:  path,
		Path:       path,
		DetectedAt: at,
	}
}

// TestSQLite_RecordAndRecent verifies round-tripping and newest-first order.
func TestSQLite_RecordAndRecent(t *testing.T) {
	j := openTestSQLite(t, ":memory:")
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		c := testChange("shaders", "/srv/assets/*.frag", base.Add(time.Duration(i)*time.Minute))
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

	// Newest first: the last recorded change leads.
	if !changes[0].DetectedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("changes[0].DetectedAt = %v, want %v", changes[0].DetectedAt, base.Add(2*time.Minute))
	}
	if changes[0].ID <= changes[1].ID {
		t.Errorf("IDs not descending: %d then %d", changes[0].ID, changes[1].ID)
	}
	if changes[0].WatchName != "shaders" || changes[0].WatchPath != "/srv/assets/*.frag" {
		t.Errorf("changes[0] = %+v", changes[0])
	}
}

// TestSQLite_RecentLimit verifies the limit is honored and that a
// non-positive limit short-circuits.
func TestSQLite_RecentLimit(t *testing.T) {
	j := openTestSQLite(t, ":memory:")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := j.Record(ctx, testChange("w", "/p", time.Now())); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	changes, err := j.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(changes) != 2 {
		t.Errorf("Recent(2) returned %d changes", len(changes))
	}

	changes, err = j.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent(0): %v", err)
	}
	if changes != nil {
		t.Errorf("Recent(0) = %v, want nil", changes)
	}
}

// TestSQLite_PersistsAcrossReopen verifies durability with a file-backed
// database.
func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	j, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := j.Record(ctx, testChange("w", "/p", time.Now())); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := j.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := openTestSQLite(t, path)
	changes, err := reopened.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent after reopen: %v", err)
	}
	if len(changes) != 1 {
		t.Errorf("Recent after reopen returned %d changes, want 1", len(changes))
	}
}

// TestSQLite_Prune verifies that only changes older than the cutoff are
// removed.
func TestSQLite_Prune(t *testing.T) {
	j := openTestSQLite(t, ":memory:")
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		if err := j.Record(ctx, testChange("w", "/p", base.Add(time.Duration(i)*time.Hour))); err != nil {
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

	changes, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(changes) != 2 {
		t.Errorf("Recent after prune returned %d changes, want 2", len(changes))
	}
}

// TestSQLite_PruneFractionalCutoff verifies that a whole-second row falls to
// a cutoff with a fractional second. Timestamps are stored as strings and
// compared lexicographically, so a variable-width encoding would make
// "…05Z" sort after "…05.3Z" and keep the older row alive.
func TestSQLite_PruneFractionalCutoff(t *testing.T) {
	j := openTestSQLite(t, ":memory:")
	ctx := context.Background()

	wholeSecond := time.Date(2026, 8, 1, 12, 0, 5, 0, time.UTC)
	if err := j.Record(ctx, testChange("w", "/p", wholeSecond)); err != nil {
		t.Fatalf("Record: %v", err)
	}

	n, err := j.Prune(ctx, wholeSecond.Add(300*time.Millisecond))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 1 {
		t.Errorf("Prune removed %d rows, want 1", n)
	}
}

// TestSQLite_RecentEmpty verifies an empty journal returns no rows and no
// error.
func TestSQLite_RecentEmpty(t *testing.T) {
	j := openTestSQLite(t, ":memory:")

	changes, err := j.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(changes) != 0 {
		t.Errorf("Recent on empty journal returned %d changes", len(changes))
	}
}
