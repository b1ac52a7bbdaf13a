package watchdog

import (
	"os"
	"time"
)

// changeTracker remembers the last observed modification time of every path a
// single watch has seen. It is owned by that watch's polling goroutine and is
// never shared, so it needs no locking.
type changeTracker struct {
	modTimes map[string]time.Time
}

func newChangeTracker() *changeTracker {
	return &changeTracker{modTimes: make(map[string]time.Time)}
}

// check stats path and reports whether it changed since the last call. A path
// seen for the first time always reports changed and records its current
// modification time. A known path reports changed only when the new time is
// strictly greater than the recorded one; the record is monotonically
// non-decreasing. A stat failure is returned as a *MetadataError so the
// caller can distinguish "unchanged" from "unreadable".
func (t *changeTracker) check(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, &MetadataError{Path: path, Err: err}
	}
	mod := info.ModTime()

	prev, ok := t.modTimes[path]
	if !ok {
		t.modTimes[path] = mod
		return true, nil
	}
	if mod.After(prev) {
		t.modTimes[path] = mod
		return true, nil
	}
	return false, nil
}

// forget drops the record for path so a reappearing entry is treated as new.
func (t *changeTracker) forget(path string) {
	delete(t.modTimes, path)
}
