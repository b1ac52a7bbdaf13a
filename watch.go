package watchdog

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// watch is a single registered subscription: a directory (plus optional
// wildcard pattern), a callback, and a private changeTracker, driven by its
// own polling goroutine. Exactly one of callback and listCallback is set:
// the first receives the combined path once per tick with a change, the
// second receives the full list of changed matching paths. Watches are
// created and started by a Watchdog and must be stopped before being
// released.
type watch struct {
	// key is the original input path string, the registry map key.
	key          string
	pat          pattern
	callback     Callback
	listCallback ListCallback
	dispatch     Dispatcher
	onError      ErrorFunc
	tracker      *changeTracker
	interval     time.Duration
	logger       *slog.Logger

	// onDegrade, when set, is called by the polling goroutine right before
	// it stops itself because the watch target became unstattable. The
	// registry uses it to drop the dead watch from its map.
	onDegrade func()

	// seeded holds the matching paths found at registration, in directory
	// order, consumed once by announce.
	seeded []string

	startedAt time.Time

	done chan struct{}
	wg   sync.WaitGroup
	// stopOnce makes stop idempotent: close(done) and wg.Wait() run once.
	stopOnce sync.Once
}

func newWatch(key string, pat pattern, cb Callback, listCb ListCallback, opts watchOptions) *watch {
	w := &watch{
		key:          key,
		pat:          pat,
		callback:     cb,
		listCallback: listCb,
		dispatch:     opts.dispatch,
		onError:      opts.onError,
		tracker:      newChangeTracker(),
		interval:     opts.interval,
		logger:       opts.logger,
		startedAt:    time.Now(),
		done:         make(chan struct{}),
	}

	if pat.wildcard {
		// Seed the tracker from the current directory contents so the first
		// real tick only reports changes made after registration.
		entries, err := os.ReadDir(pat.dir)
		if err == nil {
			for _, e := range entries {
				if w.pat.match(e.Name()) {
					full := filepath.Join(pat.dir, e.Name())
					_, _ = w.tracker.check(full)
					w.seeded = append(w.seeded, full)
				}
			}
		}
	}

	return w
}

// announce fires the registration-time callback of a wildcard watch: the
// seeding pass in newWatch swallowed the "first observation" change reports,
// so the initial state is reported explicitly. It runs synchronously on the
// registering goroutine, on purpose: the caller gets to process the initial
// file set before Watch returns. Must be called before start, and without
// holding the registry lock, so the callback may call back into the
// registry.
func (w *watch) announce() {
	if !w.pat.wildcard {
		return
	}
	switch {
	case w.callback != nil:
		w.callback(w.pat.displayPath())
	case w.listCallback != nil:
		w.listCallback(w.seeded)
	}
	w.seeded = nil
}

// watchOptions carries the per-registry settings a watch needs. Kept separate
// from Options so the public struct can evolve without touching this file.
type watchOptions struct {
	interval time.Duration
	dispatch Dispatcher
	onError  ErrorFunc
	logger   *slog.Logger
}

// start launches the polling goroutine. Call at most once.
func (w *watch) start() {
	w.wg.Add(1)
	go w.run()
}

// stop signals the polling goroutine and blocks until it has exited. It is
// safe to call stop multiple times and safe to call after the loop has
// already stopped itself.
func (w *watch) stop() {
	w.stopOnce.Do(func() {
		close(w.done)
	})
	w.wg.Wait()
}

// run is the polling loop: wake every interval, re-check, fire the callback
// on change. It exits when stop is called or when tick reports that the
// watch target is gone for good.
func (w *watch) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			if !w.tick() {
				w.logger.Warn("watchdog: watch degraded, polling stopped",
					slog.String("path", w.key),
				)
				if w.onDegrade != nil {
					w.onDegrade()
				}
				return
			}
		}
	}
}

// tick performs one poll pass. The returned bool is false when the loop
// should stop (the non-wildcard target became unstattable).
func (w *watch) tick() bool {
	if !w.pat.wildcard {
		changed, err := w.tracker.check(w.pat.dir)
		if err != nil {
			// The single watched entry is gone. Report and degrade rather
			// than re-stat a missing path every interval forever.
			w.reportError(w.pat.dir, err)
			return false
		}
		if changed {
			if w.callback != nil {
				w.fire(w.pat.dir)
			} else {
				w.fireList([]string{w.pat.dir})
			}
		}
		return true
	}

	entries, err := os.ReadDir(w.pat.dir)
	if err != nil {
		w.reportError(w.pat.dir, &MetadataError{Path: w.pat.dir, Err: err})
		return false
	}
	var changedPaths []string
	for _, e := range entries {
		if !w.pat.match(e.Name()) {
			continue
		}
		full := filepath.Join(w.pat.dir, e.Name())
		changed, err := w.tracker.check(full)
		if err != nil {
			// Entry vanished between ReadDir and Stat. Forget it so a later
			// reappearance counts as new, report, and keep scanning.
			w.tracker.forget(full)
			w.reportError(full, err)
			continue
		}
		if !changed {
			continue
		}
		if w.callback != nil {
			// One callback per tick, with the combined dir/pattern path.
			// Remaining entries are picked up by their own tracker state on
			// the next tick.
			w.fire(w.pat.displayPath())
			return true
		}
		// List watches scan the whole directory and collect every changed
		// path before delivering, so a tick reports all of them at once.
		changedPaths = append(changedPaths, full)
	}
	if len(changedPaths) > 0 {
		w.fireList(changedPaths)
	}
	return true
}

// fire invokes the callback, through the dispatcher when one is configured.
// Dispatched invocations are fire-and-forget: the loop does not wait for the
// callback to run before the next tick.
func (w *watch) fire(path string) {
	if w.callback == nil {
		return
	}
	if w.dispatch != nil {
		w.dispatch(func() { w.callback(path) })
		return
	}
	w.callback(path)
}

// fireList is fire for list watches.
func (w *watch) fireList(paths []string) {
	if w.listCallback == nil {
		return
	}
	if w.dispatch != nil {
		w.dispatch(func() { w.listCallback(paths) })
		return
	}
	w.listCallback(paths)
}

func (w *watch) reportError(path string, err error) {
	if w.onError != nil {
		w.onError(path, err)
		return
	}
	w.logger.Warn("watchdog: poll error",
		slog.String("path", path),
		slog.Any("error", err),
	)
}
