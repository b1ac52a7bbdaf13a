// Package watchdog watches files and directories for modification and runs a
// callback when they change. Detection is purely poll-based: each registered
// watch owns a goroutine that compares last-modification timestamps on a
// fixed interval. No inotify/FSEvents/kqueue handle is ever opened, so the
// package behaves identically on every platform and tolerates filesystems
// (network mounts, containers) where kernel notification is unreliable.
//
// A watched path may contain a single '*' wildcard in its final segment:
//
//	wd.Watch("assets/shaders/*.frag", reload)
//
// The callback then fires whenever any matching file in the directory
// changes, and once immediately at registration so the caller can process
// the initial file set. WatchMany is the list-callback variant: it reports
// the concrete changed paths of a tick instead of the combined pattern
// path.
package watchdog

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// DefaultPollInterval is the period between change checks of every watch
// that does not override it via Options.PollInterval.
const DefaultPollInterval = 500 * time.Millisecond

// Callback is invoked with the watched path when a change is detected. For
// wildcard watches the argument is the combined "dir/prefix*suffix" path,
// not the specific file that changed.
type Callback func(path string)

// ListCallback is invoked with every matching file that changed during one
// poll tick. Registered via WatchMany; unlike Callback it receives the
// concrete changed paths, not the combined pattern path.
type ListCallback func(paths []string)

// Dispatcher redirects callback execution, e.g. onto a UI or main-loop
// queue. It receives a ready-to-run thunk and is expected not to block the
// polling goroutine; invocation order relative to later ticks is not
// guaranteed.
type Dispatcher func(fn func())

// ErrorFunc receives errors discovered inside a background poll tick, where
// no synchronous caller exists to return them to. The error is a
// *MetadataError wrapping the underlying stat failure.
type ErrorFunc func(path string, err error)

// Options configures a Watchdog. The zero value is ready to use.
type Options struct {
	// PollInterval is the period between change checks. Zero or negative
	// uses DefaultPollInterval.
	PollInterval time.Duration

	// Logger receives poll-error and lifecycle records. Nil uses
	// slog.Default().
	Logger *slog.Logger

	// Dispatch, when non-nil, runs change callbacks instead of the polling
	// goroutine invoking them in place. The registration-time announce call
	// of a wildcard watch always runs synchronously on the caller and does
	// not go through Dispatch.
	Dispatch Dispatcher

	// OnError, when non-nil, receives errors from background poll ticks
	// (typically a watched entry deleted after registration). When nil such
	// errors are logged at warn level. Either way a watch whose sole target
	// is gone stops polling rather than spinning on a missing path.
	OnError ErrorFunc

	// AssetRoot is prefixed to relative paths given to WatchAsset,
	// UnwatchAsset, and TouchAsset.
	AssetRoot string

	// Disabled replaces the polling engine with a stub: Watch validates the
	// path and invokes the callback exactly once, synchronously, with the
	// input path; Unwatch, UnwatchAll, and Touch do nothing. Intended for
	// production builds that want hot-reload hooks compiled in but no
	// polling cost. Building with the "watchdog_disabled" tag flips the
	// default of this field to true.
	Disabled bool
}

// Watchdog is a registry of active watches. All methods are safe for
// concurrent use from any goroutine. The zero value is not usable; call New.
type Watchdog struct {
	interval  time.Duration
	logger    *slog.Logger
	dispatch  Dispatcher
	onError   ErrorFunc
	assetRoot string
	disabled  bool

	// mu serializes every structural mutation of watches. Polling loops
	// never touch the map; each owns only its private watch state.
	mu      sync.Mutex
	watches map[string]*watch
}

// New creates a Watchdog from opts.
func New(opts Options) *Watchdog {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Watchdog{
		interval:  opts.PollInterval,
		logger:    opts.Logger,
		dispatch:  opts.Dispatch,
		onError:   opts.OnError,
		assetRoot: opts.AssetRoot,
		disabled:  opts.Disabled || disabledByDefault,
		watches:   make(map[string]*watch),
	}
}

// Watch registers cb to run whenever path changes. path may contain a single
// '*' in its final segment; the callback then receives the combined
// directory+pattern path whenever any matching file changes, and is invoked
// once immediately to announce the initial state.
//
// Watch fails with a *NotFoundError when a plain path does not exist, or
// when a wildcard matches no entry in its directory. Registering a path that
// is already being watched is a no-op: the existing watch, and its original
// callback, stay in place.
func (d *Watchdog) Watch(path string, cb Callback) error {
	return d.register(path, cb, nil)
}

// WatchMany registers cb to receive the list of all matching files that
// changed during one poll tick. Where Watch stops scanning a wildcard
// directory at the first changed entry and reports the combined pattern
// path, WatchMany scans every matching entry and delivers the concrete
// changed paths in one call. The registration-time announce of a wildcard
// watch passes the initial matching file set.
//
// Validation and the registry namespace are shared with Watch: a path can
// carry one watch, of either kind, and registering it again is a no-op.
func (d *Watchdog) WatchMany(path string, cb ListCallback) error {
	return d.register(path, nil, cb)
}

func (d *Watchdog) register(path string, cb Callback, listCb ListCallback) error {
	pat, err := splitPattern(path)
	if err != nil {
		return err
	}

	if pat.wildcard {
		matched, err := anyMatch(pat)
		if err != nil || !matched {
			return &NotFoundError{Path: path}
		}
	} else if _, err := os.Stat(pat.dir); err != nil {
		return &NotFoundError{Path: path}
	}

	if d.disabled {
		// Stub mode: announce once, register nothing.
		if cb != nil {
			cb(path)
		} else if listCb != nil {
			listCb([]string{path})
		}
		return nil
	}

	d.mu.Lock()
	if _, ok := d.watches[path]; ok {
		d.mu.Unlock()
		return nil
	}
	w := newWatch(path, pat, cb, listCb, watchOptions{
		interval: d.interval,
		dispatch: d.dispatch,
		onError:  d.onError,
		logger:   d.logger,
	})
	w.onDegrade = func() { d.reap(path, w) }
	d.watches[path] = w
	d.mu.Unlock()

	// Announce outside the lock: the callback runs user code that may call
	// back into the registry. Start only afterwards so the announce is the
	// first delivery the caller sees.
	w.announce()
	w.start()

	d.logger.Debug("watchdog: watch registered", slog.String("path", path))
	return nil
}

// reap removes a watch whose polling loop stopped itself. The pointer
// comparison keeps a re-registration under the same path alive.
func (d *Watchdog) reap(path string, w *watch) {
	d.mu.Lock()
	if cur, ok := d.watches[path]; ok && cur == w {
		delete(d.watches, path)
	}
	d.mu.Unlock()
}

// Unwatch removes the watch registered under path, stopping its polling
// goroutine and waiting for it to exit before returning. Unwatching a path
// that is not registered is a no-op; calling Unwatch twice is safe.
func (d *Watchdog) Unwatch(path string) {
	if d.disabled {
		return
	}

	d.mu.Lock()
	w := d.watches[path]
	delete(d.watches, path)
	d.mu.Unlock()

	// Stop outside the lock: stop blocks until a possibly callback-running
	// tick finishes, and that callback may itself call back into the
	// registry.
	if w != nil {
		w.stop()
		d.logger.Debug("watchdog: watch removed", slog.String("path", path))
	}
}

// UnwatchAll stops and removes every registered watch. When it returns, no
// polling goroutine is left running.
func (d *Watchdog) UnwatchAll() {
	if d.disabled {
		return
	}

	d.mu.Lock()
	stopped := make([]*watch, 0, len(d.watches))
	for _, w := range d.watches {
		stopped = append(stopped, w)
	}
	d.watches = make(map[string]*watch)
	d.mu.Unlock()

	for _, w := range stopped {
		w.stop()
	}
}

// Close tears the registry down. It is UnwatchAll under the name deferred
// cleanup code expects.
func (d *Watchdog) Close() {
	d.UnwatchAll()
}

// Touch sets the modification time of path to t, or to the current time when
// t is the zero value. When path does not exist but contains a wildcard,
// every matching entry in its directory is touched instead; this lets a
// caller force-trigger all watches that depend on a set of files. A plain
// path that does not exist fails with a *NotFoundError.
func (d *Watchdog) Touch(path string, t time.Time) error {
	if d.disabled {
		return nil
	}
	if t.IsZero() {
		t = time.Now()
	}

	if _, err := os.Stat(path); err == nil {
		return os.Chtimes(path, t, t)
	}

	pat, err := splitPattern(path)
	if err != nil {
		return err
	}
	if !pat.wildcard {
		return &NotFoundError{Path: path}
	}

	entries, err := os.ReadDir(pat.dir)
	if err != nil {
		return &NotFoundError{Path: path}
	}
	for _, e := range entries {
		if !pat.match(e.Name()) {
			continue
		}
		full := filepath.Join(pat.dir, e.Name())
		if err := os.Chtimes(full, t, t); err != nil {
			return &MetadataError{Path: full, Err: err}
		}
	}
	return nil
}

// WatchInfo is a read-only snapshot of one active watch, as reported by
// WatchList.
type WatchInfo struct {
	// Path is the original path string passed to Watch.
	Path string `json:"path"`
	// Directory is the directory being polled.
	Directory string `json:"directory"`
	// Pattern is the "prefix*suffix" filename pattern, empty for plain
	// watches.
	Pattern string `json:"pattern,omitempty"`
	// StartedAt is when the watch was registered.
	StartedAt time.Time `json:"started_at"`
}

// WatchList returns a snapshot of all active watches, sorted by path.
func (d *Watchdog) WatchList() []WatchInfo {
	d.mu.Lock()
	defer d.mu.Unlock()

	infos := make([]WatchInfo, 0, len(d.watches))
	for _, w := range d.watches {
		info := WatchInfo{
			Path:      w.key,
			Directory: w.pat.dir,
			StartedAt: w.startedAt,
		}
		if w.pat.wildcard {
			info.Pattern = w.pat.prefix + "*" + w.pat.suffix
		}
		infos = append(infos, info)
	}
	sortWatchInfos(infos)
	return infos
}

func sortWatchInfos(infos []WatchInfo) {
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
}

// anyMatch reports whether at least one entry of pat.dir matches pat.
func anyMatch(pat pattern) (bool, error) {
	entries, err := os.ReadDir(pat.dir)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if pat.match(e.Name()) {
			return true, nil
		}
	}
	return false, nil
}
