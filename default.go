package watchdog

import (
	"sync"
	"time"
)

// The package-level instance mirrors the classic drop-in usage of the
// library: wd.Watch(path, cb) from anywhere in the program, one shared
// registry for the whole process. Programs that prefer explicit ownership
// construct their own handle with New.
var (
	defaultOnce sync.Once
	defaultDog  *Watchdog
)

// Default returns the process-wide Watchdog, creating it with zero Options
// on first use. Its watches live until UnwatchAll or process exit.
func Default() *Watchdog {
	defaultOnce.Do(func() {
		defaultDog = New(Options{})
	})
	return defaultDog
}

// Watch registers cb on the process-wide Watchdog. See Watchdog.Watch.
func Watch(path string, cb Callback) error { return Default().Watch(path, cb) }

// WatchMany registers a list callback on the process-wide Watchdog. See
// Watchdog.WatchMany.
func WatchMany(path string, cb ListCallback) error { return Default().WatchMany(path, cb) }

// Unwatch removes a watch from the process-wide Watchdog. See
// Watchdog.Unwatch.
func Unwatch(path string) { Default().Unwatch(path) }

// UnwatchAll stops every watch of the process-wide Watchdog. See
// Watchdog.UnwatchAll.
func UnwatchAll() { Default().UnwatchAll() }

// Touch sets the modification time of path via the process-wide Watchdog.
// See Watchdog.Touch.
func Touch(path string, t time.Time) error { return Default().Touch(path, t) }
