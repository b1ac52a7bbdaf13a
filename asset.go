package watchdog

import (
	"path/filepath"
	"time"
)

// Asset variants of Watch/Unwatch/Touch resolve their argument against
// Options.AssetRoot before delegating. They exist for callers that address
// everything relative to an application asset directory; there is no logic
// here beyond the prefixing.

// WatchAsset registers a watch on rel resolved against the configured asset
// root. See Watchdog.Watch.
func (d *Watchdog) WatchAsset(rel string, cb Callback) error {
	return d.Watch(d.resolveAsset(rel), cb)
}

// WatchManyAsset registers a list watch on rel resolved against the
// configured asset root. See Watchdog.WatchMany.
func (d *Watchdog) WatchManyAsset(rel string, cb ListCallback) error {
	return d.WatchMany(d.resolveAsset(rel), cb)
}

// UnwatchAsset removes the watch on rel resolved against the configured
// asset root. See Watchdog.Unwatch.
func (d *Watchdog) UnwatchAsset(rel string) {
	d.Unwatch(d.resolveAsset(rel))
}

// TouchAsset sets the modification time of rel resolved against the
// configured asset root. See Watchdog.Touch.
func (d *Watchdog) TouchAsset(rel string, t time.Time) error {
	return d.Touch(d.resolveAsset(rel), t)
}

func (d *Watchdog) resolveAsset(rel string) string {
	if d.assetRoot == "" {
		return rel
	}
	return filepath.Join(d.assetRoot, rel)
}
