//go:build watchdog_disabled

package watchdog

// disabledByDefault is true under the watchdog_disabled build tag: every
// Watchdog is a stub that announces once on Watch and otherwise does
// nothing, so release builds pay no polling cost. Options.Disabled can still
// be set per-instance; it just becomes redundant.
const disabledByDefault = true
