//go:build !watchdog_disabled

package watchdog

// disabledByDefault is false in normal builds: New returns a live polling
// registry unless Options.Disabled is set explicitly.
const disabledByDefault = false
