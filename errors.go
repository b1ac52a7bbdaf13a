package watchdog

import "fmt"

// NotFoundError is returned by Watch and Touch when the given path, or a
// wildcard pattern derived from it, resolves to no existing filesystem entry.
type NotFoundError struct {
	// Path is the original path passed by the caller, wildcard included.
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("watchdog: failed to find file or directory at: %s", e.Path)
}

// MetadataError reports that the modification time of a path could not be
// read, typically because the entry was deleted between registration and a
// poll tick. It wraps the underlying stat error.
type MetadataError struct {
	Path string
	Err  error
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("watchdog: cannot read metadata for %s: %v", e.Path, e.Err)
}

func (e *MetadataError) Unwrap() error { return e.Err }

// PatternError is returned by Watch and Touch when a path contains more than
// one wildcard, or a wildcard outside its final segment.
type PatternError struct {
	Path string
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("watchdog: invalid wildcard pattern: %s (a single '*' is allowed, in the last path segment only)", e.Path)
}
