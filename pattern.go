package watchdog

import (
	"path/filepath"
	"strings"
)

// pattern is the parsed form of a watched path: a fixed directory plus an
// optional single-wildcard filename pattern. It is built once at registration
// time and never mutated.
type pattern struct {
	// dir is the directory to poll. When no wildcard is present it is the
	// watched path itself (file or directory).
	dir string

	// prefix and suffix are the literals around the '*' of the final path
	// segment. Both empty unless wildcard is set.
	prefix string
	suffix string

	wildcard bool
}

// splitPattern parses path into a pattern. A path without a '*' maps to
// {dir: path}. A path whose final segment contains exactly one '*' maps to
// {dir: parent, prefix, suffix, wildcard: true}. Anything else (two or more
// wildcards, or a wildcard in a directory segment) is a *PatternError.
func splitPattern(path string) (pattern, error) {
	switch strings.Count(path, "*") {
	case 0:
		return pattern{dir: path}, nil
	case 1:
		// fall through
	default:
		return pattern{}, &PatternError{Path: path}
	}

	name := filepath.Base(path)
	star := strings.Index(name, "*")
	if star < 0 {
		// The wildcard sits in a directory segment.
		return pattern{}, &PatternError{Path: path}
	}

	return pattern{
		dir:      filepath.Dir(path),
		prefix:   name[:star],
		suffix:   name[star+1:],
		wildcard: true,
	}, nil
}

// match reports whether the filename name satisfies the wildcard pattern.
// Matching is deliberately loose: each literal only has to appear somewhere
// in the name, not anchored at its start or end. "shader*.frag" therefore
// matches "myshader_v2.frag.bak". This mirrors the matching the library has
// always shipped with; callers relying on it exist.
func (p pattern) match(name string) bool {
	if !p.wildcard {
		return false
	}
	if p.prefix != "" && !strings.Contains(name, p.prefix) {
		return false
	}
	if p.suffix != "" && !strings.Contains(name, p.suffix) {
		return false
	}
	return true
}

// displayPath returns the path handed to callbacks: the directory joined with
// the "prefix*suffix" segment for wildcard patterns, or the directory itself.
func (p pattern) displayPath() string {
	if !p.wildcard {
		return p.dir
	}
	return filepath.Join(p.dir, p.prefix+"*"+p.suffix)
}
