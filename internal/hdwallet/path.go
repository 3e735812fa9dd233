package hdwallet

import (
	"strconv"
	"strings"
)

// NextIndex scans existing derivation paths sharing prefix and returns the
// next free trailing index (max + 1, or 0 when none match). Uniqueness is
// by convention: callers must serialize derivations against one key set.
func NextIndex(paths []string, prefix string) uint32 {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), "/")
	var next uint32
	for _, p := range paths {
		idx, ok := TrailingIndex(p, prefix)
		if !ok {
			continue
		}
		if idx+1 > next {
			next = idx + 1
		}
	}
	return next
}

// TrailingIndex extracts the final path segment index of p when p sits
// directly under prefix. Hardened markers on the tail are tolerated.
func TrailingIndex(p, prefix string) (uint32, bool) {
	p = strings.TrimSpace(p)
	if !strings.HasPrefix(p, prefix+"/") {
		return 0, false
	}
	tail := strings.TrimPrefix(p, prefix+"/")
	if strings.Contains(tail, "/") {
		return 0, false
	}
	tail = strings.TrimSuffix(tail, "'")
	n, err := strconv.ParseUint(tail, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}

// AccountPrefix renders the path prefix for a key type's (account) subtree,
// the part shared by every index under it.
func AccountPrefix(path string) string {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return path
	}
	return path[:i]
}
