package registry

import "strings"

// maxStringValue is the resource budget for string-typed values (spec.md §5).
const maxStringValue = 256

// reservedFirstSegments collide with standard LWM2M object paths (spec.md §3) and are
// rejected so the asset-data namespace never shadows objects 0 (Security) and 1 (Server)
// or the AirVantage-reserved ranges 10241-10243.
var reservedFirstSegments = map[string]bool{
	"0": true, "1": true, "2": true, "3": true, "4": true,
	"5": true, "6": true, "7": true, "8": true, "9": true,
	"10241": true, "10242": true, "10243": true,
}

// splitPath validates and splits an asset-data path per the grammar in spec.md §6:
// "/<seg>(/<seg>)*" where <seg> is non-empty and contains no "/".
func splitPath(path string) ([]string, bool) {
	if len(path) == 0 || path[0] != '/' || path[len(path)-1] == '/' {
		return nil, false
	}
	segs := strings.Split(path[1:], "/")
	for _, s := range segs {
		if s == "" {
			return nil, false
		}
	}
	if reservedFirstSegments[segs[0]] {
		return nil, false
	}
	return segs, true
}

// isPathPrefix reports whether prefix is a proper, segment-boundary-aware prefix of
// path (i.e. prefix == "/a/b" is a prefix of "/a/b/c" but not of "/a/bc").
func isPathPrefix(prefix, path string) bool {
	if len(prefix) >= len(path) {
		return false
	}
	if path[:len(prefix)] != prefix {
		return false
	}
	return path[len(prefix)] == '/'
}

// parentPath returns the path with its last segment removed, and that last segment.
// parentPath("/a/b/c") == ("/a/b", "c"); parentPath("/a") == ("", "a").
func parentPath(path string) (parent, leaf string) {
	idx := strings.LastIndexByte(path, '/')
	leaf = path[idx+1:]
	parent = path[:idx]
	return parent, leaf
}
