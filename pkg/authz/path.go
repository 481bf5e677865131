package authz

import "strings"

// NormalizePath collapses a request path to the collection path the
// resource table registers. Anything beyond the second separator is an
// id or sub-path suffix: "/users/42" and "/users/42/edit" both become
// "/users", while "/groups" passes through unchanged. Resource names
// are registered as top-level collection paths only, so this is not a
// general router.
func NormalizePath(path string) string {
	if len(path) < 2 {
		return path
	}
	if i := strings.Index(path[1:], "/"); i >= 0 {
		return path[:i+1]
	}
	return path
}
