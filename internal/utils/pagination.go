// Package utils holds tiny helpers shared across layers, free of any domain
// logic.
package utils

import "strconv"

// AtoiDefault parses s as a base-10 int, returning def for empty or
// unparseable input. Used for query parameters like ?page= and ?page_size=
// where a bad value should fall back, not fail the request.
func AtoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
