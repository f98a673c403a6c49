// Package shaper trims provider result lists before they reach the model or
// the client.
package shaper

// ShapePlaces returns the first limit elements of raw in their original order.
// It never reorders or deduplicates, and the result never aliases raw.
func ShapePlaces[T any](raw []T, limit int) []T {
	if limit <= 0 || len(raw) == 0 {
		return []T{}
	}
	if limit > len(raw) {
		limit = len(raw)
	}
	out := make([]T, limit)
	copy(out, raw[:limit])
	return out
}
