// Package collections has generic slice helpers.
package collections

// Apply maps every item through fn.
func Apply[T, V any](items []T, fn func(T) V) []V {
	result := make([]V, len(items))
	for i, item := range items {
		result[i] = fn(item)
	}
	return result
}

// Filter keeps the items for which keep returns true, preserving order.
func Filter[T any](items []T, keep func(T) bool) []T {
	result := make([]T, 0, len(items))
	for _, item := range items {
		if keep(item) {
			result = append(result, item)
		}
	}
	return result
}

// NonZero reports whether v differs from its type's zero value.
func NonZero[T comparable](v T) bool {
	var zero T
	return v != zero
}
