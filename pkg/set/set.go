package set

import (
	"golang.org/x/exp/constraints"
	"golang.org/x/exp/slices"
)

type unit = struct{}

// Set is an unordered set of values of type T.
type Set[T comparable] map[T]unit

// New returns an empty set.
func New[T comparable]() Set[T] {
	return make(Set[T])
}

// FromSlice returns a set containing the values in the given slice.
func FromSlice[T comparable](vals []T) Set[T] {
	s := make(Set[T], len(vals))
	for _, v := range vals {
		s[v] = unit{}
	}
	return s
}

// Contains checks whether the value is present in the set.
func (s Set[T]) Contains(v T) bool {
	_, ok := s[v]
	return ok
}

// Add inserts the value and reports whether it was absent before the call.
func (s Set[T]) Add(v T) bool {
	if _, ok := s[v]; ok {
		return false
	}
	s[v] = unit{}
	return true
}

// Remove deletes the value from the set.
func (s Set[T]) Remove(v T) {
	delete(s, v)
}

// Len returns the number of values in the set.
func (s Set[T]) Len() int {
	return len(s)
}

// Equal reports whether both sets hold exactly the same values.
func (s Set[T]) Equal(other Set[T]) bool {
	if len(s) != len(other) {
		return false
	}
	for v := range s {
		if !other.Contains(v) {
			return false
		}
	}
	return true
}

// Sorted returns the values of an ordered set in ascending order.
func Sorted[T constraints.Ordered](s Set[T]) []T {
	res := make([]T, 0, len(s))
	for v := range s {
		res = append(res, v)
	}
	slices.Sort(res)
	return res
}
