// Package cyclic provides a read-only sequence indexed modulo its length.
package cyclic

// Sequence returns items[i mod len(items)] for any integer i.
type Sequence[T any] struct {
	items []T
}

// New copies items into a sequence.
func New[T any](items ...T) Sequence[T] {
	return Sequence[T]{items: append([]T(nil), items...)}
}

// Len returns the number of distinct items.
func (s Sequence[T]) Len() int {
	return len(s.items)
}

// Get returns the item at i modulo the length. Negative indices wrap from
// the end. Get panics on an empty sequence.
func (s Sequence[T]) Get(i int) T {
	n := len(s.items)
	if n == 0 {
		panic("cyclic: Get on empty sequence")
	}
	i %= n
	if i < 0 {
		i += n
	}
	return s.items[i]
}

// Items returns a copy of the underlying items.
func (s Sequence[T]) Items() []T {
	return append([]T(nil), s.items...)
}
