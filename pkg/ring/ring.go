// Package ring provides a fixed-capacity ring buffer that overwrites
// its oldest element once full, used for bounded history tracking.
package ring

type Ring[T any] struct {
	buf   []T
	head  int
	count int
}

func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}

	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v, dropping the oldest element when the buffer is full.
func (r *Ring[T]) Push(v T) {
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

func (r *Ring[T]) Len() int {
	return r.count
}

func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// Slice returns the buffered elements ordered oldest to newest.
func (r *Ring[T]) Slice() []T {
	out := make([]T, 0, r.count)
	start := r.head - r.count
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}

	return out
}

// Tail returns up to n of the newest elements, oldest first.
func (r *Ring[T]) Tail(n int) []T {
	if n >= r.count {
		return r.Slice()
	}

	out := make([]T, 0, n)
	start := r.head - n
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < n; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}

	return out
}

// Last returns the newest element, or the zero value when empty.
func (r *Ring[T]) Last() (T, bool) {
	var zero T
	if r.count == 0 {
		return zero, false
	}

	idx := r.head - 1
	if idx < 0 {
		idx += len(r.buf)
	}

	return r.buf[idx], true
}
