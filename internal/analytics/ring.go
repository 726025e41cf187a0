package analytics

// Ring is a fixed-capacity FIFO buffer backed by a preallocated slice with
// head/length indices. Appending at capacity evicts the oldest element.
type Ring[T any] struct {
	buf  []T
	head int
	n    int
}

func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

func (r *Ring[T]) Append(v T) {
	tail := (r.head + r.n) % len(r.buf)
	r.buf[tail] = v
	if r.n < len(r.buf) {
		r.n++
	} else {
		r.head = (r.head + 1) % len(r.buf)
	}
}

func (r *Ring[T]) Len() int { return r.n }

func (r *Ring[T]) Cap() int { return len(r.buf) }

// Snapshot returns the elements oldest-first.
func (r *Ring[T]) Snapshot() []T {
	out := make([]T, r.n)
	for i := 0; i < r.n; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

// Last returns up to n of the newest elements, oldest-first.
func (r *Ring[T]) Last(n int) []T {
	if n > r.n {
		n = r.n
	}
	if n <= 0 {
		return nil
	}
	out := make([]T, n)
	start := r.n - n
	for i := 0; i < n; i++ {
		out[i] = r.buf[(r.head+start+i)%len(r.buf)]
	}
	return out
}
