package world

// boundedLog is a fixed-capacity FIFO log. Appending past capacity evicts
// the oldest entry on insert, so no re-slicing happens on the write path.
type boundedLog[T any] struct {
	buf   []T
	start int
	size  int
}

func newBoundedLog[T any](capacity int) *boundedLog[T] {
	return &boundedLog[T]{buf: make([]T, capacity)}
}

// Append adds an entry, evicting the oldest when full.
func (l *boundedLog[T]) Append(v T) {
	if l.size < len(l.buf) {
		l.buf[(l.start+l.size)%len(l.buf)] = v
		l.size++
		return
	}
	l.buf[l.start] = v
	l.start = (l.start + 1) % len(l.buf)
}

// Len returns the number of stored entries.
func (l *boundedLog[T]) Len() int {
	return l.size
}

// Items returns a copy of all entries, oldest first.
func (l *boundedLog[T]) Items() []T {
	out := make([]T, l.size)
	for i := 0; i < l.size; i++ {
		out[i] = l.buf[(l.start+i)%len(l.buf)]
	}
	return out
}

// Tail returns the most recent n entries, oldest first. n larger than the
// log returns everything.
func (l *boundedLog[T]) Tail(n int) []T {
	if n >= l.size {
		return l.Items()
	}
	out := make([]T, n)
	for i := 0; i < n; i++ {
		out[i] = l.buf[(l.start+l.size-n+i)%len(l.buf)]
	}
	return out
}

// Clear drops every entry.
func (l *boundedLog[T]) Clear() {
	l.start = 0
	l.size = 0
}

// Seed replaces the contents with entries, keeping only the newest ones if
// there are more than fit. Used when loading a persisted history.
func (l *boundedLog[T]) Seed(entries []T) {
	l.Clear()
	for _, e := range entries {
		l.Append(e)
	}
}
