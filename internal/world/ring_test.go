package world

import (
	"fmt"
	"testing"
)

func TestBoundedLogAppendAndEvict(t *testing.T) {
	l := newBoundedLog[int](3)

	l.Append(1)
	l.Append(2)
	if l.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", l.Len())
	}

	l.Append(3)
	l.Append(4)
	if l.Len() != 3 {
		t.Fatalf("expected capacity of 3 to hold, got %d", l.Len())
	}

	items := l.Items()
	want := []int{2, 3, 4}
	for i, v := range want {
		if items[i] != v {
			t.Errorf("items[%d] = %d, want %d", i, items[i], v)
		}
	}
}

func TestBoundedLogTail(t *testing.T) {
	l := newBoundedLog[int](5)
	for i := 1; i <= 5; i++ {
		l.Append(i)
	}

	tail := l.Tail(2)
	if len(tail) != 2 || tail[0] != 4 || tail[1] != 5 {
		t.Fatalf("Tail(2) = %v, want [4 5]", tail)
	}

	// n larger than the log returns everything
	all := l.Tail(100)
	if len(all) != 5 {
		t.Fatalf("Tail(100) returned %d entries, want 5", len(all))
	}
}

func TestBoundedLogClear(t *testing.T) {
	l := newBoundedLog[string](2)
	l.Append("a")
	l.Append("b")
	l.Clear()

	if l.Len() != 0 {
		t.Fatalf("expected empty log after Clear, got %d entries", l.Len())
	}
	if items := l.Items(); len(items) != 0 {
		t.Fatalf("Items after Clear = %v, want empty", items)
	}
}

func TestBoundedLogSeedKeepsNewest(t *testing.T) {
	l := newBoundedLog[string](3)

	var entries []string
	for i := 0; i < 10; i++ {
		entries = append(entries, fmt.Sprintf("msg-%d", i))
	}
	l.Seed(entries)

	items := l.Items()
	want := []string{"msg-7", "msg-8", "msg-9"}
	if len(items) != len(want) {
		t.Fatalf("seeded log holds %d entries, want %d", len(items), len(want))
	}
	for i, v := range want {
		if items[i] != v {
			t.Errorf("items[%d] = %q, want %q", i, items[i], v)
		}
	}
}
