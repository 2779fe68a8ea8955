package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestMemory_BasicOperations(t *testing.T) {
	m := NewMemory(1024)

	if err := m.Put("k", []byte("value")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, ok := m.Get("k")
	if !ok || string(got) != "value" {
		t.Fatalf("Expected value, got %q (ok=%v)", got, ok)
	}
	if !m.Contains("k") {
		t.Error("Expected Contains to report key")
	}
	if s := m.Stats(); s.Size != 5 || s.Items != 1 || s.Hits != 1 {
		t.Errorf("Unexpected stats %+v", s)
	}

	m.Delete("k")
	if m.Contains("k") || m.Stats().Size != 0 {
		t.Error("Expected key removed and size zero")
	}
	if _, ok := m.Get("k"); ok {
		t.Error("Expected miss after delete")
	}
}

func TestMemory_LRUEviction(t *testing.T) {
	m := NewMemory(100)
	for i := 0; i < 5; i++ {
		if err := m.Put(fmt.Sprintf("key-%d", i), make([]byte, 20)); err != nil {
			t.Fatal(err)
		}
	}

	// Touch the two oldest so key-2 becomes least recently used.
	m.Get("key-0")
	m.Get("key-1")

	if err := m.Put("new", make([]byte, 30)); err != nil {
		t.Fatal(err)
	}

	for _, k := range []string{"key-0", "key-1", "key-4", "new"} {
		if !m.Contains(k) {
			t.Errorf("Expected %s to survive", k)
		}
	}
	for _, k := range []string{"key-2", "key-3"} {
		if m.Contains(k) {
			t.Errorf("Expected %s to be evicted", k)
		}
	}
	if s := m.Stats(); s.Evictions != 2 || s.Size > 100 {
		t.Errorf("Unexpected stats after eviction %+v", s)
	}
}

func TestMemory_Replace(t *testing.T) {
	m := NewMemory(100)
	_ = m.Put("k", make([]byte, 40))
	_ = m.Put("k", make([]byte, 10))
	if s := m.Stats(); s.Size != 10 || s.Items != 1 {
		t.Errorf("Expected replaced entry to be resized, got %+v", s)
	}
}

func TestMemory_TooLarge(t *testing.T) {
	m := NewMemory(10)
	if err := m.Put("k", make([]byte, 11)); err != ErrItemTooLarge {
		t.Errorf("Expected ErrItemTooLarge, got %v", err)
	}
}

func TestMemory_Prune(t *testing.T) {
	m := NewMemory(100)
	_ = m.Put("old", []byte("a"))
	time.Sleep(20 * time.Millisecond)
	_ = m.Put("fresh", []byte("b"))

	if n := m.Prune(10 * time.Millisecond); n != 1 {
		t.Errorf("Expected 1 pruned, got %d", n)
	}
	if m.Contains("old") || !m.Contains("fresh") {
		t.Error("Expected only the old entry pruned")
	}
}
