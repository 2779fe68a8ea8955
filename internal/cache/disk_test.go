package cache

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDisk_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		level int
		value []byte
	}{
		{"small raw", 3, []byte("short")},
		{"compressible", 3, bytes.Repeat([]byte{0, 1}, 4096)},
		{"uncompressed", 0, bytes.Repeat([]byte{7}, 4096)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewDisk(t.TempDir(), 1<<20, tt.level)
			if err != nil {
				t.Fatal(err)
			}
			defer d.Close()

			if err := d.Put("k", tt.value); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			got, ok := d.Get("k")
			if !ok {
				t.Fatal("Expected hit")
			}
			if !bytes.Equal(got, tt.value) {
				t.Errorf("Expected %d bytes back, got %d", len(tt.value), len(got))
			}
		})
	}
}

func TestDisk_CompressesLargeValues(t *testing.T) {
	d, err := NewDisk(t.TempDir(), 1<<20, 3)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	value := make([]byte, 64*1024)
	if err := d.Put("silence", value); err != nil {
		t.Fatal(err)
	}
	if s := d.Stats(); s.Size >= int64(len(value)) {
		t.Errorf("Expected compressed size below %d, got %d", len(value), s.Size)
	}
}

func TestDisk_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDisk(dir, 1<<20, 3)
	if err != nil {
		t.Fatal(err)
	}
	_ = d.Put("a", []byte("alpha"))
	_ = d.Put("b", []byte("beta"))
	_ = d.Close()

	reopened, err := NewDisk(dir, 1<<20, 3)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	if s := reopened.Stats(); s.Items != 2 {
		t.Errorf("Expected 2 files indexed, got %d", s.Items)
	}
	if got, ok := reopened.Get("b"); !ok || string(got) != "beta" {
		t.Errorf("Expected beta, got %q (ok=%v)", got, ok)
	}
}

func TestDisk_EvictsLeastRecentlyUsed(t *testing.T) {
	d, err := NewDisk(t.TempDir(), 100, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	for i := 0; i < 3; i++ {
		if err := d.Put(fmt.Sprintf("k%d", i), make([]byte, 29)); err != nil {
			t.Fatal(err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	d.Get("k0")

	if err := d.Put("k3", make([]byte, 29)); err != nil {
		t.Fatal(err)
	}
	if _, ok := d.Get("k1"); ok {
		t.Error("Expected k1 evicted")
	}
	if _, ok := d.Get("k0"); !ok {
		t.Error("Expected recently read k0 to survive")
	}
	if s := d.Stats(); s.Size > 100 {
		t.Errorf("Expected size within capacity, got %d", s.Size)
	}
}

func TestDisk_CorruptFileIsDropped(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDisk(dir, 1<<20, 3)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	_ = d.Put("k", []byte("value"))
	if err := os.WriteFile(filepath.Join(dir, fileName("k")), []byte("zgarbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, ok := d.Get("k"); ok {
		t.Error("Expected miss on corrupt file")
	}
	if s := d.Stats(); s.Items != 0 {
		t.Errorf("Expected corrupt entry dropped, got %d items", s.Items)
	}
}

func TestDisk_RemoveOlderThan(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDisk(dir, 1<<20, 0)
	if err != nil {
		t.Fatal(err)
	}
	_ = d.Put("old", []byte("a"))
	_ = d.Close()

	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(filepath.Join(dir, fileName("old")), past, past); err != nil {
		t.Fatal(err)
	}

	d, err = NewDisk(dir, 1<<20, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	_ = d.Put("new", []byte("b"))

	removed, freed := d.RemoveOlderThan(time.Now().Add(-24 * time.Hour))
	if removed != 1 || freed != 2 {
		t.Errorf("Expected 1 file and 2 bytes freed, got %d and %d", removed, freed)
	}
	if _, ok := d.Get("new"); !ok {
		t.Error("Expected new entry to survive")
	}
}
