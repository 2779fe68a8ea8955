package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const (
	diskExt = ".pcm"

	// Each file starts with one marker byte naming its encoding.
	markerRaw  = 'r'
	markerZstd = 'z'

	// Values smaller than this are not worth compressing.
	compressMin = 1024
)

// Disk is the L2 tier: one file per key in a directory. The index is
// rebuilt from the directory listing on open, so there is nothing to save
// on shutdown and a crash loses at most the file being written.
type Disk struct {
	dir      string
	capacity int64

	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	closeOnce sync.Once

	mu    sync.Mutex
	size  int64
	index map[string]*diskEntry // by file name
	stats Stats
}

type diskEntry struct {
	name       string
	size       int64
	modified   time.Time
	lastAccess time.Time
}

// NewDisk opens or creates an L2 cache in dir. A compressionLevel of zero
// stores values uncompressed.
func NewDisk(dir string, capacity int64, compressionLevel int) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	d := &Disk{
		dir:      dir,
		capacity: capacity,
		index:    make(map[string]*diskEntry),
	}

	var err error
	if compressionLevel > 0 {
		d.encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
	}
	// Files written at another level must still be readable.
	d.decoder, err = zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	if err := d.scan(); err != nil {
		return nil, err
	}
	return d, nil
}

// scan builds the index from the files already in the directory.
func (d *Disk) scan() error {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return fmt.Errorf("failed to read cache directory: %w", err)
	}
	for _, de := range entries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, diskExt) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		d.index[name] = &diskEntry{
			name:       name,
			size:       info.Size(),
			modified:   info.ModTime(),
			lastAccess: info.ModTime(),
		}
		d.size += info.Size()
	}
	return nil
}

// Get reads and decodes the value for key. Unreadable files are removed.
func (d *Disk) Get(key string) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	name := fileName(key)
	entry, ok := d.index[name]
	if !ok {
		d.stats.Misses++
		return nil, false
	}

	data, err := os.ReadFile(filepath.Join(d.dir, name))
	if err == nil {
		data, err = d.decode(data)
	}
	if err != nil {
		d.drop(entry)
		d.stats.Misses++
		return nil, false
	}

	entry.lastAccess = time.Now()
	d.stats.Hits++
	return data, true
}

// Put writes value under key, evicting the least recently used files to
// stay within capacity.
func (d *Disk) Put(key string, value []byte) error {
	data := d.encode(value)
	n := int64(len(data))
	if n > d.capacity {
		return ErrItemTooLarge
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	name := fileName(key)
	if old, ok := d.index[name]; ok {
		d.size -= old.size
		delete(d.index, name)
	}
	d.evictUntil(d.capacity - n)

	path := filepath.Join(d.dir, name)
	if err := writeFile(path, data); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	now := time.Now()
	d.index[name] = &diskEntry{name: name, size: n, modified: now, lastAccess: now}
	d.size += n
	return nil
}

// Delete removes key if present.
func (d *Disk) Delete(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if entry, ok := d.index[fileName(key)]; ok {
		d.drop(entry)
	}
}

// RemoveOlderThan deletes files written before cutoff and returns the
// number removed and the bytes freed.
func (d *Disk) RemoveOlderThan(cutoff time.Time) (int, int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed, freed := 0, int64(0)
	for _, entry := range d.index {
		if entry.modified.Before(cutoff) {
			freed += entry.size
			d.drop(entry)
			removed++
		}
	}
	d.stats.Expired += int64(removed)
	return removed, freed
}

// Clear deletes every cached file.
func (d *Disk) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var firstErr error
	for _, entry := range d.index {
		if err := os.Remove(filepath.Join(d.dir, entry.name)); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	d.index = make(map[string]*diskEntry)
	d.size = 0
	return firstErr
}

// Stats returns a snapshot of the tier's counters.
func (d *Disk) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := d.stats
	s.Capacity = d.capacity
	s.Size = d.size
	s.Items = len(d.index)
	return s
}

// Dir returns the cache directory.
func (d *Disk) Dir() string {
	return d.dir
}

// Close releases the zstd coders. It is safe to call more than once.
func (d *Disk) Close() error {
	var err error
	d.closeOnce.Do(func() {
		if d.encoder != nil {
			err = d.encoder.Close()
		}
		d.decoder.Close()
	})
	return err
}

func (d *Disk) encode(value []byte) []byte {
	if d.encoder != nil && len(value) >= compressMin {
		compressed := d.encoder.EncodeAll(value, []byte{markerZstd})
		if len(compressed) < len(value)+1 {
			return compressed
		}
	}
	return append([]byte{markerRaw}, value...)
}

func (d *Disk) decode(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrCacheCorrupted
	}
	switch data[0] {
	case markerRaw:
		return data[1:], nil
	case markerZstd:
		out, err := d.decoder.DecodeAll(data[1:], nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCacheCorrupted, err)
		}
		return out, nil
	}
	return nil, ErrCacheCorrupted
}

// evictUntil removes least recently used files until size <= target.
// Must be called with d.mu held.
func (d *Disk) evictUntil(target int64) {
	if d.size <= target {
		return
	}
	entries := make([]*diskEntry, 0, len(d.index))
	for _, e := range d.index {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].lastAccess.Before(entries[j].lastAccess)
	})
	for _, e := range entries {
		if d.size <= target {
			break
		}
		d.drop(e)
		d.stats.Evictions++
	}
}

// drop must be called with d.mu held.
func (d *Disk) drop(entry *diskEntry) {
	_ = os.Remove(filepath.Join(d.dir, entry.name))
	delete(d.index, entry.name)
	d.size -= entry.size
}

func fileName(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:16]) + diskExt
}

// writeFile writes to a temp file and renames it into place.
func writeFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
