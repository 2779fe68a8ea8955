package cache

import (
	"errors"
	"time"
)

// Common errors for cache operations
var (
	// ErrItemTooLarge is returned when an item exceeds the cache capacity
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrCacheCorrupted is returned when a stored file cannot be decoded
	ErrCacheCorrupted = errors.New("cache data corrupted")
)

// Level identifies a cache tier.
type Level int

const (
	// LevelMemory is the in-process LRU.
	LevelMemory Level = iota

	// LevelDisk is the persistent compressed store.
	LevelDisk
)

func (l Level) String() string {
	switch l {
	case LevelMemory:
		return "memory"
	case LevelDisk:
		return "disk"
	default:
		return "unknown"
	}
}

// Stats holds counters for one tier.
type Stats struct {
	Capacity  int64
	Size      int64
	Items     int
	Hits      int64
	Misses    int64
	Evictions int64
	Expired   int64
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (s Stats) HitRate() float64 {
	if total := s.Hits + s.Misses; total > 0 {
		return float64(s.Hits) / float64(total)
	}
	return 0
}

// Config holds configuration for a Manager.
type Config struct {
	// MemoryCapacity bounds the L1 tier in bytes.
	MemoryCapacity int64

	// DiskCapacity bounds the L2 tier in bytes of compressed data.
	DiskCapacity int64

	// Dir holds the L2 files. Defaults to the user cache directory.
	Dir string

	// CompressionLevel is the zstd level (1-22). Zero disables compression.
	CompressionLevel int

	// TTL expires entries by age. Zero keeps them forever.
	TTL time.Duration

	// CleanupInterval is how often expired entries are removed. Zero
	// disables the background sweep.
	CleanupInterval time.Duration
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		MemoryCapacity:   32 << 20,
		DiskCapacity:     512 << 20,
		CompressionLevel: 3,
		TTL:              7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}
