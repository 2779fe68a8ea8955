package cache

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	gap "github.com/muesli/go-app-paths"
)

// Manager coordinates the memory and disk tiers. Reads check memory first
// and promote disk hits; writes go to memory immediately and to disk in
// the background.
type Manager struct {
	config Config
	memory *Memory
	disk   *Disk
	logger *log.Logger

	writes sync.WaitGroup

	stopOnce    sync.Once
	cleanupStop chan struct{}
	cleanupDone chan struct{}

	mu         sync.Mutex
	promotions int64
	lastClean  time.Time
}

// DefaultDir returns the per-user cache directory for audio.
func DefaultDir() (string, error) {
	dir, err := gap.NewScope(gap.User, "voxd").CacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to find cache directory: %w", err)
	}
	return filepath.Join(dir, "audio"), nil
}

// NewManager opens the cache described by config.
func NewManager(config Config, logger *log.Logger) (*Manager, error) {
	if logger == nil {
		logger = log.Default()
	}
	if config.Dir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		config.Dir = dir
	}

	disk, err := NewDisk(config.Dir, config.DiskCapacity, config.CompressionLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create disk cache: %w", err)
	}

	m := &Manager{
		config:      config,
		memory:      NewMemory(config.MemoryCapacity),
		disk:        disk,
		logger:      logger.WithPrefix("cache"),
		cleanupStop: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}

	m.logger.Debug("opened",
		"dir", config.Dir,
		"entries", disk.Stats().Items,
		"size", humanize.Bytes(uint64(disk.Stats().Size)))

	if config.CleanupInterval > 0 {
		go m.cleanupLoop()
	} else {
		close(m.cleanupDone)
	}
	return m, nil
}

// Get returns the value for key from the fastest tier holding it.
func (m *Manager) Get(key string) ([]byte, bool) {
	if data, ok := m.memory.Get(key); ok {
		return data, true
	}
	data, ok := m.disk.Get(key)
	if !ok {
		return nil, false
	}
	if err := m.memory.Put(key, data); err == nil {
		m.mu.Lock()
		m.promotions++
		m.mu.Unlock()
	}
	return data, true
}

// Put stores value in memory and schedules the disk write. Values too large
// for memory still go to disk.
func (m *Manager) Put(key string, value []byte) error {
	if err := m.memory.Put(key, value); err != nil && err != ErrItemTooLarge {
		return fmt.Errorf("memory cache: %w", err)
	}

	m.writes.Add(1)
	go func() {
		defer m.writes.Done()
		if err := m.disk.Put(key, value); err != nil {
			m.logger.Debug("disk write failed", "key", key, "err", err)
		}
	}()
	return nil
}

// Delete removes key from both tiers.
func (m *Manager) Delete(key string) {
	m.writes.Wait()
	m.memory.Delete(key)
	m.disk.Delete(key)
}

// Clear empties both tiers.
func (m *Manager) Clear() error {
	m.writes.Wait()
	m.memory.Clear()
	return m.disk.Clear()
}

// Flush waits for pending disk writes.
func (m *Manager) Flush() {
	m.writes.Wait()
}

// Cleanup removes entries older than the configured TTL and returns the
// number of files removed.
func (m *Manager) Cleanup() int {
	m.mu.Lock()
	m.lastClean = time.Now()
	m.mu.Unlock()

	if m.config.TTL <= 0 {
		return 0
	}
	m.memory.Prune(m.config.TTL)
	removed, freed := m.disk.RemoveOlderThan(time.Now().Add(-m.config.TTL))
	if removed > 0 {
		m.logger.Info("expired cached audio", "files", removed, "freed", humanize.Bytes(uint64(freed)))
	}
	return removed
}

func (m *Manager) cleanupLoop() {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	m.Cleanup()
	for {
		select {
		case <-ticker.C:
			m.Cleanup()
		case <-m.cleanupStop:
			return
		}
	}
}

// ManagerStats aggregates both tiers.
type ManagerStats struct {
	Memory      Stats
	Disk        Stats
	Promotions  int64
	LastCleanup time.Time
}

// Stats returns counters for both tiers.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return ManagerStats{
		Memory:      m.memory.Stats(),
		Disk:        m.disk.Stats(),
		Promotions:  m.promotions,
		LastCleanup: m.lastClean,
	}
}

// Summary renders the stats for humans, e.g. in `voxd doctor`.
func (s ManagerStats) Summary() string {
	return fmt.Sprintf("memory %s/%s (%d items, %.0f%% hits), disk %s/%s (%d files)",
		humanize.Bytes(uint64(s.Memory.Size)), humanize.Bytes(uint64(s.Memory.Capacity)),
		s.Memory.Items, s.Memory.HitRate()*100,
		humanize.Bytes(uint64(s.Disk.Size)), humanize.Bytes(uint64(s.Disk.Capacity)),
		s.Disk.Items)
}

// Dir returns the disk tier's directory.
func (m *Manager) Dir() string {
	return m.disk.Dir()
}

// Close stops the cleanup loop and waits for pending writes.
func (m *Manager) Close() error {
	m.stopOnce.Do(func() { close(m.cleanupStop) })
	<-m.cleanupDone
	m.writes.Wait()
	return m.disk.Close()
}
