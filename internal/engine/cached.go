package engine

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/voxd/internal/audio"
)

// Store persists synthesized audio by key. internal/cache provides the
// memory and disk implementations.
type Store interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
}

// clipHeaderSize is the rate and channel prefix on stored clips.
const clipHeaderSize = 6

// Cached serves repeated sentences from a Store instead of the engine.
type Cached struct {
	kind   Kind
	engine Engine
	store  Store
}

// NewCached wraps e so that its output is stored under a key built from the
// engine kind and request.
func NewCached(e Engine, store Store) *Cached {
	return &Cached{kind: e.Info().Name, engine: e, store: store}
}

// CacheKey derives the storage key for a request to kind.
func CacheKey(kind Kind, req Request) string {
	data := fmt.Sprintf("%s|%s|%.2f|%s", kind, req.Voice, req.Speed, req.Text)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:16])
}

// Synthesize returns the stored clip for req or synthesizes and stores it.
// Store failures are logged and never fail synthesis.
func (c *Cached) Synthesize(ctx context.Context, req Request) (audio.Clip, error) {
	key := CacheKey(c.kind, req)
	if data, ok := c.store.Get(key); ok {
		if clip, ok := decodeClip(data); ok {
			return clip, nil
		}
		log.Warn("discarding corrupt cached clip", "engine", c.kind, "key", key)
	}

	clip, err := c.engine.Synthesize(ctx, req)
	if err != nil {
		return audio.Clip{}, err
	}
	if err := c.store.Put(key, encodeClip(clip)); err != nil {
		log.Debug("failed to cache clip", "engine", c.kind, "err", err)
	}
	return clip, nil
}

// Info returns the wrapped engine's info.
func (c *Cached) Info() Info {
	return c.engine.Info()
}

// Validate validates the wrapped engine.
func (c *Cached) Validate(ctx context.Context) error {
	return c.engine.Validate(ctx)
}

func encodeClip(c audio.Clip) []byte {
	out := make([]byte, clipHeaderSize+len(c.PCM))
	binary.LittleEndian.PutUint32(out[0:], uint32(c.SampleRate))
	binary.LittleEndian.PutUint16(out[4:], uint16(c.Channels))
	copy(out[clipHeaderSize:], c.PCM)
	return out
}

func decodeClip(data []byte) (audio.Clip, bool) {
	if len(data) < clipHeaderSize {
		return audio.Clip{}, false
	}
	c := audio.Clip{
		SampleRate: int(binary.LittleEndian.Uint32(data[0:])),
		Channels:   int(binary.LittleEndian.Uint16(data[4:])),
		PCM:        data[clipHeaderSize:],
	}
	if c.SampleRate <= 0 || c.Channels <= 0 || len(c.PCM)%(2*c.Channels) != 0 {
		return audio.Clip{}, false
	}
	return c, true
}
