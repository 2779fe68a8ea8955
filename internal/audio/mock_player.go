package audio

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MockPlayer implements Player for testing purposes.
// It records every clip instead of producing sound.
type MockPlayer struct {
	// Test callbacks
	callbacks MockCallbacks

	// delayFactor scales simulated playback time; 0 returns immediately.
	delayFactor float64

	mu     sync.Mutex
	played []Clip
	err    error
	closed bool

	playCount atomic.Int64
}

// MockCallbacks provides hooks for testing.
type MockCallbacks struct {
	OnPlay  func(clip Clip)
	OnClose func()
}

// DefaultMockPlayer creates a mock player that returns immediately.
func DefaultMockPlayer() *MockPlayer {
	return &MockPlayer{}
}

// NewMockPlayer creates a new mock player with custom callbacks.
func NewMockPlayer(callbacks MockCallbacks) *MockPlayer {
	mp := DefaultMockPlayer()
	mp.callbacks = callbacks
	return mp
}

// SetDelayFactor makes Play block for the clip's duration times factor.
func (mp *MockPlayer) SetDelayFactor(factor float64) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.delayFactor = factor
}

// SetError makes subsequent Play calls fail with err.
func (mp *MockPlayer) SetError(err error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.err = err
}

// Play records the clip and simulates its playback time.
func (mp *MockPlayer) Play(ctx context.Context, clip Clip) error {
	mp.mu.Lock()
	if mp.closed {
		mp.mu.Unlock()
		return ErrPlayerClosed
	}
	if mp.err != nil {
		err := mp.err
		mp.mu.Unlock()
		return err
	}
	mp.played = append(mp.played, clip)
	delay := time.Duration(float64(clip.Duration()) * mp.delayFactor)
	onPlay := mp.callbacks.OnPlay
	mp.mu.Unlock()

	mp.playCount.Add(1)
	if onPlay != nil {
		onPlay(clip)
	}

	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Played returns the clips played so far, in order.
func (mp *MockPlayer) Played() []Clip {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return append([]Clip(nil), mp.played...)
}

// PlayCount returns the number of successful Play calls.
func (mp *MockPlayer) PlayCount() int64 {
	return mp.playCount.Load()
}

// Close marks the player closed.
func (mp *MockPlayer) Close() error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.closed {
		return nil
	}
	mp.closed = true
	if mp.callbacks.OnClose != nil {
		mp.callbacks.OnClose()
	}
	return nil
}
