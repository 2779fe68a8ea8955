package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCapacity bounds how much speech may be pending at once. A burst of
// submissions beyond it is rejected, not buffered.
const DefaultCapacity = 3

var (
	// ErrQueueFull is returned when the queue is at capacity
	ErrQueueFull = errors.New("queue is full")

	// ErrQueueClosed is returned when operations are attempted on a closed queue
	ErrQueueClosed = errors.New("queue is closed")

	// ErrEmptyBatch is returned when a batch without sentences is enqueued
	ErrEmptyBatch = errors.New("batch has no sentences")
)

// Batch is the speakable sentences of one submission. It is created once,
// consumed once, and never mutated after it is enqueued.
type Batch struct {
	ID        string
	Sentences []string
	Submitted time.Time
}

// NewBatch wraps sentences in a batch with a fresh ID.
func NewBatch(sentences []string) Batch {
	return Batch{
		ID:        uuid.NewString(),
		Sentences: append([]string(nil), sentences...),
		Submitted: time.Now(),
	}
}

// Stats tracks queue activity
type Stats struct {
	TotalEnqueued int64
	TotalRejected int64
	TotalDequeued int64
	CurrentSize   int
	PeakSize      int
	LastEnqueue   time.Time
	LastDequeue   time.Time
}

// Queue is a bounded FIFO of batches. Any number of goroutines may enqueue;
// a single consumer is expected to dequeue.
type Queue struct {
	items    []Batch
	capacity int

	mu       sync.Mutex
	notEmpty *sync.Cond

	closed bool
	stats  Stats
}

// New creates a queue holding at most capacity batches. A non-positive
// capacity selects DefaultCapacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	q := &Queue{
		items:    make([]Batch, 0, capacity),
		capacity: capacity,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// TryEnqueue appends a batch without blocking. It returns ErrQueueFull when
// every slot is taken; the batches already queued are left untouched.
func (q *Queue) TryEnqueue(b Batch) error {
	if len(b.Sentences) == 0 {
		return ErrEmptyBatch
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	if len(q.items) >= q.capacity {
		q.stats.TotalRejected++
		return ErrQueueFull
	}

	q.items = append(q.items, b)
	q.stats.TotalEnqueued++
	q.stats.LastEnqueue = time.Now()
	if len(q.items) > q.stats.PeakSize {
		q.stats.PeakSize = len(q.items)
	}

	q.notEmpty.Signal()
	return nil
}

// Dequeue removes and returns the oldest batch, blocking until one is
// available, the context is cancelled or the queue is closed. Batches still
// queued at Close are drained before ErrQueueClosed is returned.
func (q *Queue) Dequeue(ctx context.Context) (Batch, error) {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		q.notEmpty.Broadcast()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed && ctx.Err() == nil {
		q.notEmpty.Wait()
	}

	if err := ctx.Err(); err != nil {
		return Batch{}, err
	}
	if len(q.items) == 0 {
		return Batch{}, ErrQueueClosed
	}

	b := q.items[0]
	q.items[0] = Batch{}
	q.items = q.items[1:]

	q.stats.TotalDequeued++
	q.stats.LastDequeue = time.Now()
	return b, nil
}

// Len returns the number of batches waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return q.capacity
}

// Stats returns current queue statistics.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := q.stats
	stats.CurrentSize = len(q.items)
	return stats
}

// Close stops the queue accepting batches and wakes any waiting consumer.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.notEmpty.Broadcast()
}
