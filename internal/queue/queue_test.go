package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func batch(text string) Batch {
	return NewBatch([]string{text})
}

func TestQueue_BasicOperations(t *testing.T) {
	q := New(DefaultCapacity)
	defer q.Close()

	if q.Len() != 0 {
		t.Errorf("Expected empty queue, got size %d", q.Len())
	}
	if q.Cap() != 3 {
		t.Errorf("Expected capacity 3, got %d", q.Cap())
	}

	b := batch("Hello there.")
	if err := q.TryEnqueue(b); err != nil {
		t.Fatalf("TryEnqueue failed: %v", err)
	}
	if q.Len() != 1 {
		t.Errorf("Expected size 1, got %d", q.Len())
	}

	got, err := q.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if got.ID != b.ID {
		t.Errorf("Dequeued wrong batch: %v", got)
	}
	if q.Len() != 0 {
		t.Errorf("Expected empty queue after dequeue, got size %d", q.Len())
	}
}

func TestQueue_Backpressure(t *testing.T) {
	q := New(DefaultCapacity)
	defer q.Close()

	accepted, rejected := 0, 0
	for i := 0; i < 10; i++ {
		err := q.TryEnqueue(batch(fmt.Sprintf("Sentence %d.", i)))
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, ErrQueueFull):
			rejected++
		default:
			t.Fatalf("Unexpected error: %v", err)
		}
	}

	if accepted != 3 || rejected != 7 {
		t.Errorf("Expected 3 accepted and 7 rejected, got %d and %d", accepted, rejected)
	}

	stats := q.Stats()
	if stats.TotalEnqueued != 3 || stats.TotalRejected != 7 || stats.PeakSize != 3 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestQueue_FullKeepsExistingOrder(t *testing.T) {
	q := New(DefaultCapacity)
	defer q.Close()

	var ids []string
	for i := 0; i < 3; i++ {
		b := batch(fmt.Sprintf("Sentence %d.", i))
		ids = append(ids, b.ID)
		if err := q.TryEnqueue(b); err != nil {
			t.Fatalf("TryEnqueue failed: %v", err)
		}
	}
	if err := q.TryEnqueue(batch("Late.")); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Expected ErrQueueFull, got %v", err)
	}

	for i, want := range ids {
		got, err := q.Dequeue(context.Background())
		if err != nil {
			t.Fatalf("Dequeue failed: %v", err)
		}
		if got.ID != want {
			t.Errorf("Position %d: expected %s, got %s", i, want, got.ID)
		}
	}
}

func TestQueue_ConcurrentSubmitters(t *testing.T) {
	q := New(DefaultCapacity)
	defer q.Close()

	var wg sync.WaitGroup
	var accepted atomic.Int32
	start := make(chan struct{})
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			if err := q.TryEnqueue(batch(fmt.Sprintf("Sentence %d.", i))); err == nil {
				accepted.Add(1)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if accepted.Load() != 3 {
		t.Fatalf("Expected all 3 concurrent submissions accepted, got %d", accepted.Load())
	}
	if err := q.TryEnqueue(batch("Fourth.")); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Expected fourth submission to be rejected, got %v", err)
	}
}

func TestQueue_EmptyBatch(t *testing.T) {
	q := New(1)
	defer q.Close()

	if err := q.TryEnqueue(Batch{ID: "x"}); !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("Expected ErrEmptyBatch, got %v", err)
	}
	if q.Len() != 0 {
		t.Errorf("Expected nothing queued, got %d", q.Len())
	}
}

func TestQueue_DequeueBlocksUntilEnqueue(t *testing.T) {
	q := New(DefaultCapacity)
	defer q.Close()

	done := make(chan Batch, 1)
	go func() {
		b, err := q.Dequeue(context.Background())
		if err == nil {
			done <- b
		}
	}()

	select {
	case <-done:
		t.Fatal("Dequeue returned before anything was enqueued")
	case <-time.After(50 * time.Millisecond):
	}

	b := batch("Wake up.")
	if err := q.TryEnqueue(b); err != nil {
		t.Fatalf("TryEnqueue failed: %v", err)
	}

	select {
	case got := <-done:
		if got.ID != b.ID {
			t.Errorf("Expected %s, got %s", b.ID, got.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not wake up")
	}
}

func TestQueue_DequeueContextCancel(t *testing.T) {
	q := New(DefaultCapacity)
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}
}

func TestQueue_Close(t *testing.T) {
	q := New(DefaultCapacity)

	b := batch("Still here.")
	if err := q.TryEnqueue(b); err != nil {
		t.Fatalf("TryEnqueue failed: %v", err)
	}
	q.Close()
	q.Close()

	if err := q.TryEnqueue(batch("Too late.")); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Expected ErrQueueClosed, got %v", err)
	}

	got, err := q.Dequeue(context.Background())
	if err != nil || got.ID != b.ID {
		t.Errorf("Expected queued batch to drain after close, got %v, %v", got, err)
	}
	if _, err := q.Dequeue(context.Background()); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Expected ErrQueueClosed, got %v", err)
	}
}

func TestNewBatchCopiesSentences(t *testing.T) {
	sentences := []string{"One.", "Two."}
	b := NewBatch(sentences)
	sentences[0] = "Changed."

	if b.Sentences[0] != "One." {
		t.Errorf("Expected batch to own its sentences, got %q", b.Sentences[0])
	}
	if b.ID == "" || b.Submitted.IsZero() {
		t.Errorf("Expected ID and timestamp to be set: %+v", b)
	}
}
