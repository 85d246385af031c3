// Package memory provides a bounded in-process queue.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sigmetapp/seohqs-sub000/internal/queue"
)

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("queue is closed")

// Queue is a channel-backed queue with a fixed capacity. Enqueue never
// blocks; a full queue rejects immediately so the API can shed load.
type Queue struct {
	items chan queue.Item

	mu     sync.Mutex
	closed bool
}

// New returns a queue holding at most capacity items (default 64).
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 64
	}
	return &Queue{items: make(chan queue.Item, capacity)}
}

// Enqueue adds the item or fails fast. It never blocks, so the caller's
// context is not consulted.
func (q *Queue) Enqueue(_ context.Context, item queue.Item) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case q.items <- item:
		return nil
	default:
		return queue.ErrQueueFull
	}
}

// Dequeue blocks until an item is available, the queue drains after
// Close, or ctx ends.
func (q *Queue) Dequeue(ctx context.Context) (queue.Item, error) {
	select {
	case item, ok := <-q.items:
		if !ok {
			return queue.Item{}, ErrClosed
		}
		return item, nil
	case <-ctx.Done():
		return queue.Item{}, fmt.Errorf("dequeue: %w", ctx.Err())
	}
}

// Close rejects further enqueues. Buffered items remain readable until
// the channel drains.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.items)
	return nil
}
