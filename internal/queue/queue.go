// Package queue defines the hand-off between the submission API and the
// analysis workers.
package queue

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrQueueFull is returned when the queue cannot accept more work.
var ErrQueueFull = errors.New("analysis queue is full")

// Item is one queued analysis request. Text holds the raw log content;
// runs are small enough to stay in memory end to end.
type Item struct {
	RunID     uuid.UUID
	Text      string
	Submitted int64
}

// Queue moves analysis requests from producers to workers.
type Queue interface {
	// Enqueue adds the item or fails fast with ErrQueueFull.
	Enqueue(ctx context.Context, item Item) error
	// Dequeue blocks until an item is available or ctx ends.
	Dequeue(ctx context.Context) (Item, error)
	// Close stops the queue. Pending items remain readable until drained.
	Close() error
}
