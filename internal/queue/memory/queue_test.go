package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sigmetapp/seohqs-sub000/internal/queue"
)

// TestEnqueueDequeueFIFO preserves submission order.
func TestEnqueueDequeueFIFO(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q := New(4)
	first := queue.Item{RunID: uuid.New(), Text: "a"}
	second := queue.Item{RunID: uuid.New(), Text: "b"}

	require.NoError(t, q.Enqueue(ctx, first))
	require.NoError(t, q.Enqueue(ctx, second))

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, first.RunID, got.RunID)

	got, err = q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, second.RunID, got.RunID)
}

// TestEnqueueFullFailsFast rejects instead of blocking on a full queue.
func TestEnqueueFullFailsFast(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q := New(1)
	require.NoError(t, q.Enqueue(ctx, queue.Item{RunID: uuid.New()}))
	require.ErrorIs(t, q.Enqueue(ctx, queue.Item{RunID: uuid.New()}), queue.ErrQueueFull)
}

// TestEnqueueIgnoresContext accepts items regardless of the caller's
// context state because the operation never blocks.
func TestEnqueueIgnoresContext(t *testing.T) {
	t.Parallel()

	q := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, q.Enqueue(ctx, queue.Item{RunID: uuid.New()}))
}

// TestDequeueHonorsContext unblocks waiting consumers on cancellation.
func TestDequeueHonorsContext(t *testing.T) {
	t.Parallel()

	q := New(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestCloseDrainsPending lets consumers read buffered items after Close.
func TestCloseDrainsPending(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q := New(2)
	item := queue.Item{RunID: uuid.New(), Text: "pending"}
	require.NoError(t, q.Enqueue(ctx, item))
	require.NoError(t, q.Close())

	require.ErrorIs(t, q.Enqueue(ctx, queue.Item{}), ErrClosed)

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, item.RunID, got.RunID)

	_, err = q.Dequeue(ctx)
	require.ErrorIs(t, err, ErrClosed)
}
