package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu      sync.Mutex
	batches [][]Event
	closed  bool
	fail    error
}

func (s *captureSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.batches = append(s.batches, append([]Event(nil), batch...))
	return nil
}

func (s *captureSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *captureSink) events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []Event
	for _, b := range s.batches {
		all = append(all, b...)
	}
	return all
}

func tickEvent(pct int) Event {
	return Event{
		RunID:   UUIDToBytes(uuid.New()),
		TS:      time.Now().UTC(),
		Stage:   StageAnalysisTick,
		Percent: pct,
	}
}

// TestHubDeliversInOrder confirms emitted events reach the sink in order
// after Close drains the buffer.
func TestHubDeliversInOrder(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{}, sink)
	for i := 0; i < 50; i++ {
		hub.Emit(tickEvent(i))
	}
	require.NoError(t, hub.Close(context.Background()))

	got := sink.events()
	require.Len(t, got, 50)
	for i, evt := range got {
		require.Equal(t, i, evt.Percent)
	}
	require.True(t, sink.closed)
}

// TestHubFlushesOnBatchSize flushes without waiting once a batch fills.
func TestHubFlushesOnBatchSize(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{MaxBatchEvents: 4, FlushInterval: time.Hour}, sink)
	defer hub.Close(context.Background())

	for i := 0; i < 4; i++ {
		hub.Emit(tickEvent(i))
	}
	require.Eventually(t, func() bool {
		return len(sink.events()) == 4
	}, 2*time.Second, 10*time.Millisecond)
}

// TestHubDiscardsInvalidEvents drops events failing validation.
func TestHubDiscardsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{}, sink)
	hub.Emit(Event{Stage: StageAnalysisTick, Percent: 50})
	hub.Emit(tickEvent(101))
	require.NoError(t, hub.Close(context.Background()))
	require.Empty(t, sink.events())
}

// TestHubSurvivesSinkFailure keeps delivering to healthy sinks when one
// sink errors.
func TestHubSurvivesSinkFailure(t *testing.T) {
	t.Parallel()

	bad := &captureSink{fail: errors.New("boom")}
	good := &captureSink{}
	hub := NewHub(Config{}, bad, good)
	hub.Emit(tickEvent(10))
	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, good.events(), 1)
}

// TestHubEmitAfterClose is a no-op rather than a panic.
func TestHubEmitAfterClose(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{}, sink)
	require.NoError(t, hub.Close(context.Background()))
	hub.Emit(tickEvent(10))
	require.Empty(t, sink.events())
}

// TestEventValidate covers the coarse payload checks.
func TestEventValidate(t *testing.T) {
	t.Parallel()

	valid := tickEvent(50)
	require.NoError(t, valid.Validate())

	missing := valid
	missing.RunID = [16]byte{}
	require.Error(t, missing.Validate())

	noTS := valid
	noTS.TS = time.Time{}
	require.Error(t, noTS.Validate())

	badStage := valid
	badStage.Stage = "WAT"
	require.Error(t, badStage.Validate())

	badPct := valid
	badPct.Percent = 120
	require.Error(t, badPct.Validate())

	done := valid
	done.Stage = StageAnalysisDone
	done.Percent = 100
	require.NoError(t, done.Validate())
}

// TestUUIDRoundTrip keeps the binary form stable in both directions.
func TestUUIDRoundTrip(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	evt := Event{RunID: UUIDToBytes(id)}
	require.Equal(t, id, evt.RunUUID())
}
