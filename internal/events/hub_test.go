package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubSink struct {
	mu      sync.Mutex
	batches [][]Event
	closed  bool
}

func (s *stubSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]Event(nil), batch...))
	return nil
}

func (s *stubSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubSink) Batches() [][]Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]Event(nil), s.batches...)
}

func sampleEvent(stage Stage) Event {
	evt := Event{RunID: "run-1", TS: time.Now(), Stage: stage, Provider: "Dummy"}
	switch stage {
	case StagePhaseDone:
		evt.Phase = PhaseProblems
	case StageSyncError:
		evt.Note = "boom"
	}
	return evt
}

func TestHubBatchBySize(t *testing.T) {
	t.Parallel()

	sink := &stubSink{}
	hub := NewHub(Config{BufferSize: 8, MaxBatchEvents: 2, MaxBatchWait: time.Minute}, sink)
	defer func() { require.NoError(t, hub.Close(context.Background())) }()

	hub.Emit(sampleEvent(StageSyncStart))
	hub.Emit(sampleEvent(StagePhaseDone))
	require.Eventually(t, func() bool {
		b := sink.Batches()
		return len(b) == 1 && len(b[0]) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestHubBatchByTimer(t *testing.T) {
	t.Parallel()

	sink := &stubSink{}
	hub := NewHub(Config{BufferSize: 4, MaxBatchEvents: 10, MaxBatchWait: 20 * time.Millisecond}, sink)
	defer func() { require.NoError(t, hub.Close(context.Background())) }()

	hub.Emit(sampleEvent(StageSyncStart))
	require.Eventually(t, func() bool { return len(sink.Batches()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestHubFlushOnClose(t *testing.T) {
	t.Parallel()

	sink := &stubSink{}
	hub := NewHub(Config{MaxBatchEvents: 100, MaxBatchWait: time.Minute}, sink)
	hub.Emit(sampleEvent(StageSyncDone))

	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, sink.Batches(), 1)
	require.True(t, sink.closed)

	hub.Emit(sampleEvent(StageSyncDone))
	require.Len(t, sink.Batches(), 1)
}

func TestHubEmitNeverBlocks(t *testing.T) {
	t.Parallel()

	hub := &Hub{in: make(chan Event), logger: zap.NewNop()}
	start := time.Now()
	hub.Emit(sampleEvent(StageSyncStart))
	hub.Emit(sampleEvent(StageSyncDone))
	require.Less(t, time.Since(start), 50*time.Millisecond)
	require.EqualValues(t, 2, hub.Dropped())
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	for _, stage := range []Stage{StageSyncStart, StagePhaseDone, StageSyncDone, StageSyncError} {
		require.NoError(t, sampleEvent(stage).Validate(), stage)
	}

	bad := sampleEvent(StagePhaseDone)
	bad.Phase = ""
	require.Error(t, bad.Validate())

	bad = sampleEvent(StageSyncError)
	bad.Note = ""
	require.Error(t, bad.Validate())

	bad = sampleEvent(StageSyncStart)
	bad.Stage = "NOPE"
	require.Error(t, bad.Validate())

	bad = sampleEvent(StageSyncStart)
	bad.RunID = ""
	require.Error(t, bad.Validate())
}
