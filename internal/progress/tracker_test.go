package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu      sync.Mutex
	loaded  map[string]time.Time
	saved   map[string]time.Time
	loadErr error
	saveErr error
}

func (s *fakeStore) Load(context.Context) (map[string]time.Time, error) {
	return s.loaded, s.loadErr
}

func (s *fakeStore) Save(_ context.Context, provider string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	if s.saved == nil {
		s.saved = make(map[string]time.Time)
	}
	s.saved[provider] = at
	return nil
}

func TestTrackerStartsNeverSynced(t *testing.T) {
	t.Parallel()

	tr := NewTracker([]string{"Dummy", "AtCoder"}, nil, nil)
	at, ever := tr.Get("Dummy")
	require.False(t, ever)
	require.True(t, at.IsZero())

	snap := tr.Snapshot()
	require.Len(t, snap, 2)
	require.Equal(t, "AtCoder", snap[0].Provider)
}

func TestTrackerCommit(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	tr := NewTracker([]string{"Dummy"}, store, nil)
	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	before := tr.Snapshot()
	require.NoError(t, tr.Commit(context.Background(), "Dummy", started))

	at, ever := tr.Get("Dummy")
	require.True(t, ever)
	require.Equal(t, started, at)
	require.Equal(t, started, store.saved["Dummy"])
	require.False(t, before[0].EverSynced, "snapshots taken earlier must not change")
}

func TestTrackerCommitStoreFailureKeepsMemoryState(t *testing.T) {
	t.Parallel()

	tr := NewTracker([]string{"Dummy"}, &fakeStore{saveErr: errors.New("disk full")}, nil)
	started := time.Now().UTC()
	err := tr.Commit(context.Background(), "Dummy", started)
	require.ErrorContains(t, err, "disk full")

	at, ever := tr.Get("Dummy")
	require.True(t, ever)
	require.Equal(t, started, at)
}

func TestTrackerRestore(t *testing.T) {
	t.Parallel()

	at := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := NewTracker([]string{"Codeforces"}, &fakeStore{loaded: map[string]time.Time{
		"Codeforces": at,
		"Retired":    at,
	}}, nil)
	require.NoError(t, tr.Restore(context.Background()))

	got, ever := tr.Get("Codeforces")
	require.True(t, ever)
	require.Equal(t, at, got)
	require.Len(t, tr.Snapshot(), 1)

	failing := NewTracker(nil, &fakeStore{loadErr: errors.New("nope")}, nil)
	require.Error(t, failing.Restore(context.Background()))
	require.NoError(t, NewTracker(nil, nil, nil).Restore(context.Background()))
}

func TestTrackerConcurrentReadsDuringCommits(t *testing.T) {
	t.Parallel()

	tr := NewTracker([]string{"A", "B"}, nil, nil)
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			require.NoError(t, tr.Commit(context.Background(), "A", time.Unix(int64(i), 0)))
		}()
		go func() {
			defer wg.Done()
			require.Len(t, tr.Snapshot(), 2)
		}()
	}
	wg.Wait()
	_, ever := tr.Get("A")
	require.True(t, ever)
}
