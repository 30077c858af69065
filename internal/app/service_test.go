package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/judge-sync/internal/app"
	"github.com/JakeFAU/judge-sync/internal/domain"
	"github.com/JakeFAU/judge-sync/internal/provider"
	"github.com/JakeFAU/judge-sync/internal/provider/dummy"
	"github.com/JakeFAU/judge-sync/internal/syncer"
)

type mockSyncer struct {
	mock.Mock
}

func (m *mockSyncer) Sync(ctx context.Context, name string) (syncer.Report, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(syncer.Report), args.Error(1)
}

type stubProgress map[string]time.Time

func (s stubProgress) Get(name string) (time.Time, bool) {
	at, ok := s[name]
	return at, ok
}

type fakeDispatcher struct {
	mu    sync.Mutex
	tasks []domain.Task
	err   error
}

func (d *fakeDispatcher) Enqueue(task domain.Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.tasks = append(d.tasks, task)
	return nil
}

func (d *fakeDispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tasks)
}

func (d *fakeDispatcher) runAll(ctx context.Context) {
	d.mu.Lock()
	tasks := d.tasks
	d.tasks = nil
	d.mu.Unlock()
	for _, task := range tasks {
		task(ctx)
	}
}

type namedProvider struct {
	*dummy.Provider
	name string
}

func (p namedProvider) Name() string { return p.name }

func newRegistry(t *testing.T, names ...string) *provider.Registry {
	t.Helper()
	providers := make([]domain.Provider, 0, len(names))
	for _, name := range names {
		providers = append(providers, namedProvider{Provider: dummy.New(), name: name})
	}
	r, err := provider.NewRegistry(providers...)
	require.NoError(t, err)
	return r
}

func TestListProviders(t *testing.T) {
	t.Parallel()

	synced := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := app.NewService(
		newRegistry(t, "Dummy", "AtCoder", "Codeforces"),
		stubProgress{"Codeforces": synced},
		&mockSyncer{},
		&fakeDispatcher{},
		nil,
	)

	got := svc.ListProviders()
	require.Equal(t, []app.ProviderStatus{
		{Name: "AtCoder"},
		{Name: "Codeforces", LastSyncedAt: synced, EverSynced: true},
		{Name: "Dummy"},
	}, got)
	require.Equal(t, app.Never, got[0].LastSynced())
	require.Equal(t, "2024-03-01T12:00:00Z", got[1].LastSynced())
}

func TestSyncEnqueuesAndReturns(t *testing.T) {
	t.Parallel()

	ms := &mockSyncer{}
	ms.On("Sync", mock.Anything, "Dummy").
		Return(syncer.Report{RunID: "run-1", Provider: "Dummy", Status: syncer.StatusCompleted}, nil).
		Once()
	d := &fakeDispatcher{}
	svc := app.NewService(newRegistry(t, "Dummy"), stubProgress{}, ms, d, nil)

	require.NoError(t, svc.Sync("Dummy"))
	require.Equal(t, 1, svc.PendingTaskCount())
	ms.AssertNotCalled(t, "Sync", mock.Anything, "Dummy")

	d.runAll(context.Background())
	require.Zero(t, svc.PendingTaskCount())
	ms.AssertExpectations(t)
}

func TestSyncTaskContainsFailure(t *testing.T) {
	t.Parallel()

	ms := &mockSyncer{}
	ms.On("Sync", mock.Anything, "Dummy").
		Return(syncer.Report{Provider: "Dummy", Status: syncer.StatusFailed}, domain.IOErrorf("boom")).
		Once()
	d := &fakeDispatcher{}
	svc := app.NewService(newRegistry(t, "Dummy"), stubProgress{}, ms, d, nil)

	require.NoError(t, svc.Sync("Dummy"))
	require.NotPanics(t, func() { d.runAll(context.Background()) })
	ms.AssertExpectations(t)
}

func TestSyncUnknownProvider(t *testing.T) {
	t.Parallel()

	d := &fakeDispatcher{}
	svc := app.NewService(newRegistry(t, "Dummy"), stubProgress{}, &mockSyncer{}, d, nil)

	err := svc.Sync("Topcoder")
	require.ErrorIs(t, err, domain.ErrUnknownProvider)
	require.Zero(t, svc.PendingTaskCount())
}

func TestSyncEnqueueFailure(t *testing.T) {
	t.Parallel()

	d := &fakeDispatcher{err: errors.New("queue closed")}
	svc := app.NewService(newRegistry(t, "Dummy"), stubProgress{}, &mockSyncer{}, d, nil)

	require.ErrorContains(t, svc.Sync("Dummy"), "enqueue sync of Dummy")
}

func TestSyncNowReturnsReport(t *testing.T) {
	t.Parallel()

	ms := &mockSyncer{}
	want := syncer.Report{RunID: "run-2", Provider: "Dummy", Status: syncer.StatusNotSupported}
	ms.On("Sync", mock.Anything, "Dummy").Return(want, nil).Once()
	svc := app.NewService(newRegistry(t, "Dummy"), stubProgress{}, ms, &fakeDispatcher{}, nil)

	got, err := svc.SyncNow(context.Background(), "Dummy")
	require.NoError(t, err)
	require.Equal(t, want, got)
}
