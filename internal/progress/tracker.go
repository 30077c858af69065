package progress

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/judge-sync/internal/domain"
)

// Store persists watermarks across process restarts.
type Store interface {
	Load(ctx context.Context) (map[string]time.Time, error)
	Save(ctx context.Context, provider string, lastSyncedAt time.Time) error
}

// Tracker holds one ProviderState per registered provider.
type Tracker struct {
	state  atomic.Pointer[map[string]domain.ProviderState]
	mu     sync.Mutex // serializes writers
	store  Store
	logger *zap.Logger
}

// NewTracker registers providers with EverSynced=false. store may be nil.
func NewTracker(providers []string, store Store, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracker{store: store, logger: logger.Named("progress")}
	initial := make(map[string]domain.ProviderState, len(providers))
	for _, name := range providers {
		initial[name] = domain.ProviderState{Provider: name}
	}
	t.state.Store(&initial)
	return t
}

// Restore loads persisted watermarks for registered providers. Entries of
// providers that are not registered are ignored.
func (t *Tracker) Restore(ctx context.Context) error {
	if t.store == nil {
		return nil
	}
	saved, err := t.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load progress: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	next := t.copyState()
	for name, at := range saved {
		if _, ok := next[name]; !ok {
			t.logger.Debug("ignoring progress of unregistered provider", zap.String("provider", name))
			continue
		}
		next[name] = domain.ProviderState{Provider: name, LastSyncedAt: at, EverSynced: true}
	}
	t.state.Store(&next)
	return nil
}

// Get returns the watermark of provider. The zero time is returned with
// everSynced=false for a provider that never completed a sync.
func (t *Tracker) Get(provider string) (lastSyncedAt time.Time, everSynced bool) {
	st := (*t.state.Load())[provider]
	return st.LastSyncedAt, st.EverSynced
}

// Commit records a completed sync that started at syncStartedAt. The new
// state is visible to readers before the store is written; a store failure
// is returned but does not roll back the in-memory watermark.
func (t *Tracker) Commit(ctx context.Context, provider string, syncStartedAt time.Time) error {
	t.mu.Lock()
	next := t.copyState()
	next[provider] = domain.ProviderState{Provider: provider, LastSyncedAt: syncStartedAt, EverSynced: true}
	t.state.Store(&next)
	t.mu.Unlock()

	if t.store == nil {
		return nil
	}
	if err := t.store.Save(ctx, provider, syncStartedAt); err != nil {
		return fmt.Errorf("persist progress of %s: %w", provider, err)
	}
	return nil
}

// Snapshot returns every provider state sorted by provider name.
func (t *Tracker) Snapshot() []domain.ProviderState {
	current := *t.state.Load()
	out := make([]domain.ProviderState, 0, len(current))
	for _, st := range current {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}

func (t *Tracker) copyState() map[string]domain.ProviderState {
	current := *t.state.Load()
	next := make(map[string]domain.ProviderState, len(current)+1)
	for k, v := range current {
		next[k] = v
	}
	return next
}
