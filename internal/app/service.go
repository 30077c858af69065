package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/judge-sync/internal/domain"
	"github.com/JakeFAU/judge-sync/internal/syncer"
)

// Never is shown for providers that were never synced.
const Never = "never"

// ProviderStatus is one row of ListProviders.
type ProviderStatus struct {
	Name         string    `json:"name"`
	LastSyncedAt time.Time `json:"last_synced_at,omitzero"`
	EverSynced   bool      `json:"ever_synced"`
}

// LastSynced formats the watermark, or Never.
func (s ProviderStatus) LastSynced() string {
	if !s.EverSynced {
		return Never
	}
	return s.LastSyncedAt.Format(time.RFC3339)
}

// Providers lists and resolves registered providers.
type Providers interface {
	Names() []string
	Get(name string) (domain.Provider, error)
}

// Progress reads provider watermarks.
type Progress interface {
	Get(provider string) (time.Time, bool)
}

// Syncer runs one provider to completion.
type Syncer interface {
	Sync(ctx context.Context, name string) (syncer.Report, error)
}

// Dispatcher accepts background tasks.
type Dispatcher interface {
	Enqueue(task domain.Task) error
	Pending() int
}

// Service is the caller-facing surface shared by the shell, the HTTP API and
// the CLI.
type Service struct {
	providers  Providers
	progress   Progress
	syncer     Syncer
	dispatcher Dispatcher
	logger     *zap.Logger
}

// NewService wires a Service.
func NewService(providers Providers, progress Progress, s Syncer, dispatcher Dispatcher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		providers:  providers,
		progress:   progress,
		syncer:     s,
		dispatcher: dispatcher,
		logger:     logger.Named("service"),
	}
}

// ListProviders returns every registered provider with its watermark, in name
// order.
func (s *Service) ListProviders() []ProviderStatus {
	names := s.providers.Names()
	out := make([]ProviderStatus, 0, len(names))
	for _, name := range names {
		at, ever := s.progress.Get(name)
		out = append(out, ProviderStatus{Name: name, LastSyncedAt: at, EverSynced: ever})
	}
	return out
}

// Sync enqueues a sync of the named provider and returns at once. Unknown
// providers are rejected before anything is queued.
func (s *Service) Sync(name string) error {
	p, err := s.providers.Get(name)
	if err != nil {
		return err
	}
	name = p.Name()
	task := func(ctx context.Context) {
		report, err := s.syncer.Sync(ctx, name)
		if err != nil {
			s.logger.Error("background sync failed",
				zap.String("provider", name),
				zap.String("run_id", report.RunID),
				zap.Error(err),
			)
			return
		}
		s.logger.Info("background sync finished",
			zap.String("provider", name),
			zap.String("run_id", report.RunID),
			zap.String("status", string(report.Status)),
		)
	}
	if err := s.dispatcher.Enqueue(task); err != nil {
		return fmt.Errorf("enqueue sync of %s: %w", name, err)
	}
	s.logger.Debug("sync queued", zap.String("provider", name))
	return nil
}

// SyncNow runs a sync on the calling goroutine.
func (s *Service) SyncNow(ctx context.Context, name string) (syncer.Report, error) {
	return s.syncer.Sync(ctx, name)
}

// PendingTaskCount reports tasks waiting for a worker.
func (s *Service) PendingTaskCount() int {
	return s.dispatcher.Pending()
}
