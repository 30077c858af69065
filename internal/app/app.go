// Package app initializes and holds long-lived application services, acting
// as a dependency injection container for the shell, the HTTP API and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/judge-sync/internal/catalog/blob"
	catalogmemory "github.com/JakeFAU/judge-sync/internal/catalog/memory"
	"github.com/JakeFAU/judge-sync/internal/catalog/rest"
	"github.com/JakeFAU/judge-sync/internal/clock/system"
	"github.com/JakeFAU/judge-sync/internal/config"
	"github.com/JakeFAU/judge-sync/internal/dispatcher"
	"github.com/JakeFAU/judge-sync/internal/domain"
	"github.com/JakeFAU/judge-sync/internal/events"
	"github.com/JakeFAU/judge-sync/internal/fetcher"
	collyfetcher "github.com/JakeFAU/judge-sync/internal/fetcher/colly"
	"github.com/JakeFAU/judge-sync/internal/id/uuid"
	"github.com/JakeFAU/judge-sync/internal/metrics"
	"github.com/JakeFAU/judge-sync/internal/policy/ratelimit"
	"github.com/JakeFAU/judge-sync/internal/progress"
	progressfile "github.com/JakeFAU/judge-sync/internal/progress/file"
	progresspg "github.com/JakeFAU/judge-sync/internal/progress/postgres"
	"github.com/JakeFAU/judge-sync/internal/provider"
	"github.com/JakeFAU/judge-sync/internal/provider/atcoder"
	"github.com/JakeFAU/judge-sync/internal/provider/codeforces"
	"github.com/JakeFAU/judge-sync/internal/provider/dummy"
	publishermemory "github.com/JakeFAU/judge-sync/internal/publisher/memory"
	publisherpubsub "github.com/JakeFAU/judge-sync/internal/publisher/pubsub"
	queuememory "github.com/JakeFAU/judge-sync/internal/queue/memory"
	"github.com/JakeFAU/judge-sync/internal/storage/gcs"
	"github.com/JakeFAU/judge-sync/internal/storage/local"
	storagememory "github.com/JakeFAU/judge-sync/internal/storage/memory"
	"github.com/JakeFAU/judge-sync/internal/syncer"
	"github.com/JakeFAU/judge-sync/internal/worker"
)

// DefaultTopic receives sync notifications when Pub/Sub is not configured.
const DefaultTopic = "judge-sync-events"

// App holds all the shared, long-lived services for the application. It is
// built once at startup; Run drives the dispatcher and Close releases every
// backend in reverse order of construction.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	registry   *provider.Registry
	catalog    domain.Catalog
	tracker    *progress.Tracker
	hub        *events.Hub
	publisher  domain.Publisher
	queue      *queuememory.Queue
	dispatcher *dispatcher.Dispatcher
	service    *Service

	closers []func(context.Context) error
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config { return a.cfg }

// Service returns the caller-facing service.
func (a *App) Service() *Service { return a.service }

// Catalog returns the configured catalog.
func (a *App) Catalog() domain.Catalog { return a.catalog }

// Publisher returns the notification publisher.
func (a *App) Publisher() domain.Publisher { return a.publisher }

// New creates and initializes an App from cfg. It fails fast if any backend
// cannot be initialized and releases whatever was already opened.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	a := &App{cfg: cfg, logger: logger}
	if err := a.init(ctx); err != nil {
		_ = a.Close(context.WithoutCancel(ctx))
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	a.logger.Info("initializing application services")

	clock := system.New()
	ids := uuid.New()

	var err error
	if a.registry, err = buildProviders(a.cfg, a.logger); err != nil {
		return err
	}
	if a.catalog, err = a.buildCatalog(ctx, ids, clock); err != nil {
		return err
	}
	if a.tracker, err = a.buildProgress(ctx); err != nil {
		return err
	}
	if a.publisher, err = a.buildPublisher(ctx); err != nil {
		return err
	}

	topic := a.cfg.PubSub.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	a.hub = events.NewHub(
		events.Config{Logger: a.logger},
		events.NewLogSink(a.logger),
		events.NewPublisherSink(a.publisher, topic),
	)

	orchestrator := syncer.New(a.registry, a.catalog, a.tracker, clock, ids, a.hub, a.cfg.Sync, a.logger)

	a.queue = queuememory.NewQueue()
	pool := worker.New(a.cfg.Dispatcher, a.logger)
	a.dispatcher = dispatcher.New(a.queue, pool, a.logger)
	a.service = NewService(a.registry, a.tracker, orchestrator, a.dispatcher, a.logger)

	a.logger.Info("application services ready",
		zap.Strings("providers", a.registry.Names()),
		zap.String("catalog", a.cfg.Catalog.Kind),
		zap.String("progress", a.cfg.Progress.Kind),
	)
	return nil
}

// Run drives the dispatcher until ctx ends, then lets in-flight tasks drain.
func (a *App) Run(ctx context.Context) error {
	return a.dispatcher.Run(ctx)
}

// Close stops task intake, flushes pending events and releases backends. It
// is safe to call more than once.
func (a *App) Close(ctx context.Context) error {
	if a.queue != nil {
		a.queue.Close()
	}
	var errs []error
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		a.hub = nil
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

func buildProviders(cfg config.Config, logger *zap.Logger) (*provider.Registry, error) {
	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.Fetch.RatePerHost,
		DefaultBurst: cfg.Fetch.Burst,
		HostRPS:      cfg.Fetch.HostRPS(),
	})
	transport := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Fetch.UserAgent,
		RespectRobots: cfg.Fetch.RespectRobots,
		Timeout:       cfg.Fetch.Timeout,
	}, limiter)
	retrying := func(name string) domain.Fetcher {
		p := cfg.Fetch.PolicyFor(name)
		return fetcher.NewRetrying(transport, fetcher.Policy{MaxAttempts: p.MaxAttempts, Delay: p.Delay},
			logger.Named("fetch").With(zap.String("provider", name)))
	}

	providers := make([]domain.Provider, 0, len(cfg.Providers))
	for _, name := range cfg.Providers {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case strings.ToLower(codeforces.Name):
			providers = append(providers, codeforces.New(codeforces.Config{}, retrying(codeforces.Name), logger))
		case strings.ToLower(atcoder.Name):
			providers = append(providers, atcoder.New(retrying(atcoder.Name), logger))
		case strings.ToLower(dummy.Name):
			providers = append(providers, dummy.New())
		default:
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownProvider, name)
		}
	}
	registry, err := provider.NewRegistry(providers...)
	if err != nil {
		return nil, fmt.Errorf("register providers: %w", err)
	}
	return registry, nil
}

func (a *App) buildCatalog(ctx context.Context, ids domain.IDGenerator, clock domain.Clock) (domain.Catalog, error) {
	switch a.cfg.Catalog.Kind {
	case config.KindMemory:
		a.logger.Info("using in-memory catalog; published problems are discarded on exit")
		return catalogmemory.New(), nil
	case config.KindREST:
		a.logger.Info("using REST catalog", zap.String("base_url", a.cfg.Catalog.BaseURL))
		c, err := rest.New(rest.Config{BaseURL: a.cfg.Catalog.BaseURL, Timeout: a.cfg.Catalog.Timeout}, nil, a.logger)
		if err != nil {
			return nil, fmt.Errorf("init rest catalog: %w", err)
		}
		return c, nil
	case config.KindBlob:
		store, err := a.buildBlobStore(ctx)
		if err != nil {
			return nil, err
		}
		c, err := blob.New(store, ids, clock)
		if err != nil {
			return nil, fmt.Errorf("init blob catalog: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown catalog kind: %s", a.cfg.Catalog.Kind)
	}
}

func (a *App) buildBlobStore(ctx context.Context) (domain.BlobStore, error) {
	switch a.cfg.Storage.Kind {
	case config.KindMemory:
		a.logger.Info("using in-memory blob store; catalog documents are discarded on exit")
		return storagememory.NewBlobStore(), nil
	case config.KindLocal:
		a.logger.Info("using local blob store", zap.String("base_dir", a.cfg.Storage.BaseDir))
		s, err := local.New(local.Config{BaseDir: a.cfg.Storage.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("init local blob store: %w", err)
		}
		return s, nil
	case config.KindGCS:
		a.logger.Info("using GCS blob store", zap.String("bucket", a.cfg.Storage.GCSBucket))
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.onClose(func(context.Context) error { return client.Close() })
		s, err := gcs.New(client, gcs.Config{Bucket: a.cfg.Storage.GCSBucket, Prefix: a.cfg.Storage.Prefix})
		if err != nil {
			return nil, fmt.Errorf("init gcs blob store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage kind: %s", a.cfg.Storage.Kind)
	}
}

func (a *App) buildProgress(ctx context.Context) (*progress.Tracker, error) {
	var store progress.Store
	switch a.cfg.Progress.Kind {
	case config.KindMemory:
	case config.KindFile:
		s, err := progressfile.New(a.cfg.Progress.Path)
		if err != nil {
			return nil, fmt.Errorf("init file progress store: %w", err)
		}
		store = s
	case config.KindPostgres:
		a.logger.Info("connecting to PostgreSQL progress store")
		s, err := progresspg.New(ctx, progresspg.Config{DSN: a.cfg.Progress.DSN, Table: a.cfg.Progress.Table})
		if err != nil {
			return nil, fmt.Errorf("init postgres progress store: %w", err)
		}
		a.onClose(func(context.Context) error { s.Close(); return nil })
		store = s
	default:
		return nil, fmt.Errorf("unknown progress kind: %s", a.cfg.Progress.Kind)
	}

	tracker := progress.NewTracker(a.registry.Names(), store, a.logger)
	if err := tracker.Restore(ctx); err != nil {
		return nil, err
	}
	return tracker, nil
}

func (a *App) buildPublisher(ctx context.Context) (domain.Publisher, error) {
	if !a.cfg.PubSub.Enabled() {
		return publishermemory.New(), nil
	}
	a.logger.Info("connecting to GCP Pub/Sub", zap.String("topic", a.cfg.PubSub.Topic))
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	a.onClose(func(context.Context) error { return client.Close() })
	pub := publisherpubsub.New(client)
	a.onClose(func(context.Context) error { pub.Stop(); return nil })
	return pub, nil
}
