// Package syncer implements the sync run of one provider: fetch what changed
// since the last watermark, then publish it to the catalog in three
// barrier-separated phases (folders, problems, links) and commit the
// watermark.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/judge-sync/internal/domain"
	"github.com/JakeFAU/judge-sync/internal/events"
	"github.com/JakeFAU/judge-sync/internal/metrics"
	"github.com/JakeFAU/judge-sync/internal/provider"
	"github.com/JakeFAU/judge-sync/internal/scatter"
)

// Status is the outcome of a run.
type Status string

// Run outcomes.
const (
	StatusCompleted    Status = "completed"
	StatusNotSupported Status = "not_supported"
	StatusFailed       Status = "failed"
)

// Config tunes a run.
type Config struct {
	// Namespace owns the created problems. Empty uses the provider name.
	Namespace string `mapstructure:"namespace"`
	// Limit caps fetched problems; domain.NoLimit for none.
	Limit int `mapstructure:"limit"`
	// PhaseConcurrency bounds in-flight catalog calls per phase.
	PhaseConcurrency int `mapstructure:"phase_concurrency"`
}

// Providers resolves a provider by name.
type Providers interface {
	Get(name string) (domain.Provider, error)
}

// Watermarks reads and commits provider progress.
type Watermarks interface {
	Get(provider string) (time.Time, bool)
	Commit(ctx context.Context, provider string, syncStartedAt time.Time) error
}

// PhaseReport counts the outcomes of one phase.
type PhaseReport struct {
	OK      int `json:"ok"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Report summarizes a run.
type Report struct {
	RunID     string      `json:"run_id"`
	Provider  string      `json:"provider"`
	Status    Status      `json:"status"`
	Begin     time.Time   `json:"begin"`
	StartedAt time.Time   `json:"started_at"`
	Fetched   int         `json:"fetched"`
	Unique    int         `json:"unique"`
	Folders   PhaseReport `json:"folders"`
	Problems  PhaseReport `json:"problems"`
	Links     PhaseReport `json:"links"`
	Committed bool        `json:"committed"`
}

// Orchestrator runs syncs. Runs of the same provider are serialized; runs of
// different providers proceed in parallel.
type Orchestrator struct {
	providers Providers
	catalog   domain.Catalog
	progress  Watermarks
	clock     domain.Clock
	ids       domain.IDGenerator
	emitter   events.Emitter
	cfg       Config
	logger    *zap.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New builds an Orchestrator. emitter may be nil.
func New(
	providers Providers,
	catalog domain.Catalog,
	progress Watermarks,
	clock domain.Clock,
	ids domain.IDGenerator,
	emitter events.Emitter,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if emitter == nil {
		emitter = events.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PhaseConcurrency <= 0 {
		cfg.PhaseConcurrency = 8
	}
	return &Orchestrator{
		providers: providers,
		catalog:   catalog,
		progress:  progress,
		clock:     clock,
		ids:       ids,
		emitter:   emitter,
		cfg:       cfg,
		logger:    logger.Named("syncer"),
		locks:     make(map[string]*sync.Mutex),
	}
}

// Sync runs one provider to completion. A nil error with StatusNotSupported
// means the provider cannot list changes; nothing was committed.
func (o *Orchestrator) Sync(ctx context.Context, name string) (Report, error) {
	p, err := o.providers.Get(name)
	if err != nil {
		return Report{Provider: name, Status: StatusFailed}, fmt.Errorf("sync %s: %w", name, err)
	}
	name = p.Name()
	lock := o.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	runID, err := o.ids.NewID()
	if err != nil {
		return Report{Provider: name, Status: StatusFailed}, fmt.Errorf("sync %s: run id: %w", name, err)
	}
	r := &run{
		o:      o,
		p:      p,
		logger: o.logger.With(zap.String("provider", name), zap.String("run_id", runID)),
		report: Report{RunID: runID, Provider: name, StartedAt: o.clock.Now()},
	}
	r.report.Begin, _ = o.progress.Get(name)
	return r.execute(ctx)
}

func (o *Orchestrator) lockFor(name string) *sync.Mutex {
	o.locksMu.Lock()
	defer o.locksMu.Unlock()
	l, ok := o.locks[name]
	if !ok {
		l = &sync.Mutex{}
		o.locks[name] = l
	}
	return l
}

func (o *Orchestrator) namespace(providerName string) string {
	if o.cfg.Namespace != "" {
		return o.cfg.Namespace
	}
	return providerName
}

type run struct {
	o      *Orchestrator
	p      domain.Provider
	logger *zap.Logger
	report Report
}

func (r *run) emit(evt events.Event) {
	evt.RunID = r.report.RunID
	evt.Provider = r.report.Provider
	evt.TS = r.o.clock.Now()
	r.o.emitter.Emit(evt)
}

func (r *run) phaseDone(phase string, pr PhaseReport, started time.Time) {
	metrics.ObservePhase(r.report.Provider, phase, pr.OK, pr.Failed)
	r.logger.Info("phase done",
		zap.String("phase", phase),
		zap.Int("ok", pr.OK),
		zap.Int("failed", pr.Failed),
		zap.Int("skipped", pr.Skipped),
	)
	r.emit(events.Event{
		Stage:   events.StagePhaseDone,
		Phase:   phase,
		OK:      pr.OK,
		Failed:  pr.Failed,
		Skipped: pr.Skipped,
		Dur:     time.Since(started),
	})
}

func (r *run) fail(phase string, err error) (Report, error) {
	r.report.Status = StatusFailed
	metrics.ObserveSync(r.report.Provider, string(StatusFailed))
	r.logger.Error("sync failed, progress not committed", zap.String("phase", phase), zap.Error(err))
	r.emit(events.Event{Stage: events.StageSyncError, Phase: phase, Note: err.Error()})
	return r.report, fmt.Errorf("sync %s: %w", r.report.Provider, err)
}

func (r *run) execute(ctx context.Context) (Report, error) {
	name := r.report.Provider
	r.logger.Info("sync started", zap.Time("begin", r.report.Begin), zap.Time("end", r.report.StartedAt))
	r.emit(events.Event{Stage: events.StageSyncStart})

	fetchStarted := time.Now()
	problems, err := provider.FetchChanged(ctx, r.p, r.report.Begin, r.report.StartedAt, r.o.cfg.Limit, r.logger)
	if errors.Is(err, domain.ErrOperationNotSupported) {
		r.report.Status = StatusNotSupported
		metrics.ObserveSync(name, string(StatusNotSupported))
		r.logger.Info("provider does not support incremental listing", zap.Error(err))
		r.emit(events.Event{Stage: events.StageSyncDone, Note: string(StatusNotSupported)})
		return r.report, nil
	}
	if err != nil {
		return r.fail(events.PhaseFetch, err)
	}
	r.report.Fetched = len(problems)
	r.phaseDone(events.PhaseFetch, PhaseReport{OK: len(problems)}, fetchStarted)

	ns := r.o.namespace(name)
	root, err := r.o.catalog.ResolveRootFolder(ctx, ns)
	metrics.ObserveCatalogCall("resolve_root", err == nil)
	if err != nil {
		return r.fail(events.PhaseRoot, fmt.Errorf("resolve root folder of %s: %w", ns, err))
	}

	// Once publishing starts the phases run to completion and the watermark
	// only moves past problems that were actually attempted.
	publishCtx := context.WithoutCancel(ctx)
	folders := r.createFolders(publishCtx, root, problems)
	ids := r.createProblems(publishCtx, ns, problems)
	r.linkProblems(publishCtx, root, problems, folders, ids)

	if err := r.o.progress.Commit(publishCtx, name, r.report.StartedAt); err != nil {
		r.logger.Warn("progress committed in memory but not persisted", zap.Error(err))
	}
	r.report.Committed = true
	r.report.Status = StatusCompleted
	metrics.ObserveSync(name, string(StatusCompleted))
	r.logger.Info("sync done",
		zap.Int("fetched", r.report.Fetched),
		zap.Int("unique", r.report.Unique),
		zap.Duration("dur", time.Since(fetchStarted)),
	)
	r.emit(events.Event{Stage: events.StageSyncDone, Note: string(StatusCompleted), Dur: time.Since(fetchStarted)})
	return r.report, nil
}

func contestOf(p domain.Problem) string {
	return strings.TrimSpace(p.Contest)
}

// createFolders is phase A: one folder per distinct contest.
func (r *run) createFolders(ctx context.Context, root domain.FolderID, problems []domain.Problem) map[string]domain.FolderID {
	started := time.Now()
	var contests []string
	for _, p := range problems {
		if c := contestOf(p); c != "" {
			contests = append(contests, c)
		}
	}
	out := scatter.Gather(ctx, r.o.cfg.PhaseConcurrency, contests,
		func(ctx context.Context, contest string) (domain.FolderID, error) {
			id, err := r.o.catalog.CreateFolder(ctx, root, contest)
			metrics.ObserveCatalogCall("create_folder", err == nil)
			return id, err
		})
	for _, contest := range sortedKeys(out.Failures) {
		r.logger.Warn("folder creation failed",
			zap.String("phase", events.PhaseFolders),
			zap.String("contest", contest),
			zap.Error(out.Failures[contest]),
		)
	}
	r.report.Folders = PhaseReport{OK: out.OK(), Failed: out.Failed()}
	r.phaseDone(events.PhaseFolders, r.report.Folders, started)
	return out.Values
}

// createProblems is phase B: one catalog problem per distinct record.
func (r *run) createProblems(ctx context.Context, ns string, problems []domain.Problem) map[string]domain.ProblemID {
	started := time.Now()
	byKey := make(map[string]domain.Problem, len(problems))
	keys := make([]string, 0, len(problems))
	for _, p := range problems {
		k := p.Key()
		if _, ok := byKey[k]; ok {
			continue
		}
		byKey[k] = p
		keys = append(keys, k)
	}
	r.report.Unique = len(keys)

	out := scatter.Gather(ctx, r.o.cfg.PhaseConcurrency, keys,
		func(ctx context.Context, key string) (domain.ProblemID, error) {
			id, err := r.o.catalog.CreateProblem(ctx, ns, byKey[key])
			metrics.ObserveCatalogCall("create_problem", err == nil)
			return id, err
		})
	for _, key := range keys {
		if err, failed := out.Failures[key]; failed {
			r.logger.Warn("problem creation failed",
				zap.String("phase", events.PhaseProblems),
				zap.String("record", byKey[key].Name),
				zap.Error(err),
			)
		}
	}
	r.report.Problems = PhaseReport{OK: out.OK(), Failed: out.Failed()}
	r.phaseDone(events.PhaseProblems, r.report.Problems, started)
	return out.Values
}

type linkTarget struct {
	folder  domain.FolderID
	problem domain.ProblemID
}

// linkProblems is phase C: one link per occurrence, into the contest folder
// or the root when the record has no contest.
func (r *run) linkProblems(
	ctx context.Context,
	root domain.FolderID,
	problems []domain.Problem,
	folders map[string]domain.FolderID,
	ids map[string]domain.ProblemID,
) {
	started := time.Now()
	targets := make(map[int]linkTarget, len(problems))
	indexes := make([]int, 0, len(problems))
	skipped := 0
	for i, p := range problems {
		problemID, ok := ids[p.Key()]
		if !ok {
			skipped++
			r.logger.Warn("problem was not created, cannot link",
				zap.String("phase", events.PhaseLinks),
				zap.String("record", p.Name),
			)
			continue
		}
		folder := root
		if c := contestOf(p); c != "" {
			f, ok := folders[c]
			if !ok {
				skipped++
				r.logger.Warn("folder was not created, cannot link",
					zap.String("phase", events.PhaseLinks),
					zap.String("contest", c),
					zap.String("record", p.Name),
				)
				continue
			}
			folder = f
		}
		targets[i] = linkTarget{folder: folder, problem: problemID}
		indexes = append(indexes, i)
	}

	out := scatter.Gather(ctx, r.o.cfg.PhaseConcurrency, indexes,
		func(ctx context.Context, i int) (struct{}, error) {
			t := targets[i]
			err := r.o.catalog.LinkProblemToFolder(ctx, t.folder, t.problem)
			metrics.ObserveCatalogCall("link_problem", err == nil)
			return struct{}{}, err
		})
	for _, i := range indexes {
		if err, failed := out.Failures[i]; failed {
			r.logger.Warn("link failed",
				zap.String("phase", events.PhaseLinks),
				zap.String("record", problems[i].Name),
				zap.String("folder", string(targets[i].folder)),
				zap.Error(err),
			)
		}
	}
	r.report.Links = PhaseReport{OK: out.OK(), Failed: out.Failed(), Skipped: skipped}
	r.phaseDone(events.PhaseLinks, r.report.Links, started)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
