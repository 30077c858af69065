// Package provider holds the default fetch composition shared by every judge
// provider and the registry the sync engine looks providers up in.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/judge-sync/internal/domain"
)

// FetchChanged returns the problems changed in [begin, end). Providers that
// implement domain.BulkProvider are asked directly; otherwise identifiers are
// listed and resolved one at a time. An identifier that fails with
// domain.ErrUnsupportedFormat is logged and skipped; any other failure aborts
// the batch.
func FetchChanged(
	ctx context.Context,
	p domain.Provider,
	begin, end time.Time,
	limit int,
	logger *zap.Logger,
) ([]domain.Problem, error) {
	if bulk, ok := p.(domain.BulkProvider); ok {
		problems, err := bulk.FetchChanged(ctx, begin, end, limit)
		if err != nil {
			return nil, fmt.Errorf("%s fetch changed: %w", p.Name(), err)
		}
		return problems, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ids, err := p.ListChangedIdentifiers(ctx, begin, end, limit)
	if err != nil {
		return nil, fmt.Errorf("%s list changed: %w", p.Name(), err)
	}

	problems := make([]domain.Problem, 0, len(ids))
	for _, id := range ids {
		problem, err := p.FetchByIdentifier(ctx, id)
		switch {
		case err == nil:
			problems = append(problems, problem)
		case errors.Is(err, domain.ErrUnsupportedFormat):
			logger.Warn("skipping problem with unsupported format",
				zap.String("provider", p.Name()),
				zap.String("identifier", id),
				zap.Error(err),
			)
		default:
			return nil, fmt.Errorf("%s fetch %s: %w", p.Name(), id, err)
		}
	}
	return problems, nil
}

// Registry maps provider names to providers.
type Registry struct {
	providers map[string]domain.Provider
	order     []string
}

// NewRegistry builds a registry. Names must be unique ignoring case.
func NewRegistry(providers ...domain.Provider) (*Registry, error) {
	r := &Registry{providers: make(map[string]domain.Provider, len(providers))}
	for _, p := range providers {
		if p == nil {
			continue
		}
		name := p.Name()
		if name == "" {
			return nil, errors.New("provider name is required")
		}
		key := strings.ToLower(name)
		if _, dup := r.providers[key]; dup {
			return nil, fmt.Errorf("duplicate provider %q", name)
		}
		r.providers[key] = p
		r.order = append(r.order, name)
	}
	sort.Strings(r.order)
	return r, nil
}

// Get returns the named provider or domain.ErrUnknownProvider. Lookup ignores
// case and surrounding space; callers use p.Name() as the canonical name.
func (r *Registry) Get(name string) (domain.Provider, error) {
	p, ok := r.providers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownProvider, name)
	}
	return p, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}
