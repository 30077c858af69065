// Package dummy provides an offline provider used for smoke tests and demos.
package dummy

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/judge-sync/internal/domain"
)

// Name is the registry key of the provider.
const Name = "Dummy"

// Provider returns the same four identifiers on every listing. Each resolves
// to the classic A + B problem with its own sample test, so the four records
// are distinct entities.
type Provider struct{}

// New returns a Provider.
func New() *Provider {
	return &Provider{}
}

// Name implements domain.Provider.
func (*Provider) Name() string { return Name }

// ListChangedIdentifiers implements domain.Provider.
func (*Provider) ListChangedIdentifiers(_ context.Context, _, _ time.Time, limit int) ([]string, error) {
	ids := []string{"url1", "url2", "url3", "url4"}
	if limit > domain.NoLimit && limit < len(ids) {
		ids = ids[:limit]
	}
	return ids, nil
}

// FetchByIdentifier implements domain.Provider. Identifiers look like "urlN".
func (*Provider) FetchByIdentifier(_ context.Context, id string) (domain.Problem, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(id, "url"))
	if err != nil || !strings.HasPrefix(id, "url") {
		return domain.Problem{}, domain.UnsupportedFormatf("dummy identifier %q", id)
	}
	return domain.Problem{
		Name:         "A + B Problem",
		Statement:    "Print sum of two numbers",
		InputFormat:  "Two integers a and b",
		OutputFormat: "One integer a + b",
		Examples: []domain.Example{{
			Input:  strconv.Itoa(n) + " " + strconv.Itoa(n),
			Output: strconv.Itoa(2 * n),
		}},
	}, nil
}
