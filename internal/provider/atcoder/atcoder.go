// Package atcoder implements the AtCoder provider. AtCoder has no listing
// support; problems can only be fetched one URL at a time.
package atcoder

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/judge-sync/internal/domain"
)

// Name is the registry key of the provider.
const Name = "AtCoder"

// Fetch policy for task pages.
const (
	DefaultAttempts = 5
	DefaultDelay    = 3 * time.Second
)

// Provider scrapes AtCoder task pages.
type Provider struct {
	fetcher domain.Fetcher
	logger  *zap.Logger
}

// New builds a Provider over a retrying fetcher.
func New(fetcher domain.Fetcher, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{fetcher: fetcher, logger: logger}
}

// Name implements domain.Provider.
func (*Provider) Name() string { return Name }

// ListChangedIdentifiers always fails with domain.ErrOperationNotSupported.
func (*Provider) ListChangedIdentifiers(context.Context, time.Time, time.Time, int) ([]string, error) {
	return nil, fmt.Errorf("%s listing: %w", Name, domain.ErrOperationNotSupported)
}

// FetchByIdentifier downloads and parses a task page such as
// https://atcoder.jp/contests/abc300/tasks/abc300_a.
func (p *Provider) FetchByIdentifier(ctx context.Context, id string) (domain.Problem, error) {
	body, err := p.fetcher.Fetch(ctx, id)
	if err != nil {
		return domain.Problem{}, fmt.Errorf("read atcoder task %s: %w", id, err)
	}
	problem, err := ParseTaskPage(body)
	if err != nil {
		return domain.Problem{}, fmt.Errorf("parse %s: %w", id, err)
	}
	p.logger.Info("got problem", zap.String("provider", Name), zap.String("name", problem.Name))
	return problem, nil
}

// ParseTaskPage extracts a problem from an AtCoder task page. Only the
// English half of the statement is read when both languages are present.
func ParseTaskPage(page []byte) (domain.Problem, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return domain.Problem{}, domain.UnsupportedFormatf("html: %v", err)
	}

	name := taskName(doc.Find("span.h2").First().Text())
	if name == "" {
		return domain.Problem{}, domain.UnsupportedFormatf("task title not found")
	}

	root := doc.Find("#task-statement .lang-en").First()
	if root.Length() == 0 {
		root = doc.Find("#task-statement").First()
	}
	if root.Length() == 0 {
		return domain.Problem{}, domain.UnsupportedFormatf("task statement not found")
	}

	var (
		statement, input, output string
		inputs, outputs          []string
	)
	root.Find("section").Each(func(_ int, s *goquery.Selection) {
		heading := strings.TrimSpace(s.ChildrenFiltered("h3").First().Text())
		switch {
		case heading == "Problem Statement":
			statement = paragraphs(s)
		case heading == "Input":
			input = paragraphs(s)
		case heading == "Output":
			output = paragraphs(s)
		case strings.HasPrefix(heading, "Sample Input"):
			inputs = append(inputs, strings.TrimSpace(s.Find("pre").First().Text()))
		case strings.HasPrefix(heading, "Sample Output"):
			outputs = append(outputs, strings.TrimSpace(s.Find("pre").First().Text()))
		}
	})
	if statement == "" {
		return domain.Problem{}, domain.UnsupportedFormatf("problem statement section not found")
	}
	if len(inputs) != len(outputs) {
		return domain.Problem{}, domain.UnsupportedFormatf("%d sample inputs but %d outputs", len(inputs), len(outputs))
	}
	examples := make([]domain.Example, 0, len(inputs))
	for i := range inputs {
		examples = append(examples, domain.Example{Input: inputs[i], Output: outputs[i]})
	}

	return domain.Problem{
		Name:         name,
		Statement:    statement,
		InputFormat:  input,
		OutputFormat: output,
		Examples:     examples,
	}, nil
}

// taskName turns "A - Jumping Frog Editorial" into "Jumping Frog".
func taskName(title string) string {
	fields := strings.Fields(title)
	if len(fields) < 3 {
		return ""
	}
	var name []string
	for _, f := range fields[2:] {
		if f == "Editorial" {
			break
		}
		name = append(name, f)
	}
	return strings.Join(name, " ")
}

func paragraphs(s *goquery.Selection) string {
	var parts []string
	s.Find("p").Each(func(_ int, p *goquery.Selection) {
		if html, err := p.Html(); err == nil {
			parts = append(parts, strings.TrimSpace(html))
		}
	})
	return strings.Join(parts, "\n")
}
