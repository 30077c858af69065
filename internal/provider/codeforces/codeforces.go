// Package codeforces implements the Codeforces judge provider on top of the
// public API (listing) and the problem pages (details).
package codeforces

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/judge-sync/internal/domain"
)

// Name is the registry key of the provider.
const Name = "Codeforces"

const (
	// DefaultBaseURL is the public Codeforces site.
	DefaultBaseURL = "https://codeforces.com"
	// DefaultAttempts and DefaultDelay form the fetch policy for this judge.
	DefaultAttempts = 3
	DefaultDelay    = 5 * time.Second

	contestTypeCF = "CF"
)

// Config controls the provider.
type Config struct {
	BaseURL string
}

// Provider lists recently started Codeforces rounds and scrapes their problems.
type Provider struct {
	baseURL string
	fetcher domain.Fetcher
	logger  *zap.Logger
}

// New builds a Provider. fetcher is expected to retry on its own.
func New(cfg Config, fetcher domain.Fetcher, logger *zap.Logger) *Provider {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{baseURL: base, fetcher: fetcher, logger: logger}
}

// Name implements domain.Provider.
func (*Provider) Name() string { return Name }

type apiEnvelope struct {
	Status  string          `json:"status"`
	Comment string          `json:"comment"`
	Result  json.RawMessage `json:"result"`
}

type apiContest struct {
	ID               int64  `json:"id"`
	Type             string `json:"type"`
	StartTimeSeconds int64  `json:"startTimeSeconds"`
}

type apiProblemset struct {
	Problems []struct {
		ContestID int64  `json:"contestId"`
		Index     string `json:"index"`
	} `json:"problems"`
}

// ListChangedIdentifiers returns problem URLs of CF rounds that started
// strictly between begin and end, capped at limit.
func (p *Provider) ListChangedIdentifiers(
	ctx context.Context,
	begin, end time.Time,
	limit int,
) ([]string, error) {
	var contests []apiContest
	if err := p.callAPI(ctx, "/api/contest.list?gym=false", &contests); err != nil {
		return nil, err
	}
	started := make(map[int64]time.Time, len(contests))
	for _, c := range contests {
		if c.Type != contestTypeCF {
			continue
		}
		started[c.ID] = time.Unix(c.StartTimeSeconds, 0).UTC()
	}
	p.logger.Info("found contests", zap.String("provider", Name), zap.Int("count", len(started)))

	var set apiProblemset
	if err := p.callAPI(ctx, "/api/problemset.problems", &set); err != nil {
		return nil, err
	}

	var urls []string
	for _, prob := range set.Problems {
		startedAt, ok := started[prob.ContestID]
		if !ok {
			p.logger.Debug("source contest not found",
				zap.String("provider", Name),
				zap.Int64("contest_id", prob.ContestID),
			)
			continue
		}
		if !startedAt.After(begin) || !startedAt.Before(end) {
			continue
		}
		if limit > domain.NoLimit && len(urls) == limit {
			break
		}
		urls = append(urls, p.problemURL(prob.ContestID, prob.Index))
	}
	p.logger.Info("listed new problems", zap.String("provider", Name), zap.Int("count", len(urls)))
	return urls, nil
}

func (p *Provider) problemURL(contestID int64, index string) string {
	return fmt.Sprintf("%s/contest/%d/problem/%s", p.baseURL, contestID, index)
}

func (p *Provider) callAPI(ctx context.Context, path string, out any) error {
	target := p.baseURL + path
	body, err := p.fetcher.Fetch(ctx, target)
	if err != nil {
		return fmt.Errorf("read %s: %w", target, err)
	}
	var env apiEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return domain.IOErrorf("decode %s: %w", target, err)
	}
	if env.Status != "OK" {
		return domain.IOErrorf("codeforces api %s: %s %s", target, env.Status, env.Comment)
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return domain.IOErrorf("decode result of %s: %w", target, err)
	}
	return nil
}

// FetchByIdentifier downloads and parses one problem page.
func (p *Provider) FetchByIdentifier(ctx context.Context, id string) (domain.Problem, error) {
	body, err := p.fetcher.Fetch(ctx, id)
	if err != nil {
		return domain.Problem{}, fmt.Errorf("read codeforces problem %s: %w", id, err)
	}
	problem, err := ParseProblemPage(body)
	if err != nil {
		return domain.Problem{}, fmt.Errorf("parse %s: %w", id, err)
	}
	p.logger.Info("got problem", zap.String("provider", Name), zap.String("name", problem.Name))
	return problem, nil
}

// ParseProblemPage extracts a problem from a Codeforces problem page.
func ParseProblemPage(page []byte) (domain.Problem, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return domain.Problem{}, domain.UnsupportedFormatf("html: %v", err)
	}
	statement := doc.Find(".problem-statement").First()
	if statement.Length() == 0 {
		return domain.Problem{}, domain.UnsupportedFormatf("problem statement block not found")
	}

	title := strings.TrimSpace(statement.Find(".header .title").First().Text())
	if title == "" {
		return domain.Problem{}, domain.UnsupportedFormatf("problem title not found")
	}
	// "E. Partition Game" -> "Partition Game"
	if _, rest, ok := strings.Cut(title, " "); ok {
		title = strings.TrimSpace(rest)
	}

	legend, err := statement.ChildrenFiltered("div").Eq(1).Html()
	if err != nil || strings.TrimSpace(legend) == "" {
		return domain.Problem{}, domain.UnsupportedFormatf("problem legend not found")
	}

	inputFormat, err := sectionBody(statement, ".input-specification")
	if err != nil {
		return domain.Problem{}, err
	}
	outputFormat, err := sectionBody(statement, ".output-specification")
	if err != nil {
		return domain.Problem{}, err
	}

	inputs := preTexts(doc.Find(".sample-test .input pre"))
	outputs := preTexts(doc.Find(".sample-test .output pre"))
	if len(inputs) != len(outputs) {
		return domain.Problem{}, domain.UnsupportedFormatf("%d sample inputs but %d outputs", len(inputs), len(outputs))
	}
	examples := make([]domain.Example, 0, len(inputs))
	for i := range inputs {
		examples = append(examples, domain.Example{Input: inputs[i], Output: outputs[i]})
	}

	contest := strings.TrimSpace(doc.Find("table.rtable th a").First().Text())
	if contest == "" {
		return domain.Problem{}, domain.UnsupportedFormatf("contest name not found")
	}

	return domain.Problem{
		Name:         title,
		Statement:    strings.TrimSpace(legend),
		InputFormat:  inputFormat,
		OutputFormat: outputFormat,
		Examples:     examples,
		Contest:      contest,
	}, nil
}

func sectionBody(statement *goquery.Selection, selector string) (string, error) {
	section := statement.Find(selector).First()
	if section.Length() == 0 {
		return "", domain.UnsupportedFormatf("%s not found", selector)
	}
	section = section.Clone()
	section.Find(".section-title").Remove()
	html, err := section.Html()
	if err != nil {
		return "", domain.UnsupportedFormatf("%s: %v", selector, err)
	}
	return strings.TrimSpace(html), nil
}

// preTexts reads sample blocks. Newer pages wrap each line in its own div.
func preTexts(sel *goquery.Selection) []string {
	out := make([]string, 0, sel.Length())
	sel.Each(func(_ int, pre *goquery.Selection) {
		lines := pre.Find("div.test-example-line")
		if lines.Length() == 0 {
			out = append(out, strings.TrimSpace(pre.Text()))
			return
		}
		parts := make([]string, 0, lines.Length())
		lines.Each(func(_ int, line *goquery.Selection) {
			parts = append(parts, line.Text())
		})
		out = append(out, strings.Join(parts, "\n"))
	})
	return out
}
