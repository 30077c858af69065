package domain

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/judge-sync/internal/hash/sha256"
)

// Example is one sample test attached to a problem statement.
type Example struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// Problem describes one problem pulled from a provider. Values are treated as
// immutable once a provider returns them.
type Problem struct {
	Name         string    `json:"name"`
	Statement    string    `json:"statement"`
	InputFormat  string    `json:"inputFormat"`
	OutputFormat string    `json:"outputFormat"`
	Examples     []Example `json:"tests"`
	// Contest groups the problem into a folder. Empty means no grouping.
	Contest string `json:"-"`
}

// Key returns the identity of the problem. Contest is not part of it, so the
// same problem reached through two contests yields the same key.
func (p Problem) Key() string {
	fields := make([]string, 0, 4+2*len(p.Examples))
	fields = append(fields, p.Name, p.Statement, p.InputFormat, p.OutputFormat)
	for _, ex := range p.Examples {
		fields = append(fields, ex.Input, ex.Output)
	}
	return sha256.Fingerprint(fields...)
}

// Equal reports whether two problems are the same entity.
func (p Problem) Equal(other Problem) bool {
	if p.Name != other.Name ||
		p.Statement != other.Statement ||
		p.InputFormat != other.InputFormat ||
		p.OutputFormat != other.OutputFormat ||
		len(p.Examples) != len(other.Examples) {
		return false
	}
	for i := range p.Examples {
		if p.Examples[i] != other.Examples[i] {
			return false
		}
	}
	return true
}

// HasContest reports whether the problem declares a grouping contest.
func (p Problem) HasContest() bool {
	return strings.TrimSpace(p.Contest) != ""
}

// String renders a human readable summary, mostly for the shell.
func (p Problem) String() string {
	var b strings.Builder
	b.WriteString("Name: " + p.Name + "\n")
	b.WriteString("Statement: " + p.Statement + "\n")
	b.WriteString("Input: " + p.InputFormat + "\n")
	b.WriteString("Output: " + p.OutputFormat + "\n")
	b.WriteString("Tests: " + strconv.Itoa(len(p.Examples)))
	return b.String()
}

// FolderID is an opaque catalog folder handle.
type FolderID string

// ProblemID is an opaque catalog problem handle.
type ProblemID string

// NoLimit disables the result cap of a listing call.
const NoLimit = 0

// ProviderState is the synchronization watermark of one provider.
type ProviderState struct {
	Provider     string    `json:"provider"`
	LastSyncedAt time.Time `json:"last_synced_at"`
	EverSynced   bool      `json:"ever_synced"`
}

// Task is a unit of work executed by the dispatcher.
type Task func(ctx context.Context)
