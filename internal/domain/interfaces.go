package domain

import (
	"context"
	"time"
)

// Provider pulls problems from one external judge.
type Provider interface {
	// Name is the unique registry key of the provider.
	Name() string
	// ListChangedIdentifiers returns identifiers of problems changed in
	// [begin, end), at most limit of them unless limit is NoLimit.
	ListChangedIdentifiers(ctx context.Context, begin, end time.Time, limit int) ([]string, error)
	// FetchByIdentifier resolves one identifier into a full problem.
	FetchByIdentifier(ctx context.Context, id string) (Problem, error)
}

// BulkProvider is implemented by providers that fetch changed problems in a
// way other than listing and resolving identifiers one by one.
type BulkProvider interface {
	Provider
	FetchChanged(ctx context.Context, begin, end time.Time, limit int) ([]Problem, error)
}

// Catalog is the remote store problems are published to.
type Catalog interface {
	ResolveRootFolder(ctx context.Context, namespace string) (FolderID, error)
	CreateFolder(ctx context.Context, parent FolderID, name string) (FolderID, error)
	CreateProblem(ctx context.Context, namespace string, problem Problem) (ProblemID, error)
	LinkProblemToFolder(ctx context.Context, folder FolderID, problem ProblemID) error
}

// Fetcher retrieves the raw bytes behind a target, usually a URL.
type Fetcher interface {
	Fetch(ctx context.Context, target string) ([]byte, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Publisher pushes notifications to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}
