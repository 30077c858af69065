// Package blob implements an offline catalog that writes JSON documents to a
// blob store (a local directory or a GCS bucket). Folders are path prefixes
// below the namespace root.
package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/JakeFAU/judge-sync/internal/domain"
)

const contentType = "application/json"

// Catalog stores folders, problems and links as objects.
//
// Layout:
//
//	{ns}/folder.json
//	{ns}/folders/{id}/folder.json
//	{ns}/problems/{id}.json
//	{folder}/links/{problem}.json
type Catalog struct {
	store domain.BlobStore
	ids   domain.IDGenerator
	clock domain.Clock
}

// New builds a Catalog writing to store. ids names new folders and problems.
func New(store domain.BlobStore, ids domain.IDGenerator, clock domain.Clock) (*Catalog, error) {
	if store == nil {
		return nil, errors.New("blob store is required")
	}
	if ids == nil {
		return nil, errors.New("id generator is required")
	}
	if clock == nil {
		return nil, errors.New("clock is required")
	}
	return &Catalog{store: store, ids: ids, clock: clock}, nil
}

type folderDoc struct {
	ID        string    `json:"id"`
	Parent    string    `json:"parent,omitempty"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type problemDoc struct {
	ID        string         `json:"id"`
	Namespace string         `json:"namespace"`
	CreatedAt time.Time      `json:"createdAt"`
	Problem   domain.Problem `json:"problem"`
}

type linkDoc struct {
	Folder   string    `json:"folderId"`
	Problem  string    `json:"problemId"`
	LinkedAt time.Time `json:"linkedAt"`
}

// ResolveRootFolder writes the namespace marker and returns the namespace as
// the root folder id.
func (c *Catalog) ResolveRootFolder(ctx context.Context, namespace string) (domain.FolderID, error) {
	ns, err := cleanSegment(namespace)
	if err != nil {
		return "", err
	}
	doc := folderDoc{ID: ns, Name: namespace, CreatedAt: c.clock.Now()}
	if err := c.put(ctx, path.Join(ns, "folder.json"), doc); err != nil {
		return "", fmt.Errorf("resolve root folder of %s: %w", namespace, err)
	}
	return domain.FolderID(ns), nil
}

// CreateFolder makes a new folder prefix under parent.
func (c *Catalog) CreateFolder(ctx context.Context, parent domain.FolderID, name string) (domain.FolderID, error) {
	if strings.TrimSpace(name) == "" {
		return "", &domain.RemoteError{Code: 400, Message: "folder name is required"}
	}
	id, err := c.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("folder id: %w", err)
	}
	folder := path.Join(string(parent), "folders", id)
	doc := folderDoc{ID: folder, Parent: string(parent), Name: name, CreatedAt: c.clock.Now()}
	if err := c.put(ctx, path.Join(folder, "folder.json"), doc); err != nil {
		return "", fmt.Errorf("create folder %q: %w", name, err)
	}
	return domain.FolderID(folder), nil
}

// CreateProblem writes the problem document.
func (c *Catalog) CreateProblem(ctx context.Context, namespace string, problem domain.Problem) (domain.ProblemID, error) {
	ns, err := cleanSegment(namespace)
	if err != nil {
		return "", err
	}
	id, err := c.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("problem id: %w", err)
	}
	doc := problemDoc{ID: id, Namespace: ns, CreatedAt: c.clock.Now(), Problem: problem}
	if err := c.put(ctx, path.Join(ns, "problems", id+".json"), doc); err != nil {
		return "", fmt.Errorf("create problem %q: %w", problem.Name, err)
	}
	return domain.ProblemID(id), nil
}

// LinkProblemToFolder writes a link document into the folder prefix.
func (c *Catalog) LinkProblemToFolder(ctx context.Context, folder domain.FolderID, problem domain.ProblemID) error {
	if folder == "" || problem == "" {
		return &domain.RemoteError{Code: 400, Message: "folder and problem ids are required"}
	}
	doc := linkDoc{Folder: string(folder), Problem: string(problem), LinkedAt: c.clock.Now()}
	if err := c.put(ctx, path.Join(string(folder), "links", string(problem)+".json"), doc); err != nil {
		return fmt.Errorf("link problem %s to folder %s: %w", problem, folder, err)
	}
	return nil
}

func (c *Catalog) put(ctx context.Context, name string, doc any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if _, err := c.store.PutObject(ctx, name, contentType, data); err != nil {
		return domain.IOErrorf("put %s: %w", name, err)
	}
	return nil
}

func cleanSegment(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
		return "", &domain.RemoteError{Code: 400, Message: fmt.Sprintf("invalid namespace %q", s)}
	}
	return s, nil
}
