// Package memory implements an in-process catalog that hands out incrementing
// ids and records every call it receives.
package memory

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/JakeFAU/judge-sync/internal/domain"
)

// Op names a catalog operation.
type Op string

// Catalog operations.
const (
	OpResolveRoot   Op = "resolve_root"
	OpCreateFolder  Op = "create_folder"
	OpCreateProblem Op = "create_problem"
	OpLinkProblem   Op = "link_problem"
)

// Folder is a recorded CreateFolder call.
type Folder struct {
	ID     domain.FolderID
	Parent domain.FolderID
	Name   string
}

// CreatedProblem is a recorded CreateProblem call.
type CreatedProblem struct {
	ID        domain.ProblemID
	Namespace string
	Problem   domain.Problem
}

// Link is a recorded LinkProblemToFolder call.
type Link struct {
	Folder  domain.FolderID
	Problem domain.ProblemID
}

// FailFunc decides whether a call fails. args are the string forms of the
// call arguments: namespace, parent and name, namespace and problem name, or
// folder and problem ids.
type FailFunc func(op Op, args ...string) error

// Catalog is safe for concurrent use.
type Catalog struct {
	mu       sync.Mutex
	next     int
	roots    map[string]domain.FolderID
	folders  []Folder
	problems []CreatedProblem
	links    []Link
	fail     FailFunc
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{roots: make(map[string]domain.FolderID)}
}

// FailWith installs a failure hook. Pass nil to remove it.
func (c *Catalog) FailWith(fn FailFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail = fn
}

// FailOn makes every op call fail when one of its arguments equals match.
func FailOn(target Op, match string, err error) FailFunc {
	if err == nil {
		err = &domain.RemoteError{Code: 500, Message: "injected failure"}
	}
	return func(op Op, args ...string) error {
		if op != target {
			return nil
		}
		for _, a := range args {
			if a == match {
				return err
			}
		}
		return nil
	}
}

func (c *Catalog) check(op Op, args ...string) error {
	if c.fail == nil {
		return nil
	}
	return c.fail(op, args...)
}

func (c *Catalog) nextID() string {
	c.next++
	return strconv.Itoa(c.next)
}

// ResolveRootFolder returns the same root for repeated calls with one
// namespace.
func (c *Catalog) ResolveRootFolder(_ context.Context, namespace string) (domain.FolderID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(OpResolveRoot, namespace); err != nil {
		return "", err
	}
	if id, ok := c.roots[namespace]; ok {
		return id, nil
	}
	id := domain.FolderID("root-" + c.nextID())
	c.roots[namespace] = id
	return id, nil
}

// CreateFolder always creates a new folder, even for a repeated name.
func (c *Catalog) CreateFolder(_ context.Context, parent domain.FolderID, name string) (domain.FolderID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if name == "" {
		return "", &domain.RemoteError{Code: 400, Message: "folder name is required"}
	}
	if err := c.check(OpCreateFolder, string(parent), name); err != nil {
		return "", err
	}
	id := domain.FolderID(c.nextID())
	c.folders = append(c.folders, Folder{ID: id, Parent: parent, Name: name})
	return id, nil
}

// CreateProblem stores the problem under a new id.
func (c *Catalog) CreateProblem(_ context.Context, namespace string, problem domain.Problem) (domain.ProblemID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(OpCreateProblem, namespace, problem.Name); err != nil {
		return "", err
	}
	id := domain.ProblemID(c.nextID())
	c.problems = append(c.problems, CreatedProblem{ID: id, Namespace: namespace, Problem: problem})
	return id, nil
}

// LinkProblemToFolder records the link.
func (c *Catalog) LinkProblemToFolder(_ context.Context, folder domain.FolderID, problem domain.ProblemID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if folder == "" || problem == "" {
		return errors.New("folder and problem ids are required")
	}
	if err := c.check(OpLinkProblem, string(folder), string(problem)); err != nil {
		return err
	}
	c.links = append(c.links, Link{Folder: folder, Problem: problem})
	return nil
}

// Folders returns the recorded folders.
func (c *Catalog) Folders() []Folder {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Folder(nil), c.folders...)
}

// Problems returns the recorded problems.
func (c *Catalog) Problems() []CreatedProblem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]CreatedProblem(nil), c.problems...)
}

// Links returns the recorded links.
func (c *Catalog) Links() []Link {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Link(nil), c.links...)
}

// LinksTo returns the recorded links into folder.
func (c *Catalog) LinksTo(folder domain.FolderID) []Link {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Link
	for _, l := range c.links {
		if l.Folder == folder {
			out = append(out, l)
		}
	}
	return out
}
