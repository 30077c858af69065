// Package rest is a JSON-over-HTTP client for the remote catalog service.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/judge-sync/internal/domain"
)

const maxErrorBody = 4 << 10

// Config holds the client settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client implements domain.Catalog against the catalog REST API.
type Client struct {
	base   string
	http   *http.Client
	logger *zap.Logger
}

// New validates cfg and builds a Client. httpClient may be nil.
func New(cfg Config, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("catalog base url is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("parse catalog base url: %w", err)
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{base: base, http: httpClient, logger: logger.Named("catalog")}, nil
}

type userResponse struct {
	RootFolderID string `json:"rootFolderId"`
}

type idResponse struct {
	ID string `json:"id"`
}

// ResolveRootFolder reads the root folder of a catalog user.
func (c *Client) ResolveRootFolder(ctx context.Context, namespace string) (domain.FolderID, error) {
	var out userResponse
	status, err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(namespace), nil, &out)
	if err != nil {
		return "", fmt.Errorf("resolve root folder of %s: %w", namespace, err)
	}
	if out.RootFolderID == "" {
		return "", &domain.RemoteError{Code: status, Message: "response has no rootFolderId"}
	}
	return domain.FolderID(out.RootFolderID), nil
}

// CreateFolder creates a subfolder of parent.
func (c *Client) CreateFolder(ctx context.Context, parent domain.FolderID, name string) (domain.FolderID, error) {
	var out idResponse
	body := map[string]string{"name": name}
	status, err := c.do(ctx, http.MethodPost, "/folders/"+url.PathEscape(string(parent))+"/folders", body, &out)
	if err != nil {
		return "", fmt.Errorf("create folder %q: %w", name, err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("create folder %q: %w", name, missingID(status))
	}
	return domain.FolderID(out.ID), nil
}

// CreateProblem uploads a problem owned by namespace.
func (c *Client) CreateProblem(ctx context.Context, namespace string, problem domain.Problem) (domain.ProblemID, error) {
	var out idResponse
	status, err := c.do(ctx, http.MethodPost, "/users/"+url.PathEscape(namespace)+"/problems", problem, &out)
	if err != nil {
		return "", fmt.Errorf("create problem %q: %w", problem.Name, err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("create problem %q: %w", problem.Name, missingID(status))
	}
	return domain.ProblemID(out.ID), nil
}

// LinkProblemToFolder attaches an existing problem to a folder.
func (c *Client) LinkProblemToFolder(ctx context.Context, folder domain.FolderID, problem domain.ProblemID) error {
	body := map[string]string{"problemId": string(problem)}
	if _, err := c.do(ctx, http.MethodPatch, "/folders/"+url.PathEscape(string(folder))+"/problems", body, nil); err != nil {
		return fmt.Errorf("link problem %s to folder %s: %w", problem, folder, err)
	}
	return nil
}

func missingID(status int) error {
	return &domain.RemoteError{Code: status, Message: "response has no id"}
}

// do sends one JSON request and decodes a 2xx body into out. It returns the
// response status whenever a response arrived.
func (c *Client) do(ctx context.Context, method, path string, in, out any) (int, error) {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, domain.IOErrorf("%s %s: %w", method, path, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("close response body", zap.Error(cerr))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, &domain.RemoteError{Code: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, &domain.RemoteError{Code: resp.StatusCode, Message: "decode response: " + err.Error()}
	}
	return resp.StatusCode, nil
}
