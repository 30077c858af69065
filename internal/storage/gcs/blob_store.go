// Package gcs stores catalog documents in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"cloud.google.com/go/storage"
)

// Config names the bucket and an optional prefix every object is placed
// under.
type Config struct {
	Bucket string
	Prefix string
}

// BlobStore implements domain.BlobStore on a single bucket.
type BlobStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// New binds a BlobStore to cfg.Bucket. The client stays owned by the caller.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	switch {
	case client == nil:
		return nil, errors.New("gcs: nil storage client")
	case strings.TrimSpace(cfg.Bucket) == "":
		return nil, errors.New("gcs: bucket is required")
	}
	return &BlobStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// ObjectName maps a catalog path to its object name in the bucket.
func (s *BlobStore) ObjectName(p string) string {
	p = strings.TrimLeft(p, "/")
	if s.prefix != "" {
		p = path.Join(s.prefix, p)
	}
	return p
}

// PutObject replaces the object at p with data and returns its gs:// URI.
// Catalog documents are rewritten on every sync, so caching is disabled.
func (s *BlobStore) PutObject(ctx context.Context, p, contentType string, data []byte) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", errors.New("gcs: object path is required")
	}
	object := s.ObjectName(p)

	w := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "no-cache"
	_, writeErr := w.Write(data)
	closeErr := w.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		return "", fmt.Errorf("upload %s: %w", object, err)
	}
	return "gs://" + s.bucket + "/" + object, nil
}
