// Package store persists JSON documents addressed by slash-separated paths
// of the form "<collection>/<key>".
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when no document exists at a path.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidPath is returned for paths that are not "<collection>/<key>".
	ErrInvalidPath = errors.New("invalid document path")
)

// Document is one stored record.
type Document struct {
	Path       string
	Collection string
	Key        string
	Body       json.RawMessage
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Decode unmarshals the document body into dst.
func (d Document) Decode(dst any) error {
	if err := json.Unmarshal(d.Body, dst); err != nil {
		return fmt.Errorf("decoding %s: %w", d.Path, err)
	}
	return nil
}

// Documents is a path-addressed JSON document store. Implementations are
// safe for concurrent use.
type Documents interface {
	// Set writes v at path, replacing any previous document.
	Set(ctx context.Context, path string, v any) error

	// Get decodes the document at path into dst.
	Get(ctx context.Context, path string, dst any) error

	// Add stores v under a fresh key in collection and returns the key.
	Add(ctx context.Context, collection string, v any) (string, error)

	// List returns every document in collection, oldest first.
	List(ctx context.Context, collection string) ([]Document, error)
}

// Join builds a document path.
func Join(collection, key string) string {
	return collection + "/" + key
}

// Split breaks a path into its collection and key.
func Split(path string) (collection, key string, err error) {
	collection, key, ok := strings.Cut(path, "/")
	if !ok || collection == "" || key == "" || strings.Contains(key, "/") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return collection, key, nil
}
