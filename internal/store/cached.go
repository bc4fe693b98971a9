package store

import (
	"context"
	"encoding/json"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is used when NewCached gets a non-positive size.
const DefaultCacheSize = 256

// Cached is a read-through, write-through LRU cache of document bodies in
// front of another Documents implementation. List always reaches the inner
// store.
type Cached struct {
	inner Documents
	cache *lru.Cache[string, json.RawMessage]
}

// NewCached wraps inner with an LRU holding up to size documents.
func NewCached(inner Documents, size int) (*Cached, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, json.RawMessage](size)
	if err != nil {
		return nil, fmt.Errorf("creating document cache: %w", err)
	}
	return &Cached{inner: inner, cache: cache}, nil
}

func (c *Cached) Set(ctx context.Context, path string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := c.inner.Set(ctx, path, json.RawMessage(body)); err != nil {
		c.cache.Remove(path)
		return err
	}
	c.cache.Add(path, body)
	return nil
}

func (c *Cached) Get(ctx context.Context, path string, dst any) error {
	body, ok := c.cache.Get(path)
	if !ok {
		var raw json.RawMessage
		if err := c.inner.Get(ctx, path, &raw); err != nil {
			return err
		}
		body = raw
		c.cache.Add(path, body)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

func (c *Cached) Add(ctx context.Context, collection string, v any) (string, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding %s document: %w", collection, err)
	}
	key, err := c.inner.Add(ctx, collection, json.RawMessage(body))
	if err != nil {
		return "", err
	}
	c.cache.Add(Join(collection, key), body)
	return key, nil
}

func (c *Cached) List(ctx context.Context, collection string) ([]Document, error) {
	return c.inner.List(ctx, collection)
}

// Len reports the number of cached documents.
func (c *Cached) Len() int {
	return c.cache.Len()
}
