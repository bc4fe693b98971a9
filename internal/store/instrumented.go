package store

import (
	"context"
	"time"
)

// Observer receives the outcome of every store operation.
type Observer interface {
	ObserveStore(op string, duration time.Duration, err error)
}

type instrumented struct {
	inner    Documents
	observer Observer
}

// Instrument reports each operation on inner to observer. A nil observer
// returns inner unchanged.
func Instrument(inner Documents, observer Observer) Documents {
	if observer == nil {
		return inner
	}
	return &instrumented{inner: inner, observer: observer}
}

func (s *instrumented) Set(ctx context.Context, path string, v any) error {
	start := time.Now()
	err := s.inner.Set(ctx, path, v)
	s.observer.ObserveStore("set", time.Since(start), err)
	return err
}

func (s *instrumented) Get(ctx context.Context, path string, dst any) error {
	start := time.Now()
	err := s.inner.Get(ctx, path, dst)
	s.observer.ObserveStore("get", time.Since(start), err)
	return err
}

func (s *instrumented) Add(ctx context.Context, collection string, v any) (string, error) {
	start := time.Now()
	key, err := s.inner.Add(ctx, collection, v)
	s.observer.ObserveStore("add", time.Since(start), err)
	return key, err
}

func (s *instrumented) List(ctx context.Context, collection string) ([]Document, error) {
	start := time.Now()
	docs, err := s.inner.List(ctx, collection)
	s.observer.ObserveStore("list", time.Since(start), err)
	return docs, err
}
