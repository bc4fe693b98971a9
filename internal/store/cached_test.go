package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore counts how often each operation reaches it.
type countingStore struct {
	Documents
	gets, sets int
	failSet    error
}

func (c *countingStore) Get(ctx context.Context, path string, dst any) error {
	c.gets++
	return c.Documents.Get(ctx, path, dst)
}

func (c *countingStore) Set(ctx context.Context, path string, v any) error {
	c.sets++
	if c.failSet != nil {
		return c.failSet
	}
	return c.Documents.Set(ctx, path, v)
}

func TestCached_ReadThrough(t *testing.T) {
	inner := &countingStore{Documents: newTestStore(t)}
	require.NoError(t, inner.Documents.Set(context.Background(), "plans/a", note{Text: "a"}))

	c, err := NewCached(inner, 8)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		var got note
		require.NoError(t, c.Get(context.Background(), "plans/a", &got))
		assert.Equal(t, "a", got.Text)
	}
	assert.Equal(t, 1, inner.gets)
}

func TestCached_WriteThroughInvalidatesStaleValue(t *testing.T) {
	inner := &countingStore{Documents: newTestStore(t)}
	c, err := NewCached(inner, 8)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "plans/a", note{Text: "v1"}))
	require.NoError(t, c.Set(ctx, "plans/a", note{Text: "v2"}))

	var got note
	require.NoError(t, c.Get(ctx, "plans/a", &got))
	assert.Equal(t, "v2", got.Text)
	assert.Equal(t, 0, inner.gets, "written value is served from cache")
}

func TestCached_FailedWriteEvicts(t *testing.T) {
	inner := &countingStore{Documents: newTestStore(t)}
	c, err := NewCached(inner, 8)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "plans/a", note{Text: "v1"}))
	inner.failSet = errors.New("boom")
	require.Error(t, c.Set(ctx, "plans/a", note{Text: "v2"}))
	assert.Equal(t, 0, c.Len())

	var got note
	require.NoError(t, c.Get(ctx, "plans/a", &got))
	assert.Equal(t, "v1", got.Text)
	assert.Equal(t, 1, inner.gets)
}

func TestCached_MissIsNotCached(t *testing.T) {
	inner := &countingStore{Documents: newTestStore(t)}
	c, err := NewCached(inner, 8)
	require.NoError(t, err)

	var got note
	assert.ErrorIs(t, c.Get(context.Background(), "plans/nope", &got), ErrNotFound)
	assert.ErrorIs(t, c.Get(context.Background(), "plans/nope", &got), ErrNotFound)
	assert.Equal(t, 2, inner.gets)
}

func TestCached_AddPopulatesCache(t *testing.T) {
	inner := &countingStore{Documents: newTestStore(t)}
	c, err := NewCached(inner, 8)
	require.NoError(t, err)
	ctx := context.Background()

	key, err := c.Add(ctx, "feedback", note{Text: "hi"})
	require.NoError(t, err)

	var got note
	require.NoError(t, c.Get(ctx, Join("feedback", key), &got))
	assert.Equal(t, "hi", got.Text)
	assert.Equal(t, 0, inner.gets)
}

type recordingObserver struct {
	ops  []string
	errs int
}

func (r *recordingObserver) ObserveStore(op string, _ time.Duration, err error) {
	r.ops = append(r.ops, op)
	if err != nil {
		r.errs++
	}
}

func TestInstrument_ReportsEveryOperation(t *testing.T) {
	obs := &recordingObserver{}
	s := Instrument(newTestStore(t), obs)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "plans/a", note{}))
	var got note
	require.NoError(t, s.Get(ctx, "plans/a", &got))
	_ = s.Get(ctx, "plans/missing", &got)
	_, err := s.Add(ctx, "feedback", note{})
	require.NoError(t, err)
	_, err = s.List(ctx, "plans")
	require.NoError(t, err)

	assert.Equal(t, []string{"set", "get", "get", "add", "list"}, obs.ops)
	assert.Equal(t, 1, obs.errs)
}

func TestInstrument_NilObserver(t *testing.T) {
	inner := newTestStore(t)
	assert.Same(t, inner, Instrument(inner, nil))
}
