package storage

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestStore_PutGet(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, []string{"transcript", "w1"}, doc{Name: "a", Count: 2}))

	var got doc
	require.NoError(t, s.Get(ctx, []string{"transcript", "w1"}, &got))
	assert.Equal(t, doc{Name: "a", Count: 2}, got)
}

func TestStore_GetMissing(t *testing.T) {
	s := New(t.TempDir())

	var got doc
	err := s.Get(context.Background(), []string{"nope"}, &got)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_PutReplaces(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, []string{"k"}, doc{Count: 1}))
	require.NoError(t, s.Put(ctx, []string{"k"}, doc{Count: 2}))

	var got doc
	require.NoError(t, s.Get(ctx, []string{"k"}, &got))
	assert.Equal(t, 2, got.Count)
}

func TestStore_DeleteIsIdempotent(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, []string{"k"}, doc{}))
	require.NoError(t, s.Delete(ctx, []string{"k"}))
	require.NoError(t, s.Delete(ctx, []string{"k"}))
	assert.False(t, s.Exists(ctx, []string{"k"}))
}

func TestStore_ListAndScan(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, []string{"logs", "s1"}, doc{Name: "one"}))
	require.NoError(t, s.Put(ctx, []string{"logs", "s2"}, doc{Name: "two"}))

	items, err := s.List(ctx, []string{"logs"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"s1", "s2"}, items)

	seen := map[string]string{}
	err = s.Scan(ctx, []string{"logs"}, func(key string, data json.RawMessage) error {
		var d doc
		require.NoError(t, json.Unmarshal(data, &d))
		seen[key] = d.Name
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"s1": "one", "s2": "two"}, seen)
}

func TestStore_ScanEmptyPrefix(t *testing.T) {
	s := New(t.TempDir())
	err := s.Scan(context.Background(), []string{"missing"}, func(string, json.RawMessage) error {
		t.Fatal("callback should not run")
		return nil
	})
	assert.NoError(t, err)
}

func TestStore_ConcurrentPuts(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			assert.NoError(t, s.Put(ctx, []string{"k"}, doc{Count: n}))
		}(i)
	}
	wg.Wait()

	var got doc
	require.NoError(t, s.Get(ctx, []string{"k"}, &got))
	assert.GreaterOrEqual(t, got.Count, 0)
	assert.Less(t, got.Count, 20)
}
