// Package storetest holds the behavioural contract shared by every
// docstore backend.
package storetest

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"marketplace_backend/internal/docstore"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type status string

type widget struct {
	ID       string   `json:"id"`
	Status   status   `json:"status"`
	Owner    *string  `json:"owner"`
	Count    int      `json:"count"`
	Tags     []string `json:"tags,omitempty"`
	Optional string   `json:"optional,omitempty"`
}

func strPtr(s string) *string { return &s }

// Factory returns a fresh store for one subtest.
type Factory func(t *testing.T) docstore.Store

// Run exercises the full docstore contract against a backend.
func Run(t *testing.T, newStore Factory) {
	t.Run("create and get", func(t *testing.T) { testCreateGet(t, newStore(t)) })
	t.Run("query filters", func(t *testing.T) { testQueryFilters(t, newStore(t)) })
	t.Run("query paging", func(t *testing.T) { testQueryPaging(t, newStore(t)) })
	t.Run("update and null patch", func(t *testing.T) { testUpdate(t, newStore(t)) })
	t.Run("compare and set", func(t *testing.T) { testUpdateIf(t, newStore(t)) })
	t.Run("concurrent compare and set has one winner", func(t *testing.T) { testConcurrentCAS(t, newStore(t)) })
	t.Run("increment", func(t *testing.T) { testIncrement(t, newStore(t)) })
	t.Run("delete", func(t *testing.T) { testDelete(t, newStore(t)) })
}

func collectionName() string {
	return "storetest_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func seed(t *testing.T, store docstore.Store, coll string, widgets ...widget) {
	t.Helper()
	for _, w := range widgets {
		require.NoError(t, store.Create(context.Background(), coll, w.ID, w))
	}
}

func ids(widgets []widget) []string {
	out := make([]string, len(widgets))
	for i, w := range widgets {
		out[i] = w.ID
	}
	return out
}

func testCreateGet(t *testing.T, store docstore.Store) {
	ctx := context.Background()
	coll := collectionName()
	seed(t, store, coll, widget{ID: "w1", Status: "draft", Owner: strPtr("alice"), Count: 2, Tags: []string{"a", "b"}})

	var got widget
	require.NoError(t, store.Get(ctx, coll, "w1", &got))
	assert.Equal(t, status("draft"), got.Status)
	assert.Equal(t, "alice", *got.Owner)
	assert.Equal(t, 2, got.Count)
	assert.Equal(t, []string{"a", "b"}, got.Tags)

	err := store.Create(ctx, coll, "w1", widget{ID: "w1"})
	assert.ErrorIs(t, err, docstore.ErrDuplicate)

	err = store.Get(ctx, coll, "missing", &got)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func testQueryFilters(t *testing.T, store docstore.Store) {
	ctx := context.Background()
	coll := collectionName()
	seed(t, store, coll,
		widget{ID: "w1", Status: "draft", Owner: strPtr("alice")},
		widget{ID: "w2", Status: "open", Owner: strPtr("bob")},
		widget{ID: "w3", Status: "open"},
		widget{ID: "w4", Status: "closed", Owner: strPtr("alice"), Optional: "x"},
	)

	cases := []struct {
		name   string
		filter docstore.Filter
		want   []string
	}{
		{name: "empty filter", filter: nil, want: []string{"w1", "w2", "w3", "w4"}},
		{name: "eq typed value", filter: docstore.Where(docstore.Eq("status", status("open"))), want: []string{"w2", "w3"}},
		{name: "eq nil matches null", filter: docstore.Where(docstore.Eq("owner", nil)), want: []string{"w3"}},
		{name: "eq nil matches missing", filter: docstore.Where(docstore.Eq("optional", nil)), want: []string{"w1", "w2", "w3"}},
		{name: "ne nil", filter: docstore.Where(docstore.Ne("owner", nil)), want: []string{"w1", "w2", "w4"}},
		{name: "ne value includes null", filter: docstore.Where(docstore.Ne("owner", "alice")), want: []string{"w2", "w3"}},
		{name: "in", filter: docstore.Where(docstore.In("status", "draft", "closed")), want: []string{"w1", "w4"}},
		{name: "conjunction", filter: docstore.Where(docstore.Eq("owner", "alice"), docstore.Ne("status", "draft")), want: []string{"w4"}},
		{name: "no match", filter: docstore.Where(docstore.Eq("status", "gone")), want: []string{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got []widget
			require.NoError(t, store.Query(ctx, coll, tc.filter, docstore.All, &got))
			assert.ElementsMatch(t, tc.want, ids(got))
		})
	}
}

func testQueryPaging(t *testing.T, store docstore.Store) {
	ctx := context.Background()
	coll := collectionName()
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		seed(t, store, coll, widget{ID: id, Status: "open"})
	}

	var all []widget
	require.NoError(t, store.Query(ctx, coll, nil, docstore.All, &all))
	require.Len(t, all, 5)

	var first, second []widget
	require.NoError(t, store.Query(ctx, coll, nil, docstore.Page{Limit: 2}, &first))
	require.NoError(t, store.Query(ctx, coll, nil, docstore.Page{Limit: 2, Skip: 2}, &second))
	assert.Equal(t, ids(all[:2]), ids(first))
	assert.Equal(t, ids(all[2:4]), ids(second))

	var tail []widget
	require.NoError(t, store.Query(ctx, coll, nil, docstore.Page{Skip: 10}, &tail))
	assert.Empty(t, tail)
}

func testUpdate(t *testing.T, store docstore.Store) {
	ctx := context.Background()
	coll := collectionName()
	seed(t, store, coll, widget{ID: "w1", Status: "draft", Owner: strPtr("alice"), Count: 1})

	ok, err := store.Update(ctx, coll, "w1", docstore.Patch{"status": status("open"), "owner": nil})
	require.NoError(t, err)
	assert.True(t, ok)

	var got widget
	require.NoError(t, store.Get(ctx, coll, "w1", &got))
	assert.Equal(t, status("open"), got.Status)
	assert.Nil(t, got.Owner)
	assert.Equal(t, 1, got.Count, "untouched fields survive a patch")

	var unowned []widget
	require.NoError(t, store.Query(ctx, coll, docstore.Where(docstore.Eq("owner", nil)), docstore.All, &unowned))
	assert.Equal(t, []string{"w1"}, ids(unowned))

	ok, err = store.Update(ctx, coll, "missing", docstore.Patch{"status": "open"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func testUpdateIf(t *testing.T, store docstore.Store) {
	ctx := context.Background()
	coll := collectionName()
	seed(t, store, coll, widget{ID: "w1", Status: "open"})

	ok, err := store.UpdateIf(ctx, coll, "w1", docstore.Where(docstore.Eq("status", "draft")), docstore.Patch{"status": "closed"})
	require.NoError(t, err)
	assert.False(t, ok, "stale expectation must not write")

	ok, err = store.UpdateIf(ctx, coll, "w1",
		docstore.Where(docstore.In("status", "open", "quoted"), docstore.Eq("owner", nil)),
		docstore.Patch{"status": "accepted", "owner": "bob"})
	require.NoError(t, err)
	assert.True(t, ok)

	var got widget
	require.NoError(t, store.Get(ctx, coll, "w1", &got))
	assert.Equal(t, status("accepted"), got.Status)
	assert.Equal(t, "bob", *got.Owner)

	ok, err = store.UpdateIf(ctx, coll, "missing", nil, docstore.Patch{"status": "x"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func testConcurrentCAS(t *testing.T, store docstore.Store) {
	ctx := context.Background()
	coll := collectionName()
	seed(t, store, coll, widget{ID: "w1", Status: "open"})

	const contenders = 8
	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := store.UpdateIf(ctx, coll, "w1",
				docstore.Where(docstore.Eq("status", "open")),
				docstore.Patch{"status": "accepted", "owner": uuid.NewString()})
			if err == nil && ok {
				atomic.AddInt32(&wins, 1)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}

func testIncrement(t *testing.T, store docstore.Store) {
	ctx := context.Background()
	coll := collectionName()
	seed(t, store, coll, widget{ID: "w1", Status: "open"})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Increment(ctx, coll, "w1", "views", 1)
		}()
	}
	wg.Wait()
	require.NoError(t, store.Increment(ctx, coll, "w1", "count", -1))

	var got struct {
		Views int `json:"views"`
		Count int `json:"count"`
	}
	require.NoError(t, store.Get(ctx, coll, "w1", &got))
	assert.Equal(t, 10, got.Views)
	assert.Equal(t, -1, got.Count)

	assert.ErrorIs(t, store.Increment(ctx, coll, "missing", "views", 1), docstore.ErrNotFound)
}

func testDelete(t *testing.T, store docstore.Store) {
	ctx := context.Background()
	coll := collectionName()
	seed(t, store, coll, widget{ID: "w1"}, widget{ID: "w2"})

	ok, err := store.Delete(ctx, coll, "w1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Delete(ctx, coll, "w1")
	require.NoError(t, err)
	assert.False(t, ok)

	var rest []widget
	require.NoError(t, store.Query(ctx, coll, nil, docstore.All, &rest))
	assert.Equal(t, []string{"w2"}, ids(rest))
}
