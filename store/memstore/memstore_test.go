package memstore_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/syssam/grafo/store"
	"github.com/syssam/grafo/store/memstore"
)

func TestNodeLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := memstore.New()

	h, err := st.CreateNode(ctx, "series", store.Props{"title": "Flying Circus"})
	require.NoError(t, err)
	require.False(t, h.IsZero())
	assert.Equal(t, 1, st.NodeCount())

	t.Run("Fetch", func(t *testing.T) {
		label, props, err := st.FetchNode(ctx, h)
		require.NoError(t, err)
		assert.Equal(t, "series", label)
		assert.Equal(t, "Flying Circus", props["title"])
	})

	t.Run("FetchIsACopy", func(t *testing.T) {
		_, props, err := st.FetchNode(ctx, h)
		require.NoError(t, err)
		props["title"] = "mutated"
		_, again, err := st.FetchNode(ctx, h)
		require.NoError(t, err)
		assert.Equal(t, "Flying Circus", again["title"])
	})

	t.Run("Update", func(t *testing.T) {
		err := st.UpdateNode(ctx, h, store.Props{"title": "Fawlty Towers", "rating": 9.0})
		require.NoError(t, err)
		_, props, err := st.FetchNode(ctx, h)
		require.NoError(t, err)
		assert.Equal(t, "Fawlty Towers", props["title"])
		assert.Equal(t, 9.0, props["rating"])
	})

	t.Run("UpdateNilRemoves", func(t *testing.T) {
		require.NoError(t, st.UpdateNode(ctx, h, store.Props{"rating": nil}))
		_, props, err := st.FetchNode(ctx, h)
		require.NoError(t, err)
		_, ok := props["rating"]
		assert.False(t, ok)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, st.DeleteNode(ctx, h))
		assert.Equal(t, 0, st.NodeCount())
		_, _, err := st.FetchNode(ctx, h)
		assert.True(t, store.IsNotFound(err))
	})

	t.Run("MissingHandles", func(t *testing.T) {
		assert.True(t, store.IsNotFound(st.UpdateNode(ctx, "n999", nil)))
		assert.True(t, store.IsNotFound(st.DeleteNode(ctx, "n999")))
		_, err := st.FetchRels(ctx, "n999", "", store.Both)
		assert.True(t, store.IsNotFound(err))
	})
}

func TestRelLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := memstore.New()

	series, err := st.CreateNode(ctx, "series", nil)
	require.NoError(t, err)
	var eps []store.Handle
	for i := 0; i < 3; i++ {
		h, err := st.CreateNode(ctx, "episode", nil)
		require.NoError(t, err)
		eps = append(eps, h)
	}

	// Create out of order; FetchRels must come back sorted by ordinal.
	r2, err := st.CreateRel(ctx, "episodes", series, eps[2], 2, nil)
	require.NoError(t, err)
	r0, err := st.CreateRel(ctx, "episodes", series, eps[0], 0, nil)
	require.NoError(t, err)
	_, err = st.CreateRel(ctx, "episodes", series, eps[1], 1, nil)
	require.NoError(t, err)

	t.Run("OrderedByOrd", func(t *testing.T) {
		rels, err := st.FetchRels(ctx, series, "episodes", store.Outgoing)
		require.NoError(t, err)
		require.Len(t, rels, 3)
		for i, r := range rels {
			assert.Equal(t, i, r.Ord)
			assert.Equal(t, eps[i], r.To)
		}
	})

	t.Run("Direction", func(t *testing.T) {
		rels, err := st.FetchRels(ctx, eps[0], "episodes", store.Incoming)
		require.NoError(t, err)
		require.Len(t, rels, 1)
		assert.Equal(t, series, rels[0].From)

		rels, err = st.FetchRels(ctx, eps[0], "episodes", store.Outgoing)
		require.NoError(t, err)
		assert.Empty(t, rels)

		rels, err = st.FetchRels(ctx, eps[0], "", store.Both)
		require.NoError(t, err)
		assert.Len(t, rels, 1)
	})

	t.Run("TypeFilter", func(t *testing.T) {
		rels, err := st.FetchRels(ctx, series, "watchers", store.Both)
		require.NoError(t, err)
		assert.Empty(t, rels)
	})

	t.Run("ReferentialDelete", func(t *testing.T) {
		err := st.DeleteNode(ctx, eps[2])
		require.Error(t, err)
		assert.True(t, store.IsReferential(err))
		var rerr *store.ReferentialError
		require.True(t, errors.As(err, &rerr))
		assert.Equal(t, eps[2], rerr.Handle())
		assert.Equal(t, 1, rerr.Rels())

		require.NoError(t, st.DeleteRel(ctx, r2))
		require.NoError(t, st.DeleteNode(ctx, eps[2]))
	})

	t.Run("DeleteRelTwice", func(t *testing.T) {
		require.NoError(t, st.DeleteRel(ctx, r0))
		assert.True(t, store.IsNotFound(st.DeleteRel(ctx, r0)))
	})

	t.Run("DanglingEndpoint", func(t *testing.T) {
		_, err := st.CreateRel(ctx, "episodes", series, "n999", 0, nil)
		assert.True(t, store.IsNotFound(err))
	})
}

func TestNodesByLabel(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := memstore.New()

	var want []store.Handle
	for i := 0; i < 3; i++ {
		h, err := st.CreateNode(ctx, "episode", store.Props{"n": int64(i)})
		require.NoError(t, err)
		want = append(want, h)
		_, err = st.CreateNode(ctx, "series", nil)
		require.NoError(t, err)
	}

	got, err := st.NodesByLabel(ctx, "episode")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	none, err := st.NodesByLabel(ctx, "movie")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestHook(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := memstore.New()

	boom := errors.New("boom")
	st.SetHook(func(op string) error {
		if op == "CreateNode" {
			return boom
		}
		return nil
	})
	_, err := st.CreateNode(ctx, "series", nil)
	assert.ErrorIs(t, err, boom)

	st.SetHook(nil)
	_, err = st.CreateNode(ctx, "series", nil)
	assert.NoError(t, err)
}

func TestSnapshotRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := memstore.New()

	series, err := st.CreateNode(ctx, "series", store.Props{"title": "Flying Circus"})
	require.NoError(t, err)
	ep, err := st.CreateNode(ctx, "episode", store.Props{"name": "Spam"})
	require.NoError(t, err)
	rel, err := st.CreateRel(ctx, "episodes", series, ep, 0, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, st.Snapshot(&buf))

	restored := memstore.New()
	require.NoError(t, restored.Restore(&buf))
	assert.Equal(t, 2, restored.NodeCount())
	assert.Equal(t, 1, restored.RelCount())

	label, props, err := restored.FetchNode(ctx, series)
	require.NoError(t, err)
	assert.Equal(t, "series", label)
	assert.Equal(t, "Flying Circus", props["title"])

	rels, err := restored.FetchRels(ctx, series, "episodes", store.Outgoing)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, rel, rels[0].Handle)
	assert.Equal(t, ep, rels[0].To)

	// Sequences continue past the snapshot: new handles never collide
	// with restored ones.
	h, err := restored.CreateNode(ctx, "series", nil)
	require.NoError(t, err)
	assert.NotEqual(t, series, h)
	assert.NotEqual(t, ep, h)

	t.Run("RestoreGarbage", func(t *testing.T) {
		assert.Error(t, memstore.New().Restore(bytes.NewReader([]byte("not msgpack"))))
	})
}

func TestConcurrentUse(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := memstore.New()

	hub, err := st.CreateNode(ctx, "series", nil)
	require.NoError(t, err)

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		i := i
		g.Go(func() error {
			for j := 0; j < 25; j++ {
				h, err := st.CreateNode(ctx, "episode", store.Props{"n": fmt.Sprintf("%d-%d", i, j)})
				if err != nil {
					return err
				}
				if _, err := st.CreateRel(ctx, "episodes", hub, h, 0, nil); err != nil {
					return err
				}
				if _, err := st.FetchRels(ctx, hub, "episodes", store.Outgoing); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, 1+8*25, st.NodeCount())
	assert.Equal(t, 8*25, st.RelCount())
}
