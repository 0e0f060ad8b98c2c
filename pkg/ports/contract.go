package ports

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/scoserv/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunCollectionContract runs a suite of tests to verify that a Collection
// implementation adheres to the defined interface contract. newCollection must
// return an empty collection on every call.
func RunCollectionContract(t *testing.T, newCollection func(t *testing.T) Collection) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	doc := func(id string, offset time.Duration, name string) Document {
		return Document{
			ID:         id,
			Kind:       "subject",
			CreatedAt:  base.Add(offset),
			Active:     true,
			Properties: map[string]any{"name": name},
		}
	}

	t.Run("Insert and Get", func(t *testing.T) {
		c := newCollection(t)
		in := doc("a", 0, "alpha")
		in.Properties["filename"] = "a.png"
		in.Fields = map[string]any{
			"experiment_id": "e1",
			"images":        []any{map[string]any{"folder": "/", "name": "a.png"}},
			"score":         1.5,
		}
		require.NoError(t, c.Insert(ctx, in))

		out, err := c.Get(ctx, "a", false)
		require.NoError(t, err)
		assert.Equal(t, "a", out.ID)
		assert.Equal(t, "subject", out.Kind)
		assert.True(t, out.Active)
		assert.True(t, in.CreatedAt.Equal(out.CreatedAt), "created_at: want %v, got %v", in.CreatedAt, out.CreatedAt)
		assert.Equal(t, "alpha", out.Properties["name"])
		assert.Equal(t, "a.png", out.Properties["filename"])
		assert.Equal(t, "e1", out.Fields["experiment_id"])
		assert.EqualValues(t, 1.5, out.Fields["score"])
		assert.Len(t, out.Fields["images"], 1)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		c := newCollection(t)
		_, err := c.Get(ctx, "missing", false)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = c.Get(ctx, "missing", true)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Deactivate", func(t *testing.T) {
		c := newCollection(t)
		require.NoError(t, c.Insert(ctx, doc("a", 0, "alpha")))

		ok, err := c.Deactivate(ctx, "a")
		require.NoError(t, err)
		assert.True(t, ok)

		_, err = c.Get(ctx, "a", false)
		assert.ErrorIs(t, err, domain.ErrNotFound, "inactive documents are hidden by default")

		out, err := c.Get(ctx, "a", true)
		require.NoError(t, err)
		assert.False(t, out.Active)
		assert.Equal(t, "alpha", out.Properties["name"], "soft delete retains the document")

		ok, err = c.Deactivate(ctx, "a")
		require.NoError(t, err)
		assert.False(t, ok, "second deactivate is a no-op")

		ok, err = c.Deactivate(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Replace", func(t *testing.T) {
		c := newCollection(t)
		require.NoError(t, c.Insert(ctx, doc("a", 0, "alpha")))

		updated := doc("a", 0, "renamed")
		updated.Fields = map[string]any{"state": "RUNNING"}
		ok, err := c.Replace(ctx, updated)
		require.NoError(t, err)
		assert.True(t, ok)

		out, err := c.Get(ctx, "a", false)
		require.NoError(t, err)
		assert.Equal(t, "renamed", out.Properties["name"])
		assert.Equal(t, "RUNNING", out.Fields["state"])

		ok, err = c.Replace(ctx, doc("missing", 0, "ghost"))
		require.NoError(t, err)
		assert.False(t, ok)
		_, err = c.Get(ctx, "missing", true)
		assert.ErrorIs(t, err, domain.ErrNotFound, "replace must not insert")
	})

	t.Run("Replace Inactive", func(t *testing.T) {
		c := newCollection(t)
		require.NoError(t, c.Insert(ctx, doc("a", 0, "alpha")))
		_, err := c.Deactivate(ctx, "a")
		require.NoError(t, err)

		resurrect := doc("a", 0, "zombie")
		ok, err := c.Replace(ctx, resurrect)
		require.NoError(t, err)
		assert.False(t, ok)

		out, err := c.Get(ctx, "a", true)
		require.NoError(t, err)
		assert.False(t, out.Active)
		assert.Equal(t, "alpha", out.Properties["name"])
	})

	t.Run("Find Order", func(t *testing.T) {
		c := newCollection(t)
		require.NoError(t, c.Insert(ctx, doc("old", 0, "old")))
		require.NoError(t, c.Insert(ctx, doc("tie-b", time.Minute, "tie")))
		require.NoError(t, c.Insert(ctx, doc("tie-a", time.Minute, "tie")))
		require.NoError(t, c.Insert(ctx, doc("new", 2*time.Minute, "new")))

		docs, total, err := c.Find(ctx, Query{Limit: -1})
		require.NoError(t, err)
		assert.Equal(t, 4, total)
		assert.Equal(t, []string{"new", "tie-a", "tie-b", "old"}, ids(docs))
	})

	t.Run("Find Pagination", func(t *testing.T) {
		c := newCollection(t)
		for i := 0; i < 7; i++ {
			require.NoError(t, c.Insert(ctx, doc(fmt.Sprintf("d%d", i), time.Duration(i)*time.Second, "n")))
		}
		_, err := c.Deactivate(ctx, "d6")
		require.NoError(t, err)

		cases := []struct{ offset, limit, want int }{
			{0, 10, 6},
			{0, 2, 2},
			{4, 2, 2},
			{5, 2, 1},
			{6, 2, 0},
			{9, 2, 0},
			{2, 0, 0},
			{1, -1, 5},
		}
		for _, tc := range cases {
			docs, total, err := c.Find(ctx, Query{Offset: tc.offset, Limit: tc.limit})
			require.NoError(t, err)
			assert.Equal(t, 6, total, "total independent of window (offset=%d limit=%d)", tc.offset, tc.limit)
			assert.Len(t, docs, tc.want, "offset=%d limit=%d", tc.offset, tc.limit)
		}

		docs, _, err := c.Find(ctx, Query{Offset: 1, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"d4", "d3"}, ids(docs))
	})

	t.Run("Find Filter", func(t *testing.T) {
		c := newCollection(t)
		for i, exp := range []string{"e1", "e2", "e1", "e1"} {
			d := doc(fmt.Sprintf("r%d", i), time.Duration(i)*time.Second, "run")
			d.Fields = map[string]any{"experiment_id": exp, "mirrored": i%2 == 0}
			require.NoError(t, c.Insert(ctx, d))
		}
		_, err := c.Deactivate(ctx, "r3")
		require.NoError(t, err)

		docs, total, err := c.Find(ctx, Query{Filter: map[string]string{"fields.experiment_id": "e1"}, Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Equal(t, []string{"r2"}, ids(docs))

		_, total, err = c.Find(ctx, Query{Filter: map[string]string{"properties.name": "nope"}, Limit: -1})
		require.NoError(t, err)
		assert.Equal(t, 0, total)

		docs, total, err = c.Find(ctx, Query{Filter: map[string]string{"fields.mirrored": "true"}, Limit: -1})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Equal(t, []string{"r2", "r0"}, ids(docs))

		docs, _, err = c.Find(ctx, Query{Filter: map[string]string{"fields.mirrored": "false", "fields.experiment_id": "e2"}, Limit: -1})
		require.NoError(t, err)
		assert.Equal(t, []string{"r1"}, ids(docs))
	})
}

func ids(docs []Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID)
	}
	return out
}
