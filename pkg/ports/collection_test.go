package ports

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLookupAndMatches(t *testing.T) {
	doc := Document{
		ID:         "x",
		Kind:       "model_run",
		Properties: map[string]any{"name": "run"},
		Fields: map[string]any{
			"experiment_id": "e1",
			"state":         map[string]any{"name": "IDLE"},
			"count":         float64(3),
		},
	}

	v, ok := Lookup(doc, "fields.state.name")
	assert.True(t, ok)
	assert.Equal(t, "IDLE", v)

	_, ok = Lookup(doc, "fields.missing")
	assert.False(t, ok)
	_, ok = Lookup(doc, "unknown.path")
	assert.False(t, ok)

	assert.True(t, Matches(doc, map[string]string{"fields.experiment_id": "e1", "kind": "model_run"}))
	assert.True(t, Matches(doc, map[string]string{"fields.count": "3"}))
	assert.False(t, Matches(doc, map[string]string{"properties.name": "other"}))
	assert.True(t, Matches(doc, nil))
}

func TestSortDocuments(t *testing.T) {
	t0 := time.Unix(100, 0)
	docs := []Document{
		{ID: "b", CreatedAt: t0},
		{ID: "c", CreatedAt: t0.Add(time.Second)},
		{ID: "a", CreatedAt: t0},
	}
	SortDocuments(docs)
	assert.Equal(t, []string{"c", "a", "b"}, ids(docs))
}

func TestWindow(t *testing.T) {
	cases := []struct{ n, offset, limit, start, end int }{
		{10, 0, 3, 0, 3},
		{10, 8, 3, 8, 10},
		{10, 10, 3, 10, 10},
		{10, 12, 3, 10, 10},
		{10, 2, -1, 2, 10},
		{0, 0, 5, 0, 0},
	}
	for _, tc := range cases {
		start, end := Window(tc.n, tc.offset, tc.limit)
		assert.Equal(t, tc.start, start)
		assert.Equal(t, tc.end, end)
	}
}
