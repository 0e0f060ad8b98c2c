package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/scoserv/pkg/adapters/memory"
	"github.com/aretw0/scoserv/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCollection_Contract(t *testing.T) {
	ports.RunCollectionContract(t, func(t *testing.T) ports.Collection {
		return memory.NewCollection()
	})
}

func TestMemoryCollection_Isolation(t *testing.T) {
	ctx := context.Background()
	c := memory.NewCollection()

	doc := ports.Document{ID: "a", Kind: "subject", Active: true, Properties: map[string]any{"name": "a"}}
	require.NoError(t, c.Insert(ctx, doc))

	doc.Properties["name"] = "mutated"
	got, err := c.Get(ctx, "a", false)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Properties["name"], "insert must copy")

	got.Properties["name"] = "mutated"
	again, err := c.Get(ctx, "a", false)
	require.NoError(t, err)
	assert.Equal(t, "a", again.Properties["name"], "get must copy")
	assert.Equal(t, 1, c.Len())
}
