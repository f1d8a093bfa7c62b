package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddNode_IsIdempotent(t *testing.T) {
	t.Parallel()

	g := New()
	g.AddNode("a")
	g.AddNode("a")

	order, err := g.Sort()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, order)
}

func TestAddEdge_Validation(t *testing.T) {
	t.Parallel()

	g := New()
	g.AddNode("a")
	g.AddNode("b")

	t.Run("valid edge", func(t *testing.T) {
		require.NoError(t, g.AddEdge("a", "b"))

		deps, err := g.Dependencies("b")
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, deps)
	})

	t.Run("self reference", func(t *testing.T) {
		err := g.AddEdge("a", "a")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "self-referential")
	})

	t.Run("missing source", func(t *testing.T) {
		err := g.AddEdge("ghost", "b")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "source node not found")
	})

	t.Run("missing destination", func(t *testing.T) {
		err := g.AddEdge("a", "ghost")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "destination node not found")
	})
}

func TestDetectCycles(t *testing.T) {
	t.Parallel()

	t.Run("acyclic chain passes", func(t *testing.T) {
		g := New()
		g.AddNode("a")
		g.AddNode("b")
		g.AddNode("c")
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("b", "c"))

		assert.NoError(t, g.DetectCycles())
	})

	t.Run("two-node cycle fails", func(t *testing.T) {
		g := New()
		g.AddNode("a")
		g.AddNode("b")
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("b", "a"))

		err := g.DetectCycles()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cycle detected")
	})
}

func TestSort(t *testing.T) {
	t.Parallel()

	t.Run("no edges preserves declaration order", func(t *testing.T) {
		g := New()
		g.AddNode("fetcher")
		g.AddNode("processor")
		g.AddNode("analyzer")

		order, err := g.Sort()
		require.NoError(t, err)
		assert.Equal(t, []string{"fetcher", "processor", "analyzer"}, order)
	})

	t.Run("dependencies come first", func(t *testing.T) {
		g := New()
		g.AddNode("analyzer")
		g.AddNode("processor")
		g.AddNode("fetcher")
		require.NoError(t, g.AddEdge("fetcher", "processor"))
		require.NoError(t, g.AddEdge("processor", "analyzer"))

		order, err := g.Sort()
		require.NoError(t, err)
		assert.Equal(t, []string{"fetcher", "processor", "analyzer"}, order)
	})

	t.Run("diamond resolves ties by declaration order", func(t *testing.T) {
		g := New()
		for _, id := range []string{"root", "left", "right", "sink"} {
			g.AddNode(id)
		}
		require.NoError(t, g.AddEdge("root", "left"))
		require.NoError(t, g.AddEdge("root", "right"))
		require.NoError(t, g.AddEdge("left", "sink"))
		require.NoError(t, g.AddEdge("right", "sink"))

		order, err := g.Sort()
		require.NoError(t, err)
		assert.Equal(t, []string{"root", "left", "right", "sink"}, order)
	})

	t.Run("cycle is an error", func(t *testing.T) {
		g := New()
		g.AddNode("a")
		g.AddNode("b")
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("b", "a"))

		_, err := g.Sort()
		require.Error(t, err)
	})
}
