package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphaura/graphaura/internal/storage"
	"github.com/graphaura/graphaura/internal/storage/memory"
	"github.com/graphaura/graphaura/pkg/types"
)

func seedEntity(t *testing.T, store *memory.GraphStore, id, name string) {
	t.Helper()
	_, err := store.UpsertEntity(context.Background(), &types.Entity{
		ID:   id,
		Type: types.EntityPerson,
		Name: name,
	})
	require.NoError(t, err)
}

func seedEdge(t *testing.T, store *memory.GraphStore, source, target, relType string) {
	t.Helper()
	_, err := store.CreateRelationship(context.Background(), &types.Relationship{
		SourceID: source,
		TargetID: target,
		Type:     relType,
	})
	require.NoError(t, err)
}

// chainStore builds a -> b -> c -> d.
func chainStore(t *testing.T) *memory.GraphStore {
	store := memory.NewGraphStore()
	for _, id := range []string{"a", "b", "c", "d"} {
		seedEntity(t, store, id, id)
	}
	seedEdge(t, store, "a", "b", "KNOWS")
	seedEdge(t, store, "b", "c", "KNOWS")
	seedEdge(t, store, "c", "d", "KNOWS")
	return store
}

func nodeIDs(result *TraversalResult) []string {
	ids := make([]string, len(result.Nodes))
	for i, n := range result.Nodes {
		ids[i] = n.ID
	}
	return ids
}

func TestTraverseDepthBounds(t *testing.T) {
	store := chainStore(t)
	traversal := NewTraversal(store, store)
	ctx := context.Background()

	t.Run("DepthZeroReturnsStartOnly", func(t *testing.T) {
		result, err := traversal.Traverse(ctx, "a", 0, storage.DirectionBoth, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, nodeIDs(result))
		assert.Empty(t, result.Edges)
	})

	t.Run("DepthOne", func(t *testing.T) {
		result, err := traversal.Traverse(ctx, "a", 1, storage.DirectionBoth, "")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a", "b"}, nodeIDs(result))
		assert.Len(t, result.Edges, 1)
	})

	t.Run("DepthTwo", func(t *testing.T) {
		result, err := traversal.Traverse(ctx, "a", 2, storage.DirectionBoth, "")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a", "b", "c"}, nodeIDs(result))
		assert.Len(t, result.Edges, 2)
	})

	t.Run("DepthBeyondGraph", func(t *testing.T) {
		result, err := traversal.Traverse(ctx, "a", 10, storage.DirectionBoth, "")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, nodeIDs(result))
		assert.Len(t, result.Edges, 3)
	})
}

func TestTraverseCycleTerminates(t *testing.T) {
	store := memory.NewGraphStore()
	for _, id := range []string{"a", "b", "c"} {
		seedEntity(t, store, id, id)
	}
	seedEdge(t, store, "a", "b", "KNOWS")
	seedEdge(t, store, "b", "c", "KNOWS")
	seedEdge(t, store, "c", "a", "KNOWS")

	traversal := NewTraversal(store, store)
	result, err := traversal.Traverse(context.Background(), "a", 100, storage.DirectionBoth, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, nodeIDs(result))
	assert.Len(t, result.Edges, 3, "each edge once, despite the cycle")
}

func TestTraverseDirection(t *testing.T) {
	store := memory.NewGraphStore()
	for _, id := range []string{"a", "b", "c"} {
		seedEntity(t, store, id, id)
	}
	seedEdge(t, store, "a", "b", "X") // outgoing from a
	seedEdge(t, store, "c", "a", "Y") // incoming to a

	traversal := NewTraversal(store, store)
	ctx := context.Background()

	out, err := traversal.Traverse(ctx, "a", 1, storage.DirectionOut, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, nodeIDs(out))

	in, err := traversal.Traverse(ctx, "a", 1, storage.DirectionIn, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "c"}, nodeIDs(in))
}

func TestTraverseTypeFilter(t *testing.T) {
	store := memory.NewGraphStore()
	for _, id := range []string{"a", "b", "c"} {
		seedEntity(t, store, id, id)
	}
	seedEdge(t, store, "a", "b", "WORKS_FOR")
	seedEdge(t, store, "a", "c", "KNOWS")

	traversal := NewTraversal(store, store)
	result, err := traversal.Traverse(context.Background(), "a", 2, storage.DirectionBoth, "WORKS_FOR")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, nodeIDs(result))
	require.Len(t, result.Edges, 1)
	assert.Equal(t, "WORKS_FOR", result.Edges[0].Type)
}

func TestTraverseParallelEdges(t *testing.T) {
	store := memory.NewGraphStore()
	seedEntity(t, store, "a", "a")
	seedEntity(t, store, "b", "b")
	seedEdge(t, store, "a", "b", "WORKS_FOR")
	seedEdge(t, store, "a", "b", "KNOWS")

	traversal := NewTraversal(store, store)
	result, err := traversal.Traverse(context.Background(), "a", 1, storage.DirectionBoth, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, nodeIDs(result))
	assert.Len(t, result.Edges, 2, "parallel edges of different types are distinct facts")
}

func TestTraverseStartNotFound(t *testing.T) {
	store := memory.NewGraphStore()
	traversal := NewTraversal(store, store)
	_, err := traversal.Traverse(context.Background(), "ghost", 2, storage.DirectionBoth, "")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTraverseNegativeDepth(t *testing.T) {
	store := chainStore(t)
	traversal := NewTraversal(store, store)
	_, err := traversal.Traverse(context.Background(), "a", -1, storage.DirectionBoth, "")
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestTraverseCancelledContext(t *testing.T) {
	store := chainStore(t)
	traversal := NewTraversal(store, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := traversal.Traverse(ctx, "a", 3, storage.DirectionBoth, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTraverseWideGraph(t *testing.T) {
	store := memory.NewGraphStore()
	seedEntity(t, store, "hub", "hub")
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("spoke%d", i)
		seedEntity(t, store, id, id)
		seedEdge(t, store, "hub", id, "LINKS")
	}

	traversal := NewTraversal(store, store)
	result, err := traversal.Traverse(context.Background(), "hub", 1, storage.DirectionOut, "")
	require.NoError(t, err)
	assert.Len(t, result.Nodes, 21)
	assert.Len(t, result.Edges, 20)
}
