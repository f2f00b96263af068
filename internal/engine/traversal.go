// Package engine provides the coordination logic of the knowledge graph:
// bounded traversal, visualization sampling, similarity-search hydration and
// composite deletes. It is read-mostly and safe to run concurrently with
// writes; each call may observe a graph state that changes between its
// internal queries (no snapshot isolation is assumed).
package engine

import (
	"context"
	"fmt"

	"github.com/graphaura/graphaura/internal/storage"
	"github.com/graphaura/graphaura/pkg/types"
)

// TraversalResult holds the nodes and edges reached by a bounded traversal.
type TraversalResult struct {
	Nodes []*types.Entity       `json:"nodes"`
	Edges []*types.Relationship `json:"edges"`
}

// Traversal walks the graph breadth-first from a start entity.
type Traversal struct {
	entities      storage.EntityStore
	relationships storage.RelationshipStore
}

// NewTraversal creates a traversal engine over the given stores.
func NewTraversal(entities storage.EntityStore, relationships storage.RelationshipStore) *Traversal {
	return &Traversal{entities: entities, relationships: relationships}
}

// Traverse performs a bounded breadth-first walk from startID.
//
// The frontier at depth 0 is the start entity. At each depth below maxDepth,
// every frontier node's relationships are fetched per direction, filtered by
// typeFilter when non-empty, and newly seen neighbors join the next frontier.
// Edges are deduplicated by relationship identity, not by endpoint pair, since
// parallel edges of different types are distinct facts. A node visited at an
// earlier depth is never re-expanded, so traversal terminates on cyclic
// graphs. maxDepth 0 returns only the start node and no edges.
//
// Returns ErrNotFound when startID does not exist. The context is checked at
// every depth level, so a cancelled traversal stops between frontier
// expansions.
func (t *Traversal) Traverse(ctx context.Context, startID string, maxDepth int, direction storage.Direction, typeFilter string) (*TraversalResult, error) {
	start, err := t.entities.GetEntity(ctx, startID)
	if err != nil {
		return nil, fmt.Errorf("traverse from %s: %w", startID, err)
	}
	if maxDepth < 0 {
		return nil, fmt.Errorf("%w: max_depth must be >= 0, got %d", storage.ErrInvalidInput, maxDepth)
	}

	result := &TraversalResult{Nodes: []*types.Entity{start}}
	visited := map[string]bool{startID: true}
	seenEdges := map[string]bool{}
	frontier := []string{startID}

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var next []string
		for _, nodeID := range frontier {
			rels, err := t.relationships.ListRelationships(ctx, nodeID, direction)
			if err != nil {
				return nil, fmt.Errorf("traverse: relationships of %s: %w", nodeID, err)
			}

			for _, rel := range rels {
				if typeFilter != "" && rel.Type != typeFilter {
					continue
				}
				if !seenEdges[rel.ID] {
					seenEdges[rel.ID] = true
					result.Edges = append(result.Edges, rel)
				}

				neighborID := rel.TargetID
				if neighborID == nodeID {
					neighborID = rel.SourceID
				}
				if visited[neighborID] {
					continue
				}
				visited[neighborID] = true

				neighbor, err := t.entities.GetEntity(ctx, neighborID)
				if err != nil {
					// The neighbor vanished between the relationship fetch
					// and this lookup; skip it rather than failing the walk.
					continue
				}
				result.Nodes = append(result.Nodes, neighbor)
				next = append(next, neighborID)
			}
		}
		frontier = next
	}

	return result, nil
}
