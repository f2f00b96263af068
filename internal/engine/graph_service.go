package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/graphaura/graphaura/internal/storage"
	"github.com/graphaura/graphaura/pkg/types"
)

// GraphService coordinates writes that span the graph store and the vector
// index, keeping the two-backend bookkeeping out of the HTTP handlers.
type GraphService struct {
	store storage.GraphStore
	index storage.VectorIndex
}

// NewGraphService creates a graph service over the given backends.
func NewGraphService(store storage.GraphStore, index storage.VectorIndex) *GraphService {
	return &GraphService{store: store, index: index}
}

// Store returns the underlying graph store.
func (g *GraphService) Store() storage.GraphStore {
	return g.store
}

// Index returns the underlying vector index.
func (g *GraphService) Index() storage.VectorIndex {
	return g.index
}

// CreateEntity assigns an ID when absent, upserts the entity and, when an
// embedding is attached, stores it in the vector index keyed by the entity ID.
func (g *GraphService) CreateEntity(ctx context.Context, entity *types.Entity) (string, error) {
	if entity.ID == "" {
		entity.ID = generateEntityID(entity.Type)
	}

	id, err := g.store.UpsertEntity(ctx, entity)
	if err != nil {
		return "", err
	}

	if len(entity.Embedding) > 0 {
		payload := map[string]interface{}{
			"name":       entity.Name,
			"confidence": entity.ConfidenceScore,
		}
		if err := g.index.StoreEmbedding(ctx, id, entity.Type, entity.Embedding, payload); err != nil {
			// The node is already in the graph; surface the index failure
			// instead of trying to roll back an atomic upsert.
			return id, fmt.Errorf("entity %s stored but embedding failed: %w", id, err)
		}
	}
	return id, nil
}

// DeleteResult reports each sub-operation of a cascading delete
// independently; the two deletions are independent external calls and both
// are attempted even if the first fails.
type DeleteResult struct {
	EntityDeleted    bool `json:"entity_deleted"`
	EmbeddingDeleted bool `json:"embedding_deleted"`

	// EntityErr and EmbeddingErr carry the per-backend failures, if any.
	EntityErr    error `json:"-"`
	EmbeddingErr error `json:"-"`
}

// DeleteEntity removes the entity (cascading its incident relationships) from
// the graph store and its embedding from the vector index, reporting a
// composite result rather than collapsing to a single boolean.
func (g *GraphService) DeleteEntity(ctx context.Context, id string) DeleteResult {
	var result DeleteResult

	result.EntityDeleted, result.EntityErr = g.store.DeleteEntity(ctx, id)
	result.EmbeddingDeleted, result.EmbeddingErr = g.index.DeleteEmbedding(ctx, id)

	if result.EntityErr != nil {
		log.Printf("delete entity %s: graph store: %v", id, result.EntityErr)
	}
	if result.EmbeddingErr != nil {
		log.Printf("delete entity %s: vector index: %v", id, result.EmbeddingErr)
	}
	return result
}

// generateEntityID builds an API-assigned entity ID in the form {type}:{uuid8}.
func generateEntityID(t types.EntityType) string {
	return fmt.Sprintf("%s:%s", t, uuid.New().String()[:8])
}
