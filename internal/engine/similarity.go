package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/graphaura/graphaura/internal/storage"
	"github.com/graphaura/graphaura/pkg/types"
)

// SimilarityResult pairs a hydrated entity with its similarity score.
type SimilarityResult struct {
	Entity *types.Entity `json:"entity"`
	Score  float64       `json:"similarity"`
}

// SimilaritySearch joins vector-index nearest neighbors back to full entity
// records from the graph store.
type SimilaritySearch struct {
	entities storage.EntityStore
	index    storage.VectorIndex
}

// NewSimilaritySearch creates a similarity search hydrator.
func NewSimilaritySearch(entities storage.EntityStore, index storage.VectorIndex) *SimilaritySearch {
	return &SimilaritySearch{entities: entities, index: index}
}

// Search delegates nearest-neighbor lookup to the vector index and hydrates
// each hit with the full entity record. A hit whose entity has since been
// deleted from the graph store is dropped rather than surfaced as a partial
// record, so the returned count may be below limit even when more vector hits
// existed.
func (s *SimilaritySearch) Search(ctx context.Context, query []float32, limit int, entityTypes []types.EntityType, threshold float64) ([]SimilarityResult, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("%w: query embedding is required", storage.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 10
	}

	hits, err := s.index.Search(ctx, query, limit, entityTypes, threshold)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	results := make([]SimilarityResult, 0, len(hits))
	for _, hit := range hits {
		entity, err := s.entities.GetEntity(ctx, hit.EntityID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				// Stale vector entry; the graph no longer has this entity.
				continue
			}
			return nil, fmt.Errorf("similarity search: hydrate %s: %w", hit.EntityID, err)
		}
		results = append(results, SimilarityResult{Entity: entity, Score: hit.Score})
	}
	return results, nil
}
