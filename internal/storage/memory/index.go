package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/graphaura/graphaura/internal/storage"
	"github.com/graphaura/graphaura/pkg/types"
)

type indexEntry struct {
	entityType types.EntityType
	vector     []float32
}

// VectorIndex implements storage.VectorIndex with exact cosine similarity.
// It backs the demo provider and the engine tests; real deployments use the
// Qdrant or Postgres providers.
type VectorIndex struct {
	mu      sync.RWMutex
	entries map[string]indexEntry
}

// NewVectorIndex creates an empty in-memory vector index.
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{entries: make(map[string]indexEntry)}
}

// StoreEmbedding inserts or replaces the embedding for an entity.
func (idx *VectorIndex) StoreEmbedding(ctx context.Context, entityID string, entityType types.EntityType, embedding []float32, payload map[string]interface{}) error {
	if entityID == "" {
		return fmt.Errorf("%w: entity ID is required", storage.ErrInvalidInput)
	}
	if len(embedding) == 0 {
		return fmt.Errorf("%w: embedding vector cannot be empty", storage.ErrInvalidInput)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries[entityID] = indexEntry{
		entityType: entityType,
		vector:     append([]float32(nil), embedding...),
	}
	return nil
}

// DeleteEmbedding removes the embedding for an entity.
func (idx *VectorIndex) DeleteEmbedding(ctx context.Context, entityID string) (bool, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.entries[entityID]; !ok {
		return false, nil
	}
	delete(idx.entries, entityID)
	return true, nil
}

// Search returns up to limit hits with cosine score >= threshold, ordered by
// descending score.
func (idx *VectorIndex) Search(ctx context.Context, query []float32, limit int, entityTypes []types.EntityType, threshold float64) ([]storage.VectorHit, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("%w: query embedding cannot be empty", storage.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 10
	}

	typeSet := make(map[types.EntityType]bool, len(entityTypes))
	for _, t := range entityTypes {
		typeSet[t] = true
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var hits []storage.VectorHit
	for id, entry := range idx.entries {
		if len(typeSet) > 0 && !typeSet[entry.entityType] {
			continue
		}
		score := cosineSimilarity(query, entry.vector)
		if score < threshold {
			continue
		}
		hits = append(hits, storage.VectorHit{
			EntityID:   id,
			EntityType: string(entry.entityType),
			Score:      score,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score == hits[j].Score {
			return hits[i].EntityID < hits[j].EntityID
		}
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Close is a no-op for the in-memory index.
func (idx *VectorIndex) Close() error {
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Compile-time assertion.
var _ storage.VectorIndex = (*VectorIndex)(nil)
