// Package storage defines the narrow interfaces between the knowledge graph
// engine and its physical backends.
//
// The graph store and the vector index are external collaborators; the engine
// talks to them only through EntityStore, RelationshipStore and VectorIndex.
// Small, focused interfaces keep backends interchangeable: Neo4j, embedded
// SQLite and the in-memory demo provider all implement the same contracts.
package storage

import (
	"context"

	"github.com/graphaura/graphaura/pkg/types"
)

// EntityStore provides CRUD and filtered lookup for graph entities.
type EntityStore interface {
	// UpsertEntity creates the entity if no entity with its ID exists,
	// otherwise merges the provided fields into the existing record and
	// advances updated_at, leaving created_at untouched. The operation is a
	// single atomic create-or-update against the store, never
	// read-then-write, so concurrent callers targeting the same ID cannot
	// lose updates. Returns the entity ID.
	UpsertEntity(ctx context.Context, entity *types.Entity) (string, error)

	// GetEntity retrieves an entity by ID. Returns ErrNotFound if absent.
	GetEntity(ctx context.Context, id string) (*types.Entity, error)

	// UpdateEntity applies a partial patch to an existing entity.
	// Returns false (not an error) if the entity does not exist.
	UpdateEntity(ctx context.Context, id string, fields map[string]interface{}) (bool, error)

	// DeleteEntity removes the entity node and all incident relationships.
	// Returns false if the entity did not exist.
	DeleteEntity(ctx context.Context, id string) (bool, error)

	// FindEntities returns entities matching the filter, with stable
	// ordering for a fixed store state so offset/limit paging is
	// deterministic.
	FindEntities(ctx context.Context, filter EntityFilter, limit, offset int) ([]*types.Entity, error)

	// Close releases any resources held by the store.
	Close() error
}

// RelationshipStore manages typed directed edges between existing entities.
type RelationshipStore interface {
	// CreateRelationship inserts a new relationship. It fails with
	// ErrEndpointNotFound before any write if either endpoint does not
	// resolve to an existing entity; a dangling endpoint is never
	// auto-created as a placeholder. Returns the relationship ID.
	CreateRelationship(ctx context.Context, rel *types.Relationship) (string, error)

	// UpsertRelationship merges on (source_id, target_id, type): first sight
	// creates with all properties, repeat sight merges properties and
	// refreshes weight and confidence_score when the new value is provided,
	// preserving created_at. Endpoint existence is enforced the same way as
	// CreateRelationship.
	UpsertRelationship(ctx context.Context, rel *types.Relationship) (string, error)

	// ListRelationships returns relationships incident to the entity.
	// Direction "out" matches the entity as source, "in" as target, "both"
	// is the union. A self-loop appears once per matched direction under
	// "both"; that duplication is the documented contract, not a bug.
	ListRelationships(ctx context.Context, entityID string, direction Direction) ([]*types.Relationship, error)

	// DeleteRelationship removes a relationship by ID. Returns false if
	// absent.
	DeleteRelationship(ctx context.Context, id string) (bool, error)
}

// GraphStore is the composed contract a graph backend provides.
type GraphStore interface {
	EntityStore
	RelationshipStore

	// Stats returns node counts per entity type and edge counts per
	// relationship type.
	Stats(ctx context.Context) (*GraphStats, error)
}

// VectorHit is a single nearest-neighbor result from the vector index.
type VectorHit struct {
	EntityID   string
	EntityType string
	Score      float64
}

// VectorIndex is the narrow contract for the external vector search backend.
// Entries are keyed by entity ID; payload metadata travels with the vector.
type VectorIndex interface {
	// StoreEmbedding inserts or replaces the embedding for an entity.
	StoreEmbedding(ctx context.Context, entityID string, entityType types.EntityType, embedding []float32, payload map[string]interface{}) error

	// DeleteEmbedding removes the embedding for an entity.
	// Returns false if no embedding was stored.
	DeleteEmbedding(ctx context.Context, entityID string) (bool, error)

	// Search returns up to limit nearest neighbors with score >= threshold,
	// ordered by descending score, optionally restricted to entity types.
	Search(ctx context.Context, query []float32, limit int, entityTypes []types.EntityType, threshold float64) ([]VectorHit, error)

	// Close releases any resources held by the index.
	Close() error
}
