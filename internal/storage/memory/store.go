// Package memory provides in-memory implementations of the storage
// interfaces. The graph store doubles as the demo provider (selected at
// startup when no real backend is configured) and as the test backend.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/graphaura/graphaura/internal/storage"
	"github.com/graphaura/graphaura/pkg/types"
)

// GraphStore implements storage.GraphStore with mutex-guarded maps.
// Find returns entities in insertion order, which is stable for a fixed
// store state, so offset/limit paging is deterministic.
type GraphStore struct {
	mu            sync.RWMutex
	entities      map[string]*types.Entity
	order         []string // entity ids in insertion order
	relationships map[string]*types.Relationship
	byDedupKey    map[string]string // dedup key -> relationship id
}

// NewGraphStore creates an empty in-memory graph store.
func NewGraphStore() *GraphStore {
	return &GraphStore{
		entities:      make(map[string]*types.Entity),
		relationships: make(map[string]*types.Relationship),
		byDedupKey:    make(map[string]string),
	}
}

// UpsertEntity creates or merges an entity under its ID. The whole operation runs
// under one lock, so it is atomic with respect to concurrent callers.
func (s *GraphStore) UpsertEntity(ctx context.Context, entity *types.Entity) (string, error) {
	if err := entity.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	if entity.ID == "" {
		return "", fmt.Errorf("%w: entity ID is required", storage.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	existing, ok := s.entities[entity.ID]
	if !ok {
		stored := cloneEntity(entity)
		stored.CreatedAt = now
		stored.UpdatedAt = now
		s.entities[entity.ID] = stored
		s.order = append(s.order, entity.ID)
		return entity.ID, nil
	}

	if existing.Type != entity.Type {
		return "", fmt.Errorf("%w: entity %s type is %q and cannot change to %q (delete and recreate instead)",
			storage.ErrInvalidInput, entity.ID, existing.Type, entity.Type)
	}

	existing.Name = entity.Name
	if entity.Description != "" {
		existing.Description = entity.Description
	}
	if entity.ConfidenceScore != 0 {
		existing.ConfidenceScore = entity.ConfidenceScore
	}
	if entity.Embedding != nil {
		existing.Embedding = append([]float32(nil), entity.Embedding...)
	}
	if existing.Properties == nil {
		existing.Properties = types.Properties{}
	}
	for k, v := range entity.Properties {
		existing.Properties[k] = v
	}
	existing.UpdatedAt = now
	return entity.ID, nil
}

// GetEntity retrieves an entity by ID.
func (s *GraphStore) GetEntity(ctx context.Context, id string) (*types.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entity, ok := s.entities[id]
	if !ok {
		return nil, fmt.Errorf("entity %s: %w", id, storage.ErrNotFound)
	}
	return cloneEntity(entity), nil
}

// UpdateEntity applies a partial patch. Unknown field names land in Properties.
func (s *GraphStore) UpdateEntity(ctx context.Context, id string, fields map[string]interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entity, ok := s.entities[id]
	if !ok {
		return false, nil
	}

	for k, v := range fields {
		switch k {
		case "name":
			if name, ok := v.(string); ok {
				entity.Name = name
			}
		case "description":
			if desc, ok := v.(string); ok {
				entity.Description = desc
			}
		case "confidence_score":
			if score, ok := toFloat(v); ok {
				entity.ConfidenceScore = score
			}
		case "id", "type", "created_at", "updated_at":
			// Immutable or store-managed; ignored.
		default:
			if entity.Properties == nil {
				entity.Properties = types.Properties{}
			}
			entity.Properties[k] = v
		}
	}
	entity.UpdatedAt = time.Now().UTC()
	return true, nil
}

// DeleteEntity removes the entity and all incident relationships.
func (s *GraphStore) DeleteEntity(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[id]; !ok {
		return false, nil
	}

	delete(s.entities, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	for rid, rel := range s.relationships {
		if rel.SourceID == id || rel.TargetID == id {
			delete(s.byDedupKey, rel.DedupKey())
			delete(s.relationships, rid)
		}
	}
	return true, nil
}

// FindEntities returns entities matching the conjunctive filter in insertion order.
func (s *GraphStore) FindEntities(ctx context.Context, filter storage.EntityFilter, limit, offset int) ([]*types.Entity, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*types.Entity
	for _, id := range s.order {
		entity := s.entities[id]
		if matchesFilter(entity, filter) {
			matched = append(matched, entity)
		}
	}

	if offset >= len(matched) {
		return []*types.Entity{}, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]*types.Entity, len(matched))
	for i, e := range matched {
		out[i] = cloneEntity(e)
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *GraphStore) Close() error {
	return nil
}

// Stats counts nodes per entity type and edges per relationship type.
func (s *GraphStore) Stats(ctx context.Context) (*storage.GraphStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &storage.GraphStats{
		Nodes:         make(map[string]int),
		Relationships: make(map[string]int),
	}
	for _, e := range s.entities {
		stats.Nodes[e.Type.Label()]++
	}
	for _, r := range s.relationships {
		stats.Relationships[r.Type]++
	}
	return stats, nil
}

func matchesFilter(e *types.Entity, f storage.EntityFilter) bool {
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.Name != "" && !strings.Contains(strings.ToLower(e.Name), strings.ToLower(f.Name)) {
		return false
	}
	for k, want := range f.Properties {
		got, ok := e.Properties[k]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func cloneEntity(e *types.Entity) *types.Entity {
	out := *e
	if e.Properties != nil {
		out.Properties = make(types.Properties, len(e.Properties))
		for k, v := range e.Properties {
			out.Properties[k] = v
		}
	}
	if e.Embedding != nil {
		out.Embedding = append([]float32(nil), e.Embedding...)
	}
	return &out
}

func cloneRelationship(r *types.Relationship) *types.Relationship {
	out := *r
	if r.Properties != nil {
		out.Properties = make(types.Properties, len(r.Properties))
		for k, v := range r.Properties {
			out.Properties[k] = v
		}
	}
	return &out
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// CreateRelationship inserts a new relationship after verifying both endpoints exist.
func (s *GraphStore) CreateRelationship(ctx context.Context, rel *types.Relationship) (string, error) {
	prepared, err := s.prepare(rel)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkEndpoints(prepared); err != nil {
		return "", err
	}

	s.relationships[prepared.ID] = prepared
	s.byDedupKey[prepared.DedupKey()] = prepared.ID
	return prepared.ID, nil
}

// UpsertRelationship merges on (source_id, target_id, type): repeat sight merges
// properties and refreshes weight/confidence when provided, preserving
// created_at.
func (s *GraphStore) UpsertRelationship(ctx context.Context, rel *types.Relationship) (string, error) {
	prepared, err := s.prepare(rel)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkEndpoints(prepared); err != nil {
		return "", err
	}

	if existingID, ok := s.byDedupKey[prepared.DedupKey()]; ok {
		existing := s.relationships[existingID]
		if rel.Weight != 0 {
			existing.Weight = rel.Weight
		}
		if rel.ConfidenceScore != 0 {
			existing.ConfidenceScore = rel.ConfidenceScore
		}
		if existing.Properties == nil {
			existing.Properties = types.Properties{}
		}
		for k, v := range rel.Properties {
			existing.Properties[k] = v
		}
		return existingID, nil
	}

	s.relationships[prepared.ID] = prepared
	s.byDedupKey[prepared.DedupKey()] = prepared.ID
	return prepared.ID, nil
}

// ListRelationships lists incident relationships. Under "both", a self-loop is
// reported once per matched direction.
func (s *GraphStore) ListRelationships(ctx context.Context, entityID string, direction storage.Direction) ([]*types.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.Relationship
	// Iterate in a stable order so repeated calls page identically.
	ids := make([]string, 0, len(s.relationships))
	for id := range s.relationships {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := s.relationships[ids[i]], s.relationships[ids[j]]
		if a.CreatedAt.Equal(b.CreatedAt) {
			return ids[i] < ids[j]
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})

	for _, id := range ids {
		rel := s.relationships[id]
		if (direction == storage.DirectionOut || direction == storage.DirectionBoth) && rel.SourceID == entityID {
			out = append(out, cloneRelationship(rel))
		}
		if (direction == storage.DirectionIn || direction == storage.DirectionBoth) && rel.TargetID == entityID {
			out = append(out, cloneRelationship(rel))
		}
	}
	return out, nil
}

// DeleteRelationship removes a relationship by ID.
func (s *GraphStore) DeleteRelationship(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rel, ok := s.relationships[id]
	if !ok {
		return false, nil
	}
	delete(s.byDedupKey, rel.DedupKey())
	delete(s.relationships, id)
	return true, nil
}

func (s *GraphStore) prepare(rel *types.Relationship) (*types.Relationship, error) {
	if err := rel.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	prepared := cloneRelationship(rel)
	prepared.NormalizeType()
	if prepared.ID == "" {
		prepared.ID = "rel:" + uuid.New().String()
	}
	if prepared.Weight == 0 {
		prepared.Weight = 1.0
	}
	prepared.CreatedAt = time.Now().UTC()
	return prepared, nil
}

// checkEndpoints must run before any write; callers hold the lock.
func (s *GraphStore) checkEndpoints(rel *types.Relationship) error {
	if _, ok := s.entities[rel.SourceID]; !ok {
		return fmt.Errorf("source %s: %w", rel.SourceID, storage.ErrEndpointNotFound)
	}
	if _, ok := s.entities[rel.TargetID]; !ok {
		return fmt.Errorf("target %s: %w", rel.TargetID, storage.ErrEndpointNotFound)
	}
	return nil
}

// Compile-time assertion.
var _ storage.GraphStore = (*GraphStore)(nil)
