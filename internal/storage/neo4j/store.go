// Package neo4j provides the Neo4j graph store backend. Entities are nodes
// carrying a shared :Entity label plus a per-type label (Person, Location,
// ...); relationships are typed edges whose Cypher type is the normalized
// relationship type.
package neo4j

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v4/neo4j"

	"github.com/graphaura/graphaura/internal/storage"
	"github.com/graphaura/graphaura/pkg/types"
)

// relTypePattern restricts relationship types interpolated into Cypher.
// Types are normalized to uppercase before storage; anything else is
// rejected rather than quoted.
var relTypePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// GraphStore implements storage.GraphStore on a Neo4j server.
type GraphStore struct {
	driver neo4j.Driver
}

// NewGraphStore connects to Neo4j and verifies the connection.
func NewGraphStore(uri, username, password string) (*GraphStore, error) {
	driver, err := neo4j.NewDriver(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j: failed to create driver: %w", err)
	}
	if err := driver.VerifyConnectivity(); err != nil {
		driver.Close()
		return nil, fmt.Errorf("neo4j: failed to connect to %s: %w", uri, err)
	}

	store := &GraphStore{driver: driver}
	if err := store.ensureConstraints(); err != nil {
		driver.Close()
		return nil, err
	}
	return store, nil
}

// ensureConstraints creates the uniqueness constraint on entity IDs.
func (s *GraphStore) ensureConstraints() error {
	session := s.driver.NewSession(neo4j.SessionConfig{})
	defer session.Close()

	_, err := session.Run(
		`CREATE CONSTRAINT entity_id IF NOT EXISTS FOR (e:Entity) REQUIRE e.id IS UNIQUE`, nil)
	if err != nil {
		// Older servers use the legacy constraint syntax.
		_, err = session.Run(
			`CREATE CONSTRAINT ON (e:Entity) ASSERT e.id IS UNIQUE`, nil)
	}
	if err != nil {
		return fmt.Errorf("neo4j: failed to create id constraint: %w", err)
	}
	return nil
}

// Close closes the underlying driver.
func (s *GraphStore) Close() error {
	return s.driver.Close()
}

// UpsertEntity creates or merges an entity inside one write transaction.
// The existing type is read first; a type change is rejected without
// touching the node. Property maps are merged key by key, created_at is
// preserved on merge.
func (s *GraphStore) UpsertEntity(ctx context.Context, entity *types.Entity) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := entity.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	if entity.ID == "" {
		return "", fmt.Errorf("%w: entity ID is required", storage.ErrInvalidInput)
	}

	session := s.driver.NewSession(neo4j.SessionConfig{})
	defer session.Close()

	_, err := session.WriteTransaction(func(tx neo4j.Transaction) (interface{}, error) {
		res, err := tx.Run(
			`MATCH (e:Entity {id: $id}) RETURN e.type, e.properties`,
			map[string]interface{}{"id": entity.ID})
		if err != nil {
			return nil, err
		}

		properties := entity.Properties
		if res.Next() {
			record := res.Record()
			if storedType, ok := record.Values[0].(string); ok && storedType != string(entity.Type) {
				return nil, fmt.Errorf("%w: entity %s type is %q and cannot change to %q (delete and recreate instead)",
					storage.ErrInvalidInput, entity.ID, storedType, entity.Type)
			}
			merged, err := mergeProperties(record.Values[1], entity.Properties)
			if err != nil {
				return nil, err
			}
			properties = merged
		}

		propertiesJSON, err := marshalProperties(properties)
		if err != nil {
			return nil, err
		}

		params := map[string]interface{}{
			"id":          entity.ID,
			"type":        string(entity.Type),
			"name":        entity.Name,
			"description": entity.Description,
			"confidence":  entity.ConfidenceScore,
			"properties":  propertiesJSON,
			"now":         time.Now().UTC(),
		}

		query := `
			MERGE (e:Entity {id: $id})
			ON CREATE SET e:` + entity.Type.Label() + `,
				e.type = $type,
				e.created_at = $now
			SET e.name = $name,
				e.updated_at = $now,
				e.description = CASE WHEN $description <> ''
					THEN $description ELSE coalesce(e.description, '') END,
				e.confidence_score = CASE WHEN $confidence <> 0.0
					THEN $confidence ELSE coalesce(e.confidence_score, 0.0) END,
				e.properties = $properties
		`
		if len(entity.Embedding) > 0 {
			query += `, e.embedding = $embedding`
			params["embedding"] = toInterfaceSlice(entity.Embedding)
		}

		if _, err := tx.Run(query, params); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		if isSentinel(err) {
			return "", err
		}
		return "", wrapErr("failed to upsert entity", err)
	}
	return entity.ID, nil
}

// GetEntity retrieves an entity by ID.
func (s *GraphStore) GetEntity(ctx context.Context, id string) (*types.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	session := s.driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	out, err := session.ReadTransaction(func(tx neo4j.Transaction) (interface{}, error) {
		res, err := tx.Run(`MATCH (e:Entity {id: $id}) RETURN e`,
			map[string]interface{}{"id": id})
		if err != nil {
			return nil, err
		}
		if !res.Next() {
			return nil, nil
		}
		node, ok := res.Record().Values[0].(neo4j.Node)
		if !ok {
			return nil, fmt.Errorf("unexpected record shape")
		}
		return entityFromNode(node)
	})
	if err != nil {
		return nil, wrapErr("failed to get entity", err)
	}
	if out == nil {
		return nil, fmt.Errorf("entity %s: %w", id, storage.ErrNotFound)
	}
	return out.(*types.Entity), nil
}

// UpdateEntity applies a partial patch. Unknown field names land in
// Properties.
func (s *GraphStore) UpdateEntity(ctx context.Context, id string, fields map[string]interface{}) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	session := s.driver.NewSession(neo4j.SessionConfig{})
	defer session.Close()

	out, err := session.WriteTransaction(func(tx neo4j.Transaction) (interface{}, error) {
		res, err := tx.Run(`MATCH (e:Entity {id: $id}) RETURN e`,
			map[string]interface{}{"id": id})
		if err != nil {
			return nil, err
		}
		if !res.Next() {
			return false, nil
		}
		node := res.Record().Values[0].(neo4j.Node)
		entity, err := entityFromNode(node)
		if err != nil {
			return nil, err
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

		propertiesJSON, err := marshalProperties(entity.Properties)
		if err != nil {
			return nil, err
		}

		_, err = tx.Run(`
			MATCH (e:Entity {id: $id})
			SET e.name = $name,
				e.description = $description,
				e.confidence_score = $confidence,
				e.properties = $properties,
				e.updated_at = $now
		`, map[string]interface{}{
			"id":          id,
			"name":        entity.Name,
			"description": entity.Description,
			"confidence":  entity.ConfidenceScore,
			"properties":  propertiesJSON,
			"now":         time.Now().UTC(),
		})
		if err != nil {
			return nil, err
		}
		return true, nil
	})
	if err != nil {
		return false, wrapErr("failed to update entity", err)
	}
	return out.(bool), nil
}

// DeleteEntity removes the node; DETACH DELETE removes all incident
// relationships in the same operation.
func (s *GraphStore) DeleteEntity(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	session := s.driver.NewSession(neo4j.SessionConfig{})
	defer session.Close()

	out, err := session.WriteTransaction(func(tx neo4j.Transaction) (interface{}, error) {
		res, err := tx.Run(`MATCH (e:Entity {id: $id}) DETACH DELETE e`,
			map[string]interface{}{"id": id})
		if err != nil {
			return nil, err
		}
		summary, err := res.Consume()
		if err != nil {
			return nil, err
		}
		return summary.Counters().NodesDeleted() > 0, nil
	})
	if err != nil {
		return false, wrapErr("failed to delete entity", err)
	}
	return out.(bool), nil
}

// FindEntities returns entities matching the conjunctive filter, ordered by
// created_at then id so paging over a fixed store state is deterministic.
// Property filters are applied after fetch, because properties travel as a
// serialized map.
func (s *GraphStore) FindEntities(ctx context.Context, filter storage.EntityFilter, limit, offset int) ([]*types.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var (
		conditions []string
		params     = map[string]interface{}{}
	)
	if filter.Type != "" {
		conditions = append(conditions, "e.type = $type")
		params["type"] = string(filter.Type)
	}
	if filter.Name != "" {
		conditions = append(conditions, "toLower(e.name) CONTAINS toLower($name)")
		params["name"] = filter.Name
	}

	query := `MATCH (e:Entity)`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` RETURN e ORDER BY e.created_at, e.id`

	// Server-side paging only when no property filter narrows the page
	// afterwards.
	pageInQuery := len(filter.Properties) == 0
	if pageInQuery {
		query += ` SKIP $offset LIMIT $limit`
		params["offset"] = offset
		params["limit"] = limit
	}

	session := s.driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	out, err := session.ReadTransaction(func(tx neo4j.Transaction) (interface{}, error) {
		res, err := tx.Run(query, params)
		if err != nil {
			return nil, err
		}
		var entities []*types.Entity
		for res.Next() {
			node, ok := res.Record().Values[0].(neo4j.Node)
			if !ok {
				continue
			}
			entity, err := entityFromNode(node)
			if err != nil {
				return nil, err
			}
			entities = append(entities, entity)
		}
		return entities, res.Err()
	})
	if err != nil {
		return nil, wrapErr("failed to find entities", err)
	}

	entities := out.([]*types.Entity)
	if !pageInQuery {
		var matched []*types.Entity
		for _, e := range entities {
			if matchesProperties(e, filter.Properties) {
				matched = append(matched, e)
			}
		}
		if offset >= len(matched) {
			return []*types.Entity{}, nil
		}
		matched = matched[offset:]
		if len(matched) > limit {
			matched = matched[:limit]
		}
		entities = matched
	}
	if entities == nil {
		entities = []*types.Entity{}
	}
	return entities, nil
}

// Stats counts nodes per entity type and edges per relationship type.
func (s *GraphStore) Stats(ctx context.Context) (*storage.GraphStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	session := s.driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	out, err := session.ReadTransaction(func(tx neo4j.Transaction) (interface{}, error) {
		stats := &storage.GraphStats{
			Nodes:         make(map[string]int),
			Relationships: make(map[string]int),
		}

		res, err := tx.Run(`MATCH (e:Entity) RETURN e.type, count(*)`, nil)
		if err != nil {
			return nil, err
		}
		for res.Next() {
			record := res.Record()
			rawType, _ := record.Values[0].(string)
			count, _ := record.Values[1].(int64)
			label := rawType
			if entityType, err := types.ParseEntityType(rawType); err == nil {
				label = entityType.Label()
			}
			stats.Nodes[label] = int(count)
		}
		if err := res.Err(); err != nil {
			return nil, err
		}

		res, err = tx.Run(`MATCH ()-[r]->() RETURN type(r), count(*)`, nil)
		if err != nil {
			return nil, err
		}
		for res.Next() {
			record := res.Record()
			relType, _ := record.Values[0].(string)
			count, _ := record.Values[1].(int64)
			stats.Relationships[relType] = int(count)
		}
		return stats, res.Err()
	})
	if err != nil {
		return nil, wrapErr("failed to collect stats", err)
	}
	return out.(*storage.GraphStats), nil
}

// Compile-time assertion.
var _ storage.GraphStore = (*GraphStore)(nil)

func wrapErr(msg string, err error) error {
	return fmt.Errorf("neo4j: %s: %w", msg, err)
}

// entityFromNode rebuilds a types.Entity from a stored node.
func entityFromNode(node neo4j.Node) (*types.Entity, error) {
	entity := &types.Entity{}
	props := node.Props

	entity.ID, _ = props["id"].(string)
	if rawType, ok := props["type"].(string); ok {
		entityType, err := types.ParseEntityType(rawType)
		if err != nil {
			return nil, fmt.Errorf("stored entity %s has unknown type %q", entity.ID, rawType)
		}
		entity.Type = entityType
	}
	entity.Name, _ = props["name"].(string)
	entity.Description, _ = props["description"].(string)
	if score, ok := toFloat(props["confidence_score"]); ok {
		entity.ConfidenceScore = score
	}
	if raw, ok := props["properties"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &entity.Properties); err != nil {
			return nil, fmt.Errorf("failed to unmarshal properties: %w", err)
		}
	}
	if raw, ok := props["embedding"].([]interface{}); ok {
		embedding := make([]float32, 0, len(raw))
		for _, v := range raw {
			if f, ok := toFloat(v); ok {
				embedding = append(embedding, float32(f))
			}
		}
		entity.Embedding = embedding
	}
	if t, ok := props["created_at"].(time.Time); ok {
		entity.CreatedAt = t
	}
	if t, ok := props["updated_at"].(time.Time); ok {
		entity.UpdatedAt = t
	}
	return entity, nil
}

func matchesProperties(e *types.Entity, want types.Properties) bool {
	for k, v := range want {
		got, ok := e.Properties[k]
		if !ok || fmt.Sprint(got) != fmt.Sprint(v) {
			return false
		}
	}
	return true
}

// mergeProperties overlays new properties on the stored serialized map.
func mergeProperties(stored interface{}, updates types.Properties) (types.Properties, error) {
	merged := types.Properties{}
	if raw, ok := stored.(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &merged); err != nil {
			return nil, fmt.Errorf("failed to unmarshal stored properties: %w", err)
		}
	}
	for k, v := range updates {
		merged[k] = v
	}
	return merged, nil
}

func marshalProperties(p types.Properties) (string, error) {
	if p == nil {
		p = types.Properties{}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal properties: %w", err)
	}
	return string(data), nil
}

func toInterfaceSlice(values []float32) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out
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

// sortRelationships orders by created_at then id; used after the two-branch
// union under DirectionBoth.
func sortRelationships(rels []*types.Relationship) {
	sort.SliceStable(rels, func(i, j int) bool {
		if rels[i].CreatedAt.Equal(rels[j].CreatedAt) {
			return rels[i].ID < rels[j].ID
		}
		return rels[i].CreatedAt.Before(rels[j].CreatedAt)
	})
}

func generateRelID() string {
	return "rel:" + uuid.New().String()
}
