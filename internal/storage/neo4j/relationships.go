package neo4j

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v4/neo4j"

	"github.com/graphaura/graphaura/internal/storage"
	"github.com/graphaura/graphaura/pkg/types"
)

// validateRelType guards the type string interpolated into Cypher, since
// relationship types cannot be parameterized.
func validateRelType(relType string) error {
	if !relTypePattern.MatchString(relType) {
		return fmt.Errorf("%w: relationship type %q is not a valid identifier", storage.ErrInvalidInput, relType)
	}
	return nil
}

// CreateRelationship inserts a new edge. Both endpoints are matched inside
// the write transaction before anything is created; a missing endpoint
// fails the call with no write.
func (s *GraphStore) CreateRelationship(ctx context.Context, rel *types.Relationship) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	prepared, err := prepareRelationship(rel)
	if err != nil {
		return "", err
	}

	session := s.driver.NewSession(neo4j.SessionConfig{})
	defer session.Close()

	_, err = session.WriteTransaction(func(tx neo4j.Transaction) (interface{}, error) {
		if err := checkEndpoints(tx, prepared); err != nil {
			return nil, err
		}

		propertiesJSON, err := marshalProperties(prepared.Properties)
		if err != nil {
			return nil, err
		}

		query := `
			MATCH (source:Entity {id: $source_id})
			MATCH (target:Entity {id: $target_id})
			CREATE (source)-[r:` + prepared.Type + ` {
				id: $id,
				weight: $weight,
				confidence_score: $confidence,
				properties: $properties,
				created_at: $now
			}]->(target)
		`
		_, err = tx.Run(query, map[string]interface{}{
			"source_id":  prepared.SourceID,
			"target_id":  prepared.TargetID,
			"id":         prepared.ID,
			"weight":     prepared.Weight,
			"confidence": prepared.ConfidenceScore,
			"properties": propertiesJSON,
			"now":        time.Now().UTC(),
		})
		return nil, err
	})
	if err != nil {
		if isSentinel(err) {
			return "", err
		}
		return "", wrapErr("failed to create relationship", err)
	}
	return prepared.ID, nil
}

// UpsertRelationship merges on (source, target, type) via MERGE: first sight
// creates with all properties, repeat sight merges properties and refreshes
// weight and confidence when provided, preserving created_at.
func (s *GraphStore) UpsertRelationship(ctx context.Context, rel *types.Relationship) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	newWeight := rel.Weight
	newConfidence := rel.ConfidenceScore

	prepared, err := prepareRelationship(rel)
	if err != nil {
		return "", err
	}

	session := s.driver.NewSession(neo4j.SessionConfig{})
	defer session.Close()

	out, err := session.WriteTransaction(func(tx neo4j.Transaction) (interface{}, error) {
		if err := checkEndpoints(tx, prepared); err != nil {
			return nil, err
		}

		// Read the existing edge so properties merge client-side.
		res, err := tx.Run(`
			MATCH (:Entity {id: $source_id})-[r:`+prepared.Type+`]->(:Entity {id: $target_id})
			RETURN r.id, r.properties
		`, map[string]interface{}{
			"source_id": prepared.SourceID,
			"target_id": prepared.TargetID,
		})
		if err != nil {
			return nil, err
		}

		properties := prepared.Properties
		if res.Next() {
			record := res.Record()
			merged, err := mergeRelProperties(record.Values[1], prepared.Properties)
			if err != nil {
				return nil, err
			}
			properties = merged
		}

		propertiesJSON, err := marshalProperties(properties)
		if err != nil {
			return nil, err
		}

		query := `
			MATCH (source:Entity {id: $source_id})
			MATCH (target:Entity {id: $target_id})
			MERGE (source)-[r:` + prepared.Type + `]->(target)
			ON CREATE SET r.id = $id,
				r.weight = $weight,
				r.confidence_score = $confidence,
				r.created_at = $now
			ON MATCH SET
				r.weight = CASE WHEN $new_weight <> 0.0
					THEN $new_weight ELSE r.weight END,
				r.confidence_score = CASE WHEN $new_confidence <> 0.0
					THEN $new_confidence ELSE r.confidence_score END
			SET r.properties = $properties
			RETURN r.id
		`
		mergeRes, err := tx.Run(query, map[string]interface{}{
			"source_id":      prepared.SourceID,
			"target_id":      prepared.TargetID,
			"id":             prepared.ID,
			"weight":         prepared.Weight,
			"confidence":     prepared.ConfidenceScore,
			"new_weight":     newWeight,
			"new_confidence": newConfidence,
			"properties":     propertiesJSON,
			"now":            time.Now().UTC(),
		})
		if err != nil {
			return nil, err
		}
		if !mergeRes.Next() {
			return nil, fmt.Errorf("merge returned no row")
		}
		id, _ := mergeRes.Record().Values[0].(string)
		return id, nil
	})
	if err != nil {
		if isSentinel(err) {
			return "", err
		}
		return "", wrapErr("failed to upsert relationship", err)
	}
	return out.(string), nil
}

// ListRelationships lists incident edges ordered by created_at then id.
// Under "both", the out and in branches run as separate matches, so a
// self-loop is reported once per matched direction.
func (s *GraphStore) ListRelationships(ctx context.Context, entityID string, direction storage.Direction) ([]*types.Relationship, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	session := s.driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	out, err := session.ReadTransaction(func(tx neo4j.Transaction) (interface{}, error) {
		var rels []*types.Relationship

		if direction == storage.DirectionOut || direction == storage.DirectionBoth {
			batch, err := runListQuery(tx, `
				MATCH (e:Entity {id: $id})-[r]->(target:Entity)
				RETURN r, e.id, target.id
			`, entityID)
			if err != nil {
				return nil, err
			}
			rels = append(rels, batch...)
		}
		if direction == storage.DirectionIn || direction == storage.DirectionBoth {
			batch, err := runListQuery(tx, `
				MATCH (source:Entity)-[r]->(e:Entity {id: $id})
				RETURN r, source.id, e.id
			`, entityID)
			if err != nil {
				return nil, err
			}
			rels = append(rels, batch...)
		}

		sortRelationships(rels)
		return rels, nil
	})
	if err != nil {
		return nil, wrapErr("failed to list relationships", err)
	}
	return out.([]*types.Relationship), nil
}

// DeleteRelationship removes an edge by its id property.
func (s *GraphStore) DeleteRelationship(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	session := s.driver.NewSession(neo4j.SessionConfig{})
	defer session.Close()

	out, err := session.WriteTransaction(func(tx neo4j.Transaction) (interface{}, error) {
		res, err := tx.Run(`MATCH ()-[r {id: $id}]->() DELETE r`,
			map[string]interface{}{"id": id})
		if err != nil {
			return nil, err
		}
		summary, err := res.Consume()
		if err != nil {
			return nil, err
		}
		return summary.Counters().RelationshipsDeleted() > 0, nil
	})
	if err != nil {
		return false, wrapErr("failed to delete relationship", err)
	}
	return out.(bool), nil
}

func runListQuery(tx neo4j.Transaction, query, entityID string) ([]*types.Relationship, error) {
	res, err := tx.Run(query, map[string]interface{}{"id": entityID})
	if err != nil {
		return nil, err
	}

	var rels []*types.Relationship
	for res.Next() {
		record := res.Record()
		edge, ok := record.Values[0].(neo4j.Relationship)
		if !ok {
			continue
		}
		sourceID, _ := record.Values[1].(string)
		targetID, _ := record.Values[2].(string)

		rel, err := relationshipFromEdge(edge, sourceID, targetID)
		if err != nil {
			return nil, err
		}
		rels = append(rels, rel)
	}
	return rels, res.Err()
}

func relationshipFromEdge(edge neo4j.Relationship, sourceID, targetID string) (*types.Relationship, error) {
	rel := &types.Relationship{
		SourceID: sourceID,
		TargetID: targetID,
		Type:     edge.Type,
	}
	rel.ID, _ = edge.Props["id"].(string)
	if weight, ok := toFloat(edge.Props["weight"]); ok {
		rel.Weight = weight
	}
	if score, ok := toFloat(edge.Props["confidence_score"]); ok {
		rel.ConfidenceScore = score
	}
	if raw, ok := edge.Props["properties"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &rel.Properties); err != nil {
			return nil, fmt.Errorf("failed to unmarshal properties: %w", err)
		}
	}
	if t, ok := edge.Props["created_at"].(time.Time); ok {
		rel.CreatedAt = t
	}
	return rel, nil
}

func prepareRelationship(rel *types.Relationship) (*types.Relationship, error) {
	if err := rel.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	prepared := *rel
	prepared.NormalizeType()
	if err := validateRelType(prepared.Type); err != nil {
		return nil, err
	}
	if prepared.ID == "" {
		prepared.ID = generateRelID()
	}
	if prepared.Weight == 0 {
		prepared.Weight = 1.0
	}
	return &prepared, nil
}

// checkEndpoints must run before any write; callers hold the transaction.
func checkEndpoints(tx neo4j.Transaction, rel *types.Relationship) error {
	for _, endpoint := range []struct {
		role string
		id   string
	}{
		{"source", rel.SourceID},
		{"target", rel.TargetID},
	} {
		res, err := tx.Run(`MATCH (e:Entity {id: $id}) RETURN e.id LIMIT 1`,
			map[string]interface{}{"id": endpoint.id})
		if err != nil {
			return err
		}
		if !res.Next() {
			return fmt.Errorf("%s %s: %w", endpoint.role, endpoint.id, storage.ErrEndpointNotFound)
		}
	}
	return nil
}

func mergeRelProperties(stored interface{}, updates types.Properties) (types.Properties, error) {
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

// isSentinel reports whether the transaction failed on one of the storage
// contract errors rather than a driver fault.
func isSentinel(err error) bool {
	return errors.Is(err, storage.ErrEndpointNotFound) || errors.Is(err, storage.ErrInvalidInput)
}
