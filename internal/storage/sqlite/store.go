// Package sqlite provides an embedded, file-backed graph store. It carries
// the same contracts as the server backends, so a single-binary deployment
// needs no external database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/graphaura/graphaura/internal/storage"
	"github.com/graphaura/graphaura/pkg/types"
)

// GraphStore implements storage.GraphStore using SQLite.
type GraphStore struct {
	db *sql.DB
}

// NewGraphStore opens a SQLite database, configures WAL mode, and creates
// the schema.
func NewGraphStore(dsn string) (*GraphStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single open connection
	// serialises writes and avoids SQLITE_BUSY errors under concurrent load.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL mode lets readers proceed without blocking the writer.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to set busy timeout: %w", err)
	}

	// Foreign keys drive the relationship cascade on entity delete.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to create schema: %w", err)
	}

	return &GraphStore{db: db}, nil
}

// Close closes the underlying database.
func (s *GraphStore) Close() error {
	return s.db.Close()
}

// UpsertEntity creates or merges an entity under its ID with a single
// ON CONFLICT statement, so concurrent callers cannot lose updates.
// A conflicting row with a different type is left untouched and reported
// as invalid input.
func (s *GraphStore) UpsertEntity(ctx context.Context, entity *types.Entity) (string, error) {
	if err := entity.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	if entity.ID == "" {
		return "", fmt.Errorf("%w: entity ID is required", storage.ErrInvalidInput)
	}

	propertiesJSON, err := marshalProperties(entity.Properties)
	if err != nil {
		return "", err
	}
	embeddingJSON, err := marshalEmbedding(entity.Embedding)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO entities (
			id, type, name, description, properties, confidence_score,
			embedding, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = CASE WHEN excluded.description != ''
				THEN excluded.description ELSE entities.description END,
			confidence_score = CASE WHEN excluded.confidence_score != 0
				THEN excluded.confidence_score ELSE entities.confidence_score END,
			embedding = COALESCE(excluded.embedding, entities.embedding),
			properties = json_patch(COALESCE(entities.properties, '{}'),
				COALESCE(excluded.properties, '{}')),
			updated_at = excluded.updated_at
		WHERE entities.type = excluded.type
	`

	res, err := s.db.ExecContext(ctx, query,
		entity.ID,
		string(entity.Type),
		entity.Name,
		entity.Description,
		propertiesJSON,
		entity.ConfidenceScore,
		embeddingJSON,
		now,
		now,
	)
	if err != nil {
		return "", fmt.Errorf("sqlite: failed to upsert entity: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("sqlite: failed to read rows affected: %w", err)
	}
	if affected == 0 {
		// The conflict update was suppressed by the type guard.
		return "", fmt.Errorf("%w: entity %s already exists with a different type (delete and recreate instead)",
			storage.ErrInvalidInput, entity.ID)
	}
	return entity.ID, nil
}

// GetEntity retrieves an entity by ID.
func (s *GraphStore) GetEntity(ctx context.Context, id string) (*types.Entity, error) {
	query := `
		SELECT id, type, name, description, properties, confidence_score,
			embedding, created_at, updated_at
		FROM entities
		WHERE id = ?
	`
	entity, err := scanEntity(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("entity %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get entity: %w", err)
	}
	return entity, nil
}

// UpdateEntity applies a partial patch inside a transaction. Unknown field
// names land in Properties.
func (s *GraphStore) UpdateEntity(ctx context.Context, id string, fields map[string]interface{}) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("sqlite: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		SELECT id, type, name, description, properties, confidence_score,
			embedding, created_at, updated_at
		FROM entities
		WHERE id = ?
	`
	entity, err := scanEntity(tx.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: failed to load entity for update: %w", err)
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
		return false, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE entities
		SET name = ?, description = ?, properties = ?, confidence_score = ?, updated_at = ?
		WHERE id = ?
	`, entity.Name, entity.Description, propertiesJSON, entity.ConfidenceScore, time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("sqlite: failed to update entity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("sqlite: failed to commit update: %w", err)
	}
	return true, nil
}

// DeleteEntity removes the entity; the foreign key cascade removes all
// incident relationships.
func (s *GraphStore) DeleteEntity(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("sqlite: failed to delete entity: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}

// FindEntities returns entities matching the conjunctive filter, ordered by
// rowid so paging over a fixed store state is deterministic.
func (s *GraphStore) FindEntities(ctx context.Context, filter storage.EntityFilter, limit, offset int) ([]*types.Entity, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var (
		conditions []string
		args       []interface{}
	)
	if filter.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.Name != "" {
		// LIKE is case-insensitive for ASCII in SQLite.
		conditions = append(conditions, "name LIKE '%' || ? || '%'")
		args = append(args, filter.Name)
	}
	for k, v := range filter.Properties {
		conditions = append(conditions, "json_extract(properties, ?) = ?")
		args = append(args, "$."+k, v)
	}

	query := `
		SELECT id, type, name, description, properties, confidence_score,
			embedding, created_at, updated_at
		FROM entities
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY rowid LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to find entities: %w", err)
	}
	defer rows.Close()

	entities := []*types.Entity{}
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan entity: %w", err)
		}
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: failed to iterate entities: %w", err)
	}
	return entities, nil
}

// Stats counts nodes per entity type and edges per relationship type.
func (s *GraphStore) Stats(ctx context.Context) (*storage.GraphStats, error) {
	stats := &storage.GraphStats{
		Nodes:         make(map[string]int),
		Relationships: make(map[string]int),
	}

	rows, err := s.db.QueryContext(ctx, `SELECT type, COUNT(*) FROM entities GROUP BY type`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to count entities: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rawType string
		var count int
		if err := rows.Scan(&rawType, &count); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan entity count: %w", err)
		}
		label := rawType
		if entityType, err := types.ParseEntityType(rawType); err == nil {
			label = entityType.Label()
		}
		stats.Nodes[label] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: failed to iterate entity counts: %w", err)
	}

	relRows, err := s.db.QueryContext(ctx, `SELECT type, COUNT(*) FROM relationships GROUP BY type`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to count relationships: %w", err)
	}
	defer relRows.Close()
	for relRows.Next() {
		var relType string
		var count int
		if err := relRows.Scan(&relType, &count); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan relationship count: %w", err)
		}
		stats.Relationships[relType] = count
	}
	if err := relRows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: failed to iterate relationship counts: %w", err)
	}
	return stats, nil
}

// CreateRelationship inserts a new relationship after verifying both
// endpoints exist in the same transaction.
func (s *GraphStore) CreateRelationship(ctx context.Context, rel *types.Relationship) (string, error) {
	prepared, propertiesJSON, err := prepareRelationship(rel)
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("sqlite: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := checkEndpoints(ctx, tx, prepared); err != nil {
		return "", err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO relationships (
			id, source_id, target_id, type, weight, confidence_score,
			properties, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, prepared.ID, prepared.SourceID, prepared.TargetID, prepared.Type,
		prepared.Weight, prepared.ConfidenceScore, propertiesJSON, prepared.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return "", fmt.Errorf("%w: relationship %s -[%s]-> %s already exists",
				storage.ErrInvalidInput, prepared.SourceID, prepared.Type, prepared.TargetID)
		}
		return "", fmt.Errorf("sqlite: failed to create relationship: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("sqlite: failed to commit relationship: %w", err)
	}
	return prepared.ID, nil
}

// UpsertRelationship merges on (source_id, target_id, type): repeat sight
// merges properties and refreshes weight/confidence when provided, preserving
// created_at.
func (s *GraphStore) UpsertRelationship(ctx context.Context, rel *types.Relationship) (string, error) {
	// Capture merge inputs before prepare applies the weight default.
	newWeight := rel.Weight
	newConfidence := rel.ConfidenceScore

	prepared, propertiesJSON, err := prepareRelationship(rel)
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("sqlite: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := checkEndpoints(ctx, tx, prepared); err != nil {
		return "", err
	}

	query := `
		INSERT INTO relationships (
			id, source_id, target_id, type, weight, confidence_score,
			properties, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id, target_id, type) DO UPDATE SET
			weight = CASE WHEN CAST(? AS REAL) != 0
				THEN CAST(? AS REAL) ELSE relationships.weight END,
			confidence_score = CASE WHEN CAST(? AS REAL) != 0
				THEN CAST(? AS REAL) ELSE relationships.confidence_score END,
			properties = json_patch(COALESCE(relationships.properties, '{}'),
				COALESCE(excluded.properties, '{}'))
		RETURNING id
	`

	var id string
	err = tx.QueryRowContext(ctx, query,
		prepared.ID, prepared.SourceID, prepared.TargetID, prepared.Type,
		prepared.Weight, prepared.ConfidenceScore, propertiesJSON, prepared.CreatedAt,
		newWeight, newWeight, newConfidence, newConfidence,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("sqlite: failed to upsert relationship: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("sqlite: failed to commit relationship: %w", err)
	}
	return id, nil
}

// ListRelationships lists incident relationships ordered by created_at then
// id. Under "both", the out and in branches are queried separately, so a
// self-loop is reported once per matched direction.
func (s *GraphStore) ListRelationships(ctx context.Context, entityID string, direction storage.Direction) ([]*types.Relationship, error) {
	const columns = `id, source_id, target_id, type, weight, confidence_score, properties, created_at`

	var (
		query string
		args  []interface{}
	)
	switch direction {
	case storage.DirectionOut:
		query = `SELECT ` + columns + ` FROM relationships WHERE source_id = ? ORDER BY created_at, id`
		args = []interface{}{entityID}
	case storage.DirectionIn:
		query = `SELECT ` + columns + ` FROM relationships WHERE target_id = ? ORDER BY created_at, id`
		args = []interface{}{entityID}
	default:
		query = `
			SELECT * FROM (
				SELECT ` + columns + ` FROM relationships WHERE source_id = ?
				UNION ALL
				SELECT ` + columns + ` FROM relationships WHERE target_id = ?
			) ORDER BY created_at, id
		`
		args = []interface{}{entityID, entityID}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list relationships: %w", err)
	}
	defer rows.Close()

	var out []*types.Relationship
	for rows.Next() {
		rel, err := scanRelationship(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan relationship: %w", err)
		}
		out = append(out, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: failed to iterate relationships: %w", err)
	}
	return out, nil
}

// DeleteRelationship removes a relationship by ID.
func (s *GraphStore) DeleteRelationship(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM relationships WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("sqlite: failed to delete relationship: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntity(row scanner) (*types.Entity, error) {
	var (
		entity         types.Entity
		rawType        string
		propertiesJSON sql.NullString
		embeddingJSON  sql.NullString
	)
	err := row.Scan(
		&entity.ID,
		&rawType,
		&entity.Name,
		&entity.Description,
		&propertiesJSON,
		&entity.ConfidenceScore,
		&embeddingJSON,
		&entity.CreatedAt,
		&entity.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	entityType, err := types.ParseEntityType(rawType)
	if err != nil {
		return nil, fmt.Errorf("stored entity %s has unknown type %q", entity.ID, rawType)
	}
	entity.Type = entityType

	if propertiesJSON.Valid && propertiesJSON.String != "" {
		if err := json.Unmarshal([]byte(propertiesJSON.String), &entity.Properties); err != nil {
			return nil, fmt.Errorf("failed to unmarshal properties: %w", err)
		}
	}
	if embeddingJSON.Valid && embeddingJSON.String != "" {
		if err := json.Unmarshal([]byte(embeddingJSON.String), &entity.Embedding); err != nil {
			return nil, fmt.Errorf("failed to unmarshal embedding: %w", err)
		}
	}
	return &entity, nil
}

func scanRelationship(row scanner) (*types.Relationship, error) {
	var (
		rel            types.Relationship
		propertiesJSON sql.NullString
	)
	err := row.Scan(
		&rel.ID,
		&rel.SourceID,
		&rel.TargetID,
		&rel.Type,
		&rel.Weight,
		&rel.ConfidenceScore,
		&propertiesJSON,
		&rel.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if propertiesJSON.Valid && propertiesJSON.String != "" {
		if err := json.Unmarshal([]byte(propertiesJSON.String), &rel.Properties); err != nil {
			return nil, fmt.Errorf("failed to unmarshal properties: %w", err)
		}
	}
	return &rel, nil
}

func prepareRelationship(rel *types.Relationship) (*types.Relationship, interface{}, error) {
	if err := rel.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	prepared := *rel
	prepared.NormalizeType()
	if prepared.ID == "" {
		prepared.ID = "rel:" + uuid.New().String()
	}
	if prepared.Weight == 0 {
		prepared.Weight = 1.0
	}
	prepared.CreatedAt = time.Now().UTC()

	propertiesJSON, err := marshalProperties(prepared.Properties)
	if err != nil {
		return nil, nil, err
	}
	return &prepared, propertiesJSON, nil
}

// checkEndpoints must run before any write; callers hold the transaction.
func checkEndpoints(ctx context.Context, tx *sql.Tx, rel *types.Relationship) error {
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM entities WHERE id = ?)`, rel.SourceID).Scan(&exists); err != nil {
		return fmt.Errorf("sqlite: failed to check source endpoint: %w", err)
	}
	if !exists {
		return fmt.Errorf("source %s: %w", rel.SourceID, storage.ErrEndpointNotFound)
	}
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM entities WHERE id = ?)`, rel.TargetID).Scan(&exists); err != nil {
		return fmt.Errorf("sqlite: failed to check target endpoint: %w", err)
	}
	if !exists {
		return fmt.Errorf("target %s: %w", rel.TargetID, storage.ErrEndpointNotFound)
	}
	return nil
}

func marshalProperties(p types.Properties) (interface{}, error) {
	if p == nil || len(p) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal properties: %w", err)
	}
	return string(data), nil
}

func marshalEmbedding(embedding []float32) (interface{}, error) {
	if len(embedding) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding: %w", err)
	}
	return string(data), nil
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

// Compile-time assertion.
var _ storage.GraphStore = (*GraphStore)(nil)
