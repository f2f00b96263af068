// Package postgres provides a pgvector-backed vector index. It is the
// self-hosted alternative to the Qdrant backend for deployments that already
// run PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/graphaura/graphaura/internal/storage"
	"github.com/graphaura/graphaura/pkg/types"
)

// schema is applied on open. The vector dimension is fixed per deployment
// and must match the embedding model.
const schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS entity_embeddings (
	entity_id   TEXT PRIMARY KEY,
	entity_type TEXT NOT NULL,
	embedding   vector(%d) NOT NULL,
	payload     JSONB,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_entity_embeddings_type ON entity_embeddings(entity_type);
`

// VectorIndex implements storage.VectorIndex using PostgreSQL with the
// pgvector extension.
type VectorIndex struct {
	db         *sql.DB
	dimensions int
}

// NewVectorIndex connects to PostgreSQL and creates the embeddings table.
func NewVectorIndex(dsn string, dimensions int) (*VectorIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive", storage.ErrInvalidInput)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to connect: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf(schema, dimensions)); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to create schema: %w", err)
	}
	return &VectorIndex{db: db, dimensions: dimensions}, nil
}

// Close closes the underlying database.
func (i *VectorIndex) Close() error {
	return i.db.Close()
}

// StoreEmbedding inserts or replaces the embedding for an entity.
func (i *VectorIndex) StoreEmbedding(ctx context.Context, entityID string, entityType types.EntityType, embedding []float32, payload map[string]interface{}) error {
	if entityID == "" {
		return fmt.Errorf("%w: entity ID is required", storage.ErrInvalidInput)
	}
	if len(embedding) != i.dimensions {
		return fmt.Errorf("%w: embedding length (%d) does not match index dimensions (%d)",
			storage.ErrInvalidInput, len(embedding), i.dimensions)
	}

	var payloadJSON interface{}
	if len(payload) > 0 {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		payloadJSON = string(data)
	}

	query := `
		INSERT INTO entity_embeddings (entity_id, entity_type, embedding, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT(entity_id) DO UPDATE SET
			entity_type = excluded.entity_type,
			embedding = excluded.embedding,
			payload = excluded.payload,
			updated_at = CURRENT_TIMESTAMP
	`
	_, err := i.db.ExecContext(ctx, query, entityID, string(entityType), pgvector.NewVector(embedding), payloadJSON)
	if err != nil {
		return fmt.Errorf("postgres: failed to store embedding for %s: %w", entityID, err)
	}
	return nil
}

// DeleteEmbedding removes the embedding for an entity. Returns false when
// no row existed.
func (i *VectorIndex) DeleteEmbedding(ctx context.Context, entityID string) (bool, error) {
	result, err := i.db.ExecContext(ctx, `DELETE FROM entity_embeddings WHERE entity_id = $1`, entityID)
	if err != nil {
		return false, fmt.Errorf("postgres: failed to delete embedding for %s: %w", entityID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("postgres: failed to check rows affected: %w", err)
	}
	return affected > 0, nil
}

// Search returns up to limit nearest neighbors by cosine similarity with
// score >= threshold, ordered by descending score.
func (i *VectorIndex) Search(ctx context.Context, query []float32, limit int, entityTypes []types.EntityType, threshold float64) ([]storage.VectorHit, error) {
	if limit <= 0 {
		limit = 10
	}
	if len(query) != i.dimensions {
		return nil, fmt.Errorf("%w: query length (%d) does not match index dimensions (%d)",
			storage.ErrInvalidInput, len(query), i.dimensions)
	}

	// <=> is cosine distance; similarity = 1 - distance.
	sqlQuery := `
		SELECT entity_id, entity_type, 1 - (embedding <=> $1) AS score
		FROM entity_embeddings
		WHERE 1 - (embedding <=> $1) >= $2
	`
	args := []interface{}{pgvector.NewVector(query), threshold}

	if len(entityTypes) > 0 {
		typeValues := make([]string, len(entityTypes))
		for n, t := range entityTypes {
			typeValues[n] = string(t)
		}
		sqlQuery += ` AND entity_type = ANY($3)`
		args = append(args, pq.Array(typeValues))
	}

	sqlQuery += fmt.Sprintf(` ORDER BY score DESC, entity_id LIMIT %d`, limit)

	rows, err := i.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: search failed: %w", err)
	}
	defer rows.Close()

	var hits []storage.VectorHit
	for rows.Next() {
		var hit storage.VectorHit
		if err := rows.Scan(&hit.EntityID, &hit.EntityType, &hit.Score); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan hit: %w", err)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: failed to iterate hits: %w", err)
	}
	return hits, nil
}

// Compile-time assertion.
var _ storage.VectorIndex = (*VectorIndex)(nil)
