// Package qdrant provides the Qdrant vector index backend over gRPC.
// Points are keyed by a UUID derived deterministically from the entity ID,
// so storing an embedding for the same entity always replaces the previous
// point. The entity ID and type travel in the payload.
package qdrant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/graphaura/graphaura/internal/storage"
	"github.com/graphaura/graphaura/pkg/types"
)

// Config holds the connection settings for the Qdrant backend.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Dimensions int
}

// VectorIndex implements storage.VectorIndex on a Qdrant collection.
type VectorIndex struct {
	client     *qdrant.Client
	collection string
}

// NewVectorIndex connects to Qdrant and creates the collection with cosine
// distance if it does not exist yet.
func NewVectorIndex(ctx context.Context, cfg Config) (*VectorIndex, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to connect: %w", err)
	}

	index := &VectorIndex{client: client, collection: cfg.Collection}
	if err := index.ensureCollection(ctx, uint64(cfg.Dimensions)); err != nil {
		client.Close()
		return nil, err
	}
	return index, nil
}

func (i *VectorIndex) ensureCollection(ctx context.Context, dimensions uint64) error {
	exists, err := i.client.CollectionExists(ctx, i.collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection: %w", err)
	}
	if exists {
		return nil
	}

	err = i.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: i.collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     dimensions,
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %s: %w", i.collection, err)
	}
	return nil
}

// Close closes the gRPC connection.
func (i *VectorIndex) Close() error {
	return i.client.Close()
}

// pointID derives a stable point UUID from the entity ID, so repeated
// stores for the same entity overwrite one point.
func pointID(entityID string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(entityID)).String())
}

// StoreEmbedding inserts or replaces the embedding for an entity.
func (i *VectorIndex) StoreEmbedding(ctx context.Context, entityID string, entityType types.EntityType, embedding []float32, payload map[string]interface{}) error {
	if len(embedding) == 0 {
		return fmt.Errorf("%w: embedding is required", storage.ErrInvalidInput)
	}

	values := map[string]any{
		"entity_id":   entityID,
		"entity_type": string(entityType),
	}
	for k, v := range payload {
		values[k] = v
	}

	wait := true
	_, err := i.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: i.collection,
		Wait:           &wait,
		Points: []*qdrant.PointStruct{
			{
				Id:      pointID(entityID),
				Vectors: qdrant.NewVectors(embedding...),
				Payload: qdrant.NewValueMap(values),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to store embedding for %s: %w", entityID, err)
	}
	return nil
}

// DeleteEmbedding removes the embedding for an entity. Returns false when
// no point was stored for the entity.
func (i *VectorIndex) DeleteEmbedding(ctx context.Context, entityID string) (bool, error) {
	points, err := i.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: i.collection,
		Ids:            []*qdrant.PointId{pointID(entityID)},
	})
	if err != nil {
		return false, fmt.Errorf("qdrant: failed to look up embedding for %s: %w", entityID, err)
	}
	if len(points) == 0 {
		return false, nil
	}

	wait := true
	_, err = i.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: i.collection,
		Wait:           &wait,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{
					Ids: []*qdrant.PointId{pointID(entityID)},
				},
			},
		},
	})
	if err != nil {
		return false, fmt.Errorf("qdrant: failed to delete embedding for %s: %w", entityID, err)
	}
	return true, nil
}

// Search returns up to limit nearest neighbors with score >= threshold,
// optionally restricted to entity types via a payload filter.
func (i *VectorIndex) Search(ctx context.Context, query []float32, limit int, entityTypes []types.EntityType, threshold float64) ([]storage.VectorHit, error) {
	if limit <= 0 {
		limit = 10
	}

	queryLimit := uint64(limit)
	scoreThreshold := float32(threshold)
	req := &qdrant.QueryPoints{
		CollectionName: i.collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &queryLimit,
		ScoreThreshold: &scoreThreshold,
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true},
		},
	}

	if len(entityTypes) > 0 {
		keywords := make([]string, len(entityTypes))
		for n, t := range entityTypes {
			keywords[n] = string(t)
		}
		req.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{
				{
					ConditionOneOf: &qdrant.Condition_Field{
						Field: &qdrant.FieldCondition{
							Key: "entity_type",
							Match: &qdrant.Match{
								MatchValue: &qdrant.Match_Keywords{
									Keywords: &qdrant.RepeatedStrings{Strings: keywords},
								},
							},
						},
					},
				},
			},
		}
	}

	results, err := i.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	hits := make([]storage.VectorHit, 0, len(results))
	for _, point := range results {
		hit := storage.VectorHit{Score: float64(point.Score)}
		if v, ok := point.Payload["entity_id"]; ok {
			hit.EntityID = v.GetStringValue()
		}
		if v, ok := point.Payload["entity_type"]; ok {
			hit.EntityType = v.GetStringValue()
		}
		if hit.EntityID == "" {
			// A point without an entity_id payload cannot be hydrated.
			continue
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Compile-time assertion.
var _ storage.VectorIndex = (*VectorIndex)(nil)
