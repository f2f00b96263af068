package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/graphaura/graphaura/internal/engine"
	"github.com/graphaura/graphaura/internal/storage"
	"github.com/graphaura/graphaura/pkg/types"
)

// SearchHandlers contains the HTTP handlers for entity lookup and similarity
// search.
type SearchHandlers struct {
	entities   storage.EntityStore
	similarity *engine.SimilaritySearch
}

// NewSearchHandlers creates a SearchHandlers instance.
func NewSearchHandlers(entities storage.EntityStore, similarity *engine.SimilaritySearch) *SearchHandlers {
	return &SearchHandlers{entities: entities, similarity: similarity}
}

// EntityFilterRequest represents the request body for filtered entity search.
// All present conditions must match.
type EntityFilterRequest struct {
	Type       string           `json:"type,omitempty"`
	Name       string           `json:"name,omitempty"`
	Properties types.Properties `json:"properties,omitempty"`
}

// SearchEntities handles POST /api/search/entities?limit&offset.
func (h *SearchHandlers) SearchEntities(w http.ResponseWriter, r *http.Request) {
	var req EntityFilterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse request body", err)
		return
	}

	filter := storage.EntityFilter{
		Name:       req.Name,
		Properties: req.Properties,
	}
	if req.Type != "" {
		entityType, err := types.ParseEntityType(req.Type)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid entity type", err)
			return
		}
		filter.Type = entityType
	}

	limit := parseInt(r.URL.Query().Get("limit"), 50)
	offset := parseInt(r.URL.Query().Get("offset"), 0)
	if limit > 1000 {
		limit = 1000
	}

	entities, err := h.entities.FindEntities(r.Context(), filter, limit, offset)
	if err != nil {
		respondStorageError(w, "failed to search entities", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(entities),
		"entities": entities,
	})
}

// SimilarSearchRequest represents the request body for similarity search.
type SimilarSearchRequest struct {
	QueryEmbedding []float32 `json:"query_embedding"`
	Limit          int       `json:"limit,omitempty"`
	EntityTypes    []string  `json:"entity_types,omitempty"`
	Threshold      float64   `json:"threshold,omitempty"`
}

// SearchSimilar handles POST /api/search/similar. Hits whose entities have
// since been deleted from the graph store are dropped, so the returned count
// may be below limit.
func (h *SearchHandlers) SearchSimilar(w http.ResponseWriter, r *http.Request) {
	var req SimilarSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse request body", err)
		return
	}
	if len(req.QueryEmbedding) == 0 {
		respondError(w, http.StatusBadRequest, "query_embedding is required", nil)
		return
	}

	var entityTypes []types.EntityType
	for _, raw := range req.EntityTypes {
		entityType, err := types.ParseEntityType(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid entity type", err)
			return
		}
		entityTypes = append(entityTypes, entityType)
	}

	results, err := h.similarity.Search(r.Context(), req.QueryEmbedding, req.Limit, entityTypes, req.Threshold)
	if err != nil {
		respondStorageError(w, "similarity search failed", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":     len(results),
		"threshold": req.Threshold,
		"results":   results,
	})
}
