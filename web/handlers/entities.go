package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/graphaura/graphaura/internal/engine"
	"github.com/graphaura/graphaura/internal/storage"
	"github.com/graphaura/graphaura/pkg/types"
)

// EntityHandlers contains the HTTP handlers for entity CRUD.
type EntityHandlers struct {
	service *engine.GraphService
}

// NewEntityHandlers creates an EntityHandlers instance.
func NewEntityHandlers(service *engine.GraphService) *EntityHandlers {
	return &EntityHandlers{service: service}
}

// CreateEntityRequest represents the request body for creating an entity.
// The ID is assigned by the server.
type CreateEntityRequest struct {
	Type            string           `json:"type"`
	Name            string           `json:"name"`
	Description     string           `json:"description,omitempty"`
	Properties      types.Properties `json:"properties,omitempty"`
	ConfidenceScore float64          `json:"confidence_score,omitempty"`
	Embedding       []float32        `json:"embedding,omitempty"`
}

// CreateEntityResponse is the response for POST /api/entities.
type CreateEntityResponse struct {
	EntityID   string `json:"entity_id"`
	EntityType string `json:"entity_type"`
}

// CreateEntity handles POST /api/entities. The entity is upserted into the
// graph store and, when an embedding is attached, indexed for similarity
// search as well.
func (h *EntityHandlers) CreateEntity(w http.ResponseWriter, r *http.Request) {
	var req CreateEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse request body", err)
		return
	}

	entityType, err := types.ParseEntityType(req.Type)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid entity type", err)
		return
	}

	entity := &types.Entity{
		Type:            entityType,
		Name:            req.Name,
		Description:     req.Description,
		Properties:      req.Properties,
		ConfidenceScore: req.ConfidenceScore,
		Embedding:       req.Embedding,
	}

	id, err := h.service.CreateEntity(r.Context(), entity)
	if err != nil {
		respondStorageError(w, "failed to create entity", err)
		return
	}

	respondJSON(w, http.StatusCreated, CreateEntityResponse{
		EntityID:   id,
		EntityType: string(entityType),
	})
}

// EntityResponse is an entity optionally bundled with its relationships.
type EntityResponse struct {
	*types.Entity
	Relationships []*types.Relationship `json:"relationships,omitempty"`
}

// GetEntity handles GET /api/entities/{id}. With
// include_relationships=true, incident relationships in both directions are
// attached.
func (h *EntityHandlers) GetEntity(w http.ResponseWriter, r *http.Request) {
	id := extractID(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "entity ID is required", nil)
		return
	}

	entity, err := h.service.Store().GetEntity(r.Context(), id)
	if err != nil {
		respondStorageError(w, "failed to get entity", err)
		return
	}

	resp := EntityResponse{Entity: entity}
	if r.URL.Query().Get("include_relationships") == "true" {
		rels, err := h.service.Store().ListRelationships(r.Context(), id, storage.DirectionBoth)
		if err != nil {
			respondStorageError(w, "failed to list relationships", err)
			return
		}
		resp.Relationships = rels
	}

	respondJSON(w, http.StatusOK, resp)
}

// UpdateEntity handles PUT /api/entities/{id} - apply a partial update.
// The body is a flat JSON object; recognized field names patch the entity
// record, anything else lands in Properties.
func (h *EntityHandlers) UpdateEntity(w http.ResponseWriter, r *http.Request) {
	id := extractID(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "entity ID is required", nil)
		return
	}

	var fields map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse request body", err)
		return
	}
	if len(fields) == 0 {
		respondError(w, http.StatusBadRequest, "update body must not be empty", nil)
		return
	}

	updated, err := h.service.Store().UpdateEntity(r.Context(), id, fields)
	if err != nil {
		respondStorageError(w, "failed to update entity", err)
		return
	}
	if !updated {
		respondError(w, http.StatusNotFound, "entity not found", nil)
		return
	}

	entity, err := h.service.Store().GetEntity(r.Context(), id)
	if err != nil {
		respondStorageError(w, "failed to get updated entity", err)
		return
	}
	respondJSON(w, http.StatusOK, entity)
}

// DeleteEntityResponse reports each sub-operation of the cascading delete.
type DeleteEntityResponse struct {
	EntityID         string `json:"entity_id"`
	EntityDeleted    bool   `json:"entity_deleted"`
	EmbeddingDeleted bool   `json:"embedding_deleted"`
}

// DeleteEntity handles DELETE /api/entities/{id}. The graph delete (which
// cascades incident relationships) and the embedding delete are both
// attempted; the response reports both outcomes independently.
func (h *EntityHandlers) DeleteEntity(w http.ResponseWriter, r *http.Request) {
	id := extractID(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "entity ID is required", nil)
		return
	}

	result := h.service.DeleteEntity(r.Context(), id)
	if result.EntityErr != nil && !errors.Is(result.EntityErr, storage.ErrNotFound) {
		respondStorageError(w, "failed to delete entity", result.EntityErr)
		return
	}
	if !result.EntityDeleted && !result.EmbeddingDeleted {
		respondError(w, http.StatusNotFound, "entity not found", nil)
		return
	}

	respondJSON(w, http.StatusOK, DeleteEntityResponse{
		EntityID:         id,
		EntityDeleted:    result.EntityDeleted,
		EmbeddingDeleted: result.EmbeddingDeleted,
	})
}

// ListEntityRelationships handles GET /api/entities/{id}/relationships.
// The direction query parameter accepts in, out or both (default both);
// anything else is rejected before the store is called.
func (h *EntityHandlers) ListEntityRelationships(w http.ResponseWriter, r *http.Request) {
	id := extractID(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "entity ID is required", nil)
		return
	}

	direction, err := storage.ParseDirection(r.URL.Query().Get("direction"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid direction", err)
		return
	}

	// 404 for an unknown entity, not an empty list.
	if _, err := h.service.Store().GetEntity(r.Context(), id); err != nil {
		respondStorageError(w, "failed to get entity", err)
		return
	}

	rels, err := h.service.Store().ListRelationships(r.Context(), id, direction)
	if err != nil {
		respondStorageError(w, "failed to list relationships", err)
		return
	}
	if rels == nil {
		rels = []*types.Relationship{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"entity_id":     id,
		"direction":     direction,
		"count":         len(rels),
		"relationships": rels,
	})
}
