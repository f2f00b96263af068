package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/graphaura/graphaura/internal/engine"
	"github.com/graphaura/graphaura/pkg/types"
)

// RelationshipHandlers contains the HTTP handlers for relationship writes.
type RelationshipHandlers struct {
	service *engine.GraphService
}

// NewRelationshipHandlers creates a RelationshipHandlers instance.
func NewRelationshipHandlers(service *engine.GraphService) *RelationshipHandlers {
	return &RelationshipHandlers{service: service}
}

// CreateRelationshipRequest represents the request body for creating a
// relationship.
type CreateRelationshipRequest struct {
	SourceID        string           `json:"source_id"`
	TargetID        string           `json:"target_id"`
	Type            string           `json:"type"`
	Weight          float64          `json:"weight,omitempty"`
	ConfidenceScore float64          `json:"confidence_score,omitempty"`
	Properties      types.Properties `json:"properties,omitempty"`
}

// CreateRelationship handles POST /api/relationships. A relationship whose
// source or target does not exist is rejected with a 400; endpoints are
// never auto-created as placeholders.
func (h *RelationshipHandlers) CreateRelationship(w http.ResponseWriter, r *http.Request) {
	var req CreateRelationshipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse request body", err)
		return
	}

	rel := &types.Relationship{
		SourceID:        req.SourceID,
		TargetID:        req.TargetID,
		Type:            req.Type,
		Weight:          req.Weight,
		ConfidenceScore: req.ConfidenceScore,
		Properties:      req.Properties,
	}

	id, err := h.service.Store().CreateRelationship(r.Context(), rel)
	if err != nil {
		respondStorageError(w, "failed to create relationship", err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"relationship_id": id,
		"source_id":       req.SourceID,
		"target_id":       req.TargetID,
	})
}

// DeleteRelationship handles DELETE /api/relationships/{id}.
func (h *RelationshipHandlers) DeleteRelationship(w http.ResponseWriter, r *http.Request) {
	id := extractID(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "relationship ID is required", nil)
		return
	}

	deleted, err := h.service.Store().DeleteRelationship(r.Context(), id)
	if err != nil {
		respondStorageError(w, "failed to delete relationship", err)
		return
	}
	if !deleted {
		respondError(w, http.StatusNotFound, "relationship not found", nil)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
