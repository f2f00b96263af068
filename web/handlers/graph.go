package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/graphaura/graphaura/internal/engine"
	"github.com/graphaura/graphaura/internal/storage"
	"github.com/graphaura/graphaura/pkg/types"
)

// GraphHandlers contains the HTTP handlers for traversal and visualization.
type GraphHandlers struct {
	traversal *engine.Traversal
	sampler   *engine.Sampler
}

// NewGraphHandlers creates a GraphHandlers instance.
func NewGraphHandlers(traversal *engine.Traversal, sampler *engine.Sampler) *GraphHandlers {
	return &GraphHandlers{traversal: traversal, sampler: sampler}
}

// TraverseRequest represents the request body for bounded graph traversal.
type TraverseRequest struct {
	StartEntityID          string `json:"start_entity_id"`
	MaxDepth               int    `json:"max_depth"`
	Direction              string `json:"direction,omitempty"`
	RelationshipTypeFilter string `json:"relationship_type_filter,omitempty"`
}

// Traverse handles POST /api/traverse. max_depth 0 returns only the start
// entity; an unknown start entity is a 404.
func (h *GraphHandlers) Traverse(w http.ResponseWriter, r *http.Request) {
	var req TraverseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse request body", err)
		return
	}
	if req.StartEntityID == "" {
		respondError(w, http.StatusBadRequest, "start_entity_id is required", nil)
		return
	}

	direction, err := storage.ParseDirection(req.Direction)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid direction", err)
		return
	}

	result, err := h.traversal.Traverse(r.Context(), req.StartEntityID, req.MaxDepth, direction, req.RelationshipTypeFilter)
	if err != nil {
		respondStorageError(w, "traversal failed", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"start_entity": req.StartEntityID,
		"max_depth":    req.MaxDepth,
		"nodes":        result.Nodes,
		"edges":        result.Edges,
	})
}

// VisualizeRequest represents the request body for the visualization sampler.
type VisualizeRequest struct {
	EntityFilter   EntityFilterRequest `json:"entity_filter"`
	MaxNodes       int                 `json:"max_nodes,omitempty"`
	MaxEdges       int                 `json:"max_edges,omitempty"`
	Layout         string              `json:"layout,omitempty"`
	ShowLabels     bool                `json:"show_labels"`
	ShowProperties bool                `json:"show_properties"`
}

// Visualize handles POST /api/visualize - return a budgeted node/edge sample
// for rendering. Layout and show_labels are presentation hints echoed back to
// the client; the sampling itself is layout-agnostic.
func (h *GraphHandlers) Visualize(w http.ResponseWriter, r *http.Request) {
	var req VisualizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse request body", err)
		return
	}

	filter := storage.EntityFilter{
		Name:       req.EntityFilter.Name,
		Properties: req.EntityFilter.Properties,
	}
	if req.EntityFilter.Type != "" {
		entityType, err := types.ParseEntityType(req.EntityFilter.Type)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid entity type", err)
			return
		}
		filter.Type = entityType
	}

	if req.Layout == "" {
		req.Layout = "force"
	}

	result, err := h.sampler.Sample(r.Context(), engine.SampleOptions{
		Filter:         filter,
		MaxNodes:       req.MaxNodes,
		MaxEdges:       req.MaxEdges,
		ShowProperties: req.ShowProperties,
	})
	if err != nil {
		respondStorageError(w, "visualization sampling failed", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"nodes":  result.Nodes,
		"edges":  result.Edges,
		"layout": req.Layout,
		"options": map[string]interface{}{
			"show_labels":     req.ShowLabels,
			"show_properties": req.ShowProperties,
			"max_nodes":       req.MaxNodes,
			"max_edges":       req.MaxEdges,
		},
	})
}
