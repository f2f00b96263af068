package handlers

import (
	"net/http"

	"github.com/graphaura/graphaura/internal/storage"
)

// StatsHandler handles the statistics endpoint.
type StatsHandler struct {
	store storage.GraphStore
}

// NewStatsHandler creates a StatsHandler instance.
func NewStatsHandler(store storage.GraphStore) *StatsHandler {
	return &StatsHandler{store: store}
}

// StatsResponse is the response format for GET /api/stats.
type StatsResponse struct {
	Nodes              map[string]int `json:"nodes"`
	Relationships      map[string]int `json:"relationships"`
	TotalNodes         int            `json:"total_nodes"`
	TotalRelationships int            `json:"total_relationships"`
}

// GetStats handles GET /api/stats - node counts per entity type and edge
// counts per relationship type.
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		respondStorageError(w, "failed to collect stats", err)
		return
	}

	resp := StatsResponse{
		Nodes:         stats.Nodes,
		Relationships: stats.Relationships,
	}
	for _, n := range stats.Nodes {
		resp.TotalNodes += n
	}
	for _, n := range stats.Relationships {
		resp.TotalRelationships += n
	}
	respondJSON(w, http.StatusOK, resp)
}

// HealthHandler reports liveness and backend readiness.
type HealthHandler struct {
	store storage.GraphStore
}

// NewHealthHandler creates a HealthHandler instance.
func NewHealthHandler(store storage.GraphStore) *HealthHandler {
	return &HealthHandler{store: store}
}

// GetHealth handles GET /api/health. The graph store is probed with a cheap
// stats call; a failing backend degrades the status but still returns 200 so
// load balancers can distinguish "up but degraded" from "down".
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	graphStatus := "ok"
	if _, err := h.store.Stats(r.Context()); err != nil {
		status = "degraded"
		graphStatus = err.Error()
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      status,
		"graph_store": graphStatus,
	})
}
