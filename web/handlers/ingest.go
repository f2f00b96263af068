package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync/atomic"

	"github.com/graphaura/graphaura/internal/ingest"
)

// IngestRunner is the slice of the ingestion pipeline the handler drives.
type IngestRunner interface {
	Run(ctx context.Context, source ingest.DocumentSource, maxDocuments int) (*ingest.RunStats, error)
}

// IngestHandlers starts extraction runs over a document directory. At most
// one run is active at a time; per-document progress reaches clients through
// the websocket hub wired into the pipeline.
type IngestHandlers struct {
	runner  IngestRunner
	running atomic.Bool
}

// NewIngestHandlers creates handlers for triggering ingestion runs.
func NewIngestHandlers(runner IngestRunner) *IngestHandlers {
	return &IngestHandlers{runner: runner}
}

// IngestRequest is the request body for starting an ingestion run.
type IngestRequest struct {
	SourceDir    string `json:"source_dir"`
	MaxDocuments int    `json:"max_documents"`
}

// StartIngestion handles POST /api/ingest. The run itself happens in the
// background and outlives the request; the response only acknowledges the
// start. Clients follow progress over /api/ws.
func (h *IngestHandlers) StartIngestion(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.SourceDir == "" {
		respondError(w, http.StatusBadRequest, "source_dir is required", nil)
		return
	}
	if !h.running.CompareAndSwap(false, true) {
		respondError(w, http.StatusConflict, "An ingestion run is already in progress", nil)
		return
	}

	source := &ingest.FileSource{Dir: req.SourceDir}
	go func() {
		defer h.running.Store(false)
		stats, err := h.runner.Run(context.Background(), source, req.MaxDocuments)
		if err != nil {
			log.Printf("Ingestion run failed: %v", err)
			return
		}
		log.Printf("Ingestion run complete: %d documents, %d entities, %d relationships (%d skipped)",
			stats.Documents, stats.Entities, stats.Relationships, stats.RelationshipsSkipped)
	}()

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":     "started",
		"source_dir": req.SourceDir,
	})
}
