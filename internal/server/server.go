// Package server provides HTTP server initialization and lifecycle
// management for the GraphAura API, including backend provider selection.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/graphaura/graphaura/internal/config"
	"github.com/graphaura/graphaura/internal/engine"
	"github.com/graphaura/graphaura/internal/ingest"
	"github.com/graphaura/graphaura/internal/llm"
	"github.com/graphaura/graphaura/internal/storage"
	"github.com/graphaura/graphaura/internal/storage/memory"
	"github.com/graphaura/graphaura/internal/storage/neo4j"
	"github.com/graphaura/graphaura/internal/storage/postgres"
	"github.com/graphaura/graphaura/internal/storage/qdrant"
	"github.com/graphaura/graphaura/internal/storage/sqlite"
	"github.com/graphaura/graphaura/web/handlers"
)

// OpenGraphStore builds the graph store selected by cfg.Graph.Backend:
// memory, demo (memory pre-seeded with the sample graph), sqlite or neo4j.
func OpenGraphStore(ctx context.Context, cfg *config.Config) (storage.GraphStore, error) {
	switch cfg.Graph.Backend {
	case "memory":
		store := memory.NewGraphStore()
		if cfg.Graph.SeedDemoData {
			if err := memory.SeedDemoGraph(ctx, store); err != nil {
				return nil, fmt.Errorf("failed to seed demo graph: %w", err)
			}
		}
		return store, nil
	case "demo":
		store := memory.NewGraphStore()
		if err := memory.SeedDemoGraph(ctx, store); err != nil {
			return nil, fmt.Errorf("failed to seed demo graph: %w", err)
		}
		return store, nil
	case "sqlite":
		dsn := filepath.Join(cfg.Graph.DataPath, "graphaura.db")
		return sqlite.NewGraphStore(dsn)
	case "neo4j":
		return neo4j.NewGraphStore(cfg.Graph.Neo4jURI, cfg.Graph.Neo4jUser, cfg.Graph.Neo4jPassword)
	default:
		return nil, fmt.Errorf("unknown graph backend %q (expected memory, demo, sqlite or neo4j)", cfg.Graph.Backend)
	}
}

// OpenVectorIndex builds the vector index selected by cfg.Vector.Backend:
// memory, qdrant or postgres.
func OpenVectorIndex(ctx context.Context, cfg *config.Config) (storage.VectorIndex, error) {
	switch cfg.Vector.Backend {
	case "memory":
		return memory.NewVectorIndex(), nil
	case "qdrant":
		return qdrant.NewVectorIndex(ctx, qdrant.Config{
			Host:       cfg.Vector.QdrantHost,
			Port:       cfg.Vector.QdrantPort,
			Collection: cfg.Vector.Collection,
			Dimensions: cfg.Vector.Dimensions,
		})
	case "postgres":
		return postgres.NewVectorIndex(cfg.Vector.PostgresDSN, cfg.Vector.Dimensions)
	default:
		return nil, fmt.Errorf("unknown vector backend %q (expected memory, qdrant or postgres)", cfg.Vector.Backend)
	}
}

// NewMux builds the API routing tree over the given backends. Split out of
// Start so tests can drive the full HTTP surface with httptest. The pipeline
// may be nil; the ingestion trigger endpoint is then not registered.
func NewMux(cfg *config.Config, store storage.GraphStore, index storage.VectorIndex, wsHub *handlers.WebSocketHub, pipeline *ingest.Pipeline) http.Handler {
	service := engine.NewGraphService(store, index)
	traversal := engine.NewTraversal(store, store)
	sampler := engine.NewSampler(store, store)
	similarity := engine.NewSimilaritySearch(store, index)

	entityHandlers := handlers.NewEntityHandlers(service)
	relationshipHandlers := handlers.NewRelationshipHandlers(service)
	searchHandlers := handlers.NewSearchHandlers(store, similarity)
	graphHandlers := handlers.NewGraphHandlers(traversal, sampler)
	statsHandler := handlers.NewStatsHandler(store)
	healthHandler := handlers.NewHealthHandler(store)

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/api/entities", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			entityHandlers.CreateEntity(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/entities/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			entityHandlers.GetEntity(w, r)
		case http.MethodPut:
			entityHandlers.UpdateEntity(w, r)
		case http.MethodDelete:
			entityHandlers.DeleteEntity(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/entities/{id}/relationships", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			entityHandlers.ListEntityRelationships(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/relationships", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			relationshipHandlers.CreateRelationship(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/relationships/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			relationshipHandlers.DeleteRelationship(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/search/entities", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			searchHandlers.SearchEntities(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/search/similar", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			searchHandlers.SearchSimilar(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/traverse", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			graphHandlers.Traverse(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/visualize", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			graphHandlers.Visualize(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/stats", statsHandler.GetStats)

	if pipeline != nil {
		if wsHub != nil {
			pipeline.SetBroadcaster(wsHub)
		}
		ingestHandlers := handlers.NewIngestHandlers(pipeline)
		apiMux.HandleFunc("/api/ingest", func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				ingestHandlers.StartIngestion(w, r)
			} else {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
		})
	}

	mux := http.NewServeMux()

	// Health endpoint is outside the auth-required prefix, used by monitors.
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			healthHandler.GetHealth(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.Handle("/api/", handlers.RequireAuth(apiMux, cfg))

	// WebSocket progress events; origin validation handles access control.
	if wsHub != nil {
		mux.Handle("/api/ws", wsHub)
	}

	rateLimiter := handlers.NewRateLimiter(cfg.Security.RateLimit, cfg.Security.RateBurst)
	handler := handlers.RateLimitMiddleware(mux, rateLimiter)
	return handlers.SecurityHeaders(handler)
}

// Start initializes and starts the HTTP server. Returns the actual address
// being listened on (useful for testing with port 0) and the WebSocketHub
// that carries ingestion progress to /api/ws clients. The server shuts down
// when ctx is cancelled.
func Start(ctx context.Context, cfg *config.Config, store storage.GraphStore, index storage.VectorIndex) (string, *handlers.WebSocketHub, error) {
	wsHub := handlers.NewWebSocketHub(fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
	go wsHub.Run()

	// Server-side ingestion needs an extractor; without an Anthropic key
	// the trigger endpoint stays unregistered and only the CLI ingests.
	var pipeline *ingest.Pipeline
	if cfg.LLM.AnthropicAPIKey != "" {
		extractor := llm.NewAnthropicExtractor(llm.AnthropicConfig{
			APIKey: cfg.LLM.AnthropicAPIKey,
			Model:  cfg.LLM.AnthropicModel,
		})
		var embedder llm.EmbeddingGenerator
		if cfg.LLM.OpenAIAPIKey != "" {
			embedder = llm.NewOpenAIEmbedder(llm.OpenAIEmbedderConfig{
				APIKey:  cfg.LLM.OpenAIAPIKey,
				BaseURL: cfg.LLM.OpenAIBaseURL,
				Model:   cfg.LLM.EmbeddingModel,
			})
		}
		pipeline = ingest.NewPipeline(store, store, index, extractor, embedder, ingest.PipelineConfig{
			MinChunkLength: cfg.Ingest.MinChunkLength,
			MaxChunkLength: cfg.Ingest.MaxChunkLength,
			PacingDelay:    cfg.Ingest.PacingDelay(),
		})
	}

	handler := NewMux(cfg, store, index, wsHub, pipeline)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		wsHub.Stop()
		return "", nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	actualAddr := listener.Addr().String()

	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		wsHub.Stop()
	}()

	return actualAddr, wsHub, nil
}
