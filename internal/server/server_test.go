package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphaura/graphaura/internal/config"
	"github.com/graphaura/graphaura/internal/ingest"
	"github.com/graphaura/graphaura/internal/storage/memory"
	"github.com/graphaura/graphaura/pkg/types"
	"github.com/graphaura/graphaura/web/handlers"
)

func testConfig() *config.Config {
	cfg, _ := config.LoadConfig()
	cfg.Security.SecurityMode = "development"
	cfg.Security.RateLimit = 10000
	cfg.Security.RateBurst = 10000
	return cfg
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	handler := NewMux(testConfig(), memory.NewGraphStore(), memory.NewVectorIndex(), nil, nil)
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method, url string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var decoded map[string]interface{}
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&decoded)
	}
	return resp, decoded
}

func createEntity(t *testing.T, base, entityType, name string) string {
	t.Helper()
	resp, body := doJSON(t, "POST", base+"/api/entities", map[string]interface{}{
		"type": entityType,
		"name": name,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id, _ := body["entity_id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestEntityLifecycle(t *testing.T) {
	server := newTestServer(t)
	base := server.URL

	id := createEntity(t, base, "person", "Ada Lovelace")

	t.Run("Get", func(t *testing.T) {
		resp, body := doJSON(t, "GET", base+"/api/entities/"+id, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Ada Lovelace", body["name"])
		assert.Equal(t, "person", body["type"])
	})

	t.Run("Update", func(t *testing.T) {
		resp, body := doJSON(t, "PUT", base+"/api/entities/"+id, map[string]interface{}{
			"description": "Mathematician",
			"era":         "victorian",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Mathematician", body["description"])
		props, _ := body["properties"].(map[string]interface{})
		assert.Equal(t, "victorian", props["era"])
	})

	t.Run("UpdateEmptyBody", func(t *testing.T) {
		resp, _ := doJSON(t, "PUT", base+"/api/entities/"+id, map[string]interface{}{})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Delete", func(t *testing.T) {
		resp, body := doJSON(t, "DELETE", base+"/api/entities/"+id, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, body["entity_deleted"])
		assert.Equal(t, false, body["embedding_deleted"])
	})

	t.Run("GetAfterDelete", func(t *testing.T) {
		resp, _ := doJSON(t, "GET", base+"/api/entities/"+id, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("DeleteAbsent", func(t *testing.T) {
		resp, _ := doJSON(t, "DELETE", base+"/api/entities/"+id, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestCreateEntityValidation(t *testing.T) {
	server := newTestServer(t)

	resp, body := doJSON(t, "POST", server.URL+"/api/entities", map[string]interface{}{
		"type": "starship",
		"name": "Enterprise",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, body["error"])

	resp, _ = doJSON(t, "POST", server.URL+"/api/entities", map[string]interface{}{
		"type": "person",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "name is required")
}

func TestRelationshipEndpoints(t *testing.T) {
	server := newTestServer(t)
	base := server.URL

	ada := createEntity(t, base, "person", "Ada Lovelace")
	cern := createEntity(t, base, "organization", "CERN")

	t.Run("DanglingEndpointRejected", func(t *testing.T) {
		resp, _ := doJSON(t, "POST", base+"/api/relationships", map[string]interface{}{
			"source_id": ada,
			"target_id": "person:ghost",
			"type":      "KNOWS",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode,
			"missing endpoints are client errors, not server errors")
	})

	var relID string
	t.Run("Create", func(t *testing.T) {
		resp, body := doJSON(t, "POST", base+"/api/relationships", map[string]interface{}{
			"source_id": ada,
			"target_id": cern,
			"type":      "works_for",
			"weight":    0.8,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		relID, _ = body["relationship_id"].(string)
		require.NotEmpty(t, relID)
	})

	t.Run("List", func(t *testing.T) {
		resp, body := doJSON(t, "GET", base+"/api/entities/"+ada+"/relationships?direction=out", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, float64(1), body["count"])

		rels, _ := body["relationships"].([]interface{})
		require.Len(t, rels, 1)
		rel, _ := rels[0].(map[string]interface{})
		assert.Equal(t, "WORKS_FOR", rel["type"], "types are stored uppercase")
	})

	t.Run("ListInvalidDirection", func(t *testing.T) {
		resp, _ := doJSON(t, "GET", base+"/api/entities/"+ada+"/relationships?direction=sideways", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("ListForAbsentEntity", func(t *testing.T) {
		resp, _ := doJSON(t, "GET", base+"/api/entities/person:ghost/relationships", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("GetWithRelationships", func(t *testing.T) {
		resp, body := doJSON(t, "GET", base+"/api/entities/"+ada+"?include_relationships=true", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		rels, _ := body["relationships"].([]interface{})
		assert.Len(t, rels, 1)
	})

	t.Run("Delete", func(t *testing.T) {
		resp, _ := doJSON(t, "DELETE", base+"/api/relationships/"+relID, nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, _ = doJSON(t, "DELETE", base+"/api/relationships/"+relID, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestSearchEntities(t *testing.T) {
	server := newTestServer(t)
	base := server.URL

	createEntity(t, base, "person", "Ada Lovelace")
	createEntity(t, base, "person", "Charles Babbage")
	createEntity(t, base, "organization", "Analytical Society")

	resp, body := doJSON(t, "POST", base+"/api/search/entities", map[string]interface{}{
		"type": "person",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["count"])

	resp, body = doJSON(t, "POST", base+"/api/search/entities", map[string]interface{}{
		"name": "ada",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["count"])

	resp, body = doJSON(t, "POST", base+"/api/search/entities?limit=1", map[string]interface{}{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["count"])
}

func TestSearchSimilar(t *testing.T) {
	server := newTestServer(t)
	base := server.URL

	resp, body := doJSON(t, "POST", base+"/api/entities", map[string]interface{}{
		"type":      "concept",
		"name":      "Graph Theory",
		"embedding": []float32{1, 0, 0},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id, _ := body["entity_id"].(string)

	resp, body = doJSON(t, "POST", base+"/api/search/similar", map[string]interface{}{
		"query_embedding": []float32{1, 0, 0},
		"threshold":       0.5,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(1), body["count"])

	results, _ := body["results"].([]interface{})
	require.Len(t, results, 1)
	hit, _ := results[0].(map[string]interface{})
	entity, _ := hit["entity"].(map[string]interface{})
	assert.Equal(t, id, entity["id"])
	assert.InDelta(t, 1.0, hit["similarity"], 1e-6)

	t.Run("MissingQueryEmbedding", func(t *testing.T) {
		resp, _ := doJSON(t, "POST", base+"/api/search/similar", map[string]interface{}{
			"limit": 5,
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestTraverseEndpoint(t *testing.T) {
	server := newTestServer(t)
	base := server.URL

	a := createEntity(t, base, "person", "A")
	b := createEntity(t, base, "person", "B")
	c := createEntity(t, base, "person", "C")

	for _, pair := range [][2]string{{a, b}, {b, c}} {
		resp, _ := doJSON(t, "POST", base+"/api/relationships", map[string]interface{}{
			"source_id": pair[0],
			"target_id": pair[1],
			"type":      "KNOWS",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	t.Run("DepthOne", func(t *testing.T) {
		resp, body := doJSON(t, "POST", base+"/api/traverse", map[string]interface{}{
			"start_entity_id": a,
			"max_depth":       1,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		nodes, _ := body["nodes"].([]interface{})
		assert.Len(t, nodes, 2)
	})

	t.Run("DepthZero", func(t *testing.T) {
		resp, body := doJSON(t, "POST", base+"/api/traverse", map[string]interface{}{
			"start_entity_id": a,
			"max_depth":       0,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		nodes, _ := body["nodes"].([]interface{})
		edges, _ := body["edges"].([]interface{})
		assert.Len(t, nodes, 1)
		assert.Empty(t, edges)
	})

	t.Run("UnknownStart", func(t *testing.T) {
		resp, _ := doJSON(t, "POST", base+"/api/traverse", map[string]interface{}{
			"start_entity_id": "person:ghost",
			"max_depth":       2,
		})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("MissingStart", func(t *testing.T) {
		resp, _ := doJSON(t, "POST", base+"/api/traverse", map[string]interface{}{
			"max_depth": 2,
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestVisualizeEndpoint(t *testing.T) {
	server := newTestServer(t)
	base := server.URL

	ids := make([]string, 4)
	for i := range ids {
		ids[i] = createEntity(t, base, "person", fmt.Sprintf("Person %d", i))
	}
	resp, _ := doJSON(t, "POST", base+"/api/relationships", map[string]interface{}{
		"source_id": ids[0],
		"target_id": ids[1],
		"type":      "KNOWS",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, "POST", base+"/api/visualize", map[string]interface{}{
		"max_nodes": 10,
		"max_edges": 10,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	nodes, _ := body["nodes"].([]interface{})
	edges, _ := body["edges"].([]interface{})
	assert.Len(t, nodes, 4)
	assert.Len(t, edges, 1)
	assert.Equal(t, "force", body["layout"], "layout hint defaults and echoes back")

	t.Run("EdgeBudgetStarvation", func(t *testing.T) {
		// 4 sampled nodes with max_edges 3 gives a floor-divided budget of
		// zero edges per node.
		resp, body := doJSON(t, "POST", base+"/api/visualize", map[string]interface{}{
			"max_nodes": 10,
			"max_edges": 3,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		edges, _ := body["edges"].([]interface{})
		assert.Empty(t, edges)
	})
}

func TestStatsAndHealth(t *testing.T) {
	server := newTestServer(t)
	base := server.URL

	createEntity(t, base, "person", "Ada")
	createEntity(t, base, "concept", "Computing")

	resp, body := doJSON(t, "GET", base+"/api/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["total_nodes"])
	nodes, _ := body["nodes"].(map[string]interface{})
	assert.Equal(t, float64(1), nodes["Person"])

	resp, body = doJSON(t, "GET", base+"/api/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
}

func TestAuthModes(t *testing.T) {
	cfg := testConfig()
	cfg.Security.SecurityMode = "production"
	cfg.Security.APIToken = "secret-token"

	handler := NewMux(cfg, memory.NewGraphStore(), memory.NewVectorIndex(), nil, nil)
	server := httptest.NewServer(handler)
	defer server.Close()

	t.Run("MissingToken", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/api/stats")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("WrongToken", func(t *testing.T) {
		req, _ := http.NewRequest("GET", server.URL+"/api/stats", nil)
		req.Header.Set("Authorization", "Bearer wrong")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("ValidToken", func(t *testing.T) {
		req, _ := http.NewRequest("GET", server.URL+"/api/stats", nil)
		req.Header.Set("Authorization", "Bearer secret-token")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("HealthBypassesAuth", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/api/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestSecurityHeaders(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RateLimit = 1
	cfg.Security.RateBurst = 2

	handler := NewMux(cfg, memory.NewGraphStore(), memory.NewVectorIndex(), nil, nil)
	server := httptest.NewServer(handler)
	defer server.Close()

	var limited bool
	for i := 0; i < 5; i++ {
		resp, err := http.Get(server.URL + "/api/health")
		require.NoError(t, err)
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
		}
	}
	assert.True(t, limited, "burst exhaustion triggers 429")
}

func TestOpenGraphStoreBackends(t *testing.T) {
	ctx := context.Background()

	t.Run("Memory", func(t *testing.T) {
		cfg := testConfig()
		store, err := OpenGraphStore(ctx, cfg)
		require.NoError(t, err)
		defer store.Close()

		stats, err := store.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, len(stats.Relationships))
	})

	t.Run("Demo", func(t *testing.T) {
		cfg := testConfig()
		cfg.Graph.Backend = "demo"
		store, err := OpenGraphStore(ctx, cfg)
		require.NoError(t, err)
		defer store.Close()

		stats, err := store.Stats(ctx)
		require.NoError(t, err)
		total := 0
		for _, n := range stats.Nodes {
			total += n
		}
		assert.Greater(t, total, 0, "demo backend seeds sample data")
	})

	t.Run("Unknown", func(t *testing.T) {
		cfg := testConfig()
		cfg.Graph.Backend = "etcd"
		_, err := OpenGraphStore(ctx, cfg)
		assert.Error(t, err)
	})
}

func TestOpenVectorIndexUnknownBackend(t *testing.T) {
	cfg := testConfig()
	cfg.Vector.Backend = "faiss"
	_, err := OpenVectorIndex(context.Background(), cfg)
	assert.Error(t, err)
}

func TestWebSocketRouteRegistered(t *testing.T) {
	cfg := testConfig()
	hub := handlers.NewWebSocketHub("")
	go hub.Run()
	defer hub.Stop()

	handler := NewMux(cfg, memory.NewGraphStore(), memory.NewVectorIndex(), hub, nil)
	server := httptest.NewServer(handler)
	defer server.Close()

	// A plain GET without the upgrade handshake is rejected by the hub, not
	// routed to a 404.
	resp, err := http.Get(server.URL + "/api/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.NotEqual(t, http.StatusNotFound, resp.StatusCode)
}

// gatedExtractor parks every extraction until released, so tests can observe
// the server while a run is in flight.
type gatedExtractor struct {
	release chan struct{}
	result  *types.ExtractionResult
}

func (g *gatedExtractor) Extract(ctx context.Context, text string) (*types.ExtractionResult, error) {
	<-g.release
	return g.result, nil
}

func (g *gatedExtractor) GetModel() string { return "gated" }

func TestIngestEndpoint(t *testing.T) {
	dir := t.TempDir()
	content := "Ada Lovelace wrote the first published algorithm for the Analytical Engine."
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ada.txt"), []byte(content), 0o644))

	store := memory.NewGraphStore()
	extractor := &gatedExtractor{
		release: make(chan struct{}),
		result: &types.ExtractionResult{
			Entities: []types.ExtractedEntity{{Type: "person", Name: "Ada Lovelace", ConfidenceScore: 0.9}},
		},
	}
	pipeline := ingest.NewPipeline(store, store, nil, extractor, nil, ingest.PipelineConfig{})

	hub := handlers.NewWebSocketHub("")
	go hub.Run()
	defer hub.Stop()
	client := &handlers.MockClient{SendChan: make(chan []byte, 8)}
	hub.Register(client)

	handler := NewMux(testConfig(), store, memory.NewVectorIndex(), hub, pipeline)
	server := httptest.NewServer(handler)
	defer server.Close()

	t.Run("MissingSourceDir", func(t *testing.T) {
		resp, _ := doJSON(t, "POST", server.URL+"/api/ingest", map[string]interface{}{})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	resp, body := doJSON(t, "POST", server.URL+"/api/ingest", map[string]interface{}{"source_dir": dir})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "started", body["status"])

	// The first run is parked inside the extractor, so a second start
	// conflicts instead of racing it.
	resp, _ = doJSON(t, "POST", server.URL+"/api/ingest", map[string]interface{}{"source_dir": dir})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	close(extractor.release)

	require.Eventually(t, func() bool {
		_, err := store.GetEntity(context.Background(), "person_ada_lovelace_0")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond, "the background run persists extracted entities")

	select {
	case msg := <-client.SendChan:
		assert.Contains(t, string(msg), "document_done")
	case <-time.After(2 * time.Second):
		t.Fatal("no progress event reached the websocket client")
	}
}

func TestIngestRouteAbsentWithoutPipeline(t *testing.T) {
	server := newTestServer(t)
	resp, _ := doJSON(t, "POST", server.URL+"/api/ingest", map[string]interface{}{"source_dir": t.TempDir()})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
