package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "memory", cfg.Graph.Backend)
	assert.Equal(t, "memory", cfg.Vector.Backend)
	assert.Equal(t, "graphaura_entities", cfg.Vector.Collection)
	assert.Equal(t, 1536, cfg.Vector.Dimensions)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.LLM.AnthropicModel)
	assert.Equal(t, "text-embedding-3-small", cfg.LLM.EmbeddingModel)
	assert.Equal(t, "development", cfg.Security.SecurityMode)
	assert.Equal(t, 50, cfg.Ingest.MinChunkLength)
	assert.Equal(t, 4000, cfg.Ingest.MaxChunkLength)
	assert.Equal(t, 500*time.Millisecond, cfg.Ingest.PacingDelay())
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("GRAPHAURA_PORT", "9000")
	t.Setenv("GRAPHAURA_GRAPH_BACKEND", "neo4j")
	t.Setenv("GRAPHAURA_NEO4J_URI", "bolt://graph:7687")
	t.Setenv("GRAPHAURA_SEED_DEMO_DATA", "true")
	t.Setenv("GRAPHAURA_RATE_LIMIT", "10.5")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "neo4j", cfg.Graph.Backend)
	assert.Equal(t, "bolt://graph:7687", cfg.Graph.Neo4jURI)
	assert.True(t, cfg.Graph.SeedDemoData)
	assert.Equal(t, 10.5, cfg.Security.RateLimit)
}

func TestLoadConfigInvalidValuesFallBack(t *testing.T) {
	t.Setenv("GRAPHAURA_PORT", "not-a-port")
	t.Setenv("GRAPHAURA_SEED_DEMO_DATA", "maybe")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.False(t, cfg.Graph.SeedDemoData)
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Setenv("GRAPHAURA_PORT", "9000")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9999
graph:
  backend: sqlite
  data_path: /var/lib/graphaura
ingest:
  pacing_delay_ms: 50
`), 0o644))

	cfg, err := LoadConfigFromFile(path)
	require.NoError(t, err)

	// File values win over environment values.
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Graph.Backend)
	assert.Equal(t, "/var/lib/graphaura", cfg.Graph.DataPath)
	assert.Equal(t, 50*time.Millisecond, cfg.Ingest.PacingDelay())

	// Fields absent from the file keep their defaults.
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "memory", cfg.Vector.Backend)
}

func TestLoadConfigFileViaEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 7777\n"), 0o644))
	t.Setenv("GRAPHAURA_CONFIG_FILE", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 7777, cfg.Server.Port)
}

func TestLoadConfigFileErrors(t *testing.T) {
	_, err := LoadConfigFromFile("/nonexistent/config.yaml")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))
	_, err = LoadConfigFromFile(path)
	assert.Error(t, err)
}
