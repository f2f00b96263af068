// Package config provides configuration management for GraphAura.
// It loads settings from environment variables with the GRAPHAURA_ prefix
// and provides sensible defaults for all configuration options.
//
// An optional YAML file can override the environment: set
// GRAPHAURA_CONFIG_FILE or pass a path to LoadConfigFromFile. File values
// take precedence over environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the GraphAura application.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Graph    GraphConfig    `yaml:"graph"`
	Vector   VectorConfig   `yaml:"vector"`
	LLM      LLMConfig      `yaml:"llm"`
	Security SecurityConfig `yaml:"security"`
	Ingest   IngestConfig   `yaml:"ingest"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"` // Server port (default: 8000)
	Host string `yaml:"host"` // Server host (default: 127.0.0.1)
}

// GraphConfig selects and configures the graph store backend.
type GraphConfig struct {
	Backend       string `yaml:"backend"`        // Graph backend: memory, demo, sqlite, neo4j (default: memory)
	DataPath      string `yaml:"data_path"`      // Data directory for the sqlite backend (default: ./data)
	Neo4jURI      string `yaml:"neo4j_uri"`      // Neo4j bolt URI (default: bolt://localhost:7687)
	Neo4jUser     string `yaml:"neo4j_user"`     // Neo4j username (default: neo4j)
	Neo4jPassword string `yaml:"neo4j_password"` // Neo4j password
	SeedDemoData  bool   `yaml:"seed_demo_data"` // Seed the demo graph on startup (default: false)
}

// VectorConfig selects and configures the vector index backend.
type VectorConfig struct {
	Backend     string `yaml:"backend"`      // Vector backend: memory, qdrant, postgres (default: memory)
	QdrantHost  string `yaml:"qdrant_host"`  // Qdrant gRPC host (default: localhost)
	QdrantPort  int    `yaml:"qdrant_port"`  // Qdrant gRPC port (default: 6334)
	Collection  string `yaml:"collection"`   // Vector collection name (default: graphaura_entities)
	PostgresDSN string `yaml:"postgres_dsn"` // Postgres DSN for the pgvector backend
	Dimensions  int    `yaml:"dimensions"`   // Embedding dimensions (default: 1536)
}

// LLMConfig contains extraction and embedding provider configuration.
type LLMConfig struct {
	AnthropicAPIKey string `yaml:"anthropic_api_key"` // Anthropic API key for extraction
	AnthropicModel  string `yaml:"anthropic_model"`   // Anthropic model name (default: claude-sonnet-4-20250514)
	OpenAIAPIKey    string `yaml:"openai_api_key"`    // OpenAI API key for embeddings
	OpenAIBaseURL   string `yaml:"openai_base_url"`   // Override for OpenAI-compatible endpoints
	EmbeddingModel  string `yaml:"embedding_model"`   // Embedding model name (default: text-embedding-3-small)
}

// SecurityConfig contains security and authentication settings.
type SecurityConfig struct {
	SecurityMode string  `yaml:"security_mode"`  // Security mode: development, production (default: development)
	APIToken     string  `yaml:"api_token"`      // API authentication token
	RateLimit    float64 `yaml:"rate_limit"`     // Requests per second per client (default: 25)
	RateBurst    int     `yaml:"rate_burst"`     // Burst allowance (default: 50)
}

// IngestConfig contains ingestion pipeline settings.
type IngestConfig struct {
	SourceDir      string `yaml:"source_dir"`       // Directory of text files to ingest (default: ./documents)
	SourceAPIURL   string `yaml:"source_api_url"`   // Document API base URL, used instead of SourceDir when set
	SourceAPIKey   string `yaml:"source_api_key"`   // Bearer token for the document API
	MinChunkLength int    `yaml:"min_chunk_length"` // Minimum chunk length in characters (default: 50)
	MaxChunkLength int    `yaml:"max_chunk_length"` // Maximum chunk length in characters (default: 4000)
	PacingDelayMS  int    `yaml:"pacing_delay_ms"`  // Delay between documents in milliseconds (default: 500)
	MaxDocuments   int    `yaml:"max_documents"`    // Document limit per run, 0 means unlimited
}

// PacingDelay returns the inter-document delay as a duration.
func (c IngestConfig) PacingDelay() time.Duration {
	return time.Duration(c.PacingDelayMS) * time.Millisecond
}

// LoadConfig loads configuration from environment variables with sensible
// defaults. All environment variables use the GRAPHAURA_ prefix. When
// GRAPHAURA_CONFIG_FILE is set, that YAML file is applied on top.
func LoadConfig() (*Config, error) {
	cfg := buildBaseConfig()
	if path := os.Getenv("GRAPHAURA_CONFIG_FILE"); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadConfigFromFile loads the environment-based configuration and applies
// the given YAML file on top. File values take precedence.
func LoadConfigFromFile(path string) (*Config, error) {
	cfg := buildBaseConfig()
	if err := applyFile(cfg, path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFile unmarshals a YAML file over cfg. Fields absent from the file
// keep their environment or default values.
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return nil
}

// buildBaseConfig constructs a Config with values from environment variables
// and defaults.
func buildBaseConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("GRAPHAURA_PORT", 8000),
			Host: getEnv("GRAPHAURA_HOST", "127.0.0.1"),
		},
		Graph: GraphConfig{
			Backend:       getEnv("GRAPHAURA_GRAPH_BACKEND", "memory"),
			DataPath:      getEnv("GRAPHAURA_DATA_PATH", "./data"),
			Neo4jURI:      getEnv("GRAPHAURA_NEO4J_URI", "bolt://localhost:7687"),
			Neo4jUser:     getEnv("GRAPHAURA_NEO4J_USER", "neo4j"),
			Neo4jPassword: getEnv("GRAPHAURA_NEO4J_PASSWORD", ""),
			SeedDemoData:  getEnvBool("GRAPHAURA_SEED_DEMO_DATA", false),
		},
		Vector: VectorConfig{
			Backend:     getEnv("GRAPHAURA_VECTOR_BACKEND", "memory"),
			QdrantHost:  getEnv("GRAPHAURA_QDRANT_HOST", "localhost"),
			QdrantPort:  getEnvInt("GRAPHAURA_QDRANT_PORT", 6334),
			Collection:  getEnv("GRAPHAURA_VECTOR_COLLECTION", "graphaura_entities"),
			PostgresDSN: getEnv("GRAPHAURA_POSTGRES_DSN", ""),
			Dimensions:  getEnvInt("GRAPHAURA_VECTOR_DIMENSIONS", 1536),
		},
		LLM: LLMConfig{
			AnthropicAPIKey: getEnv("GRAPHAURA_ANTHROPIC_API_KEY", ""),
			AnthropicModel:  getEnv("GRAPHAURA_ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
			OpenAIAPIKey:    getEnv("GRAPHAURA_OPENAI_API_KEY", ""),
			OpenAIBaseURL:   getEnv("GRAPHAURA_OPENAI_BASE_URL", ""),
			EmbeddingModel:  getEnv("GRAPHAURA_EMBEDDING_MODEL", "text-embedding-3-small"),
		},
		Security: SecurityConfig{
			SecurityMode: getEnv("GRAPHAURA_SECURITY_MODE", "development"),
			APIToken:     getEnv("GRAPHAURA_API_TOKEN", ""),
			RateLimit:    getEnvFloat("GRAPHAURA_RATE_LIMIT", 25),
			RateBurst:    getEnvInt("GRAPHAURA_RATE_BURST", 50),
		},
		Ingest: IngestConfig{
			SourceDir:      getEnv("GRAPHAURA_SOURCE_DIR", "./documents"),
			SourceAPIURL:   getEnv("GRAPHAURA_SOURCE_API_URL", ""),
			SourceAPIKey:   getEnv("GRAPHAURA_SOURCE_API_KEY", ""),
			MinChunkLength: getEnvInt("GRAPHAURA_MIN_CHUNK_LENGTH", 50),
			MaxChunkLength: getEnvInt("GRAPHAURA_MAX_CHUNK_LENGTH", 4000),
			PacingDelayMS:  getEnvInt("GRAPHAURA_PACING_DELAY_MS", 500),
			MaxDocuments:   getEnvInt("GRAPHAURA_MAX_DOCUMENTS", 0),
		},
	}
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as an integer,
// it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value.
// It recognizes "true", "1", "yes" as true and "false", "0", "no" as false (case-insensitive).
// If the environment variable exists but cannot be parsed as a boolean,
// it returns the default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
			return true
		case "false", "0", "no", "False", "FALSE", "No", "NO":
			return false
		}
	}
	return defaultValue
}
