// graphaura-populate ingests documents into the knowledge graph using
// LLM-assisted entity and relationship extraction.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/graphaura/graphaura/internal/config"
	"github.com/graphaura/graphaura/internal/ingest"
	"github.com/graphaura/graphaura/internal/llm"
	"github.com/graphaura/graphaura/internal/server"
)

func main() {
	configFile := flag.String("config", "", "Path to optional YAML config file")
	sourceDir := flag.String("source", "", "Directory of .txt/.md files to ingest (overrides config)")
	maxDocs := flag.Int("max-documents", 0, "Document limit for this run, 0 means use config")
	noEmbed := flag.Bool("no-embed", false, "Skip embedding generation even when an OpenAI key is set")
	flag.Parse()

	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	var (
		cfg *config.Config
		err error
	)
	if *configFile != "" {
		cfg, err = config.LoadConfigFromFile(*configFile)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *sourceDir != "" {
		cfg.Ingest.SourceDir = *sourceDir
	}
	if *maxDocs > 0 {
		cfg.Ingest.MaxDocuments = *maxDocs
	}

	if cfg.LLM.AnthropicAPIKey == "" {
		log.Fatal("GRAPHAURA_ANTHROPIC_API_KEY is required for extraction")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Ctrl-C stops the run between chunks; partial progress is kept.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Interrupted, finishing current chunk...")
		cancel()
	}()

	store, err := server.OpenGraphStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open graph store (%s): %v", cfg.Graph.Backend, err)
	}
	defer store.Close()

	index, err := server.OpenVectorIndex(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open vector index (%s): %v", cfg.Vector.Backend, err)
	}
	defer index.Close()

	extractor := llm.NewAnthropicExtractor(llm.AnthropicConfig{
		APIKey: cfg.LLM.AnthropicAPIKey,
		Model:  cfg.LLM.AnthropicModel,
	})

	var embedder llm.EmbeddingGenerator
	if cfg.LLM.OpenAIAPIKey != "" && !*noEmbed {
		embedder = llm.NewOpenAIEmbedder(llm.OpenAIEmbedderConfig{
			APIKey:  cfg.LLM.OpenAIAPIKey,
			BaseURL: cfg.LLM.OpenAIBaseURL,
			Model:   cfg.LLM.EmbeddingModel,
		})
	} else {
		log.Println("No OpenAI API key set, skipping embedding generation")
	}

	var source ingest.DocumentSource
	if cfg.Ingest.SourceAPIURL != "" {
		source = &ingest.APISource{
			BaseURL: cfg.Ingest.SourceAPIURL,
			APIKey:  cfg.Ingest.SourceAPIKey,
		}
		log.Printf("Ingesting from document API at %s", cfg.Ingest.SourceAPIURL)
	} else {
		source = &ingest.FileSource{Dir: cfg.Ingest.SourceDir}
		log.Printf("Ingesting from directory %s", cfg.Ingest.SourceDir)
	}

	pipeline := ingest.NewPipeline(store, store, index, extractor, embedder, ingest.PipelineConfig{
		MinChunkLength: cfg.Ingest.MinChunkLength,
		MaxChunkLength: cfg.Ingest.MaxChunkLength,
		PacingDelay:    cfg.Ingest.PacingDelay(),
	})

	stats, err := pipeline.Run(ctx, source, cfg.Ingest.MaxDocuments)
	if stats != nil {
		log.Printf("Run complete: %d documents, %d entities, %d relationships (%d skipped), %d chunks failed",
			stats.Documents, stats.Entities, stats.Relationships,
			stats.RelationshipsSkipped, stats.ChunksFailed)
	}
	if err != nil {
		log.Fatalf("Ingestion run failed: %v", err)
	}
}
