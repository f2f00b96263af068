// graphaura-server runs the knowledge graph HTTP API.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/graphaura/graphaura/internal/config"
	"github.com/graphaura/graphaura/internal/server"
)

func main() {
	configFile := flag.String("config", "", "Path to optional YAML config file")
	flag.Parse()

	// .env is optional; missing file is not an error.
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	addr, _, err := server.Start(ctx, cfg, store, index)
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	log.Printf("GraphAura API running at http://%s (graph: %s, vectors: %s)",
		addr, cfg.Graph.Backend, cfg.Vector.Backend)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")
	cancel()
	time.Sleep(1 * time.Second) // Give time for connections to close
}
