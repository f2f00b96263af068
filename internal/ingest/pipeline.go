package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/graphaura/graphaura/internal/llm"
	"github.com/graphaura/graphaura/internal/storage"
	"github.com/graphaura/graphaura/pkg/types"
)

// Broadcaster receives progress events during a run. The websocket hub
// satisfies it; a nil broadcaster disables events.
type Broadcaster interface {
	Broadcast(event interface{})
}

// PipelineConfig tunes one ingestion pipeline.
type PipelineConfig struct {
	// MinChunkLength skips shorter chunks as noise (default: 50).
	MinChunkLength int

	// MaxChunkLength truncates longer chunks before extraction (default: 4000).
	MaxChunkLength int

	// PacingDelay is the fixed, non-adaptive delay between documents, to
	// respect extractor-side rate limits (default: 500ms).
	PacingDelay time.Duration
}

// DefaultPipelineConfig returns the pipeline defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		MinChunkLength: DefaultMinChunkLength,
		MaxChunkLength: DefaultMaxChunkLength,
		PacingDelay:    500 * time.Millisecond,
	}
}

func (c *PipelineConfig) normalize() {
	if c.MinChunkLength <= 0 {
		c.MinChunkLength = DefaultMinChunkLength
	}
	if c.MaxChunkLength <= 0 {
		c.MaxChunkLength = DefaultMaxChunkLength
	}
	if c.PacingDelay < 0 {
		c.PacingDelay = 0
	}
}

// DocumentStats counts the outcome of one document.
type DocumentStats struct {
	DocumentID           string `json:"document_id"`
	ChunksProcessed      int    `json:"chunks_processed"`
	ChunksSkipped        int    `json:"chunks_skipped"`
	ChunksFailed         int    `json:"chunks_failed"`
	Entities             int    `json:"entities"`
	Relationships        int    `json:"relationships"`
	RelationshipsSkipped int    `json:"relationships_skipped"`
}

// RunStats aggregates a whole ingestion run.
type RunStats struct {
	Documents            int `json:"documents"`
	Entities             int `json:"entities"`
	Relationships        int `json:"relationships"`
	RelationshipsSkipped int `json:"relationships_skipped"`
	ChunksFailed         int `json:"chunks_failed"`
}

// ProgressEvent is broadcast after each document completes.
type ProgressEvent struct {
	Type     string        `json:"type"` // "document_done"
	Document DocumentStats `json:"document"`
}

// Pipeline drives chunked document text through the extractor and persists
// the candidates through the stores.
//
// Documents are processed one at a time and chunks strictly in sequence:
// identity resolution is order-dependent across chunks of the same run and is
// not safe for unordered concurrent mutation. Rerunning the pipeline over the
// same corpus converges to the same graph state, because entity upserts key
// on id and relationship upserts key on (source, target, type).
type Pipeline struct {
	entities      storage.EntityStore
	relationships storage.RelationshipStore
	index         storage.VectorIndex
	extractor     llm.Extractor
	embedder      llm.EmbeddingGenerator // optional
	chunker       *Chunker
	cfg           PipelineConfig
	events        Broadcaster // optional
	log           *logrus.Entry
}

// NewPipeline creates an ingestion pipeline. The embedder and broadcaster
// may be nil; embedding and progress events are then skipped.
func NewPipeline(entities storage.EntityStore, relationships storage.RelationshipStore, index storage.VectorIndex, extractor llm.Extractor, embedder llm.EmbeddingGenerator, cfg PipelineConfig) *Pipeline {
	cfg.normalize()
	return &Pipeline{
		entities:      entities,
		relationships: relationships,
		index:         index,
		extractor:     extractor,
		embedder:      embedder,
		chunker:       &Chunker{MaxChunkLength: cfg.MaxChunkLength},
		cfg:           cfg,
		log:           logrus.WithField("component", "ingest"),
	}
}

// SetBroadcaster wires a progress event sink.
func (p *Pipeline) SetBroadcaster(b Broadcaster) {
	p.events = b
}

// Run processes every document from the source in order. A chunk failure
// never aborts its document; a document failure never aborts the run. The
// run stops early only when ctx is cancelled, which is safe at any point
// because every store write is independently atomic.
func (p *Pipeline) Run(ctx context.Context, source DocumentSource, maxDocuments int) (*RunStats, error) {
	docs, err := source.Documents(ctx, maxDocuments)
	if err != nil {
		return nil, fmt.Errorf("ingest: fetch documents: %w", err)
	}

	stats := &RunStats{}
	// One identity cache for the whole run: an entity introduced by an
	// earlier document resolves relationship endpoints in later ones.
	resolver := NewIdentityResolver()
	for i, doc := range docs {
		docStats, err := p.ProcessDocument(ctx, doc, resolver)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return stats, err
			}
			p.log.WithError(err).WithField("document", doc.ID).Warn("document failed, continuing")
			continue
		}

		stats.Documents++
		stats.Entities += docStats.Entities
		stats.Relationships += docStats.Relationships
		stats.RelationshipsSkipped += docStats.RelationshipsSkipped
		stats.ChunksFailed += docStats.ChunksFailed

		if p.events != nil {
			p.events.Broadcast(ProgressEvent{Type: "document_done", Document: *docStats})
		}

		// Fixed pacing between documents; deliberately not backoff-based.
		if i < len(docs)-1 && p.cfg.PacingDelay > 0 {
			select {
			case <-time.After(p.cfg.PacingDelay):
			case <-ctx.Done():
				return stats, ctx.Err()
			}
		}
	}
	return stats, nil
}

// ProcessDocument runs one document through extraction and persistence.
// The identity resolver is owned by the caller and shared across every
// document of a run, so entity names bound by earlier documents resolve
// for later documents' relationships.
func (p *Pipeline) ProcessDocument(ctx context.Context, doc Document, resolver *IdentityResolver) (*DocumentStats, error) {
	chunks := doc.Chunks
	if chunks == nil {
		chunks = p.chunker.Chunk(doc.Text)
	}

	stats := &DocumentStats{DocumentID: doc.ID}

	docLog := p.log.WithField("document", doc.ID)
	docLog.WithField("chunks", len(chunks)).Info("processing document")

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if len(chunk) < p.cfg.MinChunkLength {
			stats.ChunksSkipped++
			continue
		}
		chunk = Truncate(chunk, p.cfg.MaxChunkLength)

		result, err := p.extractor.Extract(ctx, chunk)
		if err != nil {
			// Extractor failures count as zero candidates for this chunk.
			stats.ChunksFailed++
			docLog.WithError(err).WithField("chunk", i).Warn("extraction failed for chunk")
			continue
		}

		// Extractors are not required to assign ids; idempotent for those
		// that already did.
		result.SynthesizeIDs()
		p.persistChunk(ctx, doc.ID, result, resolver, stats, docLog)
		stats.ChunksProcessed++
	}

	docLog.WithFields(logrus.Fields{
		"entities":              stats.Entities,
		"relationships":         stats.Relationships,
		"relationships_skipped": stats.RelationshipsSkipped,
	}).Info("document done")
	return stats, nil
}

// persistChunk writes a chunk's entities, then its relationships. The order
// matters: endpoints must be bound in the resolver before the relationships
// that name them are processed.
func (p *Pipeline) persistChunk(ctx context.Context, docID string, result *types.ExtractionResult, resolver *IdentityResolver, stats *DocumentStats, docLog *logrus.Entry) {
	for _, candidate := range result.Entities {
		entityType, err := types.ParseEntityType(candidate.Type)
		if err != nil {
			docLog.WithField("entity", candidate.Name).Warn("dropping entity with unknown type")
			continue
		}

		entity := &types.Entity{
			ID:              candidate.ID,
			Type:            entityType,
			Name:            candidate.Name,
			Description:     candidate.Description,
			Properties:      candidate.Properties,
			ConfidenceScore: candidate.ConfidenceScore,
		}
		if entity.Properties == nil {
			entity.Properties = types.Properties{}
		}
		entity.Properties["source_document"] = docID

		id, err := p.entities.UpsertEntity(ctx, entity)
		if err != nil {
			docLog.WithError(err).WithField("entity", candidate.Name).Warn("entity upsert failed")
			continue
		}
		resolver.Bind(candidate.Name, id)
		stats.Entities++

		p.embedEntity(ctx, id, entity, docLog)
	}

	for _, candidate := range result.Relationships {
		sourceID, ok := resolver.Resolve(candidate.SourceEntityName)
		if !ok {
			stats.RelationshipsSkipped++
			docLog.WithFields(logrus.Fields{
				"type":   candidate.RelationshipType,
				"source": candidate.SourceEntityName,
			}).Debug("skipping relationship: source not resolved in this run")
			continue
		}
		targetID, ok := resolver.Resolve(candidate.TargetEntityName)
		if !ok {
			stats.RelationshipsSkipped++
			docLog.WithFields(logrus.Fields{
				"type":   candidate.RelationshipType,
				"target": candidate.TargetEntityName,
			}).Debug("skipping relationship: target not resolved in this run")
			continue
		}

		rel := &types.Relationship{
			SourceID:        sourceID,
			TargetID:        targetID,
			Type:            candidate.RelationshipType,
			Weight:          1.0,
			ConfidenceScore: candidate.ConfidenceScore,
			Properties:      candidate.Properties,
		}
		rel.NormalizeType()

		if _, err := p.relationships.UpsertRelationship(ctx, rel); err != nil {
			docLog.WithError(err).WithField("type", rel.Type).Warn("relationship upsert failed")
			continue
		}
		stats.Relationships++
	}
}

// embedEntity generates and stores an embedding when an embedder and index
// are configured. Failures are logged, never fatal.
func (p *Pipeline) embedEntity(ctx context.Context, id string, entity *types.Entity, docLog *logrus.Entry) {
	if p.embedder == nil || p.index == nil {
		return
	}

	text := entity.Name
	if entity.Description != "" {
		text += ": " + entity.Description
	}
	vector, err := p.embedder.Embed(ctx, text)
	if err != nil {
		docLog.WithError(err).WithField("entity", id).Warn("embedding failed")
		return
	}

	payload := map[string]interface{}{
		"name":       entity.Name,
		"confidence": entity.ConfidenceScore,
	}
	if err := p.index.StoreEmbedding(ctx, id, entity.Type, vector, payload); err != nil {
		docLog.WithError(err).WithField("entity", id).Warn("embedding store failed")
	}
}
