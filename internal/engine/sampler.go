package engine

import (
	"context"
	"fmt"

	"github.com/graphaura/graphaura/internal/storage"
	"github.com/graphaura/graphaura/pkg/types"
)

// GraphNode is the node view handed to visualization clients.
type GraphNode struct {
	ID         string           `json:"id"`
	Label      string           `json:"label"`
	Type       types.EntityType `json:"type"`
	Properties types.Properties `json:"properties"`
}

// GraphEdge is the edge view handed to visualization clients.
type GraphEdge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Type   string  `json:"type"`
	Weight float64 `json:"weight"`
}

// SampleOptions configures a visualization sample.
type SampleOptions struct {
	Filter         storage.EntityFilter
	MaxNodes       int
	MaxEdges       int
	ShowProperties bool
}

// SampleResult is a budgeted node/edge slice for visualization preview.
type SampleResult struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// Sampler builds bounded node/edge views of the graph.
type Sampler struct {
	entities      storage.EntityStore
	relationships storage.RelationshipStore
}

// NewSampler creates a visualization sampler over the given stores.
func NewSampler(entities storage.EntityStore, relationships storage.RelationshipStore) *Sampler {
	return &Sampler{entities: entities, relationships: relationships}
}

// Sample fetches up to MaxNodes entities matching the filter and, for each,
// up to MaxEdges/len(entities) relationships (integer floor division) in
// store-returned order. Edges with an endpoint outside the sampled node set
// are silently dropped rather than shown dangling.
//
// The per-entity budget intentionally under-fills MaxEdges when node degree is
// skewed: unused budget is not redistributed, because the two-pass cost of
// exact redistribution is not justified for a preview.
func (s *Sampler) Sample(ctx context.Context, opts SampleOptions) (*SampleResult, error) {
	if opts.MaxNodes <= 0 {
		opts.MaxNodes = 100
	}
	if opts.MaxEdges <= 0 {
		opts.MaxEdges = 200
	}

	entities, err := s.entities.FindEntities(ctx, opts.Filter, opts.MaxNodes, 0)
	if err != nil {
		return nil, fmt.Errorf("sample: find entities: %w", err)
	}

	result := &SampleResult{Nodes: []GraphNode{}, Edges: []GraphEdge{}}
	if len(entities) == 0 {
		return result, nil
	}

	inSample := make(map[string]bool, len(entities))
	for _, e := range entities {
		inSample[e.ID] = true
		node := GraphNode{
			ID:         e.ID,
			Label:      e.Name,
			Type:       e.Type,
			Properties: types.Properties{},
		}
		if node.Label == "" {
			node.Label = e.ID
		}
		if opts.ShowProperties && e.Properties != nil {
			node.Properties = e.Properties
		}
		result.Nodes = append(result.Nodes, node)
	}

	edgeBudget := opts.MaxEdges / len(entities)
	seen := map[string]bool{}

	for _, e := range entities {
		rels, err := s.relationships.ListRelationships(ctx, e.ID, storage.DirectionBoth)
		if err != nil {
			return nil, fmt.Errorf("sample: relationships of %s: %w", e.ID, err)
		}
		if len(rels) > edgeBudget {
			rels = rels[:edgeBudget]
		}
		for _, rel := range rels {
			if seen[rel.ID] || !inSample[rel.SourceID] || !inSample[rel.TargetID] {
				continue
			}
			seen[rel.ID] = true
			result.Edges = append(result.Edges, GraphEdge{
				Source: rel.SourceID,
				Target: rel.TargetID,
				Type:   rel.Type,
				Weight: rel.Weight,
			})
		}
	}

	return result, nil
}
