package types

import (
	"fmt"
	"strings"
	"unicode"
)

// ExtractedEntity is a candidate entity produced by the extractor for one text
// chunk. The ID may be empty, in which case it is synthesized deterministically
// before the entity is persisted.
type ExtractedEntity struct {
	ID              string     `json:"id,omitempty"`
	Type            string     `json:"type"`
	Name            string     `json:"name"`
	Description     string     `json:"description,omitempty"`
	Properties      Properties `json:"properties,omitempty"`
	ConfidenceScore float64    `json:"confidence_score"`
}

// ExtractedRelationship is a candidate relationship produced by the extractor.
// Endpoints are referenced by entity name, not id, because the extractor cannot
// know store-assigned ids.
type ExtractedRelationship struct {
	SourceEntityName string     `json:"source_entity_name"`
	TargetEntityName string     `json:"target_entity_name"`
	RelationshipType string     `json:"relationship_type"`
	Properties       Properties `json:"properties,omitempty"`
	ConfidenceScore  float64    `json:"confidence_score"`
}

// ExtractionResult is the transient per-chunk output of the extractor.
type ExtractionResult struct {
	Entities      []ExtractedEntity      `json:"entities"`
	Relationships []ExtractedRelationship `json:"relationships"`
}

// SynthesizeIDs fills in a deterministic id of the form {type}_{slug}_{seq} for
// every candidate entity that arrived without one. The sequence number is the
// entity's position in the chunk, so identical extractor output yields
// identical ids across reruns.
func (r *ExtractionResult) SynthesizeIDs() {
	for i := range r.Entities {
		if r.Entities[i].ID == "" {
			r.Entities[i].ID = fmt.Sprintf("%s_%s_%d",
				r.Entities[i].Type, Slugify(r.Entities[i].Name), i)
		}
	}
}

// Slugify lowercases a name and collapses runs of non-alphanumeric characters
// to single underscores, for use in synthesized entity ids.
func Slugify(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore && b.Len() > 0:
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
