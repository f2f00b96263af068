package types

import (
	"fmt"
	"strings"
	"time"
)

// Relationship represents a typed, directed, attributed edge between two
// existing entities. Type is a free-form uppercase verb tag (e.g. "WORKS_FOR").
// Multiple relationships of different types may exist between the same ordered
// pair; (SourceID, TargetID, Type) is the natural dedup key during merge.
type Relationship struct {
	ID              string     `json:"id"`
	SourceID        string     `json:"source_id"`
	TargetID        string     `json:"target_id"`
	Type            string     `json:"type"`
	Weight          float64    `json:"weight"`
	ConfidenceScore float64    `json:"confidence_score"`
	Properties      Properties `json:"properties,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// NormalizeType uppercases the relationship type tag in place, matching the
// store-side convention for edge types.
func (r *Relationship) NormalizeType() {
	r.Type = strings.ToUpper(strings.TrimSpace(r.Type))
}

// Validate checks the relationship references both endpoints and carries a
// non-empty type tag. Endpoint existence is checked by the store, not here.
func (r *Relationship) Validate() error {
	if r.SourceID == "" || r.TargetID == "" {
		return fmt.Errorf("relationship %q: source_id and target_id are required", r.Type)
	}
	if strings.TrimSpace(r.Type) == "" {
		return fmt.Errorf("relationship %s->%s: type is required", r.SourceID, r.TargetID)
	}
	return r.Properties.Validate()
}

// DedupKey returns the merge key for relationship upserts.
func (r *Relationship) DedupKey() string {
	return r.SourceID + "|" + r.TargetID + "|" + strings.ToUpper(r.Type)
}
