package types

import (
	"fmt"
	"time"
)

// EntityType is the closed set of node types supported by the knowledge graph.
// Unknown types are a validation error, never a silent fallback label.
type EntityType string

const (
	EntityPerson       EntityType = "person"
	EntityOrganization EntityType = "organization"
	EntityLocation     EntityType = "location"
	EntityEvent        EntityType = "event"
	EntityDocument     EntityType = "document"
	EntityConcept      EntityType = "concept"
)

// labelMap maps entity types to the structural label used by the graph store.
var labelMap = map[EntityType]string{
	EntityPerson:       "Person",
	EntityOrganization: "Organization",
	EntityLocation:     "Location",
	EntityEvent:        "Event",
	EntityDocument:     "Document",
	EntityConcept:      "Concept",
}

// ParseEntityType validates a raw type string against the closed enum.
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(s)
	if _, ok := labelMap[t]; !ok {
		return "", fmt.Errorf("unknown entity type %q", s)
	}
	return t, nil
}

// Label returns the graph store label for the entity type (e.g. "Person").
func (t EntityType) Label() string {
	return labelMap[t]
}

// Valid reports whether the type is one of the supported entity types.
func (t EntityType) Valid() bool {
	_, ok := labelMap[t]
	return ok
}

// Properties is the open, string-keyed property map attached to entities and
// relationships. Values are expected to be scalars (string, bool, numbers);
// Validate rejects nested structures.
type Properties map[string]interface{}

// Validate checks that all property values are scalar.
func (p Properties) Validate() error {
	for k, v := range p {
		switch v.(type) {
		case nil, string, bool, int, int32, int64, float32, float64:
		default:
			return fmt.Errorf("property %q has non-scalar value of type %T", k, v)
		}
	}
	return nil
}

// Entity represents a typed, uniquely identified node in the knowledge graph.
// The ID is immutable after first write; the type determines the store label
// and cannot change on update without a delete and recreate.
type Entity struct {
	ID              string     `json:"id"`
	Type            EntityType `json:"type"`
	Name            string     `json:"name"`
	Description     string     `json:"description,omitempty"`
	Properties      Properties `json:"properties,omitempty"`
	ConfidenceScore float64    `json:"confidence_score"`
	Embedding       []float32  `json:"embedding,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Validate checks the entity is storable: known type, non-empty name,
// confidence in [0,1] and scalar properties.
func (e *Entity) Validate() error {
	if !e.Type.Valid() {
		return fmt.Errorf("entity %q: unknown entity type %q", e.Name, e.Type)
	}
	if e.Name == "" {
		return fmt.Errorf("entity %q: name is required", e.ID)
	}
	if e.ConfidenceScore < 0 || e.ConfidenceScore > 1 {
		return fmt.Errorf("entity %q: confidence_score %f outside [0,1]", e.Name, e.ConfidenceScore)
	}
	return e.Properties.Validate()
}
