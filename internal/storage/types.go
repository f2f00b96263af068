package storage

import (
	"errors"
	"fmt"

	"github.com/graphaura/graphaura/pkg/types"
)

var (
	// ErrNotFound indicates the requested entity or relationship is absent.
	ErrNotFound = errors.New("resource not found")

	// ErrEndpointNotFound indicates a relationship write referenced an entity
	// that does not exist in the store.
	ErrEndpointNotFound = errors.New("relationship endpoint not found")

	// ErrInvalidInput indicates the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStoreUnavailable indicates the backend could not be reached.
	// Retries belong to the store client, not to callers of this package.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Direction selects which incident relationships of an entity to list.
type Direction string

const (
	DirectionIn   Direction = "in"
	DirectionOut  Direction = "out"
	DirectionBoth Direction = "both"
)

// ParseDirection validates a raw direction string. An empty string defaults
// to "both". Any other value is rejected before any store call.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case "":
		return DirectionBoth, nil
	case DirectionIn, DirectionOut, DirectionBoth:
		return Direction(s), nil
	default:
		return "", fmt.Errorf("%w: direction must be 'in', 'out', or 'both', got %q", ErrInvalidInput, s)
	}
}

// EntityFilter holds conjunctive predicates for entity lookup. Zero values
// mean "no constraint" for that predicate.
type EntityFilter struct {
	// Type restricts to one entity type.
	Type types.EntityType `json:"type,omitempty"`

	// Name matches by case-insensitive substring.
	Name string `json:"name,omitempty"`

	// Properties restricts to entities whose property map contains every
	// listed key with an equal value.
	Properties types.Properties `json:"properties,omitempty"`
}

// IsZero reports whether the filter carries no predicates.
func (f EntityFilter) IsZero() bool {
	return f.Type == "" && f.Name == "" && len(f.Properties) == 0
}

// GraphStats summarizes the stored graph for the stats endpoint.
type GraphStats struct {
	Nodes         map[string]int `json:"nodes"`         // per entity type label
	Relationships map[string]int `json:"relationships"` // per relationship type
}
