package memory

import (
	"context"
	"fmt"

	"github.com/graphaura/graphaura/pkg/types"
)

// SeedDemoGraph populates the store with the hand-authored sample graph used
// when no real graph backend is configured. It is the demo-mode provider's
// data set: a few personal memory networks (college, outdoor adventures,
// family) connected by typed relationships.
func SeedDemoGraph(ctx context.Context, store *GraphStore) error {
	entities := []*types.Entity{
		// College network.
		{ID: "person_sarah", Type: types.EntityPerson, Name: "Sarah Chen",
			Description:     "College roommate and best friend",
			ConfidenceScore: 0.95,
			Properties: types.Properties{
				"occupation": "Software Engineer", "location": "San Francisco", "network": "college"}},
		{ID: "person_alex", Type: types.EntityPerson, Name: "Alex Kim",
			Description:     "Study partner and CS lab partner",
			ConfidenceScore: 0.90,
			Properties: types.Properties{
				"occupation": "Data Scientist", "location": "Seattle", "network": "college"}},
		{ID: "person_prof_wilson", Type: types.EntityPerson, Name: "Professor Wilson",
			Description:     "Computer Science professor and mentor",
			ConfidenceScore: 0.88,
			Properties:      types.Properties{"occupation": "Professor", "network": "college"}},
		{ID: "place_college", Type: types.EntityLocation, Name: "Stanford University",
			Description:     "Alma mater where I studied computer science",
			ConfidenceScore: 0.94,
			Properties:      types.Properties{"state": "California", "network": "college"}},
		{ID: "place_cs_lab", Type: types.EntityLocation, Name: "Computer Science Lab",
			Description:     "Late night coding sessions with Alex",
			ConfidenceScore: 0.89,
			Properties:      types.Properties{"building": "Gates Computer Science", "network": "college"}},
		{ID: "event_graduation", Type: types.EntityEvent, Name: "College Graduation",
			Description:     "Proud moment walking across the stage",
			ConfidenceScore: 0.99,
			Properties:      types.Properties{"date": "2018-06-15", "network": "college"}},
		{ID: "event_final_project", Type: types.EntityEvent, Name: "Senior Capstone Project",
			Description:     "Built an AI-powered study app with Alex",
			ConfidenceScore: 0.92,
			Properties:      types.Properties{"date": "2018-05-01", "network": "college"}},

		// Adventure network.
		{ID: "person_mike", Type: types.EntityPerson, Name: "Mike Torres",
			Description:     "Hiking buddy and photographer",
			ConfidenceScore: 0.91,
			Properties:      types.Properties{"occupation": "Photographer", "network": "adventure"}},
		{ID: "person_emma", Type: types.EntityPerson, Name: "Emma Rodriguez",
			Description:     "Climbing instructor and adventure partner",
			ConfidenceScore: 0.89,
			Properties:      types.Properties{"occupation": "Climbing Instructor", "network": "adventure"}},
		{ID: "place_yosemite", Type: types.EntityLocation, Name: "Yosemite National Park",
			Description:     "Where we conquered Half Dome",
			ConfidenceScore: 0.96,
			Properties:      types.Properties{"state": "California", "network": "adventure"}},
		{ID: "event_hiking", Type: types.EntityEvent, Name: "Half Dome Hike",
			Description:     "Challenging 16-mile hike with cables",
			ConfidenceScore: 0.95,
			Properties:      types.Properties{"network": "adventure"}},
		{ID: "event_rock_climbing", Type: types.EntityEvent, Name: "First Outdoor Climb",
			Description:     "Emma taught me outdoor climbing",
			ConfidenceScore: 0.90,
			Properties:      types.Properties{"network": "adventure"}},
	}

	relationships := []*types.Relationship{
		{SourceID: "person_sarah", TargetID: "event_graduation", Type: "ATTENDED", Weight: 0.9, ConfidenceScore: 0.9},
		{SourceID: "person_alex", TargetID: "event_final_project", Type: "COLLABORATED_ON", Weight: 0.95, ConfidenceScore: 0.95},
		{SourceID: "person_prof_wilson", TargetID: "event_final_project", Type: "MENTORED", Weight: 0.88, ConfidenceScore: 0.88},
		{SourceID: "person_alex", TargetID: "place_cs_lab", Type: "STUDIED_AT", Weight: 0.92, ConfidenceScore: 0.92},
		{SourceID: "event_graduation", TargetID: "place_college", Type: "OCCURRED_AT", Weight: 1.0, ConfidenceScore: 1.0},
		{SourceID: "event_final_project", TargetID: "place_cs_lab", Type: "DEVELOPED_AT", Weight: 0.94, ConfidenceScore: 0.94},
		{SourceID: "person_mike", TargetID: "event_hiking", Type: "HIKED_WITH", Weight: 0.92, ConfidenceScore: 0.92},
		{SourceID: "person_emma", TargetID: "event_rock_climbing", Type: "INSTRUCTED", Weight: 0.89, ConfidenceScore: 0.89},
		{SourceID: "event_hiking", TargetID: "place_yosemite", Type: "OCCURRED_AT", Weight: 1.0, ConfidenceScore: 1.0},
		{SourceID: "person_mike", TargetID: "place_yosemite", Type: "PHOTOGRAPHED", Weight: 0.88, ConfidenceScore: 0.88},
	}

	for _, e := range entities {
		if _, err := store.UpsertEntity(ctx, e); err != nil {
			return fmt.Errorf("demo seed: entity %s: %w", e.ID, err)
		}
	}
	for _, r := range relationships {
		if _, err := store.CreateRelationship(ctx, r); err != nil {
			return fmt.Errorf("demo seed: relationship %s-%s->%s: %w", r.SourceID, r.Type, r.TargetID, err)
		}
	}
	return nil
}
