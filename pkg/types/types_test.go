package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntityType(t *testing.T) {
	for _, raw := range []string{"person", "organization", "location", "event", "document", "concept"} {
		et, err := ParseEntityType(raw)
		require.NoError(t, err, "type %q should parse", raw)
		assert.True(t, et.Valid())
		assert.NotEmpty(t, et.Label())
	}

	_, err := ParseEntityType("planet")
	assert.Error(t, err)

	// Case-sensitive on purpose; normalization happens upstream.
	_, err = ParseEntityType("Person")
	assert.Error(t, err)
}

func TestEntityTypeLabel(t *testing.T) {
	assert.Equal(t, "Person", EntityPerson.Label())
	assert.Equal(t, "Organization", EntityOrganization.Label())
	assert.Equal(t, "", EntityType("planet").Label())
}

func TestPropertiesValidate(t *testing.T) {
	ok := Properties{
		"role":   "engineer",
		"active": true,
		"age":    42,
		"score":  0.85,
		"note":   nil,
	}
	assert.NoError(t, ok.Validate())

	nested := Properties{"address": map[string]interface{}{"city": "Berlin"}}
	assert.Error(t, nested.Validate())

	list := Properties{"aliases": []string{"a", "b"}}
	assert.Error(t, list.Validate())
}

func TestEntityValidate(t *testing.T) {
	entity := &Entity{
		ID:              "person:abc123",
		Type:            EntityPerson,
		Name:            "Ada Lovelace",
		ConfidenceScore: 0.9,
		Properties:      Properties{"era": "victorian"},
	}
	require.NoError(t, entity.Validate())

	t.Run("UnknownType", func(t *testing.T) {
		e := *entity
		e.Type = "robot"
		assert.Error(t, e.Validate())
	})

	t.Run("MissingName", func(t *testing.T) {
		e := *entity
		e.Name = ""
		assert.Error(t, e.Validate())
	})

	t.Run("ConfidenceOutOfRange", func(t *testing.T) {
		e := *entity
		e.ConfidenceScore = 1.5
		assert.Error(t, e.Validate())

		e.ConfidenceScore = -0.1
		assert.Error(t, e.Validate())
	})
}

func TestRelationshipNormalizeType(t *testing.T) {
	r := Relationship{SourceID: "a", TargetID: "b", Type: "  works_for "}
	r.NormalizeType()
	assert.Equal(t, "WORKS_FOR", r.Type)
}

func TestRelationshipValidate(t *testing.T) {
	r := Relationship{SourceID: "a", TargetID: "b", Type: "KNOWS"}
	require.NoError(t, r.Validate())

	missing := Relationship{SourceID: "", TargetID: "b", Type: "KNOWS"}
	assert.Error(t, missing.Validate())

	blank := Relationship{SourceID: "a", TargetID: "b", Type: "   "}
	assert.Error(t, blank.Validate())
}

func TestRelationshipDedupKey(t *testing.T) {
	lower := Relationship{SourceID: "a", TargetID: "b", Type: "works_for"}
	upper := Relationship{SourceID: "a", TargetID: "b", Type: "WORKS_FOR"}
	assert.Equal(t, upper.DedupKey(), lower.DedupKey())

	reversed := Relationship{SourceID: "b", TargetID: "a", Type: "WORKS_FOR"}
	assert.NotEqual(t, upper.DedupKey(), reversed.DedupKey())
}

func TestSynthesizeIDs(t *testing.T) {
	result := &ExtractionResult{
		Entities: []ExtractedEntity{
			{Type: "person", Name: "Ada Lovelace"},
			{ID: "custom_id", Type: "concept", Name: "Analytical Engine"},
			{Type: "person", Name: "Ada Lovelace"},
		},
	}
	result.SynthesizeIDs()

	assert.Equal(t, "person_ada_lovelace_0", result.Entities[0].ID)
	assert.Equal(t, "custom_id", result.Entities[1].ID, "existing ids are kept")
	assert.Equal(t, "person_ada_lovelace_2", result.Entities[2].ID,
		"position keeps duplicate names distinct within a chunk")

	// Rerunning must not change anything.
	result.SynthesizeIDs()
	assert.Equal(t, "person_ada_lovelace_0", result.Entities[0].ID)
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Ada Lovelace":        "ada_lovelace",
		"  C.E.R.N.  ":        "c_e_r_n",
		"GPT-4 (preview)":     "gpt_4_preview",
		"---":                 "",
		"Köln Hauptbahnhof":   "köln_hauptbahnhof",
		"already_slugged":     "already_slugged",
		"Multiple   spaces!!": "multiple_spaces",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), "input %q", in)
	}
}
