package llm

import "fmt"

// extractionSystemPrompt instructs the model to return candidate entities and
// relationships as strict JSON. Entity types mirror the closed enum in
// pkg/types; relationship verbs are suggestions, not a closed set.
const extractionSystemPrompt = `You are an expert knowledge graph extractor. Your task is to extract entities and relationships from the provided text.

Extract the following entity types:
- person: People mentioned in the text
- organization: Companies, institutions, groups
- location: Places, cities, buildings, addresses
- event: Meetings, conferences, launches, incidents
- concept: Ideas, technologies, methodologies, terms
- document: Referenced documents, reports, specifications

Extract relationships between entities:
- works_for, manages, collaborates_with, mentor_of (for people)
- located_in, part_of, owns (for organizations/locations)
- attended, organized, hosted (for events)
- authored, mentioned_in, references (for documents)
- related_to, similar_to, caused_by (for concepts)

For each entity, extract: type, name (canonical), description (brief, if
available), and properties (additional key-value pairs).

For each relationship, extract: source_entity_name, target_entity_name,
relationship_type, and properties (additional context).

Return ONLY valid JSON in this exact format:
{
  "entities": [
    {"id": "unique_id", "type": "person", "name": "John Doe", "description": "Software engineer at TechCorp", "properties": {"occupation": "Software Engineer"}, "confidence_score": 0.95}
  ],
  "relationships": [
    {"source_entity_name": "John Doe", "target_entity_name": "TechCorp", "relationship_type": "works_for", "properties": {"since": "2020"}, "confidence_score": 0.9}
  ]
}

Be thorough but accurate. Only extract entities and relationships that are clearly stated or strongly implied.`

// extractionUserPrompt wraps the chunk text for a single extraction call.
func extractionUserPrompt(text string) string {
	return fmt.Sprintf("Extract all entities and relationships from this text:\n\n%s\n\nReturn the result as JSON only, no additional commentary.", text)
}
