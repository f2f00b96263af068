package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/graphaura/graphaura/pkg/types"
)

// extractJSON pulls the first JSON object out of a response that may carry
// markdown fences or commentary around it, despite instructions.
func extractJSON(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return text
	}
	return text[start : end+1]
}

// ParseExtractionResponse decodes an extractor response into an
// ExtractionResult, dropping candidates with unknown entity types and filling
// in deterministic ids for entities that arrived without one.
func ParseExtractionResponse(response string) (*types.ExtractionResult, error) {
	var result types.ExtractionResult
	if err := json.Unmarshal([]byte(extractJSON(response)), &result); err != nil {
		return nil, fmt.Errorf("malformed extraction response: %w", err)
	}

	kept := result.Entities[:0]
	for _, e := range result.Entities {
		if _, err := types.ParseEntityType(e.Type); err != nil {
			// Unknown types never become a fallback label.
			continue
		}
		if strings.TrimSpace(e.Name) == "" {
			continue
		}
		if e.ConfidenceScore == 0 {
			e.ConfidenceScore = 0.9
		}
		kept = append(kept, e)
	}
	result.Entities = kept

	keptRels := result.Relationships[:0]
	for _, r := range result.Relationships {
		if r.SourceEntityName == "" || r.TargetEntityName == "" || r.RelationshipType == "" {
			continue
		}
		if r.ConfidenceScore == 0 {
			r.ConfidenceScore = 0.9
		}
		keptRels = append(keptRels, r)
	}
	result.Relationships = keptRels

	result.SynthesizeIDs()
	return &result, nil
}
