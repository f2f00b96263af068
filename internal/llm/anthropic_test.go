package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func anthropicResponse(text string) string {
	body, _ := json.Marshal(map[string]interface{}{
		"content": []map[string]string{{"type": "text", "text": text}},
	})
	return string(body)
}

func TestAnthropicExtractorExtract(t *testing.T) {
	var gotPath, gotAPIKey, gotVersion string
	var gotBody anthropicMessagesRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(anthropicResponse(`{
			"entities": [{"type": "person", "name": "Ada Lovelace", "confidence_score": 0.9}],
			"relationships": []
		}`)))
	}))
	defer server.Close()

	extractor := NewAnthropicExtractor(AnthropicConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
	})

	result, err := extractor.Extract(context.Background(), "Ada Lovelace wrote the first program.")
	require.NoError(t, err)
	require.Len(t, result.Entities, 1)
	assert.Equal(t, "Ada Lovelace", result.Entities[0].Name)

	assert.Equal(t, "/v1/messages", gotPath)
	assert.Equal(t, "test-key", gotAPIKey)
	assert.Equal(t, "2023-06-01", gotVersion)
	assert.NotEmpty(t, gotBody.System)
	require.Len(t, gotBody.Messages, 1)
	assert.Contains(t, gotBody.Messages[0].Content, "Ada Lovelace wrote the first program.")
}

func TestAnthropicExtractorServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer server.Close()

	extractor := NewAnthropicExtractor(AnthropicConfig{APIKey: "k", BaseURL: server.URL})
	_, err := extractor.Extract(context.Background(), "some text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestAnthropicExtractorEmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content": []}`))
	}))
	defer server.Close()

	extractor := NewAnthropicExtractor(AnthropicConfig{APIKey: "k", BaseURL: server.URL})
	_, err := extractor.Extract(context.Background(), "some text")
	assert.Error(t, err)
}

func TestAnthropicExtractorCircuitOpensOnRepeatedFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	extractor := NewAnthropicExtractor(AnthropicConfig{APIKey: "k", BaseURL: server.URL})
	ctx := context.Background()

	// Default breaker trips after 3 consecutive failures.
	for i := 0; i < 3; i++ {
		_, err := extractor.Extract(ctx, "text")
		require.Error(t, err)
	}

	_, err := extractor.Extract(ctx, "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestAnthropicExtractorDefaults(t *testing.T) {
	extractor := NewAnthropicExtractor(AnthropicConfig{APIKey: "k"})
	assert.Equal(t, "claude-sonnet-4-20250514", extractor.GetModel())
}
