package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Document is one unit of ingestion work. Chunks, when pre-populated by the
// source, are used as-is; otherwise the pipeline chunks Text itself.
type Document struct {
	ID     string
	Title  string
	Text   string
	Chunks []string
}

// DocumentSource supplies the documents for an ingestion run.
type DocumentSource interface {
	// Documents returns up to limit documents. The order must be stable so
	// reruns over the same corpus converge to the same graph state.
	Documents(ctx context.Context, limit int) ([]Document, error)
}

// FileSource reads .txt and .md documents from a directory tree.
type FileSource struct {
	Dir string
}

// Documents walks the directory and returns file contents in path order.
func (s *FileSource) Documents(ctx context.Context, limit int) ([]Document, error) {
	var paths []string
	err := filepath.WalkDir(s.Dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".txt", ".md":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("file source: walk %s: %w", s.Dir, err)
	}
	sort.Strings(paths)

	if limit > 0 && len(paths) > limit {
		paths = paths[:limit]
	}

	docs := make([]Document, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("file source: read %s: %w", path, err)
		}
		rel, _ := filepath.Rel(s.Dir, path)
		docs = append(docs, Document{
			ID:    "document_" + strings.TrimSuffix(filepath.ToSlash(rel), filepath.Ext(rel)),
			Title: filepath.Base(path),
			Text:  string(content),
		})
	}
	return docs, nil
}

// APISource fetches documents and their pre-computed chunks from a document
// API exposing /v2/documents and /v2/chunks.
type APISource struct {
	BaseURL string
	APIKey  string // optional bearer token

	// HTTPClient defaults to a 60s-timeout client.
	HTTPClient *http.Client
}

type apiDocument struct {
	ID       string `json:"id"`
	Metadata struct {
		Title string `json:"title"`
	} `json:"metadata"`
}

type apiChunk struct {
	Text string `json:"text"`
}

type apiListResponse[T any] struct {
	Results []T `json:"results"`
}

func (s *APISource) client() *http.Client {
	if s.HTTPClient != nil {
		return s.HTTPClient
	}
	return &http.Client{Timeout: 60 * time.Second}
}

func (s *APISource) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := strings.TrimRight(s.BaseURL, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return fmt.Errorf("api source: create request: %w", err)
	}
	if s.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
	}

	resp, err := s.client().Do(req)
	if err != nil {
		return fmt.Errorf("api source: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("api source: %s returned status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Documents fetches the document list and each document's chunks.
func (s *APISource) Documents(ctx context.Context, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 100
	}

	var list apiListResponse[apiDocument]
	query := url.Values{"limit": {fmt.Sprint(limit)}}
	if err := s.get(ctx, "/v2/documents", query, &list); err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(list.Results))
	for _, d := range list.Results {
		var chunks apiListResponse[apiChunk]
		if err := s.get(ctx, "/v2/chunks", url.Values{"document_id": {d.ID}}, &chunks); err != nil {
			return nil, err
		}

		doc := Document{ID: d.ID, Title: d.Metadata.Title}
		for _, c := range chunks.Results {
			doc.Chunks = append(doc.Chunks, c.Text)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
