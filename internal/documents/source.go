// Package documents reads the generated documents of a project. Documents are
// produced elsewhere; this service only consumes them.
package documents

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/webitel/document-exporter/internal/model"
)

type Source interface {
	ListDocuments(ctx context.Context, projectID string) ([]model.Document, error)
}

// Static is an in-memory Source, filled by Put.
type Static struct {
	mu        sync.RWMutex
	byProject map[string][]model.Document
}

func NewStatic() *Static {
	return &Static{byProject: make(map[string][]model.Document)}
}

// Put replaces the documents with the same id and appends new ones.
func (s *Static) Put(projectID string, docs ...model.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.byProject[projectID]
	for _, doc := range docs {
		replaced := false
		for i := range current {
			if current[i].ID == doc.ID {
				current[i] = doc
				replaced = true
				break
			}
		}
		if !replaced {
			current = append(current, doc)
		}
	}
	s.byProject[projectID] = current
}

func (s *Static) ListDocuments(_ context.Context, projectID string) ([]model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Document(nil), s.byProject[projectID]...), nil
}

// HTTP reads documents from the document service:
// GET {base}/projects/{projectID}/documents returning a JSON array.
type HTTP struct {
	base   string
	client *http.Client
}

func NewHTTP(base string, client *http.Client) *HTTP {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTP{base: strings.TrimRight(base, "/"), client: client}
}

func (h *HTTP) ListDocuments(ctx context.Context, projectID string) ([]model.Document, error) {
	endpoint := h.base + "/projects/" + url.PathEscape(projectID) + "/documents"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("list documents: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var docs []model.Document
	if err := json.NewDecoder(resp.Body).Decode(&docs); err != nil {
		return nil, fmt.Errorf("list documents: decode: %w", err)
	}
	return docs, nil
}

// Index maps documents by id.
func Index(docs []model.Document) map[string]model.Document {
	out := make(map[string]model.Document, len(docs))
	for _, d := range docs {
		out[d.ID] = d
	}
	return out
}
