// Package selection tracks which documents of one project are chosen for an export.
package selection

import (
	"sort"
	"sync"
)

// Selector is a set of document ids scoped to one project. It does not check
// that the set is non-empty; the job manager does.
type Selector struct {
	projectID string

	mu  sync.Mutex
	ids map[string]struct{}
}

func New(projectID string) *Selector {
	return &Selector{projectID: projectID, ids: make(map[string]struct{})}
}

func (s *Selector) ProjectID() string { return s.projectID }

func (s *Selector) Select(docID string) {
	s.mu.Lock()
	s.ids[docID] = struct{}{}
	s.mu.Unlock()
}

func (s *Selector) Deselect(docID string) {
	s.mu.Lock()
	delete(s.ids, docID)
	s.mu.Unlock()
}

// SelectAll adds every id in allIds to the selection.
func (s *Selector) SelectAll(allIds []string) {
	s.mu.Lock()
	for _, id := range allIds {
		s.ids[id] = struct{}{}
	}
	s.mu.Unlock()
}

func (s *Selector) Clear() {
	s.mu.Lock()
	s.ids = make(map[string]struct{})
	s.mu.Unlock()
}

func (s *Selector) Contains(docID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[docID]
	return ok
}

// Current returns the selected ids in sorted order.
func (s *Selector) Current() []string {
	s.mu.Lock()
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	s.mu.Unlock()
	sort.Strings(out)
	return out
}

func (s *Selector) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}
