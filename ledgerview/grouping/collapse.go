package grouping

import (
	"sort"
	"sync"
)

// CollapseState tracks which group sections of one surface are collapsed.
// The zero value has every group expanded.
type CollapseState struct {
	mu        sync.Mutex
	collapsed map[string]bool
}

// Collapse hides the rows of the group
func (s *CollapseState) Collapse(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collapsed == nil {
		s.collapsed = make(map[string]bool)
	}
	s.collapsed[key] = true
}

// Expand shows the rows of the group and reports whether it was collapsed
func (s *CollapseState) Expand(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	was := s.collapsed[key]
	delete(s.collapsed, key)
	return was
}

// Toggle flips the group and returns its new collapsed state
func (s *CollapseState) Toggle(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collapsed[key] {
		delete(s.collapsed, key)
		return false
	}
	if s.collapsed == nil {
		s.collapsed = make(map[string]bool)
	}
	s.collapsed[key] = true
	return true
}

// IsCollapsed reports whether the group is collapsed
func (s *CollapseState) IsCollapsed(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collapsed[key]
}

// Collapsed returns the collapsed keys in order
func (s *CollapseState) Collapsed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.collapsed))
	for k := range s.collapsed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
