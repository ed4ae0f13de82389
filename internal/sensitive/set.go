// Copyright 2025 Emin Salih Açıkgöz
// SPDX-License-Identifier: gpl3-or-later

// Package sensitive collects values introduced via env() and secret()
// during manifest evaluation and template rendering, so the report
// renderer can redact them from every emitted byte. Template rendering
// may invoke env()/secret() from worker goroutines (the planner renders
// templates in parallel), so the set is mutex-guarded; the evaluator
// itself is single-threaded by construction and uses the same type for
// symmetry.
package sensitive

import "sync"

// Set is an insertion-ordered set of sensitive strings.
type Set struct {
	mu      sync.Mutex
	order   []string
	present map[string]struct{}
}

// New returns an empty Set.
func New() *Set {
	return &Set{present: make(map[string]struct{})}
}

// minRedactLen is the shortest value worth redacting; shorter strings
// (e.g. single characters) would turn up so often in ordinary output that
// redacting them would make reports unreadable without protecting
// anything meaningful.
const minRedactLen = 3

// Add records value if it isn't already present and is at least
// minRedactLen characters long.
func (s *Set) Add(value string) {
	if len(value) < minRedactLen {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.present[value]; ok {
		return
	}
	s.present[value] = struct{}{}
	s.order = append(s.order, value)
}

// Merge adds every value from other into s.
func (s *Set) Merge(other *Set) {
	if other == nil {
		return
	}
	other.mu.Lock()
	values := append([]string(nil), other.order...)
	other.mu.Unlock()
	for _, v := range values {
		s.Add(v)
	}
}

// Values returns a snapshot of the recorded values, longest-first — the
// order the redaction pass needs to avoid partial-match interference
// (e.g. a secret that is itself a substring of another recorded secret).
func (s *Set) Values() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]string(nil), s.order...)
	sortByLengthDesc(out)
	return out
}

func sortByLengthDesc(values []string) {
	for i := 1; i < len(values); i++ {
		for j := i; j > 0 && len(values[j]) > len(values[j-1]); j-- {
			values[j], values[j-1] = values[j-1], values[j]
		}
	}
}
