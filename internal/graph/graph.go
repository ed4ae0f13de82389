// Copyright 2025 Emin Salih Açıkgöz
// SPDX-License-Identifier: gpl3-or-later

// Package graph topologically sorts manifests by their depends_on edges
// using Kahn's algorithm, breaking ties deterministically by always
// advancing the lexicographically smallest ready node.
package graph

import (
	"fmt"
	"sort"

	"keron/internal/kerr"
	"keron/internal/types"
)

// Sort returns manifest paths in an order that respects every depends_on
// edge, breaking ties lexicographically. An error is returned if any
// manifest depends on a path not present in specs, or if the depends_on
// edges contain a cycle; in both cases the error lists every offending
// node so callers can fall back to a best-effort ordering.
func Sort(specs []*types.ManifestSpec) ([]string, error) {
	byPath := make(map[string]*types.ManifestSpec, len(specs))
	for _, s := range specs {
		byPath[s.Path] = s
	}

	var missing []string
	indegree := make(map[string]int, len(specs))
	dependents := make(map[string][]string)
	for _, s := range specs {
		indegree[s.Path] = 0
	}
	for _, s := range specs {
		for _, dep := range s.DependsOn {
			if _, ok := byPath[dep]; !ok {
				missing = append(missing, fmt.Sprintf("%s depends on undiscovered manifest %s", s.Path, dep))
				continue
			}
			indegree[s.Path]++
			dependents[dep] = append(dependents[dep], s.Path)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, kerr.New(kerr.KindGraph, "missing manifest dependencies: "+joinLines(missing))
	}

	var ready []string
	for path, deg := range indegree {
		if deg == 0 {
			ready = append(ready, path)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(specs))
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		var freed []string
		for _, dependent := range dependents[next] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				freed = append(freed, dependent)
			}
		}
		sort.Strings(freed)
		ready = mergeSorted(ready, freed)
	}

	if len(order) != len(specs) {
		var cycle []string
		for path, deg := range indegree {
			if deg > 0 {
				cycle = append(cycle, path)
			}
		}
		sort.Strings(cycle)
		return nil, kerr.New(kerr.KindGraph, "dependency cycle detected among manifests: "+joinLines(cycle))
	}

	return order, nil
}

func mergeSorted(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	out := append(a, b...)
	sort.Strings(out)
	return out
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "; "
		}
		out += l
	}
	return out
}
