// Copyright 2025 Emin Salih Açıkgöz
// SPDX-License-Identifier: gpl3-or-later

// Package provider implements the package-manager backends (brew, apt,
// winget, cargo) behind a common Provider interface, plus a registry and
// a frozen per-run snapshot of which backends are actually usable on the
// current host.
package provider

import (
	"context"
	"os/exec"
	"sort"
)

// Provider is one package-manager backend.
type Provider interface {
	// Name is the manager name used in manifests' install_packages(manager, ...).
	Name() string
	// Detect reports whether the backend binary is present on $PATH.
	Detect() bool
	// IsInstalled reports whether name is currently installed.
	IsInstalled(ctx context.Context, name string) (bool, error)
	// InstalledPackages reports, for every name in names, whether it is
	// currently installed. It issues a single bulk listing query rather
	// than one probe per name, so planning a manifest with many packages
	// under the same manager costs one subprocess instead of N.
	InstalledPackages(ctx context.Context, names []string) (map[string]bool, error)
	// Install installs name, returning an error on failure.
	Install(ctx context.Context, name string) error
	// Remove uninstalls name, returning an error on failure.
	Remove(ctx context.Context, name string) error
}

// Registry holds the known Provider backends by name.
type Registry struct {
	byName map[string]Provider
}

// NewRegistry returns a Registry pre-populated with the brew, apt, winget
// and cargo backends.
func NewRegistry() *Registry {
	r := &Registry{byName: make(map[string]Provider)}
	r.Register(newBrewProvider())
	r.Register(newAptProvider())
	r.Register(newWingetProvider())
	r.Register(newCargoProvider())
	return r
}

// Register installs (or replaces) a backend under its own Name().
func (r *Registry) Register(p Provider) {
	r.byName[p.Name()] = p
}

// Get looks up a backend by name.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// List returns every registered backend name, sorted.
func (r *Registry) List() []string {
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Snapshot captures, once per run, which registered backends are actually
// usable on this host. Planning and applying both consult the same
// Snapshot so a provider's availability cannot change mid-run.
type Snapshot struct {
	Supported []string
	Available []string
	// Default is the name of the backend used when a manifest's
	// install_packages call passes an empty manager string, or "" if none
	// of the registered backends are available.
	Default string
}

// defaultOrder is the preference order used to pick Snapshot.Default when
// more than one backend is available; cargo is last since it is the only
// one that is not OS-specific and is commonly present alongside another
// manager.
var defaultOrder = []string{"brew", "apt", "winget", "cargo"}

// Snapshot freezes the availability of every registered backend.
func (r *Registry) Snapshot() Snapshot {
	s := Snapshot{Supported: r.List()}
	available := make(map[string]bool, len(r.byName))
	for _, name := range s.Supported {
		if r.byName[name].Detect() {
			available[name] = true
			s.Available = append(s.Available, name)
		}
	}
	sort.Strings(s.Available)
	for _, name := range defaultOrder {
		if available[name] {
			s.Default = name
			break
		}
	}
	return s
}

// lookPath is a package-level indirection so tests can shim $PATH without
// touching the real one.
var lookPath = exec.LookPath
