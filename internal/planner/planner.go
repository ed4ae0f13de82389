// Copyright 2025 Emin Salih Açıkgöz
// SPDX-License-Identifier: gpl3-or-later

// Package planner computes, for every resource in every manifest, the
// operation apply would perform: whether the host already matches the
// desired state, and if not, what would change. Planning never mutates
// the host; it only reads (stat, readlink, content hashes, provider
// installed-state queries).
//
// Per-resource planning work is independent, so it runs across a bounded
// worker pool via github.com/sourcegraph/conc/pool — the same ordered
// result-pool primitive the ralph example repo uses for its own
// data-parallel fan-out — while keeping results in manifest/resource
// order regardless of completion order.
package planner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/sourcegraph/conc/pool"

	"keron/internal/fsutil"
	"keron/internal/provider"
	"keron/internal/render"
	"keron/internal/types"
)

// MaxWorkers bounds planning concurrency.
const MaxWorkers = 8

// Planner computes PlannedOperations for a resolved set of manifests.
type Planner struct {
	Renderer  *render.Renderer
	Providers *provider.Registry
	Snapshot  provider.Snapshot
}

// New returns a Planner backed by the given renderer and provider registry.
func New(renderer *render.Renderer, providers *provider.Registry) *Planner {
	return &Planner{Renderer: renderer, Providers: providers, Snapshot: providers.Snapshot()}
}

// workItem is one resource flattened out of its owning manifest, tagged
// with the monotonic id it was assigned before planning started.
type workItem struct {
	id       int
	manifest string
	resource types.Resource
}

// Flatten assigns deterministic, contiguous operation ids (1..N) to every
// resource across every manifest, in execution order then per-manifest
// declaration order. Ids are assigned here, before any concurrent work
// starts, rather than claimed from a shared counter mid-flight, so
// planning parallelism can never perturb id assignment.
func Flatten(executionOrder []string, specs map[string]*types.ManifestSpec) []workItem {
	var items []workItem
	id := 1
	for _, path := range executionOrder {
		spec, ok := specs[path]
		if !ok {
			continue
		}
		for _, res := range spec.Resources {
			items = append(items, workItem{id: id, manifest: path, resource: res})
			id++
		}
	}
	return items
}

// Plan plans every resource across the manifests named by executionOrder
// and returns a report in that same deterministic order.
func (p *Planner) Plan(ctx context.Context, executionOrder []string, specs map[string]*types.ManifestSpec) (*types.PlanReport, error) {
	items := Flatten(executionOrder, specs)
	pkgState := p.collectPackageState(ctx, items)

	results := pool.NewWithResults[types.PlannedOperation]().WithMaxGoroutines(MaxWorkers)
	for _, item := range items {
		item := item
		results.Go(func() types.PlannedOperation {
			return p.planOne(ctx, item, pkgState)
		})
	}
	ops := results.Wait()

	report := &types.PlanReport{
		Manifests:      executionOrder,
		ExecutionOrder: executionOrder,
		Operations:     ops,
	}
	for _, op := range ops {
		if op.Error != "" {
			report.Errors = append(report.Errors, fmt.Sprintf("#%d %s: %s", op.ID, op.Manifest, op.Error))
		}
	}
	return report, nil
}

func (p *Planner) planOne(ctx context.Context, item workItem, pkgState *packageState) types.PlannedOperation {
	op := types.PlannedOperation{
		ID:       item.id,
		Manifest: item.manifest,
		Resource: item.resource.Clone(),
	}
	switch item.resource.Kind {
	case types.ResourceLink:
		p.planLink(&op, item.resource.Link)
	case types.ResourceTemplate:
		p.planTemplate(ctx, &op, item.resource.Template)
	case types.ResourcePackage:
		p.planPackage(&op, item.resource.Package, pkgState)
	case types.ResourceCommand:
		p.planCommand(&op, item.resource.Command)
	}
	return op
}

// packageState is the bulk installed-package lookup collected once per
// Plan call, before any per-resource planning runs, grouped by resolved
// manager name so each manager's installed-packages listing command runs
// exactly once regardless of how many package resources name it.
type packageState struct {
	installed map[string]map[string]bool
	err       map[string]error
}

// resolvePackageManager returns the manager name a package resource would
// plan against: its own provider_hint if set, otherwise the host's
// detected default manager (which may be "").
func resolvePackageManager(pkg *types.PackageResource, snapshot provider.Snapshot) string {
	if pkg.ProviderHint != "" {
		return pkg.ProviderHint
	}
	return snapshot.Default
}

// collectPackageState groups every package resource by resolved manager
// name and queries each manager's bulk installed-packages listing once,
// rather than once per resource. A manager that cannot be queried (not
// registered, not available on this host, or whose query itself fails)
// is recorded in err so planPackage can fall back to an unknown-status
// outcome instead of treating it as fatal.
func (p *Planner) collectPackageState(ctx context.Context, items []workItem) *packageState {
	groups := make(map[string][]string)
	for _, item := range items {
		if item.resource.Kind != types.ResourcePackage {
			continue
		}
		manager := resolvePackageManager(item.resource.Package, p.Snapshot)
		groups[manager] = append(groups[manager], item.resource.Package.Name)
	}

	state := &packageState{
		installed: make(map[string]map[string]bool, len(groups)),
		err:       make(map[string]error, len(groups)),
	}
	for manager, names := range groups {
		if manager == "" {
			state.err[manager] = fmt.Errorf("no package manager available on this host and no manager was specified")
			continue
		}
		backend, ok := p.Providers.Get(manager)
		if !ok {
			state.err[manager] = fmt.Errorf("unsupported package manager %q", manager)
			continue
		}
		if !p.managerAvailable(manager) {
			state.err[manager] = fmt.Errorf("package manager %q is not available on this host", manager)
			continue
		}
		installed, err := backend.InstalledPackages(ctx, names)
		if err != nil {
			state.err[manager] = fmt.Errorf("failed to query installed packages via %s: %w", manager, err)
			continue
		}
		state.installed[manager] = installed
	}
	return state
}

func (p *Planner) managerAvailable(name string) bool {
	for _, available := range p.Snapshot.Available {
		if available == name {
			return true
		}
	}
	return false
}

func (p *Planner) planLink(op *types.PlannedOperation, link *types.LinkResource) {
	srcProbe, err := fsutil.Exists(link.Src)
	if err != nil {
		op.Error = fmt.Sprintf("failed to inspect link source: %v", err)
		return
	}
	if !srcProbe.Exists {
		op.Action = types.LinkConflict
		op.Conflict = true
		op.Error = fmt.Sprintf("link source %s does not exist", link.Src)
		return
	}
	if srcContent, err := os.ReadFile(link.Src); err == nil {
		op.ContentHash = hashContent(string(srcContent))
	}

	probe, err := fsutil.Exists(link.Dest)
	if err != nil {
		op.Error = fmt.Sprintf("failed to inspect link destination: %v", err)
		return
	}

	if !probe.Exists {
		op.Action = types.LinkCreate
		op.WouldChange = true
		op.Summary = fmt.Sprintf("create symlink %s -> %s", link.Dest, link.Src)
		return
	}

	if probe.IsSymlink {
		points, err := fsutil.SymlinkPointsTo(link.Dest, link.Src)
		if err != nil {
			op.Error = fmt.Sprintf("failed to read existing symlink: %v", err)
			return
		}
		if points {
			op.Action = types.LinkNoop
			op.Summary = fmt.Sprintf("symlink %s already points to %s", link.Dest, link.Src)
			return
		}
		if probe.Dangling {
			op.Hint = "existing symlink is dangling"
		} else {
			op.Hint = "existing symlink points elsewhere"
		}
		if link.Force {
			op.Action = types.LinkReplace
			op.WouldChange = true
			op.Conflict = true
			op.Summary = fmt.Sprintf("replace symlink %s -> %s", link.Dest, link.Src)
			return
		}
		op.Action = types.LinkConflict
		op.Conflict = true
		op.Error = fmt.Sprintf("%s exists and does not point to %s; pass force=true to replace", link.Dest, link.Src)
		return
	}

	// Destination exists and is a regular file or directory.
	if probe.Info != nil && probe.Info.Mode().IsRegular() {
		if destContent, err := os.ReadFile(link.Dest); err == nil {
			op.DestContentHash = hashContent(string(destContent))
			if op.DestContentHash == op.ContentHash {
				op.Hint = "destination content matches source; likely wants force=true to convert it to a symlink"
			} else {
				op.Hint = "destination content differs from source"
			}
		}
	}

	if link.Force {
		op.Action = types.LinkReplace
		op.WouldChange = true
		op.Conflict = true
		op.Summary = fmt.Sprintf("replace %s with a symlink to %s", link.Dest, link.Src)
		return
	}
	op.Action = types.LinkConflict
	op.Conflict = true
	op.Error = fmt.Sprintf("%s exists and is not a symlink; pass force=true to replace", link.Dest)
}

func (p *Planner) planTemplate(ctx context.Context, op *types.PlannedOperation, tpl *types.TemplateResource) {
	body, err := os.ReadFile(tpl.Src)
	if err != nil {
		op.Error = fmt.Sprintf("failed to read template source: %v", err)
		return
	}
	rendered, err := p.Renderer.Render(ctx, tpl.Src, string(body), tpl.Vars)
	if err != nil {
		op.Error = fmt.Sprintf("failed to render template: %v", err)
		return
	}
	op.ContentHash = hashContent(rendered)

	probe, err := fsutil.Exists(tpl.Dest)
	if err != nil {
		op.Error = fmt.Sprintf("failed to inspect template destination: %v", err)
		return
	}
	if !probe.Exists {
		op.Action = types.TemplateCreate
		op.WouldChange = true
		op.Summary = fmt.Sprintf("render template to %s", tpl.Dest)
		return
	}
	if probe.IsSymlink {
		op.Action = types.TemplateConflict
		op.Conflict = true
		op.Error = fmt.Sprintf("%s exists as a symlink, expected a regular file", tpl.Dest)
		return
	}

	existing, err := os.ReadFile(tpl.Dest)
	if err != nil {
		if tpl.Force {
			op.Action = types.TemplateUpdate
			op.WouldChange = true
			op.Hint = fmt.Sprintf("could not read existing destination to compare content (%v); force=true will overwrite it", err)
			op.Summary = fmt.Sprintf("update %s with rendered content", tpl.Dest)
			return
		}
		op.Error = fmt.Sprintf("failed to read existing template destination: %v", err)
		return
	}
	op.DestContentHash = hashContent(string(existing))

	if op.DestContentHash == op.ContentHash {
		op.Action = types.TemplateNoop
		op.Summary = fmt.Sprintf("%s already matches rendered content", tpl.Dest)
		return
	}
	if tpl.Force {
		op.Action = types.TemplateUpdate
		op.WouldChange = true
		op.Summary = fmt.Sprintf("update %s with rendered content", tpl.Dest)
		return
	}
	op.Action = types.TemplateConflict
	op.Conflict = true
	op.Error = fmt.Sprintf("%s has diverged from the rendered content; pass force=true to overwrite", tpl.Dest)
}

func (p *Planner) planPackage(op *types.PlannedOperation, pkg *types.PackageResource, state *packageState) {
	managerName := resolvePackageManager(pkg, p.Snapshot)

	if queryErr, unavailable := state.err[managerName]; unavailable {
		// The manager itself (or its bulk query) is unusable: the install
		// state of pkg.Name is unknown, not absent. Per the declared
		// desired state this still surfaces as a would-change operation
		// with a hint, rather than a fatal planning error.
		op.Hint = fmt.Sprintf("%v; no available provider detected", queryErr)
		switch pkg.State {
		case types.PackagePresent:
			op.Action = types.PackageInstall
			op.Summary = fmt.Sprintf("install %s via %s (installed state unknown)", pkg.Name, managerLabel(managerName))
		case types.PackageAbsent:
			op.Action = types.PackageRemove
			op.Summary = fmt.Sprintf("remove %s via %s (installed state unknown)", pkg.Name, managerLabel(managerName))
		}
		op.WouldChange = true
		return
	}

	installed := state.installed[managerName][pkg.Name]

	switch pkg.State {
	case types.PackagePresent:
		if installed {
			op.Action = types.PackageNoop
			op.Summary = fmt.Sprintf("%s already installed via %s", pkg.Name, managerName)
			return
		}
		op.Action = types.PackageInstall
		op.WouldChange = true
		op.Summary = fmt.Sprintf("install %s via %s", pkg.Name, managerName)
	case types.PackageAbsent:
		if !installed {
			op.Action = types.PackageNoop
			op.Summary = fmt.Sprintf("%s already absent via %s", pkg.Name, managerName)
			return
		}
		op.Action = types.PackageRemove
		op.WouldChange = true
		op.Summary = fmt.Sprintf("remove %s via %s", pkg.Name, managerName)
	}
}

func managerLabel(name string) string {
	if name == "" {
		return "an unspecified manager"
	}
	return name
}

func (p *Planner) planCommand(op *types.PlannedOperation, command *types.CommandResource) {
	op.Action = types.CommandRun
	op.WouldChange = true
	op.Summary = fmt.Sprintf("run %s", command.Binary)
}

func hashContent(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
