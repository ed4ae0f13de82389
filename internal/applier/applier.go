// Copyright 2025 Emin Salih Açıkgöz
// SPDX-License-Identifier: gpl3-or-later

// Package applier executes a plan's operations against the host,
// sequentially and, by default, fail-fast: the first operation that
// errors stops every operation after it. Operations flagged Blocked()
// are refused outright rather than attempted, and operations whose
// resource requested elevate = true are delegated to a re-invoked,
// privilege-escalated child process rather than applied in-process.
package applier

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"

	"keron/internal/elevate"
	"keron/internal/provider"
	"keron/internal/render"
	"keron/internal/types"
)

// Applier applies PlannedOperations against the host filesystem and
// package managers.
type Applier struct {
	Renderer  *render.Renderer
	Providers *provider.Registry
	Snapshot  provider.Snapshot
	// FailFast stops ApplyAll at the first failing operation. Defaults to
	// true; set false only for diagnostic "apply everything you can" runs.
	FailFast bool
}

// New returns an Applier that fails fast by default.
func New(renderer *render.Renderer, providers *provider.Registry) *Applier {
	return &Applier{Renderer: renderer, Providers: providers, Snapshot: providers.Snapshot(), FailFast: true}
}

// ApplyAll applies every operation in plan, in order, and returns the
// accumulated results.
func (a *Applier) ApplyAll(ctx context.Context, plan *types.PlanReport) *types.ApplyReport {
	report := &types.ApplyReport{Plan: *plan}
	for i, op := range plan.Operations {
		result := a.Apply(ctx, op)
		report.Results = append(report.Results, result)
		if !result.Success {
			report.Errors = append(report.Errors, fmt.Sprintf("#%d %s: %s", op.ID, op.Manifest, result.Error))
			if a.FailFast {
				if remaining := len(plan.Operations) - i - 1; remaining > 0 {
					report.Errors = append(report.Errors, fmt.Sprintf("aborted after first failure (%d operation(s) not attempted)", remaining))
				}
				break
			}
		}
	}
	return report
}

// ownershipOnly reports whether op is a no-op whose only remaining work is
// handing ownership of an already-correct link or template back to the
// invoking user under elevation — the one case where a no-change operation
// still has something to apply.
func ownershipOnly(op types.PlannedOperation) bool {
	if op.WouldChange || !op.Resource.Elevate() {
		return false
	}
	return op.Resource.Kind == types.ResourceLink || op.Resource.Kind == types.ResourceTemplate
}

// Apply executes a single operation, returning its result.
func (a *Applier) Apply(ctx context.Context, op types.PlannedOperation) types.ApplyOperationResult {
	result := types.ApplyOperationResult{ID: op.ID, Summary: op.Summary}

	if op.Blocked() {
		result.Error = op.Error
		return result
	}

	ownershipOnlyOp := ownershipOnly(op)
	if !op.WouldChange && !ownershipOnlyOp {
		result.Success = true
		return result
	}

	if op.Resource.Elevate() && os.Getenv("KERON_ELEVATED_CHILD") != "1" {
		if err := elevate.Run(ctx, op); err != nil {
			result.Error = err.Error()
			return result
		}
		result.Success = true
		result.Changed = op.WouldChange
		return result
	}

	if ownershipOnlyOp {
		dest := op.Resource.Link.Dest
		if op.Resource.Kind == types.ResourceTemplate {
			dest = op.Resource.Template.Dest
		}
		changed, err := chownToInvokerIfElevated(dest)
		if err != nil {
			result.Error = err.Error()
			return result
		}
		result.Success = true
		result.Changed = changed
		return result
	}

	var err error
	switch op.Resource.Kind {
	case types.ResourceLink:
		err = a.applyLink(op)
	case types.ResourceTemplate:
		err = a.applyTemplate(ctx, op)
	case types.ResourcePackage:
		err = a.applyPackage(ctx, op)
	case types.ResourceCommand:
		err = a.applyCommand(ctx, op)
	}
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Success = true
	result.Changed = true
	return result
}

func (a *Applier) applyLink(op types.PlannedOperation) error {
	link := op.Resource.Link
	if link.Mkdirs {
		if err := os.MkdirAll(filepath.Dir(link.Dest), 0o755); err != nil {
			return fmt.Errorf("failed to create parent directories for %s: %w", link.Dest, err)
		}
	}
	if op.Action == types.LinkReplace {
		if err := os.RemoveAll(link.Dest); err != nil {
			return fmt.Errorf("failed to remove existing %s: %w", link.Dest, err)
		}
	}
	if err := os.Symlink(link.Src, link.Dest); err != nil {
		return fmt.Errorf("failed to symlink %s -> %s: %w", link.Dest, link.Src, err)
	}
	_, err := chownToInvokerIfElevated(link.Dest)
	return err
}

func (a *Applier) applyTemplate(ctx context.Context, op types.PlannedOperation) error {
	tpl := op.Resource.Template
	body, err := os.ReadFile(tpl.Src)
	if err != nil {
		return fmt.Errorf("failed to read template source %s: %w", tpl.Src, err)
	}
	rendered, err := a.Renderer.Render(ctx, tpl.Src, string(body), tpl.Vars)
	if err != nil {
		return fmt.Errorf("failed to render template %s: %w", tpl.Src, err)
	}
	if tpl.Mkdirs {
		if err := os.MkdirAll(filepath.Dir(tpl.Dest), 0o755); err != nil {
			return fmt.Errorf("failed to create parent directories for %s: %w", tpl.Dest, err)
		}
	}
	tmp := tpl.Dest + ".keron-tmp"
	if err := os.WriteFile(tmp, []byte(rendered), 0o644); err != nil {
		return fmt.Errorf("failed to write rendered template to %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, tpl.Dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to install rendered template at %s: %w", tpl.Dest, err)
	}
	_, err = chownToInvokerIfElevated(tpl.Dest)
	return err
}

func (a *Applier) applyPackage(ctx context.Context, op types.PlannedOperation) error {
	pkg := op.Resource.Package
	managerName := pkg.ProviderHint
	if managerName == "" {
		managerName = a.Snapshot.Default
	}
	backend, ok := a.Providers.Get(managerName)
	if !ok {
		return fmt.Errorf("unsupported package manager %q", managerName)
	}
	switch op.Action {
	case types.PackageInstall:
		return backend.Install(ctx, pkg.Name)
	case types.PackageRemove:
		return backend.Remove(ctx, pkg.Name)
	}
	return nil
}

func (a *Applier) applyCommand(ctx context.Context, op types.PlannedOperation) error {
	command := op.Resource.Command
	cmd := exec.CommandContext(ctx, command.Binary, command.Args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	return cmd.Run()
}

// chownToInvokerIfElevated hands ownership of path back to the invoking,
// typically non-root, user when this process is the elevated child:
// otherwise a root-privileged apply would leave root-owned files inside
// an ordinary user's home directory. Windows has no equivalent POSIX
// ownership model, so this is a no-op there. The reported bool is false
// whenever no chown was attempted (not elevated, not POSIX, env unset).
func chownToInvokerIfElevated(path string) (bool, error) {
	if runtime.GOOS == "windows" {
		return false, nil
	}
	if os.Getenv("KERON_ELEVATED_CHILD") != "1" {
		return false, nil
	}
	uidStr := os.Getenv("KERON_INVOKING_UID")
	gidStr := os.Getenv("KERON_INVOKING_GID")
	if uidStr == "" || gidStr == "" {
		return false, nil
	}
	uid, err := strconv.Atoi(uidStr)
	if err != nil {
		return false, nil
	}
	gid, err := strconv.Atoi(gidStr)
	if err != nil {
		return false, nil
	}
	if err := os.Lchown(path, uid, gid); err != nil {
		return false, err
	}
	return true, nil
}
