// Copyright 2025 Emin Salih Açıkgöz
// SPDX-License-Identifier: gpl3-or-later

package applier

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"keron/internal/provider"
	"keron/internal/render"
	"keron/internal/secret"
	"keron/internal/sensitive"
	"keron/internal/types"
)

func newTestApplier() *Applier {
	r := render.New(secret.NewResolver(), sensitive.New())
	return New(r, provider.NewRegistry())
}

func TestApplyLinkCreate(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	os.WriteFile(src, []byte("hi"), 0o644)
	dest := filepath.Join(dir, "dest")

	op := types.PlannedOperation{
		ID:          1,
		Action:      types.LinkCreate,
		WouldChange: true,
		Resource: types.Resource{
			Kind: types.ResourceLink,
			Link: &types.LinkResource{Src: src, Dest: dest},
		},
	}
	result := newTestApplier().Apply(context.Background(), op)
	if !result.Success || !result.Changed {
		t.Fatalf("unexpected result: %+v", result)
	}
	target, err := os.Readlink(dest)
	if err != nil || target != src {
		t.Errorf("expected symlink to %s, got %s (err %v)", src, target, err)
	}
}

func TestApplyBlockedOperationRefused(t *testing.T) {
	op := types.PlannedOperation{
		ID:    1,
		Error: "destination conflict",
		Resource: types.Resource{
			Kind: types.ResourceLink,
			Link: &types.LinkResource{Src: "/a", Dest: "/b"},
		},
	}
	result := newTestApplier().Apply(context.Background(), op)
	if result.Success {
		t.Fatal("expected blocked operation to fail")
	}
	if result.Error != "destination conflict" {
		t.Errorf("got %q", result.Error)
	}
}

func TestApplyNoopSkipsWork(t *testing.T) {
	op := types.PlannedOperation{
		ID:          1,
		Action:      types.LinkNoop,
		WouldChange: false,
		Resource: types.Resource{
			Kind: types.ResourceLink,
			Link: &types.LinkResource{Src: "/a", Dest: "/b"},
		},
	}
	result := newTestApplier().Apply(context.Background(), op)
	if !result.Success || result.Changed {
		t.Errorf("expected success without change, got %+v", result)
	}
}

func TestApplyAllStopsOnFirstFailure(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good-dest")
	src := filepath.Join(dir, "src")
	os.WriteFile(src, []byte("hi"), 0o644)

	plan := &types.PlanReport{
		Operations: []types.PlannedOperation{
			{
				ID:     1,
				Error:  "forced failure",
				Action: types.LinkCreate,
				Resource: types.Resource{
					Kind: types.ResourceLink,
					Link: &types.LinkResource{Src: src, Dest: filepath.Join(dir, "bad-dest")},
				},
			},
			{
				ID:          2,
				Action:      types.LinkCreate,
				WouldChange: true,
				Resource: types.Resource{
					Kind: types.ResourceLink,
					Link: &types.LinkResource{Src: src, Dest: good},
				},
			},
		},
	}

	report := newTestApplier().ApplyAll(context.Background(), plan)
	if len(report.Results) != 1 {
		t.Fatalf("expected apply to stop after first failure, got %d results", len(report.Results))
	}
	if _, err := os.Lstat(good); err == nil {
		t.Error("expected second operation to never run")
	}
	found := false
	for _, e := range report.Errors {
		if strings.Contains(e, "aborted after first failure") && strings.Contains(e, "1 operation(s) not attempted") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an abort diagnostic naming the skipped operation count, got: %v", report.Errors)
	}
}

func TestApplyNoopElevatedLinkStillReconcilesOwnership(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	os.WriteFile(src, []byte("hi"), 0o644)
	dest := filepath.Join(dir, "dest")
	if err := os.Symlink(src, dest); err != nil {
		t.Fatal(err)
	}

	t.Setenv("KERON_ELEVATED_CHILD", "1")
	t.Setenv("KERON_INVOKING_UID", strconv.Itoa(os.Getuid()))
	t.Setenv("KERON_INVOKING_GID", strconv.Itoa(os.Getgid()))

	op := types.PlannedOperation{
		ID:          1,
		Action:      types.LinkNoop,
		WouldChange: false,
		Resource: types.Resource{
			Kind: types.ResourceLink,
			Link: &types.LinkResource{Src: src, Dest: dest, Elevate: true},
		},
	}
	result := newTestApplier().Apply(context.Background(), op)
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if runtime.GOOS != "windows" && !result.Changed {
		t.Errorf("expected ownership reconciliation to run for an elevated no-op link, got %+v", result)
	}
}

func TestApplyTemplateWritesRenderedContent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.tpl")
	os.WriteFile(src, []byte("hello {{name}}\n"), 0o644)
	dest := filepath.Join(dir, "dest")

	op := types.PlannedOperation{
		ID:          1,
		Action:      types.TemplateCreate,
		WouldChange: true,
		Resource: types.Resource{
			Kind: types.ResourceTemplate,
			Template: &types.TemplateResource{
				Src: src, Dest: dest, Vars: map[string]string{"name": "sam"},
			},
		},
	}
	result := newTestApplier().Apply(context.Background(), op)
	if !result.Success {
		t.Fatalf("unexpected result: %+v", result)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello sam\n" {
		t.Errorf("got %q", got)
	}
}
