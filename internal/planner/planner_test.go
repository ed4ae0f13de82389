// Copyright 2025 Emin Salih Açıkgöz
// SPDX-License-Identifier: gpl3-or-later

package planner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"keron/internal/provider"
	"keron/internal/render"
	"keron/internal/secret"
	"keron/internal/sensitive"
	"keron/internal/types"
)

func newTestPlanner() *Planner {
	r := render.New(secret.NewResolver(), sensitive.New())
	return New(r, provider.NewRegistry())
}

func TestPlanLinkCreateWhenMissing(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	os.WriteFile(src, []byte("hi"), 0o644)
	dest := filepath.Join(dir, "dest")

	specs := map[string]*types.ManifestSpec{
		"m.lua": {Path: "m.lua", Resources: []types.Resource{
			{Kind: types.ResourceLink, Link: &types.LinkResource{Src: src, Dest: dest}},
		}},
	}
	report, err := newTestPlanner().Plan(context.Background(), []string{"m.lua"}, specs)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Operations) != 1 {
		t.Fatalf("expected 1 operation, got %d", len(report.Operations))
	}
	op := report.Operations[0]
	if op.Action != types.LinkCreate || !op.WouldChange {
		t.Errorf("unexpected op: %+v", op)
	}
	if op.ID != 1 {
		t.Errorf("expected id 1, got %d", op.ID)
	}
}

func TestPlanLinkNoopWhenAlreadyCorrect(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	os.WriteFile(src, []byte("hi"), 0o644)
	dest := filepath.Join(dir, "dest")
	if err := os.Symlink(src, dest); err != nil {
		t.Fatal(err)
	}

	specs := map[string]*types.ManifestSpec{
		"m.lua": {Path: "m.lua", Resources: []types.Resource{
			{Kind: types.ResourceLink, Link: &types.LinkResource{Src: src, Dest: dest}},
		}},
	}
	report, err := newTestPlanner().Plan(context.Background(), []string{"m.lua"}, specs)
	if err != nil {
		t.Fatal(err)
	}
	op := report.Operations[0]
	if op.Action != types.LinkNoop || op.WouldChange {
		t.Errorf("unexpected op: %+v", op)
	}
}

func TestPlanLinkConflictWithoutForce(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	os.WriteFile(src, []byte("hi"), 0o644)
	dest := filepath.Join(dir, "dest")
	os.WriteFile(dest, []byte("existing"), 0o644)

	specs := map[string]*types.ManifestSpec{
		"m.lua": {Path: "m.lua", Resources: []types.Resource{
			{Kind: types.ResourceLink, Link: &types.LinkResource{Src: src, Dest: dest}},
		}},
	}
	report, err := newTestPlanner().Plan(context.Background(), []string{"m.lua"}, specs)
	if err != nil {
		t.Fatal(err)
	}
	op := report.Operations[0]
	if op.Action != types.LinkConflict || !op.Conflict || op.Error == "" {
		t.Errorf("unexpected op: %+v", op)
	}
}

func TestPlanTemplateIdempotent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.tpl")
	os.WriteFile(src, []byte("hello {{name}}\n"), 0o644)
	dest := filepath.Join(dir, "dest")
	os.WriteFile(dest, []byte("hello sam\n"), 0o644)

	specs := map[string]*types.ManifestSpec{
		"m.lua": {Path: "m.lua", Resources: []types.Resource{
			{Kind: types.ResourceTemplate, Template: &types.TemplateResource{
				Src: src, Dest: dest, Vars: map[string]string{"name": "sam"},
			}},
		}},
	}
	report, err := newTestPlanner().Plan(context.Background(), []string{"m.lua"}, specs)
	if err != nil {
		t.Fatal(err)
	}
	op := report.Operations[0]
	if op.Action != types.TemplateNoop || op.WouldChange {
		t.Errorf("unexpected op: %+v", op)
	}
}

func TestFlattenAssignsContiguousIds(t *testing.T) {
	specs := map[string]*types.ManifestSpec{
		"a.lua": {Path: "a.lua", Resources: []types.Resource{
			{Kind: types.ResourceCommand, Command: &types.CommandResource{Binary: "echo"}},
			{Kind: types.ResourceCommand, Command: &types.CommandResource{Binary: "echo"}},
		}},
		"b.lua": {Path: "b.lua", Resources: []types.Resource{
			{Kind: types.ResourceCommand, Command: &types.CommandResource{Binary: "echo"}},
		}},
	}
	items := Flatten([]string{"a.lua", "b.lua"}, specs)
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	for i, item := range items {
		if item.id != i+1 {
			t.Errorf("item %d: got id %d, want %d", i, item.id, i+1)
		}
	}
}

func TestPlanPackageUnknownProviderHintIsWouldChangeNotError(t *testing.T) {
	specs := map[string]*types.ManifestSpec{
		"m.lua": {Path: "m.lua", Resources: []types.Resource{
			{Kind: types.ResourcePackage, Package: &types.PackageResource{
				Name: "ripgrep", ProviderHint: "not-a-real-manager", State: types.PackagePresent,
			}},
		}},
	}
	report, err := newTestPlanner().Plan(context.Background(), []string{"m.lua"}, specs)
	if err != nil {
		t.Fatal(err)
	}
	op := report.Operations[0]
	if op.Error != "" {
		t.Errorf("unsupported provider hint should not be a fatal planning error, got: %+v", op)
	}
	if op.Action != types.PackageInstall || !op.WouldChange {
		t.Errorf("expected an install op with unknown installed state, got: %+v", op)
	}
	if op.Hint == "" {
		t.Error("expected a hint explaining the unknown installed state")
	}
}

func TestPlanCommandAlwaysRuns(t *testing.T) {
	specs := map[string]*types.ManifestSpec{
		"m.lua": {Path: "m.lua", Resources: []types.Resource{
			{Kind: types.ResourceCommand, Command: &types.CommandResource{Binary: "true"}},
		}},
	}
	report, err := newTestPlanner().Plan(context.Background(), []string{"m.lua"}, specs)
	if err != nil {
		t.Fatal(err)
	}
	op := report.Operations[0]
	if op.Action != types.CommandRun || !op.WouldChange {
		t.Errorf("unexpected op: %+v", op)
	}
}
