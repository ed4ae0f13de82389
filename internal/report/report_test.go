// Copyright 2025 Emin Salih Açıkgöz
// SPDX-License-Identifier: gpl3-or-later

package report

import (
	"strings"
	"testing"

	"keron/internal/sensitive"
	"keron/internal/types"
)

func plansForTally() *types.PlanReport {
	return &types.PlanReport{
		Operations: []types.PlannedOperation{
			{ID: 1, Action: types.LinkCreate, WouldChange: true, Summary: "create symlink",
				Resource: types.Resource{Kind: types.ResourceLink, Link: &types.LinkResource{}}},
			{ID: 2, Action: types.LinkNoop, Summary: "already correct",
				Resource: types.Resource{Kind: types.ResourceLink, Link: &types.LinkResource{}}},
			{ID: 3, Action: types.LinkConflict, Conflict: true, Error: "conflict", Summary: "conflict",
				Resource: types.Resource{Kind: types.ResourceLink, Link: &types.LinkResource{}}},
		},
	}
}

func TestRenderPlanTextShowsSymbolsVerbose(t *testing.T) {
	out, err := RenderPlan(plansForTally(), FormatText, true, false, sensitive.New())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "+ link") || !strings.Contains(out, "= link") || !strings.Contains(out, "! link") {
		t.Errorf("missing expected symbols in:\n%s", out)
	}
	if !strings.Contains(out, "Plan: 1 to add, 0 to change, 0 conflict, 1 error, 1 unchanged") {
		t.Errorf("unexpected tally line in:\n%s", out)
	}
}

func TestRenderPlanTextSuppressesNoopsAndSummarizesThem(t *testing.T) {
	out, err := RenderPlan(plansForTally(), FormatText, false, false, sensitive.New())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "already correct") {
		t.Errorf("expected no-op line to be suppressed in non-verbose output, got:\n%s", out)
	}
	if !strings.Contains(out, "1 unchanged (1 link)") {
		t.Errorf("expected an unchanged summary line, got:\n%s", out)
	}
	if !strings.Contains(out, "Plan: 1 to add, 0 to change, 0 conflict, 1 error, 1 unchanged") {
		t.Errorf("unexpected tally line in:\n%s", out)
	}
}

func TestRenderPlanJSONValid(t *testing.T) {
	plan := &types.PlanReport{
		Operations: []types.PlannedOperation{
			{ID: 1, Action: types.CommandRun, Summary: "run it",
				Resource: types.Resource{Kind: types.ResourceCommand, Command: &types.CommandResource{Binary: "true"}}},
		},
	}
	out, err := RenderPlan(plan, FormatJSON, false, false, sensitive.New())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"id": 1`) {
		t.Errorf("expected json id field, got:\n%s", out)
	}
}

func TestRedactReplacesLongestFirst(t *testing.T) {
	sens := sensitive.New()
	sens.Add("secret")
	sens.Add("supersecretvalue")

	out := Redact("the value is supersecretvalue indeed", sens)
	if strings.Contains(out, "supersecretvalue") {
		t.Errorf("expected full secret to be redacted, got %q", out)
	}
	if strings.Contains(out, "secret") {
		t.Errorf("expected no residual substring left unredacted, got %q", out)
	}
}

func TestDedupeWarnings(t *testing.T) {
	plan := &types.PlanReport{
		Warnings: []string{"dup", "dup", "other"},
	}
	out, err := RenderPlan(plan, FormatText, false, false, sensitive.New())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(out, "dup") != 1 {
		t.Errorf("expected duplicate warning to be collapsed, got:\n%s", out)
	}
}

func TestDefaultFoldersHintTruncates(t *testing.T) {
	folders := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	hint := DefaultFoldersHint(folders)
	if !strings.Contains(hint, "+2 more") {
		t.Errorf("expected overflow suffix, got %q", hint)
	}
}
