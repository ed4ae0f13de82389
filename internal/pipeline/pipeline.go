// Copyright 2025 Emin Salih Açıkgöz
// SPDX-License-Identifier: gpl3-or-later

// Package pipeline orchestrates one end-to-end run: discover manifests,
// evaluate each one, resolve their dependency order, plan every
// resource, and, when asked, apply the plan. It is the single place that
// wires the evaluator, grapher, planner, applier and report renderer
// together.
package pipeline

import (
	"context"
	"fmt"

	"keron/internal/applier"
	"keron/internal/discovery"
	"keron/internal/eval"
	"keron/internal/graph"
	"keron/internal/kerr"
	"keron/internal/planner"
	"keron/internal/provider"
	"keron/internal/render"
	"keron/internal/report"
	"keron/internal/secret"
	"keron/internal/sensitive"
	"keron/internal/types"
)

// Options configures one pipeline run.
type Options struct {
	Source   string
	Execute  bool
	Verbose  bool
	Color    bool
	Format   report.Format
	Reporter types.Reporter
}

// Result is everything a run produced, for the CLI layer to render and
// use for exit-code selection.
type Result struct {
	Plan         *types.PlanReport
	Apply        *types.ApplyReport
	Sensitive    *sensitive.Set
	RenderedText string
}

// Pipeline wires the evaluator, planner and applier to a shared secret
// resolver, provider registry and sensitive-value set.
type Pipeline struct {
	Evaluator *eval.Evaluator
	Planner   *planner.Planner
	Applier   *applier.Applier
	Sensitive *sensitive.Set
}

// New wires up a Pipeline from scratch: a fresh secret resolver, provider
// registry and sensitive-value set shared end to end by the evaluator,
// template renderer, planner and applier.
func New() *Pipeline {
	resolver := secret.NewResolver()
	sens := sensitive.New()
	renderer := render.New(resolver, sens)
	providers := provider.NewRegistry()

	return &Pipeline{
		Evaluator: eval.New(resolver),
		Planner:   planner.New(renderer, providers),
		Applier:   applier.New(renderer, providers),
		Sensitive: sens,
	}
}

// Run discovers, evaluates, orders, plans and (if opts.Execute) applies
// every manifest under opts.Source.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	reporter := opts.Reporter
	if reporter == nil {
		reporter = noopReporter{}
	}
	totalPhases := 4
	if opts.Execute {
		totalPhases = 5
	}
	reporter.SetTotalPhases(totalPhases)

	reporter.Phase("🔍", fmt.Sprintf("discovering manifests in %s", opts.Source))
	paths, err := discovery.Find(opts.Source)
	if err != nil {
		return nil, err
	}

	reporter.Phase("📖", fmt.Sprintf("evaluating %d manifest(s)", len(paths)))
	specs := make(map[string]*types.ManifestSpec, len(paths))
	specList := make([]*types.ManifestSpec, 0, len(paths))
	for _, path := range paths {
		result, err := p.Evaluator.Evaluate(ctx, path)
		if err != nil {
			return nil, err
		}
		specs[path] = result.Spec
		specList = append(specList, result.Spec)
		p.Sensitive.Merge(result.Sensitive)
	}

	reporter.Phase("🧭", "resolving manifest dependency order")
	var graphErrors []string
	order, err := graph.Sort(specList)
	if err != nil {
		graphErrors = append(graphErrors, fmt.Sprintf("dependency graph could not be resolved (%v); falling back to discovery order", err))
		order = paths
	}

	reporter.Phase("📋", "planning operations")
	planReport, err := p.Planner.Plan(ctx, order, specs)
	if err != nil {
		return nil, kerr.Wrap(kerr.KindGraph, opts.Source, "failed to plan operations", err)
	}
	planReport.Errors = append(planReport.Errors, graphErrors...)

	result := &Result{Plan: planReport, Sensitive: p.Sensitive}

	if !opts.Execute {
		text, err := report.RenderPlan(planReport, opts.Format, opts.Verbose, opts.Color, p.Sensitive)
		if err != nil {
			return nil, err
		}
		result.RenderedText = text
		return result, nil
	}

	reporter.Phase("🚀", "applying operations")
	applyReport := p.Applier.ApplyAll(ctx, planReport)
	result.Apply = applyReport

	text, err := report.RenderApply(applyReport, opts.Format, opts.Verbose, opts.Color, p.Sensitive)
	if err != nil {
		return nil, err
	}
	result.RenderedText = text
	return result, nil
}

type noopReporter struct{}

func (noopReporter) Phase(string, string)           {}
func (noopReporter) SetTotalPhases(int)              {}
func (noopReporter) OperationStart(string, int, int) {}
func (noopReporter) OperationEnd(error)              {}
