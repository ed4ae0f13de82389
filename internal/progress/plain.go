// Copyright 2025 Emin Salih Açıkgöz
// SPDX-License-Identifier: gpl3-or-later

package progress

import "fmt"

// PlainReporter emits static, line-based output, used for non-interactive
// terminals and for plan-only runs.
type PlainReporter struct {
	currentPhase int
	totalPhases  int
	planOnly     bool
}

// NewPlainReporter returns a PlainReporter.
func NewPlainReporter(totalPhases int, planOnly bool) *PlainReporter {
	return &PlainReporter{totalPhases: totalPhases, planOnly: planOnly}
}

// Phase logs a milestone. Plan-only runs suppress anything past the
// discover/evaluate phases, since there is no apply phase to announce.
func (r *PlainReporter) Phase(emoji, message string) {
	r.currentPhase++
	if r.planOnly && r.currentPhase > 2 {
		return
	}
	fmt.Printf("[%d/%d] %s %s\n", r.currentPhase, r.totalPhases, emoji, message)
}

// SetTotalPhases updates the denominator for future Phase calls.
func (r *PlainReporter) SetTotalPhases(total int) {
	r.totalPhases = total
}

// OperationStart prints a one-line marker for plan-only runs; apply runs
// stay silent here since the plain reporter has no animation to show.
func (r *PlainReporter) OperationStart(desc string, _, _ int) {
	if r.planOnly {
		fmt.Printf("  [plan] %s\n", desc)
	}
}

// OperationEnd is a no-op, satisfying the Reporter interface.
func (r *PlainReporter) OperationEnd(_ error) {}
