// Copyright 2025 Emin Salih Açıkgöz
// SPDX-License-Identifier: gpl3-or-later

// Package progress reports pipeline phase and per-operation progress to
// the terminal, picking a plain line-based reporter or an animated
// spinner reporter depending on whether stdout is a TTY and whether the
// run is plan-only.
package progress

import (
	"os"

	"keron/internal/types"
)

// NewReporter selects the Reporter implementation appropriate for the
// current execution context.
func NewReporter(totalPhases int, planOnly bool) types.Reporter {
	// A plan-only run never mutates the host, so there is nothing worth
	// animating; keep output to a clean, replayable log.
	if planOnly {
		return NewPlainReporter(totalPhases, true)
	}
	if !isTerminal() {
		return NewPlainReporter(totalPhases, false)
	}
	return NewSpinnerReporter(totalPhases)
}

func isTerminal() bool {
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
