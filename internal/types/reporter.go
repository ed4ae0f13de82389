// Copyright 2025 Emin Salih Açıkgöz
// SPDX-License-Identifier: gpl3-or-later

package types

// Reporter reports pipeline phase progress and per-operation status to
// the user as discover/evaluate/plan/apply runs.
type Reporter interface {
	// Phase logs a high-level pipeline milestone.
	Phase(emoji, message string)

	// SetTotalPhases updates the denominator used by Phase.
	SetTotalPhases(total int)

	// OperationStart announces the start of one planned operation.
	OperationStart(description string, index, total int)

	// OperationEnd finalizes the indicator started by OperationStart.
	OperationEnd(err error)
}
