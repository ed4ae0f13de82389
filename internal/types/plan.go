// Copyright 2025 Emin Salih Açıkgöz
// SPDX-License-Identifier: gpl3-or-later

package types

// PlanAction enumerates every outcome the planner can assign to an
// operation, one value per resource kind crossed with its disposition.
type PlanAction string

const (
	LinkCreate      PlanAction = "link_create"
	LinkReplace     PlanAction = "link_replace"
	LinkNoop        PlanAction = "link_noop"
	LinkConflict    PlanAction = "link_conflict"
	TemplateCreate  PlanAction = "template_create"
	TemplateUpdate  PlanAction = "template_update"
	TemplateNoop    PlanAction = "template_noop"
	TemplateConflict PlanAction = "template_conflict"
	PackageInstall  PlanAction = "package_install"
	PackageRemove   PlanAction = "package_remove"
	PackageNoop     PlanAction = "package_noop"
	CommandRun      PlanAction = "command_run"
)

// PlannedOperation is the product of the planner and the unit the applier
// and report renderer both consume.
type PlannedOperation struct {
	// ID is monotonically assigned, 1..N, stable across runs on identical inputs.
	ID int `json:"id"`

	// Manifest is the absolute path of the owning manifest script.
	Manifest string `json:"manifest"`

	Action PlanAction `json:"action"`

	// Resource is a clone of the declaration that produced this operation.
	Resource Resource `json:"resource"`

	Summary string `json:"summary"`

	WouldChange bool `json:"would_change"`
	Conflict    bool `json:"conflict"`

	// Hint is a non-fatal diagnostic, concatenated from multiple sources with "; ".
	Hint string `json:"hint,omitempty"`

	// Error, if set, is fatal at plan time: the applier must refuse this operation.
	Error string `json:"error,omitempty"`

	ContentHash     string `json:"content_hash,omitempty"`
	DestContentHash string `json:"dest_content_hash,omitempty"`
}

// Blocked reports whether the applier must refuse this operation outright.
func (op *PlannedOperation) Blocked() bool {
	return op.Error != ""
}
