// Copyright 2025 Emin Salih Açıkgöz
// SPDX-License-Identifier: gpl3-or-later

// Package report renders a PlanReport or ApplyReport as either
// deterministic plain text or JSON, applying sensitive-value redaction to
// whichever form is actually emitted.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"keron/internal/sensitive"
	"keron/internal/types"
)

// Format selects the rendered output shape.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// hashPrefixLen is how many hex characters of a content hash verbose
// text output shows; long enough to disambiguate by eye, short enough to
// keep a line on one terminal row.
const hashPrefixLen = 12

// RenderPlan renders a PlanReport in the requested format. color enables
// ANSI coloring of the per-operation symbol in text output; it has no
// effect on JSON output.
func RenderPlan(plan *types.PlanReport, format Format, verbose, color bool, sens *sensitive.Set) (string, error) {
	var out string
	switch format {
	case FormatJSON:
		body, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to render plan as json: %w", err)
		}
		out = string(body)
	default:
		out = renderPlanText(plan, verbose, color)
	}
	return Redact(out, sens), nil
}

// RenderApply renders an ApplyReport in the requested format.
func RenderApply(apply *types.ApplyReport, format Format, verbose, color bool, sens *sensitive.Set) (string, error) {
	var out string
	switch format {
	case FormatJSON:
		body, err := json.MarshalIndent(apply, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to render apply report as json: %w", err)
		}
		out = string(body)
	default:
		out = renderApplyText(apply, verbose, color)
	}
	return Redact(out, sens), nil
}

// isChanged reports whether op belongs in the "changed" group a report
// always shows, as opposed to the "no-op" group shown only when verbose.
func isChanged(op types.PlannedOperation) bool {
	return op.WouldChange || op.Conflict || op.Error != ""
}

func renderPlanText(plan *types.PlanReport, verbose, color bool) string {
	var b strings.Builder

	for _, e := range dedupeWarnings(plan.Errors) {
		fmt.Fprintf(&b, "error: %s\n", e)
	}
	for _, warning := range dedupeWarnings(plan.Warnings) {
		fmt.Fprintf(&b, "warning: %s\n", warning)
	}

	var toAdd, toChange, conflicts, errs, unchanged int
	noopKinds := make(map[string]int)
	for _, op := range plan.Operations {
		if !isChanged(op) {
			unchanged++
			noopKinds[op.Resource.Kind.String()]++
			if verbose {
				writeOperationLine(&b, op, verbose, color)
			}
			continue
		}
		writeOperationLine(&b, op, verbose, color)
		switch {
		case op.Error != "":
			errs++
		case op.Conflict:
			conflicts++
		case isCreate(op.Action):
			toAdd++
		default:
			toChange++
		}
	}

	if !verbose && unchanged > 0 {
		fmt.Fprintf(&b, "%d unchanged (%s)\n", unchanged, summarizeKindCounts(noopKinds))
	}

	fmt.Fprintf(&b, "\nPlan: %d to add, %d to change, %d conflict, %d error, %d unchanged\n",
		toAdd, toChange, conflicts, errs, unchanged)
	return b.String()
}

func renderApplyText(apply *types.ApplyReport, verbose, color bool) string {
	var b strings.Builder

	for _, e := range dedupeWarnings(apply.Errors) {
		fmt.Fprintf(&b, "error: %s\n", e)
	}

	byID := make(map[int]types.ApplyOperationResult, len(apply.Results))
	for _, r := range apply.Results {
		byID[r.ID] = r
	}

	var added, changed, failed, unchanged, notAttempted int
	unchangedKinds := make(map[string]int)
	for _, op := range apply.Plan.Operations {
		result, ran := byID[op.ID]
		switch {
		case !ran:
			notAttempted++
			if verbose {
				fmt.Fprintf(&b, "- %-8s %s (not attempted)\n", op.Resource.Kind.String(), shortenHome(op.Summary))
			}
		case !result.Success:
			failed++
			fmt.Fprintf(&b, "! %-8s %s: %s\n", op.Resource.Kind.String(), shortenHome(op.Summary), result.Error)
		case !result.Changed:
			unchanged++
			unchangedKinds[op.Resource.Kind.String()]++
			if verbose {
				writeOperationLine(&b, op, verbose, color)
			}
		default:
			if isCreate(op.Action) {
				added++
			} else {
				changed++
			}
			writeOperationLine(&b, op, verbose, color)
		}
	}

	if !verbose && unchanged > 0 {
		fmt.Fprintf(&b, "%d unchanged (%s)\n", unchanged, summarizeKindCounts(unchangedKinds))
	}
	if notAttempted > 0 {
		fmt.Fprintf(&b, "%d operation(s) not attempted\n", notAttempted)
	}

	fmt.Fprintf(&b, "\nApplied: %d added, %d changed, %d failed, %d unchanged\n",
		added, changed, failed, unchanged)
	return b.String()
}

// noopKindOrder is the fixed order a "N unchanged (...)" summary line
// breaks its per-kind counts down in, independent of map iteration order.
var noopKindOrder = []string{"link", "template", "package", "command"}

func summarizeKindCounts(counts map[string]int) string {
	var parts []string
	for _, kind := range noopKindOrder {
		n := counts[kind]
		if n == 0 {
			continue
		}
		plural := "s"
		if n == 1 {
			plural = ""
		}
		parts = append(parts, fmt.Sprintf("%d %s%s", n, kind, plural))
	}
	return strings.Join(parts, ", ")
}

func writeOperationLine(b *strings.Builder, op types.PlannedOperation, verbose, color bool) {
	symbol := symbolFor(op)
	if color {
		symbol = colorize(symbol)
	}
	kind := fmt.Sprintf("%-8s", op.Resource.Kind.String())

	if verbose {
		manifest := shortenHome(op.Manifest)
		fmt.Fprintf(b, "%s %s %s #%d %s", symbol, kind, shortenHome(op.Summary), op.ID, manifest)
		if op.ContentHash != "" {
			fmt.Fprintf(b, " (sha256 %s)", truncateHash(op.ContentHash))
		}
		if op.DestContentHash != "" {
			fmt.Fprintf(b, " (dest sha256 %s)", truncateHash(op.DestContentHash))
		}
		b.WriteByte('\n')
	} else {
		fmt.Fprintf(b, "%s %s %s\n", symbol, kind, shortenHome(op.Summary))
	}

	if op.Hint != "" {
		fmt.Fprintf(b, "    hint: %s\n", shortenHome(op.Hint))
	}
	if op.Error != "" {
		fmt.Fprintf(b, "    error: %s\n", shortenHome(op.Error))
	}
}

func symbolFor(op types.PlannedOperation) string {
	switch {
	case op.Blocked() || op.Conflict:
		return "!"
	case !op.WouldChange:
		return "="
	case isCreate(op.Action):
		return "+"
	default:
		return "~"
	}
}

// colorize wraps a single-character operation symbol in the ANSI color
// conventionally associated with its meaning: green for create, yellow
// for change, a dim gray for no-op, red for conflict/error.
func colorize(symbol string) string {
	const reset = "\x1b[0m"
	var color string
	switch symbol {
	case "+":
		color = "\x1b[32m"
	case "~":
		color = "\x1b[33m"
	case "=":
		color = "\x1b[90m"
	case "!":
		color = "\x1b[31m"
	default:
		return symbol
	}
	return color + symbol + reset
}

func isCreate(action types.PlanAction) bool {
	switch action {
	case types.LinkCreate, types.TemplateCreate, types.PackageInstall, types.CommandRun:
		return true
	default:
		return false
	}
}

func truncateHash(hash string) string {
	if len(hash) <= hashPrefixLen {
		return hash
	}
	return hash[:hashPrefixLen]
}

// shortenHome rewrites every $HOME path prefix to "~" in both source and
// destination paths shown in report output, the way `ls`/shell prompts
// commonly do, so verbose output doesn't spell out the invoking user's
// full home directory on every line.
func shortenHome(s string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return s
	}
	sep := string(os.PathSeparator)
	out := strings.ReplaceAll(s, home+sep, "~"+sep)
	if out == home || strings.HasSuffix(out, " "+home) {
		out = strings.TrimSuffix(out, home) + "~"
	}
	return out
}

// dedupeWarnings preserves first-seen order while dropping any warning
// string already emitted once.
func dedupeWarnings(warnings []string) []string {
	seen := make(map[string]bool, len(warnings))
	out := make([]string, 0, len(warnings))
	for _, w := range warnings {
		if seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// redactedMarker replaces every sensitive value found in rendered output.
const redactedMarker = "[REDACTED]"

// Redact replaces every sensitive value in text with redactedMarker.
// Values are applied longest-first (sensitive.Set.Values already returns
// them in that order) so that a short secret that happens to be a
// substring of a longer one never leaves part of the longer one exposed.
func Redact(text string, sens *sensitive.Set) string {
	if sens == nil {
		return text
	}
	out := text
	for _, v := range sens.Values() {
		if v == "" {
			continue
		}
		out = strings.ReplaceAll(out, v, redactedMarker)
	}
	return out
}

// foldersTruncateAt bounds how many default-provider-folder names a
// "(default folders: …)" diagnostic line lists before summarising the
// remainder as a count, keeping a single diagnostic line readable.
const foldersTruncateAt = 6

// DefaultFoldersHint renders the "(default folders: …)" suffix used when
// reporting which folders a provider snapshot considered, truncating the
// list and appending an overflow count past foldersTruncateAt entries.
func DefaultFoldersHint(folders []string) string {
	if len(folders) == 0 {
		return ""
	}
	sorted := append([]string(nil), folders...)
	sort.Strings(sorted)
	if len(sorted) <= foldersTruncateAt {
		return "(default folders: " + strings.Join(sorted, ", ") + ")"
	}
	shown := sorted[:foldersTruncateAt]
	return "(default folders: " + strings.Join(shown, ", ") + ", +" + strconv.Itoa(len(sorted)-foldersTruncateAt) + " more)"
}
