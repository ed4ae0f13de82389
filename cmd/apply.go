// Copyright 2025 Emin Salih Açıkgöz
// SPDX-License-Identifier: gpl3-or-later

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"keron/internal/pipeline"
	"keron/internal/progress"
	"keron/internal/report"
)

var (
	colorFlag   string
	verboseFlag bool
	formatFlag  string
	executeFlag bool
)

var applyCmd = &cobra.Command{
	Use:   "apply <source>",
	Short: "Plan, and optionally execute, the manifests under a source directory",
	Long: `apply discovers every manifest script under <source>, evaluates it,
resolves the dependency order between manifests, and plans every
resource's operation against the current host.

By default apply only plans and prints the result; pass --execute to
carry out the plan's changes.`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

func init() {
	rootCmd.AddCommand(applyCmd)
	applyCmd.Flags().StringVar(&colorFlag, "color", "auto", "colorize output: auto, always, or never")
	applyCmd.Flags().BoolVar(&verboseFlag, "verbose", false, "show operation ids, manifests and content hashes")
	applyCmd.Flags().StringVar(&formatFlag, "format", "text", "report format: text or json")
	applyCmd.Flags().BoolVar(&executeFlag, "execute", false, "apply the plan instead of only printing it")
}

func runApply(cmd *cobra.Command, args []string) error {
	source, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve source path %s: %w", args[0], err)
	}

	format := report.Format(formatFlag)
	if format != report.FormatText && format != report.FormatJSON {
		return fmt.Errorf("invalid --format %q, must be text or json", formatFlag)
	}

	color, err := resolveColor(colorFlag)
	if err != nil {
		return err
	}

	totalPhases := 4
	if executeFlag {
		totalPhases = 5
	}
	reporter := progress.NewReporter(totalPhases, !executeFlag)

	p := pipeline.New()
	result, err := p.Run(context.Background(), pipeline.Options{
		Source:   source,
		Execute:  executeFlag,
		Verbose:  verboseFlag,
		Color:    color,
		Format:   format,
		Reporter: reporter,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(ExitError)
	}

	fmt.Println(result.RenderedText)

	switch {
	case result.Apply != nil:
		if result.Apply.HasFailures() {
			os.Exit(ExitError)
		}
		os.Exit(ExitSuccess)
	case result.Plan.HasErrors():
		os.Exit(ExitError)
	case result.Plan.HasDrift():
		os.Exit(ExitDrift)
	default:
		os.Exit(ExitSuccess)
	}
	return nil
}

func resolveColor(mode string) (bool, error) {
	switch mode {
	case "always":
		return true, nil
	case "never":
		return false, nil
	case "auto":
		info, err := os.Stdout.Stat()
		if err != nil {
			return false, nil
		}
		return (info.Mode() & os.ModeCharDevice) != 0, nil
	default:
		return false, fmt.Errorf("invalid --color %q, must be auto, always, or never", mode)
	}
}
