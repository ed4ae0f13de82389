// Copyright 2025 Emin Salih Açıkgöz
// SPDX-License-Identifier: gpl3-or-later

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"keron/internal/applier"
	"keron/internal/elevate"
	"keron/internal/provider"
	"keron/internal/render"
	"keron/internal/secret"
	"keron/internal/sensitive"
)

var opFileFlag string

// applyOpCmd is the hidden entry point the elevated child process invokes
// after being re-launched under a privilege escalation helper. It never
// re-evaluates manifests; it only applies the single operation that was
// serialized to --op-file by the parent process.
var applyOpCmd = &cobra.Command{
	Use:    "__apply-op",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if opFileFlag == "" {
			return fmt.Errorf("--op-file is required")
		}
		op, err := elevate.ReadPayload(opFileFlag)
		if err != nil {
			return err
		}

		resolver := secret.NewResolver()
		sens := sensitive.New()
		renderer := render.New(resolver, sens)
		providers := provider.NewRegistry()
		a := applier.New(renderer, providers)

		result := a.Apply(context.Background(), op)
		if !result.Success {
			return fmt.Errorf("operation #%d failed: %s", result.ID, result.Error)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(applyOpCmd)
	applyOpCmd.Flags().StringVar(&opFileFlag, "op-file", "", "path to the serialized operation payload")
}
