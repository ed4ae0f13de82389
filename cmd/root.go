// Copyright 2025 Emin Salih Açıkgöz
// SPDX-License-Identifier: gpl3-or-later

// Package cmd implements keron's command-line commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes shared across every subcommand.
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitDrift   = 2
)

// Set with a linker flag during the release build.
var version = "v0.0.1-dev"

var rootCmd = &cobra.Command{
	Use:   "keron",
	Short: "A declarative host-configuration reconciler",
	Long: `keron evaluates a directory of manifest scripts describing the
desired state of a host - symlinks, rendered templates, packages and
commands - and reconciles the host towards that state.`,

	Run: func(cmd *cobra.Command, _ []string) {
		v, _ := cmd.Flags().GetBool("version")
		if v {
			fmt.Println(version)
			os.Exit(ExitSuccess)
		}
		if err := cmd.Help(); err != nil {
			fmt.Fprintf(os.Stderr, "error showing help: %v\n", err)
			os.Exit(ExitError)
		}
	},
}

// Execute runs the root command. It is called once by main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitError)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "show the keron version")
}
