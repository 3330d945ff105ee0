package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var (
	// Version is overridden with ldflags at build time.
	Version = "0.1.0"
	// Build can be set via ldflags at compile time.
	Build = "dev"
)

var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Print version information",
	GroupID: "inspect",
	RunE: func(cmd *cobra.Command, args []string) error {
		commit := resolveCommitHash()
		if structured() {
			return writeStructured(cmd.OutOrStdout(), map[string]string{
				"version": Version,
				"build":   Build,
				"commit":  commit,
			})
		}
		if commit != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "jirasync version %s (%s: %s)\n", Version, Build, commit)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "jirasync version %s (%s)\n", Version, Build)
		return nil
	},
}

// resolveCommitHash reads the VCS revision embedded by the Go toolchain.
func resolveCommitHash() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 12 {
			return s.Value[:12]
		}
	}
	return ""
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
