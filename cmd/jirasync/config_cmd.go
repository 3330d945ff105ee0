package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/steveyegge/jirasync/internal/config"
	"github.com/steveyegge/jirasync/internal/ui"
)

// configView is the structured output of `jirasync config`.
type configView struct {
	File     string            `json:"file,omitempty" yaml:"file,omitempty"`
	Settings map[string]string `json:"settings" yaml:"settings"`
	Branches []string          `json:"branches" yaml:"branches"`
}

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Show the effective configuration",
	GroupID: "inspect",
	Long: `Print every setting with its effective value after merging the config
file, environment variables and defaults. Secrets are masked.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		policies, err := cfg.Policies()
		if err != nil {
			return err
		}
		view := configView{
			File:     config.ConfigFileUsed(),
			Settings: config.AllSettings(),
			Branches: policies.Branches(),
		}

		out := cmd.OutOrStdout()
		if structured() {
			return writeStructured(out, view)
		}

		file := view.File
		if file == "" {
			file = "(none)"
		}
		fmt.Fprintf(out, "%s %s\n", ui.RenderMuted("config file:"), file)
		keys := make([]string, 0, len(view.Settings))
		for k := range view.Settings {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			val := view.Settings[k]
			if val == "" {
				val = ui.RenderMuted("(unset)")
			}
			fmt.Fprintf(out, "  %s = %s\n", k, val)
		}

		fmt.Fprintln(out, ui.RenderCategory("branches"))
		if len(view.Branches) == 0 {
			fmt.Fprintf(out, "  %s\n", ui.RenderMuted("(none configured)"))
		}
		for _, b := range view.Branches {
			fmt.Fprintf(out, "  %s %s %s\n", b, ui.RenderMuted("→"), ui.RenderAccent(policies[b].Status))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
