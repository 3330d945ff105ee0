package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/jirasync/internal/jira"
	"github.com/steveyegge/jirasync/internal/ui"
	"github.com/steveyegge/jirasync/internal/workflow"
)

// transitionResult is the structured output of `jirasync transition`.
type transitionResult struct {
	IssueKey string `json:"issue_key" yaml:"issue_key"`
	Target   string `json:"target" yaml:"target"`
	Moved    bool   `json:"moved" yaml:"moved"`
	DryRun   bool   `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
	URL      string `json:"url" yaml:"url"`
}

var transitionCmd = &cobra.Command{
	Use:     "transition ISSUE-KEY --to STATUS",
	Short:   "Move one issue to a status along the shortest workflow path",
	GroupID: "issues",
	Example: `  jirasync transition DEX-36 --to "Deployed to Staging"
  jirasync transition DEX-36 --to Done --plan
  jirasync transition DEX-36 --to Done --field customfield_10100:datetime=`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		target, _ := cmd.Flags().GetString("to")
		planOnly, _ := cmd.Flags().GetBool("plan")
		fieldFlags, _ := cmd.Flags().GetStringArray("field")

		fields, err := parseFieldFlags(fieldFlags)
		if err != nil {
			return err
		}
		jc, err := newJiraClient()
		if err != nil {
			return err
		}
		exec := newExecutor(jc)
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		if planOnly {
			plan, err := exec.Plan(ctx, key, target, exclusions(cmd))
			if err != nil {
				return err
			}
			if structured() {
				return writeStructured(out, plan)
			}
			ui.WritePlan(out, plan)
			return nil
		}

		moved, err := exec.Transition(ctx, key, target, workflow.TransitionOptions{
			Exclude: exclusions(cmd),
			Fields:  fields,
		})
		if err != nil {
			return err
		}
		link := jira.BrowseURL(cfg.Jira.URL, key)
		if structured() {
			return writeStructured(out, transitionResult{IssueKey: key, Target: target, Moved: moved, DryRun: cfg.DryRun, URL: link})
		}
		switch {
		case !moved:
			return fmt.Errorf("%s: no transition path to %q", key, target)
		case cfg.DryRun:
			fmt.Fprintf(out, "%s %s would move to %s (dry run)\n", ui.RenderMuted(ui.IconSkip), key, ui.RenderAccent(target))
		default:
			fmt.Fprintf(out, "%s %s is at %s %s\n", ui.RenderPass(ui.IconPass), key, ui.RenderAccent(target), ui.RenderMuted(link))
		}
		return nil
	},
}

func init() {
	transitionCmd.Flags().String("to", "", "Target status name (required)")
	_ = transitionCmd.MarkFlagRequired("to")
	transitionCmd.Flags().Bool("plan", false, "Print the path without changing anything")
	transitionCmd.Flags().StringArray("field", nil, "Field sent with the final transition, as id=value or id:type=value (repeatable)")
	addExcludeFlags(transitionCmd)
	rootCmd.AddCommand(transitionCmd)
}
