package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/jirasync/internal/deploy"
	"github.com/steveyegge/jirasync/internal/jira"
	"github.com/steveyegge/jirasync/internal/ui"
	"github.com/steveyegge/jirasync/internal/workflow"
)

var bulkCmd = &cobra.Command{
	Use:     "bulk [ISSUE-KEY...] --to STATUS",
	Short:   "Move many issues to a status and stamp fields on them",
	GroupID: "issues",
	Long: `Move every listed issue to the target status. Keys can also be selected
with --from-status and --project, which searches Jira for the project's
issues in that status. Each issue succeeds or fails on its own.`,
	Example: `  jirasync bulk DEX-1 DEX-2 --to "Deployed to Staging" --set customfield_10100:datetime=
  jirasync bulk --project DEX --from-status "Deployed to Staging" --to Done`,
	RunE: func(cmd *cobra.Command, args []string) error {
		target, _ := cmd.Flags().GetString("to")
		fromStatus, _ := cmd.Flags().GetString("from-status")
		project, _ := cmd.Flags().GetString("project")
		fieldFlags, _ := cmd.Flags().GetStringArray("field")
		setFlags, _ := cmd.Flags().GetStringArray("set")

		if len(args) == 0 && fromStatus == "" {
			return errors.New("no issues: pass issue keys or --from-status with --project")
		}
		transitionFields, err := parseFieldFlags(fieldFlags)
		if err != nil {
			return err
		}
		customFields, err := parseFieldFlags(setFlags)
		if err != nil {
			return err
		}
		for _, key := range args {
			if err := jira.ValidateIssueKey(key); err != nil {
				return err
			}
		}

		jc, err := newJiraClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		keys := append([]string(nil), args...)
		if fromStatus != "" {
			d := deploy.NewDiscoverer(jc, nil)
			d.Logger = logger
			found, err := d.ByStatus(ctx, project, fromStatus)
			if err != nil {
				return err
			}
			logger.Info("selected issues by status", "project", project, "status", fromStatus, "count", len(found))
			keys = append(keys, found...)
		}

		keys = jira.Deduplicate(keys)
		yes, _ := cmd.Flags().GetBool("yes")
		proceed, err := confirmBulk(len(keys), target, yes)
		if err != nil {
			return err
		}
		if !proceed {
			fmt.Fprintln(cmd.ErrOrStderr(), "Bulk update cancelled.")
			return nil
		}

		res := newBulk(newExecutor(jc)).UpdateMany(ctx, keys, workflow.BulkRequest{
			Target:           target,
			Exclude:          exclusions(cmd),
			TransitionFields: transitionFields,
			CustomFields:     customFields,
		})
		if err := ctx.Err(); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if structured() {
			if err := writeStructured(out, res); err != nil {
				return err
			}
		} else {
			ui.WriteBulkResult(out, target, res)
		}
		if res.FailureCount > 0 {
			return fmt.Errorf("%d of %d issues failed", res.FailureCount, res.SuccessCount+res.FailureCount)
		}
		return nil
	},
}

func init() {
	bulkCmd.Flags().String("to", "", "Target status name (required)")
	_ = bulkCmd.MarkFlagRequired("to")
	bulkCmd.Flags().String("from-status", "", "Also select issues currently in this status")
	bulkCmd.Flags().String("project", "", "Project key for --from-status")
	bulkCmd.MarkFlagsRequiredTogether("from-status", "project")
	bulkCmd.Flags().StringArray("field", nil, "Field sent with each final transition, as id=value or id:type=value (repeatable)")
	bulkCmd.Flags().BoolP("yes", "y", false, "Do not ask before moving many issues")
	bulkCmd.Flags().StringArray("set", nil, "Field written after the transition, as id=value or id:type=value (repeatable)")
	addExcludeFlags(bulkCmd)
	rootCmd.AddCommand(bulkCmd)
}
