package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/jirasync/internal/deploy"
	"github.com/steveyegge/jirasync/internal/github"
	"github.com/steveyegge/jirasync/internal/jira"
	"github.com/steveyegge/jirasync/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	Short:   "Apply a GitHub Actions event to Jira",
	GroupID: "sync",
	Long: `Read the event payload GitHub Actions wrote to $GITHUB_EVENT_PATH and move
the issues it refers to. Target statuses come from the "branches" list in
the config file.`,
}

var syncPRCmd = &cobra.Command{
	Use:   "pr",
	Short: "Handle a pull_request event",
	Long: `Opened, reopened and ready-for-review pull requests move their issues to
pull_request.review_status. Merged pull requests move them to the status of
the base branch policy. Issue keys come from the title, body, head branch
and commit messages, plus issues whose text links the pull request.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := eventPath(cmd)
		if err != nil {
			return err
		}
		ev, err := deploy.ReadPullRequestEvent(path)
		if err != nil {
			return err
		}
		jc, err := newJiraClient()
		if err != nil {
			return err
		}
		// Commit messages are read only when a repository is configured.
		var commits deploy.PullRequestCommits
		if cfg.GitHub.Repository != "" {
			gh, err := newGitHubClient()
			if err != nil {
				return err
			}
			commits = gh
		}
		s, err := newSyncer(jc, nil, commits)
		if err != nil {
			return err
		}
		outcome, err := s.HandlePullRequest(cmd.Context(), ev)
		if err != nil {
			return err
		}
		return reportOutcome(cmd, outcome)
	},
}

var syncPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Handle a push event",
	Long: `Scan the pushed branch's history newest first, collecting issues that have
not reached the branch's target status, and move them there. The scan stops
after scan.consecutive_done issues in a row are already done.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := eventPath(cmd)
		if err != nil {
			return err
		}
		ev, err := deploy.ReadPushEvent(path)
		if err != nil {
			return err
		}
		jc, err := newJiraClient()
		if err != nil {
			return err
		}
		gh, err := newGitHubClient()
		if err != nil {
			return err
		}
		s, err := newSyncer(jc, gh, gh)
		if err != nil {
			return err
		}
		outcome, err := s.HandlePush(cmd.Context(), ev)
		if err != nil {
			return err
		}
		return reportOutcome(cmd, outcome)
	},
}

func eventPath(cmd *cobra.Command) (string, error) {
	if path, _ := cmd.Flags().GetString("event"); path != "" {
		return path, nil
	}
	if cfg.GitHub.EventPath != "" {
		return cfg.GitHub.EventPath, nil
	}
	return "", errors.New("no event payload: pass --event or set GITHUB_EVENT_PATH")
}

// newSyncer wires the event handler. history may be nil for pull request
// events, which never scan.
var (
	_ deploy.CommitLister       = (*github.Client)(nil)
	_ deploy.HeadResolver       = (*github.Client)(nil)
	_ deploy.PullRequestCommits = (*github.Client)(nil)
)

func newSyncer(jc *jira.Client, history *github.Client, commits deploy.PullRequestCommits) (*deploy.Syncer, error) {
	policies, err := cfg.Policies()
	if err != nil {
		return nil, err
	}
	scan, err := scanTemplate(time.Now())
	if err != nil {
		return nil, err
	}

	d := deploy.NewDiscoverer(jc, commits)
	d.Logger = logger
	s := &deploy.Syncer{
		Policies:     policies,
		Discoverer:   d,
		Bulk:         newBulk(newExecutor(jc)),
		Exclude:      cfg.ExcludeStatuses,
		ReviewStatus: cfg.ReviewStatus,
		Scan:         scan,
		Logger:       logger,
	}
	if history != nil {
		s.Scanner = deploy.NewScanner(history, jc)
		s.Scanner.Logger = logger
	}
	return s, nil
}

func reportOutcome(cmd *cobra.Command, outcome *deploy.Outcome) error {
	out := cmd.OutOrStdout()
	if structured() {
		if err := writeStructured(out, outcome); err != nil {
			return err
		}
	} else {
		ui.WriteOutcome(out, outcome)
	}
	if res := outcome.Result; res.FailureCount > 0 {
		return fmt.Errorf("%d of %d issues failed", res.FailureCount, res.SuccessCount+res.FailureCount)
	}
	return nil
}

func init() {
	syncCmd.PersistentFlags().String("event", "", "Event payload file (default: github.event_path / $GITHUB_EVENT_PATH)")
	syncCmd.AddCommand(syncPRCmd, syncPushCmd)
	rootCmd.AddCommand(syncCmd)
}
