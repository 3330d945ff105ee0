package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/jirasync/internal/config"
	"github.com/steveyegge/jirasync/internal/deploy"
	"github.com/steveyegge/jirasync/internal/github"
	"github.com/steveyegge/jirasync/internal/jira"
	"github.com/steveyegge/jirasync/internal/timeparsing"
	"github.com/steveyegge/jirasync/internal/workflow"
)

func newJiraClient() (*jira.Client, error) {
	if err := cfg.ValidateJira(); err != nil {
		return nil, err
	}
	c := jira.NewClient(cfg.Jira.URL, cfg.Jira.Username, cfg.Jira.APIToken).WithLogger(logger)
	c.MaxAttempts = cfg.Jira.MaxAttempts
	return c, nil
}

func newGitHubClient() (*github.Client, error) {
	if err := cfg.ValidateGitHub(); err != nil {
		return nil, err
	}
	owner, repo, err := github.ParseRepository(cfg.GitHub.Repository)
	if err != nil {
		return nil, err
	}
	c := github.NewClient(cfg.GitHub.Token, owner, repo).WithLogger(logger)
	if cfg.GitHub.APIURL != "" {
		c = c.WithBaseURL(cfg.GitHub.APIURL)
	}
	return c, nil
}

func newExecutor(jc *jira.Client) *workflow.Executor {
	e := workflow.NewExecutor(jc, nil)
	e.Logger = logger
	e.StepDelay = cfg.StepDelay
	e.DryRun = cfg.DryRun
	e.Strict = cfg.Strict
	return e
}

func newBulk(e *workflow.Executor) *workflow.Bulk {
	b := workflow.NewBulk(e)
	b.Concurrency = cfg.Concurrency
	b.Logger = logger
	return b
}

// scanTemplate turns the scan settings into options for push scans.
func scanTemplate(now time.Time) (deploy.ScanOptions, error) {
	opts := deploy.ScanOptions{
		Done:            cfg.Scan.DoneStatuses,
		ConsecutiveDone: cfg.Scan.ConsecutiveDone,
		PageSize:        cfg.Scan.PageSize,
		MaxCommits:      cfg.Scan.MaxCommits,
		PageDelay:       cfg.Scan.PageDelay,
	}
	if opts.PageDelay == 0 {
		opts.PageDelay = -1
	}
	if cfg.Scan.Since != "" {
		since, err := timeparsing.ParseSince(cfg.Scan.Since, now)
		if err != nil {
			return deploy.ScanOptions{}, fmt.Errorf("scan.since: %w", err)
		}
		opts.Since = since
	}
	return opts, nil
}

// exclusions resolves --exclude / --no-exclude against the configured list.
// nil leaves the executor defaults in place.
func exclusions(cmd *cobra.Command) []string {
	if none, _ := cmd.Flags().GetBool("no-exclude"); none {
		return []string{}
	}
	if cmd.Flags().Changed("exclude") {
		list, _ := cmd.Flags().GetStringSlice("exclude")
		return list
	}
	return cfg.ExcludeStatuses
}

func addExcludeFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("exclude", nil, "Statuses the path may not pass through (default: exclude_statuses, else Blocked,Rejected)")
	cmd.Flags().Bool("no-exclude", false, "Allow paths through any status")
}

// parseFieldFlags reads repeated "id=value" or "id:type=value" flags, where
// type is any config field type (string, option, datetime, date, null).
// "customfield_10100:datetime=" stamps the current time.
func parseFieldFlags(values []string) (jira.Fields, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make(jira.Fields, len(values))
	for _, raw := range values {
		lhs, value, ok := strings.Cut(raw, "=")
		if !ok {
			return nil, fmt.Errorf("invalid field %q: expected id=value or id:type=value", raw)
		}
		id, typ, _ := strings.Cut(lhs, ":")
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, fmt.Errorf("invalid field %q: empty field id", raw)
		}
		spec := config.FieldSpec{Type: typ, Value: value}
		if typ == "" {
			spec.Type = "string"
		}
		val, err := spec.Build()
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", id, err)
		}
		out[id] = val
	}
	return out, nil
}
