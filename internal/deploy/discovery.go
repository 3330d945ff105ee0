package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/steveyegge/jirasync/internal/github"
	"github.com/steveyegge/jirasync/internal/jira"
)

// DefaultSearchLimit caps issues returned by one discovery search.
const DefaultSearchLimit = 200

// IssueSearcher runs JQL searches. *jira.Client implements it.
type IssueSearcher interface {
	SearchIssues(ctx context.Context, jql string, limit int) ([]jira.Issue, error)
}

// PullRequestCommits lists the commits of a pull request. *github.Client
// implements it.
type PullRequestCommits interface {
	PullRequestCommits(ctx context.Context, number int) ([]github.Commit, error)
}

// Discoverer finds the issue keys a pull request refers to.
type Discoverer struct {
	searcher IssueSearcher
	commits  PullRequestCommits

	// Limit overrides DefaultSearchLimit when positive.
	Limit  int
	Logger *slog.Logger
}

// NewDiscoverer creates a discoverer. commits may be nil, which skips the
// pull request commit messages.
func NewDiscoverer(searcher IssueSearcher, commits PullRequestCommits) *Discoverer {
	return &Discoverer{searcher: searcher, commits: commits}
}

func (d *Discoverer) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d *Discoverer) limit() int {
	if d.Limit > 0 {
		return d.Limit
	}
	return DefaultSearchLimit
}

// FromPullRequest extracts keys from the PR title, body, and head branch.
func (d *Discoverer) FromPullRequest(pr PullRequest) []string {
	return jira.ExtractIssueKeys(pr.Title, pr.Body, pr.Head.Ref)
}

// FromCommits extracts keys from the messages of a PR's commits.
func (d *Discoverer) FromCommits(ctx context.Context, number int) ([]string, error) {
	if d.commits == nil || number == 0 {
		return nil, nil
	}
	commits, err := d.commits.PullRequestCommits(ctx, number)
	if err != nil {
		return nil, err
	}
	messages := make([]string, 0, len(commits))
	for _, c := range commits {
		messages = append(messages, c.Message())
	}
	return jira.ExtractIssueKeys(messages...), nil
}

// ByReference finds issues whose text mentions ref, typically the pull
// request URL pasted into a ticket.
func (d *Discoverer) ByReference(ctx context.Context, ref string) ([]string, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, nil
	}
	jql := fmt.Sprintf("text ~ %s", quoteJQL(`"`+ref+`"`))
	return d.search(ctx, jql)
}

// ByStatus finds the issues of a project currently in a status.
func (d *Discoverer) ByStatus(ctx context.Context, projectKey, status string) ([]string, error) {
	if projectKey == "" || status == "" {
		return nil, &jira.ValidationError{Field: "status search", Message: "project and status are required"}
	}
	jql := fmt.Sprintf("project = %s AND status = %s ORDER BY updated DESC", quoteJQL(projectKey), quoteJQL(status))
	return d.search(ctx, jql)
}

// PullRequestKeys merges every strategy for a pull request: text, commits,
// and reference search. Commit and search failures are logged and skipped
// so text keys still flow.
func (d *Discoverer) PullRequestKeys(ctx context.Context, pr PullRequest) []string {
	textKeys := d.FromPullRequest(pr)

	commitKeys, err := d.FromCommits(ctx, pr.Number)
	if err != nil {
		d.logger().Warn("could not read pull request commits", "pr", pr.Number, "error", err)
	}

	var refKeys []string
	if d.searcher != nil {
		refKeys, err = d.ByReference(ctx, pr.Reference())
		if err != nil {
			d.logger().Warn("reference search failed", "reference", pr.Reference(), "error", err)
		}
	}

	keys := jira.Deduplicate(textKeys, commitKeys, refKeys)
	d.logger().Debug("discovered issue keys",
		"pr", pr.Number,
		"text", len(textKeys),
		"commits", len(commitKeys),
		"search", len(refKeys),
		"total", len(keys))
	return keys
}

func (d *Discoverer) search(ctx context.Context, jql string) ([]string, error) {
	issues, err := d.searcher.SearchIssues(ctx, jql, d.limit())
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(issues))
	for _, is := range issues {
		keys = append(keys, is.Key)
	}
	return jira.Deduplicate(keys), nil
}

// quoteJQL renders s as a JQL string literal.
func quoteJQL(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}
