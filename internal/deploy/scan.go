package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/steveyegge/jirasync/internal/github"
	"github.com/steveyegge/jirasync/internal/jira"
)

// Commit scan defaults.
const (
	DefaultConsecutiveDone = 5
	DefaultScanPageSize    = 100
	DefaultMaxCommits      = 500
	DefaultPageDelay       = time.Second
)

// CommitLister pages through branch history. *github.Client implements it.
type CommitLister interface {
	ListCommits(ctx context.Context, opts github.CommitListOptions) ([]github.Commit, bool, error)
}

// HeadResolver resolves a ref to the commit it points at. *github.Client
// implements it.
type HeadResolver interface {
	LatestCommit(ctx context.Context, ref string) (*github.Commit, error)
}

// StatusReader reads an issue's live status. *jira.Client implements it.
type StatusReader interface {
	GetIssue(ctx context.Context, key string) (*jira.Issue, error)
}

// ScanOptions bound one commit scan.
type ScanOptions struct {
	Branch string
	// Head pins the scan to a commit SHA. When empty, a CommitLister that
	// is also a HeadResolver resolves the branch tip once before paging.
	Head string
	// Target is the status the deployment moves issues to. Issues already
	// there count as done.
	Target string
	// Done lists further statuses that count as done (for example a
	// production status when scanning for staging).
	Done []string

	// ConsecutiveDone stops the scan after this many newly seen done
	// issues in a row. Zero means DefaultConsecutiveDone; negative
	// disables the early stop.
	ConsecutiveDone int
	PageSize        int
	// MaxCommits caps commits inspected over the whole scan.
	MaxCommits int
	// PageDelay is slept between pages; negative disables it.
	PageDelay time.Duration
	// Since skips commits older than this.
	Since time.Time
}

func (o ScanOptions) withDefaults() ScanOptions {
	if o.ConsecutiveDone == 0 {
		o.ConsecutiveDone = DefaultConsecutiveDone
	}
	if o.PageSize <= 0 {
		o.PageSize = DefaultScanPageSize
	}
	if o.MaxCommits <= 0 {
		o.MaxCommits = DefaultMaxCommits
	}
	if o.PageDelay == 0 {
		o.PageDelay = DefaultPageDelay
	}
	return o
}

// Stop reasons reported in ScanResult.
const (
	StopExhausted = "history exhausted"
	StopEarly     = "consecutive done issues"
	StopCommitCap = "commit cap reached"
)

// ScanResult is what a commit scan found.
type ScanResult struct {
	// Keys need updating, in the order their newest commit was seen.
	Keys []string `json:"keys,omitempty" yaml:"keys,omitempty"`
	// Done counts issues already at a done status.
	Done int `json:"done" yaml:"done"`
	// Failed lists keys whose status could not be read; they were skipped.
	Failed []string `json:"failed,omitempty" yaml:"failed,omitempty"`
	// Head is the commit the scan started from, when it was pinned.
	Head           string `json:"head,omitempty" yaml:"head,omitempty"`
	CommitsScanned int    `json:"commits_scanned" yaml:"commits_scanned"`
	StopReason     string `json:"stop_reason" yaml:"stop_reason"`
}

// Scanner walks branch history newest first and collects issue keys whose
// issues have not reached the target yet.
type Scanner struct {
	commits CommitLister
	issues  StatusReader
	Logger  *slog.Logger
}

// NewScanner creates a commit scanner.
func NewScanner(commits CommitLister, issues StatusReader) *Scanner {
	return &Scanner{commits: commits, issues: issues}
}

func (s *Scanner) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Scan reads commits page by page. Each newly seen key's status is read
// once: a done status bumps the consecutive counter, a not-done status
// collects the key and resets the counter, and a read error skips the key
// without touching the counter. The scan stops at the early-stop threshold,
// the commit cap, or the end of history.
func (s *Scanner) Scan(ctx context.Context, opts ScanOptions) (*ScanResult, error) {
	opts = opts.withDefaults()
	done := map[string]bool{opts.Target: true}
	for _, name := range opts.Done {
		done[name] = true
	}

	result := &ScanResult{StopReason: StopExhausted}
	ref, err := s.resolveHead(ctx, opts)
	if err != nil {
		return result, err
	}
	if ref != opts.Branch {
		result.Head = ref
	}
	seen := make(map[string]bool)
	consecutive := 0

	for page := 1; ; page++ {
		commits, more, err := s.commits.ListCommits(ctx, github.CommitListOptions{
			Branch:  ref,
			Page:    page,
			PerPage: opts.PageSize,
			Since:   opts.Since,
		})
		if err != nil {
			return result, err
		}

		for _, c := range commits {
			if result.CommitsScanned >= opts.MaxCommits {
				result.StopReason = StopCommitCap
				return s.finish(result, opts), nil
			}
			result.CommitsScanned++

			for _, key := range jira.ExtractIssueKeys(c.Message()) {
				if seen[key] {
					continue
				}
				seen[key] = true

				issue, err := s.issues.GetIssue(ctx, key)
				if err != nil {
					if ctx.Err() != nil {
						return result, ctx.Err()
					}
					s.logger().Warn("skipping issue with unreadable status", "issue", key, "commit", c.ShortSHA(), "error", err)
					result.Failed = append(result.Failed, key)
					continue
				}

				if done[issue.StatusName()] {
					result.Done++
					consecutive++
					s.logger().Debug("issue already done", "issue", key, "status", issue.StatusName(), "consecutive", consecutive)
					if opts.ConsecutiveDone > 0 && consecutive >= opts.ConsecutiveDone {
						result.StopReason = StopEarly
						return s.finish(result, opts), nil
					}
					continue
				}

				consecutive = 0
				result.Keys = append(result.Keys, key)
			}
		}

		if !more || len(commits) == 0 {
			return s.finish(result, opts), nil
		}
		if err := sleep(ctx, opts.PageDelay); err != nil {
			return result, err
		}
	}
}

// resolveHead returns the ref every page is listed from. Pinning it to one
// SHA keeps pages stable while new commits land on the branch.
func (s *Scanner) resolveHead(ctx context.Context, opts ScanOptions) (string, error) {
	if opts.Head != "" {
		return opts.Head, nil
	}
	resolver, ok := s.commits.(HeadResolver)
	if !ok || opts.Branch == "" {
		return opts.Branch, nil
	}
	head, err := resolver.LatestCommit(ctx, opts.Branch)
	if err != nil {
		return "", fmt.Errorf("resolve head of %s: %w", opts.Branch, err)
	}
	s.logger().Debug("pinned scan head", "branch", opts.Branch, "sha", head.ShortSHA())
	return head.SHA, nil
}

func (s *Scanner) finish(result *ScanResult, opts ScanOptions) *ScanResult {
	s.logger().Info("commit scan finished",
		"branch", opts.Branch,
		"head", result.Head,
		"commits", result.CommitsScanned,
		"pending", len(result.Keys),
		"done", result.Done,
		"failed", len(result.Failed),
		"stop", result.StopReason)
	return result
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
