package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/jirasync/internal/jira"
)

// MaxReportedErrors caps BulkResult.Errors. Counts stay exact.
const MaxReportedErrors = 20

// BulkRequest is the update applied to every issue of a batch.
type BulkRequest struct {
	Target string
	// Exclude follows TransitionOptions.Exclude semantics.
	Exclude []string
	// TransitionFields go with the final transition of each issue.
	TransitionFields jira.Fields
	// CustomFields are written with a separate edit after the transition.
	CustomFields jira.Fields
}

// ItemError records the failure of one issue in a batch.
type ItemError struct {
	IssueKey string `json:"issue_key" yaml:"issue_key"`
	Message  string `json:"message" yaml:"message"`
}

// BulkResult summarizes a batch. SuccessCount + FailureCount equals the
// number of distinct keys.
type BulkResult struct {
	SuccessCount int         `json:"success_count" yaml:"success_count"`
	FailureCount int         `json:"failure_count" yaml:"failure_count"`
	Errors       []ItemError `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Bulk applies one BulkRequest to many issues concurrently.
type Bulk struct {
	executor *Executor
	// Concurrency limits in-flight issues; zero or less means unlimited.
	Concurrency int
	Logger      *slog.Logger
}

// NewBulk creates a bulk updater on top of an executor.
func NewBulk(executor *Executor) *Bulk {
	return &Bulk{executor: executor}
}

func (b *Bulk) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return b.executor.logger()
}

// UpdateMany moves every distinct key to req.Target and stamps the custom
// fields. Each issue succeeds or fails on its own; all of them are settled
// before returning, and one failure never cancels the others.
func (b *Bulk) UpdateMany(ctx context.Context, keys []string, req BulkRequest) BulkResult {
	unique := jira.Deduplicate(keys)
	failures := make([]error, len(unique))

	var g errgroup.Group
	if b.Concurrency > 0 {
		g.SetLimit(b.Concurrency)
	}
	for i, key := range unique {
		g.Go(func() error {
			failures[i] = b.updateOne(ctx, key, req)
			return nil
		})
	}
	_ = g.Wait()

	var result BulkResult
	for i, err := range failures {
		if err == nil {
			result.SuccessCount++
			continue
		}
		result.FailureCount++
		b.logger().Warn("issue update failed", "issue", unique[i], "error", err)
		if len(result.Errors) < MaxReportedErrors {
			result.Errors = append(result.Errors, ItemError{IssueKey: unique[i], Message: err.Error()})
		}
	}
	b.logger().Info("bulk update finished",
		"target", req.Target,
		"issues", len(unique),
		"succeeded", result.SuccessCount,
		"failed", result.FailureCount)
	return result
}

func (b *Bulk) updateOne(ctx context.Context, key string, req BulkRequest) error {
	moved, err := b.executor.Transition(ctx, key, req.Target, TransitionOptions{
		Exclude: req.Exclude,
		Fields:  req.TransitionFields,
	})
	if err != nil {
		return err
	}
	if !moved {
		return fmt.Errorf("%s: no transition path to %q", key, req.Target)
	}
	if len(req.CustomFields) == 0 {
		return nil
	}
	if _, err := b.executor.UpdateFields(ctx, key, req.CustomFields); err != nil {
		return fmt.Errorf("%s: transitioned but field update failed: %w", key, err)
	}
	return nil
}
