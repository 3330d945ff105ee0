package deploy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/steveyegge/jirasync/internal/workflow"
)

// DefaultReviewStatus is where issues go when their pull request opens.
const DefaultReviewStatus = "Code Review"

// Outcome reports what handling one event did.
type Outcome struct {
	Event  string              `json:"event" yaml:"event"`
	Branch string              `json:"branch,omitempty" yaml:"branch,omitempty"`
	Target string              `json:"target,omitempty" yaml:"target,omitempty"`
	Keys   []string            `json:"keys,omitempty" yaml:"keys,omitempty"`
	Result workflow.BulkResult `json:"result" yaml:"result"`
	Scan   *ScanResult         `json:"scan,omitempty" yaml:"scan,omitempty"`
	// Skipped is set with a reason when the event needed no updates.
	Skipped    bool   `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	SkipReason string `json:"skip_reason,omitempty" yaml:"skip_reason,omitempty"`
}

// Syncer maps GitHub events onto bulk Jira updates.
type Syncer struct {
	Policies   Policies
	Discoverer *Discoverer
	Scanner    *Scanner
	Bulk       *workflow.Bulk

	// Exclude follows workflow.TransitionOptions.Exclude semantics.
	Exclude []string
	// ReviewStatus is the target for opened pull requests; empty disables
	// review transitions.
	ReviewStatus string
	// Scan is the template for push scans; Branch and Target are filled
	// per event.
	Scan ScanOptions

	Logger *slog.Logger
}

func (s *Syncer) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func skipped(event, reason string) *Outcome {
	return &Outcome{Event: event, Skipped: true, SkipReason: reason}
}

// HandlePullRequest reacts to a pull_request event. A merged PR moves its
// issues per the base branch policy; an opened or ready PR moves them to
// ReviewStatus. Drafts and other actions are ignored.
func (s *Syncer) HandlePullRequest(ctx context.Context, ev *PullRequestEvent) (*Outcome, error) {
	const event = "pull_request"
	pr := ev.PullRequest
	log := s.logger().With("pr", pr.Number, "action", ev.Action)

	switch ev.Action {
	case ActionClosed:
		if !pr.Merged {
			log.Info("pull request closed without merge")
			return skipped(event, "closed without merge"), nil
		}
		policy, ok := s.Policies.Lookup(pr.Base.Ref)
		if !ok {
			log.Info("no policy for base branch", "branch", pr.Base.Ref)
			return skipped(event, fmt.Sprintf("no policy for branch %q", pr.Base.Ref)), nil
		}
		keys := s.Discoverer.PullRequestKeys(ctx, pr)
		out := s.apply(ctx, event, keys, workflow.BulkRequest{
			Target:           policy.Status,
			Exclude:          s.Exclude,
			TransitionFields: policy.TransitionFields,
			CustomFields:     policy.CustomFields,
		})
		out.Branch = pr.Base.Ref
		return out, nil

	case ActionOpened, ActionReopened, ActionReadyForReview:
		if pr.Draft {
			log.Info("ignoring draft pull request")
			return skipped(event, "draft"), nil
		}
		if s.ReviewStatus == "" {
			return skipped(event, "review transitions disabled"), nil
		}
		keys := s.Discoverer.PullRequestKeys(ctx, pr)
		out := s.apply(ctx, event, keys, workflow.BulkRequest{
			Target:  s.ReviewStatus,
			Exclude: s.Exclude,
		})
		out.Branch = pr.Base.Ref
		return out, nil

	default:
		log.Debug("ignoring pull request action")
		return skipped(event, "action "+ev.Action), nil
	}
}

// HandlePush reacts to a push: scans the branch history for issues not yet
// at the policy status and moves them.
func (s *Syncer) HandlePush(ctx context.Context, ev *PushEvent) (*Outcome, error) {
	const event = "push"
	branch, ok := ev.Branch()
	if !ok {
		return skipped(event, "not a branch push: "+ev.Ref), nil
	}
	if ev.Deleted {
		return skipped(event, "branch deleted"), nil
	}
	policy, ok := s.Policies.Lookup(branch)
	if !ok {
		s.logger().Info("no policy for branch", "branch", branch)
		return skipped(event, fmt.Sprintf("no policy for branch %q", branch)), nil
	}

	opts := s.Scan
	opts.Branch = branch
	opts.Head = ev.HeadSHA()
	opts.Target = policy.Status
	scan, err := s.Scanner.Scan(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", branch, err)
	}

	out := s.apply(ctx, event, scan.Keys, workflow.BulkRequest{
		Target:           policy.Status,
		Exclude:          s.Exclude,
		TransitionFields: policy.TransitionFields,
		CustomFields:     policy.CustomFields,
	})
	out.Branch = branch
	out.Scan = scan
	return out, nil
}

func (s *Syncer) apply(ctx context.Context, event string, keys []string, req workflow.BulkRequest) *Outcome {
	if len(keys) == 0 {
		s.logger().Info("no issue keys found", "event", event, "target", req.Target)
		out := skipped(event, "no issue keys")
		out.Target = req.Target
		return out
	}
	s.logger().Info("updating issues", "event", event, "target", req.Target, "issues", keys)
	return &Outcome{
		Event:  event,
		Target: req.Target,
		Keys:   keys,
		Result: s.Bulk.UpdateMany(ctx, keys, req),
	}
}
