package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/steveyegge/jirasync/internal/jira"
	"github.com/steveyegge/jirasync/internal/telemetry"
)

const (
	// DefaultStepDelay is the pause after every submitted transition.
	DefaultStepDelay = 500 * time.Millisecond

	scopeName = "github.com/steveyegge/jirasync/workflow"
)

// DefaultExcludedStatuses are avoided as intermediate or target statuses
// unless the caller passes its own exclusion list.
var DefaultExcludedStatuses = []string{"Blocked", "Rejected"}

// Backend is the Jira API surface the executor drives. *jira.Client
// implements it.
type Backend interface {
	Source
	GetIssue(ctx context.Context, key string) (*jira.Issue, error)
	GetTransitions(ctx context.Context, key string) ([]jira.Transition, error)
	GetTransitionFields(ctx context.Context, key, transitionID string) (map[string]jira.FieldMeta, error)
	DoTransition(ctx context.Context, key, transitionID string, fields map[string]interface{}) error
	UpdateFields(ctx context.Context, key string, fields map[string]interface{}) error
	FieldOptions(ctx context.Context, field, projectKey string) ([]jira.FieldOption, error)
}

// TransitionOptions tune one Transition call.
type TransitionOptions struct {
	// Exclude lists status names the path may not enter. nil means
	// DefaultExcludedStatuses; an empty non-nil slice excludes nothing.
	Exclude []string
	// Fields are sent with the final transition only.
	Fields jira.Fields
}

// Executor moves issues to target statuses along the shortest workflow
// path, checking the live issue before every step.
type Executor struct {
	backend Backend
	cache   *Cache
	finder  *Finder

	Logger *slog.Logger
	// StepDelay is the pause after each submitted step. NewExecutor sets
	// DefaultStepDelay; zero or negative disables the pause.
	StepDelay time.Duration
	// Strict turns "no path" into a *TransitionError instead of false.
	Strict bool
	// DryRun plans and logs paths without submitting anything.
	DryRun bool
	// Now supplies the time late-bound field values resolve against.
	Now func() time.Time
}

// NewExecutor creates an executor. A nil cache gets a fresh one over backend.
func NewExecutor(backend Backend, cache *Cache) *Executor {
	if cache == nil {
		cache = NewCache(backend)
	}
	return &Executor{
		backend:   backend,
		cache:     cache,
		finder:    &Finder{},
		StepDelay: DefaultStepDelay,
	}
}

// Cache returns the graph cache the executor plans with.
func (e *Executor) Cache() *Cache { return e.cache }

func (e *Executor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *Executor) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Plan is the route from an issue's live status to a target.
type Plan struct {
	IssueKey string `json:"issue_key" yaml:"issue_key"`
	Project  string `json:"project" yaml:"project"`
	Workflow string `json:"workflow" yaml:"workflow"`
	From     string `json:"from" yaml:"from"`
	Target   string `json:"target" yaml:"target"`
	Path     Path   `json:"path" yaml:"path"`
	// Found is false when no route avoids the excluded statuses.
	Found bool `json:"found" yaml:"found"`
}

// Plan looks up the issue and computes its path without changing anything.
func (e *Executor) Plan(ctx context.Context, key, target string, exclude []string) (*Plan, error) {
	if err := validateRequest(key, target); err != nil {
		return nil, err
	}
	if exclude == nil {
		exclude = DefaultExcludedStatuses
	}
	issue, err := e.backend.GetIssue(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read status of %s: %w", key, err)
	}
	return e.plan(ctx, issue, target, exclude)
}

func (e *Executor) plan(ctx context.Context, issue *jira.Issue, target string, exclude []string) (*Plan, error) {
	p := &Plan{
		IssueKey: issue.Key,
		Project:  issue.ProjectKey(),
		From:     issue.StatusName(),
		Target:   target,
	}
	if p.From == target {
		p.Found = true
		return p, nil
	}
	g, err := e.cache.GraphForProject(ctx, p.Project)
	if err != nil {
		return nil, err
	}
	p.Workflow = g.Name()
	f := *e.finder
	f.Logger = e.logger()
	path, ok, err := f.ShortestPath(g, p.From, target, exclude)
	if err != nil {
		return nil, err
	}
	p.Path, p.Found = path, ok
	return p, nil
}

// Transition moves the issue to the status named target. It returns true
// when the issue ends at target (including when it was already there) and
// false, nil when no path exists and Strict is off.
//
// Transitions are submitted one at a time. Before each one the live
// transitions of the issue are re-read, so a concurrent status change
// surfaces as ReasonUnavailable rather than a blind POST.
func (e *Executor) Transition(ctx context.Context, key, target string, opts TransitionOptions) (ok bool, err error) {
	if err := validateRequest(key, target); err != nil {
		return false, err
	}
	exclude := opts.Exclude
	if exclude == nil {
		exclude = DefaultExcludedStatuses
	}

	inst := instruments()
	ctx, span := inst.tracer.Start(ctx, "workflow.transition",
		trace.WithAttributes(
			attribute.String("jira.issue", key),
			attribute.String("workflow.target", target),
		),
	)
	defer span.End()
	outcome := "error"
	defer func() {
		inst.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	issue, err := e.backend.GetIssue(ctx, key)
	if err != nil {
		return false, fmt.Errorf("read status of %s: %w", key, err)
	}
	if issue.StatusName() == target {
		e.logger().Debug("issue already at target", "issue", key, "status", target)
		outcome = "noop"
		return true, nil
	}

	p, err := e.plan(ctx, issue, target, exclude)
	if err != nil {
		return false, err
	}
	span.SetAttributes(attribute.String("workflow.name", p.Workflow), attribute.String("workflow.from", p.From))

	if !p.Found {
		terr := &TransitionError{IssueKey: key, From: p.From, Target: target, Reason: ReasonNoPath}
		if e.Strict {
			return false, terr
		}
		e.logger().Warn("no transition path", "issue", key, "from", p.From, "target", target, "excluded", exclude)
		outcome = "no_path"
		return false, nil
	}

	span.SetAttributes(attribute.Int("workflow.steps", len(p.Path)))
	if e.DryRun {
		e.logger().Info("dry run: would transition", "issue", key, "path", p.Path.String())
		outcome = "dry_run"
		return true, nil
	}

	auto := jira.Fields{}
	for i, step := range p.Path {
		var extra jira.Fields
		if i == len(p.Path)-1 {
			extra = opts.Fields
		}
		if err := e.runStep(ctx, key, p.Project, step, extra, auto); err != nil {
			if errors.Is(err, ErrTransitionUnavailable) {
				// the cached definition may be stale; replan from Jira next time
				e.cache.Invalidate(p.Workflow)
			}
			return false, err
		}
		if err := e.pause(ctx); err != nil {
			return false, err
		}
	}

	e.logger().Info("transitioned issue", "issue", key, "from", p.From, "to", target, "steps", len(p.Path))
	outcome = "moved"
	return true, nil
}

// runStep submits one planned transition. auto carries values produced by
// default population in earlier steps of the same walk.
func (e *Executor) runStep(ctx context.Context, key, projectKey string, step Step, extra, auto jira.Fields) error {
	available, err := e.backend.GetTransitions(ctx, key)
	if err != nil {
		return fmt.Errorf("list transitions of %s: %w", key, err)
	}
	match, ok := matchTransition(available, step)
	if !ok {
		names := make([]string, 0, len(available))
		for _, t := range available {
			names = append(names, fmt.Sprintf("%s → %s", t.Name, t.To.Name))
		}
		return &TransitionError{
			IssueKey:  key,
			From:      step.FromName,
			Target:    step.ToName,
			Reason:    ReasonUnavailable,
			Attempted: fmt.Sprintf("%s → %s", step.TransitionName, step.ToName),
			Available: names,
		}
	}

	meta, err := e.backend.GetTransitionFields(ctx, key, match.ID)
	if err != nil {
		return err
	}

	fields := jira.Merge(extra)
	for _, id := range sortedFieldIDs(meta) {
		m := meta[id]
		if !m.Required || m.HasDefaultValue || fields.Has(id) {
			continue
		}
		if v, ok := auto[id]; ok {
			fields[id] = v
			continue
		}
		v, ok, err := e.defaultValue(ctx, projectKey, id, m)
		if err != nil {
			return fmt.Errorf("default for %s on %s: %w", id, key, err)
		}
		if !ok {
			return &TransitionError{
				IssueKey:  key,
				From:      step.FromName,
				Target:    step.ToName,
				Reason:    ReasonMissingField,
				Attempted: match.Name,
				Field:     fieldLabel(id, m),
			}
		}
		e.logger().Debug("auto-populated field", "issue", key, "field", id, "value", v.String())
		auto[id] = v
		fields[id] = v
	}

	e.logger().Debug("submitting transition",
		"issue", key,
		"transition", match.Name,
		"from", step.FromName,
		"to", step.ToName,
		"fields", fields.Keys())
	return e.backend.DoTransition(ctx, key, match.ID, fields.Resolve(e.now()))
}

// UpdateFields writes fields onto the issue with a plain edit, outside any
// transition. It returns false when there is nothing to write.
func (e *Executor) UpdateFields(ctx context.Context, key string, fields jira.Fields) (bool, error) {
	if err := jira.ValidateIssueKey(key); err != nil {
		return false, err
	}
	if len(fields) == 0 {
		return false, nil
	}
	if e.DryRun {
		e.logger().Info("dry run: would update fields", "issue", key, "fields", fields.Keys())
		return true, nil
	}
	if err := e.backend.UpdateFields(ctx, key, fields.Resolve(e.now())); err != nil {
		return false, err
	}
	e.logger().Debug("updated fields", "issue", key, "fields", fields.Keys())
	return true, nil
}

func (e *Executor) pause(ctx context.Context) error {
	if e.StepDelay <= 0 {
		return nil
	}
	t := time.NewTimer(e.StepDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func validateRequest(key, target string) error {
	if err := jira.ValidateIssueKey(key); err != nil {
		return err
	}
	if strings.TrimSpace(target) == "" {
		return &jira.ValidationError{Field: "target status", Message: "must not be empty"}
	}
	return nil
}

// matchTransition finds the live transition for a planned step: by id, or
// failing that by destination and transition name.
func matchTransition(available []jira.Transition, step Step) (jira.Transition, bool) {
	for _, t := range available {
		if t.ID == step.TransitionID {
			return t, true
		}
	}
	for _, t := range available {
		if t.To.Name == step.ToName && t.Name == step.TransitionName {
			return t, true
		}
	}
	return jira.Transition{}, false
}

type executorInstruments struct {
	tracer      trace.Tracer
	transitions metric.Int64Counter
}

var (
	instOnce sync.Once
	execInst *executorInstruments
)

func instruments() *executorInstruments {
	instOnce.Do(func() {
		m := telemetry.Meter(scopeName)
		transitions, _ := m.Int64Counter("jirasync.workflow.transitions",
			metric.WithDescription("Transition requests by outcome (moved, noop, no_path, dry_run, error)"),
		)
		execInst = &executorInstruments{
			tracer:      telemetry.Tracer(scopeName),
			transitions: transitions,
		}
	})
	return execInst
}
