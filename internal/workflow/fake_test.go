package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/steveyegge/jirasync/internal/jira"
)

// Status ids of the test workflow.
const (
	stTodo     = "1"
	stProgress = "2"
	stReview   = "3"
	stStaging  = "4"
	stDone     = "5"
	stBlocked  = "6"
	stRejected = "7"
)

// deliveryWorkflow is a small delivery workflow with a global "Block"
// transition and a shortcut out of Blocked straight to Done.
func deliveryWorkflow() *jira.WorkflowDefinition {
	return &jira.WorkflowDefinition{
		ID: jira.WorkflowID{Name: "Delivery"},
		Statuses: []jira.WorkflowStatus{
			{ID: stTodo, Name: "To Do"},
			{ID: stProgress, Name: "In Progress"},
			{ID: stReview, Name: "Code Review"},
			{ID: stStaging, Name: "Deployed to Staging"},
			{ID: stDone, Name: "Done"},
			{ID: stBlocked, Name: "Blocked"},
			{ID: stRejected, Name: "Rejected"},
		},
		Transitions: []jira.WorkflowTransition{
			{ID: "11", Name: "Start", From: []string{stTodo}, To: stProgress},
			{ID: "21", Name: "Review", From: []string{stProgress}, To: stReview},
			{ID: "31", Name: "Deploy to Staging", From: []string{stReview}, To: stStaging},
			{ID: "41", Name: "Close", From: []string{stStaging}, To: stDone},
			{ID: "51", Name: "Block", To: stBlocked},
			{ID: "61", Name: "Reject", From: []string{stReview}, To: stRejected},
			{ID: "71", Name: "Unblock", From: []string{stBlocked}, To: stProgress},
			{ID: "81", Name: "Force Done", From: []string{stBlocked}, To: stDone},
		},
	}
}

type submission struct {
	Key          string
	TransitionID string
	Fields       map[string]interface{}
}

type fieldUpdate struct {
	Key    string
	Fields map[string]interface{}
}

// fakeJira is an in-memory Backend. It applies transitions to its own issue
// state, so a run can be checked by its final statuses and recorded calls.
type fakeJira struct {
	mu sync.Mutex

	def       *jira.WorkflowDefinition
	status    map[string]string                    // issue key -> status id
	meta      map[string]map[string]jira.FieldMeta // transition id -> screen fields
	options   map[string][]jira.FieldOption        // logical field -> options
	hidden    map[string]bool                      // transition ids not offered live
	issueErr  map[string]error
	updateErr map[string]error
	wfErr     error
	schemeErr error

	calls         []string
	submissions   []submission
	updates       []fieldUpdate
	workflowReads int
	optionReads   int
}

func newFakeJira() *fakeJira {
	return &fakeJira{
		def:       deliveryWorkflow(),
		status:    map[string]string{},
		meta:      map[string]map[string]jira.FieldMeta{},
		options:   map[string][]jira.FieldOption{},
		hidden:    map[string]bool{},
		issueErr:  map[string]error{},
		updateErr: map[string]error{},
	}
}

func (f *fakeJira) record(format string, args ...interface{}) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeJira) statusName(id string) string {
	for _, s := range f.def.Statuses {
		if s.ID == id {
			return s.Name
		}
	}
	return ""
}

func (f *fakeJira) currentStatus(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusName(f.status[key])
}

func (f *fakeJira) callsFor(key string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	suffix := " " + key
	for _, c := range f.calls {
		if len(c) > len(suffix) && c[len(c)-len(suffix):] == suffix {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeJira) GetWorkflow(_ context.Context, name string) (*jira.WorkflowDefinition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.workflowReads++
	f.record("GetWorkflow %s", name)
	if f.wfErr != nil {
		return nil, f.wfErr
	}
	if name != f.def.ID.Name {
		return nil, &jira.WorkflowError{Workflow: name, Message: "not found"}
	}
	return f.def, nil
}

func (f *fakeJira) GetProject(_ context.Context, key string) (*jira.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetProject %s", key)
	return &jira.Project{ID: "10000", Key: key}, nil
}

func (f *fakeJira) GetWorkflowScheme(_ context.Context, projectID string) (*jira.WorkflowScheme, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetWorkflowScheme %s", projectID)
	if f.schemeErr != nil {
		return nil, f.schemeErr
	}
	return &jira.WorkflowScheme{ID: 1, Name: "Delivery Scheme", DefaultWorkflow: f.def.ID.Name}, nil
}

func (f *fakeJira) GetIssue(_ context.Context, key string) (*jira.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetIssue %s", key)
	if err := f.issueErr[key]; err != nil {
		return nil, err
	}
	id, ok := f.status[key]
	if !ok {
		return nil, &jira.APIError{StatusCode: 404, Method: "GET", Endpoint: "/rest/api/3/issue/" + key}
	}
	return &jira.Issue{
		Key: key,
		Fields: jira.IssueFields{
			Status:  &jira.StatusField{ID: id, Name: f.statusName(id)},
			Project: &jira.ProjectField{ID: "10000", Key: jira.ProjectKey(key)},
		},
	}, nil
}

func (f *fakeJira) liveTransitions(key string) []jira.Transition {
	current := f.status[key]
	var out []jira.Transition
	for _, t := range f.def.Transitions {
		if f.hidden[t.ID] || t.To == current {
			continue
		}
		allowed := len(t.From) == 0
		for _, from := range t.From {
			if from == current {
				allowed = true
			}
		}
		if !allowed {
			continue
		}
		out = append(out, jira.Transition{
			ID:   t.ID,
			Name: t.Name,
			To:   jira.StatusField{ID: t.To, Name: f.statusName(t.To)},
		})
	}
	return out
}

func (f *fakeJira) GetTransitions(_ context.Context, key string) ([]jira.Transition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetTransitions %s", key)
	return f.liveTransitions(key), nil
}

func (f *fakeJira) GetTransitionFields(_ context.Context, key, transitionID string) (map[string]jira.FieldMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetTransitionFields %s", key)
	if m, ok := f.meta[transitionID]; ok {
		return m, nil
	}
	return map[string]jira.FieldMeta{}, nil
}

func (f *fakeJira) DoTransition(_ context.Context, key, transitionID string, fields map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DoTransition %s", key)
	for _, t := range f.liveTransitions(key) {
		if t.ID == transitionID {
			f.status[key] = t.To.ID
			f.submissions = append(f.submissions, submission{Key: key, TransitionID: transitionID, Fields: fields})
			return nil
		}
	}
	return &jira.APIError{StatusCode: 400, Method: "POST", Endpoint: "/rest/api/3/issue/" + key + "/transitions", Body: "transition not valid"}
}

func (f *fakeJira) UpdateFields(_ context.Context, key string, fields map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdateFields %s", key)
	if err := f.updateErr[key]; err != nil {
		return err
	}
	f.updates = append(f.updates, fieldUpdate{Key: key, Fields: fields})
	return nil
}

func (f *fakeJira) FieldOptions(_ context.Context, field, projectKey string) ([]jira.FieldOption, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.optionReads++
	f.record("FieldOptions %s", projectKey)
	return f.options[field], nil
}

func (f *fakeJira) submissionsFor(key string) []submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []submission
	for _, s := range f.submissions {
		if s.Key == key {
			out = append(out, s)
		}
	}
	return out
}

func newTestExecutor(f *fakeJira) *Executor {
	e := NewExecutor(f, nil)
	e.StepDelay = 0
	return e
}
