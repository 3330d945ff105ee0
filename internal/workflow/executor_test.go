package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/jirasync/internal/jira"
)

func TestTransitionAlreadyAtTarget(t *testing.T) {
	f := newFakeJira()
	f.status["DEX-1"] = stStaging
	e := newTestExecutor(f)

	ok, err := e.Transition(context.Background(), "DEX-1", "Deployed to Staging", TransitionOptions{})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"GetIssue DEX-1"}, f.calls)
}

func TestTransitionWalksPath(t *testing.T) {
	f := newFakeJira()
	f.status["DEX-2"] = stTodo
	e := newTestExecutor(f)

	ok, err := e.Transition(context.Background(), "DEX-2", "Deployed to Staging", TransitionOptions{})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Deployed to Staging", f.currentStatus("DEX-2"))

	subs := f.submissionsFor("DEX-2")
	require.Len(t, subs, 3)
	assert.Equal(t, "11", subs[0].TransitionID)
	assert.Equal(t, "21", subs[1].TransitionID)
	assert.Equal(t, "31", subs[2].TransitionID)

	// live transitions are re-read before every step
	var reads int
	for _, c := range f.callsFor("DEX-2") {
		if c == "GetTransitions DEX-2" {
			reads++
		}
	}
	assert.Equal(t, 3, reads)
}

func TestTransitionCallerFieldsOnFinalStepOnly(t *testing.T) {
	f := newFakeJira()
	f.status["DEX-3"] = stProgress
	e := newTestExecutor(f)

	ok, err := e.Transition(context.Background(), "DEX-3", "Deployed to Staging", TransitionOptions{
		Fields: jira.Fields{"customfield_10200": jira.String("v1.4.0")},
	})
	require.NoError(t, err)
	require.True(t, ok)

	subs := f.submissionsFor("DEX-3")
	require.Len(t, subs, 2)
	assert.Empty(t, subs[0].Fields)
	assert.Equal(t, map[string]interface{}{"customfield_10200": "v1.4.0"}, subs[1].Fields)
}

func TestTransitionPopulatesRequiredDefaults(t *testing.T) {
	f := newFakeJira()
	f.status["DEX-4"] = stStaging
	f.meta["41"] = map[string]jira.FieldMeta{
		"resolution": {
			Required: true,
			Name:     "Resolution",
			Schema:   jira.FieldSchema{Type: "resolution", System: "resolution"},
			AllowedValues: []jira.FieldOption{
				{ID: "1", Name: "Fixed"},
				{ID: "2", Name: "Done"},
			},
		},
		"priority": {
			Required: true,
			Name:     "Priority",
			Schema:   jira.FieldSchema{Type: "priority", System: "priority"},
		},
		"labels":   {Required: false, Name: "Labels"},
		"assignee": {Required: true, Name: "Assignee", HasDefaultValue: true},
	}
	f.options[jira.FieldPriority] = []jira.FieldOption{{ID: "1", Name: "High"}, {ID: "3", Name: "Medium"}}
	e := newTestExecutor(f)

	ok, err := e.Transition(context.Background(), "DEX-4", "Done", TransitionOptions{})
	require.NoError(t, err)
	require.True(t, ok)

	subs := f.submissionsFor("DEX-4")
	require.Len(t, subs, 1)
	assert.Equal(t, map[string]interface{}{
		"resolution": map[string]string{"id": "2"},
		"priority":   map[string]string{"id": "3"},
	}, subs[0].Fields)
	assert.Equal(t, 1, f.optionReads)
}

func TestTransitionDefaultFallsBackToFirstOption(t *testing.T) {
	f := newFakeJira()
	f.status["DEX-5"] = stStaging
	f.meta["41"] = map[string]jira.FieldMeta{
		"resolution": {
			Required:      true,
			Name:          "Resolution",
			AllowedValues: []jira.FieldOption{{ID: "7", Name: "Won't Do"}, {ID: "8", Name: "Duplicate"}},
		},
	}
	e := newTestExecutor(f)

	_, err := e.Transition(context.Background(), "DEX-5", "Done", TransitionOptions{})
	require.NoError(t, err)

	subs := f.submissionsFor("DEX-5")
	require.Len(t, subs, 1)
	assert.Equal(t, map[string]string{"id": "7"}, subs[0].Fields["resolution"])
}

func TestTransitionReusesAutoPopulatedValues(t *testing.T) {
	f := newFakeJira()
	f.status["DEX-6"] = stReview
	priority := jira.FieldMeta{Required: true, Name: "Priority", Schema: jira.FieldSchema{System: "priority"}}
	f.meta["31"] = map[string]jira.FieldMeta{"priority": priority}
	f.meta["41"] = map[string]jira.FieldMeta{"priority": priority}
	f.options[jira.FieldPriority] = []jira.FieldOption{{ID: "3", Name: "Medium"}}
	e := newTestExecutor(f)

	_, err := e.Transition(context.Background(), "DEX-6", "Done", TransitionOptions{})
	require.NoError(t, err)

	subs := f.submissionsFor("DEX-6")
	require.Len(t, subs, 2)
	for _, s := range subs {
		assert.Equal(t, map[string]string{"id": "3"}, s.Fields["priority"])
	}
	assert.Equal(t, 1, f.optionReads)
}

func TestTransitionCallerValueBeatsDefault(t *testing.T) {
	f := newFakeJira()
	f.status["DEX-7"] = stStaging
	f.meta["41"] = map[string]jira.FieldMeta{
		"resolution": {Required: true, Name: "Resolution", AllowedValues: []jira.FieldOption{{ID: "2", Name: "Done"}}},
	}
	e := newTestExecutor(f)

	_, err := e.Transition(context.Background(), "DEX-7", "Done", TransitionOptions{
		Fields: jira.Fields{"resolution": jira.OptionNamed("Fixed")},
	})
	require.NoError(t, err)

	subs := f.submissionsFor("DEX-7")
	require.Len(t, subs, 1)
	assert.Equal(t, map[string]string{"name": "Fixed"}, subs[0].Fields["resolution"])
}

func TestTransitionMissingRequiredField(t *testing.T) {
	f := newFakeJira()
	f.status["DEX-8"] = stReview
	f.meta["31"] = map[string]jira.FieldMeta{
		"customfield_10300": {Required: true, Name: "Release Notes"},
	}
	e := newTestExecutor(f)

	ok, err := e.Transition(context.Background(), "DEX-8", "Done", TransitionOptions{})
	assert.False(t, ok)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingField))

	var terr *TransitionError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "Release Notes (customfield_10300)", terr.Field)

	assert.Empty(t, f.submissionsFor("DEX-8"))
	assert.Equal(t, "Code Review", f.currentStatus("DEX-8"))
}

func TestTransitionUnavailable(t *testing.T) {
	f := newFakeJira()
	f.status["DEX-9"] = stTodo
	f.hidden["21"] = true
	e := newTestExecutor(f)

	ok, err := e.Transition(context.Background(), "DEX-9", "Code Review", TransitionOptions{})
	assert.False(t, ok)
	require.True(t, errors.Is(err, ErrTransitionUnavailable))

	var terr *TransitionError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "Review → Code Review", terr.Attempted)
	assert.Contains(t, terr.Available, "Block → Blocked")

	// the first step went through before the second was found missing
	assert.Equal(t, "In Progress", f.currentStatus("DEX-9"))
	assert.Equal(t, 0, e.Cache().Len(), "stale graph should be dropped")
}

func TestTransitionMatchesByNameWhenIDsDiffer(t *testing.T) {
	f := newFakeJira()
	f.status["DEX-10"] = stTodo
	e := newTestExecutor(f)

	// the cached graph knows transition ids that the live issue no longer
	// reports
	g, err := e.Cache().Graph(context.Background(), "Delivery")
	require.NoError(t, err)
	require.NotNil(t, g)
	f.def = deliveryWorkflow()
	f.def.Transitions[0].ID = "111"

	ok, err := e.Transition(context.Background(), "DEX-10", "In Progress", TransitionOptions{})
	require.NoError(t, err)
	assert.True(t, ok)
	subs := f.submissionsFor("DEX-10")
	require.Len(t, subs, 1)
	assert.Equal(t, "111", subs[0].TransitionID)
}

func TestTransitionNoPath(t *testing.T) {
	f := newFakeJira()
	f.status["DEX-11"] = stReview
	e := newTestExecutor(f)

	ok, err := e.Transition(context.Background(), "DEX-11", "Rejected", TransitionOptions{})
	require.NoError(t, err)
	assert.False(t, ok)

	e.Strict = true
	ok, err = e.Transition(context.Background(), "DEX-11", "Rejected", TransitionOptions{})
	assert.False(t, ok)
	assert.True(t, errors.Is(err, ErrNoPath))

	// an explicit empty exclusion list lifts the defaults
	ok, err = e.Transition(context.Background(), "DEX-11", "Rejected", TransitionOptions{Exclude: []string{}})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Rejected", f.currentStatus("DEX-11"))
}

func TestTransitionDryRun(t *testing.T) {
	f := newFakeJira()
	f.status["DEX-12"] = stTodo
	e := newTestExecutor(f)
	e.DryRun = true

	ok, err := e.Transition(context.Background(), "DEX-12", "Done", TransitionOptions{})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, f.submissions)
	assert.Equal(t, "To Do", f.currentStatus("DEX-12"))
}

func TestTransitionValidatesInput(t *testing.T) {
	f := newFakeJira()
	e := newTestExecutor(f)

	_, err := e.Transition(context.Background(), "dex-1", "Done", TransitionOptions{})
	assert.True(t, jira.IsValidation(err))

	_, err = e.Transition(context.Background(), "DEX-1", "  ", TransitionOptions{})
	assert.True(t, jira.IsValidation(err))

	assert.Empty(t, f.calls)
}

func TestTransitionIssueLookupFails(t *testing.T) {
	f := newFakeJira()
	e := newTestExecutor(f)

	_, err := e.Transition(context.Background(), "DEX-404", "Done", TransitionOptions{})
	require.Error(t, err)
	assert.True(t, jira.IsNotFound(err))
}

func TestStepDelayDefaultAndZero(t *testing.T) {
	e := NewExecutor(newFakeJira(), nil)
	assert.Equal(t, DefaultStepDelay, e.StepDelay)

	e.StepDelay = 0
	start := time.Now()
	require.NoError(t, e.pause(context.Background()))
	assert.Less(t, time.Since(start), DefaultStepDelay)
}

func TestTransitionHonorsCancellationBetweenSteps(t *testing.T) {
	f := newFakeJira()
	f.status["DEX-13"] = stTodo
	e := newTestExecutor(f)
	e.StepDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for len(f.submissionsFor("DEX-13")) == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	_, err := e.Transition(ctx, "DEX-13", "Done", TransitionOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, f.submissionsFor("DEX-13"), 1)
}

func TestPlan(t *testing.T) {
	f := newFakeJira()
	f.status["DEX-14"] = stProgress
	e := newTestExecutor(f)

	p, err := e.Plan(context.Background(), "DEX-14", "Done", nil)
	require.NoError(t, err)
	assert.True(t, p.Found)
	assert.Equal(t, "Delivery", p.Workflow)
	assert.Equal(t, "In Progress", p.From)
	assert.Len(t, p.Path, 3)
	assert.Empty(t, f.submissions)
}

func TestUpdateFields(t *testing.T) {
	f := newFakeJira()
	e := newTestExecutor(f)
	at := time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)
	e.Now = func() time.Time { return at }

	ok, err := e.UpdateFields(context.Background(), "DEX-15", jira.Fields{
		"customfield_10100": jira.Now(),
		"customfield_10101": jira.Option("10200"),
	})
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, f.updates, 1)
	assert.Equal(t, map[string]interface{}{
		"customfield_10100": "2024-03-05T14:30:00.000+0000",
		"customfield_10101": map[string]string{"id": "10200"},
	}, f.updates[0].Fields)

	ok, err = e.UpdateFields(context.Background(), "DEX-15", nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, f.updates, 1)
}
