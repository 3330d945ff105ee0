package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/jirasync/internal/jira"
)

func stagingRequest() BulkRequest {
	return BulkRequest{
		Target: "Deployed to Staging",
		CustomFields: jira.Fields{
			"customfield_10100": jira.Now(),
			"customfield_10101": jira.Option("10200"),
		},
	}
}

func TestUpdateManyMovesEveryIssue(t *testing.T) {
	f := newFakeJira()
	f.status["DEX-1"] = stReview
	f.status["DEX-2"] = stProgress
	f.status["DEX-3"] = stStaging

	b := NewBulk(newTestExecutor(f))
	res := b.UpdateMany(context.Background(), []string{"DEX-1", "DEX-2", "DEX-1", "DEX-3"}, stagingRequest())

	assert.Equal(t, BulkResult{SuccessCount: 3}, res)
	for _, key := range []string{"DEX-1", "DEX-2", "DEX-3"} {
		assert.Equal(t, "Deployed to Staging", f.currentStatus(key), key)
	}
	// duplicate key handled once
	assert.Len(t, f.submissionsFor("DEX-1"), 1)
	assert.Len(t, f.updates, 3)
}

func TestUpdateManyTransitionsBeforeFieldEdit(t *testing.T) {
	f := newFakeJira()
	f.status["DEX-36"] = stReview

	res := NewBulk(newTestExecutor(f)).UpdateMany(context.Background(), []string{"DEX-36"}, stagingRequest())
	require.Equal(t, 1, res.SuccessCount)

	var mutating []string
	for _, c := range f.callsFor("DEX-36") {
		if strings.HasPrefix(c, "DoTransition") || strings.HasPrefix(c, "UpdateFields") {
			mutating = append(mutating, c)
		}
	}
	assert.Equal(t, []string{"DoTransition DEX-36", "UpdateFields DEX-36"}, mutating)

	sub := f.submissionsFor("DEX-36")
	require.Len(t, sub, 1)
	assert.Equal(t, "31", sub[0].TransitionID)

	require.Len(t, f.updates, 1)
	fields := f.updates[0].Fields
	assert.Equal(t, map[string]string{"id": "10200"}, fields["customfield_10101"])
	stamp, ok := fields["customfield_10100"].(string)
	require.True(t, ok, "timestamp should resolve to a string")
	assert.NotEmpty(t, stamp)
}

// gatedJira holds every GetIssue until want of them are in flight at once.
type gatedJira struct {
	*fakeJira
	want int

	gate     sync.Mutex
	inflight int
	peak     int
	release  chan struct{}
	once     sync.Once
}

func (g *gatedJira) GetIssue(ctx context.Context, key string) (*jira.Issue, error) {
	g.gate.Lock()
	g.inflight++
	if g.inflight > g.peak {
		g.peak = g.inflight
	}
	if g.inflight >= g.want {
		g.once.Do(func() { close(g.release) })
	}
	g.gate.Unlock()

	select {
	case <-g.release:
	case <-time.After(2 * time.Second):
	}

	g.gate.Lock()
	g.inflight--
	g.gate.Unlock()
	return g.fakeJira.GetIssue(ctx, key)
}

func TestUpdateManyRunsAllIssuesAtOnceByDefault(t *testing.T) {
	f := newFakeJira()
	keys := make([]string, 0, 20)
	for i := 1; i <= 20; i++ {
		key := fmt.Sprintf("DEX-%d", i)
		f.status[key] = stStaging
		keys = append(keys, key)
	}
	g := &gatedJira{fakeJira: f, want: len(keys), release: make(chan struct{})}
	e := NewExecutor(g, nil)
	e.StepDelay = 0

	res := NewBulk(e).UpdateMany(context.Background(), keys, BulkRequest{Target: "Deployed to Staging"})

	assert.Equal(t, 20, res.SuccessCount)
	assert.Equal(t, 20, g.peak)
}

func TestUpdateManyCountsFailuresIndependently(t *testing.T) {
	f := newFakeJira()
	f.status["DEX-1"] = stReview
	f.status["DEX-2"] = stDone // no path back to staging
	f.status["DEX-4"] = stReview
	f.status["DEX-5"] = stReview
	f.updateErr["DEX-5"] = errors.New("field not on screen")
	// DEX-3 does not exist

	b := NewBulk(newTestExecutor(f))
	b.Concurrency = 2
	res := b.UpdateMany(context.Background(), []string{"DEX-1", "DEX-2", "DEX-3", "DEX-4", "DEX-5"}, stagingRequest())

	assert.Equal(t, 2, res.SuccessCount)
	assert.Equal(t, 3, res.FailureCount)

	byKey := map[string]string{}
	for _, e := range res.Errors {
		byKey[e.IssueKey] = e.Message
	}
	require.Len(t, byKey, 3)
	assert.Contains(t, byKey["DEX-2"], "no transition path")
	assert.Contains(t, byKey["DEX-3"], "404")
	assert.Contains(t, byKey["DEX-5"], "transitioned but field update failed")
	assert.Contains(t, byKey["DEX-5"], "field not on screen")

	// the failing issue after the transition still moved
	assert.Equal(t, "Deployed to Staging", f.currentStatus("DEX-5"))
	assert.Equal(t, "Deployed to Staging", f.currentStatus("DEX-4"))
}

func TestUpdateManyCapsReportedErrors(t *testing.T) {
	f := newFakeJira()
	keys := make([]string, 0, 25)
	for i := 1; i <= 25; i++ {
		keys = append(keys, fmt.Sprintf("GONE-%d", i))
	}

	res := NewBulk(newTestExecutor(f)).UpdateMany(context.Background(), keys, stagingRequest())

	assert.Equal(t, 0, res.SuccessCount)
	assert.Equal(t, 25, res.FailureCount)
	assert.Len(t, res.Errors, MaxReportedErrors)
	// every key was attempted even though none succeeded
	for _, key := range keys {
		assert.NotEmpty(t, f.callsFor(key), key)
	}
}

func TestUpdateManyAlreadyAtTargetStillStampsFields(t *testing.T) {
	f := newFakeJira()
	f.status["DEX-9"] = stStaging

	res := NewBulk(newTestExecutor(f)).UpdateMany(context.Background(), []string{"DEX-9"}, stagingRequest())

	assert.Equal(t, 1, res.SuccessCount)
	assert.Empty(t, f.submissionsFor("DEX-9"))
	require.Len(t, f.updates, 1)
	assert.Equal(t, "DEX-9", f.updates[0].Key)
}

func TestUpdateManyWithoutCustomFields(t *testing.T) {
	f := newFakeJira()
	f.status["DEX-1"] = stProgress

	res := NewBulk(newTestExecutor(f)).UpdateMany(context.Background(), []string{"DEX-1"}, BulkRequest{Target: "Code Review"})

	assert.Equal(t, 1, res.SuccessCount)
	assert.Empty(t, f.updates)
	assert.Equal(t, "Code Review", f.currentStatus("DEX-1"))
}

func TestUpdateManyEmpty(t *testing.T) {
	f := newFakeJira()
	res := NewBulk(newTestExecutor(f)).UpdateMany(context.Background(), nil, stagingRequest())
	assert.Equal(t, BulkResult{}, res)
	assert.Empty(t, f.calls)
}
