package ui

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"

	"github.com/steveyegge/jirasync/internal/deploy"
	"github.com/steveyegge/jirasync/internal/workflow"
)

func TestMain(m *testing.M) {
	lipgloss.SetColorProfile(termenv.Ascii)
	os.Exit(m.Run())
}

func TestTruncateSimple(t *testing.T) {
	assert.Equal(t, "short", TruncateSimple("short", 10))
	assert.Equal(t, "abcd...", TruncateSimple("abcdefghij", 7))
	assert.Equal(t, "...", TruncateSimple("abcdefghij", 2))
	assert.Equal(t, "žluť...", TruncateSimple("žluťoučký kůň", 7))
}

func TestWriteBulkResult(t *testing.T) {
	var buf bytes.Buffer
	WriteBulkResult(&buf, "Deployed to Staging", workflow.BulkResult{
		SuccessCount: 2,
		FailureCount: 3,
		Errors: []workflow.ItemError{
			{IssueKey: "DEX-3", Message: "issue not found"},
			{IssueKey: "DEX-4", Message: strings.Repeat("x", 400)},
		},
	})

	out := buf.String()
	assert.Contains(t, out, IconWarn+" 2/5 issues at Deployed to Staging")
	assert.Contains(t, out, "DEX-3 issue not found")
	assert.Contains(t, out, strings.Repeat("x", maxErrorLen-3)+"...")
	assert.Contains(t, out, "... and 1 more failures")
}

func TestWriteBulkResultIcons(t *testing.T) {
	tests := []struct {
		res  workflow.BulkResult
		icon string
	}{
		{workflow.BulkResult{SuccessCount: 3}, IconPass},
		{workflow.BulkResult{FailureCount: 1, Errors: []workflow.ItemError{{IssueKey: "A-1", Message: "x"}}}, IconFail},
		{workflow.BulkResult{}, IconSkip},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		WriteBulkResult(&buf, "Done", tt.res)
		assert.True(t, strings.HasPrefix(buf.String(), tt.icon+" "), buf.String())
	}
}

func TestWriteOutcome(t *testing.T) {
	var buf bytes.Buffer
	WriteOutcome(&buf, &deploy.Outcome{
		Event:  "push",
		Branch: "staging",
		Target: "Deployed to Staging",
		Keys:   []string{"DEX-1", "DEX-2"},
		Result: workflow.BulkResult{SuccessCount: 2},
		Scan:   &deploy.ScanResult{Keys: []string{"DEX-1", "DEX-2"}, Done: 5, CommitsScanned: 40, StopReason: deploy.StopEarly},
	})
	out := buf.String()
	assert.Contains(t, out, "PUSH STAGING")
	assert.Contains(t, out, "scanned 40 commits: 2 pending, 5 done, 0 unreadable (consecutive done issues)")
	assert.Contains(t, out, "issues: DEX-1, DEX-2")
	assert.Contains(t, out, "2/2 issues at Deployed to Staging")

	buf.Reset()
	WriteOutcome(&buf, &deploy.Outcome{Event: "pull_request", Skipped: true, SkipReason: "draft"})
	assert.Contains(t, buf.String(), "skipped: draft")
}

func testPath() workflow.Path {
	return workflow.Path{
		{TransitionID: "21", TransitionName: "Review", FromName: "In Progress", ToName: "Code Review"},
		{TransitionID: "31", TransitionName: "Deploy", FromName: "Code Review", ToName: "Deployed to Staging"},
	}
}

func TestFormatPath(t *testing.T) {
	assert.Equal(t, "In Progress -[Review]-> Code Review -[Deploy]-> Deployed to Staging", FormatPath(testPath()))
	assert.Equal(t, "(no transitions)", FormatPath(nil))
}

func TestWritePlan(t *testing.T) {
	tests := []struct {
		plan workflow.Plan
		want string
	}{
		{workflow.Plan{IssueKey: "DEX-1", Workflow: "Delivery", From: "In Progress", Target: "Deployed to Staging", Path: testPath(), Found: true}, "DEX-1 (Delivery, 2 steps)"},
		{workflow.Plan{IssueKey: "DEX-2", Target: "Done", Found: true}, "DEX-2 already at Done"},
		{workflow.Plan{IssueKey: "DEX-3", Workflow: "Delivery", From: "Done", Target: "To Do"}, "DEX-3: no path from Done to To Do in Delivery"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		WritePlan(&buf, &tt.plan)
		assert.Contains(t, buf.String(), tt.want)
	}
}

func TestWritePathsSortsByLength(t *testing.T) {
	long := testPath()
	short := long[1:]
	var buf bytes.Buffer
	WritePaths(&buf, []workflow.Path{long, short})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 3)
	assert.Equal(t, "  1. Code Review -[Deploy]-> Deployed to Staging", lines[0])
	assert.Equal(t, fmt.Sprintf("%d paths", 2), lines[2])
}

func TestWriteGraph(t *testing.T) {
	g := workflow.NewGraph("Delivery",
		[]workflow.Status{
			{ID: "1", Name: "Code Review", Category: "indeterminate"},
			{ID: "2", Name: "Deployed to Staging"},
			{ID: "3", Name: "Code Review"},
		},
		[]workflow.Transition{
			{ID: "31", Name: "Deploy", From: []string{"1"}, To: "2"},
		})

	var buf bytes.Buffer
	WriteGraph(&buf, g)
	out := buf.String()
	assert.Contains(t, out, "DELIVERY")
	assert.Contains(t, out, "Code Review (indeterminate)")
	assert.Contains(t, out, TreeLast+"Deploy → Deployed to Staging")
	assert.Contains(t, out, "duplicate status names (first wins): Code Review")
}
