package deploy

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Pull request actions that move issues.
const (
	ActionOpened         = "opened"
	ActionReopened       = "reopened"
	ActionReadyForReview = "ready_for_review"
	ActionClosed         = "closed"
)

// PullRequestEvent is the subset of GitHub's pull_request webhook payload
// that deployment sync reads.
type PullRequestEvent struct {
	Action      string      `json:"action"`
	Number      int         `json:"number"`
	PullRequest PullRequest `json:"pull_request"`
}

// PullRequest is the pull_request object of the event.
type PullRequest struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	HTMLURL string `json:"html_url"`
	Merged  bool   `json:"merged"`
	Draft   bool   `json:"draft"`
	Base    GitRef `json:"base"`
	Head    GitRef `json:"head"`
}

// GitRef is a base or head reference of a pull request.
type GitRef struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

// PushEvent is the subset of GitHub's push webhook payload that deployment
// sync reads.
type PushEvent struct {
	Ref     string       `json:"ref"`
	Before  string       `json:"before"`
	After   string       `json:"after"`
	Deleted bool         `json:"deleted"`
	Commits []PushCommit `json:"commits"`
}

// PushCommit is one commit listed in a push event.
type PushCommit struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// HeadSHA returns the commit the branch points at after the push, or "" when
// the payload carries none.
func (e PushEvent) HeadSHA() string {
	if strings.Trim(e.After, "0") == "" {
		return ""
	}
	return e.After
}

// Branch returns the branch a push went to. Tag pushes report false.
func (e PushEvent) Branch() (string, bool) {
	const prefix = "refs/heads/"
	if !strings.HasPrefix(e.Ref, prefix) {
		return "", false
	}
	return strings.TrimPrefix(e.Ref, prefix), true
}

// Reference is the string other systems use to link to the pull request:
// its URL when known, "#<number>" otherwise.
func (pr PullRequest) Reference() string {
	if pr.HTMLURL != "" {
		return pr.HTMLURL
	}
	return fmt.Sprintf("#%d", pr.Number)
}

// DecodePullRequestEvent reads a pull_request event payload.
func DecodePullRequestEvent(r io.Reader) (*PullRequestEvent, error) {
	var ev PullRequestEvent
	if err := json.NewDecoder(r).Decode(&ev); err != nil {
		return nil, fmt.Errorf("decode pull_request event: %w", err)
	}
	if ev.PullRequest.Number == 0 {
		ev.PullRequest.Number = ev.Number
	}
	return &ev, nil
}

// DecodePushEvent reads a push event payload.
func DecodePushEvent(r io.Reader) (*PushEvent, error) {
	var ev PushEvent
	if err := json.NewDecoder(r).Decode(&ev); err != nil {
		return nil, fmt.Errorf("decode push event: %w", err)
	}
	if ev.Ref == "" {
		return nil, fmt.Errorf("decode push event: missing ref")
	}
	return &ev, nil
}

// ReadPullRequestEvent decodes the event file at path (GITHUB_EVENT_PATH).
func ReadPullRequestEvent(path string) (*PullRequestEvent, error) {
	f, err := os.Open(path) // #nosec G304 - event path comes from the runner
	if err != nil {
		return nil, fmt.Errorf("open event file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return DecodePullRequestEvent(f)
}

// ReadPushEvent decodes the event file at path (GITHUB_EVENT_PATH).
func ReadPushEvent(path string) (*PushEvent, error) {
	f, err := os.Open(path) // #nosec G304 - event path comes from the runner
	if err != nil {
		return nil, fmt.Errorf("open event file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return DecodePushEvent(f)
}
