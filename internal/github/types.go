// Package github provides a client and data types for the parts of the
// GitHub REST API that deployment sync reads: commits on a branch and
// commits of a pull request.
package github

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// API configuration constants.
const (
	// DefaultAPIEndpoint is the GitHub REST API base URL.
	DefaultAPIEndpoint = "https://api.github.com"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxRetries is the maximum number of retries for rate-limited or
	// failed requests.
	MaxRetries = 3

	// RetryDelay is the base delay between retries (exponential backoff).
	RetryDelay = time.Second

	// MaxPageSize is the largest page GitHub serves.
	MaxPageSize = 100

	// MaxPages stops pagination loops fed by malformed Link headers.
	MaxPages = 1000

	apiVersion = "2022-11-28"
)

// Client provides methods to interact with the GitHub REST API.
type Client struct {
	Token      string       // GitHub token (Actions GITHUB_TOKEN or a PAT)
	Owner      string       // Repository owner (user or org)
	Repo       string       // Repository name
	BaseURL    string       // API base URL (default: https://api.github.com)
	HTTPClient *http.Client // Optional custom HTTP client
	Logger     *slog.Logger

	timer backoff.Timer
}

// Commit is one entry of the commits API.
type Commit struct {
	SHA     string       `json:"sha"`
	HTMLURL string       `json:"html_url"`
	Commit  CommitDetail `json:"commit"`
	Author  *User        `json:"author,omitempty"`
}

// CommitDetail is the git-level part of a commit.
type CommitDetail struct {
	Message   string    `json:"message"`
	Author    *GitActor `json:"author,omitempty"`
	Committer *GitActor `json:"committer,omitempty"`
}

// GitActor is a git author or committer signature.
type GitActor struct {
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Date  time.Time `json:"date"`
}

// User represents a GitHub user.
type User struct {
	ID    int    `json:"id"`
	Login string `json:"login"`
}

// Message returns the full commit message.
func (c Commit) Message() string { return c.Commit.Message }

// Subject returns the first line of the commit message.
func (c Commit) Subject() string {
	msg := c.Commit.Message
	if idx := strings.IndexByte(msg, '\n'); idx >= 0 {
		return msg[:idx]
	}
	return msg
}

// ShortSHA returns the abbreviated commit hash.
func (c Commit) ShortSHA() string {
	if len(c.SHA) > 7 {
		return c.SHA[:7]
	}
	return c.SHA
}

// CommitListOptions selects a page of branch history.
type CommitListOptions struct {
	Branch  string
	Page    int       // 1-based; zero means 1
	PerPage int       // zero means MaxPageSize
	Since   time.Time // zero means no lower bound
}

// APIError is a non-2xx response from GitHub.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("github API %s %s returned %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("github API %s %s returned %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a GitHub 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// ParseRepository splits "owner/repo" as found in GITHUB_REPOSITORY.
func ParseRepository(full string) (owner, repo string, err error) {
	parts := strings.Split(strings.TrimSpace(full), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository %q: expected owner/repo", full)
	}
	return parts[0], parts[1], nil
}
