package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// instantTimer fires at once and records requested delays.
type instantTimer struct {
	delays []time.Duration
	c      chan time.Time
}

func (i *instantTimer) Start(d time.Duration) {
	i.delays = append(i.delays, d)
	i.c = make(chan time.Time, 1)
	i.c <- time.Now()
}

func (i *instantTimer) Stop() {}

func (i *instantTimer) C() <-chan time.Time { return i.c }

func testClient(url string) (*Client, *instantTimer) {
	timer := &instantTimer{}
	c := NewClient("test-token", "acme", "api").WithBaseURL(url)
	c.timer = timer
	return c, timer
}

// TestNewClient verifies the constructor creates a properly configured client.
func TestNewClient(t *testing.T) {
	client := NewClient("test-token", "owner", "repo")

	if client.Token != "test-token" {
		t.Errorf("Token = %q, want %q", client.Token, "test-token")
	}
	if client.Owner != "owner" || client.Repo != "repo" {
		t.Errorf("Owner/Repo = %q/%q", client.Owner, client.Repo)
	}
	if client.BaseURL != DefaultAPIEndpoint {
		t.Errorf("BaseURL = %q, want %q", client.BaseURL, DefaultAPIEndpoint)
	}
	if client.HTTPClient == nil {
		t.Error("HTTPClient is nil, want non-nil default client")
	}
}

// TestClientWithBaseURL verifies custom base URL setting.
func TestClientWithBaseURL(t *testing.T) {
	base := NewClient("token", "owner", "repo")
	client := base.WithBaseURL("https://github.example.com/api/v3/")

	if client.BaseURL != "https://github.example.com/api/v3" {
		t.Errorf("BaseURL = %q, want custom URL without trailing slash", client.BaseURL)
	}
	if base.BaseURL != DefaultAPIEndpoint {
		t.Error("WithBaseURL modified the original client")
	}
}

func TestParseRepository(t *testing.T) {
	owner, repo, err := ParseRepository("acme/api")
	if err != nil || owner != "acme" || repo != "api" {
		t.Errorf("ParseRepository = %q, %q, %v", owner, repo, err)
	}
	for _, bad := range []string{"", "acme", "acme/", "/api", "a/b/c"} {
		if _, _, err := ParseRepository(bad); err == nil {
			t.Errorf("ParseRepository(%q) succeeded, want error", bad)
		}
	}
}

func TestLatestCommit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/acme/api/commits/main" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("X-GitHub-Api-Version") == "" {
			t.Error("missing API version header")
		}
		_, _ = w.Write([]byte(`{"sha":"0123456789abcdef","commit":{"message":"DEX-36: cache graphs\n\nlonger body"}}`))
	}))
	defer server.Close()

	client, _ := testClient(server.URL)
	commit, err := client.LatestCommit(context.Background(), "main")
	if err != nil {
		t.Fatalf("LatestCommit() error = %v", err)
	}
	if commit.ShortSHA() != "0123456" {
		t.Errorf("ShortSHA() = %q", commit.ShortSHA())
	}
	if commit.Subject() != "DEX-36: cache graphs" {
		t.Errorf("Subject() = %q", commit.Subject())
	}
}

func TestListCommits(t *testing.T) {
	since := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("sha") != "release" || q.Get("per_page") != "50" || q.Get("page") != "2" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		if q.Get("since") != "2024-01-15T10:00:00Z" {
			t.Errorf("since = %q", q.Get("since"))
		}
		w.Header().Set("Link", `<`+r.URL.Path+`?page=3>; rel="next", <`+r.URL.Path+`?page=9>; rel="last"`)
		_ = json.NewEncoder(w).Encode([]Commit{
			{SHA: "a", Commit: CommitDetail{Message: "DEX-1"}},
			{SHA: "b", Commit: CommitDetail{Message: "DEX-2"}},
		})
	}))
	defer server.Close()

	client, _ := testClient(server.URL)
	commits, more, err := client.ListCommits(context.Background(), CommitListOptions{
		Branch: "release", Page: 2, PerPage: 50, Since: since,
	})
	if err != nil {
		t.Fatalf("ListCommits() error = %v", err)
	}
	if len(commits) != 2 || commits[0].Message() != "DEX-1" {
		t.Errorf("commits = %+v", commits)
	}
	if !more {
		t.Error("more = false, want true from Link header")
	}
}

func TestListCommitsLastPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("per_page"); got != strconv.Itoa(MaxPageSize) {
			t.Errorf("per_page = %s, want default", got)
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client, _ := testClient(server.URL)
	commits, more, err := client.ListCommits(context.Background(), CommitListOptions{Branch: "main"})
	if err != nil {
		t.Fatalf("ListCommits() error = %v", err)
	}
	if len(commits) != 0 || more {
		t.Errorf("commits = %v, more = %v", commits, more)
	}
}

func TestPullRequestCommitsPaginates(t *testing.T) {
	var page int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/pulls/12/commits") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if atomic.AddInt32(&page, 1) == 1 {
			w.Header().Set("Link", `<`+r.URL.Path+`?page=2>; rel="next"`)
			_ = json.NewEncoder(w).Encode([]Commit{{SHA: "a"}})
			return
		}
		_ = json.NewEncoder(w).Encode([]Commit{{SHA: "b"}})
	}))
	defer server.Close()

	client, _ := testClient(server.URL)
	commits, err := client.PullRequestCommits(context.Background(), 12)
	if err != nil {
		t.Fatalf("PullRequestCommits() error = %v", err)
	}
	if len(commits) != 2 || commits[1].SHA != "b" {
		t.Errorf("commits = %+v", commits)
	}
}

func TestRateLimitRetry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10))
			w.WriteHeader(http.StatusForbidden)
		default:
			_, _ = w.Write([]byte(`{"sha":"abc"}`))
		}
	}))
	defer server.Close()

	client, timer := testClient(server.URL)
	if _, err := client.LatestCommit(context.Background(), "main"); err != nil {
		t.Fatalf("LatestCommit() error = %v", err)
	}
	if len(timer.delays) != 2 || timer.delays[0] != 3*time.Second || timer.delays[1] != maxRateLimitWait {
		t.Errorf("delays = %v, want [3s %v]", timer.delays, maxRateLimitWait)
	}
}

func TestServerErrorsExhaustRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, _ := testClient(server.URL)
	_, err := client.LatestCommit(context.Background(), "main")
	if err == nil {
		t.Fatal("expected error")
	}
	if n := atomic.LoadInt32(&calls); n != MaxRetries+1 {
		t.Errorf("calls = %d, want %d", n, MaxRetries+1)
	}
}

func TestNotFoundIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"No commit found for SHA: nope"}`))
	}))
	defer server.Close()

	client, _ := testClient(server.URL)
	_, err := client.LatestCommit(context.Background(), "nope")
	if !IsNotFound(err) {
		t.Fatalf("err = %v, want not found", err)
	}
	if !strings.Contains(err.Error(), "No commit found") {
		t.Errorf("error %q lacks GitHub message", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestHasNextPage(t *testing.T) {
	h := http.Header{}
	if _, ok := hasNextPage(h); ok {
		t.Error("empty Link header has no next page")
	}
	h.Set("Link", `<https://api.github.com/x?page=9>; rel="last"`)
	if _, ok := hasNextPage(h); ok {
		t.Error("last-only Link header has no next page")
	}
	h.Set("Link", `<https://api.github.com/x?page=2>; rel="next"`)
	if next, ok := hasNextPage(h); !ok || next != "https://api.github.com/x?page=2" {
		t.Errorf("hasNextPage = %q, %v", next, ok)
	}
}
