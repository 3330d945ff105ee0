package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// NewClient creates a new GitHub client.
func NewClient(token, owner, repo string) *Client {
	return &Client{
		Token:   token,
		Owner:   owner,
		Repo:    repo,
		BaseURL: DefaultAPIEndpoint,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// WithHTTPClient returns a new client with a custom HTTP client.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	clone := *c
	clone.HTTPClient = httpClient
	return &clone
}

// WithBaseURL returns a new client with a custom base URL (for testing or GitHub Enterprise).
func (c *Client) WithBaseURL(baseURL string) *Client {
	clone := *c
	clone.BaseURL = strings.TrimSuffix(baseURL, "/")
	return &clone
}

// WithLogger returns a new client logging retries to logger.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	clone := *c
	clone.Logger = logger
	return &clone
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// repoPath returns the "/repos/owner/repo" path prefix.
func (c *Client) repoPath() string {
	return "/repos/" + url.PathEscape(c.Owner) + "/" + url.PathEscape(c.Repo)
}

// buildURL constructs a full API URL.
func (c *Client) buildURL(path string, params map[string]string) string {
	u := c.BaseURL + path

	if len(params) > 0 {
		values := url.Values{}
		for k, v := range params {
			values.Set(k, v)
		}
		u += "?" + values.Encode()
	}

	return u
}

// rateLimited reports whether a response is GitHub throttling: 429, or 403
// with an exhausted primary quota.
func rateLimited(resp *http.Response) bool {
	if resp.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0"
}

// maxRateLimitWait caps a single server-requested wait.
const maxRateLimitWait = time.Minute

// rateLimitDelay picks the server-requested wait: Retry-After seconds, or
// the time until X-RateLimit-Reset. Zero means use the backoff schedule.
func rateLimitDelay(header http.Header, now time.Time) time.Duration {
	var d time.Duration
	if v := header.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
			d = time.Duration(seconds) * time.Second
		}
	}
	if v := header.Get("X-RateLimit-Reset"); d == 0 && v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			d = time.Unix(epoch, 0).Sub(now)
		}
	}
	if d < 0 {
		return 0
	}
	if d > maxRateLimitWait {
		return maxRateLimitWait
	}
	return d
}

// serverDelayBackOff lets a rate-limit response override the next
// exponential delay.
type serverDelayBackOff struct {
	backoff.BackOff
	next time.Duration
}

func (b *serverDelayBackOff) NextBackOff() time.Duration {
	d := b.BackOff.NextBackOff()
	if d == backoff.Stop {
		return d
	}
	if b.next > 0 {
		d, b.next = b.next, 0
	}
	return d
}

// doRequest performs a GET with authentication and retry logic. Rate
// limiting, 5xx responses and network errors are retried up to MaxRetries
// times; other failures return *APIError at once.
func (c *Client) doRequest(ctx context.Context, urlStr string) ([]byte, http.Header, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = RetryDelay
	exp.RandomizationFactor = 0
	exp.Multiplier = 2
	exp.MaxElapsedTime = 0
	policy := &serverDelayBackOff{BackOff: backoff.WithMaxRetries(exp, MaxRetries)}

	path := urlStr
	if u, err := url.Parse(urlStr); err == nil {
		path = u.Path
	}

	var (
		body    []byte
		headers http.Header
	)
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+c.Token)
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", apiVersion)

		httpClient := c.HTTPClient
		if httpClient == nil {
			httpClient = http.DefaultClient
		}
		resp, err := httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("request failed: %w", err)
		}

		const maxResponseSize = 50 * 1024 * 1024
		respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		_ = resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			body, headers = respBody, resp.Header
			return nil
		}

		apiErr := &APIError{StatusCode: resp.StatusCode, Method: http.MethodGet, Path: path, Message: errorMessage(respBody)}
		if rateLimited(resp) {
			policy.next = rateLimitDelay(resp.Header, time.Now())
			return apiErr
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return apiErr
		}
		return backoff.Permanent(apiErr)
	}

	notify := func(err error, delay time.Duration) {
		c.logger().Warn("retrying github request", "path", path, "delay", delay, "error", err)
	}

	if err := backoff.RetryNotifyWithTimer(operation, backoff.WithContext(policy, ctx), notify, c.timer); err != nil {
		return nil, nil, err
	}
	return body, headers, nil
}

// errorMessage extracts GitHub's {"message": "..."} or falls back to the
// raw body.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	if len(body) > 256 {
		return string(body[:256]) + "..."
	}
	return string(body)
}

// linkNextPattern matches the "next" relation in GitHub Link headers.
var linkNextPattern = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

// hasNextPage checks the Link header for a next page URL and returns it.
func hasNextPage(headers http.Header) (string, bool) {
	link := headers.Get("Link")
	if link == "" {
		return "", false
	}
	matches := linkNextPattern.FindStringSubmatch(link)
	if len(matches) < 2 {
		return "", false
	}
	return matches[1], true
}
