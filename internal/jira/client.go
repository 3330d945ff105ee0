package jira

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/steveyegge/jirasync/internal/telemetry"
)

const (
	// DefaultTimeout is the per-request HTTP timeout.
	DefaultTimeout = 30 * time.Second

	userAgent = "jirasync/1.0"

	scopeName = "github.com/steveyegge/jirasync/jira"
)

// Client provides authenticated HTTP access to a Jira Cloud or Server
// instance. Every request goes through the retry policy in Do.
type Client struct {
	URL        string
	Username   string // account email for Jira Cloud basic auth
	APIToken   string
	HTTPClient *http.Client

	// MaxAttempts caps attempts per request, first try included.
	MaxAttempts int
	// RetryBaseDelay is the first exponential backoff delay.
	RetryBaseDelay time.Duration

	Logger *slog.Logger

	// timer replaces the backoff sleep in tests.
	timer backoff.Timer
}

// NewClient creates a new Jira client.
func NewClient(url, username, apiToken string) *Client {
	return &Client{
		URL:            strings.TrimSuffix(url, "/"),
		Username:       username,
		APIToken:       apiToken,
		MaxAttempts:    DefaultMaxAttempts,
		RetryBaseDelay: DefaultRetryBaseDelay,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// WithHTTPClient returns a copy of the client using httpClient.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	clone := *c
	clone.HTTPClient = httpClient
	return &clone
}

// WithLogger returns a copy of the client logging to logger.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	clone := *c
	clone.Logger = logger
	return &clone
}

// Validate checks that the client has enough configuration to talk to Jira.
func (c *Client) Validate() error {
	if c.URL == "" {
		return &ValidationError{Field: "jira.url", Message: "not configured (set jira.url or JIRA_URL)"}
	}
	if c.APIToken == "" {
		return &ValidationError{Field: "jira.api_token", Message: "not configured (set jira.api_token or JIRA_API_TOKEN)"}
	}
	return nil
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// response is the part of an HTTP response the retry loop needs.
type response struct {
	status int
	header http.Header
	body   []byte
}

// Do sends an authenticated request to endpoint (a path such as
// "/rest/api/3/issue/PROJ-1") and returns the response body.
//
// 429 responses are retried after the server's Retry-After delay; 5xx
// responses and network failures are retried with exponential backoff. All
// retry classes share one attempt budget (MaxAttempts). Any other non-2xx
// status fails immediately with *APIError.
func (c *Client) Do(ctx context.Context, method, endpoint string, body interface{}) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s %s request: %w", method, endpoint, err)
		}
		payload = data
	}

	inst := instruments()
	path := endpointPath(endpoint)
	ctx, span := inst.tracer.Start(ctx, "jira.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("jira.endpoint", path),
		),
	)
	defer span.End()

	baseDelay := c.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = DefaultRetryBaseDelay
	}
	maxAttempts := c.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	policy := newRetryPolicy(maxAttempts, baseDelay)

	attempt := 0
	var result []byte
	operation := func() error {
		attempt++
		resp, err := c.send(ctx, method, c.URL+endpoint, payload)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("%s %s: %w", method, path, err)
		}
		span.SetAttributes(attribute.Int("http.status_code", resp.status))

		if resp.status >= 200 && resp.status < 300 {
			result = resp.body
			return nil
		}

		apiErr := &APIError{
			StatusCode: resp.status,
			Method:     method,
			Endpoint:   path,
			Body:       string(resp.body),
		}
		if !isRetryableStatus(resp.status) {
			return backoff.Permanent(apiErr)
		}
		if resp.status == http.StatusTooManyRequests {
			policy.next = retryAfter(resp.header)
		}
		return apiErr
	}

	notify := func(err error, delay time.Duration) {
		inst.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("jira.endpoint", path)))
		c.logger().Warn("retrying jira request",
			"method", method,
			"endpoint", path,
			"attempt", attempt,
			"delay", delay,
			"error", err)
	}

	err := backoff.RetryNotifyWithTimer(operation, backoff.WithContext(policy, ctx), notify, c.timer)
	inst.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.Bool("success", err == nil),
	))
	span.SetAttributes(attribute.Int("jira.attempts", attempt))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return result, nil
}

// send performs a single HTTP round trip.
func (c *Client) send(ctx context.Context, method, apiURL string, payload []byte) (*response, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.setAuth(req)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return &response{status: resp.StatusCode, header: resp.Header, body: respBody}, nil
}

// setAuth sets the appropriate authentication header on the request.
// Jira Cloud wants basic auth with email:token; Server/DC personal access
// tokens go in a bearer header.
func (c *Client) setAuth(req *http.Request) {
	if c.Username != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(c.Username + ":" + c.APIToken))
		req.Header.Set("Authorization", "Basic "+auth)
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.APIToken)
}

// endpointPath strips the query string so span attributes and error
// messages stay low-cardinality.
func endpointPath(endpoint string) string {
	if idx := strings.IndexByte(endpoint, '?'); idx >= 0 {
		return endpoint[:idx]
	}
	return endpoint
}

type clientInstruments struct {
	tracer   trace.Tracer
	requests metric.Int64Counter
	retries  metric.Int64Counter
}

var (
	instOnce   sync.Once
	clientInst *clientInstruments
)

func instruments() *clientInstruments {
	instOnce.Do(func() {
		m := telemetry.Meter(scopeName)
		requests, _ := m.Int64Counter("jirasync.jira.requests",
			metric.WithDescription("Jira API requests, counted once per logical request"),
		)
		retries, _ := m.Int64Counter("jirasync.jira.retries",
			metric.WithDescription("Jira API retries after rate limiting or transient failures"),
		)
		clientInst = &clientInstruments{
			tracer:   telemetry.Tracer(scopeName),
			requests: requests,
			retries:  retries,
		}
	})
	return clientInst
}
