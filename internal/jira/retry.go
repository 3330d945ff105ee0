package jira

import (
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retry policy defaults.
const (
	// DefaultMaxAttempts is the total number of attempts (first try included)
	// for a single request.
	DefaultMaxAttempts = 3

	// DefaultRetryBaseDelay is the first exponential backoff delay; each
	// subsequent retry doubles it.
	DefaultRetryBaseDelay = time.Second

	retryMultiplier = 2
)

// retryAfterBackOff is an exponential policy that lets the server override
// the next delay. After a 429 the operation records the Retry-After value in
// next, and NextBackOff returns it instead of the exponential interval. The
// attempt cap still comes from the wrapped policy.
type retryAfterBackOff struct {
	backoff.BackOff
	next time.Duration
}

func newRetryPolicy(maxAttempts int, base time.Duration) *retryAfterBackOff {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = base
	exp.Multiplier = retryMultiplier
	exp.RandomizationFactor = 0
	exp.MaxInterval = base << 10
	exp.MaxElapsedTime = 0
	exp.Reset()

	return &retryAfterBackOff{
		BackOff: backoff.WithMaxRetries(exp, uint64(maxAttempts-1)),
	}
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	d := b.BackOff.NextBackOff()
	if d == backoff.Stop {
		return backoff.Stop
	}
	if b.next > 0 {
		d = b.next
		b.next = 0
	}
	return d
}

func (b *retryAfterBackOff) Reset() {
	b.next = 0
	b.BackOff.Reset()
}

// retryAfter reads the Retry-After header in seconds. Zero means the header
// was missing or unparseable and the exponential delay applies.
func retryAfter(header http.Header) time.Duration {
	v := header.Get("Retry-After")
	if v == "" {
		return 0
	}
	seconds, err := strconv.Atoi(v)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// isRetryableStatus reports whether a response status is transient:
// rate limiting or a server-side failure. Every other non-2xx status is a
// caller error and fails immediately.
func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}
