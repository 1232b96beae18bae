package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"declutter/internal/services"
)

const (
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 2 * time.Second
	defaultRetryMaxDelay  = 30 * time.Second
)

// retryPolicy is exponential backoff with a cap. A Retry-After header from
// the service replaces the computed delay, still subject to the cap.
type retryPolicy struct {
	attempts int
	base     time.Duration
	max      time.Duration
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{attempts: defaultRetryAttempts, base: defaultRetryBaseDelay, max: defaultRetryMaxDelay}
}

func (p retryPolicy) maxAttempts() int {
	return max(p.attempts, 1)
}

func (p retryPolicy) limit() time.Duration {
	if p.max > 0 {
		return p.max
	}
	return defaultRetryMaxDelay
}

// backoff returns the wait after the given failed attempt: base, 2·base,
// 4·base and so on, never above the cap.
func (p retryPolicy) backoff(attempt int) time.Duration {
	if p.base <= 0 {
		return 0
	}
	limit := p.limit()
	delay := p.base
	for i := 1; i < attempt && delay < limit; i++ {
		delay *= 2
	}
	return min(delay, limit)
}

// delayFor reports whether err is worth another attempt and how long to
// wait first.
func (p retryPolicy) delayFor(err error, attempt int) (time.Duration, bool) {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		if !retryableStatus(statusErr.StatusCode) {
			return 0, false
		}
		if statusErr.RetryAfter > 0 {
			return min(statusErr.RetryAfter, p.limit()), true
		}
		return p.backoff(attempt), true
	}
	var empty *emptyContentError
	var malformed *malformedPayloadError
	if errors.As(err, &empty) || errors.As(err, &malformed) || isTransportError(err) {
		return p.backoff(attempt), true
	}
	return 0, false
}

func retryableStatus(code int) bool {
	return code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests ||
		code >= http.StatusInternalServerError
}

// isTransportError matches connection failures and client timeouts, but not
// cancellation of the caller's context.
func isTransportError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// classifyFailure tags the final error. Caller cancellation passes through,
// rejected requests (4xx other than 408 and 429) are external tool failures
// and everything else is transient.
func classifyFailure(ctx context.Context, op string, tried int, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err == nil {
		err = errors.New("unknown failure")
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) && !retryableStatus(statusErr.StatusCode) {
		return services.Wrap(services.ErrExternalTool, "llm", op,
			fmt.Sprintf("service rejected request (http %d)", statusErr.StatusCode), err)
	}
	return services.Wrap(services.ErrTransient, "llm", op,
		fmt.Sprintf("failed after %d %s", tried, attemptNoun(tried)), err)
}

func attemptNoun(n int) string {
	if n == 1 {
		return "attempt"
	}
	return "attempts"
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second, seconds >= 0
	}
	when, err := http.ParseTime(value)
	if err != nil {
		return 0, false
	}
	if delay := time.Until(when); delay > 0 {
		return delay, true
	}
	return 0, false
}

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("llm request: http %d: %s", e.StatusCode, summarizePayloadSnippet(e.Body))
}

type emptyContentError struct {
	Op           string
	FinishReason string
	Refusal      string
	Snippet      string
}

func (e *emptyContentError) Error() string {
	return fmt.Sprintf("%s: empty content (finish_reason=%q, refusal=%q, response_snippet=%s)",
		e.Op, e.FinishReason, e.Refusal, e.Snippet)
}

// malformedPayloadError marks content that arrived but could not be decoded
// into the expected JSON shape.
type malformedPayloadError struct {
	Op  string
	Err error
}

func (e *malformedPayloadError) Error() string {
	return fmt.Sprintf("%s: malformed payload: %v", e.Op, e.Err)
}

func (e *malformedPayloadError) Unwrap() error {
	return e.Err
}
