package session

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

// retryableStatuses mirrors the transient set the upstream is known to emit
// under load. Both GET and POST are retried.
var retryableStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// retryTransport retries transient failures with exponential backoff. The
// final attempt's response is returned untouched so callers can inspect the
// status.
type retryTransport struct {
	base        http.RoundTripper
	maxAttempts int
	backoffBase time.Duration
	backoffMax  time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt < t.maxAttempts; attempt++ {
		attemptReq, err := t.requestForAttempt(req, attempt)
		if err != nil {
			return nil, err
		}
		if attemptReq == nil {
			break // non-replayable body, give up on retrying
		}

		resp, err := t.base.RoundTrip(attemptReq)
		if err != nil {
			lastErr = err
			if req.Context().Err() != nil {
				return nil, err
			}
		} else {
			if !retryableStatuses[resp.StatusCode] || attempt == t.maxAttempts-1 {
				return resp, nil
			}
			lastErr = fmt.Errorf("http %d from %s", resp.StatusCode, req.URL)
			drainAndClose(resp)
		}

		if attempt == t.maxAttempts-1 {
			break
		}
		if !t.wait(req, attempt) {
			return nil, req.Context().Err()
		}
	}
	return nil, lastErr
}

// requestForAttempt returns the request to send. Retries need a fresh body;
// requests without GetBody cannot be replayed and stop the loop.
func (t *retryTransport) requestForAttempt(req *http.Request, attempt int) (*http.Request, error) {
	if attempt == 0 {
		return req, nil
	}
	if req.Body == nil || req.Body == http.NoBody {
		return req.Clone(req.Context()), nil
	}
	if req.GetBody == nil {
		return nil, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("rewind request body: %w", err)
	}
	clone := req.Clone(req.Context())
	clone.Body = body
	return clone, nil
}

// wait sleeps the exponential backoff for attempt, honoring cancellation.
// Delays run 1s, 2s, 4s, ... capped at backoffMax.
func (t *retryTransport) wait(req *http.Request, attempt int) bool {
	delay := t.backoffBase << uint(attempt)
	if delay > t.backoffMax {
		delay = t.backoffMax
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-req.Context().Done():
		return false
	case <-timer.C:
		return true
	}
}

// headerTransport stamps the fixed header set required for the upstream to
// accept the request as originating from its own web page.
type headerTransport struct {
	base      http.RoundTripper
	userAgent string
	origin    string
	referer   string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("Accept", "*/*")
	if t.userAgent != "" {
		clone.Header.Set("User-Agent", t.userAgent)
	}
	if t.origin != "" {
		clone.Header.Set("Origin", t.origin)
	}
	if t.referer != "" {
		clone.Header.Set("Referer", t.referer)
	}
	resp, err := t.base.RoundTrip(clone)
	if err != nil {
		return nil, fmt.Errorf("round trip %s: %w", req.URL, err)
	}
	return resp, nil
}

func drainAndClose(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
