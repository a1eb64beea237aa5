package harvest

import "fmt"

// BootstrapError reports that the anonymous cookie bootstrap could not
// complete. The session is still usable, just degraded; callers should log
// a warning and continue.
type BootstrapError struct {
	Err error
}

func (e *BootstrapError) Error() string {
	return fmt.Sprintf("cookie bootstrap failed: %v", e.Err)
}

func (e *BootstrapError) Unwrap() error { return e.Err }

// HTTPError reports a page fetch that returned a non-retryable status or
// exhausted its retries. The harvester treats it as fatal for the current
// run and returns the partial table gathered so far.
type HTTPError struct {
	StatusCode int
	URL        string
	Err        error
}

func (e *HTTPError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("search request failed: http %d from %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("search request failed: %v", e.Err)
}

func (e *HTTPError) Unwrap() error { return e.Err }

// MalformedResponseError reports a response body that is not valid JSON or
// lacks the expected results key. Treated identically to HTTPError by the
// harvest loop.
type MalformedResponseError struct {
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed search response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }
