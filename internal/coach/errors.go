package coach

import "errors"

// RateLimitError reports a call denied by the session limiter. Recoverable
// by waiting; the gateway never retries on the caller's behalf.
type RateLimitError struct {
	Reason string
}

func (e *RateLimitError) Error() string {
	return "rate limit exceeded: " + e.Reason
}

// ErrUnavailable is returned for transport-level and other unexpected
// failures. The underlying cause is logged, not surfaced.
var ErrUnavailable = errors.New("the coaching service is temporarily unavailable")
