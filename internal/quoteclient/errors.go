package quoteclient

import "fmt"

// Kind classifies a quote-client failure into the engine's error taxonomy.
type Kind string

const (
	KindTransient       Kind = "transient"
	KindRateLimited     Kind = "rate_limited"
	KindServerError     Kind = "server_error"
	KindCircuitOpen     Kind = "circuit_open"
	KindQuoteInvalid    Kind = "quote_invalid"
	KindClientError     Kind = "client_error"
	KindExecutionFailed Kind = "execution_failed"
	KindFatal           Kind = "fatal"
)

// Error wraps an underlying cause with its classified Kind and, for HTTP
// failures, the status code that produced it.
type Error struct {
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsRetryable reports whether the classified error kind is one the retry
// ladder should act on at all (client errors, circuit-open and fatal errors
// are never retried by the quote client itself).
func (e *Error) IsRetryable() bool {
	switch e.Kind {
	case KindTransient, KindRateLimited, KindServerError:
		return true
	default:
		return false
	}
}

// classifyHTTPStatus maps a response status code to a Kind, following the
// quote API's documented status codes: 200 success, 429 rate-limited, 4xx
// client error, 5xx server error (its own retry policy, distinct from a
// transient network failure).
func classifyHTTPStatus(status int) Kind {
	switch {
	case status == 429:
		return KindRateLimited
	case status >= 500:
		return KindServerError
	case status >= 400:
		return KindClientError
	default:
		return ""
	}
}
