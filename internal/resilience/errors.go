package resilience

import (
	"errors"
	"net"
	"net/http"
	"strings"
)

// TransientError tags an error as retryable. StatusCode carries the HTTP
// status that produced it, or zero when the failure happened below HTTP.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError marks err as retryable, recording the HTTP status when
// one is known.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// transientFragments match transport failures that surface only as text
// once an HTTP client has wrapped them. Checked after the typed checks.
var transientFragments = []string{
	"connection reset",
	"connection refused",
	"broken pipe",
	"no such host",
	"i/o timeout",
	"tls handshake timeout",
}

// IsTransient reports whether err is worth another attempt: a TransientError
// anywhere in the chain, a network timeout, or a transport failure the
// standard library only exposes as a string.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, f := range transientFragments {
		if strings.Contains(msg, f) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus reports whether status is one the server may stop
// returning on its own: a request timeout, throttling, or any 5xx.
func IsTransientHTTPStatus(status int) bool {
	return status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests ||
		status >= 500
}
