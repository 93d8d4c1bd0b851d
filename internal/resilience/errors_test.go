package resilience

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutErr struct{ timeout bool }

func (e *timeoutErr) Error() string   { return "dial tcp: operation timed out" }
func (e *timeoutErr) Timeout() bool   { return e.timeout }
func (e *timeoutErr) Temporary() bool { return e.timeout }

func TestIsTransient_TaggedError(t *testing.T) {
	err := NewTransientError(eris.New("server overloaded"), 503)
	assert.True(t, IsTransient(err))
	assert.Equal(t, "server overloaded", err.Error())
}

func TestIsTransient_TaggedErrorSurvivesWrapping(t *testing.T) {
	inner := NewTransientError(eris.New("rate limited"), 429)
	wrapped := eris.Wrap(inner, "fetch messages")
	assert.True(t, IsTransient(wrapped))
}

func TestIsTransient_NetworkTimeout(t *testing.T) {
	assert.True(t, IsTransient(&timeoutErr{timeout: true}))
	assert.False(t, IsTransient(&timeoutErr{timeout: false}),
		"a non-timeout net.Error alone is not transient")
}

func TestIsTransient_TransportText(t *testing.T) {
	assert.True(t, IsTransient(eris.New("read tcp 10.0.0.1:443: connection reset by peer")))
	assert.True(t, IsTransient(eris.New("dial tcp: lookup api.example: no such host")))
	assert.False(t, IsTransient(eris.New("invalid contact payload")))
}

func TestIsTransient_NilError(t *testing.T) {
	assert.False(t, IsTransient(nil))
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, status := range []int{408, 429, 500, 502, 503, 504, 529} {
		assert.True(t, IsTransientHTTPStatus(status), "status %d", status)
	}
	for _, status := range []int{200, 201, 301, 400, 401, 403, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(status), "status %d", status)
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := eris.New("boom")
	te := NewTransientError(inner, 500)
	require.ErrorIs(t, te, inner)
	assert.Equal(t, 500, te.StatusCode)
}
