package maxhelper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/funnel-cli/internal/ratelimit"
	"github.com/sells-group/funnel-cli/internal/resilience"
)

func testBucket() *ratelimit.Bucket {
	return ratelimit.New(1000, 100)
}

func TestContactByNumber_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/contacts/by-number/5551234", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("max-api-key"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 42, "name": "Ana"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", testBucket())
	id, err := client.ContactByNumber(context.Background(), "5551234")

	require.NoError(t, err)
	assert.Equal(t, "42", id)
}

func TestContactByNumber_NestedID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"contact": {"id": "mh-9"}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", testBucket())
	id, err := client.ContactByNumber(context.Background(), "5551234")

	require.NoError(t, err)
	assert.Equal(t, "mh-9", id)
}

func TestContactByNumber_UnknownNumber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", testBucket())
	id, err := client.ContactByNumber(context.Background(), "0000000")

	require.NoError(t, err, "an unknown number is not an error")
	assert.Empty(t, id)
}

func TestGet_RetriesOnceOn429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"id": "mh-1"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", testBucket(), WithRetryDelay(5*time.Millisecond))
	id, err := client.ContactByNumber(context.Background(), "5551234")

	require.NoError(t, err)
	assert.Equal(t, "mh-1", id)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGet_SurfacesAfterSecondFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", testBucket(), WithRetryDelay(5*time.Millisecond))
	_, err := client.ContactByNumber(context.Background(), "5551234")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Equal(t, int32(2), calls.Load(), "exactly one retry, then surface")
}

func TestMessages_RawPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages/mh-1", r.URL.Path)
		_, _ = w.Write([]byte(`{"messages":[{"text":"hola"}]}`)) //nolint:errcheck
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", testBucket())
	raw, err := client.Messages(context.Background(), "mh-1")

	require.NoError(t, err)
	assert.JSONEq(t, `{"messages":[{"text":"hola"}]}`, string(raw))
}

func TestCircuitBreaker_OpensAfterRepeatedFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
	})
	client := NewClient(srv.URL, "test-key", testBucket(),
		WithRetryDelay(time.Millisecond),
		WithCircuitBreaker(cb),
	)

	ctx := context.Background()
	_, err := client.ContactByNumber(ctx, "111")
	require.Error(t, err)
	_, err = client.ContactByNumber(ctx, "222")
	require.Error(t, err)

	before := calls.Load()
	_, err = client.ContactByNumber(ctx, "333")
	require.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, before, calls.Load(), "open circuit must reject without calling out")
}

func TestGet_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(srv.URL, "test-key", testBucket())
	_, err := client.ContactByNumber(ctx, "5551234")
	assert.Error(t, err)
}
