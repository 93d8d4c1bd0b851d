// Package maxhelper is the HTTP client for the MaxHelper messaging
// platform API. Every outbound call pays one token to the shared bucket;
// rate-limited and server-error responses get exactly one retry after a
// fixed delay before the error surfaces to the caller.
package maxhelper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/funnel-cli/internal/ratelimit"
	"github.com/sells-group/funnel-cli/internal/resilience"
)

// Client defines the MaxHelper operations the worker uses.
type Client interface {
	// ContactByNumber resolves a normalized phone number to the platform's
	// contact id. An unknown number is not an error: it returns "".
	ContactByNumber(ctx context.Context, digits string) (string, error)
	// Messages fetches the raw conversation payload for a contact id. The
	// payload shape is not contractually fixed and is returned verbatim.
	Messages(ctx context.Context, contactID string) (json.RawMessage, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRetryDelay overrides the fixed pause before the single retry.
func WithRetryDelay(d time.Duration) Option {
	return func(c *httpClient) {
		c.retryDelay = d
	}
}

// WithCircuitBreaker guards all calls with the given breaker.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *httpClient) {
		c.breaker = cb
	}
}

type httpClient struct {
	baseURL    string
	apiKey     string
	bucket     *ratelimit.Bucket
	http       *http.Client
	retryDelay time.Duration
	breaker    *resilience.CircuitBreaker
}

// NewClient creates a MaxHelper API client.
func NewClient(baseURL, apiKey string, bucket *ratelimit.Bucket, opts ...Option) Client {
	c := &httpClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		bucket:  bucket,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		retryDelay: 1500 * time.Millisecond,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// jsonID tolerates the id arriving as either a JSON string or number.
type jsonID string

func (id *jsonID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = jsonID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = jsonID(n.String())
	return nil
}

type contactResponse struct {
	ID      jsonID `json:"id"`
	Contact struct {
		ID jsonID `json:"id"`
	} `json:"contact"`
}

func (c *httpClient) ContactByNumber(ctx context.Context, digits string) (string, error) {
	body, status, err := c.get(ctx, "/contacts/by-number/"+digits)
	if err != nil {
		return "", err
	}
	if status == http.StatusNotFound {
		return "", nil
	}
	if status != http.StatusOK {
		return "", eris.Errorf("maxhelper: lookup %s: status %d", digits, status)
	}

	var resp contactResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", eris.Wrapf(err, "maxhelper: decode lookup %s", digits)
	}
	if resp.ID != "" {
		return string(resp.ID), nil
	}
	return string(resp.Contact.ID), nil
}

func (c *httpClient) Messages(ctx context.Context, contactID string) (json.RawMessage, error) {
	body, status, err := c.get(ctx, "/messages/"+contactID)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, eris.Errorf("maxhelper: messages %s: status %d", contactID, status)
	}
	return json.RawMessage(body), nil
}

// get performs one rate-limited GET. On a transient response class it waits
// retryDelay, pays another token and retries exactly once; the second
// response is returned as-is.
func (c *httpClient) get(ctx context.Context, path string) ([]byte, int, error) {
	call := func(ctx context.Context) ([]byte, int, error) {
		body, status, err := c.doOnce(ctx, path)
		if err != nil {
			return nil, 0, err
		}
		if !resilience.IsTransientHTTPStatus(status) {
			return body, status, nil
		}

		timer := time.NewTimer(c.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, 0, eris.Wrapf(ctx.Err(), "maxhelper: GET %s", path)
		case <-timer.C:
		}
		return c.doOnce(ctx, path)
	}

	if c.breaker == nil {
		return call(ctx)
	}

	var body []byte
	var status int
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		body, status, err = call(ctx)
		if err != nil {
			return err
		}
		if resilience.IsTransientHTTPStatus(status) {
			return resilience.NewTransientError(
				fmt.Errorf("maxhelper: GET %s: status %d", path, status), status)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return body, status, nil
}

func (c *httpClient) doOnce(ctx context.Context, path string) ([]byte, int, error) {
	if err := c.bucket.Consume(ctx, 1); err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "maxhelper: create request %s", path)
	}
	req.Header.Set("max-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "maxhelper: GET %s", path)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "maxhelper: read response %s", path)
	}
	return body, resp.StatusCode, nil
}
