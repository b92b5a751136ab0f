// Package upstream implements the REST peers behind the client: an
// "/api"-prefixed backend and a root-prefixed one. Both are plain JSON over
// HTTP and are treated as independent peers; there is no failover between
// them.
//
// Every request carries Content-Type/Accept application/json, a User-Agent,
// an X-Request-ID and, when an Authorizer holds a credential, an
// "Authorization: Bearer <token>" header.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ugandavote/betclient/internal/circuitbreaker"
	"github.com/ugandavote/betclient/internal/logging"
	"github.com/ugandavote/betclient/internal/metrics"
	"github.com/ugandavote/betclient/internal/version"
)

// Upstream names used in logs, metrics and the journal.
const (
	NameAPI  = "api"
	NameRoot = "root"
)

// DefaultTimeout bounds a single upstream call.
const DefaultTimeout = 15 * time.Second

const maxResponseBytes = 10 << 20

// ErrResponseTooLarge is wrapped by the TransportError returned when a
// response body exceeds the read limit.
var ErrResponseTooLarge = errors.New("response too large")

// Authorizer attaches (or strips) credentials on an outbound request.
type Authorizer interface {
	SetAuthHeader(r *http.Request)
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Upstream   string
	Method     string
	Path       string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s %s: status %d", e.Upstream, e.Method, e.Path, e.StatusCode)
}

// TransportError is returned when no HTTP response was obtained: dial
// failures, timeouts, an open circuit, unreadable bodies.
type TransportError struct {
	Upstream string
	Method   string
	Path     string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s %s: %v", e.Upstream, e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Client is one upstream peer.
type Client struct {
	name           string
	baseURL        string
	timeout        time.Duration
	httpClient     *http.Client
	auth           Authorizer
	breaker        *circuitbreaker.Breaker
	onUnauthorized func(ctx context.Context, err *StatusError)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client. Its Transport is
// wrapped so the standard headers are still attached.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-call timeout. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithAuthorizer sets the credential source for the Authorization header.
func WithAuthorizer(a Authorizer) Option {
	return func(c *Client) { c.auth = a }
}

// WithCircuitBreaker enables a breaker that opens after repeated transport
// or 5xx failures.
func WithCircuitBreaker(cfg circuitbreaker.Config) Option {
	return func(c *Client) {
		name := c.name
		c.breaker = circuitbreaker.New(cfg, func(s circuitbreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(s))
		})
	}
}

// WithUnauthorizedHandler registers fn to run on every 401 response, before
// the error is returned to the caller.
func WithUnauthorizedHandler(fn func(ctx context.Context, err *StatusError)) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// New creates a Client for baseURL. name identifies it in logs and metrics.
func New(name, baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse %s base url: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%s base url %q: scheme must be http or https", name, baseURL)
	}

	c := &Client{
		name:    name,
		baseURL: baseURL,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	hc := &http.Client{}
	if c.httpClient != nil {
		cp := *c.httpClient
		hc = &cp
	}
	hc.Transport = &headerTransport{base: hc.Transport, auth: c.auth}
	c.httpClient = hc
	return c, nil
}

// Name returns the upstream name.
func (c *Client) Name() string { return c.name }

// BaseURL returns the upstream base URL (no trailing slash).
func (c *Client) BaseURL() string { return c.baseURL }

// Do sends method path with body encoded as JSON (nil sends no body) and
// returns the raw 2xx response body. An empty 2xx body is returned as JSON
// null.
func (c *Client) Do(ctx context.Context, method, path string, body interface{}) (json.RawMessage, error) {
	ctx, _ = logging.EnsureRequestID(ctx)
	log := logging.FromContext(ctx).With("upstream", c.name, "method", method, "path", path)

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s request body: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", path, err)
	}

	if c.breaker != nil && !c.breaker.Allow() {
		metrics.UpstreamRequests.WithLabelValues(c.name, method, "circuit_open").Inc()
		return nil, &TransportError{Upstream: c.name, Method: method, Path: path, Err: circuitbreaker.ErrCircuitOpen}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.UpstreamDuration.WithLabelValues(c.name, method).Observe(time.Since(start).Seconds())
	if err != nil {
		c.recordFailure()
		metrics.UpstreamRequests.WithLabelValues(c.name, method, "transport").Inc()
		log.Warn("upstream request failed", "error", err.Error())
		return nil, &TransportError{Upstream: c.name, Method: method, Path: path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err == nil && len(respBody) > maxResponseBytes {
		err = fmt.Errorf("%w: more than %d bytes", ErrResponseTooLarge, maxResponseBytes)
	}
	if err != nil {
		c.recordFailure()
		metrics.UpstreamRequests.WithLabelValues(c.name, method, "transport").Inc()
		return nil, &TransportError{Upstream: c.name, Method: method, Path: path, Err: fmt.Errorf("read response: %w", err)}
	}

	metrics.UpstreamRequests.WithLabelValues(c.name, method, strconv.Itoa(resp.StatusCode)).Inc()
	log.Debug("upstream request completed", "status", resp.StatusCode, "latency_ms", time.Since(start).Milliseconds())

	if resp.StatusCode >= 500 {
		c.recordFailure()
	} else {
		c.recordSuccess()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{
			Upstream:   c.name,
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       respBody,
		}
		if resp.StatusCode == http.StatusUnauthorized && c.onUnauthorized != nil {
			c.onUnauthorized(ctx, statusErr)
		}
		return nil, statusErr
	}

	if len(bytes.TrimSpace(respBody)) == 0 {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(respBody), nil
}

func (c *Client) recordFailure() {
	if c.breaker != nil {
		c.breaker.Failure()
	}
}

func (c *Client) recordSuccess() {
	if c.breaker != nil {
		c.breaker.Success()
	}
}

// IsStatus reports whether err is a *StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// headerTransport sets the headers every upstream call must carry.
type headerTransport struct {
	base http.RoundTripper
	auth Authorizer
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("Accept", "application/json")
	r.Header.Set("User-Agent", version.UserAgent())
	if id := logging.RequestIDFromContext(r.Context()); id != "" {
		r.Header.Set(logging.HeaderRequestID, id)
	}
	if t.auth != nil {
		t.auth.SetAuthHeader(r)
	} else {
		r.Header.Del("Authorization")
	}

	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(r)
}
