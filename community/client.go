package community

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/jonboulle/clockwork"
	"github.com/keepselvesreal/xai-community-go/cache"
	"github.com/keepselvesreal/xai-community-go/internal/correlation"
	"github.com/keepselvesreal/xai-community-go/internal/metrics"
	"github.com/keepselvesreal/xai-community-go/internal/retry"
	"github.com/keepselvesreal/xai-community-go/internal/version"
	"github.com/keepselvesreal/xai-community-go/session"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds a single HTTP round trip.
	DefaultTimeout = 15 * time.Second
	// DefaultCacheTTL is how long GET responses are served from cache.
	DefaultCacheTTL = 30 * time.Second

	cacheSweepInterval = time.Minute
)

// defaultRetryPolicy governs transient-error retries on GET requests.
// Mutations are never retried automatically.
var defaultRetryPolicy = retry.Policy{
	MaxAttempts:      3,
	InitialBackoff:   500 * time.Millisecond,
	RateLimitBackoff: 5 * time.Second,
}

// TokenSource supplies the bearer token for authenticated requests and
// refreshes it when the server rejects one. session.Manager implements it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) error
}

// Client talks to the Xai-Community REST API. Create one with NewClient
// and use the resource services hanging off it.
type Client struct {
	baseURL string
	httpc   *http.Client
	tokens  TokenSource
	clock   clockwork.Clock
	policy  retry.Policy
	limiter *rate.Limiter

	cacheTTL  time.Duration
	respCache *cache.Cache[[]byte]
	stopSweep func()

	Auth          *AuthService
	Boards        *BoardsService
	Posts         *PostsService
	Comments      *CommentsService
	Reactions     *ReactionsService
	Services      *ServicesService
	Tips          *TipsService
	Users         *UsersService
	Notifications *NotificationsService
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. The circuit breaker is
// still installed around the given client's transport.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

// WithTokenSource wires the session manager (or any token source) into
// the client. Without one, only anonymous endpoints work.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithCacheTTL sets how long GET responses are cached. Zero or negative
// disables response caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.cacheTTL = ttl }
}

// WithRateLimit caps outgoing requests at rps per second. Zero or
// negative disables client-side rate limiting.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithRetryPolicy replaces the transient-retry policy for GET requests.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// WithClock injects the clock used for latency measurement, cache expiry,
// and retry backoff. Tests use clockwork.NewFakeClock.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base URL must be absolute, got %q", baseURL)
	}

	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		clock:    clockwork.NewRealClock(),
		policy:   defaultRetryPolicy,
		cacheTTL: DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpc == nil {
		c.httpc = &http.Client{Timeout: DefaultTimeout}
	}
	c.httpc.Transport = newBreakerTransport(c.httpc.Transport)

	if c.policy.Clock == nil {
		c.policy.Clock = c.clock
	}

	if c.cacheTTL > 0 {
		c.respCache = cache.New[[]byte](c.cacheTTL, c.clock)
		c.stopSweep = c.respCache.StartEvictionTimer(cacheSweepInterval)
	}

	c.Auth = &AuthService{c: c}
	c.Boards = &BoardsService{c: c}
	c.Posts = &PostsService{c: c}
	c.Comments = &CommentsService{c: c}
	c.Reactions = &ReactionsService{c: c}
	c.Services = &ServicesService{c: c}
	c.Tips = &TipsService{c: c}
	c.Users = &UsersService{c: c}
	c.Notifications = &NotificationsService{c: c}

	return c, nil
}

// SetTokenSource wires a token source in after construction. The session
// manager needs the client's Auth service to exist first, so the two are
// connected in this order: NewClient, session.NewManager(client.Auth, ...),
// client.SetTokenSource(manager). Must be called before the client is
// used concurrently.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.tokens = ts
}

// Close releases the client's background resources (the cache eviction
// goroutine). The client must not be used afterwards.
func (c *Client) Close() {
	if c.stopSweep != nil {
		c.stopSweep()
	}
}

// request describes one API call.
type request struct {
	resource string // metrics label, e.g. "posts"
	method   string
	path     string // starts with /
	query    url.Values
	body     any

	anonymous bool   // skip the token source entirely (login, refresh)
	bearer    string // explicit token overriding the token source (revoke)
}

// get fetches path as JSON into out, serving from the response cache when
// possible and retrying transient failures. GETs are idempotent, so the
// retry is safe.
func (c *Client) get(ctx context.Context, resource, path string, query url.Values, out any) error {
	key := cacheKey(path, query)

	if c.respCache != nil {
		if data, ok := c.respCache.Get(key); ok {
			metrics.ResponseCacheHits.Inc()
			if err := json.Unmarshal(data, out); err != nil {
				return fmt.Errorf("failed to decode cached response: %w", err)
			}
			return nil
		}
		metrics.ResponseCacheMisses.Inc()
	}

	policy := c.policy
	policy.OnRetry = func(attempt int, err error, backoff time.Duration) {
		metrics.APIRetriesTotal.WithLabelValues(resource).Inc()
		slog.WarnContext(ctx, "Retrying API request",
			"resource", resource,
			"path", path,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)
	}

	r := request{resource: resource, method: http.MethodGet, path: path, query: query}
	data, err := retry.Do(ctx, policy, classifyTransient, func() ([]byte, error) {
		return c.roundTrip(ctx, r)
	})
	if err != nil {
		return err
	}

	if c.respCache != nil {
		c.respCache.Set(key, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// do executes a single (non-cached, non-retried) API call, decoding the
// response into out when out is non-nil.
func (c *Client) do(ctx context.Context, r request, out any) error {
	data, err := c.roundTrip(ctx, r)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// roundTrip sends the request once, plus exactly one refresh-and-retry
// cycle when the server answers 401 and a token source is configured. A
// 401 on the retried request surfaces as-is.
func (c *Client) roundTrip(ctx context.Context, r request) ([]byte, error) {
	payload, err := marshalBody(r.body)
	if err != nil {
		return nil, err
	}

	data, err := c.send(ctx, r, payload)

	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Type == TypeUnauthorized &&
		!r.anonymous && r.bearer == "" && c.tokens != nil {
		slog.DebugContext(ctx, "Got 401, refreshing token and retrying once",
			"resource", r.resource,
			"path", r.path,
		)
		if refreshErr := c.tokens.Refresh(ctx); refreshErr != nil {
			apiErr.Cause = refreshErr
			return nil, apiErr
		}
		return c.send(ctx, r, payload)
	}

	return data, err
}

// send performs one HTTP exchange.
func (c *Client) send(ctx context.Context, r request, payload []byte) ([]byte, error) {
	requestID := correlation.NewID()
	ctx = correlation.WithID(ctx, requestID)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("X-Request-ID", requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if !r.anonymous {
		token := r.bearer
		if token == "" && c.tokens != nil {
			token, err = c.tokens.Token(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to get access token: %w", err)
			}
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := c.clock.Now()
	resp, err := c.httpc.Do(req)
	elapsed := c.clock.Since(start)
	metrics.APIRequestDuration.WithLabelValues(r.resource, r.method).Observe(elapsed.Seconds())

	if err != nil {
		metrics.APIRequestsTotal.WithLabelValues(r.resource, r.method, "error").Inc()
		if errors.Is(err, circuitbreaker.ErrOpen) {
			return nil, &Error{
				Type:      TypeUnavailable,
				Message:   "circuit breaker open",
				RequestID: requestID,
				Cause:     err,
			}
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.APIRequestsTotal.WithLabelValues(r.resource, r.method, "error").Inc()
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	metrics.APIRequestsTotal.WithLabelValues(r.resource, r.method, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		slog.DebugContext(ctx, "API request failed",
			"resource", r.resource,
			"method", r.method,
			"path", r.path,
			"status", resp.StatusCode,
		)
		return nil, errorFromResponse(resp.StatusCode, body, requestID)
	}

	return body, nil
}

// classifyTransient decides whether a failed GET is worth retrying.
func classifyTransient(err error) retry.Action {
	// A dead session never heals by retrying the same call.
	if errors.Is(err, session.ErrNotAuthenticated) || errors.Is(err, session.ErrSessionExpired) {
		return retry.Stop
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		switch apiErr.Type {
		case TypeRateLimited:
			return retry.After
		case TypeServer, TypeUnavailable:
			return retry.Retry
		default:
			return retry.Stop
		}
	}

	// No response at all: network-level failure, worth another try.
	return retry.Retry
}

func marshalBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	return payload, nil
}

func cacheKey(path string, query url.Values) string {
	if len(query) == 0 {
		return path
	}
	return path + "?" + query.Encode()
}

// invalidate drops cached responses after a mutation. Exact keys first,
// then whole prefixes (listings with any pagination).
func (c *Client) invalidate(keys []string, prefixes []string) {
	if c.respCache == nil {
		return
	}
	for _, k := range keys {
		c.respCache.Invalidate(k)
	}
	for _, p := range prefixes {
		c.respCache.InvalidatePrefix(p)
	}
}

// listQuery translates ListOptions into URL query parameters.
func listQuery(opts ListOptions) url.Values {
	q := url.Values{}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.Size > 0 {
		q.Set("size", strconv.Itoa(opts.Size))
	}
	if opts.Query != "" {
		q.Set("q", opts.Query)
	}
	return q
}
