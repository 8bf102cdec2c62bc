package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"pricewatch/internal/monitoring"
)

const (
	maxRetries       = 3
	breakerThreshold = 5

	defaultUserAgent = "PriceWatch/1.0 (Price Comparison Bot)"
)

// ErrCircuitOpen is returned when the breaker for a host is open and the
// request was not attempted.
var ErrCircuitOpen = errors.New("circuit open")

// HTTPError is a non-2xx response.
type HTTPError struct {
	Status int
	URL    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http status %d for %s", e.Status, e.URL)
}

// IsTransient reports whether err is worth retrying: network-level failures,
// timeouts, 5xx, 408 and 429. Any other 4xx is permanent.
func IsTransient(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status >= 500 ||
			httpErr.Status == http.StatusRequestTimeout ||
			httpErr.Status == http.StatusTooManyRequests
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF)
}

// Client wraps outbound HTTP calls with retry-with-backoff and a per-host
// circuit breaker.
type Client struct {
	httpClient    *http.Client
	userAgent     string
	baseDelay     time.Duration
	breakerWindow time.Duration
	metrics       *monitoring.Metrics
	logger        *zap.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

type Option func(*Client)

// WithBaseDelay overrides the first retry delay. Subsequent delays double.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) { c.baseDelay = d }
}

// WithBreakerWindow overrides how long an open circuit rejects calls.
func WithBreakerWindow(d time.Duration) Option {
	return func(c *Client) { c.breakerWindow = d }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

func NewClient(timeout time.Duration, m *monitoring.Metrics, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient:    &http.Client{Timeout: timeout},
		userAgent:     defaultUserAgent,
		baseDelay:     2 * time.Second,
		breakerWindow: time.Minute,
		metrics:       m,
		logger:        logger,
		breakers:      make(map[string]*gobreaker.CircuitBreaker),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchHTML GETs rawURL and returns the response body. Transient failures are
// retried with exponential backoff; repeated failures open the host's circuit
// so later calls fail fast without a network attempt.
func (c *Client) FetchHTML(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	body, err := c.breaker(u.Host).Execute(func() (interface{}, error) {
		return c.fetchWithRetry(ctx, rawURL)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%w: %s", ErrCircuitOpen, u.Host)
		}
		return "", err
	}
	return body.(string), nil
}

// Probe is a lightweight reachability check: one GET, no retry, no breaker.
func (c *Client) Probe(ctx context.Context, rawURL string) bool {
	body, err := c.get(ctx, rawURL)
	return err == nil && body != ""
}

func (c *Client) breaker(host string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	if br, ok := c.breakers[host]; ok {
		return br
	}
	br := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    host,
		Timeout: c.breakerWindow,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit state change",
				zap.String("host", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			c.metrics.IncBreaker(name, to.String())
		},
	})
	c.breakers[host] = br
	return br
}

func (c *Client) fetchWithRetry(ctx context.Context, rawURL string) (string, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.baseDelay
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = 10 * time.Minute
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, maxRetries), ctx)

	var body string
	attempt := 0
	operation := func() error {
		html, err := c.get(ctx, rawURL)
		if err != nil {
			if !IsTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		body = html
		return nil
	}
	notify := func(err error, wait time.Duration) {
		attempt++
		c.metrics.IncFetchRetry()
		c.logger.Warn("retrying fetch",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	}
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return "", err
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return "", &HTTPError{Status: resp.StatusCode, URL: rawURL}
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
