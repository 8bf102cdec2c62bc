package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithBaseDelay(time.Millisecond)}, opts...)
	return NewClient(5*time.Second, nil, zap.NewNop(), opts...)
}

func TestFetchHTMLRetriesTransientFailures(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	c := newTestClient(t)
	body, err := c.FetchHTML(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", body)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestFetchHTMLDoesNotRetryPermanentFailures(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t)
	_, err := c.FetchHTML(context.Background(), srv.URL)
	require.Error(t, err)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.Status)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestFetchHTMLGivesUpAfterMaxRetries(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t)
	_, err := c.FetchHTML(context.Background(), srv.URL)
	require.Error(t, err)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.Status)
	// initial attempt plus three retries
	assert.Equal(t, int32(4), attempts.Load())
}

func TestCircuitBreakerFailsFastAndRecovers(t *testing.T) {
	var attempts atomic.Int32
	var healthy atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		if healthy.Load() {
			w.Write([]byte("recovered"))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(t, WithBreakerWindow(200*time.Millisecond))

	// five consecutive failed executions trip the breaker
	for i := 0; i < 5; i++ {
		_, err := c.FetchHTML(context.Background(), srv.URL)
		require.Error(t, err)
	}

	before := attempts.Load()
	_, err := c.FetchHTML(context.Background(), srv.URL)
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, before, attempts.Load(), "open circuit must not hit the network")

	// after the window the breaker lets a call through again
	healthy.Store(true)
	time.Sleep(250 * time.Millisecond)

	body, err := c.FetchHTML(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "recovered", body)
	assert.Greater(t, attempts.Load(), before)
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"server error", &HTTPError{Status: 500}, true},
		{"bad gateway", &HTTPError{Status: 502}, true},
		{"request timeout", &HTTPError{Status: 408}, true},
		{"too many requests", &HTTPError{Status: 429}, true},
		{"not found", &HTTPError{Status: 404}, false},
		{"forbidden", &HTTPError{Status: 403}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"plain error", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsTransient(tc.err))
		})
	}
}
