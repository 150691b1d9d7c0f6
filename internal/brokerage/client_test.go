package brokerage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/clubvest/brokersync/internal/auth"
	"github.com/clubvest/brokersync/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTokens hands out a fixed credential and counts refreshes
type fakeTokens struct {
	mu         sync.Mutex
	cred       auth.Credential
	refreshes  int
	refreshErr error
}

func (f *fakeTokens) GetValidCredential(ctx context.Context) (*auth.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.cred
	return &c, nil
}

func (f *fakeTokens) Refresh(ctx context.Context) (*auth.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	f.cred.AccessToken = "at-refreshed"
	c := f.cred
	return &c, nil
}

func newTestClient(t *testing.T, baseURL, fallbackHost string, minInterval time.Duration) (*Client, *fakeTokens) {
	tokens := &fakeTokens{cred: auth.Credential{
		AccessToken: "at-1",
		TokenType:   "Bearer",
		ExpiresAt:   time.Now().Add(time.Hour),
	}}

	c := NewClient(config.BrokerageConfig{
		APIBaseURL:   baseURL,
		FallbackHost: fallbackHost,
		MinInterval:  minInterval,
		Timeout:      5 * time.Second,
	}, tokens, zerolog.New(nil).Level(zerolog.Disabled))
	t.Cleanup(c.Close)

	return c, tokens
}

func TestRequestsCarryBearerCredential(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, "", 0)
	_, err := c.get(context.Background(), "/accounts", nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer at-1", gotAuth)
}

func TestGlobalSpacingBetweenRequests(t *testing.T) {
	var timestamps []time.Time
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		timestamps = append(timestamps, time.Now())
		mu.Unlock()
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	const spacing = 50 * time.Millisecond
	c, _ := newTestClient(t, srv.URL, "", spacing)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.get(context.Background(), "/accounts", nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, timestamps, 3)
	for i := 1; i < len(timestamps); i++ {
		gap := timestamps[i].Sub(timestamps[i-1])
		assert.GreaterOrEqual(t, gap, spacing-5*time.Millisecond,
			"request %d arrived only %v after the previous one", i, gap)
	}
}

func TestUnauthorizedTriggersSingleRefreshRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "Bearer at-refreshed", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c, tokens := newTestClient(t, srv.URL, "", 0)
	_, err := c.get(context.Background(), "/accounts", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, tokens.refreshes)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestUnauthorizedAfterRefreshIsTerminal(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, tokens := newTestClient(t, srv.URL, "", 0)
	_, err := c.get(context.Background(), "/accounts", nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 1, tokens.refreshes)
	// Exactly two attempts: original plus one post-refresh retry
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRefreshFailurePropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, tokens := newTestClient(t, srv.URL, "", 0)
	tokens.refreshErr = auth.ErrRefreshFailed

	_, err := c.get(context.Background(), "/accounts", nil)
	assert.ErrorIs(t, err, auth.ErrRefreshFailed)
}

func TestTransportFailureFallsBackOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	// Primary host refuses connections; the fallback serves the request
	c, _ := newTestClient(t, "http://127.0.0.1:1", srv.URL, 0)
	data, err := c.get(context.Background(), "/accounts", nil)
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(data))
}

func TestTransportFailureWithoutFallbackIsNetworkError(t *testing.T) {
	c, _ := newTestClient(t, "http://127.0.0.1:1", "", 0)
	_, err := c.get(context.Background(), "/accounts", nil)
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestNon2xxBecomesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad symbol"}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, "", 0)
	_, err := c.get(context.Background(), "/accounts", nil)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "bad symbol")
}

func TestCloseRejectsNewRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, "", 0)
	c.Close()

	_, err := c.get(context.Background(), "/accounts", nil)
	assert.ErrorIs(t, err, ErrClientClosed)
}
