// Package brokerage implements the rate-limited, bearer-authenticated
// client for the brokerage data API.
package brokerage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/clubvest/brokersync/internal/auth"
	"github.com/clubvest/brokersync/internal/config"
	"github.com/rs/zerolog"
)

const requestQueueSize = 100

// TokenSource supplies and refreshes the credential attached to each call.
type TokenSource interface {
	GetValidCredential(ctx context.Context) (*auth.Credential, error)
	Refresh(ctx context.Context) (*auth.Credential, error)
}

// requestJob is a queued API call awaiting its rate-limit slot
type requestJob struct {
	ctx      context.Context
	path     string
	query    url.Values
	resultCh chan requestResult
}

type requestResult struct {
	data []byte
	err  error
}

// Client calls the brokerage API through a single sequential worker that
// enforces a global minimum spacing between outbound requests. The
// brokerage caps the integration at ~120 calls/minute, so the default
// spacing is 500ms regardless of which endpoint or caller is involved.
type Client struct {
	baseURL      string
	fallbackHost string
	minInterval  time.Duration
	httpClient   *http.Client
	tokens       TokenSource
	requestQueue chan requestJob
	stopChan     chan struct{}
	workerDone   chan struct{}
	once         sync.Once
	log          zerolog.Logger
}

// NewClient creates a new brokerage client and starts its worker
func NewClient(cfg config.BrokerageConfig, tokens TokenSource, log zerolog.Logger) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(cfg.APIBaseURL, "/"),
		fallbackHost: strings.TrimRight(cfg.FallbackHost, "/"),
		minInterval:  cfg.MinInterval,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		tokens:       tokens,
		requestQueue: make(chan requestJob, requestQueueSize),
		stopChan:     make(chan struct{}),
		workerDone:   make(chan struct{}),
		log:          log.With().Str("client", "brokerage").Logger(),
	}

	go c.worker()

	return c
}

// get queues a GET request and waits for its result
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	resultCh := make(chan requestResult, 1)

	job := requestJob{
		ctx:      ctx,
		path:     path,
		query:    query,
		resultCh: resultCh,
	}

	// The queue channel is closed on shutdown; never send after that
	select {
	case <-c.stopChan:
		return nil, ErrClientClosed
	default:
	}

	select {
	case c.requestQueue <- job:
	case <-c.stopChan:
		return nil, ErrClientClosed
	default:
		return nil, fmt.Errorf("request queue is full")
	}

	result := <-resultCh
	return result.data, result.err
}

// worker processes requests sequentially with the global spacing applied
// between consecutive calls
func (c *Client) worker() {
	defer close(c.workerDone)

	var lastRequestTime time.Time
	firstRequest := true

	processJob := func(job requestJob) {
		if !firstRequest {
			elapsed := time.Since(lastRequestTime)
			if elapsed < c.minInterval {
				time.Sleep(c.minInterval - elapsed)
			}
		}
		firstRequest = false

		var result requestResult
		result.data, result.err = c.doRequest(job.ctx, job.path, job.query)

		lastRequestTime = time.Now()
		job.resultCh <- result
	}

	for {
		select {
		case <-c.stopChan:
			// Drain remaining jobs before exiting
			for {
				select {
				case job, ok := <-c.requestQueue:
					if !ok {
						return
					}
					processJob(job)
				default:
					return
				}
			}
		case job, ok := <-c.requestQueue:
			if !ok {
				return
			}
			processJob(job)
		}
	}
}

// Close gracefully shuts down the worker
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.stopChan)
		close(c.requestQueue)
		<-c.workerDone
	})
}

// doRequest runs the bounded retry state machine for one call:
// attempt 0 -> on 401 -> refresh -> attempt 1 -> on 401 -> fail, and one
// fallback-host retry on transport failure. Both retries happen at most
// once, so the machine always terminates.
func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	cred, err := c.tokens.GetValidCredential(ctx)
	if err != nil {
		return nil, err
	}

	host := c.baseURL
	refreshed := false
	usedFallback := false

	for {
		data, status, err := c.send(ctx, host, path, query, cred)
		if err != nil {
			if !usedFallback && c.fallbackHost != "" {
				usedFallback = true
				host = c.fallbackHost
				c.log.Warn().Err(err).Str("fallback", c.fallbackHost).Msg("Transport failure, retrying against fallback host")
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
		}

		if status == http.StatusUnauthorized {
			if !refreshed {
				refreshed = true
				c.log.Info().Str("path", path).Msg("Unauthorized response, refreshing credential")
				cred, err = c.tokens.Refresh(ctx)
				if err != nil {
					return nil, err
				}
				continue
			}
			return nil, ErrUnauthorized
		}

		if status < 200 || status >= 300 {
			body := string(data)
			if len(body) > 500 {
				body = body[:500] + "..."
			}
			c.log.Error().Int("status_code", status).Str("path", path).Str("response_body", body).Msg("API returned non-2xx status")
			return nil, &APIError{StatusCode: status, Body: body}
		}

		return data, nil
	}
}

// send performs one HTTP round trip with the bearer credential attached
func (c *Client) send(ctx context.Context, host, path string, query url.Values, cred *auth.Credential) ([]byte, int, error) {
	requestURL := host + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", cred.TokenType+" "+cred.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response: %w", err)
	}

	return body, resp.StatusCode, nil
}
