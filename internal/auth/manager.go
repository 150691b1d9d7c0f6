// Package auth implements the OAuth credential lifecycle for the brokerage
// integration: authorization URL generation with single-use CSRF states,
// code exchange, and proactive refresh with coalescing.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/clubvest/brokersync/internal/config"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// CredentialStore is the persistence contract the manager requires.
// Defined here so tests can substitute doubles.
type CredentialStore interface {
	Get() (*Credential, error)
	Save(Credential) error
	Clear() error
}

// StateStore is the CSRF state persistence contract.
type StateStore interface {
	Create(redirectURI string, ttl time.Duration) (string, error)
	Consume(state string) (string, bool, error)
}

// Manager owns the credential state machine. All token endpoint calls go
// through the configured backend proxy; the client secret never leaves
// server-side configuration.
type Manager struct {
	tokens     CredentialStore
	states     StateStore
	cfg        config.OAuthConfig
	httpClient *http.Client
	flight     singleflight.Group
	log        zerolog.Logger
	now        func() time.Time
}

// NewManager creates a new token lifecycle manager
func NewManager(tokens CredentialStore, states StateStore, cfg config.OAuthConfig, log zerolog.Logger) *Manager {
	return &Manager{
		tokens:     tokens,
		states:     states,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log.With().Str("component", "auth").Logger(),
		now:        time.Now,
	}
}

// tokenResponse is the proxy's token payload for both exchange and refresh.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
}

// BeginAuthorization builds the brokerage authorization URL for the given
// caller context ("admin", "portal", ...). A fresh single-use state is
// generated and bound to the resolved redirect target.
func (m *Manager) BeginAuthorization(contextName string) (string, error) {
	target, ok := m.cfg.RedirectTargets[contextName]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNoRedirectTarget, contextName)
	}

	state, err := m.states.Create(target, m.cfg.StateTTL)
	if err != nil {
		return "", fmt.Errorf("failed to create authorization state: %w", err)
	}

	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", m.cfg.ClientID)
	q.Set("redirect_uri", target)
	q.Set("scope", m.cfg.Scope)
	q.Set("state", state)

	m.log.Info().Str("context", contextName).Msg("Authorization started")
	return m.cfg.AuthEndpoint + "?" + q.Encode(), nil
}

// CompleteAuthorization validates the callback state and exchanges the
// authorization code for a credential. The state is consumed on first
// validation, successful or not, and is never accepted twice.
func (m *Manager) CompleteAuthorization(ctx context.Context, code, state string) (*Credential, error) {
	redirectURI, ok, err := m.states.Consume(state)
	if err != nil {
		return nil, fmt.Errorf("failed to consume authorization state: %w", err)
	}
	if !ok {
		m.log.Warn().Msg("Authorization callback with invalid or replayed state")
		return nil, ErrStateMismatch
	}

	resp, err := m.postToken(ctx, "/exchange", map[string]string{
		"code":         code,
		"state":        state,
		"redirect_uri": redirectURI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("%w: token endpoint returned no access token", ErrExchangeFailed)
	}

	cred := m.credentialFrom(resp, "")
	if err := m.tokens.Save(cred); err != nil {
		return nil, fmt.Errorf("failed to store credential: %w", err)
	}

	m.log.Info().Time("expires_at", cred.ExpiresAt).Msg("Authorization completed")
	return &cred, nil
}

// GetValidCredential returns the current credential, refreshing it first if
// less than the expiry skew remains. Returns ErrNoCredential when neither a
// credential nor a refresh token exists.
func (m *Manager) GetValidCredential(ctx context.Context) (*Credential, error) {
	cred, err := m.tokens.Get()
	if err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}
	if cred != nil && cred.ValidAt(m.now()) {
		return cred, nil
	}
	if cred == nil || cred.RefreshToken == "" {
		return nil, ErrNoCredential
	}

	return m.Refresh(ctx)
}

// Refresh exchanges the stored refresh token for a new credential.
// Concurrent calls coalesce into a single in-flight exchange; every waiter
// receives the result of that one exchange. On failure the credential is
// cleared, forcing re-authorization.
func (m *Manager) Refresh(ctx context.Context) (*Credential, error) {
	v, err, _ := m.flight.Do("refresh", func() (interface{}, error) {
		return m.refreshLocked(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Credential), nil
}

// refreshLocked performs the actual refresh exchange. Only one invocation
// runs at a time; it re-reads the store so a flight that queued behind a
// successful refresh returns the fresh credential without a second exchange.
func (m *Manager) refreshLocked(ctx context.Context) (*Credential, error) {
	cred, err := m.tokens.Get()
	if err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}
	if cred != nil && cred.ValidAt(m.now()) {
		return cred, nil
	}
	if cred == nil || cred.RefreshToken == "" {
		return nil, ErrNoCredential
	}

	resp, err := m.postToken(ctx, "/refresh", map[string]string{
		"refresh_token": cred.RefreshToken,
	})
	if err != nil {
		_ = m.tokens.Clear()
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	if resp.AccessToken == "" {
		_ = m.tokens.Clear()
		return nil, fmt.Errorf("%w: token endpoint returned no access token", ErrRefreshFailed)
	}

	// A missing refresh token in the response means the prior one stays valid.
	next := m.credentialFrom(resp, cred.RefreshToken)
	if err := m.tokens.Save(next); err != nil {
		return nil, fmt.Errorf("failed to store refreshed credential: %w", err)
	}

	m.log.Info().Time("expires_at", next.ExpiresAt).Msg("Credential refreshed")
	return &next, nil
}

// credentialFrom builds a Credential from a token response, retaining
// fallbackRefresh when the response omits a refresh token.
func (m *Manager) credentialFrom(resp *tokenResponse, fallbackRefresh string) Credential {
	refresh := resp.RefreshToken
	if refresh == "" {
		refresh = fallbackRefresh
	}
	tokenType := resp.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return Credential{
		AccessToken:  resp.AccessToken,
		RefreshToken: refresh,
		TokenType:    tokenType,
		Scope:        resp.Scope,
		ExpiresAt:    m.now().Add(time.Duration(resp.ExpiresIn) * time.Second),
	}
}

// postToken sends a JSON request to the token proxy and decodes the response.
func (m *Manager) postToken(ctx context.Context, path string, payload map[string]string) (*tokenResponse, error) {
	if m.cfg.TokenEndpoint == "" {
		return nil, fmt.Errorf("token endpoint not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.TokenEndpoint+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		bodyStr := string(respBody)
		if len(bodyStr) > 500 {
			bodyStr = bodyStr[:500] + "..."
		}
		return nil, fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, bodyStr)
	}

	var result tokenResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}

	return &result, nil
}
