package auth

import "errors"

// Authorization flow errors. Handlers and callers match these with errors.Is.
var (
	// ErrNoCredential means no credential and no refresh token exist.
	// The integration must be re-authorized through the OAuth flow.
	ErrNoCredential = errors.New("no stored credential, authorization required")

	// ErrStateMismatch means the callback state did not match a live,
	// unexpired, unconsumed authorization state. The attempt is fatal and
	// is never retried.
	ErrStateMismatch = errors.New("oauth state mismatch or already consumed")

	// ErrNoRedirectTarget means no callback URL is configured for the
	// caller's context.
	ErrNoRedirectTarget = errors.New("no redirect target configured for context")

	// ErrExchangeFailed means the authorization code exchange failed or
	// returned no access token.
	ErrExchangeFailed = errors.New("authorization code exchange failed")

	// ErrRefreshFailed means the refresh token was rejected. The stored
	// credential is cleared when this is returned.
	ErrRefreshFailed = errors.New("credential refresh failed")
)
