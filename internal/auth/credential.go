package auth

import "time"

// ExpirySkew is the safety margin applied before the actual expiry instant.
// A credential within this margin of expiring is treated as already expired
// so in-flight requests never race the brokerage's clock.
const ExpirySkew = 60 * time.Second

// Credential is the current access/refresh token pair for the integration.
// It is owned by the token repository and replaced wholesale on refresh,
// never partially patched.
type Credential struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	ExpiresAt    time.Time
}

// ValidAt reports whether the credential has more than the expiry skew
// remaining at the given instant.
func (c Credential) ValidAt(now time.Time) bool {
	return c.AccessToken != "" && now.Add(ExpirySkew).Before(c.ExpiresAt)
}
