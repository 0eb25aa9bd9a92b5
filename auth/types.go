package auth

// Credentials are the login inputs exchanged for a credential pair.
type Credentials struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// User is the account summary returned alongside issued tokens.
type User struct {
	ID          int    `json:"id"`
	Login       string `json:"login"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// TokenResponse is the success shape of both login and refresh: a fresh
// access/refresh pair. A successful refresh always rotates; the returned
// refresh token replaces the presented one, which the server rejects from
// then on.
type TokenResponse struct {
	Token            string `json:"token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshToken     string `json:"refresh_token"`
	RefreshExpiresIn int    `json:"refresh_expires_in"`
	User             *User  `json:"user,omitempty"`
}

// RevokeScope selects how much of a session a revoke call kills.
type RevokeScope string

const (
	// ScopeRefresh invalidates outstanding refresh tokens only; live
	// access tokens keep working until natural expiry.
	ScopeRefresh RevokeScope = "refresh"

	// ScopeAll bumps the per-user token version, so every credential
	// issued under the old version fails validation immediately.
	ScopeAll RevokeScope = "all"
)

// RevokeResponse reports the outcome of a revoke call. NewVersion is the
// user's token version after a scope-all revoke.
type RevokeResponse struct {
	Revoked    bool        `json:"revoked"`
	Scope      RevokeScope `json:"scope"`
	NewVersion int         `json:"new_version,omitempty"`
}

// OneTimeTokenResponse carries a short-lived single-use token. Exactly one
// consumption succeeds; the second use fails with one_time_invalid.
type OneTimeTokenResponse struct {
	OneTimeToken string `json:"one_time_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// ValidateResponse reports server-side validation of the presented access
// token: signature, expiry, and token version.
type ValidateResponse struct {
	Valid   bool           `json:"valid"`
	Payload map[string]any `json:"payload,omitempty"`
}

// StatusResponse is the auth subsystem's feature-detection surface,
// independent of any user session.
type StatusResponse struct {
	Active        bool     `json:"active"`
	FlagDefined   bool     `json:"flag_defined"`
	FlagEnabled   bool     `json:"flag_enabled"`
	SecretDefined bool     `json:"secret_defined"`
	Version       string   `json:"version"`
	Endpoints     []string `json:"endpoints,omitempty"`
}

// State is the tri-state session flag: unknown before the first check, then
// authenticated or not.
type State int

const (
	StateUnknown State = iota
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}
