// Package auth issues, refreshes, revokes, and validates session
// credentials against a store's auth endpoints. The Service owns the
// authenticated/not-authenticated state transition and is the only
// component that writes token storage.
package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/mod/semver"

	"storesdk/events"
	"storesdk/model"
	"storesdk/pipeline"
	"storesdk/storage"
)

// DefaultNamespace is the store plugin's REST namespace.
const DefaultNamespace = "/wp-json/storesdk/v1"

// Config assembles a Service.
type Config struct {
	// Namespace overrides DefaultNamespace.
	Namespace string

	// RevokeTokenBeforeLogin issues a scope-all revoke before each login,
	// killing credentials a previous session may have leaked. The revoke
	// outcome does not gate the login attempt.
	RevokeTokenBeforeLogin bool

	// MinPluginVersion, when set, is the semver floor StatusSupported
	// compares the remote plugin version against.
	MinPluginVersion string

	Logger *slog.Logger
}

// Service talks to the remote auth endpoints. All operations return
// normalized errors for expected failures and never panic in steady state.
type Service struct {
	pipe      *pipeline.Client
	access    storage.Provider
	refresh   storage.Provider
	bus       *events.Bus
	namespace string
	cfg       Config
	logger    *slog.Logger

	mu    sync.Mutex
	state State
}

// New creates a Service persisting tokens to the given providers.
func New(pipe *pipeline.Client, access, refresh storage.Provider, bus *events.Bus, cfg Config) *Service {
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		pipe:      pipe,
		access:    access,
		refresh:   refresh,
		bus:       bus,
		namespace: namespace,
		cfg:       cfg,
		logger:    logger,
	}
}

// State reports the tri-state session flag. It stays StateUnknown until the
// first login, refresh, or revoke settles it.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// setAuthenticated moves the tri-state flag and announces transitions.
// Settling into the same state again (a refresh while already
// authenticated) is not a transition and publishes nothing.
func (s *Service) setAuthenticated(authenticated bool) {
	next := StateUnauthenticated
	if authenticated {
		next = StateAuthenticated
	}
	s.mu.Lock()
	changed := s.state != next
	s.state = next
	s.mu.Unlock()
	if changed {
		s.bus.Publish(events.TopicAuthChanged, authenticated)
	}
}

func (s *Service) path(p string) string {
	return s.namespace + "/auth" + p
}

// Token exchanges login credentials for a credential pair, persists it, and
// flips the session to authenticated.
func (s *Service) Token(ctx context.Context, creds Credentials) (*TokenResponse, error) {
	if creds.Login == "" || creds.Password == "" {
		return nil, model.NewValidationError("credentials", "login and password are required")
	}

	if s.cfg.RevokeTokenBeforeLogin {
		if _, err := s.RevokeToken(ctx, ScopeAll); err != nil {
			s.logger.Debug("pre-login revoke failed", slog.Any("error", err))
		}
	}

	s.bus.Publish(events.TopicLoginStart, creds.Login)

	body, _ := json.Marshal(creds)
	resp, err := s.pipe.Do(ctx, &pipeline.Request{
		Method: http.MethodPost,
		Path:   s.path("/token"),
		Body:   body,
	})
	if err != nil {
		s.bus.Publish(events.TopicLoginError, err)
		return nil, err
	}

	tr, err := decodeToken(resp.Body)
	if err != nil {
		s.bus.Publish(events.TopicLoginError, err)
		return nil, err
	}

	if err := s.persistPair(ctx, tr); err != nil {
		s.bus.Publish(events.TopicLoginError, err)
		return nil, err
	}
	s.setAuthenticated(true)
	s.bus.Publish(events.TopicLoginSuccess, tr.User)
	return tr, nil
}

// RefreshToken rotates a still-valid refresh token for a new credential
// pair and persists it. On failure it does not clear session state: a
// transient network error is not proof the refresh token is dead, and the
// caller (normally the refresh interceptor) owns that judgment.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	if refreshToken == "" {
		return nil, model.NewValidationError("refresh_token", "required")
	}

	s.bus.Publish(events.TopicRefreshStart, nil)

	body, _ := json.Marshal(map[string]string{"refresh_token": refreshToken})
	resp, err := s.pipe.Do(ctx, &pipeline.Request{
		Method: http.MethodPost,
		Path:   s.path("/refresh"),
		Body:   body,
	})
	if err != nil {
		s.bus.Publish(events.TopicRefreshError, err)
		return nil, err
	}

	tr, err := decodeToken(resp.Body)
	if err != nil {
		s.bus.Publish(events.TopicRefreshError, err)
		return nil, err
	}

	if err := s.persistPair(ctx, tr); err != nil {
		s.bus.Publish(events.TopicRefreshError, err)
		return nil, err
	}
	s.setAuthenticated(true)
	s.bus.Publish(events.TopicRefreshSuccess, nil)
	return tr, nil
}

// RevokeToken invalidates session credentials. An empty scope means
// ScopeAll; the effective scope is always explicit in the request. A
// successful scope-all revoke also clears local storage and flips the
// session to unauthenticated, since every local credential is now dead.
func (s *Service) RevokeToken(ctx context.Context, scope RevokeScope) (*RevokeResponse, error) {
	if scope == "" {
		scope = ScopeAll
	}

	s.bus.Publish(events.TopicRevokeStart, scope)

	body, _ := json.Marshal(map[string]RevokeScope{"scope": scope})
	resp, err := s.pipe.Do(ctx, &pipeline.Request{
		Method:      http.MethodPost,
		Path:        s.path("/revoke"),
		Body:        body,
		AttachToken: true,
		RetryOn401:  true,
	})
	if err != nil {
		s.bus.Publish(events.TopicRevokeError, err)
		return nil, err
	}

	var rr RevokeResponse
	if err := json.Unmarshal(resp.Body, &rr); err != nil {
		apiErr := model.NewTransportError(err)
		s.bus.Publish(events.TopicRevokeError, apiErr)
		return nil, apiErr
	}

	if scope == ScopeAll {
		s.clearStores(ctx)
		s.setAuthenticated(false)
	}
	s.bus.Publish(events.TopicRevokeSuccess, &rr)
	return &rr, nil
}

// OneTimeToken mints a short-lived single-use token authorizing one
// auto-login handoff. Requires a valid access token; session state is not
// touched. A ttlSeconds of 0 takes the server default (~60s).
func (s *Service) OneTimeToken(ctx context.Context, ttlSeconds int) (*OneTimeTokenResponse, error) {
	payload := map[string]int{}
	if ttlSeconds > 0 {
		payload["ttl"] = ttlSeconds
	}
	body, _ := json.Marshal(payload)

	resp, err := s.pipe.Do(ctx, &pipeline.Request{
		Method:      http.MethodPost,
		Path:        s.path("/one-time-token"),
		Body:        body,
		AttachToken: true,
		RetryOn401:  true,
	})
	if err != nil {
		return nil, err
	}

	var ott OneTimeTokenResponse
	if err := json.Unmarshal(resp.Body, &ott); err != nil {
		return nil, model.NewTransportError(err)
	}
	return &ott, nil
}

// Validate asks the server whether the currently-stored access token passes
// signature, expiry, and token-version checks. Read-only: a negative result
// mutates nothing, and the refresh interceptor is deliberately not engaged,
// since transparently refreshing would mask the very answer being asked for.
func (s *Service) Validate(ctx context.Context) (*ValidateResponse, error) {
	resp, err := s.pipe.Do(ctx, &pipeline.Request{
		Method:      http.MethodGet,
		Path:        s.path("/validate"),
		AttachToken: true,
	})
	if err != nil {
		return nil, err
	}

	var vr ValidateResponse
	if err := json.Unmarshal(resp.Body, &vr); err != nil {
		return nil, model.NewTransportError(err)
	}
	return &vr, nil
}

// Status reports whether the remote auth subsystem is active and configured
// at all, independent of any user's session.
func (s *Service) Status(ctx context.Context) (*StatusResponse, error) {
	resp, err := s.pipe.Do(ctx, &pipeline.Request{
		Method: http.MethodGet,
		Path:   s.path("/status"),
	})
	if err != nil {
		return nil, err
	}

	var sr StatusResponse
	if err := json.Unmarshal(resp.Body, &sr); err != nil {
		return nil, model.NewTransportError(err)
	}
	return &sr, nil
}

// StatusSupported reports whether the remote plugin is active and at least
// the configured minimum version.
func (s *Service) StatusSupported(ctx context.Context) (bool, error) {
	sr, err := s.Status(ctx)
	if err != nil {
		return false, err
	}
	if !sr.Active {
		return false, nil
	}
	if s.cfg.MinPluginVersion == "" {
		return true, nil
	}
	return semver.Compare(canonical(sr.Version), canonical(s.cfg.MinPluginVersion)) >= 0, nil
}

// canonical prefixes the leading v that semver.Compare requires.
func canonical(version string) string {
	if version == "" || version[0] == 'v' {
		return version
	}
	return "v" + version
}

func (s *Service) persistPair(ctx context.Context, tr *TokenResponse) error {
	if err := s.access.Set(ctx, tr.Token); err != nil {
		return model.NewTransportError(err)
	}
	if err := s.refresh.Set(ctx, tr.RefreshToken); err != nil {
		return model.NewTransportError(err)
	}
	return nil
}

func (s *Service) clearStores(ctx context.Context) {
	if err := s.access.Clear(ctx); err != nil {
		s.logger.Warn("clearing access token", slog.Any("error", err))
	}
	if err := s.refresh.Clear(ctx); err != nil {
		s.logger.Warn("clearing refresh token", slog.Any("error", err))
	}
}

func decodeToken(body []byte) (*TokenResponse, error) {
	var tr TokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, model.NewTransportError(err)
	}
	if tr.Token == "" || tr.RefreshToken == "" {
		return nil, model.NewValidationError("response", "missing token pair")
	}
	return &tr, nil
}

// === pipeline.Refresher ===

// StoredRefreshToken returns the persisted refresh token, empty when no
// session exists.
func (s *Service) StoredRefreshToken(ctx context.Context) (string, error) {
	return s.refresh.Get(ctx)
}

// Refresh implements the interceptor's rotation call: exchange, persist,
// return the new access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	tr, err := s.RefreshToken(ctx, refreshToken)
	if err != nil {
		return "", err
	}
	return tr.Token, nil
}

// Invalidate clears the session after the interceptor declares a refresh
// unrecoverable.
func (s *Service) Invalidate(ctx context.Context) error {
	s.clearStores(ctx)
	s.setAuthenticated(false)
	return nil
}
