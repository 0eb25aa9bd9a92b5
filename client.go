// Package storesdk is a typed Go client for WooCommerce stores running the
// storesdk auth plugin. It wires the session core (token storage, event
// bus, shared HTTP pipeline with single-flight refresh, the pagination
// loop) behind one Client.
//
// Every Client is self-contained: its session state, refresh coordination,
// and event bus belong to that instance, so multiple clients against
// different stores (or different users of one store) coexist in a process.
//
//	sdk, err := storesdk.New(storesdk.Config{StoreURL: "https://shop.example.com"})
//	if err != nil { ... }
//
//	_, err = sdk.Auth.Token(ctx, auth.Credentials{Login: "owner", Password: "secret"})
//	if err != nil { ... }
//
//	all := sdk.Products.ListAll(ctx, map[string]any{"per_page": 50}, paginate.Options[products.Product]{})
//
// An expired access token costs a caller one transparent refresh and retry;
// only a dead session (revoked or rotated-away refresh token) surfaces an
// error requiring re-login.
package storesdk

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"storesdk/auth"
	"storesdk/events"
	"storesdk/pipeline"
	"storesdk/products"
	"storesdk/storage"
	"storesdk/transport"
)

// StorageConfig selects where session credentials persist.
type StorageConfig struct {
	// Kind picks the backend. Empty means memory.
	Kind storage.Kind

	// Dir holds the token files for file storage. Each credential gets
	// its own slot file inside it.
	Dir string

	// Access and Refresh override the built-in providers entirely.
	// When set, Kind and Dir are ignored for that slot.
	Access  storage.Provider
	Refresh storage.Provider
}

// Config assembles an SDK Client.
type Config struct {
	// StoreURL is the store root, e.g. https://shop.example.com. Required.
	StoreURL string

	// AuthNamespace overrides the auth plugin's REST namespace.
	AuthNamespace string

	// CatalogNamespace overrides the WooCommerce REST namespace.
	CatalogNamespace string

	// Storage selects credential persistence. The zero value keeps
	// tokens in memory.
	Storage StorageConfig

	// HTTPClient overrides the underlying client. Nil builds one with a
	// 30s timeout; set ChromeFingerprint to give it a browser TLS
	// fingerprint.
	HTTPClient *http.Client

	// ChromeFingerprint presents Chrome's TLS fingerprint to the store,
	// for hosts behind JA3-fingerprinting CDNs. Ignored when HTTPClient
	// is set.
	ChromeFingerprint bool

	// RequestsPerSecond throttles the pipeline client-side. Zero
	// disables throttling.
	RequestsPerSecond float64

	// ProactiveRefreshLeeway refreshes ahead of requests whose token
	// expires within the leeway. Zero disables the lookahead; the
	// 401-triggered refresh path always remains active.
	ProactiveRefreshLeeway time.Duration

	// RevokeTokenBeforeLogin issues a scope-all revoke before each login.
	RevokeTokenBeforeLogin bool

	// MinPluginVersion is the semver floor for Auth.StatusSupported.
	MinPluginVersion string

	Logger *slog.Logger
}

// Client is one SDK instance bound to one store.
type Client struct {
	Auth     *auth.Service
	Products *products.Service
	Events   *events.Bus

	pipe *pipeline.Client
}

// New validates the configuration and wires an SDK instance.
func New(cfg Config) (*Client, error) {
	if cfg.StoreURL == "" {
		return nil, fmt.Errorf("store URL is required")
	}
	if _, err := url.Parse(cfg.StoreURL); err != nil {
		return nil, fmt.Errorf("invalid store URL: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	access, refresh, err := buildStorage(cfg.Storage, logger)
	if err != nil {
		return nil, err
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
		if cfg.ChromeFingerprint {
			httpClient.Transport = transport.New(transport.Options{DialTimeout: 30 * time.Second})
		}
	}

	var throttle *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		throttle = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	bus := events.NewBus()
	pipe := pipeline.New(pipeline.Config{
		BaseURL:                cfg.StoreURL,
		HTTPClient:             httpClient,
		AccessTokens:           access,
		Bus:                    bus,
		Throttle:               throttle,
		ProactiveRefreshLeeway: cfg.ProactiveRefreshLeeway,
		Logger:                 logger,
	})

	authSvc := auth.New(pipe, access, refresh, bus, auth.Config{
		Namespace:              cfg.AuthNamespace,
		RevokeTokenBeforeLogin: cfg.RevokeTokenBeforeLogin,
		MinPluginVersion:       cfg.MinPluginVersion,
		Logger:                 logger,
	})
	pipe.SetRefresher(authSvc)

	return &Client{
		Auth:     authSvc,
		Products: products.New(pipe, cfg.CatalogNamespace),
		Events:   bus,
		pipe:     pipe,
	}, nil
}

// Pipeline exposes the shared request pipeline for additional resource
// services built on top of the SDK.
func (c *Client) Pipeline() *pipeline.Client {
	return c.pipe
}

func buildStorage(cfg StorageConfig, logger *slog.Logger) (access, refresh storage.Provider, err error) {
	access = cfg.Access
	refresh = cfg.Refresh

	if access == nil {
		access, err = storage.New(cfg.Kind, slotPath(cfg.Dir, "access_token"), logger)
		if err != nil {
			return nil, nil, fmt.Errorf("access token storage: %w", err)
		}
	}
	if refresh == nil {
		refresh, err = storage.New(cfg.Kind, slotPath(cfg.Dir, "refresh_token"), logger)
		if err != nil {
			return nil, nil, fmt.Errorf("refresh token storage: %w", err)
		}
	}
	return access, refresh, nil
}

func slotPath(dir, name string) string {
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, name)
}
