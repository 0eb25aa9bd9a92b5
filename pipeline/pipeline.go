// Package pipeline is the shared HTTP path every SDK request travels:
// credential attachment, client-side throttling, lifecycle events, and the
// 401-triggered single-flight token refresh with request replay.
package pipeline

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"storesdk/events"
	"storesdk/model"
	"storesdk/storage"
)

// Request describes one outgoing call. Bodies are buffered bytes so a
// request can be replayed after a token refresh with its method, body, and
// params preserved exactly.
type Request struct {
	Method string
	Path   string // relative to the client's base URL
	Query  url.Values
	Header http.Header
	Body   []byte

	// AttachToken adds the stored access token as a bearer credential.
	AttachToken bool

	// RetryOn401 engages the refresh interceptor for this request. Only
	// session-scoped store API calls set it; unrelated calls pass 401s
	// through untouched.
	RetryOn401 bool

	// retried marks a request that already went through one refresh
	// cycle. A second 401 then propagates directly, which guarantees
	// termination against a persistently invalid credential.
	retried bool
}

// Response is a fully-read HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// RequestInfo is the payload of request lifecycle events.
type RequestInfo struct {
	ID     string
	Method string
	Path   string
	Status int
	Err    error
}

// Refresher is the auth-service surface the interceptor drives. The
// pipeline never touches token storage for writes; rotation and session
// clearing stay with the auth service.
type Refresher interface {
	// StoredRefreshToken returns the persisted refresh token, empty when
	// no session exists.
	StoredRefreshToken(ctx context.Context) (string, error)

	// Refresh rotates the credential pair and persists it, returning the
	// new access token.
	Refresh(ctx context.Context, refreshToken string) (string, error)

	// Invalidate clears the session after an unrecoverable refresh
	// failure and announces the state change.
	Invalidate(ctx context.Context) error
}

// Config assembles a Client.
type Config struct {
	// BaseURL is the store root, e.g. https://shop.example.com.
	BaseURL string

	// HTTPClient issues the actual requests. Nil means a 30s-timeout
	// default client.
	HTTPClient *http.Client

	// AccessTokens is read to attach bearer credentials. The pipeline
	// never writes it.
	AccessTokens storage.Provider

	// Bus receives request lifecycle events. Nil disables them.
	Bus *events.Bus

	// Throttle caps outgoing request rate. Nil disables throttling.
	Throttle *rate.Limiter

	// ProactiveRefreshLeeway, when positive, refreshes ahead of requests
	// whose stored token expires within the leeway (judged by a local,
	// unverified claim read). The 401 path remains authoritative for
	// tokens the client cannot parse.
	ProactiveRefreshLeeway time.Duration

	Logger *slog.Logger
}

// Client is the shared request pipeline. One Client belongs to one SDK
// instance; its refresh state is instance-scoped, never global.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	accessTokens storage.Provider
	bus          *events.Bus
	throttle     *rate.Limiter
	leeway       time.Duration
	logger       *slog.Logger

	refresh refreshCoordinator
}

// New creates a Client. The refresher is wired afterwards with
// SetRefresher because the auth service is itself built on this client.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient:   httpClient,
		accessTokens: cfg.AccessTokens,
		bus:          cfg.Bus,
		throttle:     cfg.Throttle,
		leeway:       cfg.ProactiveRefreshLeeway,
		logger:       logger,
	}
}

// SetRefresher wires the refresh interceptor. Without a refresher, 401s
// propagate as normalized errors.
func (c *Client) SetRefresher(r Refresher) {
	c.refresh.refresher = r
}

// BaseURL returns the store root the client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do executes a request through the full pipeline and returns the response
// with its body read. HTTP error statuses are normalized into *model.Error;
// a session-scoped 401 is absorbed by one transparent refresh-and-replay
// before anything reaches the caller.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if c.throttle != nil {
		if err := c.throttle.Wait(ctx); err != nil {
			return nil, model.NewAbortedError(err)
		}
	}

	id := ulid.Make().String()
	c.publish(events.TopicRequestStart, RequestInfo{ID: id, Method: req.Method, Path: req.Path})

	resp, err := c.send(ctx, req)

	if err == nil && resp.Status == http.StatusUnauthorized && req.RetryOn401 && !req.retried && c.refresh.refresher != nil {
		req.retried = true
		c.publish(events.TopicRequestRetry, RequestInfo{ID: id, Method: req.Method, Path: req.Path, Status: resp.Status})

		token, rerr := c.refresh.do(ctx, c)
		if rerr != nil {
			c.publish(events.TopicRequestEnd, RequestInfo{ID: id, Method: req.Method, Path: req.Path, Err: rerr})
			return nil, rerr
		}
		resp, err = c.sendWithToken(ctx, req, token)
	}

	if err != nil {
		c.publish(events.TopicRequestEnd, RequestInfo{ID: id, Method: req.Method, Path: req.Path, Err: err})
		return nil, err
	}

	if resp.Status >= 400 {
		apiErr := model.FromResponse(resp.Status, resp.Body)
		c.publish(events.TopicRequestEnd, RequestInfo{ID: id, Method: req.Method, Path: req.Path, Status: resp.Status, Err: apiErr})
		return nil, apiErr
	}

	c.publish(events.TopicRequestEnd, RequestInfo{ID: id, Method: req.Method, Path: req.Path, Status: resp.Status})
	return resp, nil
}

// send issues the request once, attaching the stored access token when
// asked. A token known to be expiring is refreshed first so most callers
// never even see the 401.
func (c *Client) send(ctx context.Context, req *Request) (*Response, error) {
	var token string
	if req.AttachToken && c.accessTokens != nil {
		stored, err := c.accessTokens.Get(ctx)
		if err != nil {
			return nil, model.NewTransportError(err)
		}
		token = stored

		if token != "" && c.leeway > 0 && req.RetryOn401 && !req.retried && c.refresh.refresher != nil {
			if claims, perr := model.ParseClaims(token); perr == nil && claims.ExpiresWithin(c.leeway) {
				req.retried = true
				fresh, rerr := c.refresh.do(ctx, c)
				if rerr != nil {
					return nil, rerr
				}
				token = fresh
			}
		}
	}
	return c.roundTrip(ctx, req, token)
}

// sendWithToken replays the request with an explicit bearer token,
// overriding whatever credential it carried before.
func (c *Client) sendWithToken(ctx context.Context, req *Request, token string) (*Response, error) {
	return c.roundTrip(ctx, req, token)
}

func (c *Client) roundTrip(ctx context.Context, req *Request, token string) (*Response, error) {
	u := c.baseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, body)
	if err != nil {
		return nil, model.NewValidationError("request", err.Error())
	}

	httpReq.Header.Set("Accept", "application/json")
	if len(req.Body) > 0 {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, model.NewAbortedError(ctxErr)
		}
		return nil, model.NewTransportError(err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, model.NewTransportError(err)
	}

	return &Response{
		Status: httpResp.StatusCode,
		Header: httpResp.Header,
		Body:   respBody,
	}, nil
}

func (c *Client) publish(topic events.Topic, info RequestInfo) {
	if c.bus != nil {
		c.bus.Publish(topic, info)
	}
}
