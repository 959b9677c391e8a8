package gab

import (
	"context"
	"net/http"

	"garc/pkg/auth"
	"garc/pkg/config"
	errs "garc/pkg/errors"
	"garc/pkg/logger"
	"garc/pkg/retry"
)

// Client is an authenticated Gab API client: a session manager and a
// transport sharing one HTTP connection pool. It is not safe for concurrent
// use; construct one client per goroutine.
type Client struct {
	transport *Transport
	session   *SessionManager
	endpoints Endpoints
	logger    logger.Logger
}

// Option customizes a Client
type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	clock      retry.Clock
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = c }
}

// WithClock replaces the clock used for backoff sleeps
func WithClock(c retry.Clock) Option {
	return func(o *clientOptions) { o.clock = c }
}

// NewClient creates a client for the configured API using creds
func NewClient(cfg *config.Config, creds auth.Credentials, log logger.Logger, opts ...Option) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}

	endpoints := NewEndpoints(cfg.Gab.BaseURL, cfg.Gab.APIVersion)
	transport := NewTransport(cfg, o.httpClient, o.clock, log)

	return &Client{
		transport: transport,
		session:   NewSessionManager(creds, transport, endpoints, log),
		endpoints: endpoints,
		logger:    log,
	}
}

// Endpoints returns the URL builder for the configured API generation
func (c *Client) Endpoints() Endpoints {
	return c.endpoints
}

// Session returns the session manager
func (c *Client) Session() *SessionManager {
	return c.session
}

// Clock returns the clock used for sleeps
func (c *Client) Clock() retry.Clock {
	return c.transport.Clock()
}

// Get performs an authorized request, logging in first when there is no
// session. A 401/403 triggers exactly one re-login and retry.
func (c *Client) Get(ctx context.Context, rawURL string, opts FetchOptions) (*Response, error) {
	for attempt := 0; ; attempt++ {
		sess, err := c.session.EnsureSession(ctx)
		if err != nil {
			return nil, err
		}
		opts.Cookies = sess.Cookies()

		resp, err := c.transport.Fetch(ctx, rawURL, opts)
		if err != nil && errs.IsType(err, errs.ErrorTypeAuth) && attempt == 0 {
			c.logger.WarnWithFields("session rejected, logging in again", map[string]interface{}{
				"url": rawURL,
			})
			c.session.Invalidate()
			continue
		}
		if err != nil {
			return nil, err
		}
		return resp, nil
	}
}

// GetAnonymous performs a request without session cookies
func (c *Client) GetAnonymous(ctx context.Context, rawURL string, opts FetchOptions) (*Response, error) {
	opts.Cookies = nil
	resp, err := c.transport.Fetch(ctx, rawURL, opts)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// GetPage fetches and decodes one page of a paginated endpoint
func (c *Client) GetPage(ctx context.Context, rawURL string, opts FetchOptions) (*Page, *Response, error) {
	resp, err := c.Get(ctx, rawURL, opts)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// a pass-through status; the caller interprets it
		return nil, resp, nil
	}
	page, err := DecodePage(resp.Body)
	if err != nil {
		return nil, resp, err
	}
	return page, resp, nil
}

// GetRecord fetches and decodes a single-object endpoint
func (c *Client) GetRecord(ctx context.Context, rawURL string) (*Record, error) {
	resp, err := c.Get(ctx, rawURL, FetchOptions{})
	if err != nil {
		return nil, err
	}
	return DecodeRecord(resp.Body)
}
