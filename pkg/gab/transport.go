package gab

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"garc/pkg/config"
	errs "garc/pkg/errors"
	"garc/pkg/logger"
	"garc/pkg/ratelimit"
	"garc/pkg/retry"
)

// FetchOptions tune a single Transport call
type FetchOptions struct {
	// Method defaults to GET
	Method string
	// Form is sent url-encoded as the request body
	Form url.Values
	// Cookies are attached to the request; empty for anonymous calls
	Cookies []*http.Cookie
	// PassStatus lists statuses handed back to the caller instead of retried
	PassStatus []int
	// Once disables the connection-error retry loop; the caller retries
	Once bool
	// NoRedirect returns 3xx responses instead of following them
	NoRedirect bool
}

func (o FetchOptions) passes(status int) bool {
	for _, s := range o.PassStatus {
		if s == status {
			return true
		}
	}
	return false
}

// Response is a fully read HTTP response
type Response struct {
	StatusCode int
	Header     http.Header
	Cookies    []*http.Cookie
	Body       []byte
}

// Cookie returns the named response cookie, or nil
func (r *Response) Cookie(name string) *http.Cookie {
	for _, c := range r.Cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Transport issues HTTP requests and applies the status and connection
// failure policy. It is not safe for concurrent use.
type Transport struct {
	httpClient *http.Client
	policy     *retry.Policy
	clock      retry.Clock
	limiter    ratelimit.Limiter
	headers    map[string]string
	logger     logger.Logger
}

// NewPolicy builds the transport's retry policy, treating zero ceilings as defaults
func NewPolicy(cfg config.TransportConfig) *retry.Policy {
	httpErrors := cfg.HTTPErrors
	if httpErrors <= 0 {
		httpErrors = config.DefaultHTTPErrors
	}
	connErrors := cfg.ConnectionErrors
	if connErrors <= 0 {
		connErrors = config.DefaultConnectionErrors
	}
	return retry.NewPolicy(cfg.NotFoundBackoff, cfg.ServerErrorBackoff, cfg.RateLimitBackoff, httpErrors, connErrors)
}

// NewTransport creates a transport from the transport and API settings
func NewTransport(cfg *config.Config, httpClient *http.Client, clock retry.Clock, log logger.Logger) *Transport {
	if log == nil {
		log = logger.GetLogger()
	}
	if clock == nil {
		clock = retry.SystemClock()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Transport.Timeout}
	}

	return &Transport{
		httpClient: httpClient,
		policy:     NewPolicy(cfg.Transport),
		clock:      clock,
		limiter:    ratelimit.PerMinute(cfg.Transport.RequestsPerMinute, clock),
		headers: map[string]string{
			"User-Agent":      cfg.Gab.UserAgent,
			"Accept":          "application/json, text/html;q=0.9, */*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
			"Cache-Control":   "no-cache",
		},
		logger: log,
	}
}

// Policy returns the retry policy in effect
func (t *Transport) Policy() *retry.Policy {
	return t.policy
}

// Clock returns the clock used for sleeps
func (t *Transport) Clock() retry.Clock {
	return t.clock
}

// Fetch performs one logical request. 2xx responses and statuses listed in
// opts.PassStatus are returned. 404 and 5xx are retried up to the HTTP error
// ceiling; 429 pauses for the rate-limit backoff and returns a rate_limit
// error; 401/403 return an auth error along with the response.
func (t *Transport) Fetch(ctx context.Context, rawURL string, opts FetchOptions) (*Response, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	t.logger.InfoWithFields("getting", map[string]interface{}{
		"method":    method,
		"url":       rawURL,
		"form_keys": formKeys(opts.Form),
		"anonymous": len(opts.Cookies) == 0,
	})

	var connFailures, httpFailures int
	for {
		if t.limiter != nil {
			if err := t.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := t.do(ctx, method, rawURL, opts)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			connFailures++
			t.logger.ErrorWithFields("caught connection error", map[string]interface{}{
				"url":     rawURL,
				"error":   err.Error(),
				"attempt": connFailures,
			})
			if opts.Once || connFailures >= t.policy.MaxConnectionErrors {
				if !opts.Once {
					t.logger.Error("received too many connection errors")
				}
				return nil, errs.Wrap(errs.ErrorTypeNetwork, err, fmt.Sprintf("%s %s", method, rawURL))
			}
			t.httpClient.CloseIdleConnections()
			if err := t.clock.Sleep(ctx, t.policy.Network.NextDelay(connFailures)); err != nil {
				return nil, err
			}
			continue
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return resp, nil
		case opts.passes(resp.StatusCode):
			return resp, nil
		case opts.NoRedirect && resp.StatusCode >= 300 && resp.StatusCode < 400:
			return resp, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			backoff := t.policy.RateLimit.NextDelay(1)
			logger.LogRateLimit(t.logger, rawURL, backoff)
			if err := t.clock.Sleep(ctx, backoff); err != nil {
				return nil, err
			}
			return nil, errs.New(errs.ErrorTypeRateLimit, resp.StatusCode, "rate limited on %s", rawURL)
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return resp, errs.New(errs.ErrorTypeAuth, resp.StatusCode, "not authorized for %s", rawURL)
		case resp.StatusCode == http.StatusNotFound || resp.StatusCode >= 500:
			errorType := errs.ErrorTypeServerError
			if resp.StatusCode == http.StatusNotFound {
				errorType = errs.ErrorTypeNotFound
			}
			httpFailures++
			if httpFailures >= t.policy.MaxHTTPErrors {
				t.logger.ErrorWithFields("giving up after repeated HTTP errors", map[string]interface{}{
					"url":      rawURL,
					"status":   resp.StatusCode,
					"attempts": httpFailures,
				})
				return nil, errs.New(errorType, resp.StatusCode, "%s returned %d after %d attempts",
					rawURL, resp.StatusCode, httpFailures)
			}
			t.logger.WarnWithFields(fmt.Sprintf("%d from Gab API! trying again", resp.StatusCode), map[string]interface{}{
				"url":     rawURL,
				"attempt": httpFailures,
			})
			if err := t.clock.Sleep(ctx, t.policy.BackoffFor(errorType).NextDelay(httpFailures)); err != nil {
				return nil, err
			}
		default:
			return nil, errs.New(errs.ErrorTypeUnknown, resp.StatusCode, "unexpected status code %d from %s",
				resp.StatusCode, rawURL)
		}
	}
}

// do sends a single request and reads the whole body
func (t *Transport) do(ctx context.Context, method, rawURL string, opts FetchOptions) (*Response, error) {
	var body io.Reader
	if opts.Form != nil {
		body = strings.NewReader(opts.Form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	for key, value := range t.headers {
		req.Header.Set(key, value)
	}
	if opts.Form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, c := range opts.Cookies {
		req.AddCookie(c)
	}

	client := t.httpClient
	if opts.NoRedirect {
		noFollow := *t.httpClient
		noFollow.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
		client = &noFollow
	}

	start := t.clock.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	logger.LogRequest(t.logger, method, rawURL, resp.StatusCode, t.clock.Now().Sub(start))

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Cookies:    resp.Cookies(),
		Body:       data,
	}, nil
}

func formKeys(form url.Values) []string {
	if len(form) == 0 {
		return nil
	}
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

