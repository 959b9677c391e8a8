package gab

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"garc/pkg/auth"
	errs "garc/pkg/errors"
	"garc/pkg/logger"
	"garc/pkg/retry"

	"github.com/PuerkitoBio/goquery"
)

// SessionCookie is the cookie that carries the session token
const SessionCookie = "laravel_session"

var idTokenPattern = regexp.MustCompile(`"id_token": "(.+)" }`)

// Session is an authenticated session token
type Session struct {
	Token     string
	CreatedAt time.Time
}

// Cookies returns the cookies that authorize a request
func (s *Session) Cookies() []*http.Cookie {
	return []*http.Cookie{{Name: SessionCookie, Value: s.Token}}
}

// SessionManager obtains and refreshes the login session. It is not safe for
// concurrent use.
type SessionManager struct {
	credentials auth.Credentials
	transport   *Transport
	endpoints   Endpoints
	logger      logger.Logger

	current *Session
	expired bool
	logins  int
}

// NewSessionManager creates a manager that logs in with creds
func NewSessionManager(creds auth.Credentials, transport *Transport, endpoints Endpoints, log logger.Logger) *SessionManager {
	if log == nil {
		log = logger.GetLogger()
	}
	return &SessionManager{
		credentials: creds,
		transport:   transport,
		endpoints:   endpoints,
		logger:      log,
	}
}

// EnsureSession returns the current session, logging in first if needed
func (m *SessionManager) EnsureSession(ctx context.Context) (*Session, error) {
	if m.current != nil && !m.expired {
		return m.current, nil
	}
	return m.Login(ctx)
}

// Invalidate marks the session as rejected by the server
func (m *SessionManager) Invalidate() {
	m.expired = true
}

// Logins returns how many successful logins this manager performed
func (m *SessionManager) Logins() int {
	return m.logins
}

// Login performs the login handshake and replaces the current session
func (m *SessionManager) Login(ctx context.Context) (*Session, error) {
	if !m.credentials.Complete() {
		return nil, errs.New(errs.ErrorTypeMissingCredentials, 0,
			"a Gab account and password are required; run `garc configure` or set %s and %s",
			auth.EnvAccount, auth.EnvPassword)
	}

	if m.current != nil {
		m.logger.Info("refreshing login cookie")
	}

	policy := m.transport.Policy()
	session, err := retry.DoWithResult(func() (*Session, error) {
		return m.handshake(ctx)
	}, &retry.Config{
		MaxAttempts: policy.MaxConnectionErrors,
		Backoff:     policy.Network,
		RetryIf:     retry.NetworkOnly,
		Context:     ctx,
		Clock:       m.transport.Clock(),
		Logger:      m.logger,
	})
	if err != nil {
		return nil, err
	}

	m.current = session
	m.expired = false
	m.logins++
	m.logger.InfoWithFields("logged in", map[string]interface{}{
		"account": m.credentials.Account,
	})
	return session, nil
}

func (m *SessionManager) handshake(ctx context.Context) (*Session, error) {
	loginURL := m.endpoints.Login()

	page, err := m.transport.Fetch(ctx, loginURL, FetchOptions{Once: true})
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeAuthProtocol, err, "parsing login page")
	}
	formToken, ok := doc.Find("input[name=_token]").First().Attr("value")
	if !ok || formToken == "" {
		return nil, errs.New(errs.ErrorTypeAuthProtocol, page.StatusCode, "login page has no _token field")
	}

	form := url.Values{}
	form.Set("username", m.credentials.Account)
	form.Set("password", m.credentials.Password)
	form.Set("_token", formToken)

	resp, err := m.transport.Fetch(ctx, loginURL, FetchOptions{
		Method:     http.MethodPost,
		Form:       form,
		Cookies:    page.Cookies,
		Once:       true,
		NoRedirect: true,
	})
	if err != nil {
		if errs.IsType(err, errs.ErrorTypeAuth) {
			return nil, errs.New(errs.ErrorTypeAuth, resp.StatusCode, "login rejected for %s", m.credentials.Account)
		}
		return nil, err
	}

	if match := idTokenPattern.FindSubmatch(resp.Body); match != nil {
		return &Session{Token: string(match[1]), CreatedAt: m.transport.Clock().Now()}, nil
	}
	if cookie := resp.Cookie(SessionCookie); cookie != nil && cookie.Value != "" {
		return &Session{Token: cookie.Value, CreatedAt: m.transport.Clock().Now()}, nil
	}
	return nil, errs.New(errs.ErrorTypeAuthProtocol, resp.StatusCode, "login response carries no session token")
}
