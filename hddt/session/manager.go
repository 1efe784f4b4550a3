// Package session manages the portal login lifecycle: captcha-gated
// authentication, the 12h token cache and fresh per-request-group contexts.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/taxaxion/go-hddt-crawler/hddt"
	"github.com/taxaxion/go-hddt-crawler/hddt/api"
	"github.com/taxaxion/go-hddt-crawler/hddt/captcha"
	"github.com/taxaxion/go-hddt-crawler/hddt/model"
)

var logger = logrus.WithField("component", "hddt.session")

// portal error markers, matched case-insensitively against the message body
const (
	captchaMismatchMessage = "mã captcha không đúng"
	badCredentialsMessage  = "tên đăng nhập hoặc mật khẩu không đúng"
)

// Credentials identify the taxpayer. Immutable per manager.
type Credentials struct {
	TaxCode  string
	Username string
	Password string
}

type Manager struct {
	baseURL  string
	creds    Credentials
	store    TokenStore
	resolver *captcha.Resolver
	attempts int

	mu    sync.RWMutex
	token string

	locks keyedMutex[string]
}

func NewManager(env hddt.Environment, creds Credentials, store TokenStore, solver captcha.Decoder) *Manager {
	return NewManagerWithBaseURL(env.BaseURL(), creds, store, solver)
}

// NewManagerWithBaseURL exists for tests and nonstandard gateways.
func NewManagerWithBaseURL(baseURL string, creds Credentials, store TokenStore, solver captcha.Decoder) *Manager {
	m := &Manager{
		baseURL:  baseURL,
		creds:    creds,
		store:    store,
		attempts: api.DefaultAttempts,
	}
	m.resolver = captcha.NewResolver(m.anonymous, solver)
	return m
}

// Resolver exposes the captcha resolver for unauthenticated lookups.
func (m *Manager) Resolver() *captcha.Resolver {
	return m.resolver
}

func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

func (m *Manager) setToken(token string) {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
}

// anonymous builds a request context without a bearer token, for the captcha
// endpoint and the login call itself.
func (m *Manager) anonymous(timeout time.Duration) *api.Client {
	return api.New(m.baseURL, api.Options{
		Timeout: timeout,
		Headers: Fingerprint(),
	})
}

// Fresh builds an authenticated request context: new transport, new cookie
// jar, new fingerprint, current bearer token. Call it before every distinct
// request group; stale combinations trigger portal rejections.
func (m *Manager) Fresh(timeout time.Duration) *api.Client {
	return api.New(m.baseURL, api.Options{
		Timeout: timeout,
		Token:   m.Token(),
		Headers: Fingerprint(),
	})
}

// CheckToken reuses a cached unexpired token for the tax code or performs a
// login and persists the new token with expiry now + 12h. Serialized per tax
// code so concurrent runs log in at most once.
func (m *Manager) CheckToken(ctx context.Context) error {
	m.locks.Lock(m.creds.TaxCode)
	defer m.locks.Unlock(m.creds.TaxCode)

	if token, ok, err := m.store.Get(m.creds.TaxCode); err != nil {
		return err
	} else if ok {
		logger.Debug("reusing cached token")
		m.setToken(token.Value)
		return nil
	}

	value, err := m.Login(ctx)
	if err != nil {
		return err
	}
	m.setToken(value)

	token := Token{Value: value, ExpiresAt: time.Now().Add(TokenTTL)}
	if err := m.store.Put(m.creds.TaxCode, token); err != nil {
		logger.WithError(err).Warn("could not persist token")
	}
	return nil
}

// Invalidate discards the cached token after the portal rejected a request
// as unauthenticated.
func (m *Manager) Invalidate() {
	m.setToken("")
	if err := m.store.Delete(m.creds.TaxCode); err != nil {
		logger.WithError(err).Warn("could not delete cached token")
	}
}

// Login resolves a captcha challenge and submits it with the credentials.
// Captcha mismatches are retried with a fresh challenge inside the attempt
// budget; credential rejections are surfaced immediately and never retried.
func (m *Manager) Login(ctx context.Context) (string, error) {
	var last error

	for attempt := 1; attempt <= m.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		ch, err := m.resolver.FetchAndResolve(ctx)
		if err != nil {
			logger.WithError(err).Debugf("captcha resolution failed, attempt %d/%d", attempt, m.attempts)
			last = err
			continue
		}

		req := model.LoginRequest{
			CKey:     ch.Key,
			CValue:   ch.Value,
			Username: m.creds.Username,
			Password: m.creds.Password,
		}

		var res model.LoginResponse
		err = m.anonymous(0).PostJSON(ctx, hddt.LoginPath, req, &res)
		if err == nil {
			if res.Token == "" {
				return "", &api.ParseError{Op: hddt.LoginPath, Cause: errors.New("login response without token")}
			}
			logger.Info("login succeeded")
			return res.Token, nil
		}

		var req2 *api.RequestError
		if errors.As(err, &req2) {
			msg := strings.ToLower(strings.TrimSpace(req2.Message))
			if strings.Contains(msg, badCredentialsMessage) {
				return "", api.ErrInvalidCredentials
			}
			if strings.Contains(msg, captchaMismatchMessage) {
				last = &api.CaptchaError{Message: req2.Message}
				logger.Debugf("captcha rejected, attempt %d/%d", attempt, m.attempts)
				continue
			}
		}
		last = err
	}
	return "", last
}
