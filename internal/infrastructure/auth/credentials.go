// Package auth acquires and caches the short-lived service-to-service
// credential the fetch-through path presents to the reference registry.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/flightdeck/backend/internal/domain/shared"
)

const loginPath = "/api/v1/auth/login"

// defaultSafetyMargin defends against clock skew and in-flight request
// latency: a token within this margin of expiry is treated as expired.
const defaultSafetyMargin = 30 * time.Second

// Credential is a bearer token and its expiry. It lives only in process
// memory and is replaced wholesale on refresh.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

// Valid reports whether the credential can still be presented, leaving the
// safety margin before the hard expiry.
func (c Credential) Valid(now time.Time, margin time.Duration) bool {
	return c.Token != "" && now.Before(c.ExpiresAt.Add(-margin))
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int64  `json:"expiresIn"` // milliseconds
}

// CredentialManagerOption is a functional option for CredentialManager
type CredentialManagerOption func(*CredentialManager)

// WithHTTPClient replaces the HTTP client used for the login exchange.
func WithHTTPClient(client *http.Client) CredentialManagerOption {
	return func(m *CredentialManager) {
		m.httpClient = client
	}
}

// WithSafetyMargin overrides the expiry safety margin.
func WithSafetyMargin(margin time.Duration) CredentialManagerOption {
	return func(m *CredentialManager) {
		m.safetyMargin = margin
	}
}

// WithClock replaces the time source (for testing).
func WithClock(now func() time.Time) CredentialManagerOption {
	return func(m *CredentialManager) {
		m.now = now
	}
}

// CredentialManager performs the login exchange against the registry's auth
// endpoint and caches the resulting credential until it nears expiry. The
// refresh path is a critical section: concurrent callers racing on an expired
// token trigger exactly one login, and all of them receive its result.
type CredentialManager struct {
	baseURL      string
	username     string
	password     string
	safetyMargin time.Duration
	httpClient   *http.Client
	logger       *zap.Logger
	now          func() time.Time

	mu      sync.Mutex
	current Credential
}

// NewCredentialManager creates a manager for the given registry endpoint.
func NewCredentialManager(baseURL, username, password string, timeout time.Duration, logger *zap.Logger, opts ...CredentialManagerOption) *CredentialManager {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	m := &CredentialManager{
		baseURL:      baseURL,
		username:     username,
		password:     password,
		safetyMargin: defaultSafetyMargin,
		httpClient:   &http.Client{Timeout: timeout},
		logger:       logger,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Token returns a valid bearer token, refreshing it first when the cached one
// is missing or inside the safety margin. A failed refresh returns an error
// wrapping shared.ErrAuthFailure; callers must treat that as an
// authentication failure, never proceed unauthenticated.
func (m *CredentialManager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.Valid(m.now(), m.safetyMargin) {
		return m.current.Token, nil
	}

	cred, err := m.login(ctx)
	if err != nil {
		m.logger.Warn("credential refresh failed", zap.Error(err))
		return "", fmt.Errorf("%w: %v", shared.ErrAuthFailure, err)
	}

	m.current = cred
	m.logger.Debug("credential refreshed",
		zap.Time("expires_at", cred.ExpiresAt),
	)
	return cred.Token, nil
}

// Invalidate discards the cached credential so the next Token call performs a
// fresh login. Called when the registry rejects a token early.
func (m *CredentialManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = Credential{}
}

// login performs the credential exchange. Must be called with mu held.
func (m *CredentialManager) login(ctx context.Context) (Credential, error) {
	body, err := json.Marshal(loginRequest{Username: m.username, Password: m.password})
	if err != nil {
		return Credential{}, fmt.Errorf("failed to encode login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+loginPath, bytes.NewReader(body))
	if err != nil {
		return Credential{}, fmt.Errorf("failed to build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return Credential{}, fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return Credential{}, fmt.Errorf("login rejected with status %d", resp.StatusCode)
	}

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return Credential{}, fmt.Errorf("failed to decode login response: %w", err)
	}
	if lr.AccessToken == "" {
		return Credential{}, fmt.Errorf("login response carried no access token")
	}

	expiresAt, err := m.expiryOf(lr)
	if err != nil {
		return Credential{}, err
	}

	return Credential{Token: lr.AccessToken, ExpiresAt: expiresAt}, nil
}

// expiryOf derives the credential expiry from the login response, falling
// back to the JWT exp claim when the response omits expiresIn. A token whose
// expiry cannot be determined is rejected rather than cached forever.
func (m *CredentialManager) expiryOf(lr loginResponse) (time.Time, error) {
	if lr.ExpiresIn > 0 {
		return m.now().Add(time.Duration(lr.ExpiresIn) * time.Millisecond), nil
	}

	claims := jwt.MapClaims{}
	// The registry signed this token for us to present back to it; we only
	// need the exp claim, not signature verification.
	if _, _, err := jwt.NewParser().ParseUnverified(lr.AccessToken, claims); err != nil {
		return time.Time{}, fmt.Errorf("login response carried no expiry and token is not a JWT: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, fmt.Errorf("login response carried no determinable expiry")
	}
	return exp.Time, nil
}
