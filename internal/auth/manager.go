// Package auth manages the signed-in session against a Supabase-compatible
// auth service: password sign-in, refresh-token rotation, and best-effort
// sign-out. The token pair is persisted in the assistant home so a restart
// keeps the user signed in.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tristanpfefferle/IA-financial-assistant/internal/storage"
)

const (
	// tokenRefreshWindow is how soon before expiry we refresh the token.
	tokenRefreshWindow = 10 * time.Minute

	// signOutTimeout bounds the server-side revocation call. Sign-out is
	// local-first: the stored session is cleared whatever the server says.
	signOutTimeout = 1500 * time.Millisecond
)

// Manager holds the current session and notifies observers on login-state
// transitions. All methods are safe for concurrent use.
type Manager struct {
	baseURL    string
	anonKey    string
	storePath  string
	httpClient *http.Client

	mu        sync.Mutex
	session   storage.StoredSession
	loggedIn  bool
	listeners []func(loggedIn bool)
}

// NewManager creates a Manager for the given auth service. storePath is where
// the session is persisted; the stored session (if any) is loaded eagerly.
func NewManager(baseURL, anonKey, storePath string) (*Manager, error) {
	m := &Manager{
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		storePath:  storePath,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	session, ok, err := storage.LoadSession(storePath)
	if err != nil {
		return nil, fmt.Errorf("load stored session: %w", err)
	}
	if ok {
		m.session = session
		m.loggedIn = true
	}
	return m, nil
}

// AccessToken returns the current access token. ok is false when signed out.
func (m *Manager) AccessToken() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.loggedIn {
		return "", false
	}
	return m.session.AccessToken, true
}

// Email returns the signed-in user's email, if known.
func (m *Manager) Email() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Email
}

// OnChange registers an observer for login-state transitions. Observers run
// on the caller of the transition; they must not block.
func (m *Manager) OnChange(fn func(loggedIn bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// tokenResponse is the Supabase token grant response shape.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         struct {
		Email string `json:"email"`
	} `json:"user"`
}

// SignIn performs a password grant and persists the resulting session.
func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	resp, err := m.tokenGrant(ctx, "password", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return err
	}
	m.adopt(resp)
	return nil
}

// Refresh rotates the token pair using the stored refresh token.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	refreshToken := m.session.RefreshToken
	m.mu.Unlock()
	if refreshToken == "" {
		return fmt.Errorf("no refresh token; sign in again")
	}

	resp, err := m.tokenGrant(ctx, "refresh_token", map[string]string{
		"refresh_token": refreshToken,
	})
	if err != nil {
		return err
	}
	m.adopt(resp)
	return nil
}

// EnsureFresh refreshes proactively when the access token is expired or about
// to expire. A token whose expiry cannot be parsed is left alone; the server
// stays authoritative and will 401 if needed.
func (m *Manager) EnsureFresh(ctx context.Context) error {
	m.mu.Lock()
	token := m.session.AccessToken
	loggedIn := m.loggedIn
	m.mu.Unlock()
	if !loggedIn || !isTokenExpiringSoon(token, tokenRefreshWindow) {
		return nil
	}
	return m.Refresh(ctx)
}

// SignOut clears the local session immediately and revokes the server-side
// session best effort, bounded by signOutTimeout.
func (m *Manager) SignOut() {
	m.mu.Lock()
	token := m.session.AccessToken
	wasLoggedIn := m.loggedIn
	m.session = storage.StoredSession{}
	m.loggedIn = false
	listeners := append([]func(bool){}, m.listeners...)
	m.mu.Unlock()

	_ = storage.ClearSession(m.storePath)

	if token != "" && m.baseURL != "" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), signOutTimeout)
			defer cancel()
			req, err := http.NewRequestWithContext(ctx, http.MethodPost,
				m.baseURL+"/auth/v1/logout", nil)
			if err != nil {
				return
			}
			m.decorate(req)
			req.Header.Set("Authorization", "Bearer "+token)
			if resp, err := m.httpClient.Do(req); err == nil {
				resp.Body.Close()
			}
		}()
	}

	if wasLoggedIn {
		for _, fn := range listeners {
			fn(false)
		}
	}
}

// adopt installs a fresh token pair, persists it, and notifies observers on a
// signed-out to signed-in transition.
func (m *Manager) adopt(resp *tokenResponse) {
	m.mu.Lock()
	wasLoggedIn := m.loggedIn
	m.session = storage.StoredSession{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		Email:        resp.User.Email,
	}
	m.loggedIn = true
	session := m.session
	listeners := append([]func(bool){}, m.listeners...)
	m.mu.Unlock()

	_ = storage.SaveSession(m.storePath, session)

	if !wasLoggedIn {
		for _, fn := range listeners {
			fn(true)
		}
	}
}

// tokenGrant posts one grant request to the token endpoint.
func (m *Manager) tokenGrant(ctx context.Context, grantType string, fields map[string]string) (*tokenResponse, error) {
	if m.baseURL == "" {
		return nil, fmt.Errorf("auth service not configured")
	}
	body, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal token request: %w", err)
	}

	url := fmt.Sprintf("%s/auth/v1/token?grant_type=%s", m.baseURL, grantType)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	m.decorate(req)

	httpResp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("auth failed (%d): %s", httpResp.StatusCode, grantErrorDetail(raw))
	}

	var resp tokenResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("parse token response: %w", err)
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("auth returned empty token")
	}
	return &resp, nil
}

func (m *Manager) decorate(req *http.Request) {
	if m.anonKey != "" {
		req.Header.Set("apikey", m.anonKey)
	}
}

// grantErrorDetail extracts a human-readable detail from an auth error body.
func grantErrorDetail(raw []byte) string {
	var payload struct {
		ErrorDescription string `json:"error_description"`
		Msg              string `json:"msg"`
		Error            string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		for _, s := range []string{payload.ErrorDescription, payload.Msg, payload.Error} {
			if s != "" {
				return s
			}
		}
	}
	detail := strings.TrimSpace(string(raw))
	if len(detail) > 200 {
		detail = detail[:200]
	}
	if detail == "" {
		detail = "unknown error"
	}
	return detail
}

// tokenExpiresAt returns the expiry timestamp encoded in a JWT (if present).
//
// The signature is not verified. The expiry is only used for client control
// flow such as proactive refresh; server-side verification remains the source
// of truth.
func tokenExpiresAt(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// isTokenExpiringSoon reports whether a token is already expired or will
// expire within the given window.
func isTokenExpiringSoon(token string, window time.Duration) bool {
	exp, ok := tokenExpiresAt(token)
	if !ok {
		// If exp isn't present, don't attempt proactive refresh.
		return false
	}
	return time.Until(exp) <= window
}
