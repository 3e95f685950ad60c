// Package session owns the authenticated session: token lifecycle, the
// cached profile, and the epoch counter other components use to discard
// responses that resolve after the session they were issued under is gone.
package session

import (
	"context"
	"log/slog"
	"net/url"
	"sync"

	"teamtask/internal/metrics"
	"teamtask/internal/model"
	"teamtask/internal/remote"
)

// Session is the authenticated client's token plus cached profile.
type Session struct {
	Token string
	User  model.User
}

// AuthError is a failed authentication. Reason carries the remote-provided
// detail when the service supplied one.
type AuthError struct {
	Reason string
	cause  error
}

func (e *AuthError) Error() string {
	return e.Reason
}

func (e *AuthError) Unwrap() error {
	return e.cause
}

// Storage persists the session across process restarts. *state.Store
// satisfies it.
type Storage interface {
	SaveSession(token string, user model.User) error
	LoadSession() (string, model.User, bool)
	ClearSession() error
}

// Manager owns the session. It also constructs the remote gateway, because
// the gateway reads the bearer token back from the manager at each call's
// dispatch time.
type Manager struct {
	client  *remote.Client
	storage Storage
	metrics *metrics.Metrics

	mu      sync.Mutex
	current *Session
	epoch   uint64
}

// NewManager creates a session manager and the remote gateway bound to it.
// httpClient may be nil for the default transport; storage may be nil for a
// purely in-memory session.
func NewManager(baseURL string, httpClient remote.HTTPClient, storage Storage, m *metrics.Metrics) *Manager {
	mgr := &Manager{storage: storage, metrics: m}
	mgr.client = remote.NewClient(baseURL, httpClient, mgr, m)
	return mgr
}

// Gateway returns the authorized-request gateway every other component
// issues calls through.
func (m *Manager) Gateway() *remote.Client {
	return m.client
}

// Token yields the current bearer token, if a session exists. Called by the
// gateway at dispatch time.
func (m *Manager) Token() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return "", false
	}
	return m.current.Token, true
}

// Current returns a copy of the active session, or nil.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	s := *m.current
	return &s
}

// Epoch returns the session generation. It moves whenever the session
// identity changes: login, logout, restore, profile refresh.
func (m *Manager) Epoch() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}

// Login exchanges credentials for a token, fetches the profile, and persists
// the resulting session.
func (m *Manager) Login(ctx context.Context, email, password string) (*Session, error) {
	if email == "" {
		return nil, model.Required("email")
	}
	if password == "" {
		return nil, model.Required("password")
	}

	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := m.client.PostForm(ctx, "/users/login", form, &tokenResp); err != nil {
		m.metrics.IncAuthFailure("login")
		return nil, &AuthError{
			Reason: remote.Detail(err, "Login failed. Please check your credentials."),
			cause:  err,
		}
	}
	if tokenResp.AccessToken == "" {
		m.metrics.IncAuthFailure("login")
		return nil, &AuthError{Reason: "login response carried no token"}
	}

	// Install the token provisionally so the profile fetch is authorized,
	// rolling back if the fetch fails.
	m.mu.Lock()
	m.current = &Session{Token: tokenResp.AccessToken}
	m.mu.Unlock()

	var user model.User
	if err := m.client.Get(ctx, "/users/me", &user); err != nil {
		m.mu.Lock()
		m.current = nil
		m.mu.Unlock()
		m.metrics.IncAuthFailure("profile")
		return nil, &AuthError{
			Reason: remote.Detail(err, "Login failed. Please check your credentials."),
			cause:  err,
		}
	}

	m.mu.Lock()
	m.current = &Session{Token: tokenResp.AccessToken, User: user}
	m.epoch++
	s := *m.current
	m.mu.Unlock()

	m.persist(s)
	slog.Debug("session established", "user_id", user.ID, "role", user.Role)
	return &s, nil
}

// RegisterInput is the self-registration form.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	TeamID   *int
}

// Register creates an account. It does not log the user in, and the role is
// always "user"; the service enforces that too.
func (m *Manager) Register(ctx context.Context, in RegisterInput) error {
	if in.Name == "" {
		return model.Required("name")
	}
	if in.Email == "" {
		return model.Required("email")
	}
	if in.Password == "" {
		return model.Required("password")
	}

	body := map[string]any{
		"name":     in.Name,
		"email":    in.Email,
		"password": in.Password,
		"role":     model.RoleUser,
	}
	if in.TeamID != nil {
		body["team_id"] = *in.TeamID
	}

	if err := m.client.Post(ctx, "/users/register", body, nil); err != nil {
		return &AuthError{Reason: remote.Detail(err, "Registration failed."), cause: err}
	}
	return nil
}

// Restore rebuilds the session from persisted storage without a network
// call. Absent or corrupt state yields nil.
func (m *Manager) Restore() *Session {
	if m.storage == nil {
		return nil
	}
	token, user, ok := m.storage.LoadSession()
	if !ok {
		return nil
	}

	m.mu.Lock()
	m.current = &Session{Token: token, User: user}
	m.epoch++
	s := *m.current
	m.mu.Unlock()
	return &s
}

// Logout clears the in-memory and persisted session unconditionally.
func (m *Manager) Logout() {
	m.mu.Lock()
	m.current = nil
	m.epoch++
	m.mu.Unlock()

	if m.storage != nil {
		if err := m.storage.ClearSession(); err != nil {
			slog.Warn("failed to clear persisted session", "error", err)
		}
	}
}

// Invalidate drops a session the service no longer accepts. Same effect as
// Logout; the separate name keeps call sites honest about why.
func (m *Manager) Invalidate() {
	m.Logout()
}

// RefreshProfile re-fetches the profile and updates the in-memory and
// persisted snapshots. Used after invite acceptance, when team membership
// has changed under the session.
func (m *Manager) RefreshProfile(ctx context.Context) (*model.User, error) {
	m.mu.Lock()
	if m.current == nil {
		m.mu.Unlock()
		return nil, &AuthError{Reason: "no active session"}
	}
	token := m.current.Token
	m.mu.Unlock()

	var user model.User
	if err := m.client.Get(ctx, "/users/me", &user); err != nil {
		return nil, err
	}

	m.mu.Lock()
	// The session may have been cleared while the refresh was in flight.
	if m.current == nil || m.current.Token != token {
		m.mu.Unlock()
		m.metrics.IncStaleDiscard("session")
		return nil, &AuthError{Reason: "session changed during profile refresh"}
	}
	m.current.User = user
	m.epoch++
	s := *m.current
	m.mu.Unlock()

	m.persist(s)
	return &user, nil
}

func (m *Manager) persist(s Session) {
	if m.storage == nil {
		return
	}
	if err := m.storage.SaveSession(s.Token, s.User); err != nil {
		slog.Warn("failed to persist session", "error", err)
	}
}
