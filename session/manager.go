package session

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/matchday-app/matchday-go/api"
	"github.com/matchday-app/matchday-go/tokenstore"
	"github.com/matchday-app/matchday-go/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	loginPath    = "/auth/login"
	registerPath = "/auth/register"
	logoutPath   = "/auth/logout"
	mePath       = "/auth/me"
	usersPath    = "/users/"
)

// Shown when a failed operation carries no server-provided message.
const genericErrorMessage = "Something went wrong. Please try again."

const sessionExpiredMessage = "Your session has expired. Please log in again."

// Manager is the single source of truth for "is the user authenticated". It
// owns the token store: no other component writes to it, and every transition
// (login, logout, restore, refresh exhaustion, account deletion) flows through
// here. Subscribers are notified on every state change, which is how the
// realtime channel follows the session lifecycle.
type Manager struct {
	api   *api.Client
	store tokenstore.Store
	log   zerolog.Logger

	lock      sync.Mutex
	status    Status
	user      *users.UserSummary
	lastErr   string
	subs      map[int]func(Snapshot)
	nextSubID int
}

type ManagerOption func(*Manager)

func WithLogger(log zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.log = log
	}
}

func New(apiClient *api.Client, store tokenstore.Store, options ...ManagerOption) *Manager {
	m := &Manager{
		api:    apiClient,
		store:  store,
		log:    zerolog.Nop(),
		status: StatusUnauthenticated,
		subs:   make(map[int]func(Snapshot)),
	}
	for _, opt := range options {
		opt(m)
	}
	apiClient.OnSessionInvalidated(m.sessionInvalidated)
	return m
}

// Snapshot returns the current session state.
func (m *Manager) Snapshot() Snapshot {
	m.lock.Lock()
	defer m.lock.Unlock()
	return Snapshot{Status: m.status, User: m.user, Err: m.lastErr}
}

// Subscribe registers a state-change listener and immediately delivers the
// current snapshot. The returned function removes the listener.
func (m *Manager) Subscribe(fn func(Snapshot)) func() {
	m.lock.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subs[id] = fn
	current := Snapshot{Status: m.status, User: m.user, Err: m.lastErr}
	m.lock.Unlock()

	fn(current)
	return func() {
		m.lock.Lock()
		defer m.lock.Unlock()
		delete(m.subs, id)
	}
}

// Restore hydrates the session from the token store without any network call.
// The persisted tokens are trusted as-is; a revoked token is only discovered
// when the first API call 401s and the refresh protocol runs.
func (m *Manager) Restore(ctx context.Context) error {
	accessToken, err := m.get(ctx, tokenstore.KeyAccessToken)
	if err != nil {
		return err
	}
	refreshToken, err := m.get(ctx, tokenstore.KeyRefreshToken)
	if err != nil {
		return err
	}
	userJSON, err := m.get(ctx, tokenstore.KeyUser)
	if err != nil {
		return err
	}
	if accessToken == "" || refreshToken == "" || userJSON == "" {
		m.setState(StatusUnauthenticated, nil, "")
		return nil
	}

	var user users.UserSummary
	if err := json.Unmarshal([]byte(userJSON), &user); err != nil {
		m.log.Warn().Err(err).Msg("cached user is unreadable, discarding session")
		if err := m.store.Clear(ctx, tokenstore.SessionKeys...); err != nil {
			m.log.Error().Err(err).Msg("failed to clear corrupt session")
		}
		m.setState(StatusUnauthenticated, nil, "")
		return nil
	}

	m.logTokenWindow(accessToken)
	m.setState(StatusAuthenticated, &user, "")
	return nil
}

type loginResponse struct {
	AccessToken  string             `json:"accessToken"`
	RefreshToken string             `json:"refreshToken"`
	User         *users.UserSummary `json:"user"`
}

// Login authenticates against /auth/login and persists the returned session.
// A response that omits either token or the user is treated as a failure even
// when the HTTP status reports success.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	m.setState(StatusAuthenticating, nil, "")

	var resp loginResponse
	creds := map[string]string{"email": email, "password": password}
	if err := m.api.Do(ctx, http.MethodPost, loginPath, creds, &resp); err != nil {
		m.setState(StatusUnauthenticated, nil, displayMessage(err))
		return err
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" || resp.User == nil {
		m.setState(StatusUnauthenticated, nil, genericErrorMessage)
		return errors.New("[Manager.Login] response missing token pair or user")
	}

	if err := m.persistSession(ctx, resp.AccessToken, resp.RefreshToken, resp.User); err != nil {
		m.setState(StatusUnauthenticated, nil, genericErrorMessage)
		return err
	}
	m.setState(StatusAuthenticated, resp.User, "")
	m.log.Info().Str("userID", resp.User.ID).Msg("logged in")
	return nil
}

type registerResponse struct {
	User *users.UserSummary `json:"user"`
}

// Register creates an account. It does not authenticate: the caller routes to
// the login flow with the returned user.
func (m *Manager) Register(ctx context.Context, req RegisterRequest) (*users.UserSummary, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	contentType, body, err := req.encode()
	if err != nil {
		return nil, err
	}
	var resp registerResponse
	if err := m.api.DoMultipart(ctx, http.MethodPost, registerPath, contentType, body, &resp); err != nil {
		m.surfaceError(err)
		return nil, err
	}
	return resp.User, nil
}

// Logout notifies the server best-effort and unconditionally clears local
// session state: whatever the network outcome, the user ends up logged out.
func (m *Manager) Logout(ctx context.Context) {
	if err := m.api.Do(ctx, http.MethodPost, logoutPath, nil, nil); err != nil {
		m.log.Warn().Err(err).Msg("logout request failed, clearing local session anyway")
	}
	m.clearSession(ctx, StatusUnauthenticated, "")
}

// DeleteAccount removes the account server-side, then applies logout
// semantics regardless of the outcome.
func (m *Manager) DeleteAccount(ctx context.Context) error {
	err := m.api.Do(ctx, http.MethodDelete, mePath, nil, nil)
	m.clearSession(ctx, StatusUnauthenticated, "")
	if err != nil {
		m.surfaceError(err)
		return errors.Wrap(err, "[Manager.DeleteAccount]")
	}
	m.log.Info().Msg("account deleted")
	return nil
}

// UpdateProfile sends a multipart PUT and replaces the cached user with the
// server's response wholesale, re-persisting it so a later Restore reflects
// the update.
func (m *Manager) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*users.UserSummary, error) {
	contentType, body, err := update.encode()
	if err != nil {
		return nil, err
	}
	var updated users.UserSummary
	if err := m.api.DoMultipart(ctx, http.MethodPut, usersPath+userID, contentType, body, &updated); err != nil {
		m.surfaceError(err)
		return nil, err
	}
	if err := m.replaceUser(ctx, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Me fetches the authoritative profile from /auth/me and replaces the cached
// user.
func (m *Manager) Me(ctx context.Context) (*users.UserSummary, error) {
	var user users.UserSummary
	if err := m.api.Do(ctx, http.MethodGet, mePath, nil, &user); err != nil {
		m.surfaceError(err)
		return nil, err
	}
	if err := m.replaceUser(ctx, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// MarkOnboardingSeen persists the onboarding flag. It survives logout: only
// session keys are cleared on session end.
func (m *Manager) MarkOnboardingSeen(ctx context.Context) error {
	return m.store.Set(ctx, tokenstore.KeyOnboardingSeen, "true")
}

func (m *Manager) OnboardingSeen(ctx context.Context) bool {
	value, err := m.store.Get(ctx, tokenstore.KeyOnboardingSeen)
	return err == nil && value == "true"
}

// sessionInvalidated runs after the API client has exhausted the refresh
// protocol and cleared the stored tokens.
func (m *Manager) sessionInvalidated() {
	m.log.Warn().Msg("session invalidated by refresh failure")
	m.setState(StatusRefreshFailed, nil, sessionExpiredMessage)
}

func (m *Manager) persistSession(ctx context.Context, accessToken, refreshToken string, user *users.UserSummary) error {
	userJSON, err := json.Marshal(user)
	if err != nil {
		return errors.Wrap(err, "[Manager.persistSession] marshal user")
	}
	if err := m.store.SetTokens(ctx, accessToken, refreshToken); err != nil {
		return errors.Wrap(err, "[Manager.persistSession] persist tokens")
	}
	if err := m.store.Set(ctx, tokenstore.KeyUser, string(userJSON)); err != nil {
		// Roll back so a later Restore does not see a session missing its
		// user.
		if clearErr := m.store.Clear(ctx, tokenstore.SessionKeys...); clearErr != nil {
			m.log.Error().Err(clearErr).Msg("rollback after partial session write failed")
		}
		return errors.Wrap(err, "[Manager.persistSession] persist user")
	}
	return nil
}

func (m *Manager) replaceUser(ctx context.Context, user *users.UserSummary) error {
	userJSON, err := json.Marshal(user)
	if err != nil {
		return errors.Wrap(err, "[Manager.replaceUser] marshal user")
	}
	if err := m.store.Set(ctx, tokenstore.KeyUser, string(userJSON)); err != nil {
		return errors.Wrap(err, "[Manager.replaceUser] persist user")
	}
	m.lock.Lock()
	m.user = user
	snapshot := Snapshot{Status: m.status, User: m.user, Err: m.lastErr}
	subs := m.copySubs()
	m.lock.Unlock()
	notify(subs, snapshot)
	return nil
}

func (m *Manager) clearSession(ctx context.Context, status Status, errMsg string) {
	if err := m.store.Clear(ctx, tokenstore.SessionKeys...); err != nil {
		// Local state still transitions: the user must never remain
		// authenticated after logout.
		m.log.Error().Err(err).Msg("failed to clear session keys")
	}
	m.setState(status, nil, errMsg)
}

func (m *Manager) get(ctx context.Context, key string) (string, error) {
	value, err := m.store.Get(ctx, key)
	if errors.Is(err, tokenstore.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", &api.StorageError{Err: err}
	}
	return value, nil
}

func (m *Manager) setState(status Status, user *users.UserSummary, errMsg string) {
	m.lock.Lock()
	m.status = status
	m.user = user
	m.lastErr = errMsg
	snapshot := Snapshot{Status: m.status, User: m.user, Err: m.lastErr}
	subs := m.copySubs()
	m.lock.Unlock()
	notify(subs, snapshot)
}

// surfaceError records a display message for a failed operation. Session
// invalidation is excluded: the invalidation callback has already transitioned
// the state and set its own message.
func (m *Manager) surfaceError(err error) {
	if errors.Is(err, api.ErrSessionInvalidated) {
		return
	}
	m.setError(displayMessage(err))
}

func (m *Manager) setError(errMsg string) {
	m.lock.Lock()
	m.lastErr = errMsg
	snapshot := Snapshot{Status: m.status, User: m.user, Err: m.lastErr}
	subs := m.copySubs()
	m.lock.Unlock()
	notify(subs, snapshot)
}

func (m *Manager) copySubs() []func(Snapshot) {
	subs := make([]func(Snapshot), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	return subs
}

func notify(subs []func(Snapshot), snapshot Snapshot) {
	for _, fn := range subs {
		fn(snapshot)
	}
}

// logTokenWindow records how long the restored access token claims to be
// valid. Parsing is unverified and purely informational; the token is trusted
// regardless and checked for real on the first API call.
func (m *Manager) logTokenWindow(accessToken string) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return
	}
	m.log.Debug().Time("expiresAt", exp.Time).Msg("restored session optimistically")
}

func displayMessage(err error) string {
	if msg := api.ServerMessage(err); msg != "" {
		return msg
	}
	return genericErrorMessage
}
