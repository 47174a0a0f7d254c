package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/toxitrace/toxitrace/internal/models"
	"github.com/toxitrace/toxitrace/internal/navigation"
	"github.com/toxitrace/toxitrace/internal/storage"
)

// Authenticator performs the remote login and registration calls
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*models.AuthResponse, error)
	Register(ctx context.Context, form models.RegisterForm) (*models.AuthResponse, error)
}

// Snapshot is an immutable copy of the session state
type Snapshot struct {
	User    *models.User
	Token   string
	Loading bool
}

// IsAuthenticated is true iff both a user and a token are present
func (s Snapshot) IsAuthenticated() bool {
	return s.User != nil && s.Token != ""
}

// Role returns the user's role, or "" without a user
func (s Snapshot) Role() models.Role {
	if s.User == nil {
		return ""
	}
	return s.User.Role
}

// ExpiresAt reports the token expiry when the token is a JWT
func (s Snapshot) ExpiresAt() (time.Time, bool) {
	return TokenExpiry(s.Token)
}

// RegisterOptions controls what happens after a successful registration
type RegisterOptions struct {
	// LandingRoute is navigated to on success. Leave empty when the caller
	// continues with its own flow (e.g. onboarding).
	LandingRoute string
}

// Store is the single source of truth for the signed-in identity. It is
// safe for concurrent use.
type Store struct {
	storage storage.Storage
	auth    Authenticator
	nav     navigation.Navigator
	logger  zerolog.Logger

	mu      sync.Mutex
	user    *models.User
	token   string
	loading bool
	busy    bool
	closed  bool
	subs    map[int]func(Snapshot)
	nextSub int
}

// Option configures a Store
type Option func(*Store)

// WithNavigator sets where login, logout and expiry navigate
func WithNavigator(nav navigation.Navigator) Option {
	return func(s *Store) { s.nav = nav }
}

// WithLogger sets the store logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates an empty store. It reports Loading until Hydrate runs.
func New(st storage.Storage, auth Authenticator, opts ...Option) *Store {
	s := &Store{
		storage: st,
		auth:    auth,
		nav:     navigation.Discard,
		logger:  zerolog.Nop(),
		loading: true,
		subs:    make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hydrate restores the session persisted in storage. It never fails: a
// missing, unreadable or malformed session leaves the store signed out.
// Loading is false when Hydrate returns.
func (s *Store) Hydrate() {
	user, token := s.readStored()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.user = user
	s.token = token
	if user == nil {
		s.token = ""
	}
	// An in-flight login owns the flag and clears it itself
	if !s.busy {
		s.loading = false
	}
	s.mu.Unlock()

	s.notify()
}

func (s *Store) readStored() (*models.User, string) {
	token, ok, err := s.storage.Get(storage.KeyAccessToken)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read stored access token")
		return nil, ""
	}
	if !ok || token == "" {
		return nil, ""
	}

	raw, ok, err := s.storage.Get(storage.KeyUser)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read stored user")
		return nil, ""
	}
	if !ok || raw == "" {
		return nil, ""
	}

	var user *models.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil || user == nil {
		s.logger.Warn().Err(err).Msg("Ignoring malformed stored session")
		return nil, ""
	}
	return user, token
}

// Login authenticates against the backend. When portal is doctor or epa the
// account's role must be allowed into that portal; otherwise nothing is
// stored and an *AuthError is returned. On success the session is persisted
// before navigating to the portal's landing route.
func (s *Store) Login(ctx context.Context, email, password string, portal Portal) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.finish()

	resp, err := s.auth.Login(ctx, email, password)
	if err != nil {
		s.logger.Debug().Err(err).Str("portal", string(portal)).Msg("Login failed")
		return loginFailure(err)
	}
	if err := checkAuthResponse(resp); err != nil {
		s.logger.Warn().Err(err).Msg("Login response rejected")
		return fmt.Errorf("%s: %w", loginFallback, err)
	}

	if err := portal.Authorize(resp.User.Role); err != nil {
		s.logger.Info().Str("role", string(resp.User.Role)).Str("portal", string(portal)).Msg("Login rejected by portal role check")
		return err
	}

	if err := s.commit(resp); err != nil {
		return err
	}

	s.logger.Info().Str("user_id", resp.User.ID).Str("role", string(resp.User.Role)).Msg("Logged in")
	s.nav.Navigate(portal.LandingRoute())
	return nil
}

// Register validates form, creates the account and stores the session.
// Navigation happens only when opts.LandingRoute is set.
func (s *Store) Register(ctx context.Context, form models.RegisterForm, opts RegisterOptions) error {
	if err := form.Validate(); err != nil {
		return err
	}

	if err := s.begin(); err != nil {
		return err
	}
	defer s.finish()

	resp, err := s.auth.Register(ctx, form)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Registration failed")
		return registerFailure(err)
	}
	if err := checkAuthResponse(resp); err != nil {
		s.logger.Warn().Err(err).Msg("Registration response rejected")
		return fmt.Errorf("%s: %w", registerFallback, err)
	}

	if err := s.commit(resp); err != nil {
		return err
	}

	s.logger.Info().Str("user_id", resp.User.ID).Msg("Registered")
	if opts.LandingRoute != "" {
		s.nav.Navigate(opts.LandingRoute)
	}
	return nil
}

// Logout clears the session locally and navigates home. No server call is
// made. Memory is always cleared; storage errors are returned.
func (s *Store) Logout() error {
	err := s.clear()
	s.logger.Info().Msg("Logged out")
	s.nav.Navigate(navigation.RouteHome)
	return err
}

// Expire clears the session after the backend rejected the token and
// navigates to the login page
func (s *Store) Expire() {
	if err := s.clear(); err != nil {
		s.logger.Error().Err(err).Msg("Failed to clear expired session from storage")
	}
	s.logger.Warn().Msg("Session expired")
	s.nav.Navigate(navigation.RouteLogin)
}

// Snapshot returns a copy of the current state
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{Token: s.token, Loading: s.loading}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

// User returns a copy of the signed-in user, or nil
func (s *Store) User() *models.User {
	return s.Snapshot().User
}

// Token returns the bearer token, or ""
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Loading reports whether hydration or an auth call is in flight
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// IsAuthenticated is true iff both a user and a token are present
func (s *Store) IsAuthenticated() bool {
	return s.Snapshot().IsAuthenticated()
}

// Subscribe registers fn to run after every state change. fn runs outside
// the store lock and may call back into the store.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Close drops every subscriber and releases the storage backend
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.subs = nil
	s.mu.Unlock()

	return storage.Close(s.storage)
}

// begin marks an auth operation in flight
func (s *Store) begin() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.busy {
		s.mu.Unlock()
		return ErrAuthInProgress
	}
	s.busy = true
	s.loading = true
	s.mu.Unlock()

	s.notify()
	return nil
}

// finish ends the operation started by begin
func (s *Store) finish() {
	s.mu.Lock()
	s.busy = false
	s.loading = false
	s.mu.Unlock()

	s.notify()
}

// commit persists the session and then publishes it in memory. A storage
// failure leaves both storage and memory without a session.
func (s *Store) commit(resp *models.AuthResponse) error {
	userJSON, err := json.Marshal(resp.User)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}

	if err := s.storage.Set(storage.KeyAccessToken, resp.AccessToken); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	if err := s.storage.Set(storage.KeyUser, string(userJSON)); err != nil {
		if rmErr := s.storage.Remove(storage.KeyAccessToken); rmErr != nil {
			s.logger.Error().Err(rmErr).Msg("Failed to roll back stored access token")
		}
		return fmt.Errorf("failed to save session: %w", err)
	}

	user := *resp.User
	s.mu.Lock()
	s.user = &user
	s.token = resp.AccessToken
	s.mu.Unlock()

	s.notify()
	return nil
}

// checkAuthResponse rejects a 2xx body that cannot form a session
func checkAuthResponse(resp *models.AuthResponse) error {
	switch {
	case resp == nil:
		return fmt.Errorf("%w: empty body", ErrMalformedAuthResponse)
	case resp.AccessToken == "":
		return fmt.Errorf("%w: missing access_token", ErrMalformedAuthResponse)
	case resp.User == nil:
		return fmt.Errorf("%w: missing user", ErrMalformedAuthResponse)
	case resp.User.ID == "" || resp.User.Role == "":
		return fmt.Errorf("%w: user without id or role", ErrMalformedAuthResponse)
	}
	return nil
}

// clear drops the session from memory and storage
func (s *Store) clear() error {
	s.mu.Lock()
	s.user = nil
	s.token = ""
	s.mu.Unlock()

	s.notify()

	return errors.Join(
		s.storage.Remove(storage.KeyAccessToken),
		s.storage.Remove(storage.KeyUser),
	)
}

func (s *Store) notify() {
	s.mu.Lock()
	snap := s.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}
