package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrEthical07/moodjournal/internal/events"
	"github.com/MrEthical07/moodjournal/internal/metrics"
	"go.uber.org/zap"
)

// Backend performs the network calls behind session transitions.
type Backend interface {
	Login(ctx context.Context, req LoginRequest) (User, Credentials, error)
	Logout(ctx context.Context, c Credentials) error
	Refresh(ctx context.Context, c Credentials) (User, Credentials, error)
	Me(ctx context.Context) (User, error)
}

// Emitter receives session events. *events.Dispatcher satisfies it.
type Emitter interface {
	Emit(ctx context.Context, event events.Event)
}

// Options configures a Manager. The zero value is usable.
type Options struct {
	// ProbeWithoutCredentials makes Init call the identity endpoint even when
	// no credentials are persisted, as the cookie scheme requires.
	ProbeWithoutCredentials bool
	// StoreTimeout bounds store deletes issued by Clear. Defaults to 5s.
	StoreTimeout time.Duration
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
	Events       Emitter
}

// Manager is the session state holder. Create one per client and share it
// between the request pipeline, guards and callers.
type Manager struct {
	backend Backend
	store   TokenStore
	opts    Options
	logger  *zap.Logger

	mu      sync.RWMutex
	state   State
	creds   Credentials
	epoch   uint64
	changed chan struct{}

	// storeMu orders store writes against deletes; see persist.
	storeMu sync.Mutex
}

// NewManager returns a Manager in StatusUnknown. A nil store means an in-memory store.
func NewManager(backend Backend, store TokenStore, opts Options) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Manager{
		backend: backend,
		store:   store,
		opts:    opts,
		logger:  logger.Named("session"),
		state:   State{Status: StatusUnknown},
		changed: make(chan struct{}),
	}
}

// Init resolves the initial StatusUnknown state. Without persisted credentials
// (and without ProbeWithoutCredentials) it resolves to StatusUnauthenticated
// with no network call; otherwise the identity endpoint decides. A failed
// check never leaves the state unknown.
func (m *Manager) Init(ctx context.Context) State {
	creds, err := m.store.Load(ctx)
	if err != nil && !errors.Is(err, ErrNoCredentials) {
		m.logger.Warn("load stored credentials", zap.Error(err))
	}

	if m.backend == nil || (creds.Empty() && !m.opts.ProbeWithoutCredentials) {
		m.resolveUnauthenticated()
		return m.State()
	}

	m.mu.Lock()
	if m.state.Status == StatusUnknown {
		m.creds = creds
	}
	m.mu.Unlock()

	user, err := m.backend.Me(ctx)
	if err != nil {
		m.logger.Info("initial session check failed", zap.Error(err))
		m.resolveUnauthenticated()
		return m.State()
	}

	m.mu.Lock()
	m.publishLocked(authenticated(user))
	m.mu.Unlock()

	m.emit(ctx, events.Event{Type: events.TypeRestored, UserID: user.ID, Success: true})
	return m.State()
}

// Login authenticates and, on success, moves to StatusAuthenticated. The user
// is read back with CurrentUser. On failure the state is untouched and the
// error is an *AuthError.
func (m *Manager) Login(ctx context.Context, req LoginRequest) error {
	if m.backend == nil {
		return ErrNoBackend
	}

	user, creds, err := m.backend.Login(ctx, req)
	if err != nil {
		authErr := classify(err)
		m.opts.Metrics.Inc(metrics.LoginFailure)
		m.logger.Info("login failed", zap.Stringer("kind", authErr.Kind), zap.Error(err))
		m.emit(ctx, events.Event{Type: events.TypeLoginFailed, Error: authErr.Kind.String()})
		return authErr
	}
	if creds.UserID == 0 {
		creds.UserID = user.ID
	}

	m.mu.Lock()
	m.creds = creds
	epoch := m.epoch
	m.publishLocked(authenticated(user))
	m.mu.Unlock()

	m.persist(ctx, creds, epoch)
	m.opts.Metrics.Inc(metrics.LoginSuccess)
	m.logger.Debug("logged in", zap.Uint64("user_id", user.ID))
	m.emit(ctx, events.Event{Type: events.TypeLogin, UserID: user.ID, Success: true})
	return nil
}

// Logout issues the logout call and then always clears the local session and
// persisted credentials. A non-nil error reports only the failed network call.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.RLock()
	creds := m.creds
	userID := m.userIDLocked()
	m.mu.RUnlock()

	var remoteErr error
	if m.backend != nil {
		remoteErr = m.backend.Logout(ctx, creds)
	}

	m.clear("logout", true)
	m.opts.Metrics.Inc(metrics.Logout)

	if remoteErr != nil {
		m.opts.Metrics.Inc(metrics.LogoutRemoteFailure)
		m.logger.Warn("logout call failed; local session cleared", zap.Error(remoteErr))
		m.emit(ctx, events.Event{Type: events.TypeLogout, UserID: userID, Error: remoteErr.Error()})
		return fmt.Errorf("logout: %w", remoteErr)
	}
	m.emit(ctx, events.Event{Type: events.TypeLogout, UserID: userID, Success: true})
	return nil
}

// Refresh renews the session. On success it stores the renewed credentials
// and returns the user with true. On any failure it clears the session and
// returns false; it never returns an error. A result that arrives after the
// session was cleared is discarded and reported as a failure.
func (m *Manager) Refresh(ctx context.Context) (User, bool) {
	if m.backend == nil {
		m.clear("refresh_failed", false)
		return User{}, false
	}

	m.mu.RLock()
	creds, epoch := m.creds, m.epoch
	m.mu.RUnlock()

	user, next, err := m.backend.Refresh(ctx, creds)
	if err != nil {
		m.opts.Metrics.Inc(metrics.RefreshFailure)
		m.logger.Info("refresh failed", zap.Error(err))
		m.clear("refresh_failed", false)
		m.emit(ctx, events.Event{Type: events.TypeRefreshFailed, UserID: creds.UserID, Error: err.Error()})
		return User{}, false
	}
	if next.UserID == 0 {
		next.UserID = user.ID
	}
	if next.RefreshToken == "" {
		next.RefreshToken = creds.RefreshToken
	}

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		m.opts.Metrics.Inc(metrics.RefreshFailure)
		m.logger.Info("refresh result discarded; session was cleared meanwhile")
		return User{}, false
	}
	m.creds = next
	m.publishLocked(authenticated(user))
	m.mu.Unlock()

	m.persist(ctx, next, epoch)
	m.opts.Metrics.Inc(metrics.RefreshSuccess)
	m.emit(ctx, events.Event{Type: events.TypeRefresh, UserID: user.ID, Success: true})
	return user, true
}

// Clear moves to StatusUnauthenticated and forgets credentials. It is
// synchronous and idempotent: calls after the first change nothing.
func (m *Manager) Clear() {
	m.clear("clear", false)
}

func (m *Manager) clear(reason string, forceStoreDelete bool) {
	m.mu.Lock()
	transition := m.state.Status != StatusUnauthenticated || !m.creds.Empty()
	userID := m.userIDLocked()
	if transition {
		m.creds = Credentials{}
		m.epoch++
		m.publishLocked(State{Status: StatusUnauthenticated})
	}
	m.mu.Unlock()

	if transition || forceStoreDelete {
		ctx, cancel := context.WithTimeout(context.Background(), m.opts.StoreTimeout)
		m.storeMu.Lock()
		err := m.store.Delete(ctx)
		m.storeMu.Unlock()
		cancel()
		if err != nil {
			m.logger.Warn("delete stored credentials", zap.Error(err))
		}
	}
	if !transition {
		return
	}

	m.opts.Metrics.Inc(metrics.SessionCleared)
	m.logger.Debug("session cleared", zap.String("reason", reason), zap.Uint64("user_id", userID))
	m.emit(context.Background(), events.Event{
		Type:     events.TypeSessionCleared,
		UserID:   userID,
		Success:  true,
		Metadata: map[string]string{"reason": reason},
	})
}

// persist saves creds unless the session was cleared after epoch was read.
// Holding storeMu across the epoch check and the write keeps a concurrent
// clear's delete from being overwritten.
func (m *Manager) persist(ctx context.Context, creds Credentials, epoch uint64) {
	if creds.Empty() {
		return
	}

	m.storeMu.Lock()
	defer m.storeMu.Unlock()

	m.mu.RLock()
	current := m.epoch
	m.mu.RUnlock()
	if current != epoch {
		return
	}
	if err := m.store.Save(ctx, creds); err != nil {
		m.logger.Warn("persist credentials", zap.Error(err))
	}
}

func (m *Manager) resolveUnauthenticated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Status != StatusUnknown {
		return
	}
	m.creds = Credentials{}
	m.publishLocked(State{Status: StatusUnauthenticated})
}

// State returns a copy of the current state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stateLocked()
}

// CurrentUser returns the logged-in user, if any.
func (m *Manager) CurrentUser() (User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state.User == nil {
		return User{}, false
	}
	return *m.state.User, true
}

// Present reports whether a session is currently considered present.
func (m *Manager) Present() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Status == StatusAuthenticated
}

// AccessToken returns the bearer token to attach, or "".
func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds.AccessToken
}

// credentials returns a copy of the held credentials.
func (m *Manager) credentials() Credentials {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds
}

// Changed returns a channel closed on the next state transition.
func (m *Manager) Changed() <-chan struct{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.changed
}

// WaitResolved blocks until the state is no longer StatusUnknown or ctx ends.
func (m *Manager) WaitResolved(ctx context.Context) (State, error) {
	for {
		st, changed := m.snapshot()
		if st.Resolved() {
			return st, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return st, ctx.Err()
		}
	}
}

// Subscribe streams the current state followed by every transition until ctx
// ends, then closes the channel. A slow reader skips intermediate states but
// always receives the latest one.
func (m *Manager) Subscribe(ctx context.Context) <-chan State {
	out := make(chan State, 1)
	go func() {
		defer close(out)
		for {
			st, changed := m.snapshot()
			select {
			case <-out:
			default:
			}
			out <- st

			select {
			case <-changed:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (m *Manager) snapshot() (State, <-chan struct{}) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stateLocked(), m.changed
}

func (m *Manager) stateLocked() State {
	if m.state.User == nil {
		return State{Status: m.state.Status}
	}
	u := *m.state.User
	return State{Status: m.state.Status, User: &u}
}

func (m *Manager) userIDLocked() uint64 {
	if m.state.User != nil {
		return m.state.User.ID
	}
	return m.creds.UserID
}

func (m *Manager) publishLocked(next State) {
	m.state = next
	close(m.changed)
	m.changed = make(chan struct{})
}

func (m *Manager) emit(ctx context.Context, event events.Event) {
	if m.opts.Events == nil {
		return
	}
	m.opts.Events.Emit(ctx, event)
}

func authenticated(u User) State {
	return State{Status: StatusAuthenticated, User: &u}
}
