package authstate

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/readmark/extsync/core/kvstore"
	"github.com/readmark/extsync/core/logger"
)

// DefaultSessionKey is the well-known store key holding the session value.
const DefaultSessionKey = "auth_session"

// Event identifies an auth transition observed by local listeners.
type Event string

const (
	// EventSignedIn fires when a session appears or is replaced by a
	// different session.
	EventSignedIn Event = "signed_in"
	// EventSignedOut fires when the session is removed.
	EventSignedOut Event = "signed_out"
)

// ListenerFunc receives the session after a transition. The session is nil
// for EventSignedOut.
type ListenerFunc func(session *Session)

// Broadcaster fans auth transitions out to other execution contexts. The
// broadcast is a defense-in-depth path next to the store's own change
// notification: neither is guaranteed to reach a context that is not
// currently running, so receivers must apply updates idempotently.
type Broadcaster interface {
	AuthStateChanged(ctx context.Context, session *Session) error
}

// Manager is the single logical owner of the current session. It mirrors the
// persisted session in memory, re-broadcasts changes, and reconciles updates
// arriving from other contexts with last-write-wins semantics.
type Manager struct {
	store       kvstore.Store
	broadcaster Broadcaster
	logger      *slog.Logger
	sessionKey  string

	mu          sync.RWMutex
	session     *Session
	initialized bool

	listeners  map[Event]map[int]ListenerFunc
	listenerID int

	watchCancel context.CancelFunc
}

// Option configures a Manager.
type Option func(*Manager)

// WithSessionKey overrides the store key holding the session.
func WithSessionKey(key string) Option {
	return func(m *Manager) {
		if key != "" {
			m.sessionKey = key
		}
	}
}

// WithBroadcaster sets the cross-context broadcast path. Without one, changes
// still propagate through store change notifications.
func WithBroadcaster(b Broadcaster) Option {
	return func(m *Manager) {
		m.broadcaster = b
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a session manager over the given store. Call Initialize
// (or any read/write method, which initializes lazily) before relying on it.
func NewManager(store kvstore.Store, opts ...Option) *Manager {
	m := &Manager{
		store:      store,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		sessionKey: DefaultSessionKey,
		listeners:  make(map[Event]map[int]ListenerFunc),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Initialize loads the persisted session and starts watching the store for
// changes made by other contexts. It is idempotent: repeated calls after a
// successful initialization are no-ops. A failed initialization may be
// retried.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	if m.initialized {
		m.mu.Unlock()
		return nil
	}

	values, err := m.store.Get(ctx, m.sessionKey)
	if err != nil {
		m.mu.Unlock()
		m.logger.Error("failed to load session", logger.Error(err))
		return errors.Join(ErrLoadSession, err)
	}

	if data, ok := values[m.sessionKey]; ok {
		var sess Session
		if err := json.Unmarshal(data, &sess); err != nil {
			// A corrupt value is unrecoverable state, not an error the
			// caller can act on. Treat it as signed out.
			m.logger.Error("discarding corrupt persisted session",
				logger.Error(err))
		} else {
			m.session = &sess
		}
	}

	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	changes, err := m.store.Watch(watchCtx)
	if err != nil {
		cancel()
		m.mu.Unlock()
		return errors.Join(ErrLoadSession, err)
	}
	m.watchCancel = cancel
	m.initialized = true
	m.mu.Unlock()

	go m.watchStore(changes)
	return nil
}

// AuthState returns a copy of the current session, or nil when signed out.
// Initializes lazily so the first read after a cold start rehydrates from the
// store.
func (m *Manager) AuthState(ctx context.Context) (*Session, error) {
	if err := m.Initialize(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.session == nil {
		return nil, nil
	}
	sess := *m.session
	return &sess, nil
}

// IsAuthenticated reports whether a session currently exists. Token expiry is
// deliberately not checked here: an expired access token is renewable and
// does not revoke the signed-in affordance.
func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	sess, err := m.AuthState(ctx)
	return err == nil && sess != nil
}

// SetAuthState persists the session as a whole-value replacement, broadcasts
// the change to other contexts, and notifies local listeners synchronously.
// On a store failure the in-memory session is left unchanged and the error is
// returned so the caller may retry.
func (m *Manager) SetAuthState(ctx context.Context, sess Session) error {
	if err := sess.Validate(); err != nil {
		return err
	}
	if err := m.Initialize(ctx); err != nil {
		return err
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return errors.Join(ErrSaveSession, err)
	}

	if err := m.store.Set(ctx, map[string]json.RawMessage{m.sessionKey: data}); err != nil {
		m.logger.Error("failed to persist session", logger.Error(err))
		return errors.Join(ErrSaveSession, err)
	}

	m.mu.Lock()
	changed := m.session == nil || !m.session.Equal(sess)
	m.session = &sess
	m.mu.Unlock()

	m.broadcast(ctx, &sess)

	if changed {
		m.notify(EventSignedIn, &sess)
	}
	return nil
}

// ClearAuthState removes the persisted session, broadcasts the sign-out, and
// notifies local listeners. It is idempotent: clearing an already cleared
// state succeeds and produces no duplicate listener notifications.
func (m *Manager) ClearAuthState(ctx context.Context) error {
	if err := m.Initialize(ctx); err != nil {
		return err
	}

	if err := m.store.Remove(ctx, m.sessionKey); err != nil {
		m.logger.Error("failed to clear session", logger.Error(err))
		return errors.Join(ErrClearSession, err)
	}

	m.mu.Lock()
	changed := m.session != nil
	m.session = nil
	m.mu.Unlock()

	m.broadcast(ctx, nil)

	if changed {
		m.notify(EventSignedOut, nil)
	}
	return nil
}

// AddListener registers a local listener for the given event and returns an
// identifier for RemoveListener. Listeners run synchronously on the calling
// goroutine of the mutating operation; a panicking listener is recovered and
// never prevents other listeners from running.
func (m *Manager) AddListener(event Event, fn ListenerFunc) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listeners[event] == nil {
		m.listeners[event] = make(map[int]ListenerFunc)
	}
	m.listenerID++
	m.listeners[event][m.listenerID] = fn
	return m.listenerID
}

// RemoveListener unregisters a listener. Unknown identifiers are ignored.
func (m *Manager) RemoveListener(event Event, id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.listeners[event], id)
}

// Close stops the store watcher. The manager must not be used afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.watchCancel != nil {
		m.watchCancel()
		m.watchCancel = nil
	}
	return nil
}

// watchStore applies session changes written by other contexts. Updates are
// idempotent and last-write-wins: an echo of our own write carries an equal
// value and produces no notification.
func (m *Manager) watchStore(changes <-chan kvstore.Change) {
	for change := range changes {
		if change.Key != m.sessionKey {
			continue
		}
		m.apply(change.NewValue)
	}
}

// apply reconciles a remotely observed session value into memory.
func (m *Manager) apply(data json.RawMessage) {
	var next *Session
	if len(data) > 0 && string(data) != "null" {
		var sess Session
		if err := json.Unmarshal(data, &sess); err != nil {
			m.logger.Error("discarding malformed session update",
				logger.Error(err))
			return
		}
		next = &sess
	}
	m.reconcile(next)
}

// Reconcile applies a session observed on a secondary delivery path, such as
// an explicit broadcast from another context. Last-write-wins and idempotent:
// a value equal to the one in memory is a no-op, so the store watcher and a
// broadcast may both deliver the same update safely. A nil session means
// signed out.
func (m *Manager) Reconcile(sess *Session) {
	if sess != nil {
		cp := *sess
		sess = &cp
	}
	m.reconcile(sess)
}

func (m *Manager) reconcile(next *Session) {
	m.mu.Lock()
	prev := m.session
	switch {
	case next == nil && prev == nil:
		m.mu.Unlock()
		return
	case next != nil && prev != nil && prev.Equal(*next):
		m.mu.Unlock()
		return
	}
	m.session = next
	m.mu.Unlock()

	if next == nil {
		m.notify(EventSignedOut, nil)
	} else {
		m.notify(EventSignedIn, next)
	}
}

// broadcast pushes the change to other contexts. Best-effort: failures are
// logged and swallowed since the store change notification covers the same
// ground.
func (m *Manager) broadcast(ctx context.Context, sess *Session) {
	if m.broadcaster == nil {
		return
	}
	if err := m.broadcaster.AuthStateChanged(ctx, sess); err != nil {
		m.logger.Error("failed to broadcast auth change", logger.Error(err))
	}
}

// notify runs all listeners for the event, each shielded from the others'
// panics.
func (m *Manager) notify(event Event, sess *Session) {
	m.mu.RLock()
	fns := make([]ListenerFunc, 0, len(m.listeners[event]))
	for _, fn := range m.listeners[event] {
		fns = append(fns, fn)
	}
	m.mu.RUnlock()

	for _, fn := range fns {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("auth listener panicked",
						logger.Event(string(event)),
						slog.Any("panic", r))
				}
			}()
			fn(sess)
		}()
	}
}
