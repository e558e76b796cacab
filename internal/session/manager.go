package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/eligibility-intake/internal/types"
)

// DefaultTimeout bounds session establishment when none is configured.
const DefaultTimeout = 8 * time.Second

// Backend is the auth backend a Manager drives.
type Backend interface {
	SignUp(ctx context.Context, fullName, email, password string) (*types.Identity, error)
	SignIn(ctx context.Context, email, password string) (*types.Identity, error)
	SignOut(ctx context.Context) error
	CurrentIdentity(ctx context.Context) (*types.Identity, error)
	EnsureProfile(ctx context.Context, identity *types.Identity) error
	// OnSessionChange registers a listener for asynchronous session reports
	// (nil identity means signed out) and returns its unregister function.
	OnSessionChange(fn func(*types.Identity)) func()
}

// Notifier sends best-effort notifications without blocking the caller.
type Notifier interface {
	DispatchAsync(kind types.EventKind, identity *types.Identity, answers *types.FormData)
}

// Manager is the single owner of a client's session state. Every change goes
// through Apply; subscribers are notified in order, once per actual change.
type Manager struct {
	backend  Backend
	notifier Notifier
	timeout  time.Duration
	log      *zap.Logger

	mu     sync.RWMutex
	state  State
	subs   map[int]func(State)
	nextID int
	ready  chan struct{}

	// notifyMu serializes Apply so subscribers see changes in order.
	notifyMu sync.Mutex

	unlisten  func()
	startOnce sync.Once
	closeOnce sync.Once
	stop      chan struct{}
	wg        sync.WaitGroup
}

// NewManager creates a manager in the loading state and registers it as the
// backend's session listener.
func NewManager(backend Backend, notifier Notifier, timeout time.Duration, log *zap.Logger) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	m := &Manager{
		backend:  backend,
		notifier: notifier,
		timeout:  timeout,
		log:      log.Named("session"),
		state:    State{Status: StatusLoading},
		subs:     make(map[int]func(State)),
		ready:    make(chan struct{}),
		stop:     make(chan struct{}),
	}
	m.unlisten = backend.OnSessionChange(func(identity *types.Identity) {
		m.Apply(FromIdentity(identity))
	})
	return m
}

// Current returns the current session snapshot.
func (m *Manager) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Ready is closed once the session leaves the loading state and subscribers
// have seen the change.
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

// Subscribe registers fn for session changes and returns its unsubscribe
// function. fn must not call Apply.
func (m *Manager) Subscribe(fn func(State)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Apply makes next the current state and notifies subscribers. Applying the
// current state again is a no-op, as is applying loading once resolved.
// It reports whether the state changed.
func (m *Manager) Apply(next State) bool {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	if m.state.Equal(next) || (next.Status == StatusLoading && m.state.Status != StatusLoading) {
		m.mu.Unlock()
		return false
	}
	wasLoading := m.state.Status == StatusLoading
	m.state = next
	fns := make([]func(State), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	m.log.Debug("session changed", zap.String("status", string(next.Status)))
	for _, fn := range fns {
		fn(next)
	}
	// Closed after delivery so Ready waiters observe the subscribers' reaction.
	if wasLoading {
		close(m.ready)
	}
	return true
}

// Start resolves the initial session from the backend. If the backend does
// not answer within the timeout, the session degrades to anonymous.
func (m *Manager) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		ctx, cancel := context.WithTimeout(ctx, m.timeout)

		m.wg.Add(2)
		go func() {
			defer m.wg.Done()
			defer cancel()
			identity, err := m.backend.CurrentIdentity(ctx)
			if err != nil {
				m.log.Warn("session restore failed", zap.Error(err))
				m.Apply(Anonymous())
				return
			}
			m.Apply(FromIdentity(identity))
		}()

		go func() {
			defer m.wg.Done()
			timer := time.NewTimer(m.timeout)
			defer timer.Stop()
			select {
			case <-timer.C:
				if m.Current().Status == StatusLoading {
					m.log.Warn("session establishment timed out", zap.Duration("timeout", m.timeout))
					m.Apply(Anonymous())
				}
			case <-m.ready:
			case <-m.stop:
			}
		}()
	})
}

// SignUp creates an account. On success the profile is ensured and a signup
// notification carrying the pending answers is dispatched, both in the
// background; their failures are logged and never fail the sign-up.
func (m *Manager) SignUp(ctx context.Context, email, password, fullName string, pending *types.FormData) (*types.Identity, error) {
	identity, err := m.backend.SignUp(ctx, fullName, email, password)
	if err != nil {
		return nil, Translate(err)
	}
	m.Apply(Authenticated(identity))

	var answers *types.FormData
	if pending != nil {
		cp := *pending
		answers = &cp
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				m.log.Error("post sign-up task panicked", zap.Any("panic", r))
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		if err := m.backend.EnsureProfile(ctx, identity); err != nil {
			m.log.Warn("profile ensure failed", zap.Stringer("user_id", identity.ID), zap.Error(err))
		}
		if m.notifier != nil {
			m.notifier.DispatchAsync(types.EventSignup, identity, answers)
		}
	}()

	return identity, nil
}

// SignIn authenticates. A failure leaves the session untouched.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*types.Identity, error) {
	identity, err := m.backend.SignIn(ctx, email, password)
	if err != nil {
		return nil, Translate(err)
	}
	m.Apply(Authenticated(identity))
	return identity, nil
}

// SignOut asks the backend to end the session. The switch to anonymous
// arrives through the backend's session notification, not from here.
func (m *Manager) SignOut(ctx context.Context) error {
	if err := m.backend.SignOut(ctx); err != nil {
		return Translate(err)
	}
	return nil
}

// Close unregisters from the backend and waits for background work.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.unlisten()
		close(m.stop)
		m.wg.Wait()
	})
}
