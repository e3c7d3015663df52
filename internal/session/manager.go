// Package session owns the two-tier authentication lifecycle: an L1
// signature is exchanged for L2 credentials, and only an active session
// hands out an order-capable client.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/polytrade/internal/domain"
	"github.com/alanyoungcy/polytrade/internal/platform/polymarket"
)

// errSuperseded is reported to a Create whose result was discarded because
// the session was cleared or recreated while it ran.
var errSuperseded = errors.New("session cleared while initializing")

// Dialer performs L1 authentication and builds L2 trading clients.
type Dialer interface {
	Authenticate(ctx context.Context, signer polymarket.Signer) (domain.Credentials, error)
	Dial(signer polymarket.Signer, creds domain.Credentials, sigType domain.SignatureType, funder common.Address) domain.TradingClient
}

// Change describes a state transition.
type Change struct {
	State  domain.SessionState
	Err    error
	EOA    common.Address
	Funder common.Address
}

// Manager is the trading session state machine. All methods are safe for
// concurrent use.
type Manager struct {
	dialer  Dialer
	locks   domain.LockManager
	logger  *slog.Logger
	now     func() time.Time
	lockTTL time.Duration

	mu        sync.Mutex
	gen       uint64
	state     domain.SessionState
	err       error
	session   *domain.Session
	client    domain.TradingClient
	listeners []func(Change)
}

// Option customises a Manager.
type Option func(*Manager)

// WithLockManager serialises session creation for the same EOA across
// processes.
func WithLockManager(lm domain.LockManager, ttl time.Duration) Option {
	return func(m *Manager) {
		m.locks = lm
		m.lockTTL = ttl
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager in the disconnected state.
func NewManager(dialer Dialer, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		dialer:  dialer,
		logger:  logger.With(slog.String("component", "session")),
		now:     time.Now,
		lockTTL: 30 * time.Second,
		state:   domain.SessionDisconnected,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// OnChange registers fn to be called after every state transition.
func (m *Manager) OnChange(fn func(Change)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Create authenticates signer and activates a session trading on behalf of
// funder with the POLY_PROXY signature type. On failure the manager enters
// the error state and the error wraps domain.ErrSession. Nothing is retried.
func (m *Manager) Create(ctx context.Context, signer polymarket.Signer, eoa, funder common.Address) (domain.Session, error) {
	if signer == nil {
		return domain.Session{}, fmt.Errorf("session: create: no signer: %w", domain.ErrSession)
	}
	if eoa == (common.Address{}) || funder == (common.Address{}) {
		return domain.Session{}, fmt.Errorf("session: create: missing address: %w", domain.ErrSession)
	}
	if signer.Address() != eoa {
		return domain.Session{}, fmt.Errorf("session: create: signer %s is not %s: %w",
			signer.Address().Hex(), eoa.Hex(), domain.ErrSession)
	}

	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.state = domain.SessionInitializing
	m.err = nil
	m.session = nil
	m.client = nil
	m.mu.Unlock()
	m.notify(Change{State: domain.SessionInitializing, EOA: eoa, Funder: funder})

	m.logger.InfoContext(ctx, "session: initializing",
		slog.String("eoa", eoa.Hex()),
		slog.String("funder", funder.Hex()),
	)

	creds, err := m.authenticate(ctx, signer, eoa)
	if err == nil && !creds.Valid() {
		err = errors.New("incomplete credentials")
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		m.logger.InfoContext(ctx, "session: discarding superseded result", slog.String("eoa", eoa.Hex()))
		return domain.Session{}, fmt.Errorf("session: create: %w: %w", domain.ErrSession, errSuperseded)
	}
	if err != nil {
		m.state = domain.SessionError
		m.err = err
		m.mu.Unlock()
		m.notify(Change{State: domain.SessionError, Err: err, EOA: eoa, Funder: funder})

		m.logger.ErrorContext(ctx, "session: authentication failed",
			slog.String("eoa", eoa.Hex()),
			slog.String("error", err.Error()),
		)
		return domain.Session{}, fmt.Errorf("session: create: %w: %w", domain.ErrSession, err)
	}

	sess := domain.Session{
		EOA:           eoa,
		Funder:        funder,
		Credentials:   creds,
		SignatureType: domain.SignatureTypePolyProxy,
		CreatedAt:     m.now().UTC(),
	}
	m.client = m.dialer.Dial(signer, creds, sess.SignatureType, funder)
	m.session = &sess
	m.state = domain.SessionActive
	m.mu.Unlock()
	m.notify(Change{State: domain.SessionActive, EOA: eoa, Funder: funder})

	m.logger.InfoContext(ctx, "session: active",
		slog.String("eoa", eoa.Hex()),
		slog.String("funder", funder.Hex()),
		slog.String("credentials", creds.String()),
	)
	return sess, nil
}

func (m *Manager) authenticate(ctx context.Context, signer polymarket.Signer, eoa common.Address) (domain.Credentials, error) {
	if m.locks != nil {
		unlock, err := m.locks.Acquire(ctx, "session:create:"+eoa.Hex(), m.lockTTL)
		if err != nil {
			return domain.Credentials{}, fmt.Errorf("acquire create lock: %w", err)
		}
		defer unlock()
	}
	return m.dialer.Authenticate(ctx, signer)
}

// Clear discards the session and credentials. Calling it in any state,
// any number of times, leaves the manager disconnected. A Create still in
// flight is discarded when it returns.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.gen++
	prev := m.state
	var eoa, funder common.Address
	if m.session != nil {
		eoa, funder = m.session.EOA, m.session.Funder
	}
	m.state = domain.SessionDisconnected
	m.err = nil
	m.session = nil
	m.client = nil
	m.mu.Unlock()

	if prev != domain.SessionDisconnected {
		m.logger.Info("session: cleared", slog.String("previous", string(prev)))
		m.notify(Change{State: domain.SessionDisconnected, EOA: eoa, Funder: funder})
	}
}

// SignerLost reacts to the signing identity going away. A session never
// outlives its signer. The server binary loads one key for its lifetime and
// never calls it; it is the hook for embedding callers that rotate or
// unload keys.
func (m *Manager) SignerLost() {
	m.logger.Warn("session: signer lost")
	m.Clear()
}

// State returns the current state.
func (m *Manager) State() domain.SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err returns the error that put the manager in the error state.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Session returns the active session.
func (m *Manager) Session() (domain.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != domain.SessionActive || m.session == nil {
		return domain.Session{}, false
	}
	return *m.session, true
}

// Client returns the order-capable client of the active session. It fails
// with domain.ErrSession in every other state.
func (m *Manager) Client() (domain.TradingClient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != domain.SessionActive || m.client == nil {
		return nil, fmt.Errorf("session: state %s: %w", m.state, domain.ErrSession)
	}
	return m.client, nil
}

func (m *Manager) notify(c Change) {
	m.mu.Lock()
	listeners := append([]func(Change){}, m.listeners...)
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(c)
	}
}
