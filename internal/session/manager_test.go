package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polytrade/internal/crypto"
	"github.com/alanyoungcy/polytrade/internal/domain"
	"github.com/alanyoungcy/polytrade/internal/platform/polymarket"
)

const testKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var (
	testEOA    = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	testFunder = common.HexToAddress("0x365f0CA36Ae1f641E02fE3B7743673da42A13A70")
	goodCreds  = domain.Credentials{Key: "k", Secret: "s", Passphrase: "p"}
)

type stubClient struct{ domain.TradingClient }

type fakeDialer struct {
	mu      sync.Mutex
	creds   domain.Credentials
	err     error
	block   chan struct{}
	calls   int
	dialled []domain.SignatureType
	funders []common.Address
}

func (f *fakeDialer) Authenticate(ctx context.Context, _ polymarket.Signer) (domain.Credentials, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return domain.Credentials{}, ctx.Err()
		}
	}
	return f.creds, f.err
}

func (f *fakeDialer) Dial(_ polymarket.Signer, _ domain.Credentials, st domain.SignatureType, funder common.Address) domain.TradingClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dialled = append(f.dialled, st)
	f.funders = append(f.funders, funder)
	return stubClient{}
}

func newSigner(t *testing.T) *crypto.Signer {
	t.Helper()
	s, err := crypto.NewSigner(testKey, 137)
	require.NoError(t, err)
	return s
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreateActivatesSession(t *testing.T) {
	d := &fakeDialer{creds: goodCreds}
	m := NewManager(d, quietLogger())

	var states []domain.SessionState
	m.OnChange(func(c Change) { states = append(states, c.State) })

	assert.Equal(t, domain.SessionDisconnected, m.State())
	_, err := m.Client()
	assert.ErrorIs(t, err, domain.ErrSession)

	sess, err := m.Create(context.Background(), newSigner(t), testEOA, testFunder)
	require.NoError(t, err)

	assert.Equal(t, domain.SessionActive, m.State())
	assert.Equal(t, domain.SignatureTypePolyProxy, sess.SignatureType)
	assert.Equal(t, testFunder, sess.Funder)
	assert.Equal(t, goodCreds, sess.Credentials)
	assert.Equal(t, []domain.SignatureType{domain.SignatureTypePolyProxy}, d.dialled)
	assert.Equal(t, []common.Address{testFunder}, d.funders)
	assert.Equal(t, []domain.SessionState{domain.SessionInitializing, domain.SessionActive}, states)

	client, err := m.Client()
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestCreateFailureEntersErrorState(t *testing.T) {
	d := &fakeDialer{err: errors.New("HTTP 500")}
	m := NewManager(d, quietLogger())

	_, err := m.Create(context.Background(), newSigner(t), testEOA, testFunder)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSession)
	assert.ErrorContains(t, err, "HTTP 500")

	assert.Equal(t, domain.SessionError, m.State())
	assert.ErrorContains(t, m.Err(), "HTTP 500")
	_, ok := m.Session()
	assert.False(t, ok)
	_, err = m.Client()
	assert.ErrorIs(t, err, domain.ErrSession)
	assert.Equal(t, 1, d.calls, "authentication must not be retried")
}

func TestCreateRejectsIncompleteCredentials(t *testing.T) {
	m := NewManager(&fakeDialer{creds: domain.Credentials{Key: "k"}}, quietLogger())
	_, err := m.Create(context.Background(), newSigner(t), testEOA, testFunder)
	assert.ErrorIs(t, err, domain.ErrSession)
	assert.Equal(t, domain.SessionError, m.State())
}

func TestCreatePreconditions(t *testing.T) {
	d := &fakeDialer{creds: goodCreds}
	m := NewManager(d, quietLogger())

	_, err := m.Create(context.Background(), nil, testEOA, testFunder)
	assert.ErrorIs(t, err, domain.ErrSession)
	_, err = m.Create(context.Background(), newSigner(t), testEOA, common.Address{})
	assert.ErrorIs(t, err, domain.ErrSession)
	_, err = m.Create(context.Background(), newSigner(t), testFunder, testFunder)
	assert.ErrorIs(t, err, domain.ErrSession)

	assert.Equal(t, domain.SessionDisconnected, m.State())
	assert.Zero(t, d.calls)
}

func TestClearIsIdempotent(t *testing.T) {
	m := NewManager(&fakeDialer{creds: goodCreds}, quietLogger())
	var changes int
	m.OnChange(func(Change) { changes++ })

	m.Clear()
	m.Clear()
	assert.Equal(t, domain.SessionDisconnected, m.State())
	assert.Zero(t, changes)

	_, err := m.Create(context.Background(), newSigner(t), testEOA, testFunder)
	require.NoError(t, err)
	changes = 0

	m.Clear()
	m.Clear()
	assert.Equal(t, domain.SessionDisconnected, m.State())
	assert.Equal(t, 1, changes)
	_, ok := m.Session()
	assert.False(t, ok)
}

func TestClearLeavesErrorState(t *testing.T) {
	m := NewManager(&fakeDialer{err: errors.New("boom")}, quietLogger())
	_, _ = m.Create(context.Background(), newSigner(t), testEOA, testFunder)
	require.Equal(t, domain.SessionError, m.State())

	m.Clear()
	assert.Equal(t, domain.SessionDisconnected, m.State())
	assert.NoError(t, m.Err())
}

func TestRecreateAfterError(t *testing.T) {
	d := &fakeDialer{err: errors.New("boom")}
	m := NewManager(d, quietLogger())
	_, _ = m.Create(context.Background(), newSigner(t), testEOA, testFunder)

	d.mu.Lock()
	d.err, d.creds = nil, goodCreds
	d.mu.Unlock()

	_, err := m.Create(context.Background(), newSigner(t), testEOA, testFunder)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionActive, m.State())
}

func TestClearDuringInitializingDiscardsResult(t *testing.T) {
	d := &fakeDialer{creds: goodCreds, block: make(chan struct{})}
	m := NewManager(d, quietLogger())

	signer := newSigner(t)
	done := make(chan error, 1)
	go func() {
		_, err := m.Create(context.Background(), signer, testEOA, testFunder)
		done <- err
	}()

	require.Eventually(t, func() bool { return m.State() == domain.SessionInitializing }, time.Second, time.Millisecond)
	m.Clear()
	close(d.block)

	err := <-done
	assert.ErrorIs(t, err, domain.ErrSession)
	assert.Equal(t, domain.SessionDisconnected, m.State())
	_, err = m.Client()
	assert.ErrorIs(t, err, domain.ErrSession)
}

func TestSignerLostClearsSession(t *testing.T) {
	m := NewManager(&fakeDialer{creds: goodCreds}, quietLogger())
	_, err := m.Create(context.Background(), newSigner(t), testEOA, testFunder)
	require.NoError(t, err)

	m.SignerLost()
	assert.Equal(t, domain.SessionDisconnected, m.State())
	_, err = m.Client()
	assert.ErrorIs(t, err, domain.ErrSession)
}

type fakeLocks struct {
	acquired []string
	released int
	err      error
}

func (f *fakeLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	if f.err != nil {
		return nil, f.err
	}
	f.acquired = append(f.acquired, key)
	return func() { f.released++ }, nil
}

func TestCreateHoldsLock(t *testing.T) {
	locks := &fakeLocks{}
	m := NewManager(&fakeDialer{creds: goodCreds}, quietLogger(), WithLockManager(locks, time.Second))

	_, err := m.Create(context.Background(), newSigner(t), testEOA, testFunder)
	require.NoError(t, err)
	assert.Equal(t, []string{"session:create:" + testEOA.Hex()}, locks.acquired)
	assert.Equal(t, 1, locks.released)
}

func TestCreateLockHeld(t *testing.T) {
	locks := &fakeLocks{err: domain.ErrLockHeld}
	d := &fakeDialer{creds: goodCreds}
	m := NewManager(d, quietLogger(), WithLockManager(locks, time.Second))

	_, err := m.Create(context.Background(), newSigner(t), testEOA, testFunder)
	assert.ErrorIs(t, err, domain.ErrSession)
	assert.ErrorIs(t, err, domain.ErrLockHeld)
	assert.Equal(t, domain.SessionError, m.State())
	assert.Zero(t, d.calls)
}
