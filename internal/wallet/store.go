package wallet

import (
	"context"
	"crypto/ecdsa"
	"log/slog"
	"sync"
	"time"

	"persona/internal/credential"
	"persona/internal/identity"
	"persona/internal/platform/metrics"
	dErrors "persona/pkg/domain-errors"
)

// BalanceFetcher reads the on-chain balance for an address.
type BalanceFetcher interface {
	Balance(ctx context.Context, address string) (float64, error)
}

// Listener observes session changes. Listeners run synchronously, in
// subscription order, once per mutating operation.
type Listener func(Session)

// SessionStore owns the active wallet session. All mutations persist the
// durable-safe subset before notifying listeners, so observers never see
// state that a restart would lose.
type SessionStore struct {
	generator *identity.Generator
	storage   Storage
	balances  BalanceFetcher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	mu        sync.Mutex
	session   Session
	key       *ecdsa.PrivateKey
	listeners []subscription
	nextSub   int
}

type subscription struct {
	id       int
	listener Listener
}

// StoreOption configures the SessionStore.
type StoreOption func(*SessionStore)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *SessionStore) { s.logger = logger }
}

// WithMetrics enables metric emission.
func WithMetrics(m *metrics.Metrics) StoreOption {
	return func(s *SessionStore) { s.metrics = m }
}

// WithBalanceFetcher wires the ledger client for balance refreshes.
func WithBalanceFetcher(b BalanceFetcher) StoreOption {
	return func(s *SessionStore) { s.balances = b }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) StoreOption {
	return func(s *SessionStore) { s.now = now }
}

// NewSessionStore constructs the store. A previously persisted snapshot is
// not auto-connected: without the key the wallet is unusable, so the holder
// has to restore explicitly.
func NewSessionStore(generator *identity.Generator, storage Storage, opts ...StoreOption) *SessionStore {
	s := &SessionStore{
		generator: generator,
		storage:   storage,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Create mints a fresh identity and opens a session for it. The private
// key hex is returned exactly once so the holder can record it; the store
// keeps the key in memory only.
func (s *SessionStore) Create(ctx context.Context) (Session, string, error) {
	id, err := s.generator.Generate()
	if err != nil {
		return Session{}, "", err
	}
	session, err := s.open(ctx, id)
	if err != nil {
		return Session{}, "", err
	}
	return session, id.PrivateKeyHex(), nil
}

// Restore re-derives the identity from the holder's private key and opens
// a session for it. Credentials from a persisted snapshot of the same DID
// are carried over.
func (s *SessionStore) Restore(ctx context.Context, privateKeyHex string) (Session, error) {
	id, err := s.generator.FromPrivateKey(privateKeyHex)
	if err != nil {
		return Session{}, err
	}
	return s.open(ctx, id)
}

func (s *SessionStore) open(ctx context.Context, id *identity.Identity) (Session, error) {
	s.mu.Lock()

	if s.session.IsConnected {
		s.mu.Unlock()
		identity.Zero(id.PrivateKey)
		return Session{}, dErrors.New(dErrors.CodeConflict, "a wallet session is already active")
	}

	session := Session{
		DID:         id.DID.String(),
		Address:     id.Address,
		PublicKey:   id.PublicKey,
		Credentials: []*credential.Credential{},
		IsConnected: true,
		ConnectedAt: s.now().UTC(),
	}
	if prior, ok, err := s.storage.Load(); err == nil && ok && prior.DID == session.DID {
		session.Credentials = prior.Credentials
		session.Balance = prior.Balance
	}

	if err := s.storage.Save(session); err != nil {
		s.mu.Unlock()
		identity.Zero(id.PrivateKey)
		return Session{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "could not persist wallet session")
	}

	s.session = session
	s.key = id.PrivateKey
	snapshot, listeners := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "wallet session opened", "did", session.DID)
	if s.metrics != nil {
		s.metrics.SetActiveWalletSessions(1)
	}
	notify(listeners, snapshot)
	return snapshot, nil
}

// Disconnect closes the session: the key is zeroed, the persisted snapshot
// removed and listeners told the wallet is gone.
func (s *SessionStore) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	if !s.session.IsConnected {
		s.mu.Unlock()
		return nil
	}

	did := s.session.DID
	identity.Zero(s.key)
	s.key = nil
	s.session = Session{}

	if err := s.storage.Clear(); err != nil {
		s.mu.Unlock()
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "could not clear wallet storage")
	}
	snapshot, listeners := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "wallet session closed", "did", did)
	if s.metrics != nil {
		s.metrics.SetActiveWalletSessions(0)
	}
	notify(listeners, snapshot)
	return nil
}

// Current returns the active session, or false when disconnected.
func (s *SessionStore) Current() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.session.IsConnected {
		return Session{}, false
	}
	return s.session.clone(), true
}

// Subscribe registers a listener and returns its unsubscribe function.
func (s *SessionStore) Subscribe(listener Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.listeners = append(s.listeners, subscription{id: id, listener: listener})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.listeners {
			if sub.id == id {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// UpdateBalance refreshes the cached balance from the ledger. Best effort:
// a fetch failure keeps the prior value and the session intact.
func (s *SessionStore) UpdateBalance(ctx context.Context) (Session, error) {
	s.mu.Lock()
	if !s.session.IsConnected {
		s.mu.Unlock()
		return Session{}, dErrors.New(dErrors.CodeNotFound, "no active wallet session")
	}
	address := s.session.Address
	current := s.session.clone()
	s.mu.Unlock()

	if s.balances == nil {
		return current, nil
	}

	balance, err := s.balances.Balance(ctx, address)
	if err != nil {
		s.logger.WarnContext(ctx, "balance refresh failed, keeping cached value", "error", err)
		return current, nil
	}

	s.mu.Lock()
	if !s.session.IsConnected || s.session.Address != address {
		s.mu.Unlock()
		return current, nil
	}
	s.session.Balance = balance
	if err := s.storage.Save(s.session); err != nil {
		s.logger.WarnContext(ctx, "could not persist balance", "error", err)
	}
	snapshot, listeners := s.snapshotLocked()
	s.mu.Unlock()

	notify(listeners, snapshot)
	return snapshot, nil
}

// AddCredential appends a credential to the session and persists it.
func (s *SessionStore) AddCredential(ctx context.Context, cred *credential.Credential) (Session, error) {
	if cred == nil {
		return Session{}, dErrors.New(dErrors.CodeInvalidInput, "credential is required")
	}

	s.mu.Lock()
	if !s.session.IsConnected {
		s.mu.Unlock()
		return Session{}, dErrors.New(dErrors.CodeNotFound, "no active wallet session")
	}
	s.session.Credentials = append(s.session.Credentials, cred)
	if err := s.storage.Save(s.session); err != nil {
		// Roll back so storage and memory agree.
		s.session.Credentials = s.session.Credentials[:len(s.session.Credentials)-1]
		s.mu.Unlock()
		return Session{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "could not persist credential")
	}
	snapshot, listeners := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "credential added to wallet", "credential_id", cred.ID)
	notify(listeners, snapshot)
	return snapshot, nil
}

// Sign produces a secp256k1 signature over digest with the session key.
// This is the only operation that touches the key after connect.
func (s *SessionStore) Sign(digest []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.session.IsConnected || s.key == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "no active wallet session")
	}
	return signDigest(digest, s.key)
}

func (s *SessionStore) snapshotLocked() (Session, []subscription) {
	listeners := make([]subscription, len(s.listeners))
	copy(listeners, s.listeners)
	return s.session.clone(), listeners
}

func notify(listeners []subscription, snapshot Session) {
	for _, sub := range listeners {
		sub.listener(snapshot)
	}
}
