// Package service orchestrates account registration and the two-step
// (password, then TOTP) login sequence.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"persona/internal/auth/models"
	"persona/internal/identity"
	"persona/internal/platform/metrics"
	"persona/internal/platform/middleware"
	"persona/internal/sentinel"
	"persona/internal/token"
	dErrors "persona/pkg/domain-errors"
	psync "persona/pkg/platform/sync"
	"persona/pkg/secrets"
)

// AccountStore defines the persistence interface for accounts.
// Error Contract: Find methods return sentinel.ErrNotFound when the entity
// doesn't exist; Create returns sentinel.ErrConflict on a duplicate email.
type AccountStore interface {
	Create(ctx context.Context, account *models.Account) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
}

// IdempotencyStore remembers completed registrations by client key.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (uuid.UUID, bool, error)
	Set(ctx context.Context, key string, accountID uuid.UUID) error
}

// SecondFactor is the TOTP manager surface the login state machine needs.
type SecondFactor interface {
	Enrolled(ctx context.Context, email string) (bool, error)
	Verify(ctx context.Context, email, code string) (bool, error)
}

// IdentityMinter produces a fresh DID and keypair for new accounts.
type IdentityMinter interface {
	Generate() (*identity.Identity, error)
}

// RegistryRecorder persists the DID record created alongside an account.
type RegistryRecorder interface {
	Record(ctx context.Context, id *identity.Identity, profile models.Profile) error
}

// TokenIssuer signs session tokens for authenticated accounts.
type TokenIssuer interface {
	Issue(account *models.Account, now time.Time) (string, time.Time, error)
}

// errInvalidCredentials is the single external signal for both unknown email
// and wrong password. Reusing one value guarantees byte-identical responses,
// closing the account enumeration channel.
var errInvalidCredentials = dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")

// Service implements registration and the login state machine. The login
// sequence per account is AwaitingCredentials -> PasswordVerified ->
// Authenticated; both steps re-resolve the account so no server-side state
// spans the two calls.
type Service struct {
	accounts     AccountStore
	idempotency  IdempotencyStore
	secondFactor SecondFactor
	minter       IdentityMinter
	registry     RegistryRecorder
	tokens       TokenIssuer

	// locks serializes login and registration per email, so two concurrent
	// attempts cannot both ride a single short-window TOTP code.
	locks   *psync.ShardedMutex
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics enables metric emission.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithRegistry wires the DID record registry into registration.
func WithRegistry(r RegistryRecorder) Option {
	return func(s *Service) { s.registry = r }
}

// WithIdempotencyStore enables registration retry deduplication.
func WithIdempotencyStore(store IdempotencyStore) Option {
	return func(s *Service) { s.idempotency = store }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService constructs the authenticator.
func NewService(
	accounts AccountStore,
	secondFactor SecondFactor,
	minter IdentityMinter,
	tokens TokenIssuer,
	opts ...Option,
) *Service {
	svc := &Service{
		accounts:     accounts,
		secondFactor: secondFactor,
		minter:       minter,
		tokens:       tokens,
		locks:        psync.NewShardedMutex(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}

// Register creates a new account: hashes the password, mints an identity,
// persists the account and its DID record. Registering an email twice never
// creates two accounts; the second call fails with conflict. Registration
// does not authenticate — the caller still has to run the login sequence.
func (s *Service) Register(ctx context.Context, req *models.RegisterRequest) (*models.AccountSummary, error) {
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	s.locks.Lock(req.Email)
	defer s.locks.Unlock(req.Email)

	if req.IdempotencyKey != "" && s.idempotency != nil {
		if accountID, ok, err := s.idempotency.Get(ctx, req.IdempotencyKey); err == nil && ok {
			account, err := s.accounts.FindByID(ctx, accountID)
			if err == nil {
				summary := account.Summary()
				return &summary, nil
			}
		}
	}

	if _, err := s.accounts.FindByEmail(ctx, req.Email); err == nil {
		return nil, dErrors.New(dErrors.CodeConflict, "account already exists")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "account store unreachable")
	}

	hash, err := secrets.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	id, err := s.minter.Generate()
	if err != nil {
		return nil, err
	}
	// The service never holds the key beyond this call; self-sovereign keys
	// live client-side.
	defer identity.Zero(id.PrivateKey)

	account := &models.Account{
		ID:            uuid.New(),
		Email:         req.Email,
		PasswordHash:  hash,
		DID:           id.DID.String(),
		WalletAddress: id.Address,
		KYCStatus:     models.KYCPending,
		FirstName:     req.Profile.FirstName,
		LastName:      req.Profile.LastName,
		DateOfBirth:   req.Profile.DateOfBirth,
		Country:       req.Profile.Country,
		CreatedAt:     s.now().UTC(),
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "account already exists")
		}
		// A store outage is a failed registration, never a fabricated success.
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "could not persist account")
	}

	if s.registry != nil {
		if err := s.registry.Record(ctx, id, req.Profile); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "could not persist did record")
		}
	}

	if req.IdempotencyKey != "" && s.idempotency != nil {
		_ = s.idempotency.Set(ctx, req.IdempotencyKey, account.ID)
	}

	s.logAudit(ctx, "account_registered",
		"account_id", account.ID.String(),
		"did", account.DID,
	)
	if s.metrics != nil {
		s.metrics.IncrementAccountsRegistered()
	}

	summary := account.Summary()
	return &summary, nil
}

// LoginPassword is the first login transition: AwaitingCredentials ->
// PasswordVerified. Unknown email and wrong password both yield the same
// generic error.
func (s *Service) LoginPassword(ctx context.Context, email, password string) (*models.PasswordStepResult, error) {
	if email == "" || password == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "email and password are required")
	}
	if s.metrics != nil {
		s.metrics.IncrementLoginAttempt("password")
	}

	account, err := s.resolveAccount(ctx, email)
	if err != nil {
		return nil, err
	}

	if err := secrets.Verify(password, account.PasswordHash); err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			s.failAuth(ctx, "password_mismatch", email)
			return nil, errInvalidCredentials
		}
		return nil, err
	}

	return &models.PasswordStepResult{
		DID:          account.DID,
		TOTPRequired: true,
	}, nil
}

// LoginTOTP is the second login transition: PasswordVerified ->
// Authenticated. The password step's outcome is re-verified by supplying the
// password again; holding only a DID from step one is not enough to mint a
// token. Attempts per email are serialized so a single short-window code
// cannot authenticate two racing attempts.
func (s *Service) LoginTOTP(ctx context.Context, email, password, code string) (*models.LoginResult, error) {
	if email == "" || password == "" || code == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "email, password and totp code are required")
	}
	if s.metrics != nil {
		s.metrics.IncrementLoginAttempt("totp")
	}

	s.locks.Lock(email)
	defer s.locks.Unlock(email)

	account, err := s.resolveAccount(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := secrets.Verify(password, account.PasswordHash); err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			s.failAuth(ctx, "password_mismatch", email)
			return nil, errInvalidCredentials
		}
		return nil, err
	}

	enrolled, err := s.secondFactor.Enrolled(ctx, email)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		// Never silently skip the second factor.
		return nil, dErrors.New(dErrors.CodeForbidden, "totp not configured")
	}

	ok, err := s.secondFactor.Verify(ctx, email, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.failAuth(ctx, "totp_mismatch", email)
		return nil, dErrors.New(dErrors.CodeSecurityFailure, "invalid totp code")
	}

	signed, expiresAt, err := s.tokens.Issue(account, s.now())
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, "login_succeeded",
		"account_id", account.ID.String(),
		"did", account.DID,
	)
	if s.metrics != nil {
		s.metrics.IncrementTokensIssued()
	}

	return &models.LoginResult{
		Token:     signed,
		ExpiresAt: expiresAt,
		Account:   account.Summary(),
	}, nil
}

// resolveAccount maps a store miss to the generic credentials error and a
// store outage to unavailable — an unreachable store must never read as
// "wrong password".
func (s *Service) resolveAccount(ctx context.Context, email string) (*models.Account, error) {
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.failAuth(ctx, "unknown_email", email)
			return nil, errInvalidCredentials
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "account store unreachable")
	}
	return account, nil
}

func (s *Service) failAuth(ctx context.Context, reason, email string) {
	attrs := []any{"reason", reason, "email", email}
	if requestID := middleware.GetRequestID(ctx); requestID != "" {
		attrs = append(attrs, "request_id", requestID)
	}
	s.logger.WarnContext(ctx, "auth failed", attrs...)
	if s.metrics != nil {
		s.metrics.IncrementAuthFailures()
	}
}

func (s *Service) logAudit(ctx context.Context, event string, attrs ...any) {
	if requestID := middleware.GetRequestID(ctx); requestID != "" {
		attrs = append(attrs, "request_id", requestID)
	}
	attrs = append(attrs, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, attrs...)
}

// Ensure the token service satisfies the issuer interface.
var _ TokenIssuer = (*token.Service)(nil)
