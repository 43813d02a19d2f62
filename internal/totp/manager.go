// Package totp manages the time-based one-time-password second factor:
// per-account secret enrollment and code verification.
package totp

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"

	"persona/internal/platform/metrics"
	"persona/internal/sentinel"
	dErrors "persona/pkg/domain-errors"
	"persona/pkg/secrets"
)

const (
	// secretSize is the raw secret length in bytes; 20 bytes = 160 bits,
	// the RFC 4226 recommended minimum.
	secretSize = 20

	period = 30 * time.Second
	digits = otp.DigitsSix

	// skew tolerates clock drift of up to two steps either side of now.
	skew = 2

	qrSize = 256
)

// Enrollment is the result of a TOTP setup: the shared secret in base32, the
// standard otpauth:// URI, and a scannable PNG rendering of it.
type Enrollment struct {
	Secret string
	URI    string
	QRCode []byte
}

// Manager generates, stores and verifies TOTP secrets. Secrets are sealed
// with authenticated encryption before they reach the store.
type Manager struct {
	store   SecretStore
	sealKey []byte
	issuer  string
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithMetrics enables metric emission.
func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mx }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager constructs a Manager. sealKey must be a valid AES key.
func NewManager(store SecretStore, sealKey []byte, issuer string, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		sealKey: sealKey,
		issuer:  issuer,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// Setup enrolls (or re-enrolls) an account. A fresh secret is generated,
// sealed and persisted before anything is returned; a store failure aborts
// the whole enrollment so the caller can retry. Re-invoking Setup for the
// same email overwrites the prior secret, invalidating codes from it
// immediately.
func (m *Manager) Setup(ctx context.Context, email string) (*Enrollment, error) {
	if email == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "email is required")
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.issuer,
		AccountName: email,
		SecretSize:  secretSize,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeEntropyUnavailable, "could not generate totp secret")
	}

	sealed, err := secrets.Seal([]byte(key.Secret()), m.sealKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not seal totp secret")
	}
	if err := m.store.Save(ctx, email, sealed); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "could not persist totp secret")
	}

	png, err := qrcode.Encode(key.URL(), qrcode.Medium, qrSize)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not render enrollment code")
	}

	m.logger.InfoContext(ctx, "totp enrolled", "email", email)
	if m.metrics != nil {
		m.metrics.IncrementTOTPSetups()
	}

	return &Enrollment{
		Secret: key.Secret(),
		URI:    key.URL(),
		QRCode: png,
	}, nil
}

// Verify checks a submitted code against the stored secret for the current
// time window with a tolerance of ±2 steps. No-secret-on-file, malformed
// codes and wrong codes are all reported identically as (false, nil) so a
// caller cannot use Verify to enumerate enrolled accounts. A store that
// cannot be reached is an error, never a false — a retryable outage must not
// read as a failed code.
func (m *Manager) Verify(ctx context.Context, email, code string) (bool, error) {
	secret, err := m.loadSecret(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	valid, err := totp.ValidateCustom(code, secret, m.now().UTC(), totp.ValidateOpts{
		Period:    uint(period.Seconds()),
		Skew:      skew,
		Digits:    digits,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		// Malformed input is indistinguishable from a wrong code.
		return false, nil
	}
	return valid, nil
}

// Disable removes the stored secret for the email, un-enrolling the second
// factor. Idempotent: disabling an email with no secret on file succeeds.
func (m *Manager) Disable(ctx context.Context, email string) error {
	if email == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if err := m.store.Delete(ctx, email); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "could not remove totp secret")
	}
	m.logger.InfoContext(ctx, "totp disabled", "email", email)
	return nil
}

// Enrolled reports whether a secret is on file for the email. Used by the
// login state machine to distinguish "no second factor configured" from
// "wrong code" — a distinction Verify deliberately hides.
func (m *Manager) Enrolled(ctx context.Context, email string) (bool, error) {
	_, err := m.loadSecret(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (m *Manager) loadSecret(ctx context.Context, email string) (string, error) {
	sealed, err := m.store.Find(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", err
		}
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "totp secret store unreachable")
	}
	secret, err := secrets.Open(sealed, m.sealKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not unseal totp secret")
	}
	return string(secret), nil
}
