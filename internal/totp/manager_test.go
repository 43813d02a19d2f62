package totp

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	dErrors "persona/pkg/domain-errors"
)

var testKey = func() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i * 7)
	}
	return key
}()

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func codeAt(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period: 30, Skew: 0, Digits: otp.DigitsSix, Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	return code
}

func TestSetupAndVerifyCurrentCode(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	m := NewManager(NewMemoryStore(), testKey, "PersonaPass", WithClock(fixedClock(now)))

	enrollment, err := m.Setup(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, enrollment.Secret)
	require.True(t, strings.HasPrefix(enrollment.URI, "otpauth://totp/"))
	require.Contains(t, enrollment.URI, "issuer=PersonaPass")
	require.NotEmpty(t, enrollment.QRCode)
	// PNG magic bytes
	require.Equal(t, "\x89PNG", string(enrollment.QRCode[:4]))

	ok, err := m.Verify(ctx, "alice@example.com", codeAt(t, enrollment.Secret, now))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerifyToleranceWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 30, 12, 0, 15, 0, time.UTC)
	m := NewManager(NewMemoryStore(), testKey, "PersonaPass", WithClock(fixedClock(now)))

	enrollment, err := m.Setup(ctx, "alice@example.com")
	require.NoError(t, err)

	step := 30 * time.Second
	cases := []struct {
		name   string
		offset time.Duration
		want   bool
	}{
		{"now", 0, true},
		{"minus one step", -step, true},
		{"minus two steps", -2 * step, true},
		{"plus two steps", 2 * step, true},
		{"plus three steps", 3 * step, false},
		{"minus three steps", -3 * step, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code := codeAt(t, enrollment.Secret, now.Add(tc.offset))
			ok, err := m.Verify(ctx, "alice@example.com", code)
			require.NoError(t, err)
			require.Equal(t, tc.want, ok)
		})
	}
}

func TestVerifyIndistinguishableFailures(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	m := NewManager(NewMemoryStore(), testKey, "PersonaPass", WithClock(fixedClock(now)))

	_, err := m.Setup(ctx, "alice@example.com")
	require.NoError(t, err)

	// No secret on file, malformed code, wrong code: all (false, nil).
	for name, attempt := range map[string]struct{ email, code string }{
		"unknown email":  {"nobody@example.com", "123456"},
		"malformed code": {"alice@example.com", "not-a-code"},
		"wrong code":     {"alice@example.com", "000000"},
	} {
		t.Run(name, func(t *testing.T) {
			ok, err := m.Verify(ctx, attempt.email, attempt.code)
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestSetupOverwritesPriorSecret(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	m := NewManager(NewMemoryStore(), testKey, "PersonaPass", WithClock(fixedClock(now)))

	first, err := m.Setup(ctx, "alice@example.com")
	require.NoError(t, err)
	second, err := m.Setup(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotEqual(t, first.Secret, second.Secret)

	// Codes from the replaced secret are invalid immediately.
	ok, err := m.Verify(ctx, "alice@example.com", codeAt(t, first.Secret, now))
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = m.Verify(ctx, "alice@example.com", codeAt(t, second.Secret, now))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestEnrolled(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(), testKey, "PersonaPass")

	enrolled, err := m.Enrolled(ctx, "alice@example.com")
	require.NoError(t, err)
	require.False(t, enrolled)

	_, err = m.Setup(ctx, "alice@example.com")
	require.NoError(t, err)

	enrolled, err = m.Enrolled(ctx, "alice@example.com")
	require.NoError(t, err)
	require.True(t, enrolled)
}

type failingStore struct{ err error }

func (f *failingStore) Save(context.Context, string, []byte) error   { return f.err }
func (f *failingStore) Find(context.Context, string) ([]byte, error) { return nil, f.err }
func (f *failingStore) Delete(context.Context, string) error         { return f.err }

func TestSetupSurfacesStoreFailureAsUnavailable(t *testing.T) {
	m := NewManager(&failingStore{err: errors.New("connection refused")}, testKey, "PersonaPass")

	_, err := m.Setup(context.Background(), "alice@example.com")
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func TestVerifyStoreOutageIsAnErrorNotFalse(t *testing.T) {
	m := NewManager(&failingStore{err: errors.New("connection refused")}, testKey, "PersonaPass")

	_, err := m.Verify(context.Background(), "alice@example.com", "123456")
	require.Error(t, err)
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func TestSetupRequiresEmail(t *testing.T) {
	m := NewManager(NewMemoryStore(), testKey, "PersonaPass")
	_, err := m.Setup(context.Background(), "")
	require.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestDisableRemovesEnrollment(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewManager(NewMemoryStore(), testKey, "PersonaPass", WithClock(fixedClock(now)))
	ctx := context.Background()

	enrollment, err := m.Setup(ctx, "alice@example.com")
	require.NoError(t, err)

	require.NoError(t, m.Disable(ctx, "alice@example.com"))

	enrolled, err := m.Enrolled(ctx, "alice@example.com")
	require.NoError(t, err)
	require.False(t, enrolled)

	// Codes from the removed secret no longer validate.
	ok, err := m.Verify(ctx, "alice@example.com", codeAt(t, enrollment.Secret, now))
	require.NoError(t, err)
	require.False(t, ok)

	// Idempotent.
	require.NoError(t, m.Disable(ctx, "alice@example.com"))
}

func TestDisableStoreOutageIsUnavailable(t *testing.T) {
	m := NewManager(&failingStore{err: errors.New("connection refused")}, testKey, "PersonaPass")

	err := m.Disable(context.Background(), "alice@example.com")
	require.Error(t, err)
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func TestDisableRequiresEmail(t *testing.T) {
	m := NewManager(NewMemoryStore(), testKey, "PersonaPass")
	require.True(t, dErrors.HasCode(m.Disable(context.Background(), ""), dErrors.CodeValidation))
}
