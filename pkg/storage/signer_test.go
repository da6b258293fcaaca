package storage_test

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diligince/closeout/pkg/storage"
)

func signedValues(t *testing.T, s *storage.Signer, key string, now time.Time) url.Values {
	t.Helper()

	values, err := url.ParseQuery(s.SignedQuery(key, now))
	require.NoError(t, err)

	return values
}

func TestSigner_VerifyValidLink(t *testing.T) {
	t.Parallel()

	s := storage.NewSigner("test-secret", 15*time.Minute)
	now := time.Now()

	values := signedValues(t, s, "workflows/wf-1/items/i-1/report.pdf", now)

	err := s.Verify(values.Get("key"), values.Get("exp"), values.Get("sig"), now)
	assert.NoError(t, err)
}

func TestSigner_RejectsTamperedKey(t *testing.T) {
	t.Parallel()

	s := storage.NewSigner("test-secret", 15*time.Minute)
	now := time.Now()

	values := signedValues(t, s, "workflows/wf-1/items/i-1/report.pdf", now)

	err := s.Verify("workflows/wf-2/items/i-1/report.pdf", values.Get("exp"), values.Get("sig"), now)
	assert.ErrorIs(t, err, storage.ErrSignatureInvalid)
}

func TestSigner_RejectsTamperedExpiry(t *testing.T) {
	t.Parallel()

	s := storage.NewSigner("test-secret", time.Minute)
	now := time.Now()

	values := signedValues(t, s, "workflows/wf-1/items/i-1/report.pdf", now)

	err := s.Verify(values.Get("key"), "9999999999", values.Get("sig"), now)
	assert.ErrorIs(t, err, storage.ErrSignatureInvalid)
}

func TestSigner_RejectsExpiredLink(t *testing.T) {
	t.Parallel()

	s := storage.NewSigner("test-secret", time.Minute)
	now := time.Now()

	values := signedValues(t, s, "workflows/wf-1/items/i-1/report.pdf", now)

	err := s.Verify(values.Get("key"), values.Get("exp"), values.Get("sig"), now.Add(2*time.Minute))
	assert.ErrorIs(t, err, storage.ErrSignatureExpired)
}

func TestSigner_RejectsWrongSecret(t *testing.T) {
	t.Parallel()

	issuer := storage.NewSigner("secret-a", time.Minute)
	verifier := storage.NewSigner("secret-b", time.Minute)
	now := time.Now()

	values := signedValues(t, issuer, "workflows/wf-1/certificate/CC-1.pdf", now)

	err := verifier.Verify(values.Get("key"), values.Get("exp"), values.Get("sig"), now)
	assert.ErrorIs(t, err, storage.ErrSignatureInvalid)
}

func TestSigner_RejectsMalformedInput(t *testing.T) {
	t.Parallel()

	s := storage.NewSigner("test-secret", time.Minute)

	assert.ErrorIs(t, s.Verify("key", "not-a-number", "00", time.Now()), storage.ErrSignatureInvalid)
	assert.ErrorIs(t, s.Verify("key", "123", "zz-not-hex", time.Now()), storage.ErrSignatureInvalid)
}
