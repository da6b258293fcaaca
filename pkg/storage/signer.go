package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Signer verification errors.
var (
	ErrSignatureInvalid = errors.New("document link signature is invalid")
	ErrSignatureExpired = errors.New("document link has expired")
)

// Signer issues and verifies HMAC-SHA256 signed, expiring view URLs for
// stored documents. The signed payload is "<key>\n<unix expiry>" so neither
// part can be swapped independently.
type Signer struct {
	secret []byte
	ttl    time.Duration
}

// NewSigner creates a URL signer. ttl bounds how long issued links stay valid.
func NewSigner(secret string, ttl time.Duration) *Signer {
	return &Signer{secret: []byte(secret), ttl: ttl}
}

// SignedQuery returns the query string (key, exp, sig) granting time-limited
// access to the given storage key.
func (s *Signer) SignedQuery(key string, now time.Time) string {
	exp := now.Add(s.ttl).Unix()
	sig := s.sign(key, exp)

	q := url.Values{}
	q.Set("key", key)
	q.Set("exp", strconv.FormatInt(exp, 10))
	q.Set("sig", sig)

	return q.Encode()
}

// Verify checks the signature and expiry for a view request.
func (s *Signer) Verify(key, expStr, sig string, now time.Time) error {
	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return ErrSignatureInvalid
	}

	expected, err := hex.DecodeString(sig)
	if err != nil {
		return ErrSignatureInvalid
	}

	mac := hmac.New(sha256.New, s.secret)
	_, _ = fmt.Fprintf(mac, "%s\n%d", key, exp)

	if !hmac.Equal(mac.Sum(nil), expected) {
		return ErrSignatureInvalid
	}

	if now.Unix() > exp {
		return ErrSignatureExpired
	}

	return nil
}

func (s *Signer) sign(key string, exp int64) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = fmt.Fprintf(mac, "%s\n%d", key, exp)

	return hex.EncodeToString(mac.Sum(nil))
}
