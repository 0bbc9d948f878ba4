// internal/csrf/csrf.go
//
// Formpipe – stateless anti-forgery tokens.
//
// Context
//   Rendered forms embed a hidden `form_nonce` input.  The submission
//   processor verifies it before reading any field.  Tokens are stateless:
//
//      base64url( nonce | unixMicro | HMAC_SHA256(key, action | nonce | unixMicro) )
//
//   •  nonce – 16 random bytes.
//   •  unixMicro – issue time, 8 bytes, big-endian.
//   •  HMAC – binds the token to the key and to an action tag, so a token
//      minted for one action cannot be replayed against another.
//
//   Verification checks the signature and that the issue time lies within
//   MaxAge (and not more than a minute in the future).  No server-side
//   session is needed, which keeps multi-instance deployments simple.
//
//------------------------------------------------------------------------------

package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"time"
)

const (
	nonceBytes = 16
	tsBytes    = 8
	tokenBytes = nonceBytes + tsBytes + sha256.Size

	// DefaultMaxAge is the validity window of a token.
	DefaultMaxAge = 2 * time.Hour
	// MinKeyBytes is the shortest key New accepts.
	MinKeyBytes = 32
)

// ErrShortKey is returned by New for keys below MinKeyBytes.
var ErrShortKey = errors.New("csrf: key must be at least 32 bytes")

// Signer mints and verifies tokens.  Safe for concurrent use.
type Signer struct {
	key    []byte
	maxAge time.Duration
	now    func() time.Time
}

// New returns a Signer for key.  A zero maxAge selects DefaultMaxAge.
func New(key []byte, maxAge time.Duration) (*Signer, error) {
	if len(key) < MinKeyBytes {
		return nil, ErrShortKey
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Signer{key: append([]byte(nil), key...), maxAge: maxAge, now: time.Now}, nil
}

// NewRandom returns a Signer with an ephemeral random key.  Tokens do not
// survive a restart; use it for development only.
func NewRandom() (*Signer, error) {
	key := make([]byte, MinKeyBytes)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return New(key, 0)
}

// DecodeKey parses a base64url (padded or raw) key string.
func DecodeKey(s string) ([]byte, error) {
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.URLEncoding.DecodeString(s)
}

// Generate mints a token bound to action.
func (s *Signer) Generate(action string) (string, error) {
	buf := make([]byte, nonceBytes+tsBytes, tokenBytes)
	if _, err := rand.Read(buf[:nonceBytes]); err != nil {
		return "", err
	}
	binary.BigEndian.PutUint64(buf[nonceBytes:], uint64(s.now().UnixMicro()))
	buf = append(buf, s.sign(action, buf[:nonceBytes], buf[nonceBytes:])...)
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Verify reports whether tok is authentic, fresh, and bound to action.
func (s *Signer) Verify(tok, action string) bool {
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil || len(raw) != tokenBytes {
		return false
	}
	nonce := raw[:nonceBytes]
	ts := raw[nonceBytes : nonceBytes+tsBytes]
	sig := raw[nonceBytes+tsBytes:]

	issued := time.UnixMicro(int64(binary.BigEndian.Uint64(ts)))
	now := s.now()
	if now.Sub(issued) > s.maxAge || issued.Sub(now) > time.Minute {
		return false
	}
	return hmac.Equal(sig, s.sign(action, nonce, ts))
}

func (s *Signer) sign(action string, nonce, ts []byte) []byte {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(action))
	mac.Write([]byte{0})
	mac.Write(nonce)
	mac.Write(ts)
	return mac.Sum(nil)
}
