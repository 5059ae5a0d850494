package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Download token failures.
var (
	ErrTokenInvalid = errors.New("invalid download token")
	ErrTokenExpired = errors.New("download token expired")
)

// SignedURLSigner creates and validates download tokens for stored files.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &SignedURLSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Sign returns a token of the form "<fileID>.<unix expiry>.<hmac>".
func (s *SignedURLSigner) Sign(fileID string) (string, time.Time, error) {
	if fileID == "" || strings.Contains(fileID, ".") {
		return "", time.Time{}, fmt.Errorf("%w: bad file id", ErrTokenInvalid)
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, errors.New("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl)
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	return strings.Join([]string{fileID, ts, s.mac(fileID, ts)}, "."), expiresAt, nil
}

// Verify checks the signature and expiry and returns the file id.
func (s *SignedURLSigner) Verify(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", ErrTokenInvalid
	}
	fileID, ts, signature := parts[0], parts[1], parts[2]
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", ErrTokenInvalid
	}
	if !hmac.Equal([]byte(s.mac(fileID, ts)), []byte(signature)) {
		return "", ErrTokenInvalid
	}
	if s.now().After(time.Unix(expUnix, 0)) {
		return "", ErrTokenExpired
	}
	return fileID, nil
}

func (s *SignedURLSigner) mac(fileID, ts string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(fileID + "|" + ts))
	return hex.EncodeToString(mac.Sum(nil))
}
