// Package token issues and verifies signed session credentials. A credential
// is "signature:timestamp" where signature is a hex HMAC-SHA-256 over
// "identity:timestamp" with a process-wide secret. Credentials are never
// persisted; they are recomputed and checked on every request.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/benedictkwok/cover-letter-assistant/internal/errors"
	"github.com/benedictkwok/cover-letter-assistant/internal/identity"
)

// DefaultSecret is the fallback signing key used when no secret is
// configured. Running on the fallback weakens forgery resistance; the
// service logs a warning but deliberately does not refuse to start, since
// the deployment may be a single-user local install.
const DefaultSecret = "default-secret-key"

// DefaultTimeout is how long a credential stays valid after issuance.
const DefaultTimeout = 24 * time.Hour

// futureSkew is the tolerated clock drift for a credential timestamp that
// lies ahead of local time. Anything beyond it is a clock anomaly and the
// credential is rejected.
const futureSkew = time.Minute

// InvitationChecker is the slice of the invitation registry the token
// service needs: issuance and verification are both gated on the identity
// still being invited.
type InvitationChecker interface {
	IsInvited(email string) bool
}

// Service issues and verifies session credentials.
type Service struct {
	secret  []byte
	timeout time.Duration
	invites InvitationChecker
	log     *zap.Logger
	now     func() time.Time
}

// NewService creates a token service. An empty secret falls back to
// DefaultSecret; a non-positive timeout falls back to DefaultTimeout.
func NewService(secret string, timeout time.Duration, invites InvitationChecker, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if secret == "" {
		logger.Warn("no session secret configured, using the default key; tokens are forgeable by anyone who reads the source")
		secret = DefaultSecret
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{
		secret:  []byte(secret),
		timeout: timeout,
		invites: invites,
		log:     logger,
		now:     time.Now,
	}
}

// Issue creates a credential for the identity, bound to the current
// timestamp. Refuses identities that are not on the invitation list.
func (s *Service) Issue(email string) (string, error) {
	id := identity.Normalize(email)
	if !s.invites.IsInvited(id) {
		return "", errors.NewUnauthorized(id + " is not on the invitation list")
	}

	ts := s.now().Format(time.RFC3339Nano)
	return s.sign(id, ts) + ":" + ts, nil
}

// Verify checks a credential for the identity. It fails closed: any parse
// error, expiry, clock anomaly, revoked invitation, or signature mismatch
// yields false, never an error.
func (s *Service) Verify(email, credential string) bool {
	id := identity.Normalize(email)
	if !s.invites.IsInvited(id) {
		return false
	}

	sig, ts, ok := strings.Cut(credential, ":")
	if !ok || sig == "" || ts == "" {
		return false
	}

	issuedAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return false
	}

	now := s.now()
	if now.Sub(issuedAt) > s.timeout {
		return false
	}
	if issuedAt.After(now.Add(futureSkew)) {
		return false
	}

	expected := s.sign(id, ts)
	return hmac.Equal([]byte(sig), []byte(expected))
}

// sign computes the hex HMAC-SHA-256 over "identity:timestamp".
func (s *Service) sign(id, ts string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(id + ":" + ts))
	return hex.EncodeToString(mac.Sum(nil))
}
