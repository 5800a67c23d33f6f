package proxy

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrBadCredentials is returned for any login failure — unknown tenant,
// unknown login, or wrong password. One error for all three so responses
// don't leak which part was wrong.
var ErrBadCredentials = errors.New("proxy: invalid credentials")

// sessionTokenBytes is the entropy of issued bearer tokens.
const sessionTokenBytes = 16

// Credentials is the flat tenant -> login -> SHA-256 hex digest lookup
// table. A lookup table, not a policy engine.
type Credentials map[string]map[string]string

// SessionStore issues and validates bearer tokens for the optional
// session-auth layer. Sessions live in memory only; a restart logs
// everyone out, which is acceptable for a stateless deployment unit.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]session
	creds    Credentials
	ttl      time.Duration
	logger   *slog.Logger

	// now is replaced in tests to control expiry.
	now func() time.Time
}

type session struct {
	tenant string
	login  string
	expiry time.Time
}

// NewSessionStore creates a SessionStore over the given credential table.
func NewSessionStore(creds Credentials, ttl time.Duration, logger *slog.Logger) *SessionStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &SessionStore{
		sessions: make(map[string]session),
		creds:    creds,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// SetCredentials swaps in a new credential table on config reload.
// Existing sessions stay valid until expiry.
func (s *SessionStore) SetCredentials(creds Credentials) {
	s.mu.Lock()
	s.creds = creds
	s.mu.Unlock()

	s.logger.Info("session credentials updated")
}

// Login checks the tenant/login/password triple against the credential
// table and mints a bearer token on success. The password comparison is
// constant time over SHA-256 digests.
func (s *SessionStore) Login(tenant, login, password string) (string, error) {
	s.mu.Lock()
	stored := s.creds[tenant][login]
	s.mu.Unlock()

	if stored == "" || !digestMatches(stored, password) {
		s.logger.Warn("login rejected",
			slog.String("tenant", tenant),
			slog.String("login", login),
		)

		return "", ErrBadCredentials
	}

	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("proxy: generating session token: %w", err)
	}

	expiry := s.now().Add(s.ttl)

	s.mu.Lock()
	s.pruneExpiredLocked()
	s.sessions[token] = session{tenant: tenant, login: login, expiry: expiry}
	s.mu.Unlock()

	s.logger.Info("login successful",
		slog.String("tenant", tenant),
		slog.String("login", login),
		slog.Time("expiry", expiry),
	)

	return token, nil
}

// Validate reports whether the bearer token belongs to a live session.
func (s *SessionStore) Validate(token string) bool {
	if token == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return false
	}

	if !s.now().Before(sess.expiry) {
		delete(s.sessions, token)

		return false
	}

	return true
}

// pruneExpiredLocked drops expired sessions. Caller holds s.mu.
func (s *SessionStore) pruneExpiredLocked() {
	cutoff := s.now()

	for token, sess := range s.sessions {
		if !cutoff.Before(sess.expiry) {
			delete(s.sessions, token)
		}
	}
}

// digestMatches compares the stored hex SHA-256 digest against the digest
// of the presented password in constant time.
func digestMatches(storedHex, password string) bool {
	stored, err := hex.DecodeString(storedHex)
	if err != nil {
		return false
	}

	presented := sha256.Sum256([]byte(password))

	return subtle.ConstantTimeCompare(stored, presented[:]) == 1
}

// generateToken produces a cryptographically random hex bearer token.
func generateToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}
