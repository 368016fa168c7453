// Package verify holds short-lived email verification codes for signup
// and account-deletion flows. Entries are purged on every access, so
// abandoned flows cannot accumulate beyond their TTL.
package verify

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"
)

type Purpose string

const (
	PurposeSignup   Purpose = "signup"
	PurposeDeletion Purpose = "deletion"
)

var (
	ErrCodeInvalid = errors.New("invalid verification code")
	ErrCodeExpired = errors.New("verification code expired")
)

const DefaultTTL = 10 * time.Minute

type entry struct {
	code      string
	userID    string
	expiresAt time.Time
}

// Store is a mutex-guarded expiring code store keyed by purpose+email.
// A code is consumed exactly once; expired entries are dropped on each
// Issue and Consume call.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Issue generates a six-digit code for the given purpose and email,
// replacing any previous code for the same key. userID may be empty; when
// set, Consume requires the same id (account deletion binds the code to
// the requesting account).
func (s *Store) Issue(purpose Purpose, email, userID string) (string, error) {
	code, err := sixDigits()
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.purgeLocked(now)
	s.entries[key(purpose, email)] = entry{
		code:      code,
		userID:    userID,
		expiresAt: now.Add(s.ttl),
	}
	return code, nil
}

// Consume validates and removes the code for purpose+email. A wrong code
// leaves the stored entry in place so the right one can still be used.
func (s *Store) Consume(purpose Purpose, email, code, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	k := key(purpose, email)
	stored, ok := s.entries[k]
	// Capture before purging so a just-expired entry reports expiry
	// rather than a generic mismatch.
	s.purgeLocked(now)
	if !ok {
		return ErrCodeInvalid
	}
	if now.After(stored.expiresAt) {
		return ErrCodeExpired
	}
	if stored.code != code || stored.userID != userID {
		return ErrCodeInvalid
	}

	delete(s.entries, k)
	return nil
}

// Len reports the number of live entries, counting out expired ones.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked(s.now())
	return len(s.entries)
}

func (s *Store) purgeLocked(now time.Time) {
	for k, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, k)
		}
	}
}

func key(purpose Purpose, email string) string {
	return string(purpose) + ":" + email
}

func sixDigits() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
