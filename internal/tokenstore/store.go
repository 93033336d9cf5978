// Package tokenstore persists the session's credential record: the raw
// bearer token and the JSON profile of the user it belongs to.
package tokenstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/concerttix/console/internal/domain"
	"github.com/concerttix/console/internal/observability"
	apperrors "github.com/concerttix/console/pkg/util/errorutil"
)

// Storage keys of the credential record.
const (
	KeyToken = "token"
	KeyUser  = "user"
)

const (
	minTokenLength = 50
	maxTokenLength = 2000
)

var (
	// ErrCorruptRecord is returned by Load after a corrupt record was purged.
	ErrCorruptRecord = errors.New("corrupt credential record")
	// ErrMalformedToken marks a token that is not JWT-shaped.
	ErrMalformedToken = errors.New("token is not JWT-shaped")
)

// Record is the persisted counterpart of a session.
type Record struct {
	Token string
	User  *domain.User
}

// ExpiresAt reads the token's exp claim without verifying the signature.
func (r *Record) ExpiresAt() (time.Time, bool) {
	if r == nil || r.Token == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(r.Token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Expired reports whether the token carries an exp claim before now.
func (r *Record) Expired(now time.Time) bool {
	exp, ok := r.ExpiresAt()
	return ok && !now.Before(exp)
}

// ValidateTokenShape checks for three non-empty base64url segments.
func ValidateTokenShape(token string) error {
	if len(token) < minTokenLength || len(token) > maxTokenLength {
		return fmt.Errorf("%w: length %d", ErrMalformedToken, len(token))
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return fmt.Errorf("%w: %d segments", ErrMalformedToken, len(parts))
	}
	for i, part := range parts {
		if part == "" {
			return fmt.Errorf("%w: segment %d empty", ErrMalformedToken, i)
		}
		if _, err := base64.RawURLEncoding.DecodeString(part); err != nil {
			return fmt.Errorf("%w: segment %d: %v", ErrMalformedToken, i, err)
		}
	}
	return nil
}

// Store is the only writer of the credential record. Every operation holds
// one lock across its reads and writes so token and user never diverge.
type Store struct {
	mu      sync.Mutex
	backend Backend
	logger  *zap.Logger
}

// New wraps backend.
func New(backend Backend, logger *zap.Logger) *Store {
	return &Store{backend: backend, logger: observability.OrNop(logger)}
}

// Save writes token and user, then reads the token back and requires a
// byte-for-byte match. A failed save leaves no record behind.
func (s *Store) Save(ctx context.Context, token string, user *domain.User) error {
	if err := ValidateTokenShape(token); err != nil {
		return apperrors.NewPersistenceError("refusing to store malformed token", err)
	}
	if err := user.Validate(); err != nil {
		return apperrors.NewPersistenceError("refusing to store invalid user", err)
	}
	encoded, err := json.Marshal(user)
	if err != nil {
		return apperrors.NewPersistenceError("encode user", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Set(ctx, KeyToken, token); err != nil {
		s.purgeLocked(ctx)
		return apperrors.NewPersistenceError("failed to save session token", err)
	}
	if err := s.backend.Set(ctx, KeyUser, string(encoded)); err != nil {
		s.purgeLocked(ctx)
		return apperrors.NewPersistenceError("failed to save session user", err)
	}

	saved, ok, err := s.backend.Get(ctx, KeyToken)
	if err != nil || !ok || saved != token {
		s.purgeLocked(ctx)
		s.logger.Error("token verification failed after save",
			zap.Bool("present", ok), zap.Int("expected_len", len(token)), zap.Int("actual_len", len(saved)))
		return apperrors.NewPersistenceError("token verification failed after save", err)
	}
	return nil
}

// SaveUser replaces the persisted profile of the current record. It fails
// when no token is stored, since a lone user would be a corrupt record.
func (s *Store) SaveUser(ctx context.Context, user *domain.User) error {
	if err := user.Validate(); err != nil {
		return apperrors.NewPersistenceError("refusing to store invalid user", err)
	}
	encoded, err := json.Marshal(user)
	if err != nil {
		return apperrors.NewPersistenceError("encode user", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok, err := s.backend.Get(ctx, KeyToken); err != nil || !ok {
		return apperrors.NewPersistenceError("no stored session to update", err)
	}
	if err := s.backend.Set(ctx, KeyUser, string(encoded)); err != nil {
		return apperrors.NewPersistenceError("failed to save session user", err)
	}
	return nil
}

// Load returns the stored record, nil when none exists. A corrupt record
// is purged and reported as ErrCorruptRecord; it is never repaired.
func (s *Store) Load(ctx context.Context) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, hasToken, err := s.backend.Get(ctx, KeyToken)
	if err != nil {
		return nil, apperrors.NewPersistenceError("read session token", err)
	}
	rawUser, hasUser, err := s.backend.Get(ctx, KeyUser)
	if err != nil {
		return nil, apperrors.NewPersistenceError("read session user", err)
	}

	if !hasToken && !hasUser {
		return nil, nil
	}

	reason := ""
	var user domain.User
	switch {
	case !hasToken:
		reason = "user without token"
	case !hasUser:
		reason = "token without user"
	case ValidateTokenShape(token) != nil:
		reason = ValidateTokenShape(token).Error()
	case json.Unmarshal([]byte(rawUser), &user) != nil:
		reason = "user is not valid JSON"
	case user.Validate() != nil:
		reason = "user fails validation: " + user.Validate().Error()
	}
	if reason != "" {
		s.logger.Warn("purging corrupt credential record", zap.String("reason", reason))
		s.purgeLocked(ctx)
		return nil, fmt.Errorf("%w: %s", ErrCorruptRecord, reason)
	}

	return &Record{Token: token, User: &user}, nil
}

// Token returns the stored token, or "" when absent. A malformed token is
// purged together with its user.
func (s *Store) Token(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok, err := s.backend.Get(ctx, KeyToken)
	if err != nil || !ok {
		return ""
	}
	if err := ValidateTokenShape(token); err != nil {
		s.logger.Warn("purging malformed stored token", zap.Error(err))
		s.purgeLocked(ctx)
		return ""
	}
	return token
}

// Purge deletes the record.
func (s *Store) Purge(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Delete(ctx, KeyToken, KeyUser)
}

// PurgeIfToken deletes the record only while it still holds token. It
// reports whether a purge happened.
func (s *Store) PurgeIfToken(ctx context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok, err := s.backend.Get(ctx, KeyToken)
	if err != nil {
		return false, err
	}
	if !ok || stored != token {
		return false, nil
	}
	if err := s.backend.Delete(ctx, KeyToken, KeyUser); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) purgeLocked(ctx context.Context) {
	if err := s.backend.Delete(ctx, KeyToken, KeyUser); err != nil {
		s.logger.Error("failed to purge credential record", zap.Error(err))
	}
}
