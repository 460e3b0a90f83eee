// Package auth provides password hashing, session tokens, and the per-user
// generation rate limit. Redis backs both sessions and rate limiting in
// production; in-memory fallbacks cover tests and dev mode.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

// sessionPrefix namespaces session keys in Redis.
const sessionPrefix = "session:"

// ErrNoSession is returned when a token is unknown or expired.
var ErrNoSession = errors.New("session not found or expired")

// Sessions issues and resolves opaque session tokens. Resolving a token
// slides its expiry forward, so active sessions stay alive.
type Sessions interface {
	Create(ctx context.Context, userID string) (string, error)
	UserID(ctx context.Context, token string) (string, error)
	Destroy(ctx context.Context, token string) error
}

// RedisSessions stores session tokens in Redis with a sliding TTL.
type RedisSessions struct {
	client *backend.Client
	ttl    time.Duration
}

// NewRedisSessions wraps an existing Redis client.
func NewRedisSessions(client *backend.Client, ttl time.Duration) *RedisSessions {
	return &RedisSessions{client: client, ttl: ttl}
}

// Create issues a new token for userID.
func (s *RedisSessions) Create(ctx context.Context, userID string) (string, error) {
	token := uuid.New().String()
	if err := s.client.Set(ctx, sessionPrefix+token, userID, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

// UserID resolves a token and refreshes its TTL.
func (s *RedisSessions) UserID(ctx context.Context, token string) (string, error) {
	userID, err := s.client.GetEx(ctx, sessionPrefix+token, s.ttl).Result()
	if errors.Is(err, backend.Nil) {
		return "", ErrNoSession
	}
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}
	return userID, nil
}

// Destroy invalidates a token. Destroying an unknown token is not an error.
func (s *RedisSessions) Destroy(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, sessionPrefix+token).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// MemorySessions keeps sessions in process memory. Dev mode only: tokens do
// not survive restarts and are not shared across instances.
type MemorySessions struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]memorySession
	now      func() time.Time
}

type memorySession struct {
	userID    string
	expiresAt time.Time
}

// NewMemorySessions returns an empty in-memory session store.
func NewMemorySessions(ttl time.Duration) *MemorySessions {
	return &MemorySessions{
		ttl:      ttl,
		sessions: make(map[string]memorySession),
		now:      time.Now,
	}
}

// Create issues a new token for userID.
func (s *MemorySessions) Create(_ context.Context, userID string) (string, error) {
	token := uuid.New().String()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = memorySession{userID: userID, expiresAt: s.now().Add(s.ttl)}
	return token, nil
}

// UserID resolves a token and refreshes its TTL. Expired tokens are removed
// lazily on access.
func (s *MemorySessions) UserID(_ context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return "", ErrNoSession
	}
	now := s.now()
	if now.After(sess.expiresAt) {
		delete(s.sessions, token)
		return "", ErrNoSession
	}
	sess.expiresAt = now.Add(s.ttl)
	s.sessions[token] = sess
	return sess.userID, nil
}

// Destroy invalidates a token. Destroying an unknown token is not an error.
func (s *MemorySessions) Destroy(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}
