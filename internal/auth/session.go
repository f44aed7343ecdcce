package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/bugsage-dev/bugsage/internal/domain"
)

// ErrSessionNotFound is returned when a session expired or was revoked.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore persists login sessions.
type SessionStore interface {
	Save(ctx context.Context, session domain.Session, ttl time.Duration) error
	Get(ctx context.Context, id string) (*domain.Session, error)
	Delete(ctx context.Context, id string) error
}

const sessionKeyPrefix = "bugsage:session:"

// RedisSessionStore keeps sessions as JSON strings with a TTL.
type RedisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore wraps a go-redis client.
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func (s *RedisSessionStore) Save(ctx context.Context, session domain.Session, ttl time.Duration) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, sessionKey(session.ID), payload, ttl).Err()
}

func (s *RedisSessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	raw, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	var session domain.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, sessionKey(id)).Err()
}

// SessionManager ties signed tokens to stored sessions.
type SessionManager struct {
	tokens *TokenManager
	store  SessionStore
	now    func() time.Time
}

// NewSessionManager builds a manager. Session lifetime follows the token TTL.
func NewSessionManager(tokens *TokenManager, store SessionStore) *SessionManager {
	return &SessionManager{tokens: tokens, store: store, now: time.Now}
}

// Start records a new session for user and returns its signed token.
func (m *SessionManager) Start(ctx context.Context, user domain.User) (string, time.Time, *domain.Session, error) {
	session := domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		LoginTime: m.now().UTC(),
	}
	token, expiresAt, err := m.tokens.GenerateToken(session.ID, user.ID)
	if err != nil {
		return "", time.Time{}, nil, err
	}
	if err := m.store.Save(ctx, session, m.tokens.TTL()); err != nil {
		return "", time.Time{}, nil, err
	}
	return token, expiresAt, &session, nil
}

// Resolve returns the live session behind token. Invalid tokens and missing
// or expired sessions yield ErrSessionNotFound.
func (m *SessionManager) Resolve(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}
	claims, err := m.tokens.ParseToken(token)
	if err != nil {
		return nil, ErrSessionNotFound
	}
	session, err := m.store.Get(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != claims.UserID || m.now().Sub(session.LoginTime) > m.tokens.TTL() {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// End revokes the session behind token. Unknown tokens are ignored.
func (m *SessionManager) End(ctx context.Context, token string) error {
	claims, err := m.tokens.ParseToken(token)
	if err != nil {
		return nil
	}
	return m.store.Delete(ctx, claims.SessionID)
}
