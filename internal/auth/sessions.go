// internal/auth/sessions.go
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/semla/internal/models"
	"github.com/shrimpsizemoose/semla/internal/store"
)

const (
	timeFormat  = "2006-01-02 15:04:05"
	tokenPrefix = "sk-semla-"
)

type EventType string

const (
	EventSignedIn  EventType = "SIGNED_IN"
	EventSignedOut EventType = "SIGNED_OUT"
)

type Event struct {
	Type      EventType
	ProfileID string
}

// Sessions keeps bearer sessions in Redis, one hash per token, and emits
// auth-state events the sync layer subscribes to.
type Sessions struct {
	redis       *redis.Client
	store       store.Store
	keyTemplate string
	ttl         time.Duration
	events      chan Event
}

func NewSessions(redisURL, keyTemplate string, ttl time.Duration, st store.Store) (*Sessions, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Sessions{
		redis:       client,
		store:       st,
		keyTemplate: keyTemplate,
		ttl:         ttl,
		events:      make(chan Event, 8),
	}, nil
}

// Events is the auth-state change feed: SIGNED_IN and SIGNED_OUT only.
func (s *Sessions) Events() <-chan Event {
	return s.events
}

func (s *Sessions) key(token string) string {
	return strings.Replace(s.keyTemplate, "{token}", token, 1)
}

func generateToken() (string, error) {
	randomBytes := make([]byte, 16)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	return tokenPrefix + hex.EncodeToString(randomBytes), nil
}

// SignIn verifies credentials and the requested role. The role is checked
// before any session is written, so a mismatch can never leave an
// authenticated-but-unauthorized session behind.
func (s *Sessions) SignIn(ctx context.Context, email, password string, role models.Role) (string, error) {
	profile, err := s.store.GetProfileByEmail(email)
	if err != nil {
		return "", fmt.Errorf("failed to look up profile: %w", err)
	}
	if profile == nil {
		return "", models.ErrAuthenticationFailed
	}

	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)); err != nil {
		return "", models.ErrAuthenticationFailed
	}

	if profile.Role != role {
		logger.Debug.Printf("Role mismatch for %s: have %s, asked for %s", email, profile.Role, role)
		return "", models.ErrRoleMismatch
	}

	token, err := generateToken()
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	key := s.key(token)

	pipe := s.redis.Pipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"profile_id":            profile.ID,
		"request_count":         1,
		"last_request_dttm_utc": now.Format(timeFormat),
		"created_dttm_utc":      now.Format(timeFormat),
	})
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	s.emit(Event{Type: EventSignedIn, ProfileID: profile.ID})
	return token, nil
}

// Current resolves a bearer token to a profile id and bumps request stats.
func (s *Sessions) Current(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", models.ErrAuthenticationFailed
	}

	key := s.key(token)
	fields, err := s.redis.HGetAll(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("redis error: %w", err)
	}
	if len(fields) == 0 || fields["profile_id"] == "" {
		return "", models.ErrAuthenticationFailed
	}

	pipe := s.redis.Pipeline()
	pipe.HIncrBy(ctx, key, "request_count", 1)
	pipe.HSet(ctx, key, "last_request_dttm_utc", time.Now().UTC().Format(timeFormat))
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Debug.Printf("Failed to update session stats: %v", err)
	}

	return fields["profile_id"], nil
}

func (s *Sessions) SignOut(ctx context.Context, token string) error {
	key := s.key(token)

	profileID, err := s.redis.HGet(ctx, key, "profile_id").Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}

	if err := s.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	s.emit(Event{Type: EventSignedOut, ProfileID: profileID})
	return nil
}

func (s *Sessions) emit(event Event) {
	select {
	case s.events <- event:
	default:
		logger.Error.Printf("Auth event channel full, dropping %s for %s", event.Type, event.ProfileID)
	}
}

func (s *Sessions) Close() error {
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}
