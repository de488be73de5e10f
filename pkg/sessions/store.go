// Package sessions stores bearer sessions in Redis. Only the SHA-256 hash of
// a token ever reaches the store; the raw token exists client-side only.
// Session keys carry a TTL, so expiry needs no sweeper. A per-user index set
// supports force-logout of every session at once.
package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/craftwork-crm/craftwork/pkg/auth"
)

var (
	// ErrSessionNotFound is returned when the token resolves to no live session
	ErrSessionNotFound = errors.New("session not found")
)

// Config holds Redis connection settings for the session store
type Config struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

// NewRedisClient creates a Redis client and verifies connectivity
func NewRedisClient(config Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if config.Password != "" {
		opts.Password = config.Password
	}
	if config.DB >= 0 {
		opts.DB = config.DB
	}
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// Store manages sessions in Redis
type Store struct {
	client *redis.Client
	tokens *auth.TokenGenerator
	ttl    time.Duration
}

// NewStore creates a session store with the given TTL
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{
		client: client,
		tokens: auth.NewTokenGenerator(),
		ttl:    ttl,
	}
}

func sessionKey(hash string) string {
	return "session:" + hash
}

func userIndexKey(userID int64) string {
	return fmt.Sprintf("user_sessions:%d", userID)
}

// Create issues a new session for the user and returns the raw bearer token.
// The token is shown once; only its hash is stored.
func (s *Store) Create(ctx context.Context, userID int64) (string, *auth.Session, error) {
	token, hash, _, err := s.tokens.GenerateToken()
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	session := &auth.Session{
		ID:       uuid.NewString(),
		UserID:   userID,
		IssuedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(session)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal session: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKey(hash), data, s.ttl)
	pipe.SAdd(ctx, userIndexKey(userID), hash)
	// Keep the index alive slightly longer than its newest session.
	pipe.Expire(ctx, userIndexKey(userID), s.ttl+time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", nil, fmt.Errorf("failed to store session: %w", err)
	}

	return token, session, nil
}

// Get resolves a bearer token to its session
func (s *Store) Get(ctx context.Context, token string) (*auth.Session, error) {
	if err := s.tokens.ValidateTokenFormat(token); err != nil {
		return nil, ErrSessionNotFound
	}

	data, err := s.client.Get(ctx, sessionKey(s.tokens.HashToken(token))).Result()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	session := &auth.Session{}
	if err := json.Unmarshal([]byte(data), session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return session, nil
}

// Delete revokes a single session. Deleting an unknown token is not an error.
func (s *Store) Delete(ctx context.Context, token string) error {
	if err := s.tokens.ValidateTokenFormat(token); err != nil {
		return nil
	}
	hash := s.tokens.HashToken(token)

	session, err := s.Get(ctx, token)
	if err == ErrSessionNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, sessionKey(hash))
	pipe.SRem(ctx, userIndexKey(session.UserID), hash)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}

// DeleteAllForUser revokes every session of a user, effective immediately
// for new requests. Returns the number of sessions removed.
func (s *Store) DeleteAllForUser(ctx context.Context, userID int64) (int, error) {
	hashes, err := s.client.SMembers(ctx, userIndexKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list user sessions: %w", err)
	}

	if len(hashes) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(hashes)+1)
	for _, h := range hashes {
		keys = append(keys, sessionKey(h))
	}
	keys = append(keys, userIndexKey(userID))

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return 0, fmt.Errorf("failed to delete user sessions: %w", err)
	}

	return len(hashes), nil
}

// PruneIndexes removes index entries whose session keys have expired. Redis
// drops the session keys itself; this keeps the per-user sets from
// accumulating dead hashes. Returns the number of pruned entries.
func (s *Store) PruneIndexes(ctx context.Context) (int, error) {
	var pruned int
	var cursor uint64

	for {
		keys, next, err := s.client.Scan(ctx, cursor, "user_sessions:*", 100).Result()
		if err != nil {
			return pruned, fmt.Errorf("failed to scan session indexes: %w", err)
		}

		for _, indexKey := range keys {
			hashes, err := s.client.SMembers(ctx, indexKey).Result()
			if err != nil {
				return pruned, fmt.Errorf("failed to read session index: %w", err)
			}
			for _, h := range hashes {
				exists, err := s.client.Exists(ctx, sessionKey(h)).Result()
				if err != nil {
					return pruned, fmt.Errorf("failed to check session key: %w", err)
				}
				if exists == 0 {
					if err := s.client.SRem(ctx, indexKey, h).Err(); err != nil {
						return pruned, fmt.Errorf("failed to prune session index: %w", err)
					}
					pruned++
				}
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return pruned, nil
}
