package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/categorizer/internal/domain"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when no snapshot exists for a session (never saved or expired).
var ErrNotFound = errors.New("session snapshot not found")

type SessionStore interface {
	Save(ctx context.Context, snapshot domain.Snapshot) error
	Load(ctx context.Context, sessionID string) (domain.Snapshot, error)
	Delete(ctx context.Context, sessionID string) error
}

type redisSessionStore struct {
	redisClient *redis.Client
	keyPrefix   string
	ttl         time.Duration
}

// NewRedisSessionStore keeps snapshots for ttl after their last save.
func NewRedisSessionStore(redisClient *redis.Client, ttl time.Duration) SessionStore {
	return &redisSessionStore{
		redisClient: redisClient,
		keyPrefix:   "categorizer:session:",
		ttl:         ttl,
	}
}

func (s *redisSessionStore) Save(ctx context.Context, snapshot domain.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot of session %s: %w", snapshot.SessionID, err)
	}

	if err := s.redisClient.Set(ctx, s.keyPrefix+snapshot.SessionID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save snapshot of session %s: %w", snapshot.SessionID, err)
	}
	return nil
}

func (s *redisSessionStore) Load(ctx context.Context, sessionID string) (domain.Snapshot, error) {
	data, err := s.redisClient.Get(ctx, s.keyPrefix+sessionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Snapshot{}, ErrNotFound
		}
		return domain.Snapshot{}, fmt.Errorf("failed to load snapshot of session %s: %w", sessionID, err)
	}

	var snapshot domain.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return domain.Snapshot{}, fmt.Errorf("failed to decode snapshot of session %s: %w", sessionID, err)
	}
	return snapshot, nil
}

func (s *redisSessionStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.redisClient.Del(ctx, s.keyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot of session %s: %w", sessionID, err)
	}
	return nil
}
