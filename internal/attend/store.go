package attend

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/surveyflow/backend/internal/flow"
	redisx "github.com/surveyflow/backend/pkg/redis"
)

const keyPrefix = "attend:"

// ErrSessionNotFound is returned when an attend session does not exist or has expired.
var ErrSessionNotFound = errors.New("attend session not found")

// Session is one respondent's pass through a survey.
type Session struct {
	ID        uuid.UUID    `json:"id"`
	Player    *flow.Player `json:"player"`
	ClosingAt time.Time    `json:"closingAt"`
	StartedAt time.Time    `json:"startedAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Store persists attend sessions.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// RedisStore keeps sessions as JSON values that expire after ttl without activity.
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed attend session store.
func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Key returns the Redis key of an attend session.
func Key(id uuid.UUID) string { return keyPrefix + id.String() }

// Get loads a session.
func (s *RedisStore) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	var sess Session
	err := redisx.GetJSON(ctx, s.client, Key(id), &sess)
	if errors.Is(err, redisx.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// Save writes a session and refreshes its expiry.
func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	sess.UpdatedAt = time.Now()
	return redisx.SetJSON(ctx, s.client, Key(sess.ID), sess, s.ttl)
}

// Delete removes a session.
func (s *RedisStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.client.Del(ctx, Key(id)).Err()
}
