package drafts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/surveyflow/backend/internal/flow"
	"github.com/surveyflow/backend/internal/models"
	redisx "github.com/surveyflow/backend/pkg/redis"
)

const keyPrefix = "draft:"

// ErrSessionNotFound is returned when a draft session does not exist or has expired.
var ErrSessionNotFound = errors.New("draft session not found")

// Session is one author's in-progress survey. SurveyNo is 0 until the draft is first saved.
type Session struct {
	ID        uuid.UUID         `json:"id"`
	SurveyNo  int64             `json:"surveyNo"`
	Info      models.SurveyInfo `json:"surveyInfo"`
	Draft     *flow.Draft       `json:"draft"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Store persists draft sessions.
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

// NewRedisStore creates a Redis-backed draft store.
func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Key returns the Redis key of a draft session.
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
