package statistics

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/surveyflow/backend/internal/models"
	redisx "github.com/surveyflow/backend/pkg/redis"
)

const keyPrefix = "statistics:"

var (
	// ErrCacheMiss is returned by a Cache that holds no result for the survey.
	ErrCacheMiss = errors.New("statistics not cached")
	// ErrMembersOnly is returned when a visitor asks for the result of a survey that is not public.
	ErrMembersOnly = errors.New("survey result is only available to members")
)

// SurveyReader reads survey headers and question rows.
type SurveyReader interface {
	GetInfo(ctx context.Context, surveyNo int64) (*models.SurveyInfo, error)
	SurveyData(ctx context.Context, surveyNo int64) ([]models.SurveyItem, error)
}

// ResponseReader reads stored submissions.
type ResponseReader interface {
	ListBySurvey(ctx context.Context, surveyNo int64) ([]models.UserResponse, error)
	AttendCount(ctx context.Context, surveyNo int64) (int, error)
}

// Cache stores computed results.
type Cache interface {
	Get(ctx context.Context, surveyNo int64) (*models.SurveyResult, error)
	Set(ctx context.Context, result *models.SurveyResult) error
}

// Key returns the Redis key of a survey's cached result.
func Key(surveyNo int64) string { return keyPrefix + strconv.FormatInt(surveyNo, 10) }

// RedisCache keeps results as JSON values that expire after ttl.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed result cache.
func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Get loads a cached result.
func (c *RedisCache) Get(ctx context.Context, surveyNo int64) (*models.SurveyResult, error) {
	var res models.SurveyResult
	err := redisx.GetJSON(ctx, c.client, Key(surveyNo), &res)
	if errors.Is(err, redisx.ErrNotFound) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Set stores a result.
func (c *RedisCache) Set(ctx context.Context, res *models.SurveyResult) error {
	return redisx.SetJSON(ctx, c.client, Key(res.SurveyNo), res, c.ttl)
}

// Service computes survey results and serves them through the cache.
type Service struct {
	surveys   SurveyReader
	responses ResponseReader
	cache     Cache
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a statistics service. cache may be nil.
func NewService(surveys SurveyReader, responses ResponseReader, cache Cache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{surveys: surveys, responses: responses, cache: cache, logger: logger, now: time.Now}
}

// Result returns the cached result, computing and caching it on a miss.
func (s *Service) Result(ctx context.Context, surveyNo int64) (*models.SurveyResult, error) {
	if s.cache != nil {
		res, err := s.cache.Get(ctx, surveyNo)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.logger.Warn("statistics cache read failed", zap.Int64("survey_no", surveyNo), zap.Error(err))
		}
	}
	return s.Refresh(ctx, surveyNo)
}

// PublicResult is Result for visitors who are not signed in: only public surveys are served.
func (s *Service) PublicResult(ctx context.Context, surveyNo int64) (*models.SurveyResult, error) {
	info, err := s.surveys.GetInfo(ctx, surveyNo)
	if err != nil {
		return nil, err
	}
	if info.OpenStatusNo != models.OpenStatusPublic {
		return nil, ErrMembersOnly
	}
	return s.Result(ctx, surveyNo)
}

// Refresh recomputes a survey's result and replaces the cached copy.
func (s *Service) Refresh(ctx context.Context, surveyNo int64) (*models.SurveyResult, error) {
	info, err := s.surveys.GetInfo(ctx, surveyNo)
	if err != nil {
		return nil, err
	}
	rows, err := s.surveys.SurveyData(ctx, surveyNo)
	if err != nil {
		return nil, fmt.Errorf("survey data: %w", err)
	}
	rs, err := s.responses.ListBySurvey(ctx, surveyNo)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	count, err := s.responses.AttendCount(ctx, surveyNo)
	if err != nil {
		return nil, fmt.Errorf("attend count: %w", err)
	}

	res := &models.SurveyResult{
		SurveyNo:    surveyNo,
		AttendCount: count,
		Rows:        Aggregate(*info, rows, rs),
		ComputedAt:  s.now().UTC(),
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, res); err != nil {
			s.logger.Warn("statistics cache write failed", zap.Int64("survey_no", surveyNo), zap.Error(err))
		}
	}
	return res, nil
}
