package surveys

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/surveyflow/backend/internal/flow"
	"github.com/surveyflow/backend/internal/models"
)

// Store is the persistence the surveys handler and service need.
type Store interface {
	Create(ctx context.Context, req models.SurveyCreateRequest, closingAt time.Time) (int64, error)
	Update(ctx context.Context, surveyNo int64, req models.SurveyCreateRequest, closingAt time.Time) error
	GetInfo(ctx context.Context, surveyNo int64) (*models.SurveyInfo, error)
	GetDetail(ctx context.Context, surveyNo int64) (*models.SurveyDetail, error)
	SurveyData(ctx context.Context, surveyNo int64) ([]models.SurveyItem, error)
	ClosingAt(ctx context.Context, surveyNo int64) (time.Time, error)
	List(ctx context.Context, q ListQuery) (*models.Page[models.SurveySummary], error)
	Recent(ctx context.Context, limit int) ([]models.SurveySummary, error)
	Closing(ctx context.Context, limit int) ([]models.SurveySummary, error)
	Weekly(ctx context.Context, since time.Time, limit int) ([]models.SurveySummary, error)
	ListByUser(ctx context.Context, userNo int64, status models.SurveyStatus) ([]models.SurveySummary, error)
	Delete(ctx context.Context, surveyNo int64) error
	DeleteWriting(ctx context.Context, surveyNo int64) error
	Publish(ctx context.Context, surveyNo int64) error
}

// Service validates creation payloads before they reach the store.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService creates a survey service.
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// Save validates req and creates the survey, or replaces it when SurveyID is set. It returns
// the survey number and whether a new survey was created.
func (s *Service) Save(ctx context.Context, req models.SurveyCreateRequest) (int64, bool, error) {
	if err := flow.ValidateCreateRequest(req); err != nil {
		return 0, false, err
	}
	closingAt, err := flow.ClosingInstant(req.SurveyInfo.SurveyClosingAt)
	if err != nil {
		return 0, false, err
	}

	if no := req.SurveyInfo.SurveyID; no != 0 {
		if err := s.store.Update(ctx, no, req, closingAt); err != nil {
			return 0, false, err
		}
		s.logger.Info("survey updated", zap.Int64("survey_no", no), zap.Int("questions", len(req.Questions)))
		return no, false, nil
	}

	no, err := s.store.Create(ctx, req, closingAt)
	if err != nil {
		return 0, false, err
	}
	s.logger.Info("survey created", zap.Int64("survey_no", no), zap.Int("questions", len(req.Questions)))
	return no, true, nil
}

// NewPage builds a page envelope. Content is never nil so it encodes as [].
func NewPage[T any](content []T, page, size, total int) *models.Page[T] {
	if content == nil {
		content = []T{}
	}
	pages := 0
	if size > 0 {
		pages = (total + size - 1) / size
	}
	return &models.Page[T]{Content: content, Page: page, Size: size, TotalElements: total, TotalPages: pages}
}
