package responses

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/surveyflow/backend/internal/flow"
	"github.com/surveyflow/backend/internal/models"
)

// ErrEmptySubmission is returned when a submission carries no responses.
var ErrEmptySubmission = errors.New("submission has no responses")

// SurveySource reads the survey a submission belongs to.
type SurveySource interface {
	SurveyData(ctx context.Context, surveyNo int64) ([]models.SurveyItem, error)
	ClosingAt(ctx context.Context, surveyNo int64) (time.Time, error)
	Status(ctx context.Context, surveyNo int64) (models.SurveyStatus, error)
}

// Store persists submissions.
type Store interface {
	Submit(ctx context.Context, surveyNo, userNo int64, rs []models.UserResponse) (int, error)
	AttendedBy(ctx context.Context, userNo int64) ([]models.Attendance, error)
}

// Notifier tells survey watchers about a new submission.
type Notifier interface {
	ResponseSubmitted(surveyNo int64, attendCount int)
}

// Refresher schedules a statistics recomputation.
type Refresher interface {
	EnqueueStatisticsRefresh(ctx context.Context, surveyNo int64) error
}

// Receipt is returned after a successful submission.
type Receipt struct {
	SurveyNo    int64 `json:"surveyNo"`
	UserNo      int64 `json:"userNo"`
	Responses   int   `json:"responses"`
	AttendCount int   `json:"attendCount"`
}

// Service validates and stores submissions. Notifier and Refresher are optional.
type Service struct {
	surveys   SurveySource
	store     Store
	notifier  Notifier
	refresher Refresher
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a submission service.
func NewService(surveys SurveySource, store Store, notifier Notifier, refresher Refresher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		surveys:   surveys,
		store:     store,
		notifier:  notifier,
		refresher: refresher,
		logger:    logger,
		now:       time.Now,
	}
}

// Load fetches survey data, closing time and status concurrently. A survey still being written
// cannot be taken and yields flow.ErrSurveyNotPosted.
func (s *Service) Load(ctx context.Context, surveyNo int64) ([]flow.Item, time.Time, error) {
	var (
		rows      []models.SurveyItem
		closingAt time.Time
		status    models.SurveyStatus
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		status, err = s.surveys.Status(gctx, surveyNo)
		return err
	})
	g.Go(func() error {
		var err error
		rows, err = s.surveys.SurveyData(gctx, surveyNo)
		return err
	})
	g.Go(func() error {
		var err error
		closingAt, err = s.surveys.ClosingAt(gctx, surveyNo)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, time.Time{}, err
	}
	if status == models.SurveyStatusWriting {
		return nil, time.Time{}, flow.ErrSurveyNotPosted
	}
	return flow.GroupItems(rows), closingAt, nil
}

// Save handles a flat response array: the answers are replayed against the stored survey so
// branches and hidden questions are recomputed server-side, then validated and stored.
func (s *Service) Save(ctx context.Context, rs []models.UserResponse) (*Receipt, error) {
	if len(rs) == 0 {
		return nil, ErrEmptySubmission
	}
	surveyNo, userNo := rs[0].SurveyNo, rs[0].UserNo
	items, closingAt, err := s.Load(ctx, surveyNo)
	if err != nil {
		return nil, err
	}
	// Closed surveys are rejected before the answers are looked at.
	if err := flow.CheckOpen(s.now(), closingAt); err != nil {
		return nil, err
	}
	p, err := flow.Replay(surveyNo, userNo, items, rs)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, p, closingAt)
}

// SubmitPlayer validates and stores a pass built up in an attend session. The closing time is
// read again so a session started before the deadline cannot submit after it.
func (s *Service) SubmitPlayer(ctx context.Context, p *flow.Player) (*Receipt, error) {
	closingAt, err := s.surveys.ClosingAt(ctx, p.SurveyNo)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, p, closingAt)
}

func (s *Service) submit(ctx context.Context, p *flow.Player, closingAt time.Time) (*Receipt, error) {
	if err := p.Validate(s.now(), closingAt); err != nil {
		return nil, err
	}
	if len(p.Responses) == 0 {
		return nil, ErrEmptySubmission
	}
	count, err := s.store.Submit(ctx, p.SurveyNo, p.UserNo, p.Responses)
	if err != nil {
		return nil, fmt.Errorf("store submission: %w", err)
	}

	if s.notifier != nil {
		s.notifier.ResponseSubmitted(p.SurveyNo, count)
	}
	if s.refresher != nil {
		if err := s.refresher.EnqueueStatisticsRefresh(ctx, p.SurveyNo); err != nil {
			s.logger.Warn("enqueue statistics refresh failed", zap.Int64("survey_no", p.SurveyNo), zap.Error(err))
		}
	}
	s.logger.Info("responses submitted", zap.Int64("survey_no", p.SurveyNo), zap.Int64("user_no", p.UserNo),
		zap.Int("responses", len(p.Responses)), zap.Int("attend_count", count))
	return &Receipt{SurveyNo: p.SurveyNo, UserNo: p.UserNo, Responses: len(p.Responses), AttendCount: count}, nil
}

// AttendedBy lists the surveys a user answered.
func (s *Service) AttendedBy(ctx context.Context, userNo int64) ([]models.Attendance, error) {
	return s.store.AttendedBy(ctx, userNo)
}
