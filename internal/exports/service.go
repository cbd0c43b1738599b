package exports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/surveyflow/backend/internal/models"
	"github.com/surveyflow/backend/pkg/storage"
)

// ErrStorageDisabled is returned when no object storage is configured.
var ErrStorageDisabled = errors.New("object storage is not configured")

// Store persists export records.
type Store interface {
	Create(ctx context.Context, surveyNo int64) (*models.Export, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Export, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, objectKey string, rowCount int) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// SurveyChecker confirms a survey exists.
type SurveyChecker interface {
	GetInfo(ctx context.Context, surveyNo int64) (*models.SurveyInfo, error)
}

// ResponseReader reads stored submissions.
type ResponseReader interface {
	ListBySurvey(ctx context.Context, surveyNo int64) ([]models.UserResponse, error)
}

// Enqueuer hands export jobs to the worker.
type Enqueuer interface {
	EnqueueResponseExport(ctx context.Context, exportID uuid.UUID, surveyNo int64) error
}

// ObjectStore is the slice of *storage.S3 exports use.
type ObjectStore interface {
	Upload(ctx context.Context, bucket, key, contentType string, body io.Reader) error
	DeleteObject(ctx context.Context, bucket, key string) error
	GeneratePresignedDownloadURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error)
	PresignExpire() time.Duration
	ExportsBucket() string
}

// Service requests, runs and serves CSV exports of survey responses.
type Service struct {
	store     Store
	surveys   SurveyChecker
	responses ResponseReader
	queue     Enqueuer
	objects   ObjectStore
	logger    *zap.Logger
}

// NewService creates an export service. objects may be nil, which disables exports.
func NewService(store Store, surveys SurveyChecker, responses ResponseReader, queue Enqueuer, objects ObjectStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, surveys: surveys, responses: responses, queue: queue, objects: objects, logger: logger}
}

// Request records a pending export and enqueues the job that writes it.
func (s *Service) Request(ctx context.Context, surveyNo int64) (*models.Export, error) {
	if s.objects == nil {
		return nil, ErrStorageDisabled
	}
	if _, err := s.surveys.GetInfo(ctx, surveyNo); err != nil {
		return nil, err
	}
	exp, err := s.store.Create(ctx, surveyNo)
	if err != nil {
		return nil, fmt.Errorf("create export: %w", err)
	}
	if err := s.queue.EnqueueResponseExport(ctx, exp.ID, surveyNo); err != nil {
		if markErr := s.store.MarkFailed(ctx, exp.ID, "enqueue failed"); markErr != nil {
			s.logger.Warn("mark export failed", zap.String("export_id", exp.ID.String()), zap.Error(markErr))
		}
		return nil, fmt.Errorf("enqueue export: %w", err)
	}
	return exp, nil
}

// Get returns an export, with a presigned download URL once it is completed.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Export, error) {
	exp, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if exp.Status != models.ExportStatusCompleted || s.objects == nil {
		return exp, nil
	}
	url, err := s.objects.GeneratePresignedDownloadURL(ctx, s.objects.ExportsBucket(), exp.ObjectKey, s.objects.PresignExpire())
	if err != nil {
		return nil, err
	}
	exp.DownloadURL = url
	return exp, nil
}

// Delete removes an export and its object.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	exp, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if exp.ObjectKey != "" && s.objects != nil {
		if err := s.objects.DeleteObject(ctx, s.objects.ExportsBucket(), exp.ObjectKey); err != nil {
			return err
		}
	}
	return s.store.Delete(ctx, id)
}

// Run writes a survey's responses to the exports bucket as CSV and records the result. Failures
// are recorded on the export and returned so the job can be retried.
func (s *Service) Run(ctx context.Context, id uuid.UUID, surveyNo int64) error {
	if s.objects == nil {
		return ErrStorageDisabled
	}
	exp, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if exp.Status == models.ExportStatusCompleted {
		s.logger.Info("export already completed", zap.String("export_id", id.String()))
		return nil
	}

	rs, err := s.responses.ListBySurvey(ctx, surveyNo)
	if err != nil {
		return s.fail(ctx, id, fmt.Errorf("list responses: %w", err))
	}

	key := storage.ExportKey(surveyNo, id.String())
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(WriteCSV(pw, rs))
	}()
	err = s.objects.Upload(ctx, s.objects.ExportsBucket(), key, storage.ContentTypeCSV, pr)
	// Unblocks the writer when the upload stopped reading early.
	pr.CloseWithError(err)
	if err != nil {
		return s.fail(ctx, id, err)
	}

	if err := s.store.MarkCompleted(ctx, id, key, len(rs)); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	s.logger.Info("export completed", zap.String("export_id", id.String()), zap.String("s3_key", key), zap.Int("rows", len(rs)))
	return nil
}

func (s *Service) fail(ctx context.Context, id uuid.UUID, err error) error {
	if markErr := s.store.MarkFailed(ctx, id, err.Error()); markErr != nil {
		s.logger.Warn("mark export failed", zap.String("export_id", id.String()), zap.Error(markErr))
	}
	return err
}
