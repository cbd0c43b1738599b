// Package worker runs background jobs: survey result refreshes, CSV response exports and the
// sweep that closes surveys past their closing date.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/surveyflow/backend/internal/models"
	"github.com/surveyflow/backend/pkg/queue"
)

// JobSource hands out jobs and takes failed ones back.
type JobSource interface {
	Dequeue(ctx context.Context, keys ...string) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// Refresher recomputes and caches a survey's results.
type Refresher interface {
	Refresh(ctx context.Context, surveyNo int64) (*models.SurveyResult, error)
}

// Exporter writes a survey's responses to object storage.
type Exporter interface {
	Run(ctx context.Context, id uuid.UUID, surveyNo int64) error
}

// Processor dispatches queued jobs by type.
type Processor struct {
	jobs      JobSource
	refresher Refresher
	exporter  Exporter
	logger    *zap.Logger
	backoff   time.Duration
}

// NewProcessor creates a job processor. A nil exporter fails export jobs, which then end up in
// the dead-letter queue.
func NewProcessor(jobs JobSource, refresher Refresher, exporter Exporter, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{jobs: jobs, refresher: refresher, exporter: exporter, logger: logger, backoff: queue.RetryBackoff}
}

// Process executes one job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeStatisticsRefresh:
		var payload queue.StatisticsRefreshPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		res, err := p.refresher.Refresh(ctx, payload.SurveyNo)
		if err != nil {
			return fmt.Errorf("refresh survey %d: %w", payload.SurveyNo, err)
		}
		p.logger.Info("survey results refreshed", zap.Int64("survey_no", payload.SurveyNo), zap.Int("attend_count", res.AttendCount))
		return nil

	case queue.JobTypeResponseExport:
		var payload queue.ResponseExportPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		if p.exporter == nil {
			return fmt.Errorf("export %s: object storage not configured", payload.ExportID)
		}
		if err := p.exporter.Run(ctx, payload.ExportID, payload.SurveyNo); err != nil {
			return fmt.Errorf("export %s: %w", payload.ExportID, err)
		}
		return nil

	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("job worker stopping")
			return
		default:
		}

		job, _, err := p.jobs.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.jobs.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *Processor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
