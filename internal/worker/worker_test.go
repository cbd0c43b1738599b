package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surveyflow/backend/internal/models"
	"github.com/surveyflow/backend/pkg/queue"
)

type fakeRefresher struct {
	calls []int64
	err   error
}

func (f *fakeRefresher) Refresh(_ context.Context, surveyNo int64) (*models.SurveyResult, error) {
	f.calls = append(f.calls, surveyNo)
	if f.err != nil {
		return nil, f.err
	}
	return &models.SurveyResult{SurveyNo: surveyNo, AttendCount: 3}, nil
}

type exportCall struct {
	id       uuid.UUID
	surveyNo int64
}

type fakeExporter struct {
	calls []exportCall
}

func (f *fakeExporter) Run(_ context.Context, id uuid.UUID, surveyNo int64) error {
	f.calls = append(f.calls, exportCall{id, surveyNo})
	return nil
}

// fakeSource hands out its jobs once, then cancels the worker.
type fakeSource struct {
	mu      sync.Mutex
	jobs    []*queue.Job
	retried []*queue.Job
	cancel  context.CancelFunc
}

func (f *fakeSource) Dequeue(context.Context, ...string) (*queue.Job, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.jobs) == 0 {
		f.cancel()
		return nil, "", nil
	}
	job := f.jobs[0]
	f.jobs = f.jobs[1:]
	key, _ := queue.QueueFor(job.Type)
	return job, key, nil
}

func (f *fakeSource) Retry(_ context.Context, job *queue.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job.Attempt++
	f.retried = append(f.retried, job)
	return nil
}

func job(t *testing.T, typ queue.JobType, payload any) *queue.Job {
	t.Helper()
	j, err := queue.NewJob(typ, payload)
	require.NoError(t, err)
	return j
}

func TestProcessDispatchesByType(t *testing.T) {
	ref := &fakeRefresher{}
	exp := &fakeExporter{}
	p := NewProcessor(nil, ref, exp, nil)
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, p.Process(ctx, job(t, queue.JobTypeStatisticsRefresh, queue.StatisticsRefreshPayload{SurveyNo: 7})))
	require.NoError(t, p.Process(ctx, job(t, queue.JobTypeResponseExport, queue.ResponseExportPayload{ExportID: id, SurveyNo: 7})))

	assert.Equal(t, []int64{7}, ref.calls)
	assert.Equal(t, []exportCall{{id, 7}}, exp.calls)

	err := p.Process(ctx, &queue.Job{Type: "webinar_recording", Payload: json.RawMessage(`{}`)})
	assert.ErrorContains(t, err, "unknown job type")

	err = p.Process(ctx, &queue.Job{Type: queue.JobTypeStatisticsRefresh, Payload: json.RawMessage(`"x"`)})
	assert.ErrorContains(t, err, "unmarshal payload")
}

func TestProcessWithoutObjectStorage(t *testing.T) {
	p := NewProcessor(nil, &fakeRefresher{}, nil, nil)
	err := p.Process(context.Background(), job(t, queue.JobTypeResponseExport, queue.ResponseExportPayload{ExportID: uuid.New(), SurveyNo: 1}))
	assert.ErrorContains(t, err, "object storage not configured")
}

func TestRunRetriesFailedJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	failing := job(t, queue.JobTypeStatisticsRefresh, queue.StatisticsRefreshPayload{SurveyNo: 1})
	src := &fakeSource{jobs: []*queue.Job{failing}, cancel: cancel}
	ref := &fakeRefresher{err: errors.New("database down")}
	p := NewProcessor(src, ref, &fakeExporter{}, nil)
	p.backoff = time.Millisecond

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}

	assert.Equal(t, []int64{1}, ref.calls)
	require.Len(t, src.retried, 1)
	assert.Equal(t, 1, src.retried[0].Attempt)
}

type fakeCloser struct {
	mu    sync.Mutex
	calls []time.Time
	n     int64
}

func (f *fakeCloser) CloseExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, now)
	return f.n, nil
}

func TestSweeper(t *testing.T) {
	closer := &fakeCloser{n: 2}
	s := NewSweeper(closer, 0, nil)
	assert.Equal(t, time.Minute, s.interval)

	fixed := time.Date(2030, 3, 1, 9, 0, 0, 0, time.FixedZone("KST", 9*3600))
	s.now = func() time.Time { return fixed }
	n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.Len(t, closer.calls, 1)
	assert.Equal(t, time.UTC, closer.calls[0].Location())
	assert.True(t, closer.calls[0].Equal(fixed))
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	closer := &fakeCloser{}
	s := NewSweeper(closer, 10*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	assert.Eventually(t, func() bool {
		closer.mu.Lock()
		defer closer.mu.Unlock()
		return len(closer.calls) >= 2
	}, 5*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
