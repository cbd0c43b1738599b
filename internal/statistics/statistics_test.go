package statistics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surveyflow/backend/internal/models"
	"github.com/surveyflow/backend/internal/surveys"
)

func strPtr(s string) *string { return &s }

func surveyRows() []models.SurveyItem {
	return []models.SurveyItem{
		{SurveyNo: 3, SurveyQuestionNo: 2, QuestionTypeNo: models.QuestionTypeShortAnswer, SurveyQuestionTitle: "Why?"},
		{SurveyNo: 3, SurveyQuestionNo: 1, QuestionTypeNo: models.QuestionTypeMultiple, SurveyQuestionTitle: "Food?",
			SelectionNo: 1, SelectionValue: "Rice"},
		{SurveyNo: 3, SurveyQuestionNo: 1, QuestionTypeNo: models.QuestionTypeMultiple, SurveyQuestionTitle: "Food?",
			SelectionNo: 2, SelectionValue: "Noodles"},
		{SurveyNo: 3, SurveyQuestionNo: 3, QuestionTypeNo: models.QuestionTypeLongAnswer, SurveyQuestionTitle: "More?"},
	}
}

func surveyResponses() []models.UserResponse {
	pick := func(sel int) models.UserResponse {
		return models.UserResponse{SurveyNo: 3, SurveyQuestionNo: 1, QuestionTypeNo: models.QuestionTypeMultiple, SelectionNo: sel}
	}
	answer := func(text string) models.UserResponse {
		return models.UserResponse{SurveyNo: 3, SurveyQuestionNo: 2, QuestionTypeNo: models.QuestionTypeShortAnswer,
			SurveySubjectiveAnswer: strPtr(text)}
	}
	return []models.UserResponse{pick(1), pick(2), pick(2), answer("cheap"), answer(" tasty "), answer("tasty"), answer("  ")}
}

func TestAggregate(t *testing.T) {
	info := models.SurveyInfo{SurveyID: 3, SurveyTitle: "Lunch"}
	rows := Aggregate(info, surveyRows(), surveyResponses())

	require.Len(t, rows, 5)
	assert.Equal(t, "Lunch", rows[0].SurveyTitle)

	assert.Equal(t, 1, rows[0].SurveyQuestionNo)
	assert.Equal(t, "Rice", rows[0].SelectionValue)
	assert.Equal(t, 1, rows[0].SelectionCount)
	assert.Equal(t, "Noodles", rows[1].SelectionValue)
	assert.Equal(t, 2, rows[1].SelectionCount)

	assert.Equal(t, 2, rows[2].SurveyQuestionNo)
	assert.Equal(t, "tasty", rows[2].SurveySubjectiveAnswer)
	assert.Equal(t, 2, rows[2].SurveySubjectiveAnswerCount)
	assert.Equal(t, "cheap", rows[3].SurveySubjectiveAnswer)
	assert.Equal(t, 1, rows[3].SurveySubjectiveAnswerCount)

	assert.Equal(t, 3, rows[4].SurveyQuestionNo)
	assert.Empty(t, rows[4].SurveySubjectiveAnswer)
	assert.Zero(t, rows[4].SurveySubjectiveAnswerCount)
}

func TestAggregateWithoutQuestions(t *testing.T) {
	rows := Aggregate(models.SurveyInfo{}, nil, nil)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

type fakeSource struct {
	reads int
}

// Survey 3 is public, survey 4 is for members only.
func (f *fakeSource) GetInfo(_ context.Context, no int64) (*models.SurveyInfo, error) {
	open := map[int64]models.OpenStatus{3: models.OpenStatusPublic, 4: models.OpenStatusOnlyUser}
	status, ok := open[no]
	if !ok {
		return nil, surveys.ErrNotFound
	}
	f.reads++
	return &models.SurveyInfo{SurveyID: no, SurveyTitle: "Lunch", OpenStatusNo: status}, nil
}

func (f *fakeSource) SurveyData(context.Context, int64) ([]models.SurveyItem, error) {
	return surveyRows(), nil
}

func (f *fakeSource) ListBySurvey(context.Context, int64) ([]models.UserResponse, error) {
	return surveyResponses(), nil
}

func (f *fakeSource) AttendCount(context.Context, int64) (int, error) { return 4, nil }

type mapCache struct {
	results map[int64]*models.SurveyResult
	failGet bool
}

func (m *mapCache) Get(_ context.Context, no int64) (*models.SurveyResult, error) {
	if m.failGet {
		return nil, errors.New("redis down")
	}
	res, ok := m.results[no]
	if !ok {
		return nil, ErrCacheMiss
	}
	return res, nil
}

func (m *mapCache) Set(_ context.Context, res *models.SurveyResult) error {
	m.results[res.SurveyNo] = res
	return nil
}

func TestResultUsesCache(t *testing.T) {
	src := &fakeSource{}
	cache := &mapCache{results: map[int64]*models.SurveyResult{}}
	svc := NewService(src, src, cache, nil)
	svc.now = func() time.Time { return time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC) }

	res, err := svc.Result(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 4, res.AttendCount)
	assert.Len(t, res.Rows, 5)
	assert.Same(t, res, cache.results[3])

	_, err = svc.Result(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 1, src.reads, "second read is served from the cache")

	_, err = svc.Refresh(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 2, src.reads)
}

func TestResultFallsBackWhenCacheFails(t *testing.T) {
	src := &fakeSource{}
	svc := NewService(src, src, &mapCache{results: map[int64]*models.SurveyResult{}, failGet: true}, nil)

	res, err := svc.Result(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.SurveyNo)
}

func TestResultAllHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	src := &fakeSource{}
	r := gin.New()
	NewHandler(NewService(src, src, nil, nil), nil).Register(r.Group("/api"))

	tests := []struct {
		path string
		want int
	}{
		{"/api/survey/resultall?surveyno=3", http.StatusOK},
		{"/api/survey/resultall?surveyno=4", http.StatusOK},
		{"/api/survey/resultall?surveyno=9", http.StatusNotFound},
		{"/api/survey/resultall?surveyno=x", http.StatusBadRequest},
		{"/api/survey/resultall", http.StatusBadRequest},
		{"/api/survey/resultall/nonMember?surveyno=3", http.StatusOK},
		{"/api/survey/resultall/nonMember?surveyno=4", http.StatusNotFound},
		{"/api/survey/resultall/nonMember?surveyno=9", http.StatusNotFound},
		{"/api/survey/resultall/nonMember?surveyno=0", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "statistics:12", Key(12))
}
