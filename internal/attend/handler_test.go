package attend

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surveyflow/backend/internal/flow"
	"github.com/surveyflow/backend/internal/models"
	"github.com/surveyflow/backend/internal/realtime"
	"github.com/surveyflow/backend/internal/responses"
	"github.com/surveyflow/backend/internal/surveys"
)

type memStore struct {
	sessions map[uuid.UUID][]byte
}

func (m *memStore) Get(_ context.Context, id uuid.UUID) (*Session, error) {
	raw, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (m *memStore) Save(_ context.Context, s *Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	m.sessions[s.ID] = raw
	return nil
}

func (m *memStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.sessions, id)
	return nil
}

var (
	testNow   = time.Date(2030, 1, 10, 12, 0, 0, 0, time.UTC)
	openUntil = time.Date(2030, 2, 1, 0, 0, 0, 0, time.UTC)
)

// Question 1 branches: A moves to question 3, B ends the survey. Questions 2 and 3 are
// required short answers.
func lunchItems() []flow.Item {
	return []flow.Item{
		{No: 1, Type: models.QuestionTypeMoveable, Title: "Go?", Required: true, Choices: []flow.Choice{
			{SelectionNo: 1, Value: "A", Movable: true, MoveTo: 3},
			{SelectionNo: 2, Value: "B", Movable: true, EndOfSurvey: true},
		}},
		{No: 2, Type: models.QuestionTypeShortAnswer, Title: "Why?", Required: true},
		{No: 3, Type: models.QuestionTypeShortAnswer, Title: "Where?", Required: true},
	}
}

type fakeLoader map[int64]time.Time

// unposted is a survey still being written.
const unposted = 3

func (f fakeLoader) Load(_ context.Context, no int64) ([]flow.Item, time.Time, error) {
	if no == unposted {
		return nil, time.Time{}, flow.ErrSurveyNotPosted
	}
	closingAt, ok := f[no]
	if !ok {
		return nil, time.Time{}, surveys.ErrNotFound
	}
	return lunchItems(), closingAt, nil
}

type fakeSubmitter struct {
	stored []*flow.Player
}

func (f *fakeSubmitter) SubmitPlayer(_ context.Context, p *flow.Player) (*responses.Receipt, error) {
	if err := p.Validate(testNow, openUntil); err != nil {
		return nil, err
	}
	f.stored = append(f.stored, p)
	return &responses.Receipt{SurveyNo: p.SurveyNo, UserNo: p.UserNo, Responses: len(p.Responses), AttendCount: len(f.stored)}, nil
}

type harness struct {
	t      *testing.T
	router *gin.Engine
	sub    *fakeSubmitter
}

func newHarness(t *testing.T) *harness {
	gin.SetMode(gin.TestMode)
	sub := &fakeSubmitter{}
	h := NewHandler(&memStore{sessions: map[uuid.UUID][]byte{}}, fakeLoader{1: openUntil, 2: testNow.Add(-time.Hour)}, sub, nil)
	h.now = func() time.Time { return testNow }
	r := gin.New()
	h.Register(r.Group("/api"))
	r.GET("/ws/attend/:id", h.ServeWs)
	return &harness{t: t, router: r, sub: sub}
}

func (h *harness) call(method, path string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *harness) view(w *httptest.ResponseRecorder) View {
	h.t.Helper()
	var body struct {
		Data View `json:"data"`
	}
	require.NoError(h.t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body.Data
}

func (h *harness) ok(method, path string, body any) View {
	h.t.Helper()
	w := h.call(method, path, body)
	require.Equal(h.t, http.StatusOK, w.Code, w.Body.String())
	return h.view(w)
}

func (h *harness) start(surveyNo int64) string {
	h.t.Helper()
	w := h.call(http.MethodPost, "/api/for-attend/sessions", StartRequest{SurveyNo: surveyNo, UserNo: 5})
	require.Equal(h.t, http.StatusCreated, w.Code, w.Body.String())
	return "/api/for-attend/sessions/" + h.view(w).ID.String()
}

func TestAttendBranching(t *testing.T) {
	h := newHarness(t)
	base := h.start(1)

	v := h.ok(http.MethodGet, base, nil)
	require.Len(t, v.Questions, 3)
	assert.Empty(t, v.Hidden)
	assert.Equal(t, "question-2", v.Questions[1].Anchor)

	v = h.ok(http.MethodPost, base+"/choose", ChooseRequest{QuestionNo: 1, SelectionNo: 1})
	assert.Equal(t, []int{2}, v.Hidden)
	assert.True(t, v.Questions[1].Hidden)
	assert.False(t, v.Questions[2].Hidden)

	w := h.call(http.MethodPut, base+"/answers/2", flow.Answer{Text: "hungry"})
	assert.Equal(t, http.StatusConflict, w.Code)

	v = h.ok(http.MethodPut, base+"/answers/3", flow.Answer{Text: "Downtown"})
	assert.Len(t, v.Responses, 2)

	v = h.ok(http.MethodPost, base+"/choose", ChooseRequest{QuestionNo: 1, SelectionNo: 2})
	assert.Equal(t, []int{2, 3}, v.Hidden)
	require.Len(t, v.Responses, 1)
	assert.True(t, v.Responses[0].EndOfSurvey)

	v = h.ok(http.MethodPost, base+"/clear", ClearRequest{QuestionNo: 1})
	assert.Empty(t, v.Hidden)
	assert.Empty(t, v.Responses)

	w = h.call(http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), `"anchor":"question-1"`)

	h.ok(http.MethodPost, base+"/choose", ChooseRequest{QuestionNo: 1, SelectionNo: 2})
	w = h.call(http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, h.sub.stored, 1)
	assert.Equal(t, int64(5), h.sub.stored[0].UserNo)

	assert.Equal(t, http.StatusNotFound, h.call(http.MethodGet, base, nil).Code)
}

func TestAttendAnswerFollowsBranches(t *testing.T) {
	h := newHarness(t)
	base := h.start(1)

	v := h.ok(http.MethodPut, base+"/answers/1", flow.Answer{Choice: &flow.ChoiceRef{SelectionNo: 2}})
	assert.Equal(t, []int{2, 3}, v.Hidden)
	require.Len(t, v.Responses, 1)
	assert.True(t, v.Responses[0].EndOfSurvey)
	assert.Equal(t, http.StatusConflict, h.call(http.MethodPut, base+"/answers/3", flow.Answer{Text: "x"}).Code)

	v = h.ok(http.MethodPut, base+"/answers/1", flow.Answer{})
	assert.Empty(t, v.Hidden)
	assert.Empty(t, v.Responses)

	h.ok(http.MethodPut, base+"/answers/1", flow.Answer{Choice: &flow.ChoiceRef{SelectionNo: 2}})
	w := h.call(http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, h.sub.stored, 1)
	assert.Len(t, h.sub.stored[0].Responses, 1)
}

func TestAttendErrors(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, http.StatusGone, h.call(http.MethodPost, "/api/for-attend/sessions", StartRequest{SurveyNo: 2}).Code)
	assert.Equal(t, http.StatusNotFound, h.call(http.MethodPost, "/api/for-attend/sessions", StartRequest{SurveyNo: 9}).Code)
	assert.Equal(t, http.StatusConflict, h.call(http.MethodPost, "/api/for-attend/sessions", StartRequest{SurveyNo: unposted}).Code)
	assert.Equal(t, http.StatusBadRequest, h.call(http.MethodPost, "/api/for-attend/sessions", StartRequest{}).Code)

	base := h.start(1)
	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown question", http.MethodPost, base + "/choose", ChooseRequest{QuestionNo: 9, SelectionNo: 1}, http.StatusNotFound},
		{"unknown selection", http.MethodPost, base + "/choose", ChooseRequest{QuestionNo: 1, SelectionNo: 9}, http.StatusNotFound},
		{"choose on free text", http.MethodPost, base + "/choose", ChooseRequest{QuestionNo: 2, SelectionNo: 1}, http.StatusBadRequest},
		{"bad question number", http.MethodPut, base + "/answers/x", flow.Answer{Text: "a"}, http.StatusBadRequest},
		{"bad session id", http.MethodGet, "/api/for-attend/sessions/nope", nil, http.StatusBadRequest},
		{"unknown session", http.MethodGet, "/api/for-attend/sessions/" + uuid.NewString(), nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, h.call(tt.method, tt.path, tt.body).Code)
		})
	}
}

func TestAttendWebsocket(t *testing.T) {
	h := newHarness(t)
	base := h.start(1)
	id := strings.TrimPrefix(base, "/api/for-attend/sessions/")

	srv := httptest.NewServer(h.router)
	defer srv.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/attend/"+id, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	exchange := func(event string, data any) realtime.WSMessage {
		t.Helper()
		if event != "" {
			raw, err := json.Marshal(data)
			require.NoError(t, err)
			require.NoError(t, conn.WriteJSON(realtime.WSMessage{Event: event, Data: raw}))
		}
		var msg realtime.WSMessage
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	msg := exchange("", nil)
	assert.Equal(t, EventState, msg.Event)

	msg = exchange(EventChoose, ChooseRequest{QuestionNo: 1, SelectionNo: 1})
	require.Equal(t, EventState, msg.Event)
	var v View
	require.NoError(t, json.Unmarshal(msg.Data, &v))
	assert.Equal(t, []int{2}, v.Hidden)

	msg = exchange(EventSubmit, nil)
	require.Equal(t, EventError, msg.Event)
	var e ErrorMessage
	require.NoError(t, json.Unmarshal(msg.Data, &e))
	assert.Equal(t, ErrorMessage{Status: 422, Error: "question 3 requires an answer", Anchor: "question-3"}, e)

	msg = exchange("dance", nil)
	require.Equal(t, EventError, msg.Event)
	require.NoError(t, json.Unmarshal(msg.Data, &e))
	assert.Equal(t, 400, e.Status)

	msg = exchange(EventAnswer, AnswerMessage{QuestionNo: 3, Answer: flow.Answer{Text: "Downtown"}})
	require.Equal(t, EventState, msg.Event)

	msg = exchange(EventSubmit, nil)
	require.Equal(t, EventSubmitted, msg.Event)
	var receipt responses.Receipt
	require.NoError(t, json.Unmarshal(msg.Data, &receipt))
	assert.Equal(t, 2, receipt.Responses)
}
