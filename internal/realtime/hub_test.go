package realtime

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopback delivers published events straight to the subscribers of the same process.
type loopback struct {
	mu        sync.Mutex
	handlers  map[int64]func(string, []byte)
	cancelled []int64
}

func newLoopback() *loopback {
	return &loopback{handlers: map[int64]func(string, []byte){}}
}

func (l *loopback) PublishSurveyEvent(surveyNo int64, event string, payload []byte) error {
	l.mu.Lock()
	h := l.handlers[surveyNo]
	l.mu.Unlock()
	if h != nil {
		h(event, payload)
	}
	return nil
}

func (l *loopback) SubscribeSurvey(surveyNo int64, handler func(string, []byte)) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[surveyNo] = handler
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.handlers, surveyNo)
		l.cancelled = append(l.cancelled, surveyNo)
	}, nil
}

func newTestClient(id string, surveyNo int64) *Client {
	return &Client{ID: id, SurveyNo: surveyNo, send: make(chan WSMessage, 4)}
}

func TestBroadcastReachesRoomOnly(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	a, b := newTestClient("a", 1), newTestClient("b", 2)
	hub.Register(a)
	hub.Register(b)

	hub.ResponseSubmitted(1, 4)

	require.Len(t, a.send, 1)
	msg := <-a.send
	assert.Equal(t, EventResponseSubmitted, msg.Event)
	assert.JSONEq(t, `{"surveyNo":1,"attendCount":4}`, string(msg.Data))
	assert.Empty(t, b.send)
}

func TestPublishDeliversOnceThroughRedis(t *testing.T) {
	lb := newLoopback()
	hub := NewHub(nil, lb, lb)
	c := newTestClient("a", 7)
	hub.Register(c)

	hub.Publish(7, EventAttendCount, AttendCountPayload{SurveyNo: 7, AttendCount: 1})
	assert.Len(t, c.send, 1)
}

func TestUnregisterCancelsSubscription(t *testing.T) {
	lb := newLoopback()
	hub := NewHub(nil, lb, lb)
	a, b := newTestClient("a", 3), newTestClient("b", 3)
	hub.Register(a)
	hub.Register(b)
	assert.Equal(t, 2, hub.Watchers(3))

	hub.Unregister(a)
	assert.Empty(t, lb.cancelled)
	hub.Unregister(b)
	assert.Equal(t, []int64{3}, lb.cancelled)
	assert.Zero(t, hub.Watchers(3))

	_, open := <-a.send
	assert.False(t, open)
}

func TestChannel(t *testing.T) {
	assert.Equal(t, "survey:42", Channel(42))
}

func TestServeWs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(nil, nil, nil)
	r := gin.New()
	r.GET("/ws/surveys/:no", ServeWs(hub, func(context.Context, int64) (int, error) { return 3, nil }, nil))
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/surveys/5"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, EventAttendCount, msg.Event)
	var payload AttendCountPayload
	require.NoError(t, json.Unmarshal(msg.Data, &payload))
	assert.Equal(t, AttendCountPayload{SurveyNo: 5, AttendCount: 3}, payload)

	hub.ResponseSubmitted(5, 4)
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, EventResponseSubmitted, msg.Event)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/ws/surveys/abc", nil))
	assert.Equal(t, 400, w.Code)
}
