package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Survey room events.
const (
	EventAttendCount       = "attend_count"
	EventResponseSubmitted = "response_submitted"
	EventWatchers          = "watchers"
)

// AttendCountPayload is sent with attend_count and response_submitted.
type AttendCountPayload struct {
	SurveyNo    int64 `json:"surveyNo"`
	AttendCount int   `json:"attendCount"`
}

// Hub maintains survey_no -> set of watching connections and broadcasts survey events.
// Uses Redis pub/sub for horizontal scaling: an event published on one instance reaches the
// watchers connected to every instance.
type Hub struct {
	rooms    map[int64]map[string]*Client
	subs     map[int64]func() // cancel Redis subscription per survey
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    Publisher
	redisSub Subscriber
}

// Publisher publishes survey events to other instances.
type Publisher interface {
	PublishSurveyEvent(surveyNo int64, event string, payload []byte) error
}

// Subscriber subscribes to survey channels and invokes handler for incoming events.
type Subscriber interface {
	SubscribeSurvey(surveyNo int64, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub. pub and sub may be nil for a single instance.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:    make(map[int64]map[string]*Client),
		subs:     make(map[int64]func()),
		logger:   logger,
		redis:    pub,
		redisSub: sub,
	}
}

// Register adds a client to a survey room. Starts the Redis subscription for the survey if it is
// the first watcher.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.SurveyNo] == nil {
		h.rooms[c.SurveyNo] = make(map[string]*Client)
		if h.redisSub != nil {
			surveyNo := c.SurveyNo
			cancel, err := h.redisSub.SubscribeSurvey(surveyNo, func(event string, payload []byte) {
				h.Broadcast(surveyNo, event, json.RawMessage(payload))
			})
			if err != nil {
				h.logger.Warn("subscribe survey channel failed", zap.Int64("survey_no", surveyNo), zap.Error(err))
			} else {
				h.subs[surveyNo] = cancel
			}
		}
	}
	h.rooms[c.SurveyNo][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("watcher joined survey", zap.String("client_id", c.ID), zap.Int64("survey_no", c.SurveyNo))
}

// Unregister removes a client from its room. Cancels the Redis subscription when the last
// watcher leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.rooms[c.SurveyNo]; ok {
		if _, ok := m[c.ID]; ok {
			delete(m, c.ID)
			close(c.send)
		}
		if len(m) == 0 {
			delete(h.rooms, c.SurveyNo)
			if cancel, ok := h.subs[c.SurveyNo]; ok {
				cancel()
				delete(h.subs, c.SurveyNo)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("watcher left survey", zap.String("client_id", c.ID), zap.Int64("survey_no", c.SurveyNo))
}

// Broadcast sends a message to all local watchers of a survey.
func (h *Hub) Broadcast(surveyNo int64, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		var err error
		if data, err = json.Marshal(payload); err != nil {
			h.logger.Warn("marshal event failed", zap.String("event", event), zap.Error(err))
			return
		}
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[surveyNo] {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// Publish delivers an event to the watchers of every instance. With Redis the subscription
// callback performs the local broadcast, so local watchers get the event once.
func (h *Hub) Publish(surveyNo int64, event string, payload interface{}) {
	if h.redis == nil {
		h.Broadcast(surveyNo, event, payload)
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := h.redis.PublishSurveyEvent(surveyNo, event, data); err != nil {
		h.logger.Warn("publish survey event failed", zap.Int64("survey_no", surveyNo), zap.Error(err))
		h.Broadcast(surveyNo, event, json.RawMessage(data))
	}
}

// ResponseSubmitted announces a new submission and the survey's attend count.
func (h *Hub) ResponseSubmitted(surveyNo int64, attendCount int) {
	h.Publish(surveyNo, EventResponseSubmitted, AttendCountPayload{SurveyNo: surveyNo, AttendCount: attendCount})
}

// Watchers returns the number of local connections watching a survey.
func (h *Hub) Watchers(surveyNo int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[surveyNo])
}

// Send sends a message to a single watcher.
func (h *Hub) Send(surveyNo int64, clientID string, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.rooms[surveyNo][clientID]
	if !ok {
		return
	}
	select {
	case c.send <- WSMessage{Event: event, Data: data}:
	default:
	}
}
