package attend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/surveyflow/backend/internal/flow"
	"github.com/surveyflow/backend/internal/realtime"
	"github.com/surveyflow/backend/internal/responses"
)

// Websocket events. Clients send choose, clear, answer and submit; the server replies with
// state, submitted or error.
const (
	EventChoose    = "choose"
	EventClear     = "clear"
	EventAnswer    = "answer"
	EventSubmit    = "submit"
	EventState     = "state"
	EventSubmitted = "submitted"
	EventError     = "error"
)

// AnswerMessage is the data of an answer event.
type AnswerMessage struct {
	QuestionNo int         `json:"questionNo"`
	Answer     flow.Answer `json:"answer"`
}

// ErrorMessage is the data of an error event. Status mirrors the HTTP status of the same error.
type ErrorMessage struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
	Anchor string `json:"anchor,omitempty"`
}

var errUnknownEvent = errors.New("unknown event")

// ServeWs handles GET /ws/attend/:id: the session's operations over one connection. Messages
// are handled in order, one at a time.
func (h *Handler) ServeWs(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	sess, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	conn, err := realtime.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	conn.SetReadLimit(65536)
	_ = conn.SetReadDeadline(time.Now().Add(realtime.PongWait * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(realtime.PongWait * time.Second))
	})

	done := make(chan struct{})
	defer close(done)
	go ping(conn, done)

	if err := send(conn, EventState, NewView(sess)); err != nil {
		return
	}
	ctx := c.Request.Context()
	for {
		var msg realtime.WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("attend websocket closed", zap.String("session_id", id.String()), zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(realtime.PongWait * time.Second))

		event, data, err := h.handleMessage(ctx, sess.ID, msg)
		if err != nil {
			event, data = EventError, h.errorMessage(err)
		}
		if err := send(conn, event, data); err != nil {
			return
		}
		if event == EventSubmitted {
			return
		}
	}
}

func (h *Handler) handleMessage(ctx context.Context, id uuid.UUID, msg realtime.WSMessage) (string, any, error) {
	var op func(p *flow.Player) error
	switch msg.Event {
	case EventChoose:
		var req ChooseRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return "", nil, fmt.Errorf("decode %s: %w", msg.Event, err)
		}
		op = func(p *flow.Player) error { return p.Choose(req.QuestionNo, req.SelectionNo) }
	case EventClear:
		var req ClearRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return "", nil, fmt.Errorf("decode %s: %w", msg.Event, err)
		}
		op = func(p *flow.Player) error { return p.Clear(req.QuestionNo) }
	case EventAnswer:
		var req AnswerMessage
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return "", nil, fmt.Errorf("decode %s: %w", msg.Event, err)
		}
		op = func(p *flow.Player) error { return p.Answer(req.QuestionNo, req.Answer) }
	case EventSubmit:
		receipt, err := h.submit(ctx, id)
		if err != nil {
			return "", nil, err
		}
		return EventSubmitted, receipt, nil
	default:
		return "", nil, fmt.Errorf("%w: %q", errUnknownEvent, msg.Event)
	}

	sess, err := h.step(ctx, id, op)
	if err != nil {
		return "", nil, err
	}
	return EventState, NewView(sess), nil
}

func (h *Handler) errorMessage(err error) ErrorMessage {
	var (
		incomplete *flow.IncompleteError
		syntax     *json.SyntaxError
		typeErr    *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &incomplete):
		return ErrorMessage{Status: 422, Error: err.Error(), Anchor: incomplete.Anchor()}
	case errors.Is(err, flow.ErrSurveyClosed):
		return ErrorMessage{Status: 410, Error: err.Error()}
	case errors.Is(err, responses.ErrAlreadyAttended), errors.Is(err, flow.ErrSurveyNotPosted):
		return ErrorMessage{Status: 409, Error: err.Error()}
	case errors.Is(err, errUnknownEvent), errors.Is(err, responses.ErrEmptySubmission),
		errors.As(err, &syntax), errors.As(err, &typeErr):
		return ErrorMessage{Status: 400, Error: err.Error()}
	}
	if status := statusOf(err); status != 0 {
		return ErrorMessage{Status: status, Error: err.Error()}
	}
	h.logger.Error("attend websocket request failed", zap.Error(err))
	return ErrorMessage{Status: 500, Error: "failed to process request"}
}

func send(conn *websocket.Conn, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(realtime.WriteWait))
	return conn.WriteJSON(realtime.WSMessage{Event: event, Data: data})
}

// ping runs beside the read loop. WriteControl may be called concurrently with WriteJSON.
func ping(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(realtime.PingInterval * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(realtime.WriteWait)); err != nil {
				return
			}
		}
	}
}
