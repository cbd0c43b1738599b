package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/surveyflow/backend/pkg/response"
)

// WriteWait bounds every websocket write.
const WriteWait = 10 * time.Second

// Upgrader is shared by every websocket endpoint.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// AttendCounter returns the current attend count of a survey.
type AttendCounter func(ctx context.Context, surveyNo int64) (int, error)

// Client is a single WebSocket connection watching a survey.
type Client struct {
	ID       string
	SurveyNo int64
	JoinedAt time.Time
	hub      *Hub
	conn     *websocket.Conn
	send     chan WSMessage
	logger   *zap.Logger
}

// ServeWs handles GET /ws/surveys/:no: the upgrade, the initial attend count, then the client loop.
func ServeWs(hub *Hub, counter AttendCounter, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		surveyNo, err := strconv.ParseInt(c.Param("no"), 10, 64)
		if err != nil || surveyNo <= 0 {
			response.BadRequest(c, "invalid survey number")
			return
		}
		count := 0
		if counter != nil {
			if count, err = counter(c.Request.Context(), surveyNo); err != nil {
				logger.Error("attend count failed", zap.Int64("survey_no", surveyNo), zap.Error(err))
				response.Internal(c, "failed to load attend count")
				return
			}
		}

		conn, err := Upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:       uuid.New().String(),
			SurveyNo: surveyNo,
			JoinedAt: time.Now(),
			hub:      hub,
			conn:     conn,
			send:     make(chan WSMessage, 256),
			logger:   logger,
		}
		hub.Register(client)
		hub.Send(surveyNo, client.ID, EventAttendCount, AttendCountPayload{SurveyNo: surveyNo, AttendCount: count})
		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		switch msg.Event {
		case EventWatchers:
			c.hub.Send(c.SurveyNo, c.ID, EventWatchers, map[string]int{"count": c.hub.Watchers(c.SurveyNo)})
		default:
			// watchers only listen
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
