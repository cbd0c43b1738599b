// Package attend serves take-time sessions: a respondent's pass through a survey held on the
// server, so branch hiding and answer pruning follow the same rules as the final submission.
package attend

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/surveyflow/backend/internal/flow"
	"github.com/surveyflow/backend/internal/responses"
	"github.com/surveyflow/backend/pkg/response"
)

// Loader fetches a survey's questions and closing time.
type Loader interface {
	Load(ctx context.Context, surveyNo int64) ([]flow.Item, time.Time, error)
}

// Submitter validates and stores a finished pass.
type Submitter interface {
	SubmitPlayer(ctx context.Context, p *flow.Player) (*responses.Receipt, error)
}

// StartRequest is the body for POST /api/for-attend/sessions.
type StartRequest struct {
	SurveyNo int64 `json:"surveyNo" binding:"required,min=1"`
	UserNo   int64 `json:"userNo" binding:"min=0"`
}

// ChooseRequest picks one option of a single-choice or branching question.
type ChooseRequest struct {
	QuestionNo  int `json:"questionNo" binding:"required,min=1"`
	SelectionNo int `json:"selectionNo" binding:"required,min=1"`
}

// ClearRequest removes the answer to a question.
type ClearRequest struct {
	QuestionNo int `json:"questionNo" binding:"required,min=1"`
}

// Handler serves attend sessions over HTTP and websocket.
type Handler struct {
	store     Store
	loader    Loader
	submitter Submitter
	logger    *zap.Logger
	now       func() time.Time
}

// NewHandler creates an attend handler.
func NewHandler(store Store, loader Loader, submitter Submitter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, loader: loader, submitter: submitter, logger: logger, now: time.Now}
}

// Register mounts the session routes.
func (h *Handler) Register(api *gin.RouterGroup) {
	g := api.Group("/for-attend/sessions")
	g.POST("", h.Start)
	g.GET("/:id", h.Get)
	g.POST("/:id/choose", h.Choose)
	g.POST("/:id/clear", h.Clear)
	g.PUT("/:id/answers/:questionNo", h.Answer)
	g.POST("/:id/submit", h.Submit)
}

// Start handles POST /api/for-attend/sessions. Only posted surveys that are still open can be started.
func (h *Handler) Start(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	items, closingAt, err := h.loader.Load(c.Request.Context(), req.SurveyNo)
	if err == nil {
		err = flow.CheckOpen(h.now(), closingAt)
	}
	if err != nil {
		responses.WriteError(c, h.logger, err)
		return
	}
	sess := &Session{
		ID:        uuid.New(),
		Player:    flow.NewPlayer(req.SurveyNo, req.UserNo, items),
		ClosingAt: closingAt,
		StartedAt: h.now(),
	}
	if err := h.store.Save(c.Request.Context(), sess); err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, NewView(sess))
}

// Get handles GET /api/for-attend/sessions/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	sess, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, NewView(sess))
}

// Choose handles POST /api/for-attend/sessions/:id/choose.
func (h *Handler) Choose(c *gin.Context) {
	var req ChooseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	h.respond(c, func(p *flow.Player) error { return p.Choose(req.QuestionNo, req.SelectionNo) })
}

// Clear handles POST /api/for-attend/sessions/:id/clear.
func (h *Handler) Clear(c *gin.Context) {
	var req ClearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	h.respond(c, func(p *flow.Player) error { return p.Clear(req.QuestionNo) })
}

// Answer handles PUT /api/for-attend/sessions/:id/answers/:questionNo.
func (h *Handler) Answer(c *gin.Context) {
	no, err := strconv.Atoi(c.Param("questionNo"))
	if err != nil || no <= 0 {
		response.BadRequest(c, "invalid question number")
		return
	}
	var a flow.Answer
	if err := c.ShouldBindJSON(&a); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	h.respond(c, func(p *flow.Player) error { return p.Answer(no, a) })
}

// Submit handles POST /api/for-attend/sessions/:id/submit. The session ends once stored.
func (h *Handler) Submit(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	receipt, err := h.submit(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, receipt)
}

func (h *Handler) respond(c *gin.Context, op func(p *flow.Player) error) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	sess, err := h.step(c.Request.Context(), id, op)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, NewView(sess))
}

// step runs op on the stored pass and writes it back only when op succeeds.
func (h *Handler) step(ctx context.Context, id uuid.UUID, op func(p *flow.Player) error) (*Session, error) {
	sess, err := h.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := op(sess.Player); err != nil {
		return nil, err
	}
	if err := h.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (h *Handler) submit(ctx context.Context, id uuid.UUID) (*responses.Receipt, error) {
	sess, err := h.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	receipt, err := h.submitter.SubmitPlayer(ctx, sess.Player)
	if err != nil {
		return nil, err
	}
	if err := h.store.Delete(ctx, id); err != nil {
		h.logger.Warn("discard submitted session", zap.String("session_id", id.String()), zap.Error(err))
	}
	return receipt, nil
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return uuid.Nil, false
	}
	return id, true
}

// statusOf maps a session error to an HTTP status. Zero means the error is a submission error.
func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, flow.ErrQuestionNotFound),
		errors.Is(err, flow.ErrSelectionNotFound):
		return http.StatusNotFound
	case errors.Is(err, flow.ErrQuestionHidden):
		return http.StatusConflict
	case errors.Is(err, flow.ErrNotSingleChoice):
		return http.StatusBadRequest
	}
	return 0
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch statusOf(err) {
	case http.StatusNotFound:
		response.NotFound(c, err.Error())
	case http.StatusConflict:
		response.Conflict(c, err.Error())
	case http.StatusBadRequest:
		response.BadRequest(c, err.Error())
	default:
		responses.WriteError(c, h.logger, err)
	}
}
