package drafts

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/surveyflow/backend/internal/flow"
	"github.com/surveyflow/backend/internal/models"
	"github.com/surveyflow/backend/internal/surveys"
	"github.com/surveyflow/backend/pkg/response"
)

// Saver persists a finished draft as a survey.
type Saver interface {
	Save(ctx context.Context, req models.SurveyCreateRequest) (int64, bool, error)
}

// Loader reads a stored survey back for editing.
type Loader interface {
	GetDetail(ctx context.Context, surveyNo int64) (*models.SurveyDetail, error)
}

// StartRequest is the body for POST /api/drafts.
type StartRequest struct {
	SurveyNo int64 `json:"surveyNo"`
	UserNo   int64 `json:"userNo"`
}

// EditQuestionRequest is the body for PATCH .../questions/:qid.
type EditQuestionRequest struct {
	Title       string `json:"title" binding:"max=255"`
	Description string `json:"description"`
}

// TypeRequest is the body for PUT .../questions/:qid/type.
type TypeRequest struct {
	QuestionType models.QuestionType `json:"questionType" binding:"required"`
}

// RequiredRequest is the body for PUT .../questions/:qid/required.
type RequiredRequest struct {
	Required bool `json:"required"`
}

// SelectionRequest is the body for PATCH .../selections/:sid.
type SelectionRequest struct {
	Value string `json:"value"`
}

// ReorderRequest is the body for POST .../reorder. Positions are 0-based.
type ReorderRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// SaveRequest is the body for POST .../save.
type SaveRequest struct {
	Publish bool `json:"publish"`
}

// Handler serves the authoring endpoints. Every flow builder operation is one route.
type Handler struct {
	store  Store
	saver  Saver
	loader Loader
	logger *zap.Logger
}

// NewHandler creates a drafts handler.
func NewHandler(store Store, saver Saver, loader Loader, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, saver: saver, loader: loader, logger: logger}
}

// Register mounts the draft routes.
func (h *Handler) Register(api *gin.RouterGroup) {
	g := api.Group("/drafts")
	g.POST("", h.Start)
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Discard)
	g.PUT("/:id/info", h.SetInfo)
	g.POST("/:id/reorder", h.Reorder)
	g.POST("/:id/save", h.Save)

	g.POST("/:id/questions", h.AddQuestion)
	g.PATCH("/:id/questions/:qid", h.EditQuestion)
	g.DELETE("/:id/questions/:qid", h.RemoveQuestion)
	g.POST("/:id/questions/:qid/duplicate", h.DuplicateQuestion)
	g.PUT("/:id/questions/:qid/type", h.ChangeType)
	g.PUT("/:id/questions/:qid/required", h.SetRequired)

	g.POST("/:id/questions/:qid/selections", h.AddSelection)
	g.PATCH("/:id/questions/:qid/selections/:sid", h.EditSelection)
	g.DELETE("/:id/questions/:qid/selections/:sid", h.RemoveSelection)
	g.PUT("/:id/questions/:qid/selections/:sid/branch", h.SetBranch)
}

// Start handles POST /api/drafts: an empty draft, or an existing survey opened for editing.
func (h *Handler) Start(c *gin.Context) {
	var req StartRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return
		}
	}
	sess := &Session{
		ID:    uuid.New(),
		Draft: flow.NewDraft(),
		Info: models.SurveyInfo{
			UserNo:         req.UserNo,
			OpenStatusNo:   models.OpenStatusPublic,
			SurveyStatusNo: models.SurveyStatusWriting,
		},
	}
	if req.SurveyNo > 0 {
		detail, err := h.loader.GetDetail(c.Request.Context(), req.SurveyNo)
		if err != nil {
			h.writeError(c, err)
			return
		}
		if detail.SurveyInfo.SurveyStatusNo != models.SurveyStatusWriting {
			response.Conflict(c, surveys.ErrNotEditable.Error())
			return
		}
		sess.SurveyNo = req.SurveyNo
		sess.Info = detail.SurveyInfo
		sess.Draft = flow.DraftFromQuestions(detail.Questions)
	}
	if err := h.store.Save(c.Request.Context(), sess); err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, NewView(sess))
}

// Get handles GET /api/drafts/:id.
func (h *Handler) Get(c *gin.Context) {
	sess, ok := h.load(c)
	if !ok {
		return
	}
	response.OK(c, NewView(sess))
}

// Discard handles DELETE /api/drafts/:id.
func (h *Handler) Discard(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid draft id")
		return
	}
	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	response.NoContent(c)
}

// SetInfo handles PUT /api/drafts/:id/info.
func (h *Handler) SetInfo(c *gin.Context) {
	var info models.SurveyInfo
	// A draft header may be incomplete until the draft is saved.
	if err := flow.DecodeError(c.ShouldBindJSON(&info)); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	h.apply(c, func(s *Session) error {
		info.SurveyID = s.SurveyNo
		info.SurveyInfoID = s.SurveyNo
		s.Info = info
		return nil
	})
}

// AddQuestion handles POST /api/drafts/:id/questions.
func (h *Handler) AddQuestion(c *gin.Context) {
	h.apply(c, func(s *Session) error {
		s.Draft.AddQuestion()
		return nil
	})
}

// EditQuestion handles PATCH /api/drafts/:id/questions/:qid.
func (h *Handler) EditQuestion(c *gin.Context) {
	var req EditQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	h.applyQuestion(c, func(d *flow.Draft, qid uuid.UUID) error {
		return d.EditQuestion(qid, req.Title, req.Description)
	})
}

// RemoveQuestion handles DELETE /api/drafts/:id/questions/:qid.
func (h *Handler) RemoveQuestion(c *gin.Context) {
	h.applyQuestion(c, func(d *flow.Draft, qid uuid.UUID) error {
		return d.RemoveQuestion(qid)
	})
}

// DuplicateQuestion handles POST /api/drafts/:id/questions/:qid/duplicate.
func (h *Handler) DuplicateQuestion(c *gin.Context) {
	h.applyQuestion(c, func(d *flow.Draft, qid uuid.UUID) error {
		_, err := d.DuplicateQuestion(qid)
		return err
	})
}

// ChangeType handles PUT /api/drafts/:id/questions/:qid/type.
func (h *Handler) ChangeType(c *gin.Context) {
	var req TypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	h.applyQuestion(c, func(d *flow.Draft, qid uuid.UUID) error {
		return d.ChangeQuestionType(qid, req.QuestionType)
	})
}

// SetRequired handles PUT /api/drafts/:id/questions/:qid/required.
func (h *Handler) SetRequired(c *gin.Context) {
	var req RequiredRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	h.applyQuestion(c, func(d *flow.Draft, qid uuid.UUID) error {
		return d.SetRequired(qid, req.Required)
	})
}

// AddSelection handles POST /api/drafts/:id/questions/:qid/selections.
func (h *Handler) AddSelection(c *gin.Context) {
	h.applyQuestion(c, func(d *flow.Draft, qid uuid.UUID) error {
		_, err := d.AddSelection(qid)
		return err
	})
}

// EditSelection handles PATCH /api/drafts/:id/questions/:qid/selections/:sid.
func (h *Handler) EditSelection(c *gin.Context) {
	var req SelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	h.applySelection(c, func(d *flow.Draft, qid, sid uuid.UUID) error {
		return d.EditSelection(qid, sid, req.Value)
	})
}

// RemoveSelection handles DELETE /api/drafts/:id/questions/:qid/selections/:sid.
func (h *Handler) RemoveSelection(c *gin.Context) {
	h.applySelection(c, func(d *flow.Draft, qid, sid uuid.UUID) error {
		return d.RemoveSelection(qid, sid)
	})
}

// SetBranch handles PUT /api/drafts/:id/questions/:qid/selections/:sid/branch.
func (h *Handler) SetBranch(c *gin.Context) {
	var t flow.Target
	if err := c.ShouldBindJSON(&t); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	h.applySelection(c, func(d *flow.Draft, qid, sid uuid.UUID) error {
		return d.SetBranchTarget(qid, sid, t)
	})
}

// Reorder handles POST /api/drafts/:id/reorder.
func (h *Handler) Reorder(c *gin.Context) {
	var req ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	h.apply(c, func(s *Session) error {
		return s.Draft.Reorder(req.From, req.To)
	})
}

// Save handles POST /api/drafts/:id/save: validate, persist as a survey and optionally post it.
func (h *Handler) Save(c *gin.Context) {
	var req SaveRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return
		}
	}
	sess, ok := h.load(c)
	if !ok {
		return
	}
	info := sess.Info
	info.SurveyID = sess.SurveyNo
	if req.Publish {
		info.SurveyStatusNo = models.SurveyStatusProgress
	}
	no, created, err := h.saver.Save(c.Request.Context(), models.SurveyCreateRequest{
		SurveyInfo: info,
		Questions:  sess.Draft.QuestionCreates(sess.SurveyNo),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	if req.Publish {
		// A posted survey can no longer be edited, so the draft is done.
		if err := h.store.Delete(c.Request.Context(), sess.ID); err != nil {
			h.logger.Warn("discard published draft", zap.String("draft_id", sess.ID.String()), zap.Error(err))
		}
	} else {
		sess.SurveyNo = no
		sess.Info.SurveyID = no
		sess.Info.SurveyInfoID = no
		if err := h.store.Save(c.Request.Context(), sess); err != nil {
			h.writeError(c, err)
			return
		}
	}
	h.logger.Info("draft saved", zap.String("draft_id", sess.ID.String()), zap.Int64("survey_no", no),
		zap.Bool("created", created), zap.Bool("published", req.Publish))
	response.OK(c, gin.H{"surveyNo": no, "created": created, "published": req.Publish})
}

func (h *Handler) load(c *gin.Context) (*Session, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid draft id")
		return nil, false
	}
	sess, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return nil, false
	}
	return sess, true
}

// apply runs op on the stored session and writes it back only when op succeeds, so a rejected
// edit leaves the draft as it was.
func (h *Handler) apply(c *gin.Context, op func(s *Session) error) {
	sess, ok := h.load(c)
	if !ok {
		return
	}
	if err := op(sess); err != nil {
		h.writeError(c, err)
		return
	}
	if err := h.store.Save(c.Request.Context(), sess); err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, NewView(sess))
}

func (h *Handler) applyQuestion(c *gin.Context, op func(d *flow.Draft, qid uuid.UUID) error) {
	qid, err := uuid.Parse(c.Param("qid"))
	if err != nil {
		response.BadRequest(c, "invalid question id")
		return
	}
	h.apply(c, func(s *Session) error { return op(s.Draft, qid) })
}

func (h *Handler) applySelection(c *gin.Context, op func(d *flow.Draft, qid, sid uuid.UUID) error) {
	qid, err := uuid.Parse(c.Param("qid"))
	if err != nil {
		response.BadRequest(c, "invalid question id")
		return
	}
	sid, err := uuid.Parse(c.Param("sid"))
	if err != nil {
		response.BadRequest(c, "invalid selection id")
		return
	}
	h.apply(c, func(s *Session) error { return op(s.Draft, qid, sid) })
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var invalid flow.ValidationErrors
	switch {
	case errors.As(err, &invalid):
		response.Unprocessable(c, "survey is not valid", invalid)
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, surveys.ErrNotFound),
		errors.Is(err, flow.ErrQuestionNotFound), errors.Is(err, flow.ErrSelectionNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, flow.ErrInvalidQuestionType), errors.Is(err, flow.ErrInvalidPosition):
		response.BadRequest(c, err.Error())
	case errors.Is(err, flow.ErrRequiredInSkipRange), errors.Is(err, flow.ErrInvalidTarget),
		errors.Is(err, flow.ErrNotBranching), errors.Is(err, flow.ErrNoSelections),
		errors.Is(err, surveys.ErrNotEditable):
		response.Conflict(c, err.Error())
	default:
		h.logger.Error("draft request failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.Internal(c, "failed to process draft request")
	}
}
