package surveys

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/surveyflow/backend/internal/flow"
	"github.com/surveyflow/backend/internal/models"
	"github.com/surveyflow/backend/pkg/response"
)

const (
	defaultPageSize = 12
	maxPageSize     = 100
	cardLimit       = 8
	weeklyWindow    = 7 * 24 * time.Hour
)

// WriteSurveyRequest is the body of PUT /api/my-surveys/update-write-surveys.
type WriteSurveyRequest struct {
	SurveyNo       int64               `json:"surveyNo" binding:"required,min=1"`
	SurveyStatusNo models.SurveyStatus `json:"surveyStatusNo"`
}

// Handler handles survey HTTP endpoints.
type Handler struct {
	store   Store
	service *Service
	logger  *zap.Logger
	now     func() time.Time
}

// NewHandler creates a surveys handler.
func NewHandler(store Store, service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, service: service, logger: logger, now: time.Now}
}

// Register mounts the survey routes.
func (h *Handler) Register(api *gin.RouterGroup) {
	api.POST("/surveys", h.Create)
	api.PUT("/surveys", h.Update)
	api.GET("/surveys/surveyall", h.List)
	api.GET("/surveys/recent", h.Recent)
	api.GET("/surveys/closing", h.Closing)
	api.GET("/surveys/weekly", h.Weekly)
	api.GET("/surveys/search", h.Search)
	api.GET("/surveys/select-post", h.SelectPost)
	api.GET("/surveys/select-closing", h.SelectClosing)
	api.GET("/my-surveys/write-surveys", h.WriteSurveys)
	api.PUT("/my-surveys/update-write-surveys", h.DeleteWriteSurvey)
	api.GET("/surveys/:no", h.Detail)
	api.DELETE("/surveys/:no", h.Delete)
	api.POST("/surveys/:no/post", h.Post)
	api.GET("/for-attend/surveys/survey-data/:no", h.SurveyData)
	api.GET("/for-attend/surveys/closing-time/:no", h.ClosingTime)
}

// ParseSurveyNo reads a positive survey number from the named path parameter.
func ParseSurveyNo(c *gin.Context, param string) (int64, bool) {
	no, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || no <= 0 {
		response.BadRequest(c, "invalid survey number")
		return 0, false
	}
	return no, true
}

// Create handles POST /api/surveys.
func (h *Handler) Create(c *gin.Context) {
	var req models.SurveyCreateRequest
	if err := flow.DecodeError(c.ShouldBindJSON(&req)); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	req.SurveyInfo.SurveyID = 0
	no, _, err := h.service.Save(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, gin.H{"surveyNo": no})
}

// Update handles PUT /api/surveys. Only surveys still being written can be replaced.
func (h *Handler) Update(c *gin.Context) {
	var req models.SurveyCreateRequest
	if err := flow.DecodeError(c.ShouldBindJSON(&req)); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.SurveyInfo.SurveyID <= 0 {
		response.BadRequest(c, "surveyId is required")
		return
	}
	no, _, err := h.service.Save(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, gin.H{"surveyNo": no})
}

// Detail handles GET /api/surveys/:no.
func (h *Handler) Detail(c *gin.Context) {
	no, ok := ParseSurveyNo(c, "no")
	if !ok {
		return
	}
	detail, err := h.store.GetDetail(c.Request.Context(), no)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, detail)
}

// Delete handles DELETE /api/surveys/:no.
func (h *Handler) Delete(c *gin.Context) {
	no, ok := ParseSurveyNo(c, "no")
	if !ok {
		return
	}
	if err := h.store.Delete(c.Request.Context(), no); err != nil {
		h.writeError(c, err)
		return
	}
	response.NoContent(c)
}

// Post handles POST /api/surveys/:no/post.
func (h *Handler) Post(c *gin.Context) {
	no, ok := ParseSurveyNo(c, "no")
	if !ok {
		return
	}
	if err := h.store.Publish(c.Request.Context(), no); err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, gin.H{"surveyNo": no, "surveyStatusNo": models.SurveyStatusProgress})
}

// List handles GET /api/surveys/surveyall?page=&size=&search=.
func (h *Handler) List(c *gin.Context) {
	h.page(c, 0)
}

// SelectPost handles GET /api/surveys/select-post?page=: surveys in progress.
func (h *Handler) SelectPost(c *gin.Context) {
	h.page(c, models.SurveyStatusProgress)
}

// SelectClosing handles GET /api/surveys/select-closing?page=: closed surveys.
func (h *Handler) SelectClosing(c *gin.Context) {
	h.page(c, models.SurveyStatusClosed)
}

func (h *Handler) page(c *gin.Context, status models.SurveyStatus) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "0"))
	if err != nil || page < 0 {
		response.BadRequest(c, "invalid page")
		return
	}
	size, err := strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(defaultPageSize)))
	if err != nil || size <= 0 {
		response.BadRequest(c, "invalid size")
		return
	}
	size = min(size, maxPageSize)
	result, err := h.store.List(c.Request.Context(), ListQuery{
		Page:   page,
		Size:   size,
		Search: strings.TrimSpace(c.Query("search")),
		Status: status,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, result)
}

// Search handles GET /api/surveys/search?searchWord=, matching titles and tags.
func (h *Handler) Search(c *gin.Context) {
	word := strings.TrimSpace(c.Query("searchWord"))
	if word == "" {
		response.BadRequest(c, "searchWord is required")
		return
	}
	result, err := h.store.List(c.Request.Context(), ListQuery{Size: maxPageSize, Search: word})
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, result.Content)
}

// Recent handles GET /api/surveys/recent.
func (h *Handler) Recent(c *gin.Context) {
	list, err := h.store.Recent(c.Request.Context(), cardLimit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, list)
}

// Closing handles GET /api/surveys/closing.
func (h *Handler) Closing(c *gin.Context) {
	list, err := h.store.Closing(c.Request.Context(), cardLimit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, list)
}

// Weekly handles GET /api/surveys/weekly: the most attended surveys posted in the last week.
func (h *Handler) Weekly(c *gin.Context) {
	list, err := h.store.Weekly(c.Request.Context(), h.now().Add(-weeklyWindow), cardLimit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, list)
}

// WriteSurveys handles GET /api/my-surveys/write-surveys?userNo=&status=: the user's own
// surveys in every state and visibility.
func (h *Handler) WriteSurveys(c *gin.Context) {
	userNo, err := strconv.ParseInt(c.Query("userNo"), 10, 64)
	if err != nil || userNo <= 0 {
		response.BadRequest(c, "invalid userNo")
		return
	}
	status, err := strconv.Atoi(c.DefaultQuery("status", "0"))
	if err != nil || status < 0 || status > int(models.SurveyStatusClosed) {
		response.BadRequest(c, "invalid status")
		return
	}
	list, err := h.store.ListByUser(c.Request.Context(), userNo, models.SurveyStatus(status))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, list)
}

// DeleteWriteSurvey handles PUT /api/my-surveys/update-write-surveys, deleting a survey that is
// still being written.
func (h *Handler) DeleteWriteSurvey(c *gin.Context) {
	var req WriteSurveyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.SurveyStatusNo != 0 && req.SurveyStatusNo != models.SurveyStatusWriting {
		response.Conflict(c, ErrNotEditable.Error())
		return
	}
	if err := h.store.DeleteWriting(c.Request.Context(), req.SurveyNo); err != nil {
		h.writeError(c, err)
		return
	}
	h.logger.Info("draft survey deleted", zap.Int64("survey_no", req.SurveyNo))
	response.OK(c, gin.H{"surveyNo": req.SurveyNo})
}

// SurveyData handles GET /api/for-attend/surveys/survey-data/:no.
func (h *Handler) SurveyData(c *gin.Context) {
	no, ok := ParseSurveyNo(c, "no")
	if !ok {
		return
	}
	rows, err := h.store.SurveyData(c.Request.Context(), no)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if rows == nil {
		rows = []models.SurveyItem{}
	}
	response.OK(c, models.SurveyData{Content: rows})
}

// ClosingTime handles GET /api/for-attend/surveys/closing-time/:no.
func (h *Handler) ClosingTime(c *gin.Context) {
	no, ok := ParseSurveyNo(c, "no")
	if !ok {
		return
	}
	at, err := h.store.ClosingAt(c.Request.Context(), no)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, gin.H{"surveyNo": no, "closingAt": at.UTC()})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var invalid flow.ValidationErrors
	switch {
	case errors.As(err, &invalid):
		response.Unprocessable(c, "survey is not valid", invalid)
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrNotEditable), errors.Is(err, ErrAlreadyPosted):
		response.Conflict(c, err.Error())
	default:
		h.logger.Error("survey request failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.Internal(c, "failed to process survey request")
	}
}
