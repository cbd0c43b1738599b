package responses

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/surveyflow/backend/internal/flow"
	"github.com/surveyflow/backend/internal/models"
	"github.com/surveyflow/backend/internal/surveys"
	"github.com/surveyflow/backend/pkg/response"
)

// MissingAnswer is the error detail for an incomplete submission. Anchor is the element id the
// client scrolls to.
type MissingAnswer struct {
	QuestionNo int    `json:"questionNo"`
	Title      string `json:"title"`
	Anchor     string `json:"anchor"`
}

// Handler handles response submission endpoints.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a responses handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts the response routes.
func (h *Handler) Register(api *gin.RouterGroup) {
	api.POST("/for-attend/surveys/save-responses", h.SaveResponses)
	api.GET("/my-surveys/attend-surveys", h.AttendSurveys)
}

// SaveResponses handles POST /api/for-attend/surveys/save-responses.
func (h *Handler) SaveResponses(c *gin.Context) {
	var rs []models.UserResponse
	if err := c.ShouldBindJSON(&rs); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	receipt, err := h.service.Save(c.Request.Context(), rs)
	if err != nil {
		WriteError(c, h.logger, err)
		return
	}
	response.Created(c, receipt)
}

// AttendSurveys handles GET /api/my-surveys/attend-surveys?userNo=.
func (h *Handler) AttendSurveys(c *gin.Context) {
	userNo, err := strconv.ParseInt(c.Query("userNo"), 10, 64)
	if err != nil || userNo <= 0 {
		response.BadRequest(c, "invalid userNo")
		return
	}
	list, err := h.service.AttendedBy(c.Request.Context(), userNo)
	if err != nil {
		h.logger.Error("list attended surveys failed", zap.Int64("user_no", userNo), zap.Error(err))
		response.Internal(c, "failed to list attended surveys")
		return
	}
	response.OK(c, list)
}

// WriteError maps submission errors onto the response envelope. Attend sessions share it.
func WriteError(c *gin.Context, logger *zap.Logger, err error) {
	var incomplete *flow.IncompleteError
	switch {
	case errors.As(err, &incomplete):
		response.Unprocessable(c, incomplete.Error(), MissingAnswer{
			QuestionNo: incomplete.QuestionNo,
			Title:      incomplete.Title,
			Anchor:     incomplete.Anchor(),
		})
	case errors.Is(err, flow.ErrSurveyClosed):
		response.Gone(c, err.Error())
	case errors.Is(err, ErrAlreadyAttended), errors.Is(err, flow.ErrSurveyNotPosted):
		response.Conflict(c, err.Error())
	case errors.Is(err, surveys.ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrEmptySubmission), errors.Is(err, flow.ErrSurveyMismatch),
		errors.Is(err, flow.ErrQuestionNotFound), errors.Is(err, flow.ErrSelectionNotFound),
		errors.Is(err, flow.ErrQuestionHidden), errors.Is(err, flow.ErrNotSingleChoice):
		response.BadRequest(c, err.Error())
	default:
		logger.Error("submission failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.Internal(c, "failed to save responses")
	}
}
