package statistics

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/surveyflow/backend/internal/models"
	"github.com/surveyflow/backend/internal/surveys"
	"github.com/surveyflow/backend/pkg/response"
)

// Handler serves survey results.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a statistics handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts the statistics routes.
func (h *Handler) Register(api *gin.RouterGroup) {
	api.GET("/survey/resultall", h.ResultAll)
	api.GET("/survey/resultall/nonMember", h.ResultAllNonMember)
}

// ResultAll handles GET /api/survey/resultall?surveyno=.
func (h *Handler) ResultAll(c *gin.Context) {
	h.result(c, h.service.Result)
}

// ResultAllNonMember handles GET /api/survey/resultall/nonMember?surveyno=. Results of surveys
// that are not public answer 404.
func (h *Handler) ResultAllNonMember(c *gin.Context) {
	h.result(c, h.service.PublicResult)
}

func (h *Handler) result(c *gin.Context, load func(context.Context, int64) (*models.SurveyResult, error)) {
	surveyNo, err := strconv.ParseInt(c.Query("surveyno"), 10, 64)
	if err != nil || surveyNo <= 0 {
		response.BadRequest(c, "invalid surveyno")
		return
	}
	res, err := load(c.Request.Context(), surveyNo)
	if errors.Is(err, surveys.ErrNotFound) || errors.Is(err, ErrMembersOnly) {
		response.NotFound(c, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("survey result failed", zap.Int64("survey_no", surveyNo), zap.Error(err))
		response.Internal(c, "failed to load survey result")
		return
	}
	response.OK(c, res)
}
