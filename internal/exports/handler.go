package exports

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/surveyflow/backend/internal/surveys"
	"github.com/surveyflow/backend/pkg/response"
)

// Handler handles export endpoints.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates an exports handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts the export routes.
func (h *Handler) Register(api *gin.RouterGroup) {
	api.POST("/surveys/:no/exports", h.Request)
	api.GET("/exports/:id", h.Get)
	api.DELETE("/exports/:id", h.Delete)
}

// Request handles POST /api/surveys/:no/exports. The CSV is written by the worker.
func (h *Handler) Request(c *gin.Context) {
	surveyNo, ok := surveys.ParseSurveyNo(c, "no")
	if !ok {
		return
	}
	exp, err := h.service.Request(c.Request.Context(), surveyNo)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Accepted(c, exp)
}

// Get handles GET /api/exports/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid export id")
		return
	}
	exp, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, exp)
}

// Delete handles DELETE /api/exports/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid export id")
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, surveys.ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrStorageDisabled):
		response.ServiceUnavailable(c, err.Error())
	default:
		h.logger.Error("export request failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.Internal(c, "failed to process export")
	}
}
