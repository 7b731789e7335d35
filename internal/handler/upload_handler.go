package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edu-sharks/lms-api/internal/service"
	appErrors "github.com/edu-sharks/lms-api/pkg/errors"
	"github.com/edu-sharks/lms-api/pkg/response"
)

// UploadHandler exposes the admin content publishing endpoint.
type UploadHandler struct {
	service *service.UploadService
	metrics *service.MetricsService
}

// NewUploadHandler creates a new handler.
func NewUploadHandler(svc *service.UploadService, metrics *service.MetricsService) *UploadHandler {
	return &UploadHandler{service: svc, metrics: metrics}
}

// Upload godoc
// @Summary Publish a content link
// @Description Appends a content item under an existing subject path
// @Tags Uploads
// @Accept json
// @Produce json
// @Param payload body service.UploadRequest true "Upload payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /uploads [post]
func (h *UploadHandler) Upload(c *gin.Context) {
	var req service.UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid upload payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	item, err := h.service.Upload(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordUpload()
	response.Created(c, item)
}
