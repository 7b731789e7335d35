package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/edu-sharks/lms-api/internal/models"
	"github.com/edu-sharks/lms-api/internal/service"
	"github.com/edu-sharks/lms-api/pkg/response"
)

// ActivityHandler exposes the admin-only activity trail.
type ActivityHandler struct {
	service *service.ActivityService
}

// NewActivityHandler creates a new handler.
func NewActivityHandler(svc *service.ActivityService) *ActivityHandler {
	return &ActivityHandler{service: svc}
}

// List godoc
// @Summary List activity entries
// @Description Returns the audit trail newest first, optionally filtered
// @Tags Activity
// @Produce json
// @Param username query string false "Filter by username"
// @Param action query string false "Filter by action"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /activity [get]
func (h *ActivityHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	filter := models.ActivityFilter{
		Username: c.Query("username"),
		Action:   c.Query("action"),
		Page:     page,
		PageSize: pageSize,
	}

	entries, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, entries, pagination)
}
