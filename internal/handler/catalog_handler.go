package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edu-sharks/lms-api/internal/models"
	"github.com/edu-sharks/lms-api/internal/service"
	appErrors "github.com/edu-sharks/lms-api/pkg/errors"
	"github.com/edu-sharks/lms-api/pkg/response"
)

// CatalogHandler exposes the catalog tree, filter cascade and subject creation.
type CatalogHandler struct {
	catalog *service.CatalogService
	filters *service.FilterService
}

// NewCatalogHandler creates a new handler.
func NewCatalogHandler(catalog *service.CatalogService, filters *service.FilterService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, filters: filters}
}

// Tree godoc
// @Summary Full catalog tree
// @Description Returns the Category→Stream→Subject→content tree
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /catalog/tree [get]
func (h *CatalogHandler) Tree(c *gin.Context) {
	tree, err := h.catalog.Tree(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tree, nil)
}

// Categories godoc
// @Summary List categories
// @Description Categories that currently contain at least one subject
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /catalog/categories [get]
func (h *CatalogHandler) Categories(c *gin.Context) {
	values, err := h.filters.Categories(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, values, nil)
}

// Streams godoc
// @Summary List streams under a category
// @Tags Catalog
// @Produce json
// @Param category query string true "Category"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /catalog/streams [get]
func (h *CatalogHandler) Streams(c *gin.Context) {
	values, err := h.filters.Streams(c.Request.Context(), c.Query("category"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, values, nil)
}

// Subjects godoc
// @Summary List subjects under a stream
// @Tags Catalog
// @Produce json
// @Param category query string true "Category"
// @Param stream query string true "Stream"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /catalog/subjects [get]
func (h *CatalogHandler) Subjects(c *gin.Context) {
	values, err := h.filters.Subjects(c.Request.Context(), c.Query("category"), c.Query("stream"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, values, nil)
}

// Content godoc
// @Summary List content by cascading filter
// @Description Filters cascade: stream requires category, subject requires stream
// @Tags Catalog
// @Produce json
// @Param category query string false "Category"
// @Param stream query string false "Stream"
// @Param subject query string false "Subject"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /catalog/content [get]
func (h *CatalogHandler) Content(c *gin.Context) {
	filter := models.ContentFilter{
		Category: c.Query("category"),
		Stream:   c.Query("stream"),
		Subject:  c.Query("subject"),
	}
	items, err := h.filters.Content(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// CreateSubject godoc
// @Summary Create a subject
// @Description Adds a subject node; duplicates are rejected with 409
// @Tags Catalog
// @Accept json
// @Produce json
// @Param payload body service.CreateSubjectRequest true "Subject payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /catalog/subjects [post]
func (h *CatalogHandler) CreateSubject(c *gin.Context) {
	var req service.CreateSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid subject payload"))
		return
	}

	subject, err := h.catalog.CreateSubject(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, subject)
}
