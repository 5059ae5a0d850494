package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/iufc-admission-api/internal/models"
	"github.com/noah-isme/iufc-admission-api/internal/service"
	"github.com/noah-isme/iufc-admission-api/pkg/response"
)

type prospectService interface {
	Create(ctx context.Context, req service.CreateProspectRequest) (*models.Prospect, error)
	List(ctx context.Context, claims *models.JWTClaims, filter models.ProspectFilter) ([]models.Prospect, *models.Pagination, error)
}

// ProspectHandler exposes the public lead form and its manager listing.
type ProspectHandler struct {
	prospects prospectService
}

// NewProspectHandler constructs ProspectHandler.
func NewProspectHandler(prospects prospectService) *ProspectHandler {
	return &ProspectHandler{prospects: prospects}
}

// Create godoc
// @Summary Register interest in a training
// @Tags Prospects
// @Accept json
// @Produce json
// @Param payload body service.CreateProspectRequest true "Prospect payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /prospects [post]
func (h *ProspectHandler) Create(c *gin.Context) {
	var req service.CreateProspectRequest
	if !bindJSON(c, &req) {
		return
	}
	prospect, err := h.prospects.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, prospect)
}

// List godoc
// @Summary List prospects
// @Tags Prospects
// @Produce json
// @Param trainingId query string false "Filter by training"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /prospects [get]
func (h *ProspectHandler) List(c *gin.Context) {
	var filter models.ProspectFilter
	filter.TrainingID = c.Query("trainingId")
	filter.Page, filter.PageSize = pageParams(c, 50)

	prospects, pagination, err := h.prospects.List(c.Request.Context(), claimsFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, prospects, pagination)
}
