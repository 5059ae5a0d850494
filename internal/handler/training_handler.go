package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/iufc-admission-api/internal/dto"
	"github.com/noah-isme/iufc-admission-api/internal/middleware"
	"github.com/noah-isme/iufc-admission-api/internal/models"
	"github.com/noah-isme/iufc-admission-api/internal/service"
	"github.com/noah-isme/iufc-admission-api/pkg/response"
)

type trainingService interface {
	List(ctx context.Context, claims *models.JWTClaims, filter models.TrainingFilter) ([]models.Training, *models.Pagination, error)
	GetCached(ctx context.Context, id string) (*models.Training, bool, error)
	Create(ctx context.Context, claims *models.JWTClaims, req service.CreateTrainingRequest) (*models.Training, error)
	Update(ctx context.Context, claims *models.JWTClaims, id string, req service.UpdateTrainingRequest) (*models.Training, error)
	AddManager(ctx context.Context, claims *models.JWTClaims, trainingID, personID string) error
	RemoveManager(ctx context.Context, claims *models.JWTClaims, trainingID, personID string) error
}

// TrainingHandler exposes training endpoints.
type TrainingHandler struct {
	trainings trainingService
}

// NewTrainingHandler constructs TrainingHandler.
func NewTrainingHandler(trainings trainingService) *TrainingHandler {
	return &TrainingHandler{trainings: trainings}
}

// List godoc
// @Summary List trainings
// @Tags Trainings
// @Produce json
// @Param active query bool false "Filter by active flag"
// @Param managerId query string false "Trainings managed by a person"
// @Param search query string false "Search by acronym or title"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /trainings [get]
func (h *TrainingHandler) List(c *gin.Context) {
	var filter models.TrainingFilter
	filter.Active = queryBool(c, "active")
	filter.ManagerID = c.Query("managerId")
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Page, filter.PageSize = pageParams(c, 50)

	trainings, pagination, err := h.trainings.List(c.Request.Context(), claimsFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, trainings, pagination)
}

// Get godoc
// @Summary Get training detail
// @Tags Trainings
// @Produce json
// @Param id path string true "Training ID"
// @Success 200 {object} response.Envelope
// @Router /trainings/{id} [get]
func (h *TrainingHandler) Get(c *gin.Context) {
	training, hit, err := h.trainings.GetCached(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, training, nil, middleware.ExtractMeta(c))
}

// Create godoc
// @Summary Publish an education group as training
// @Tags Trainings
// @Accept json
// @Produce json
// @Param payload body service.CreateTrainingRequest true "Training payload"
// @Success 201 {object} response.Envelope
// @Router /trainings [post]
func (h *TrainingHandler) Create(c *gin.Context) {
	var req service.CreateTrainingRequest
	if !bindJSON(c, &req) {
		return
	}
	training, err := h.trainings.Create(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, training)
}

// Update godoc
// @Summary Update training flags
// @Tags Trainings
// @Accept json
// @Produce json
// @Param id path string true "Training ID"
// @Param payload body service.UpdateTrainingRequest true "Training payload"
// @Success 200 {object} response.Envelope
// @Router /trainings/{id} [patch]
func (h *TrainingHandler) Update(c *gin.Context) {
	var req service.UpdateTrainingRequest
	if !bindJSON(c, &req) {
		return
	}
	training, err := h.trainings.Update(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, training, nil)
}

// AddManager godoc
// @Summary Link a training manager
// @Tags Trainings
// @Accept json
// @Param id path string true "Training ID"
// @Param payload body dto.ManagerRequest true "Person"
// @Success 204
// @Router /trainings/{id}/managers [post]
func (h *TrainingHandler) AddManager(c *gin.Context) {
	var req dto.ManagerRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.trainings.AddManager(c.Request.Context(), claimsFromContext(c), c.Param("id"), req.PersonID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RemoveManager godoc
// @Summary Unlink a training manager
// @Tags Trainings
// @Param id path string true "Training ID"
// @Param personId path string true "Person ID"
// @Success 204
// @Router /trainings/{id}/managers/{personId} [delete]
func (h *TrainingHandler) RemoveManager(c *gin.Context) {
	if err := h.trainings.RemoveManager(c.Request.Context(), claimsFromContext(c), c.Param("id"), c.Param("personId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
