package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/iufc-admission-api/internal/dto"
	"github.com/noah-isme/iufc-admission-api/internal/models"
	"github.com/noah-isme/iufc-admission-api/internal/service"
	"github.com/noah-isme/iufc-admission-api/internal/workflow"
	appErrors "github.com/noah-isme/iufc-admission-api/pkg/errors"
	"github.com/noah-isme/iufc-admission-api/pkg/response"
)

type admissionService interface {
	List(ctx context.Context, claims *models.JWTClaims, filter models.AdmissionFilter) ([]models.Admission, *models.Pagination, error)
	Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.AdmissionDetail, error)
	Create(ctx context.Context, claims *models.JWTClaims, req service.AdmissionRequest) (*models.AdmissionDetail, error)
	Update(ctx context.Context, claims *models.JWTClaims, id string, req service.AdmissionRequest) (*models.AdmissionDetail, error)
	UpdateRegistration(ctx context.Context, claims *models.JWTClaims, id string, req service.RegistrationRequest) (*models.AdmissionDetail, error)
	ChangeState(ctx context.Context, claims *models.JWTClaims, id string, req service.ChangeStateRequest) (*models.AdmissionDetail, error)
	DeleteDrafts(ctx context.Context, claims *models.JWTClaims, req service.BulkRequest) (int64, error)
	SetArchived(ctx context.Context, claims *models.JWTClaims, req service.BulkRequest, archived bool) (int, error)
	InjectEPC(ctx context.Context, claims *models.JWTClaims, id string) error
	History(ctx context.Context, claims *models.JWTClaims, id string) ([]models.Revision, error)
	Choices(ctx context.Context, claims *models.JWTClaims, id string) ([]workflow.Choice, error)
}

// AdmissionHandler exposes admission and registration endpoints.
type AdmissionHandler struct {
	admissions admissionService
}

// NewAdmissionHandler constructs AdmissionHandler.
func NewAdmissionHandler(admissions admissionService) *AdmissionHandler {
	return &AdmissionHandler{admissions: admissions}
}

// List godoc
// @Summary List admissions
// @Tags Admissions
// @Produce json
// @Param state query []string false "Filter by state" collectionFormat(csv)
// @Param trainingId query []string false "Filter by training" collectionFormat(csv)
// @Param archived query bool false "Archived admissions only"
// @Param registration query bool false "Registration phase only"
// @Param search query string false "Search by name or email"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admissions [get]
func (h *AdmissionHandler) List(c *gin.Context) {
	var filter models.AdmissionFilter
	for _, raw := range queryList(c, "state") {
		state := models.AdmissionState(strings.ToUpper(raw))
		if !state.Valid() {
			response.Error(c, appErrors.FieldError("state", "unknown admission state "+raw))
			return
		}
		filter.States = append(filter.States, state)
	}
	filter.TrainingIDs = queryList(c, "trainingId")
	filter.Archived = queryBool(c, "archived")
	if registration := queryBool(c, "registration"); registration != nil {
		filter.Registration = *registration
	}
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Page, filter.PageSize = pageParams(c, 50)

	admissions, pagination, err := h.admissions.List(c.Request.Context(), claimsFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, admissions, pagination)
}

// Get godoc
// @Summary Get admission detail
// @Tags Admissions
// @Produce json
// @Param id path string true "Admission ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admissions/{id} [get]
func (h *AdmissionHandler) Get(c *gin.Context) {
	detail, err := h.admissions.Get(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Create godoc
// @Summary Create admission
// @Description Participants create their own draft; staff may create on behalf of a person
// @Tags Admissions
// @Accept json
// @Produce json
// @Param payload body service.AdmissionRequest true "Admission payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admissions [post]
func (h *AdmissionHandler) Create(c *gin.Context) {
	var req service.AdmissionRequest
	if !bindJSON(c, &req) {
		return
	}
	detail, err := h.admissions.Create(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// Update godoc
// @Summary Update admission
// @Tags Admissions
// @Accept json
// @Produce json
// @Param id path string true "Admission ID"
// @Param payload body service.AdmissionRequest true "Admission payload"
// @Success 200 {object} response.Envelope
// @Router /admissions/{id} [put]
func (h *AdmissionHandler) Update(c *gin.Context) {
	var req service.AdmissionRequest
	if !bindJSON(c, &req) {
		return
	}
	detail, err := h.admissions.Update(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// UpdateRegistration godoc
// @Summary Update registration data
// @Tags Admissions
// @Accept json
// @Produce json
// @Param id path string true "Admission ID"
// @Param payload body service.RegistrationRequest true "Registration payload"
// @Success 200 {object} response.Envelope
// @Router /admissions/{id}/registration [put]
func (h *AdmissionHandler) UpdateRegistration(c *gin.Context) {
	var req service.RegistrationRequest
	if !bindJSON(c, &req) {
		return
	}
	detail, err := h.admissions.UpdateRegistration(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// ChangeState godoc
// @Summary Move admission to a new state
// @Tags Admissions
// @Accept json
// @Produce json
// @Param id path string true "Admission ID"
// @Param payload body service.ChangeStateRequest true "Target state"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admissions/{id}/state [patch]
func (h *AdmissionHandler) ChangeState(c *gin.Context) {
	var req service.ChangeStateRequest
	if !bindJSON(c, &req) {
		return
	}
	detail, err := h.admissions.ChangeState(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Choices godoc
// @Summary List reachable states
// @Tags Admissions
// @Produce json
// @Param id path string true "Admission ID"
// @Success 200 {object} response.Envelope
// @Router /admissions/{id}/choices [get]
func (h *AdmissionHandler) Choices(c *gin.Context) {
	choices, err := h.admissions.Choices(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, choices, nil)
}

// History godoc
// @Summary Admission revision history
// @Tags Admissions
// @Produce json
// @Param id path string true "Admission ID"
// @Success 200 {object} response.Envelope
// @Router /admissions/{id}/history [get]
func (h *AdmissionHandler) History(c *gin.Context) {
	revisions, err := h.admissions.History(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, revisions, nil)
}

// DeleteDrafts godoc
// @Summary Delete draft admissions
// @Tags Admissions
// @Accept json
// @Produce json
// @Param payload body service.BulkRequest true "Admission IDs"
// @Success 200 {object} response.Envelope
// @Router /admissions/delete [post]
func (h *AdmissionHandler) DeleteDrafts(c *gin.Context) {
	var req service.BulkRequest
	if !bindJSON(c, &req) {
		return
	}
	count, err := h.admissions.DeleteDrafts(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.BulkResult{Count: count}, nil)
}

// Archive godoc
// @Summary Archive admissions
// @Tags Admissions
// @Accept json
// @Produce json
// @Param payload body service.BulkRequest true "Admission IDs"
// @Success 200 {object} response.Envelope
// @Router /admissions/archive [post]
func (h *AdmissionHandler) Archive(c *gin.Context) {
	h.setArchived(c, true)
}

// Unarchive godoc
// @Summary Restore archived admissions
// @Tags Admissions
// @Accept json
// @Produce json
// @Param payload body service.BulkRequest true "Admission IDs"
// @Success 200 {object} response.Envelope
// @Router /admissions/unarchive [post]
func (h *AdmissionHandler) Unarchive(c *gin.Context) {
	h.setArchived(c, false)
}

func (h *AdmissionHandler) setArchived(c *gin.Context, archived bool) {
	var req service.BulkRequest
	if !bindJSON(c, &req) {
		return
	}
	count, err := h.admissions.SetArchived(c.Request.Context(), claimsFromContext(c), req, archived)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.BulkResult{Count: int64(count)}, nil)
}

// Inject godoc
// @Summary Send a validated registration to EPC
// @Tags Admissions
// @Produce json
// @Param id path string true "Admission ID"
// @Success 202 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /admissions/{id}/inject [post]
func (h *AdmissionHandler) Inject(c *gin.Context) {
	id := c.Param("id")
	if err := h.admissions.InjectEPC(c.Request.Context(), claimsFromContext(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, dto.InjectionAccepted{AdmissionID: id, Status: string(models.TrackingSended)})
}
