package handler

import (
	"context"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/iufc-admission-api/internal/models"
	"github.com/noah-isme/iufc-admission-api/internal/service"
	"github.com/noah-isme/iufc-admission-api/pkg/response"
)

type exportService interface {
	Export(ctx context.Context, claims *models.JWTClaims, req service.ExportRequest) (*service.ExportFile, error)
	AdmissionSheet(ctx context.Context, claims *models.JWTClaims, id string) (*service.ExportFile, error)
}

// ExportHandler streams spreadsheet and PDF exports.
type ExportHandler struct {
	exports exportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports exportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Export godoc
// @Summary Export a listing
// @Tags Exports
// @Produce octet-stream
// @Param kind path string true "admissions, registrations, archives, prospects or trainings"
// @Param format query string false "xlsx (default), csv or pdf"
// @Param state query []string false "Filter by state" collectionFormat(csv)
// @Param trainingId query []string false "Filter by training" collectionFormat(csv)
// @Param search query string false "Search by name or email"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /exports/{kind} [get]
func (h *ExportHandler) Export(c *gin.Context) {
	req := service.ExportRequest{
		Kind:        service.ExportKind(strings.ToLower(c.Param("kind"))),
		Format:      c.Query("format"),
		TrainingIDs: queryList(c, "trainingId"),
		Search:      strings.TrimSpace(c.Query("search")),
	}
	for _, state := range queryList(c, "state") {
		req.States = append(req.States, models.AdmissionState(strings.ToUpper(state)))
	}

	file, err := h.exports.Export(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	sendFile(c, file)
}

// AdmissionSheet godoc
// @Summary Printable admission sheet
// @Tags Exports
// @Produce application/pdf
// @Param id path string true "Admission ID"
// @Success 200 {file} binary
// @Router /admissions/{id}/sheet [get]
func (h *ExportHandler) AdmissionSheet(c *gin.Context) {
	file, err := h.exports.AdmissionSheet(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	sendFile(c, file)
}

func sendFile(c *gin.Context, file *service.ExportFile) {
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.Filename}))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
