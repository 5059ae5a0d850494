package handler

import (
	"context"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/iufc-admission-api/internal/dto"
	"github.com/noah-isme/iufc-admission-api/internal/models"
	"github.com/noah-isme/iufc-admission-api/internal/service"
	appErrors "github.com/noah-isme/iufc-admission-api/pkg/errors"
	"github.com/noah-isme/iufc-admission-api/pkg/response"
)

type fileService interface {
	Upload(ctx context.Context, claims *models.JWTClaims, admissionID string, category models.FileCategory, upload service.FileUpload, notifyInvoice bool) (*models.AdmissionFile, error)
	List(ctx context.Context, claims *models.JWTClaims, admissionID string) ([]models.AdmissionFile, error)
	GetDownloadURL(ctx context.Context, claims *models.JWTClaims, id string) (string, time.Time, error)
	Download(ctx context.Context, id, token string) (*service.FileDownload, error)
	Delete(ctx context.Context, claims *models.JWTClaims, id string) error
}

// FileHandler exposes admission file endpoints.
type FileHandler struct {
	files fileService
}

// NewFileHandler constructs FileHandler.
func NewFileHandler(files fileService) *FileHandler {
	return &FileHandler{files: files}
}

// Upload godoc
// @Summary Attach a file to an admission
// @Tags Files
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Admission ID"
// @Param file formData file true "Document"
// @Param category formData string false "DOCUMENT, INVOICE or PARTICIPANT"
// @Param notify formData bool false "Notify the participant about an invoice"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /admissions/{id}/files [post]
func (h *FileHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.FieldError("file", "file is required"))
		return
	}
	content, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrFileNotUploaded.Code, appErrors.ErrFileNotUploaded.Status, appErrors.ErrFileNotUploaded.Message))
		return
	}
	defer content.Close()

	upload := service.FileUpload{
		Filename: header.Filename,
		Size:     header.Size,
		MimeType: header.Header.Get("Content-Type"),
		Content:  content,
	}
	category := models.FileCategory(strings.ToUpper(strings.TrimSpace(c.PostForm("category"))))
	notify := strings.EqualFold(c.PostForm("notify"), "true")

	file, err := h.files.Upload(c.Request.Context(), claimsFromContext(c), c.Param("id"), category, upload, notify)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, file)
}

// List godoc
// @Summary List admission files
// @Tags Files
// @Produce json
// @Param id path string true "Admission ID"
// @Success 200 {object} response.Envelope
// @Router /admissions/{id}/files [get]
func (h *FileHandler) List(c *gin.Context) {
	files, err := h.files.List(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, files, nil)
}

// DownloadURL godoc
// @Summary Generate a signed download link
// @Tags Files
// @Produce json
// @Param id path string true "File ID"
// @Success 200 {object} response.Envelope
// @Router /files/{id}/url [get]
func (h *FileHandler) DownloadURL(c *gin.Context) {
	url, expiresAt, err := h.files.GetDownloadURL(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.DownloadURL{URL: url, ExpiresAt: expiresAt}, nil)
}

// Download godoc
// @Summary Download a file with a signed token
// @Tags Files
// @Produce octet-stream
// @Param id path string true "File ID"
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /files/{id}/download [get]
func (h *FileHandler) Download(c *gin.Context) {
	download, err := h.files.Download(c.Request.Context(), c.Param("id"), c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.Content.Close()

	contentType := download.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	headers := map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": download.Filename}),
		"Cache-Control":       "no-store",
	}
	c.DataFromReader(http.StatusOK, download.SizeBytes, contentType, download.Content, headers)
}

// Delete godoc
// @Summary Delete an admission file
// @Tags Files
// @Param id path string true "File ID"
// @Success 204
// @Router /files/{id} [delete]
func (h *FileHandler) Delete(c *gin.Context) {
	if err := h.files.Delete(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
