package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/iufc-admission-api/internal/models"
	appErrors "github.com/noah-isme/iufc-admission-api/pkg/errors"
	"github.com/noah-isme/iufc-admission-api/pkg/storage"
)

const (
	defaultMaxFileSize   = 10 * 1024 * 1024
	defaultMaxFiles      = 20
	defaultMaxNameLength = 50
)

var defaultAllowedExtensions = []string{"pdf", "doc", "docx", "odt", "xls", "xlsx", "ods", "jpg", "jpeg", "png", "txt", "zip"}

type fileStore interface {
	CountByAdmission(ctx context.Context, admissionID string) (int, error)
	ListByAdmission(ctx context.Context, admissionID string) ([]models.AdmissionFile, error)
	GetByID(ctx context.Context, id string) (*models.AdmissionFile, error)
	Create(ctx context.Context, file *models.AdmissionFile) error
	Delete(ctx context.Context, id string) error
}

type fileAdmissionReader interface {
	GetByID(ctx context.Context, id string) (*models.Admission, error)
}

type fileSigner interface {
	Sign(fileID string) (string, time.Time, error)
	Verify(token string) (string, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type invoiceNotifier interface {
	NotifyInvoiceUploaded(ctx context.Context, detail *models.AdmissionDetail) error
}

// FileUpload carries upload metadata and stream reader.
type FileUpload struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.ReadSeeker
}

// FileDownload bundles a stored file reader with its metadata.
type FileDownload struct {
	Content   io.ReadCloser
	Filename  string
	MimeType  string
	SizeBytes int64
}

// FileServiceConfig holds upload limits.
type FileServiceConfig struct {
	MaxFileSize       int64
	MaxFiles          int
	MaxNameLength     int
	AllowedExtensions []string
	APIPrefix         string
}

// FileService manages admission documents and their storage.
type FileService struct {
	repo       fileStore
	admissions fileAdmissionReader
	details    admissionDetailLoader
	access     *AccessPolicy
	store      storage.Store
	signer     fileSigner
	notifier   invoiceNotifier
	audit      auditLogger
	logger     *zap.Logger
	cfg        FileServiceConfig
	extensions map[string]struct{}
}

// NewFileService constructs the service with defaults.
func NewFileService(
	repo fileStore,
	admissions fileAdmissionReader,
	details admissionDetailLoader,
	access *AccessPolicy,
	store storage.Store,
	signer fileSigner,
	notifier invoiceNotifier,
	audit auditLogger,
	logger *zap.Logger,
	cfg FileServiceConfig,
) *FileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultMaxFileSize
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = defaultMaxFiles
	}
	if cfg.MaxNameLength <= 0 {
		cfg.MaxNameLength = defaultMaxNameLength
	}
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = defaultAllowedExtensions
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	extensions := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		extensions[strings.TrimPrefix(strings.ToLower(ext), ".")] = struct{}{}
	}
	return &FileService{
		repo:       repo,
		admissions: admissions,
		details:    details,
		access:     access,
		store:      store,
		signer:     signer,
		notifier:   notifier,
		audit:      audit,
		logger:     logger,
		cfg:        cfg,
		extensions: extensions,
	}
}

// Upload validates and stores a document for an admission. Limit violations
// return the matching file upload error; any other failure is logged and
// reported as "document not uploaded".
func (s *FileService) Upload(ctx context.Context, claims *models.JWTClaims, admissionID string, category models.FileCategory, upload FileUpload, notifyInvoice bool) (*models.AdmissionFile, error) {
	admission, err := s.loadAdmission(ctx, admissionID)
	if err != nil {
		return nil, err
	}
	if err := s.access.CanChangeFiles(ctx, claims, admission); err != nil {
		return nil, err
	}

	if category == "" {
		category = models.FileCategoryDocument
	}
	if !category.Valid() {
		e := appErrors.Clone(appErrors.ErrInvalidFileCategory, fmt.Sprintf("Unknown file category '%s'", category))
		e.Fields = map[string]string{"category": e.Message}
		return nil, e
	}
	if err := s.validateUpload(ctx, admission, category, claims, upload); err != nil {
		return nil, err
	}

	file, err := s.persist(ctx, admission.ID, category, claims.UserID, upload)
	if err != nil {
		if appErr := appErrors.FromError(err); appErr.Code != appErrors.ErrInternal.Code {
			return nil, err
		}
		s.logger.Error("admission file upload failed",
			zap.String("admission_id", admission.ID),
			zap.String("file_name", upload.Filename),
			zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrFileNotUploaded.Code, appErrors.ErrFileNotUploaded.Status, appErrors.ErrFileNotUploaded.Message)
	}

	s.emitAudit(ctx, claims, models.AuditActionFileUpload, file.ID)

	if category == models.FileCategoryInvoice && notifyInvoice && s.notifier != nil {
		detail, err := s.details.LoadByID(ctx, admission.ID)
		if err == nil {
			err = s.notifier.NotifyInvoiceUploaded(ctx, detail)
		}
		if err != nil {
			s.logger.Warn("invoice notification failed", zap.String("admission_id", admission.ID), zap.Error(err))
		}
	}
	return file, nil
}

// List returns the files attached to an admission.
func (s *FileService) List(ctx context.Context, claims *models.JWTClaims, admissionID string) ([]models.AdmissionFile, error) {
	admission, err := s.loadAdmission(ctx, admissionID)
	if err != nil {
		return nil, err
	}
	if err := s.access.CanView(ctx, claims, admission); err != nil {
		return nil, err
	}
	files, err := s.repo.ListByAdmission(ctx, admissionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list files")
	}
	return files, nil
}

// Get returns file metadata enforcing permissions.
func (s *FileService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.AdmissionFile, error) {
	file, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "file not found", "failed to load file")
	}
	admission, err := s.loadAdmission(ctx, file.AdmissionID)
	if err != nil {
		return nil, err
	}
	if err := s.access.CanView(ctx, claims, admission); err != nil {
		return nil, err
	}
	return file, nil
}

// GetDownloadURL generates a signed URL for downloading the file.
func (s *FileService) GetDownloadURL(ctx context.Context, claims *models.JWTClaims, id string) (string, time.Time, error) {
	if s.signer == nil {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	file, err := s.Get(ctx, claims, id)
	if err != nil {
		return "", time.Time{}, err
	}
	token, expiresAt, err := s.signer.Sign(file.ID)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate download token")
	}
	base := strings.TrimRight(s.cfg.APIPrefix, "/")
	return fmt.Sprintf("%s/files/%s/download?token=%s", base, file.ID, token), expiresAt, nil
}

// Download validates token and opens the stored file.
func (s *FileService) Download(ctx context.Context, id, token string) (*FileDownload, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	fileID, err := s.signer.Verify(token)
	if err != nil || fileID != id {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired token")
	}
	file, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "file not found", "failed to load file")
	}
	content, err := s.store.Open(ctx, file.Path)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "stored file not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	return &FileDownload{Content: content, Filename: file.Name, MimeType: file.MimeType, SizeBytes: file.SizeBytes}, nil
}

// Delete removes a file. Only its uploader or a manager may delete it, and
// participants only while they may still change documents.
func (s *FileService) Delete(ctx context.Context, claims *models.JWTClaims, id string) error {
	file, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return notFoundOrInternal(err, "file not found", "failed to load file")
	}
	admission, err := s.loadAdmission(ctx, file.AdmissionID)
	if err != nil {
		return err
	}
	if err := s.access.CanChangeFiles(ctx, claims, admission); err != nil {
		return err
	}
	if claims.Role != models.RoleManager && claims.UserID != file.UploadedBy {
		return appErrors.Clone(appErrors.ErrForbidden, "only the uploader or a manager can delete this file")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return notFoundOrInternal(err, "file not found", "failed to delete file")
	}
	if err := s.store.Delete(ctx, file.Path); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("stored file not removed", zap.String("file_id", id), zap.String("path", file.Path), zap.Error(err))
	}
	s.emitAudit(ctx, claims, models.AuditActionFileDelete, id)
	return nil
}

func (s *FileService) validateUpload(ctx context.Context, admission *models.Admission, category models.FileCategory, claims *models.JWTClaims, upload FileUpload) error {
	if upload.Content == nil || upload.Size <= 0 {
		return appErrors.FieldError("file", "file is required")
	}
	if category == models.FileCategoryInvoice {
		if !claims.Role.IsStaff() {
			return appErrors.Clone(appErrors.ErrForbidden, "only staff can upload invoices")
		}
		if admission.State != models.AdmissionStateAccepted {
			return appErrors.Clone(appErrors.ErrInvalidFileCategory, "")
		}
	}

	count, err := s.repo.CountByAdmission(ctx, admission.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count files")
	}
	if count >= s.cfg.MaxFiles {
		return appErrors.Clone(appErrors.ErrTooManyFiles,
			fmt.Sprintf("The maximum number of files has been reached : maximum %d files allowed.", s.cfg.MaxFiles))
	}

	name := path.Base(strings.ReplaceAll(upload.Filename, "\\", "/"))
	if len([]rune(name)) > s.cfg.MaxNameLength {
		return appErrors.Clone(appErrors.ErrTooLongFilename,
			fmt.Sprintf("The name of the file is too long : maximum %d characters.", s.cfg.MaxNameLength))
	}
	if upload.Size > s.cfg.MaxFileSize {
		return appErrors.Clone(appErrors.ErrTooLargeFileSize,
			fmt.Sprintf("File is too large (%s) : maximum upload size allowed is %s.", formatFileSize(upload.Size), formatFileSize(s.cfg.MaxFileSize)))
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
	if _, ok := s.extensions[ext]; !ok {
		return appErrors.Clone(appErrors.ErrUnallowedFileExtension,
			fmt.Sprintf("File extension '%s' is not allowed. Allowed extensions are: '%s'.", ext, strings.Join(s.cfg.AllowedExtensions, ", ")))
	}
	return nil
}

func (s *FileService) persist(ctx context.Context, admissionID string, category models.FileCategory, uploadedBy string, upload FileUpload) (*models.AdmissionFile, error) {
	mimeType, err := detectMime(upload)
	if err != nil {
		return nil, err
	}
	name := path.Base(strings.ReplaceAll(upload.Filename, "\\", "/"))
	key := fmt.Sprintf("admissions/%s/%s", admissionID, storedName(name))
	if err := s.store.Put(ctx, key, upload.Content, upload.Size, mimeType); err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}
	file := &models.AdmissionFile{
		AdmissionID: admissionID,
		Name:        name,
		Path:        key,
		SizeBytes:   upload.Size,
		MimeType:    mimeType,
		Category:    category,
		UploadedBy:  uploadedBy,
	}
	if err := s.repo.Create(ctx, file); err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			s.logger.Warn("orphan stored file", zap.String("path", key), zap.Error(delErr))
		}
		return nil, fmt.Errorf("create file metadata: %w", err)
	}
	return file, nil
}

func (s *FileService) loadAdmission(ctx context.Context, id string) (*models.Admission, error) {
	admission, err := s.admissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "admission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load admission")
	}
	return admission, nil
}

func (s *FileService) emitAudit(ctx context.Context, claims *models.JWTClaims, action, fileID string) {
	if s.audit == nil {
		return
	}
	userID := claims.UserID
	resourceID := fileID
	log := &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "admission_file",
		ResourceID: &resourceID,
		IPAddress:  "system",
		UserAgent:  "file-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to create file audit", zap.Error(err))
	}
}

func detectMime(upload FileUpload) (string, error) {
	if upload.MimeType != "" && upload.MimeType != "application/octet-stream" {
		return upload.MimeType, nil
	}
	header := make([]byte, 512)
	n, err := upload.Content.Read(header)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("inspect file: %w", err)
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("reset upload stream: %w", err)
	}
	if n == 0 {
		return "", appErrors.FieldError("file", "empty file")
	}
	return http.DetectContentType(header[:n]), nil
}

func storedName(original string) string {
	ext := strings.ToLower(path.Ext(original))
	base := sanitize(strings.TrimSuffix(original, path.Ext(original)))
	if base == "" {
		base = "document"
	}
	return fmt.Sprintf("%s_%d_%s%s", base, time.Now().Unix(), randomSuffix(), ext)
}

func sanitize(raw string) string {
	raw = strings.ToLower(raw)
	var b strings.Builder
	for _, r := range raw {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

func randomSuffix() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

func normalizeRef(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	result := trimmed
	return &result
}

func formatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d bytes", size)
	}
	value := float64(size)
	suffixes := []string{"KB", "MB", "GB"}
	i := -1
	for value >= unit && i < len(suffixes)-1 {
		value /= unit
		i++
	}
	return fmt.Sprintf("%.1f %s", value, suffixes[i])
}
