package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/iufc-admission-api/internal/models"
)

const fileColumns = `id, admission_id, name, path, size_bytes, mime_type, category, uploaded_by, uploaded_at`

// FileRepository persists admission file metadata.
type FileRepository struct {
	db *sqlx.DB
}

// NewFileRepository constructs the repository.
func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

// CountByAdmission returns how many files an admission holds.
func (r *FileRepository) CountByAdmission(ctx context.Context, admissionID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM admission_files WHERE admission_id = $1`, admissionID); err != nil {
		return 0, fmt.Errorf("count admission files: %w", err)
	}
	return count, nil
}

// ListByAdmission returns an admission's files, newest first.
func (r *FileRepository) ListByAdmission(ctx context.Context, admissionID string) ([]models.AdmissionFile, error) {
	query := `SELECT ` + fileColumns + ` FROM admission_files WHERE admission_id = $1 ORDER BY uploaded_at DESC`
	var files []models.AdmissionFile
	if err := r.db.SelectContext(ctx, &files, query, admissionID); err != nil {
		return nil, fmt.Errorf("list admission files: %w", err)
	}
	return files, nil
}

// GetByID loads a file's metadata.
func (r *FileRepository) GetByID(ctx context.Context, id string) (*models.AdmissionFile, error) {
	var file models.AdmissionFile
	if err := r.db.GetContext(ctx, &file, `SELECT `+fileColumns+` FROM admission_files WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &file, nil
}

// Create stores file metadata.
func (r *FileRepository) Create(ctx context.Context, file *models.AdmissionFile) error {
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	if file.UploadedAt.IsZero() {
		file.UploadedAt = time.Now().UTC()
	}
	const query = `INSERT INTO admission_files (id, admission_id, name, path, size_bytes, mime_type, category, uploaded_by, uploaded_at)
VALUES (:id, :admission_id, :name, :path, :size_bytes, :mime_type, :category, :uploaded_by, :uploaded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, file); err != nil {
		return fmt.Errorf("create admission file: %w", err)
	}
	return nil
}

// Delete removes file metadata.
func (r *FileRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM admission_files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete admission file: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check file delete rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
