package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/iufc-admission-api/internal/models"
)

// ProspectRepository persists leads.
type ProspectRepository struct {
	db *sqlx.DB
}

// NewProspectRepository constructs the repository.
func NewProspectRepository(db *sqlx.DB) *ProspectRepository {
	return &ProspectRepository{db: db}
}

// Create stores a prospect.
func (r *ProspectRepository) Create(ctx context.Context, prospect *models.Prospect) error {
	if prospect.ID == "" {
		prospect.ID = uuid.NewString()
	}
	if prospect.CreatedAt.IsZero() {
		prospect.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO prospects (id, name, first_name, postal_code, city, email, phone_number, training_id, created_at)
VALUES (:id, :name, :first_name, :postal_code, :city, :email, :phone_number, :training_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, prospect); err != nil {
		return fmt.Errorf("create prospect: %w", err)
	}
	return nil
}

// List returns prospects newest first.
func (r *ProspectRepository) List(ctx context.Context, filter models.ProspectFilter) ([]models.Prospect, int, error) {
	where := ""
	args := []interface{}{}
	if filter.TrainingID != "" {
		where = " WHERE training_id = $1"
		args = append(args, filter.TrainingID)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT id, name, first_name, postal_code, city, email, phone_number, training_id, created_at
FROM prospects%s ORDER BY created_at DESC LIMIT %d OFFSET %d`, where, limit, offset)
	var prospects []models.Prospect
	if err := r.db.SelectContext(ctx, &prospects, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list prospects: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM prospects"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count prospects: %w", err)
	}
	return prospects, total, nil
}
