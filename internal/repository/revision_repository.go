package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/iufc-admission-api/internal/models"
)

// RevisionRepository stores the append-only admission history.
type RevisionRepository struct {
	db *sqlx.DB
}

// NewRevisionRepository constructs the repository.
func NewRevisionRepository(db *sqlx.DB) *RevisionRepository {
	return &RevisionRepository{db: db}
}

func (r *RevisionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create appends a revision. Revisions are never updated or deleted.
func (r *RevisionRepository) Create(ctx context.Context, exec sqlx.ExtContext, revision *models.Revision) error {
	if revision.ID == "" {
		revision.ID = uuid.NewString()
	}
	if revision.CreatedAt.IsZero() {
		revision.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO admission_revisions (id, admission_id, kind, icon, message, actor_id, actor_name, snapshot, created_at)
VALUES (:id, :admission_id, :kind, :icon, :message, :actor_id, :actor_name, :snapshot, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, revision); err != nil {
		return fmt.Errorf("create admission revision: %w", err)
	}
	return nil
}

// ListByAdmission returns revisions newest first, optionally limited to kinds.
func (r *RevisionRepository) ListByAdmission(ctx context.Context, admissionID string, kinds []models.RevisionKind) ([]models.Revision, error) {
	query := `SELECT id, admission_id, kind, icon, message, actor_id, actor_name, snapshot, created_at
FROM admission_revisions WHERE admission_id = $1`
	args := []interface{}{admissionID}
	if len(kinds) > 0 {
		raw := make([]string, len(kinds))
		for i, k := range kinds {
			raw[i] = string(k)
		}
		query += " AND kind = ANY($2)"
		args = append(args, pq.Array(raw))
	}
	query += " ORDER BY created_at DESC"

	var revisions []models.Revision
	if err := r.db.SelectContext(ctx, &revisions, query, args...); err != nil {
		return nil, fmt.Errorf("list admission revisions: %w", err)
	}
	return revisions, nil
}
