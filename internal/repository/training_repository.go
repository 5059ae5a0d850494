package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/iufc-admission-api/internal/models"
)

// trainingSelect joins each training with the latest yearly edition of its education group.
const trainingSelect = `SELECT t.id, t.education_group_id, t.active, t.training_aid, t.registration_required,
	t.send_notification_emails, t.alternate_notification_email_addresses, t.created_at, t.updated_at,
	COALESCE(egy.acronym, '') AS acronym, COALESCE(egy.partial_acronym, '') AS partial_acronym,
	COALESCE(egy.title, '') AS title, COALESCE(egy.academic_year, 0) AS academic_year,
	COALESCE(egy.faculty, '') AS faculty
FROM trainings t
LEFT JOIN LATERAL (
	SELECT acronym, partial_acronym, title, academic_year, faculty
	FROM education_group_years
	WHERE education_group_id = t.education_group_id
	ORDER BY academic_year DESC
	LIMIT 1
) egy ON TRUE`

// TrainingRepository persists trainings and their managers.
type TrainingRepository struct {
	db *sqlx.DB
}

// NewTrainingRepository constructs the repository.
func NewTrainingRepository(db *sqlx.DB) *TrainingRepository {
	return &TrainingRepository{db: db}
}

// GetByID loads a training with its latest edition.
func (r *TrainingRepository) GetByID(ctx context.Context, id string) (*models.Training, error) {
	var training models.Training
	if err := r.db.GetContext(ctx, &training, trainingSelect+" WHERE t.id = $1", id); err != nil {
		return nil, err
	}
	return &training, nil
}

// List returns trainings matching the filter with the total count.
func (r *TrainingRepository) List(ctx context.Context, filter models.TrainingFilter) ([]models.Training, int, error) {
	args := make([]interface{}, 0, 3)
	conditions := make([]string, 0, 3)
	if filter.Active != nil {
		args = append(args, *filter.Active)
		conditions = append(conditions, fmt.Sprintf("t.active = $%d", len(args)))
	}
	if filter.ManagerID != "" {
		args = append(args, filter.ManagerID)
		conditions = append(conditions, fmt.Sprintf("t.id IN (SELECT training_id FROM training_managers WHERE person_id = $%d)", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		conditions = append(conditions, fmt.Sprintf("(lower(egy.acronym) LIKE $%[1]d OR lower(egy.title) LIKE $%[1]d)", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf("%s%s ORDER BY acronym ASC LIMIT %d OFFSET %d", trainingSelect, where, limit, offset)
	var trainings []models.Training
	if err := r.db.SelectContext(ctx, &trainings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list trainings: %w", err)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM (" + trainingSelect + where + ") counted"
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count trainings: %w", err)
	}
	return trainings, total, nil
}

// Create inserts a training for an education group.
func (r *TrainingRepository) Create(ctx context.Context, training *models.Training) error {
	if training.ID == "" {
		training.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	training.CreatedAt = now
	training.UpdatedAt = now
	const query = `INSERT INTO trainings (id, education_group_id, active, training_aid, registration_required,
	send_notification_emails, alternate_notification_email_addresses, created_at, updated_at)
VALUES (:id, :education_group_id, :active, :training_aid, :registration_required,
	:send_notification_emails, :alternate_notification_email_addresses, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, training); err != nil {
		return fmt.Errorf("create training: %w", err)
	}
	return nil
}

// Update persists training flags.
func (r *TrainingRepository) Update(ctx context.Context, training *models.Training) error {
	training.UpdatedAt = time.Now().UTC()
	const query = `UPDATE trainings SET active = :active, training_aid = :training_aid,
	registration_required = :registration_required, send_notification_emails = :send_notification_emails,
	alternate_notification_email_addresses = :alternate_notification_email_addresses, updated_at = :updated_at
WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, training)
	if err != nil {
		return fmt.Errorf("update training: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check training update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListYears returns every edition of an education group, newest first.
func (r *TrainingRepository) ListYears(ctx context.Context, educationGroupID string) ([]models.EducationGroupYear, error) {
	const query = `SELECT id, education_group_id, acronym, partial_acronym, title, academic_year, faculty
FROM education_group_years WHERE education_group_id = $1 ORDER BY academic_year DESC`
	var years []models.EducationGroupYear
	if err := r.db.SelectContext(ctx, &years, query, educationGroupID); err != nil {
		return nil, fmt.Errorf("list education group years: %w", err)
	}
	return years, nil
}

// ListManagers returns the managers of a training sorted by surname.
func (r *TrainingRepository) ListManagers(ctx context.Context, trainingID string) ([]models.Person, error) {
	const query = `SELECT p.id, p.first_name, p.last_name, p.email, p.gender, p.created_at
FROM training_managers tm JOIN persons p ON p.id = tm.person_id
WHERE tm.training_id = $1 ORDER BY p.last_name, p.first_name`
	var managers []models.Person
	if err := r.db.SelectContext(ctx, &managers, query, trainingID); err != nil {
		return nil, fmt.Errorf("list training managers: %w", err)
	}
	return managers, nil
}

// AddManager links a person as manager; linking twice is a no-op.
func (r *TrainingRepository) AddManager(ctx context.Context, trainingID, personID string) error {
	const query = `INSERT INTO training_managers (training_id, person_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, trainingID, personID); err != nil {
		return fmt.Errorf("add training manager: %w", err)
	}
	return nil
}

// RemoveManager unlinks a manager.
func (r *TrainingRepository) RemoveManager(ctx context.Context, trainingID, personID string) error {
	const query = `DELETE FROM training_managers WHERE training_id = $1 AND person_id = $2`
	result, err := r.db.ExecContext(ctx, query, trainingID, personID)
	if err != nil {
		return fmt.Errorf("remove training manager: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check manager delete rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ManagedTrainingIDs returns the trainings a person manages.
func (r *TrainingRepository) ManagedTrainingIDs(ctx context.Context, personID string) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT training_id FROM training_managers WHERE person_id = $1`, personID); err != nil {
		return nil, fmt.Errorf("list managed trainings: %w", err)
	}
	return ids, nil
}
