package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/iufc-admission-api/internal/models"
)

var admissionColumns = []string{
	"id", "person_information_id", "training_id", "citizenship_id", "address_id", "phone_mobile", "email",
	"state", "state_reason", "condition_of_acceptance", "academic_year", "archived",
	"high_school_diploma", "high_school_graduation_year", "last_degree_level", "last_degree_field",
	"last_degree_institution", "last_degree_graduation_year", "other_educational_background",
	"professional_status", "current_occupation", "current_employer", "activity_sector",
	"past_professional_activities", "motivation", "professional_personal_interests", "awareness",
	"registration_type", "use_address_for_billing", "billing_address_id", "head_office_name", "company_number",
	"vat_number", "national_registry_number", "id_card_number", "passport_number", "marital_status",
	"spouse_name", "children_number", "previous_ucl_registration", "previous_noma", "use_address_for_post",
	"residence_address_id", "residence_phone", "registration_file_received", "payment_complete",
	"formation_spreading", "prior_experience_validation", "assessment_presented", "assessment_succeeded",
	"sessions", "ucl_registration_complete", "ucl_registration_error", "noma", "submitted_at",
	"created_at", "updated_at",
}

var (
	admissionSelect = "SELECT " + strings.Join(admissionColumns, ", ") + " FROM admissions"
	admissionInsert = buildInsert("admissions", admissionColumns)
	admissionUpdate = buildUpdate("admissions", admissionColumns, "id", "created_at")
)

func buildInsert(table string, columns []string) string {
	named := make([]string, len(columns))
	for i, c := range columns {
		named[i] = ":" + c
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), strings.Join(named, ", "))
}

func buildUpdate(table string, columns []string, key string, skip ...string) string {
	skipped := map[string]bool{key: true}
	for _, s := range skip {
		skipped[s] = true
	}
	sets := make([]string, 0, len(columns))
	for _, c := range columns {
		if skipped[c] {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = :%s", c, c))
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = :%s", table, strings.Join(sets, ", "), key, key)
}

// AdmissionRepository persists admissions and registrations.
type AdmissionRepository struct {
	db *sqlx.DB
}

// NewAdmissionRepository constructs the repository.
func NewAdmissionRepository(db *sqlx.DB) *AdmissionRepository {
	return &AdmissionRepository{db: db}
}

func (r *AdmissionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a new admission row.
func (r *AdmissionRepository) Create(ctx context.Context, exec sqlx.ExtContext, admission *models.Admission) error {
	if admission.ID == "" {
		admission.ID = uuid.NewString()
	}
	if admission.State == "" {
		admission.State = models.AdmissionStateDraft
	}
	if admission.UCLRegistrationComplete == "" {
		admission.UCLRegistrationComplete = models.TrackingInitState
	}
	if admission.UCLRegistrationError == "" {
		admission.UCLRegistrationError = models.RegistrationErrorNone
	}
	now := time.Now().UTC()
	if admission.CreatedAt.IsZero() {
		admission.CreatedAt = now
	}
	admission.UpdatedAt = now

	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), admissionInsert, admission); err != nil {
		return fmt.Errorf("create admission: %w", err)
	}
	return nil
}

// GetByID fetches an admission by identifier.
func (r *AdmissionRepository) GetByID(ctx context.Context, id string) (*models.Admission, error) {
	var admission models.Admission
	if err := r.db.GetContext(ctx, &admission, admissionSelect+" WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &admission, nil
}

// GetForUpdate locks the admission row for the surrounding transaction.
func (r *AdmissionRepository) GetForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Admission, error) {
	var admission models.Admission
	if err := sqlx.GetContext(ctx, r.exec(exec), &admission, admissionSelect+" WHERE id = $1 FOR UPDATE", id); err != nil {
		return nil, err
	}
	return &admission, nil
}

// Update persists every mutable column.
func (r *AdmissionRepository) Update(ctx context.Context, exec sqlx.ExtContext, admission *models.Admission) error {
	admission.UpdatedAt = time.Now().UTC()
	result, err := sqlx.NamedExecContext(ctx, r.exec(exec), admissionUpdate, admission)
	if err != nil {
		return fmt.Errorf("update admission: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check admission update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteDrafts removes the listed admissions that are still drafts and
// returns how many rows were deleted.
func (r *AdmissionRepository) DeleteDrafts(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	const query = `DELETE FROM admissions WHERE id = ANY($1) AND state = $2`
	result, err := r.db.ExecContext(ctx, query, pq.Array(ids), models.AdmissionStateDraft)
	if err != nil {
		return 0, fmt.Errorf("delete draft admissions: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check draft delete rows: %w", err)
	}
	return rows, nil
}

// List returns admissions matching the filter with the total count.
func (r *AdmissionRepository) List(ctx context.Context, filter models.AdmissionFilter) ([]models.Admission, int, error) {
	where, args := admissionConditions(filter)

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf("%s%s ORDER BY updated_at DESC LIMIT %d OFFSET %d", admissionSelect, where, limit, offset)
	var admissions []models.Admission
	if err := r.db.SelectContext(ctx, &admissions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list admissions: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM admissions"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count admissions: %w", err)
	}
	return admissions, total, nil
}

func admissionConditions(filter models.AdmissionFilter) (string, []interface{}) {
	args := make([]interface{}, 0, 6)
	conditions := make([]string, 0, 6)

	states := filter.States
	if len(states) == 0 && filter.Registration {
		states = []models.AdmissionState{
			models.AdmissionStateAccepted,
			models.AdmissionStateRegistrationSubmitted,
			models.AdmissionStateValidated,
		}
	}
	if len(states) > 0 {
		raw := make([]string, len(states))
		for i, s := range states {
			raw[i] = string(s)
		}
		args = append(args, pq.Array(raw))
		conditions = append(conditions, fmt.Sprintf("state = ANY($%d)", len(args)))
	}
	if len(filter.TrainingIDs) > 0 {
		args = append(args, pq.Array(filter.TrainingIDs))
		conditions = append(conditions, fmt.Sprintf("training_id = ANY($%d)", len(args)))
	}
	if filter.PersonID != "" {
		args = append(args, filter.PersonID)
		conditions = append(conditions, fmt.Sprintf("person_information_id IN (SELECT id FROM continuing_education_persons WHERE person_id = $%d)", len(args)))
	}
	if filter.Archived != nil {
		args = append(args, *filter.Archived)
		conditions = append(conditions, fmt.Sprintf("archived = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		conditions = append(conditions, fmt.Sprintf(`(lower(email) LIKE $%[1]d OR person_information_id IN (
	SELECT cep.id FROM continuing_education_persons cep JOIN persons p ON p.id = cep.person_id
	WHERE lower(p.last_name) LIKE $%[1]d OR lower(p.first_name) LIKE $%[1]d))`, len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// ListAwaitingEPC returns validated admissions whose registration was never
// handed to EPC, oldest first.
func (r *AdmissionRepository) ListAwaitingEPC(ctx context.Context, updatedBefore time.Time, limit int) ([]models.Admission, error) {
	if limit <= 0 {
		limit = 50
	}
	query := admissionSelect + ` WHERE state = $1 AND ucl_registration_complete = $2 AND updated_at < $3
	ORDER BY updated_at ASC LIMIT $4`
	var admissions []models.Admission
	if err := r.db.SelectContext(ctx, &admissions, query,
		models.AdmissionStateValidated, models.TrackingInitState, updatedBefore, limit); err != nil {
		return nil, fmt.Errorf("list admissions awaiting epc: %w", err)
	}
	return admissions, nil
}
