package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/iufc-admission-api/internal/models"
)

// PersonRepository reads and writes base persons and their continuing education profile.
type PersonRepository struct {
	db *sqlx.DB
}

// NewPersonRepository constructs the repository.
func NewPersonRepository(db *sqlx.DB) *PersonRepository {
	return &PersonRepository{db: db}
}

func (r *PersonRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// GetByID loads a base person.
func (r *PersonRepository) GetByID(ctx context.Context, id string) (*models.Person, error) {
	const query = `SELECT id, first_name, last_name, email, gender, created_at FROM persons WHERE id = $1`
	var person models.Person
	if err := r.db.GetContext(ctx, &person, query, id); err != nil {
		return nil, err
	}
	return &person, nil
}

// Create inserts a base person.
func (r *PersonRepository) Create(ctx context.Context, exec sqlx.ExtContext, person *models.Person) error {
	if person.ID == "" {
		person.ID = uuid.NewString()
	}
	if person.CreatedAt.IsZero() {
		person.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO persons (id, first_name, last_name, email, gender, created_at)
VALUES (:id, :first_name, :last_name, :email, :gender, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, person); err != nil {
		return fmt.Errorf("create person: %w", err)
	}
	return nil
}

// GetInformation loads the continuing education profile by its identifier.
func (r *PersonRepository) GetInformation(ctx context.Context, id string) (*models.ContinuingEducationPerson, error) {
	const query = `SELECT id, person_id, birth_date, birth_location, birth_country_id, created_at
FROM continuing_education_persons WHERE id = $1`
	var info models.ContinuingEducationPerson
	if err := r.db.GetContext(ctx, &info, query, id); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetInformationByPerson loads the profile owned by a base person.
func (r *PersonRepository) GetInformationByPerson(ctx context.Context, personID string) (*models.ContinuingEducationPerson, error) {
	const query = `SELECT id, person_id, birth_date, birth_location, birth_country_id, created_at
FROM continuing_education_persons WHERE person_id = $1`
	var info models.ContinuingEducationPerson
	if err := r.db.GetContext(ctx, &info, query, personID); err != nil {
		return nil, err
	}
	return &info, nil
}

// CreateInformation inserts a continuing education profile.
func (r *PersonRepository) CreateInformation(ctx context.Context, exec sqlx.ExtContext, info *models.ContinuingEducationPerson) error {
	if info.ID == "" {
		info.ID = uuid.NewString()
	}
	if info.CreatedAt.IsZero() {
		info.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO continuing_education_persons (id, person_id, birth_date, birth_location, birth_country_id, created_at)
VALUES (:id, :person_id, :birth_date, :birth_location, :birth_country_id, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, info); err != nil {
		return fmt.Errorf("create continuing education person: %w", err)
	}
	return nil
}
