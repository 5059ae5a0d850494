package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/iufc-admission-api/internal/models"
)

// AddressRepository persists addresses and exposes the country and municipality references.
type AddressRepository struct {
	db *sqlx.DB
}

// NewAddressRepository constructs the repository.
func NewAddressRepository(db *sqlx.DB) *AddressRepository {
	return &AddressRepository{db: db}
}

func (r *AddressRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// GetByID loads an address with its country.
func (r *AddressRepository) GetByID(ctx context.Context, id string) (*models.Address, error) {
	const query = `SELECT a.id, a.location, a.postal_code, a.city, a.country_id,
	c.id AS "country.id", c.iso_code AS "country.iso_code", c.name AS "country.name"
FROM addresses a LEFT JOIN countries c ON c.id = a.country_id WHERE a.id = $1`
	var row struct {
		models.Address
		Country struct {
			ID      sql.NullString `db:"id"`
			ISOCode sql.NullString `db:"iso_code"`
			Name    sql.NullString `db:"name"`
		} `db:"country"`
	}
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	address := row.Address
	if row.Country.ID.Valid {
		address.Country = &models.Country{ID: row.Country.ID.String, ISOCode: row.Country.ISOCode.String, Name: row.Country.Name.String}
	}
	return &address, nil
}

// Create inserts an address.
func (r *AddressRepository) Create(ctx context.Context, exec sqlx.ExtContext, address *models.Address) error {
	if address.ID == "" {
		address.ID = uuid.NewString()
	}
	const query = `INSERT INTO addresses (id, location, postal_code, city, country_id)
VALUES (:id, :location, :postal_code, :city, :country_id)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, address); err != nil {
		return fmt.Errorf("create address: %w", err)
	}
	return nil
}

// Update rewrites an address in place.
func (r *AddressRepository) Update(ctx context.Context, exec sqlx.ExtContext, address *models.Address) error {
	const query = `UPDATE addresses SET location = :location, postal_code = :postal_code, city = :city, country_id = :country_id WHERE id = :id`
	result, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, address)
	if err != nil {
		return fmt.Errorf("update address: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check address update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetCountry loads a country by identifier.
func (r *AddressRepository) GetCountry(ctx context.Context, id string) (*models.Country, error) {
	var country models.Country
	if err := r.db.GetContext(ctx, &country, `SELECT id, iso_code, name FROM countries WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &country, nil
}

// ListCountries returns countries ordered by name.
func (r *AddressRepository) ListCountries(ctx context.Context) ([]models.Country, error) {
	var countries []models.Country
	if err := r.db.SelectContext(ctx, &countries, `SELECT id, iso_code, name FROM countries ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list countries: %w", err)
	}
	return countries, nil
}

// ListMunicipalities returns the cities known for a Belgian postal code.
func (r *AddressRepository) ListMunicipalities(ctx context.Context, postalCode string) ([]models.Municipality, error) {
	const query = `SELECT postal_code, city FROM municipalities WHERE postal_code = $1 ORDER BY city`
	var municipalities []models.Municipality
	if err := r.db.SelectContext(ctx, &municipalities, query, postalCode); err != nil {
		return nil, fmt.Errorf("list municipalities: %w", err)
	}
	return municipalities, nil
}
