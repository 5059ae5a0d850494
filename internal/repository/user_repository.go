package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/iufc-admission-api/internal/models"
)

const userColumns = "id, person_id, email, password_hash, full_name, role, active, last_login, created_at, updated_at"

var userSortColumns = map[string]bool{"email": true, "full_name": true, "created_at": true, "last_login": true}

// UserRepository provides database access for accounts, sessions and the audit trail.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail looks the account up case-insensitively.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, "by email", "lower(email) = lower($1)", email)
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, "by id", "id = $1", id)
}

// getOne passes sql.ErrNoRows through untouched so services can map it to 404.
func (r *UserRepository) getOne(ctx context.Context, label, where string, arg interface{}) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, "SELECT "+userColumns+" FROM users WHERE "+where+" LIMIT 1", arg)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("find user %s: %w", label, err)
	}
	return &user, nil
}

// UpdateLastLogin stamps a successful sign-in.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET last_login = $2, updated_at = $2 WHERE id = $1`, id, ts); err != nil {
		return fmt.Errorf("stamp last login: %w", err)
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`, id, passwordHash, updatedAt); err != nil {
		return fmt.Errorf("store password hash: %w", err)
	}
	return nil
}

// List returns one page of accounts and the number of rows matching the filter.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	where := []string{"1=1"}
	var args []interface{}
	bind := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Role != nil {
		where = append(where, "role = "+bind(*filter.Role))
	}
	if filter.Active != nil {
		where = append(where, "active = "+bind(*filter.Active))
	}
	if term := strings.ToLower(filter.Search); term != "" {
		p := bind("%" + term + "%")
		where = append(where, fmt.Sprintf("(LOWER(email) LIKE %s OR LOWER(full_name) LIKE %s)", p, p))
	}
	from := "FROM users WHERE " + strings.Join(where, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+from, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	sortBy := "created_at"
	if userSortColumns[filter.SortBy] {
		sortBy = filter.SortBy
	}
	order := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		order = "ASC"
	}
	page, size := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	limit := bind(size)
	offset := bind((page - 1) * size)

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %s OFFSET %s", userColumns, from, sortBy, order, limit, offset)
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

// Create inserts a new account, assigning an id when the caller left it empty.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.UpdatedAt = time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = user.UpdatedAt
	}

	const query = `INSERT INTO users (id, person_id, email, password_hash, full_name, role, active, created_at, updated_at)
VALUES (:id, :person_id, :email, :password_hash, :full_name, :role, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Update stores the role and active flag of an account.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	res, err := r.db.NamedExecContext(ctx,
		`UPDATE users SET full_name = :full_name, role = :role, active = :active, updated_at = :updated_at WHERE id = :id`, user)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return expectAffected(res)
}

// Deactivate marks the account inactive. Rows are never deleted since
// revisions and audit logs reference them.
func (r *UserRepository) Deactivate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET active = FALSE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	return expectAffected(res)
}

func expectAffected(res sql.Result) error {
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
