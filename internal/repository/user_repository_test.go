package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/iufc-admission-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func TestFindByEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "person_id", "email", "password_hash", "full_name", "role", "active", "last_login", "created_at", "updated_at"}).
		AddRow("1", "person-1", "manager@example.org", "hash", "Manager", string(models.RoleManager), true, now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, person_id, email, password_hash, full_name, role, active, last_login, created_at, updated_at FROM users WHERE lower(email) = lower($1) LIMIT 1")).
		WithArgs("Manager@example.org").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "Manager@example.org")
	require.NoError(t, err)
	assert.Equal(t, "manager@example.org", user.Email)
	require.NotNil(t, user.PersonID)
	assert.Equal(t, "person-1", *user.PersonID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListUsersFiltersByRole(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	role := models.RoleTrainingManager
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE 1=1 AND role = $1 AND (LOWER(email) LIKE $2 OR LOWER(full_name) LIKE $2)")).
		WithArgs(role, "%doe%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY email ASC LIMIT $3 OFFSET $4")).
		WithArgs(role, "%doe%", 10, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "person_id", "email", "password_hash", "full_name", "role", "active", "last_login", "created_at", "updated_at"}).
			AddRow("u-2", "p-2", "doe@example.org", "hash", "Doe John", string(role), true, nil, now, now))

	users, total, err := repo.List(context.Background(), models.UserFilter{Role: &role, Search: "Doe", Page: 2, PageSize: 10, SortBy: "email", SortOrder: "asc"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, users, 1)
	assert.Equal(t, "doe@example.org", users[0].Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeactivateMissingUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET active = FALSE")).
		WithArgs("u-x", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Deactivate(context.Background(), "u-x")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
