package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainingRepositoryGetByIDUsesLatestEdition(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTrainingRepository(db)

	rows := sqlmock.NewRows([]string{"id", "education_group_id", "active", "registration_required", "acronym", "academic_year"}).
		AddRow("training-1", "eg-1", true, false, "MDEMO2FC", 2024)
	mock.ExpectQuery(`ORDER BY academic_year DESC\s+LIMIT 1\s+\) egy ON TRUE WHERE t.id = \$1`).
		WithArgs("training-1").
		WillReturnRows(rows)

	training, err := repo.GetByID(context.Background(), "training-1")
	require.NoError(t, err)
	assert.Equal(t, "MDEMO2FC", training.Acronym)
	assert.Equal(t, 2024, training.AcademicYear)
	assert.False(t, training.RegistrationRequired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainingRepositoryListManagersSorted(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTrainingRepository(db)

	rows := sqlmock.NewRows([]string{"id", "first_name", "last_name", "email", "gender", "created_at"}).
		AddRow("p-1", "Anne", "Dupont", "anne@example.org", "F", time.Now()).
		AddRow("p-2", "Marc", "Lambert", "marc@example.org", "H", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("WHERE tm.training_id = $1 ORDER BY p.last_name, p.first_name")).
		WithArgs("training-1").
		WillReturnRows(rows)

	managers, err := repo.ListManagers(context.Background(), "training-1")
	require.NoError(t, err)
	require.Len(t, managers, 2)
	assert.Equal(t, "Dupont", managers[0].LastName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainingRepositoryRemoveManagerNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTrainingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM training_managers WHERE training_id = $1 AND person_id = $2")).
		WithArgs("training-1", "p-9").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.RemoveManager(context.Background(), "training-1", "p-9")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
