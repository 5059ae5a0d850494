package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/iufc-admission-api/internal/models"
)

func TestAdmissionRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAdmissionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO admissions (id, person_information_id, training_id")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	admission := &models.Admission{PersonInformationID: "info-1", TrainingID: "training-1", Email: "jane@example.org"}
	require.NoError(t, repo.Create(context.Background(), nil, admission))
	assert.NotEmpty(t, admission.ID)
	assert.Equal(t, models.AdmissionStateDraft, admission.State)
	assert.Equal(t, models.TrackingInitState, admission.UCLRegistrationComplete)
	assert.Equal(t, models.RegistrationErrorNone, admission.UCLRegistrationError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmissionRepositoryGetForUpdateUsesTransaction(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAdmissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM admissions WHERE id = \$1 FOR UPDATE`).
		WithArgs("adm-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "state", "training_id"}).
			AddRow("adm-1", string(models.AdmissionStateSubmitted), "training-1"))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	admission, err := repo.GetForUpdate(context.Background(), tx, "adm-1")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.Equal(t, models.AdmissionStateSubmitted, admission.State)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmissionRepositoryUpdateNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAdmissionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE admissions SET person_information_id = ")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), nil, &models.Admission{ID: "missing"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmissionRepositoryDeleteDraftsOnlyTouchesDrafts(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAdmissionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM admissions WHERE id = ANY($1) AND state = $2")).
		WithArgs(pq.Array([]string{"a", "b"}), string(models.AdmissionStateDraft)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	deleted, err := repo.DeleteDrafts(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	deleted, err = repo.DeleteDrafts(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmissionRepositoryListRegistrations(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAdmissionRepository(db)

	archived := false
	filter := models.AdmissionFilter{Registration: true, TrainingIDs: []string{"training-1"}, Archived: &archived, Limit: 500}
	states := pq.Array([]string{"ACCEPTED", "REGISTRATION_SUBMITTED", "VALIDATED"})

	mock.ExpectQuery(regexp.QuoteMeta("FROM admissions WHERE state = ANY($1) AND training_id = ANY($2) AND archived = $3 ORDER BY updated_at DESC LIMIT 50 OFFSET 0")).
		WithArgs(states, pq.Array([]string{"training-1"}), false).
		WillReturnRows(sqlmock.NewRows([]string{"id", "state"}).AddRow("adm-1", "VALIDATED"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM admissions WHERE state = ANY($1)")).
		WithArgs(states, pq.Array([]string{"training-1"}), false).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	admissions, total, err := repo.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, admissions, 1)
	assert.Equal(t, models.AdmissionStateValidated, admissions[0].State)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmissionRepositoryListAwaitingEPC(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAdmissionRepository(db)

	cutoff := time.Now().Add(-10 * time.Minute)
	mock.ExpectQuery(`WHERE state = \$1 AND ucl_registration_complete = \$2 AND updated_at < \$3`).
		WithArgs(string(models.AdmissionStateValidated), string(models.TrackingInitState), cutoff, 25).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("adm-1").AddRow("adm-2"))

	admissions, err := repo.ListAwaitingEPC(context.Background(), cutoff, 25)
	require.NoError(t, err)
	assert.Len(t, admissions, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}
