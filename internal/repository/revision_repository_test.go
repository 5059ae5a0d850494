package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/iufc-admission-api/internal/models"
)

func TestRevisionRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRevisionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO admission_revisions")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	revision := &models.Revision{AdmissionID: "adm-1", Kind: models.RevisionStateChanged, Message: "State : Draft ► Submitted"}
	require.NoError(t, repo.Create(context.Background(), nil, revision))
	assert.NotEmpty(t, revision.ID)
	assert.False(t, revision.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevisionRepositoryListByAdmissionFiltersKinds(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRevisionRepository(db)

	rows := sqlmock.NewRows([]string{"id", "admission_id", "kind", "icon", "message", "actor_id", "actor_name", "snapshot", "created_at"}).
		AddRow("rev-1", "adm-1", string(models.RevisionUCLRegistrationSended), "fa-paper-plane", "Registration sent to EPC", nil, "", nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM admission_revisions WHERE admission_id = $1 AND kind = ANY($2) ORDER BY created_at DESC")).
		WithArgs("adm-1", pq.Array([]string{string(models.RevisionUCLRegistrationSended)})).
		WillReturnRows(rows)

	revisions, err := repo.ListByAdmission(context.Background(), "adm-1", []models.RevisionKind{models.RevisionUCLRegistrationSended})
	require.NoError(t, err)
	require.Len(t, revisions, 1)
	assert.Nil(t, revisions[0].ActorID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
