package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/iufc-admission-api/internal/models"
	appErrors "github.com/noah-isme/iufc-admission-api/pkg/errors"
)

type trainingStoreStub struct {
	trainings map[string]*models.Training
	years     map[string][]models.EducationGroupYear
	managers  map[string][]models.Person
	managed   map[string][]string
	reads     int
	lastList  models.TrainingFilter
}

func newTrainingStoreStub() *trainingStoreStub {
	return &trainingStoreStub{
		trainings: map[string]*models.Training{
			"tr-1": {ID: "tr-1", EducationGroupID: "eg-1", Acronym: "MDEMO2FC", AcademicYear: 2024, Active: true},
		},
		years: map[string][]models.EducationGroupYear{
			"eg-1": {
				{ID: "egy-1", EducationGroupID: "eg-1", Acronym: "MDEMO2FC", Title: "Old title", AcademicYear: 2023},
				{ID: "egy-2", EducationGroupID: "eg-1", Acronym: "MDEMO2FC", Title: "Demo training", AcademicYear: 2024},
			},
		},
		managers: map[string][]models.Person{"tr-1": {{ID: "person-tm", LastName: "Trainer"}}},
		managed:  map[string][]string{"person-tm": {"tr-1"}},
	}
}

func (t *trainingStoreStub) GetByID(ctx context.Context, id string) (*models.Training, error) {
	t.reads++
	if training, ok := t.trainings[id]; ok {
		copy := *training
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (t *trainingStoreStub) List(ctx context.Context, filter models.TrainingFilter) ([]models.Training, int, error) {
	t.lastList = filter
	out := make([]models.Training, 0, len(t.trainings))
	for _, training := range t.trainings {
		out = append(out, *training)
	}
	return out, len(out), nil
}

func (t *trainingStoreStub) Create(ctx context.Context, training *models.Training) error {
	training.ID = "tr-new"
	copy := *training
	t.trainings[training.ID] = &copy
	return nil
}

func (t *trainingStoreStub) Update(ctx context.Context, training *models.Training) error {
	if _, ok := t.trainings[training.ID]; !ok {
		return sql.ErrNoRows
	}
	copy := *training
	t.trainings[training.ID] = &copy
	return nil
}

func (t *trainingStoreStub) ListYears(ctx context.Context, educationGroupID string) ([]models.EducationGroupYear, error) {
	return t.years[educationGroupID], nil
}

func (t *trainingStoreStub) ListManagers(ctx context.Context, trainingID string) ([]models.Person, error) {
	return t.managers[trainingID], nil
}

func (t *trainingStoreStub) AddManager(ctx context.Context, trainingID, personID string) error {
	t.managers[trainingID] = append(t.managers[trainingID], models.Person{ID: personID})
	return nil
}

func (t *trainingStoreStub) RemoveManager(ctx context.Context, trainingID, personID string) error {
	kept := t.managers[trainingID][:0]
	found := false
	for _, manager := range t.managers[trainingID] {
		if manager.ID == personID {
			found = true
			continue
		}
		kept = append(kept, manager)
	}
	if !found {
		return sql.ErrNoRows
	}
	t.managers[trainingID] = kept
	return nil
}

func (t *trainingStoreStub) ManagedTrainingIDs(ctx context.Context, personID string) ([]string, error) {
	return t.managed[personID], nil
}

func newTrainingFixture() (*TrainingService, *trainingStoreStub) {
	store := newTrainingStoreStub()
	cache := NewCacheService(newCacheRepoStub(), nil, time.Minute, nil, true)
	return NewTrainingService(store, cache, nil, nil, nil, time.Minute), store
}

func TestTrainingCreateUsesLatestYear(t *testing.T) {
	svc, _ := newTrainingFixture()

	training, err := svc.Create(context.Background(), managerClaims(), CreateTrainingRequest{
		EducationGroupID: "eg-1",
		Active:           true,
		AlternateEmails:  []string{"a@example.org", " A@example.org ", "b@example.org"},
	})
	require.NoError(t, err)
	require.Equal(t, "tr-new", training.ID)
	require.Equal(t, "Demo training", training.Title)
	require.Equal(t, 2024, training.AcademicYear)
	require.True(t, training.RegistrationRequired)
	require.True(t, training.SendNotificationEmail)
	require.Equal(t, "a@example.org,b@example.org", training.AlternateEmails)
}

func TestTrainingCreateRequiresEducationGroupYear(t *testing.T) {
	svc, _ := newTrainingFixture()

	_, err := svc.Create(context.Background(), managerClaims(), CreateTrainingRequest{EducationGroupID: "eg-empty"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	require.Contains(t, appErr.Fields, "educationGroupId")

	_, err = svc.Create(context.Background(), managerClaims(), CreateTrainingRequest{EducationGroupID: "eg-1", AlternateEmails: []string{"not-an-email"}})
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestTrainingGetIsCachedUntilUpdate(t *testing.T) {
	svc, store := newTrainingFixture()
	ctx := context.Background()

	first, err := svc.Get(ctx, "tr-1")
	require.NoError(t, err)
	require.Len(t, first.Managers, 1)
	_, hit, err := svc.GetCached(ctx, "tr-1")
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, 1, store.reads)

	inactive := false
	updated, err := svc.Update(ctx, trainingManagerClaims(), "tr-1", UpdateTrainingRequest{Active: &inactive})
	require.NoError(t, err)
	require.False(t, updated.Active)

	reloaded, err := svc.Get(ctx, "tr-1")
	require.NoError(t, err)
	require.False(t, reloaded.Active)
	require.Equal(t, 3, store.reads)

	_, err = svc.Get(ctx, "missing")
	require.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestTrainingUpdateScopedToManagedTrainings(t *testing.T) {
	svc, store := newTrainingFixture()
	store.trainings["tr-2"] = &models.Training{ID: "tr-2", EducationGroupID: "eg-2"}

	active := true
	_, err := svc.Update(context.Background(), trainingManagerClaims(), "tr-2", UpdateTrainingRequest{Active: &active})
	require.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Update(context.Background(), participantClaims(), "tr-1", UpdateTrainingRequest{Active: &active})
	require.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestTrainingManagersAddRemove(t *testing.T) {
	svc, store := newTrainingFixture()
	ctx := context.Background()

	require.NoError(t, svc.AddManager(ctx, managerClaims(), "tr-1", "person-x"))
	require.Len(t, store.managers["tr-1"], 2)

	training, err := svc.Get(ctx, "tr-1")
	require.NoError(t, err)
	require.Len(t, training.Managers, 2)

	require.NoError(t, svc.RemoveManager(ctx, managerClaims(), "tr-1", "person-x"))
	err = svc.RemoveManager(ctx, managerClaims(), "tr-1", "person-x")
	require.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	err = svc.AddManager(ctx, managerClaims(), "tr-1", " ")
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestTrainingListForcesActiveForParticipants(t *testing.T) {
	svc, store := newTrainingFixture()

	_, page, err := svc.List(context.Background(), participantClaims(), models.TrainingFilter{PageSize: 500})
	require.NoError(t, err)
	require.NotNil(t, store.lastList.Active)
	require.True(t, *store.lastList.Active)
	require.Equal(t, 200, page.PageSize)
	require.Equal(t, 1, page.TotalCount)
}
