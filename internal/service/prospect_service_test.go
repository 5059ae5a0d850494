package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/iufc-admission-api/internal/models"
	appErrors "github.com/noah-isme/iufc-admission-api/pkg/errors"
)

type prospectStoreStub struct {
	created []models.Prospect
	filter  models.ProspectFilter
}

func (p *prospectStoreStub) Create(ctx context.Context, prospect *models.Prospect) error {
	prospect.ID = "prospect-1"
	p.created = append(p.created, *prospect)
	return nil
}

func (p *prospectStoreStub) List(ctx context.Context, filter models.ProspectFilter) ([]models.Prospect, int, error) {
	p.filter = filter
	return p.created, len(p.created), nil
}

func newProspectFixture() (*ProspectService, *prospectStoreStub) {
	store := &prospectStoreStub{}
	trainings := &trainingReaderStub{trainings: map[string]*models.Training{
		"tr-1": {ID: "tr-1", Active: true},
		"tr-2": {ID: "tr-2", Active: false},
	}}
	return NewProspectService(store, trainings, nil, nil), store
}

func TestProspectCreate(t *testing.T) {
	svc, store := newProspectFixture()

	prospect, err := svc.Create(context.Background(), CreateProspectRequest{
		Name:       " Doe ",
		FirstName:  "Jane",
		Email:      " jane@example.org ",
		PostalCode: "1348",
		TrainingID: stringRef("tr-1"),
	})
	require.NoError(t, err)
	require.Equal(t, "prospect-1", prospect.ID)
	require.Equal(t, "Doe", prospect.Name)
	require.Equal(t, "jane@example.org", prospect.Email)
	require.Len(t, store.created, 1)

	blank, err := svc.Create(context.Background(), CreateProspectRequest{Email: "lead@example.org", TrainingID: stringRef("  ")})
	require.NoError(t, err)
	require.Nil(t, blank.TrainingID)
}

func TestProspectCreateValidation(t *testing.T) {
	svc, store := newProspectFixture()
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateProspectRequest{Name: "Doe"})
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.Create(ctx, CreateProspectRequest{Email: "jane@example.org", TrainingID: stringRef("tr-2")})
	require.Contains(t, appErrors.FromError(err).Fields, "trainingId")

	_, err = svc.Create(ctx, CreateProspectRequest{Email: "jane@example.org", TrainingID: stringRef("tr-404")})
	require.Equal(t, "unknown training", appErrors.FromError(err).Fields["trainingId"])
	require.Empty(t, store.created)
}

func TestProspectListManagersOnly(t *testing.T) {
	svc, store := newProspectFixture()

	_, _, err := svc.List(context.Background(), trainingManagerClaims(), models.ProspectFilter{})
	require.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, page, err := svc.List(context.Background(), managerClaims(), models.ProspectFilter{Page: 3, PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, 3, page.Page)
	require.Equal(t, 20, store.filter.Offset)
	require.Equal(t, 10, store.filter.Limit)
}
