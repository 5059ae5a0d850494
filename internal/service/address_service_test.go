package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/iufc-admission-api/internal/models"
	appErrors "github.com/noah-isme/iufc-admission-api/pkg/errors"
)

type addressStoreStub struct {
	addresses      map[string]*models.Address
	countries      map[string]models.Country
	municipalities map[string][]models.Municipality
	lookups        int
}

func newAddressStoreStub() *addressStoreStub {
	return &addressStoreStub{
		addresses: make(map[string]*models.Address),
		countries: map[string]models.Country{
			"c-be": {ID: "c-be", ISOCode: "BE", Name: "Belgique"},
			"c-fr": {ID: "c-fr", ISOCode: "FR", Name: "France"},
		},
		municipalities: map[string][]models.Municipality{
			"1348": {{PostalCode: "1348", City: "Louvain-la-Neuve"}, {PostalCode: "1348", City: "Ottignies"}},
		},
	}
}

func (s *addressStoreStub) GetByID(ctx context.Context, id string) (*models.Address, error) {
	if a, ok := s.addresses[id]; ok {
		copy := *a
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *addressStoreStub) Create(ctx context.Context, exec sqlx.ExtContext, address *models.Address) error {
	if address.ID == "" {
		address.ID = "addr-new"
	}
	copy := *address
	s.addresses[address.ID] = &copy
	return nil
}

func (s *addressStoreStub) Update(ctx context.Context, exec sqlx.ExtContext, address *models.Address) error {
	if _, ok := s.addresses[address.ID]; !ok {
		return sql.ErrNoRows
	}
	copy := *address
	s.addresses[address.ID] = &copy
	return nil
}

func (s *addressStoreStub) GetCountry(ctx context.Context, id string) (*models.Country, error) {
	if c, ok := s.countries[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (s *addressStoreStub) ListCountries(ctx context.Context) ([]models.Country, error) {
	return []models.Country{s.countries["c-be"], s.countries["c-fr"]}, nil
}

func (s *addressStoreStub) ListMunicipalities(ctx context.Context, postalCode string) ([]models.Municipality, error) {
	s.lookups++
	return s.municipalities[postalCode], nil
}

func newAddressFixture() (*AddressService, *addressStoreStub) {
	store := newAddressStoreStub()
	cache := NewCacheService(newCacheRepoStub(), nil, time.Minute, nil, true)
	return NewAddressService(store, cache, nil, nil, time.Minute), store
}

func stringRef(v string) *string { return &v }

func TestAddressValidateBelgianPostalCode(t *testing.T) {
	svc, _ := newAddressFixture()

	_, err := svc.Validate(context.Background(), "address", AddressInput{
		Location: "Rue Inconnue 1", PostalCode: "9999", City: "Nowhere", CountryID: stringRef("c-be"),
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	require.Contains(t, appErr.Fields["address.postal_code"], "9999")

	country, err := svc.Validate(context.Background(), "address", AddressInput{
		Location: "Place de l'Université 1", PostalCode: "1348", City: "louvain-la-neuve", CountryID: stringRef("c-be"),
	})
	require.NoError(t, err)
	require.Equal(t, "BE", country.ISOCode)
}

func TestAddressValidateCityMismatchAndForeignAddresses(t *testing.T) {
	svc, store := newAddressFixture()

	_, err := svc.Validate(context.Background(), "residence", AddressInput{PostalCode: "1348", City: "Namur", CountryID: stringRef("c-be")})
	require.Error(t, err)
	require.Contains(t, appErrors.FromError(err).Fields, "residence.city")

	_, err = svc.Validate(context.Background(), "residence", AddressInput{PostalCode: "9999", City: "Lille", CountryID: stringRef("c-fr")})
	require.NoError(t, err)

	// The 1348 lookup above is cached.
	_, err = svc.Validate(context.Background(), "residence", AddressInput{PostalCode: "1348", CountryID: stringRef("c-be")})
	require.NoError(t, err)
	require.Equal(t, 1, store.lookups)
}

func TestAddressValidateLengths(t *testing.T) {
	svc, _ := newAddressFixture()

	_, err := svc.Validate(context.Background(), "billing", AddressInput{
		Location: "0123456789012345678901234567890123456789012345678901",
	})
	require.Error(t, err)
	fields := appErrors.FromError(err).Fields
	require.Equal(t, "must be at most 50 characters", fields["billing.location"])
}

func TestAddressSaveCreatesThenUpdates(t *testing.T) {
	svc, store := newAddressFixture()

	id, err := svc.Save(context.Background(), nil, nil, "address", &AddressInput{Location: "Rue A 1", PostalCode: "1348", City: "Ottignies", CountryID: stringRef("c-be")})
	require.NoError(t, err)
	require.Equal(t, "addr-new", *id)

	same, err := svc.Save(context.Background(), nil, id, "address", &AddressInput{Location: "Rue B 2", PostalCode: "1348", City: "Ottignies", CountryID: stringRef("c-be")})
	require.NoError(t, err)
	require.Equal(t, id, same)
	require.Equal(t, "Rue B 2", store.addresses["addr-new"].Location)

	kept, err := svc.Save(context.Background(), nil, id, "address", nil)
	require.NoError(t, err)
	require.Equal(t, id, kept)
}
