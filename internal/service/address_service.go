package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/iufc-admission-api/internal/models"
	appErrors "github.com/noah-isme/iufc-admission-api/pkg/errors"
)

const (
	countriesCacheKey         = "reference:countries"
	municipalitiesCachePrefix = "reference:municipalities:"
)

type addressStore interface {
	GetByID(ctx context.Context, id string) (*models.Address, error)
	Create(ctx context.Context, exec sqlx.ExtContext, address *models.Address) error
	Update(ctx context.Context, exec sqlx.ExtContext, address *models.Address) error
	GetCountry(ctx context.Context, id string) (*models.Country, error)
	ListCountries(ctx context.Context) ([]models.Country, error)
	ListMunicipalities(ctx context.Context, postalCode string) ([]models.Municipality, error)
}

// AddressInput is the address payload embedded in admission requests.
type AddressInput struct {
	Location   string  `json:"location" validate:"max=50"`
	PostalCode string  `json:"postalCode" validate:"max=12"`
	City       string  `json:"city" validate:"max=40"`
	CountryID  *string `json:"countryId"`
}

// AddressService validates and stores postal addresses.
type AddressService struct {
	repo      addressStore
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	ttl       time.Duration
}

// NewAddressService constructs the service.
func NewAddressService(repo addressStore, cache *CacheService, validate *validator.Validate, logger *zap.Logger, ttl time.Duration) *AddressService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AddressService{repo: repo, cache: cache, validator: validate, logger: logger, ttl: ttl}
}

// Countries returns the country reference list.
func (s *AddressService) Countries(ctx context.Context) ([]models.Country, error) {
	countries, _, err := cached(ctx, s.cache, countriesCacheKey, s.ttl, func(ctx context.Context) ([]models.Country, error) {
		countries, err := s.repo.ListCountries(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list countries")
		}
		return countries, nil
	})
	return countries, err
}

// Municipalities returns the Belgian municipalities sharing postalCode.
func (s *AddressService) Municipalities(ctx context.Context, postalCode string) ([]models.Municipality, error) {
	postalCode = strings.TrimSpace(postalCode)
	municipalities, _, err := cached(ctx, s.cache, municipalitiesCachePrefix+postalCode, s.ttl, func(ctx context.Context) ([]models.Municipality, error) {
		municipalities, err := s.repo.ListMunicipalities(ctx, postalCode)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list municipalities")
		}
		return municipalities, nil
	})
	return municipalities, err
}

// Validate checks field lengths and, for Belgian addresses, that the postal
// code and city exist in the municipality table. field prefixes the names
// reported in validation errors.
func (s *AddressService) Validate(ctx context.Context, field string, in AddressInput) (*models.Country, error) {
	if err := s.validator.Struct(in); err != nil {
		return nil, addressFieldError(field, err)
	}

	var country *models.Country
	if in.CountryID != nil && *in.CountryID != "" {
		c, err := s.repo.GetCountry(ctx, *in.CountryID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.FieldError(field+".country", "unknown country")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load country")
		}
		country = c
	}
	if country == nil || country.ISOCode != models.BelgiumISOCode {
		return country, nil
	}

	postalCode := strings.TrimSpace(in.PostalCode)
	if postalCode == "" {
		return country, nil
	}
	municipalities, err := s.Municipalities(ctx, postalCode)
	if err != nil {
		return nil, err
	}
	if len(municipalities) == 0 {
		return nil, appErrors.FieldError(field+".postal_code",
			fmt.Sprintf("The postal code %s does not match any Belgian municipality", postalCode))
	}
	city := strings.TrimSpace(in.City)
	if city == "" {
		return country, nil
	}
	for _, m := range municipalities {
		if strings.EqualFold(m.City, city) {
			return country, nil
		}
	}
	return nil, appErrors.FieldError(field+".city",
		fmt.Sprintf("The city %s does not match the postal code %s", city, postalCode))
}

// Save validates in and stores it, updating currentID when set. A nil input
// keeps the current address.
func (s *AddressService) Save(ctx context.Context, exec sqlx.ExtContext, currentID *string, field string, in *AddressInput) (*string, error) {
	if in == nil {
		return currentID, nil
	}
	if _, err := s.Validate(ctx, field, *in); err != nil {
		return nil, err
	}
	address := &models.Address{
		Location:   strings.TrimSpace(in.Location),
		PostalCode: strings.TrimSpace(in.PostalCode),
		City:       strings.TrimSpace(in.City),
		CountryID:  in.CountryID,
	}
	if currentID != nil && *currentID != "" {
		address.ID = *currentID
		if err := s.repo.Update(ctx, exec, address); err != nil {
			return nil, notFoundOrInternal(err, "address not found", "failed to update address")
		}
		return currentID, nil
	}
	if err := s.repo.Create(ctx, exec, address); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create address")
	}
	id := address.ID
	return &id, nil
}

func addressFieldError(prefix string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid address")
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[prefix+"."+toSnake(fe.Field())] = fmt.Sprintf("must be at most %s characters", fe.Param())
	}
	e := appErrors.Clone(appErrors.ErrValidation, "invalid address")
	e.Fields = fields
	return e
}

func toSnake(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
