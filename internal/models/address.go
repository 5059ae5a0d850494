package models

// Field limits shared by address forms and the EPC payload.
const (
	AddressLocationMaxLength   = 50
	AddressPostalCodeMaxLength = 12
	AddressCityMaxLength       = 40
)

// BelgiumISOCode identifies addresses checked against the municipality table.
const BelgiumISOCode = "BE"

// Country is a reference row.
type Country struct {
	ID      string `db:"id" json:"id"`
	ISOCode string `db:"iso_code" json:"isoCode"`
	Name    string `db:"name" json:"name"`
}

// Address is a postal address reusable across an admission's contact, billing and residence slots.
type Address struct {
	ID         string   `db:"id" json:"id"`
	Location   string   `db:"location" json:"location"`
	PostalCode string   `db:"postal_code" json:"postalCode"`
	City       string   `db:"city" json:"city"`
	CountryID  *string  `db:"country_id" json:"countryId,omitempty"`
	Country    *Country `db:"-" json:"country,omitempty"`
}

// SameAs compares the postal content of two addresses.
func (a *Address) SameAs(other *Address) bool {
	if a == nil || other == nil {
		return a == other
	}
	if a.ID != "" && a.ID == other.ID {
		return true
	}
	return a.Location == other.Location &&
		a.PostalCode == other.PostalCode &&
		a.City == other.City &&
		a.countryISO() == other.countryISO()
}

func (a *Address) countryISO() string {
	if a.Country == nil {
		return ""
	}
	return a.Country.ISOCode
}

// Municipality is a Belgian postal code reference row.
type Municipality struct {
	PostalCode string `db:"postal_code" json:"postalCode"`
	City       string `db:"city" json:"city"`
}
