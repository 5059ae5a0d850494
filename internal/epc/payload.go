// Package epc builds the registration messages sent to the student registry
// and decodes the acknowledgements it returns.
package epc

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/noah-isme/iufc-admission-api/internal/models"
)

// Field caps applied before publishing.
const (
	NameMaxLength      = 40
	FirstNameMaxLength = 20
	birthDateLayout    = "02/01/2006"
)

// ErrUnsupportedGender is returned when a person's gender has no registry sex code.
var ErrUnsupportedGender = errors.New("unsupported gender code")

// Address is the registry's address shape.
type Address struct {
	Street         string `json:"street"`
	Locality       string `json:"locality"`
	PostalCode     string `json:"postal_code"`
	CountryName    string `json:"country_name"`
	CountryISOCode string `json:"country_iso_code"`
}

// OptionalAddress encodes as {} when empty.
type OptionalAddress struct {
	*Address
}

// MarshalJSON implements json.Marshaler.
func (o OptionalAddress) MarshalJSON() ([]byte, error) {
	if o.Address == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(o.Address)
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *OptionalAddress) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		o.Address = nil
		return nil
	}
	var addr Address
	if err := json.Unmarshal(data, &addr); err != nil {
		return err
	}
	o.Address = &addr
	return nil
}

// Payload is the message published on IUFC_TO_EPC.
type Payload struct {
	Name                   string          `json:"name"`
	FirstName              string          `json:"first_name"`
	BirthDate              string          `json:"birth_date"`
	BirthLocation          string          `json:"birth_location"`
	BirthCountryISOCode    string          `json:"birth_country_iso_code"`
	Sex                    string          `json:"sex"`
	CivilState             string          `json:"civil_state"`
	NationalityISOCode     string          `json:"nationality_iso_code"`
	MobileNumber           string          `json:"mobile_number"`
	TelephoneNumber        string          `json:"telephone_number"`
	PrivateEmail           string          `json:"private_email"`
	PrivateAddress         Address         `json:"private_address"`
	StayingAddress         OptionalAddress `json:"staying_address"`
	NationalRegistryNumber string          `json:"national_registry_number"`
	IDCardNumber           string          `json:"id_card_number"`
	PassportNumber         string          `json:"passport_number"`
	FormationCode          string          `json:"formation_code"`
	FormationAcademicYear  string          `json:"formation_academic_year"`
	StudentCaseUUID        string          `json:"student_case_uuid"`
}

// BuildPayload serialises an admission for the registry. Over-long fields are
// truncated, never rejected.
func BuildPayload(d *models.AdmissionDetail) (*Payload, error) {
	if d == nil {
		return nil, errors.New("admission detail is required")
	}

	sex, err := SexCode(d.Person.Gender)
	if err != nil {
		return nil, err
	}

	payload := &Payload{
		Name:                   truncate(d.Person.LastName, NameMaxLength),
		FirstName:              truncate(d.Person.FirstName, FirstNameMaxLength),
		BirthLocation:          d.PersonInfo.BirthLocation,
		Sex:                    sex,
		CivilState:             string(d.MaritalStatus),
		MobileNumber:           d.PhoneMobile,
		TelephoneNumber:        d.ResidencePhone,
		PrivateEmail:           d.Email,
		PrivateAddress:         formatAddress(d.ResidenceAddress),
		NationalRegistryNumber: d.NationalRegistryNumber,
		IDCardNumber:           d.IDCardNumber,
		PassportNumber:         d.PassportNumber,
		FormationCode:          d.Training.Acronym,
		FormationAcademicYear:  academicYear(d),
		StudentCaseUUID:        d.ID,
	}
	if d.PersonInfo.BirthDate != nil {
		payload.BirthDate = d.PersonInfo.BirthDate.Format(birthDateLayout)
	}
	if d.PersonInfo.BirthCountry != nil {
		payload.BirthCountryISOCode = d.PersonInfo.BirthCountry.ISOCode
	}
	if d.Citizenship != nil {
		payload.NationalityISOCode = d.Citizenship.ISOCode
	}
	if d.Address != nil && !d.Address.SameAs(d.ResidenceAddress) {
		staying := formatAddress(d.Address)
		payload.StayingAddress = OptionalAddress{Address: &staying}
	}
	return payload, nil
}

// Marshal renders the payload as the wire body.
func (p *Payload) Marshal() ([]byte, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal epc payload: %w", err)
	}
	return body, nil
}

// SexCode maps the person gender onto the registry's sex code.
func SexCode(g models.Gender) (string, error) {
	switch g {
	case models.GenderFemale:
		return "F", nil
	case models.GenderMale:
		return "M", nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedGender, string(g))
}

func academicYear(d *models.AdmissionDetail) string {
	year := d.AcademicYear
	if year == 0 {
		year = d.Training.AcademicYear
	}
	if year == 0 {
		return ""
	}
	return strconv.Itoa(year)
}

func formatAddress(a *models.Address) Address {
	if a == nil {
		return Address{}
	}
	out := Address{
		Street:     truncate(a.Location, models.AddressLocationMaxLength),
		Locality:   truncate(a.City, models.AddressCityMaxLength),
		PostalCode: truncate(a.PostalCode, models.AddressPostalCodeMaxLength),
	}
	if a.Country != nil {
		out.CountryName = a.Country.Name
		out.CountryISOCode = a.Country.ISOCode
	}
	return out
}

func truncate(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max])
}
