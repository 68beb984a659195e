package resolver

import (
	"fmt"
	"strings"

	"lightchurch_backend/internal/geocoding"
	"lightchurch_backend/platform/validator"
)

// ResolvedAddress is handed to the caller once per confirmed address.
type ResolvedAddress struct {
	StreetNumber string  `json:"streetNumber"`
	StreetName   string  `json:"streetName"`
	PostalCode   string  `json:"postalCode"`
	City         string  `json:"city"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	FullAddress  string  `json:"fullAddress"`
}

// FromCandidate converts a provider suggestion. Candidates carry
// (lon, lat); the output names each axis.
func FromCandidate(c geocoding.Candidate) ResolvedAddress {
	number := ""
	if c.HouseNumber != nil {
		number = *c.HouseNumber
	}
	return ResolvedAddress{
		StreetNumber: number,
		StreetName:   c.StreetName,
		PostalCode:   c.PostalCode,
		City:         c.City,
		Latitude:     c.Coordinates.Lat,
		Longitude:    c.Coordinates.Lon,
		FullAddress:  c.DisplayLabel,
	}
}

// ManualAddress holds the structured fields typed in manual entry.
// Coordinates are pointers so a missing value is not read as 0.
type ManualAddress struct {
	StreetNumber string   `json:"streetNumber" validate:"max=16"`
	StreetName   string   `json:"streetName" validate:"required,max=200"`
	PostalCode   string   `json:"postalCode" validate:"fr_postcode"`
	City         string   `json:"city" validate:"required,max=120"`
	Latitude     *float64 `json:"latitude" validate:"required,min=-90,max=90"`
	Longitude    *float64 `json:"longitude" validate:"required,min=-180,max=180"`
}

var manualMessages = map[string]string{
	"streetNumber": "street number is too long",
	"streetName":   "street name is required",
	"postalCode":   "postal code must be exactly 5 digits",
	"city":         "city is required",
	"latitude":     "latitude must be between -90 and 90",
	"longitude":    "longitude must be between -180 and 180",
}

// Normalize trims the text fields.
func (m ManualAddress) Normalize() ManualAddress {
	m.StreetNumber = strings.TrimSpace(m.StreetNumber)
	m.StreetName = strings.TrimSpace(m.StreetName)
	m.PostalCode = strings.TrimSpace(m.PostalCode)
	m.City = strings.TrimSpace(m.City)
	return m
}

// Validate checks every field and returns field -> message for each failure.
// A nil map means the address is valid.
func (m ManualAddress) Validate(v *validator.Validator) map[string]string {
	err := v.Struct(m)
	if err == nil {
		return nil
	}
	fields, ok := validator.FieldErrors(err, manualMessages)
	if !ok {
		return map[string]string{"address": err.Error()}
	}
	return fields
}

// ValidateProvided checks an address picked from geocoder results. Places
// without a road or a postcode are accepted; city and coordinates are not.
func (m ManualAddress) ValidateProvided(v *validator.Validator) map[string]string {
	fields := m.Validate(v)
	delete(fields, "streetName")
	delete(fields, "postalCode")
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// Resolved composes the address as "<number> <street>, <postcode> <city>".
// Missing parts are left out.
// Call only after Validate returned no errors.
func (m ManualAddress) Resolved() ResolvedAddress {
	street := strings.TrimSpace(m.StreetNumber + " " + m.StreetName)
	var lat, lon float64
	if m.Latitude != nil {
		lat = *m.Latitude
	}
	if m.Longitude != nil {
		lon = *m.Longitude
	}
	return ResolvedAddress{
		StreetNumber: m.StreetNumber,
		StreetName:   m.StreetName,
		PostalCode:   m.PostalCode,
		City:         m.City,
		Latitude:     lat,
		Longitude:    lon,
		FullAddress:  composeFull(street, m.PostalCode, m.City),
	}
}

// ManualFromResolved turns a resolved address back into manual fields, for
// callers that revalidate an address received over the wire.
func ManualFromResolved(a ResolvedAddress) ManualAddress {
	lat, lon := a.Latitude, a.Longitude
	return ManualAddress{
		StreetNumber: a.StreetNumber,
		StreetName:   a.StreetName,
		PostalCode:   a.PostalCode,
		City:         a.City,
		Latitude:     &lat,
		Longitude:    &lon,
	}
}

func composeFull(street, postcode, city string) string {
	locality := strings.TrimSpace(postcode + " " + city)
	if street == "" {
		return locality
	}
	return fmt.Sprintf("%s, %s", street, locality)
}
