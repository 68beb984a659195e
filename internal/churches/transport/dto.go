package transport

import (
	"time"

	"github.com/google/uuid"
)

// AddressInput is a resolved address sent directly by the client.
// Coordinates are pointers so a missing value is not read as 0.
type AddressInput struct {
	StreetNumber string   `json:"streetNumber"`
	StreetName   string   `json:"streetName"`
	PostalCode   string   `json:"postalCode"`
	City         string   `json:"city"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	FullAddress  string   `json:"fullAddress"`
}

type CreateChurchRequest struct {
	Name             string        `json:"name" validate:"required,min=2,max=200"`
	Description      *string       `json:"description,omitempty" validate:"omitempty,max=2000"`
	Phone            *string       `json:"phone,omitempty" validate:"omitempty,max=50"`
	Email            *string       `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Website          *string       `json:"website,omitempty" validate:"omitempty,url,max=500"`
	Address          *AddressInput `json:"address,omitempty"`
	AddressSessionID *uuid.UUID    `json:"addressSessionId,omitempty"`
}

type UpdateAddressRequest struct {
	Address          *AddressInput `json:"address,omitempty"`
	AddressSessionID *uuid.UUID    `json:"addressSessionId,omitempty"`
}

type AddressResponse struct {
	StreetNumber string  `json:"streetNumber"`
	StreetName   string  `json:"streetName"`
	PostalCode   string  `json:"postalCode"`
	City         string  `json:"city"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	FullAddress  string  `json:"fullAddress"`
}

type ChurchResponse struct {
	ID               uuid.UUID       `json:"id"`
	OwnerID          uuid.UUID       `json:"ownerId"`
	Name             string          `json:"name"`
	Description      *string         `json:"description,omitempty"`
	Phone            *string         `json:"phone,omitempty"`
	Email            *string         `json:"email,omitempty"`
	Website          *string         `json:"website,omitempty"`
	Address          AddressResponse `json:"address"`
	AddressSource    string          `json:"addressSource"`
	GeocodeCheckedAt *time.Time      `json:"geocodeCheckedAt,omitempty"`
	GeocodeDriftM    *float64        `json:"geocodeDriftMeters,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

type ListChurchesRequest struct {
	City     string `form:"city" validate:"omitempty,max=120"`
	Search   string `form:"search" validate:"omitempty,max=100"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

type ListChurchesResponse struct {
	Items      []ChurchResponse `json:"items"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	TotalPages int              `json:"totalPages"`
}
