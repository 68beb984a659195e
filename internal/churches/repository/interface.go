package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Address is the stored form of a resolved address.
type Address struct {
	StreetNumber string
	StreetName   string
	PostalCode   string
	City         string
	Latitude     float64
	Longitude    float64
	FullAddress  string
}

type Church struct {
	ID               uuid.UUID
	OwnerID          uuid.UUID
	Name             string
	Description      *string
	Phone            *string
	Email            *string
	Website          *string
	Address          Address
	AddressSource    string
	GeocodeCheckedAt *time.Time
	GeocodeDriftM    *float64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type ListParams struct {
	City     string
	Search   string
	Page     int
	PageSize int
}

type ListResult struct {
	Items      []Church
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

// Store is the persistence port of the churches service.
type Store interface {
	Create(ctx context.Context, church Church) (Church, error)
	GetByID(ctx context.Context, id uuid.UUID) (Church, error)
	List(ctx context.Context, params ListParams) (ListResult, error)
	UpdateAddress(ctx context.Context, id uuid.UUID, address Address, source string) (Church, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// GeocodeStore is the narrower port used by coordinate verification.
type GeocodeStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (Church, error)
	ListUnchecked(ctx context.Context, limit int) ([]Church, error)
	RecordGeocodeCheck(ctx context.Context, id uuid.UUID, driftMeters *float64, checkedAt time.Time) error
}

var (
	_ Store        = (*Repository)(nil)
	_ GeocodeStore = (*Repository)(nil)
)
