package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lightchurch_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const churchNotFoundMsg = "church not found"

const churchColumns = `
	id, owner_id, name, description, phone, email, website,
	street_number, street_name, postal_code, city, latitude, longitude, full_address,
	address_source, geocode_checked_at, geocode_drift_m, created_at, updated_at`

// Repository provides database operations for churches.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new churches repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanChurch(row pgx.Row) (Church, error) {
	var c Church
	err := row.Scan(
		&c.ID,
		&c.OwnerID,
		&c.Name,
		&c.Description,
		&c.Phone,
		&c.Email,
		&c.Website,
		&c.Address.StreetNumber,
		&c.Address.StreetName,
		&c.Address.PostalCode,
		&c.Address.City,
		&c.Address.Latitude,
		&c.Address.Longitude,
		&c.Address.FullAddress,
		&c.AddressSource,
		&c.GeocodeCheckedAt,
		&c.GeocodeDriftM,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

func (r *Repository) Create(ctx context.Context, church Church) (Church, error) {
	query := `
		INSERT INTO churches (
			id, owner_id, name, description, phone, email, website,
			street_number, street_name, postal_code, city, latitude, longitude, full_address,
			address_source, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17
		)
		RETURNING` + churchColumns

	created, err := scanChurch(r.pool.QueryRow(ctx, query,
		church.ID,
		church.OwnerID,
		church.Name,
		church.Description,
		church.Phone,
		church.Email,
		church.Website,
		church.Address.StreetNumber,
		church.Address.StreetName,
		church.Address.PostalCode,
		church.Address.City,
		church.Address.Latitude,
		church.Address.Longitude,
		church.Address.FullAddress,
		church.AddressSource,
		church.CreatedAt,
		church.UpdatedAt,
	))
	if err != nil {
		return Church{}, fmt.Errorf("create church: %w", err)
	}
	return created, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Church, error) {
	query := `SELECT` + churchColumns + ` FROM churches WHERE id = $1`

	church, err := scanChurch(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Church{}, apperr.NotFound(churchNotFoundMsg)
		}
		return Church{}, fmt.Errorf("get church: %w", err)
	}
	return church, nil
}

// UpdateAddress replaces the address and clears the previous verification.
func (r *Repository) UpdateAddress(ctx context.Context, id uuid.UUID, address Address, source string) (Church, error) {
	query := `
		UPDATE churches
		SET
			street_number = $2,
			street_name = $3,
			postal_code = $4,
			city = $5,
			latitude = $6,
			longitude = $7,
			full_address = $8,
			address_source = $9,
			geocode_checked_at = NULL,
			geocode_drift_m = NULL,
			updated_at = now()
		WHERE id = $1
		RETURNING` + churchColumns

	church, err := scanChurch(r.pool.QueryRow(ctx, query,
		id,
		address.StreetNumber,
		address.StreetName,
		address.PostalCode,
		address.City,
		address.Latitude,
		address.Longitude,
		address.FullAddress,
		source,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Church{}, apperr.NotFound(churchNotFoundMsg)
		}
		return Church{}, fmt.Errorf("update church address: %w", err)
	}
	return church, nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM churches WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete church: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(churchNotFoundMsg)
	}
	return nil
}

func (r *Repository) List(ctx context.Context, params ListParams) (ListResult, error) {
	baseQuery := `
		FROM churches
		WHERE ($1::text IS NULL OR lower(city) = lower($1))
			AND ($2::text IS NULL OR name ILIKE $2 OR full_address ILIKE $2)
	`
	args := []interface{}{optionalText(params.City), optionalSearch(params.Search)}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return ListResult{}, fmt.Errorf("count churches: %w", err)
	}

	page := params.Page
	pageSize := params.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize
	totalPages := (total + pageSize - 1) / pageSize

	selectQuery := `SELECT` + churchColumns + baseQuery + `
		ORDER BY name ASC, id ASC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, selectQuery, append(args, pageSize, offset)...)
	if err != nil {
		return ListResult{}, fmt.Errorf("list churches: %w", err)
	}
	defer rows.Close()

	items := make([]Church, 0, pageSize)
	for rows.Next() {
		church, err := scanChurch(rows)
		if err != nil {
			return ListResult{}, fmt.Errorf("scan church: %w", err)
		}
		items = append(items, church)
	}
	if err := rows.Err(); err != nil {
		return ListResult{}, fmt.Errorf("iterate churches: %w", err)
	}

	return ListResult{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

const listUncheckedQuery = `SELECT` + churchColumns + `
		FROM churches
		WHERE geocode_checked_at IS NULL AND address_source = 'manual'
		ORDER BY created_at ASC
		LIMIT $1
	`

// ListUnchecked returns churches with a manually entered address whose
// coordinates were never verified, oldest first.
func (r *Repository) ListUnchecked(ctx context.Context, limit int) ([]Church, error) {
	rows, err := r.pool.Query(ctx, listUncheckedQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("list unchecked churches: %w", err)
	}
	defer rows.Close()

	churches := make([]Church, 0, limit)
	for rows.Next() {
		church, err := scanChurch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan church: %w", err)
		}
		churches = append(churches, church)
	}
	return churches, rows.Err()
}

// RecordGeocodeCheck stores a verification. A nil drift means the providers
// returned nothing to compare against.
func (r *Repository) RecordGeocodeCheck(ctx context.Context, id uuid.UUID, driftMeters *float64, checkedAt time.Time) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE churches SET geocode_checked_at = $2, geocode_drift_m = $3 WHERE id = $1`,
		id, checkedAt, driftMeters,
	)
	if err != nil {
		return fmt.Errorf("record geocode check: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(churchNotFoundMsg)
	}
	return nil
}

func optionalText(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func optionalSearch(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	pattern := "%" + trimmed + "%"
	return &pattern
}
