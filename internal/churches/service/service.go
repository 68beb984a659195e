package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"lightchurch_backend/internal/churches/repository"
	"lightchurch_backend/internal/churches/transport"
	"lightchurch_backend/internal/events"
	"lightchurch_backend/internal/maps/resolver"
	"lightchurch_backend/platform/apperr"
	"lightchurch_backend/platform/httpkit"
	"lightchurch_backend/platform/logger"
	"lightchurch_backend/platform/phone"
	"lightchurch_backend/platform/sanitize"
	"lightchurch_backend/platform/validator"

	"github.com/google/uuid"
)

const msgInvalidAddress = "invalid address"

// Service provides business logic for church listings.
type Service struct {
	repo     repository.Store
	sessions AddressSessions
	eventBus events.Bus
	val      *validator.Validator
	log      *logger.Logger
	now      func() time.Time
}

// New creates a new churches service.
func New(repo repository.Store, sessions AddressSessions, eventBus events.Bus, val *validator.Validator, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		sessions: sessions,
		eventBus: eventBus,
		val:      val,
		log:      log,
		now:      time.Now,
	}
}

func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, req transport.CreateChurchRequest) (transport.ChurchResponse, error) {
	phoneNumber, err := normalizePhone(req.Phone)
	if err != nil {
		return transport.ChurchResponse{}, err
	}

	address, source, err := s.resolveAddress(req.Address, req.AddressSessionID)
	if err != nil {
		return transport.ChurchResponse{}, err
	}

	now := s.now()
	church := repository.Church{
		ID:            uuid.New(),
		OwnerID:       ownerID,
		Name:          sanitize.Text(req.Name),
		Description:   sanitize.TextPtr(req.Description),
		Phone:         phoneNumber,
		Email:         normalizeEmail(req.Email),
		Website:       trimOptional(req.Website),
		Address:       address,
		AddressSource: source,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	created, err := s.repo.Create(ctx, church)
	if err != nil {
		return transport.ChurchResponse{}, err
	}

	s.publishAddressChanged(ctx, created)
	s.log.WithContext(ctx).Info("church created", "church_id", created.ID, "address_source", source)
	return mapChurchResponse(created), nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.ChurchResponse, error) {
	church, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.ChurchResponse{}, err
	}
	return mapChurchResponse(church), nil
}

func (s *Service) List(ctx context.Context, req transport.ListChurchesRequest) (transport.ListChurchesResponse, error) {
	result, err := s.repo.List(ctx, repository.ListParams{
		City:     req.City,
		Search:   req.Search,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		return transport.ListChurchesResponse{}, err
	}

	items := make([]transport.ChurchResponse, 0, len(result.Items))
	for _, church := range result.Items {
		items = append(items, mapChurchResponse(church))
	}
	return transport.ListChurchesResponse{
		Items:      items,
		Total:      result.Total,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalPages: result.TotalPages,
	}, nil
}

// UpdateAddress replaces a listing's address. Only the owner or an admin may.
func (s *Service) UpdateAddress(ctx context.Context, identity httpkit.Identity, id uuid.UUID, req transport.UpdateAddressRequest) (transport.ChurchResponse, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.ChurchResponse{}, err
	}
	if !identity.CanManage(existing.OwnerID) {
		return transport.ChurchResponse{}, apperr.Forbidden("not allowed to manage this church")
	}

	address, source, err := s.resolveAddress(req.Address, req.AddressSessionID)
	if err != nil {
		return transport.ChurchResponse{}, err
	}

	updated, err := s.repo.UpdateAddress(ctx, id, address, source)
	if err != nil {
		return transport.ChurchResponse{}, err
	}

	s.publishAddressChanged(ctx, updated)
	return mapChurchResponse(updated), nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// resolveAddress takes the address from exactly one of the payload or an
// address session and validates it. Geocoder picks skip the street and
// postcode rules of manual entry. Failures on a session-backed address are
// also pushed into that session.
func (s *Service) resolveAddress(input *transport.AddressInput, sessionID *uuid.UUID) (repository.Address, string, error) {
	if (input == nil) == (sessionID == nil) {
		return repository.Address{}, "", apperr.Validation(msgInvalidAddress).WithDetails(map[string]string{
			"address": "provide exactly one of address or addressSessionId",
		})
	}

	var manual resolver.ManualAddress
	var fullAddress string
	source := events.AddressSourceManual

	if sessionID != nil {
		taken, err := s.sessions.TakeResolved(*sessionID)
		if err != nil {
			return repository.Address{}, "", sessionError(err)
		}
		manual = resolver.ManualFromResolved(taken.Address)
		fullAddress = strings.TrimSpace(taken.Address.FullAddress)
		source = taken.Source
	} else {
		manual = resolver.ManualAddress{
			StreetNumber: input.StreetNumber,
			StreetName:   input.StreetName,
			PostalCode:   input.PostalCode,
			City:         input.City,
			Latitude:     input.Latitude,
			Longitude:    input.Longitude,
		}
		fullAddress = strings.TrimSpace(input.FullAddress)
	}

	manual = manual.Normalize()
	validate := manual.Validate
	if source == events.AddressSourceProvider {
		validate = manual.ValidateProvided
	}
	if fields := validate(s.val); len(fields) > 0 {
		if sessionID != nil {
			if err := s.sessions.SetCallerError(*sessionID, callerMessage(fields)); err != nil {
				s.log.Warn("failed to push caller error into address session", "session_id", *sessionID, "error", err)
			}
		}
		return repository.Address{}, "", apperr.Validation(msgInvalidAddress).WithDetails(fields)
	}

	resolved := manual.Resolved()
	if fullAddress == "" {
		fullAddress = resolved.FullAddress
	}
	return repository.Address{
		StreetNumber: resolved.StreetNumber,
		StreetName:   resolved.StreetName,
		PostalCode:   resolved.PostalCode,
		City:         resolved.City,
		Latitude:     resolved.Latitude,
		Longitude:    resolved.Longitude,
		FullAddress:  fullAddress,
	}, source, nil
}

func (s *Service) publishAddressChanged(ctx context.Context, church repository.Church) {
	if s.eventBus == nil {
		return
	}
	s.eventBus.Publish(ctx, events.ChurchAddressChanged{
		BaseEvent:   events.NewBaseEvent(),
		ChurchID:    church.ID,
		Source:      church.AddressSource,
		FullAddress: church.Address.FullAddress,
		Latitude:    church.Address.Latitude,
		Longitude:   church.Address.Longitude,
	})
}

func sessionError(err error) error {
	switch {
	case errors.Is(err, ErrAddressSessionNotFound):
		return apperr.Validation(msgInvalidAddress).WithDetails(map[string]string{
			"addressSessionId": "address session not found or expired",
		})
	case errors.Is(err, ErrNoResolvedAddress):
		return apperr.Validation(msgInvalidAddress).WithDetails(map[string]string{
			"addressSessionId": "no address has been confirmed in this session",
		})
	default:
		return err
	}
}

// callerMessage joins field messages in a stable order.
func callerMessage(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	messages := make([]string, 0, len(keys))
	for _, k := range keys {
		messages = append(messages, fields[k])
	}
	return strings.Join(messages, "; ")
}

func normalizePhone(value *string) (*string, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	e164, ok := phone.NormalizeE164(*value)
	if !ok {
		return nil, apperr.Validation("invalid phone number").WithDetails(map[string]string{
			"phone": "must be a valid French phone number",
		})
	}
	return &e164, nil
}

func normalizeEmail(value *string) *string {
	if value == nil {
		return nil
	}
	email := strings.ToLower(strings.TrimSpace(*value))
	if email == "" {
		return nil
	}
	return &email
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func mapChurchResponse(c repository.Church) transport.ChurchResponse {
	return transport.ChurchResponse{
		ID:          c.ID,
		OwnerID:     c.OwnerID,
		Name:        c.Name,
		Description: c.Description,
		Phone:       c.Phone,
		Email:       c.Email,
		Website:     c.Website,
		Address: transport.AddressResponse{
			StreetNumber: c.Address.StreetNumber,
			StreetName:   c.Address.StreetName,
			PostalCode:   c.Address.PostalCode,
			City:         c.Address.City,
			Latitude:     c.Address.Latitude,
			Longitude:    c.Address.Longitude,
			FullAddress:  c.Address.FullAddress,
		},
		AddressSource:    c.AddressSource,
		GeocodeCheckedAt: c.GeocodeCheckedAt,
		GeocodeDriftM:    c.GeocodeDriftM,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}
