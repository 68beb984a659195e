package adapters

import (
	"errors"

	"lightchurch_backend/internal/churches/service"
	"lightchurch_backend/internal/maps"

	"github.com/google/uuid"
)

// AddressSessionsAdapter lets the churches service take confirmed addresses
// from the maps session registry without importing it.
type AddressSessionsAdapter struct {
	sessions *maps.Sessions
}

func NewAddressSessionsAdapter(sessions *maps.Sessions) *AddressSessionsAdapter {
	return &AddressSessionsAdapter{sessions: sessions}
}

func (a *AddressSessionsAdapter) TakeResolved(id uuid.UUID) (service.TakenAddress, error) {
	resolved, err := a.sessions.TakeResolved(id)
	if err != nil {
		return service.TakenAddress{}, translateSessionError(err)
	}
	return service.TakenAddress{Address: resolved.Address, Source: resolved.Source}, nil
}

func (a *AddressSessionsAdapter) SetCallerError(id uuid.UUID, message string) error {
	return translateSessionError(a.sessions.SetCallerError(id, message))
}

func translateSessionError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, maps.ErrSessionNotFound):
		return service.ErrAddressSessionNotFound
	case errors.Is(err, maps.ErrNothingResolved):
		return service.ErrNoResolvedAddress
	default:
		return err
	}
}

var _ service.AddressSessions = (*AddressSessionsAdapter)(nil)
