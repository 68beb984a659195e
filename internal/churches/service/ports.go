package service

import (
	"errors"

	"lightchurch_backend/internal/maps/resolver"

	"github.com/google/uuid"
)

var (
	ErrAddressSessionNotFound = errors.New("address session not found")
	ErrNoResolvedAddress      = errors.New("address session has no confirmed address")
)

// TakenAddress is an address handed over by an address session.
type TakenAddress struct {
	Address resolver.ResolvedAddress
	Source  string
}

// AddressSessions is the churches view of the address session registry.
type AddressSessions interface {
	// TakeResolved returns the confirmed address once; later calls fail
	// with ErrNoResolvedAddress.
	TakeResolved(id uuid.UUID) (TakenAddress, error)
	// SetCallerError shows message next to the session's address field.
	SetCallerError(id uuid.UUID, message string) error
}
