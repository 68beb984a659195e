// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"lightchurch_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// Address sources recorded with a church listing.
const (
	AddressSourceProvider = "provider"
	AddressSourceManual   = "manual"
)

// ChurchAddressChanged is published when a listing is created or its
// address replaced.
type ChurchAddressChanged struct {
	BaseEvent
	ChurchID    uuid.UUID `json:"churchId"`
	Source      string    `json:"source"`
	FullAddress string    `json:"fullAddress"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
}

func (e ChurchAddressChanged) EventName() string { return "churches.address.changed" }
