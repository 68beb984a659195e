// Package geocoding turns free-text address queries into candidate addresses
// using a primary provider with a secondary provider as fallback.
package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Failure reasons reported in metrics and ProviderError.
const (
	ReasonTransport = "transport"
	ReasonStatus    = "status"
	ReasonDecode    = "decode"
	ReasonTimeout   = "timeout"
	ReasonThrottled = "throttled"
)

var (
	// ErrProviderUnavailable is wrapped by every provider failure: transport
	// errors, non-2xx statuses, timeouts, throttling and malformed payloads.
	ErrProviderUnavailable = errors.New("geocoding provider unavailable")
	// ErrMalformedResponse marks payloads that do not match the provider schema.
	ErrMalformedResponse = errors.New("malformed geocoding response")
	// ErrAllProvidersUnavailable is returned when both providers failed.
	ErrAllProvidersUnavailable = errors.New("all geocoding providers unavailable")
)

// ProviderError describes one failed provider call.
type ProviderError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Reason, e.Err)
}

// Unwrap exposes both the sentinel and the cause to errors.Is / errors.As.
func (e *ProviderError) Unwrap() []error {
	return []error{ErrProviderUnavailable, e.Err}
}

// Coordinates is a (longitude, latitude) pair in provider order.
type Coordinates struct {
	Lon float64
	Lat float64
}

// MarshalJSON encodes the pair as [lon, lat] like GeoJSON.
func (c Coordinates) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{c.Lon, c.Lat})
}

// UnmarshalJSON decodes a [lon, lat] pair.
func (c *Coordinates) UnmarshalJSON(data []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	c.Lon, c.Lat = pair[0], pair[1]
	return nil
}

// Candidate is one provider suggestion, normalized to the same shape
// whichever provider answered. Candidates are never cached or stored.
type Candidate struct {
	DisplayLabel string      `json:"displayLabel"`
	City         string      `json:"city"`
	PostalCode   string      `json:"postalCode"`
	StreetName   string      `json:"streetName"`
	HouseNumber  *string     `json:"houseNumber,omitempty"`
	Coordinates  Coordinates `json:"coordinates"`
}

// Provider is a geocoding HTTP service queried by free text.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) ([]Candidate, error)
}

// Outcome is the answer of a chain lookup.
type Outcome struct {
	Provider   string
	Candidates []Candidate
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
