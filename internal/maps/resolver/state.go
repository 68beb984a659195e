// Package resolver implements the address resolution state machine behind
// address form fields: debounced lookups through the geocoding chain,
// suggestion selection, and a manual entry mode for when providers fail.
package resolver

import (
	"errors"

	"lightchurch_backend/internal/geocoding"
)

// State is the resolver's single explicit state.
type State string

const (
	// StateIdle: query too short, or nothing pending.
	StateIdle State = "idle"
	// StateSearching: a debounced lookup is armed or in flight.
	StateSearching State = "searching"
	// StateSuggestionsShown: the latest lookup answered; the list may be empty.
	StateSuggestionsShown State = "suggestions_shown"
	// StateDegraded: both providers failed for the current query.
	StateDegraded State = "degraded"
	// StateManualEntry: the user types structured fields; no lookups.
	StateManualEntry State = "manual_entry"
)

// Automatic reports whether s belongs to automatic suggestion mode.
func (s State) Automatic() bool {
	return s != StateManualEntry
}

const degradedWarning = "Address search is unavailable right now. You can enter the address manually."

var (
	ErrManualEntryActive = errors.New("manual entry is active")
	ErrNotManualEntry    = errors.New("manual entry is not active")
	ErrNoSuggestions     = errors.New("no suggestions to select from")
	ErrInvalidSelection  = errors.New("suggestion index out of range")
	ErrClosed            = errors.New("resolver closed")
)

// Snapshot is a copy of the visible resolver state.
type Snapshot struct {
	State       State                 `json:"state"`
	Query       string                `json:"query"`
	Suggestions []geocoding.Candidate `json:"suggestions"`
	NoResults   bool                  `json:"noResults"`
	Warning     string                `json:"warning,omitempty"`
	CallerError string                `json:"callerError,omitempty"`
	Manual      *ManualAddress        `json:"manual,omitempty"`
	FieldErrors map[string]string     `json:"fieldErrors,omitempty"`
	Generation  uint64                `json:"generation"`
	Revision    uint64                `json:"revision"`
}

// Sequence orders snapshots on the event stream. Revision grows with every
// emitted change, Generation only with every new request.
func (s Snapshot) Sequence() uint64 { return s.Revision }
