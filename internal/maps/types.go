package maps

import (
	"lightchurch_backend/internal/geocoding"
	"lightchurch_backend/internal/maps/resolver"

	"github.com/google/uuid"
)

// LookupRequest represents the query parameters of a one-shot lookup.
type LookupRequest struct {
	Query string `form:"q" binding:"required,min=3"`
}

// LookupResponse is the result of a one-shot lookup.
type LookupResponse struct {
	Provider    string                `json:"provider"`
	Suggestions []geocoding.Candidate `json:"suggestions"`
}

type CreateSessionRequest struct {
	Query string `json:"query" binding:"max=200"`
}

type SetQueryRequest struct {
	Query string `json:"query" binding:"max=200"`
}

type SelectRequest struct {
	Index *int `json:"index" binding:"required,min=0"`
}

type CallerErrorRequest struct {
	Message string `json:"message" binding:"max=500"`
}

// SessionResponse carries a session id with its current snapshot.
type SessionResponse struct {
	ID uuid.UUID `json:"id"`
	resolver.Snapshot
}

// ResolvedResponse is returned by select and manual submit.
type ResolvedResponse struct {
	Source  string                   `json:"source"`
	Address resolver.ResolvedAddress `json:"address"`
}
