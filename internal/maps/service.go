package maps

import (
	"context"
	"errors"

	"lightchurch_backend/internal/geocoding"
	"lightchurch_backend/internal/maps/resolver"
	"lightchurch_backend/platform/apperr"
	"lightchurch_backend/platform/logger"

	"golang.org/x/sync/singleflight"
)

// Service answers one-shot lookups. Identical concurrent queries share one
// chain run; nothing is cached once it returns.
type Service struct {
	chain resolver.Lookuper
	group singleflight.Group
	log   *logger.Logger
}

func NewService(chain resolver.Lookuper, log *logger.Logger) *Service {
	return &Service{chain: chain, log: log}
}

func (s *Service) SearchAddress(ctx context.Context, query string) (LookupResponse, error) {
	normalized := geocoding.NormalizeQuery(query)
	if !geocoding.IsSearchable(normalized) {
		return LookupResponse{}, apperr.Validation("query must be at least 3 characters")
	}

	// The shared run outlives any single caller; the chain bounds it.
	ch := s.group.DoChan(normalized, func() (interface{}, error) {
		return s.chain.Lookup(context.WithoutCancel(ctx), normalized)
	})

	select {
	case <-ctx.Done():
		return LookupResponse{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			if errors.Is(res.Err, geocoding.ErrAllProvidersUnavailable) {
				s.log.Warn("address lookup degraded", "error", res.Err)
				return LookupResponse{}, apperr.Unavailable("address lookup service unavailable", res.Err)
			}
			return LookupResponse{}, res.Err
		}
		outcome := res.Val.(geocoding.Outcome)
		suggestions := outcome.Candidates
		if suggestions == nil {
			suggestions = []geocoding.Candidate{}
		}
		return LookupResponse{Provider: outcome.Provider, Suggestions: suggestions}, nil
	}
}
