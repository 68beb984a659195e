package adapters

import (
	"context"
	"testing"

	"lightchurch_backend/internal/churches/service"
	"lightchurch_backend/internal/geocoding"
	"lightchurch_backend/internal/maps"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emptyChain struct{}

func (emptyChain) Lookup(context.Context, string) (geocoding.Outcome, error) {
	return geocoding.Outcome{}, nil
}

func TestAddressSessionsAdapterTranslatesErrors(t *testing.T) {
	registry := maps.NewSessions(emptyChain{}, nil, maps.SessionOptions{})
	adapter := NewAddressSessionsAdapter(registry)

	_, err := adapter.TakeResolved(uuid.New())
	assert.ErrorIs(t, err, service.ErrAddressSessionNotFound)

	s := registry.Create("")
	t.Cleanup(func() { _ = registry.Delete(s.ID) })

	_, err = adapter.TakeResolved(s.ID)
	assert.ErrorIs(t, err, service.ErrNoResolvedAddress)

	require.NoError(t, adapter.SetCallerError(s.ID, "outside France"))
	assert.Equal(t, "outside France", s.Snapshot().CallerError)
	assert.ErrorIs(t, adapter.SetCallerError(uuid.New(), "x"), service.ErrAddressSessionNotFound)
}
