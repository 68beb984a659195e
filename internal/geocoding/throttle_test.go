package geocoding

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisThrottle(t *testing.T, limits map[string]int) (*RedisThrottle, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	th := NewRedisThrottle(client, limits)
	fixed := time.Unix(1_700_000_000, 0)
	th.now = func() time.Time { return fixed }
	return th, mr
}

func TestRedisThrottleFixedWindow(t *testing.T) {
	th, mr := newRedisThrottle(t, map[string]int{ProviderNominatim: 2})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := th.Allow(ctx, ProviderNominatim)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := th.Allow(ctx, ProviderNominatim)
	require.NoError(t, err)
	assert.False(t, ok)

	key := "geocoder:throttle:nominatim:1700000000"
	assert.True(t, mr.Exists(key))
	assert.Equal(t, 2*time.Second, mr.TTL(key))

	th.now = func() time.Time { return time.Unix(1_700_000_001, 0) }
	ok, err = th.Allow(ctx, ProviderNominatim)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisThrottleUnlimitedProvider(t *testing.T) {
	th, mr := newRedisThrottle(t, map[string]int{ProviderNominatim: 1})

	ok, err := th.Allow(context.Background(), ProviderBAN)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, mr.Keys())
}

func TestRedisThrottleErrorFailsOpen(t *testing.T) {
	th, mr := newRedisThrottle(t, map[string]int{ProviderBAN: 1})
	mr.Close()

	srv := serve(t, http.StatusOK, banPaixPayload, nil)
	p := NewBAN(ProviderOptions{BaseURL: srv.URL, Throttle: th})

	candidates, err := p.Search(context.Background(), "10 rue de la paix")
	require.NoError(t, err)
	assert.Len(t, candidates, 1)
}

func TestPrimaryThrottleRefusalFallsThrough(t *testing.T) {
	th, _ := newRedisThrottle(t, map[string]int{ProviderBAN: 1})
	ctx := context.Background()

	ok, err := th.Allow(ctx, ProviderBAN)
	require.NoError(t, err)
	require.True(t, ok)

	primarySrv := serve(t, http.StatusOK, banPaixPayload, nil)
	secondarySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"display_name":"Rue de la Paix, Paris","lat":"48.8566","lon":"2.3522","address":{"road":"Rue de la Paix","city":"Paris","postcode":"75002"}}]`))
	}))
	t.Cleanup(secondarySrv.Close)

	chain := NewChain(
		NewBAN(ProviderOptions{BaseURL: primarySrv.URL, Throttle: th}),
		NewNominatim(ProviderOptions{BaseURL: secondarySrv.URL, Throttle: th}),
		time.Second, nil,
	)

	out, err := chain.Lookup(ctx, "10 rue de la paix")
	require.NoError(t, err)
	assert.Equal(t, ProviderNominatim, out.Provider)
	require.Len(t, out.Candidates, 1)
	assert.Equal(t, Coordinates{Lon: 2.3522, Lat: 48.8566}, out.Candidates[0].Coordinates)
}
