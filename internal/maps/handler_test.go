package maps

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"lightchurch_backend/internal/geocoding"
	apphttp "lightchurch_backend/internal/http"
	"lightchurch_backend/internal/maps/resolver"
	"lightchurch_backend/platform/logger"
	"lightchurch_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

var paix = geocoding.Candidate{
	DisplayLabel: "10 Rue de la Paix, 75002 Paris",
	City:         "Paris",
	PostalCode:   "75002",
	StreetName:   "Rue de la Paix",
	HouseNumber:  strPtr("10"),
	Coordinates:  geocoding.Coordinates{Lon: 2.3522, Lat: 48.8566},
}

type stubChain struct {
	calls   atomic.Int32
	gate    chan struct{}
	err     error
	results []geocoding.Candidate
}

func (s *stubChain) Lookup(ctx context.Context, _ string) (geocoding.Outcome, error) {
	s.calls.Add(1)
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return geocoding.Outcome{}, ctx.Err()
		}
	}
	if s.err != nil {
		return geocoding.Outcome{}, s.err
	}
	return geocoding.Outcome{Provider: geocoding.ProviderBAN, Candidates: s.results}, nil
}

func newTestModule(t *testing.T, chain resolver.Lookuper) (*gin.Engine, *Module) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m := NewModule(chain, SessionOptions{Debounce: 10 * time.Millisecond}, validator.New(), logger.Nop())
	engine := gin.New()
	v1 := engine.Group("/api/v1")
	m.RegisterRoutes(&apphttp.RouterContext{Engine: engine, V1: v1, Protected: v1.Group("")})
	t.Cleanup(m.sessions.closeAll)
	return engine, m
}

func do(t *testing.T, engine *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestLookupAddress(t *testing.T) {
	engine, _ := newTestModule(t, &stubChain{results: []geocoding.Candidate{paix}})

	rec := do(t, engine, http.MethodGet, "/api/v1/maps/address-lookup?q=10+rue+de+la+paix", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[LookupResponse](t, rec)
	assert.Equal(t, geocoding.ProviderBAN, resp.Provider)
	require.Len(t, resp.Suggestions, 1)
	assert.Equal(t, paix.Coordinates, resp.Suggestions[0].Coordinates)
	assert.Contains(t, rec.Body.String(), `"coordinates":[2.3522,48.8566]`)
}

func TestLookupAddressValidation(t *testing.T) {
	engine, _ := newTestModule(t, &stubChain{})

	rec := do(t, engine, http.MethodGet, "/api/v1/maps/address-lookup?q=ab", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLookupAddressDegraded(t *testing.T) {
	engine, _ := newTestModule(t, &stubChain{err: geocoding.ErrAllProvidersUnavailable})

	rec := do(t, engine, http.MethodGet, "/api/v1/maps/address-lookup?q=rue+de+rivoli", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestLookupSharesInFlightChain(t *testing.T) {
	chain := &stubChain{gate: make(chan struct{}), results: []geocoding.Candidate{paix}}
	svc := NewService(chain, logger.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := svc.SearchAddress(context.Background(), "10  rue de la paix")
			assert.NoError(t, err)
			assert.Len(t, out.Suggestions, 1)
		}()
	}

	require.Eventually(t, func() bool { return chain.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(chain.gate)
	wg.Wait()

	assert.EqualValues(t, 1, chain.calls.Load())
}

func TestSessionSelectFlow(t *testing.T) {
	engine, m := newTestModule(t, &stubChain{results: []geocoding.Candidate{paix}})

	rec := do(t, engine, http.MethodPost, "/api/v1/maps/sessions", CreateSessionRequest{Query: "10 Rue"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[SessionResponse](t, rec)
	assert.Equal(t, resolver.StateIdle, created.State)
	assert.Equal(t, "10 Rue", created.Query)
	base := "/api/v1/maps/sessions/" + created.ID.String()

	rec = do(t, engine, http.MethodPut, base+"/query", SetQueryRequest{Query: "10 Rue de la Paix"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, resolver.StateSearching, decode[SessionResponse](t, rec).State)

	require.Eventually(t, func() bool {
		rec := do(t, engine, http.MethodGet, base, nil)
		return decode[SessionResponse](t, rec).State == resolver.StateSuggestionsShown
	}, time.Second, 5*time.Millisecond)

	rec = do(t, engine, http.MethodPost, base+"/select", map[string]int{"index": 0})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ResolvedResponse](t, rec)
	assert.Equal(t, sourceProvider, resp.Source)
	assert.Equal(t, 48.8566, resp.Address.Latitude)

	taken, err := m.Sessions().TakeResolved(created.ID)
	require.NoError(t, err)
	assert.Equal(t, sourceProvider, taken.Source)
	assert.Equal(t, "10 Rue de la Paix, 75002 Paris", taken.Address.FullAddress)

	_, err = m.Sessions().TakeResolved(created.ID)
	assert.ErrorIs(t, err, ErrNothingResolved)

	rec = do(t, engine, http.MethodPost, base+"/select", map[string]int{"index": 0})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSessionManualFlow(t *testing.T) {
	engine, m := newTestModule(t, &stubChain{})

	created := decode[SessionResponse](t, do(t, engine, http.MethodPost, "/api/v1/maps/sessions", nil))
	base := "/api/v1/maps/sessions/" + created.ID.String()

	rec := do(t, engine, http.MethodPost, base+"/manual/submit", map[string]interface{}{"streetName": "x"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, engine, http.MethodPost, base+"/manual", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, resolver.StateManualEntry, decode[SessionResponse](t, rec).State)

	rec = do(t, engine, http.MethodPut, base+"/query", SetQueryRequest{Query: "rue"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, engine, http.MethodPost, base+"/manual/submit", map[string]interface{}{
		"streetName": "Rue du Moulin", "postalCode": "1234", "city": "Paris", "latitude": 48.8, "longitude": 2.3,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[struct {
		Details map[string]string `json:"details"`
	}](t, rec)
	assert.Contains(t, body.Details, "postalCode")

	rec = do(t, engine, http.MethodPost, base+"/manual/submit", map[string]interface{}{
		"streetNumber": "3", "streetName": "Rue du Moulin", "postalCode": "75001", "city": "Paris", "latitude": 90, "longitude": 2.3,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ResolvedResponse](t, rec)
	assert.Equal(t, sourceManual, resp.Source)
	assert.Equal(t, "3 Rue du Moulin, 75001 Paris", resp.Address.FullAddress)

	taken, err := m.Sessions().TakeResolved(created.ID)
	require.NoError(t, err)
	assert.Equal(t, sourceManual, taken.Source)

	rec = do(t, engine, http.MethodDelete, base+"/manual", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[SessionResponse](t, rec)
	assert.Equal(t, resolver.StateIdle, snap.State)
	assert.Nil(t, snap.Manual)
}

func TestSessionCallerErrorAndDelete(t *testing.T) {
	engine, m := newTestModule(t, &stubChain{})

	created := decode[SessionResponse](t, do(t, engine, http.MethodPost, "/api/v1/maps/sessions", nil))
	base := "/api/v1/maps/sessions/" + created.ID.String()

	require.NoError(t, m.Sessions().SetCallerError(created.ID, "Address already registered"))
	snap := decode[SessionResponse](t, do(t, engine, http.MethodGet, base, nil))
	assert.Equal(t, "Address already registered", snap.CallerError)
	assert.Equal(t, resolver.StateIdle, snap.State)

	rec := do(t, engine, http.MethodPut, base+"/caller-error", CallerErrorRequest{})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[SessionResponse](t, rec).CallerError)

	rec = do(t, engine, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, http.StatusNotFound, do(t, engine, http.MethodGet, base, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, engine, http.MethodDelete, base, nil).Code)
}

func TestSessionBadIDs(t *testing.T) {
	engine, _ := newTestModule(t, &stubChain{})

	assert.Equal(t, http.StatusBadRequest, do(t, engine, http.MethodGet, "/api/v1/maps/sessions/not-a-uuid", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, engine, http.MethodGet, "/api/v1/maps/sessions/"+uuid.NewString(), nil).Code)
}

func TestSessionsExpireAfterTTL(t *testing.T) {
	sessions := NewSessions(&stubChain{}, nil, SessionOptions{TTL: time.Minute})
	now := time.Unix(1_700_000_000, 0)
	sessions.now = func() time.Time { return now }

	stale := sessions.Create("")
	now = now.Add(45 * time.Second)
	fresh := sessions.Create("")
	now = now.Add(30 * time.Second)

	assert.Equal(t, 1, sessions.Sweep())
	_, err := sessions.Get(stale.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = sessions.Get(fresh.ID)
	assert.NoError(t, err)
	assert.ErrorIs(t, stale.SetQuery("rue de la paix"), resolver.ErrClosed)
}

func TestSessionsRunClosesOnShutdown(t *testing.T) {
	sessions := NewSessions(&stubChain{}, nil, SessionOptions{TTL: time.Hour})
	sessions.Create("")
	sessions.Create("")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sessions.Run(ctx) }()
	cancel()

	require.NoError(t, <-done)
	assert.Equal(t, 0, sessions.Len())
}
