package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"lightchurch_backend/internal/geocoding"
	"lightchurch_backend/platform/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDebounce = 20 * time.Millisecond

type fakeLookup struct {
	mu      sync.Mutex
	queries []string
	respond func(ctx context.Context, query string) (geocoding.Outcome, error)
}

func (f *fakeLookup) Lookup(ctx context.Context, query string) (geocoding.Outcome, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	respond := f.respond
	f.mu.Unlock()
	if respond == nil {
		return geocoding.Outcome{Provider: "fake"}, nil
	}
	return respond(ctx, query)
}

func (f *fakeLookup) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

type recorder struct {
	mu       sync.Mutex
	resolved []ResolvedAddress
}

func (r *recorder) onResolved(a ResolvedAddress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolved = append(r.resolved, a)
}

func (r *recorder) all() []ResolvedAddress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ResolvedAddress(nil), r.resolved...)
}

func newTestResolver(t *testing.T, chain Lookuper) (*Resolver, *recorder) {
	t.Helper()
	rec := &recorder{}
	r := New(chain, Options{Debounce: testDebounce, OnResolved: rec.onResolved})
	t.Cleanup(r.Close)
	return r, rec
}

func waitState(t *testing.T, r *Resolver, want State) Snapshot {
	t.Helper()
	require.Eventually(t, func() bool { return r.Snapshot().State == want }, time.Second, 5*time.Millisecond)
	return r.Snapshot()
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

var paix = geocoding.Candidate{
	DisplayLabel: "10 Rue de la Paix, 75002 Paris",
	City:         "Paris",
	PostalCode:   "75002",
	StreetName:   "Rue de la Paix",
	HouseNumber:  strPtr("10"),
	Coordinates:  geocoding.Coordinates{Lon: 2.3522, Lat: 48.8566},
}

func TestShortQueriesStayIdleWithoutLookup(t *testing.T) {
	chain := &fakeLookup{}
	r, _ := newTestResolver(t, chain)

	for _, q := range []string{"", "a", "ab", "  ab  ", "é"} {
		require.NoError(t, r.SetQuery(q))
		assert.Equal(t, StateIdle, r.Snapshot().State, q)
	}

	time.Sleep(4 * testDebounce)
	assert.Empty(t, chain.calls())
	assert.Equal(t, StateIdle, r.Snapshot().State)
}

func TestBurstTriggersSingleLookupForFinalQuery(t *testing.T) {
	chain := &fakeLookup{}
	r, _ := newTestResolver(t, chain)

	for _, q := range []string{"10 R", "10 Ru", "10 Rue"} {
		require.NoError(t, r.SetQuery(q))
		assert.Equal(t, StateSearching, r.Snapshot().State)
	}

	waitState(t, r, StateSuggestionsShown)
	time.Sleep(2 * testDebounce)
	assert.Equal(t, []string{"10 Rue"}, chain.calls())
}

func TestEmptyResultShowsNoResults(t *testing.T) {
	r, _ := newTestResolver(t, &fakeLookup{})

	require.NoError(t, r.SetQuery("zzzz"))
	snap := waitState(t, r, StateSuggestionsShown)

	assert.True(t, snap.NoResults)
	assert.Empty(t, snap.Suggestions)
	assert.Empty(t, snap.Warning)
}

func TestDegradedAndRecovery(t *testing.T) {
	chain := &fakeLookup{respond: func(context.Context, string) (geocoding.Outcome, error) {
		return geocoding.Outcome{}, geocoding.ErrAllProvidersUnavailable
	}}
	r, rec := newTestResolver(t, chain)

	require.NoError(t, r.SetQuery("rue de rivoli"))
	snap := waitState(t, r, StateDegraded)
	assert.NotEmpty(t, snap.Warning)
	assert.Empty(t, rec.all())

	_, err := r.Select(0)
	assert.ErrorIs(t, err, ErrNoSuggestions)

	chain.mu.Lock()
	chain.respond = nil
	chain.mu.Unlock()

	require.NoError(t, r.SetQuery("rue de rivoli paris"))
	assert.Empty(t, r.Snapshot().Warning)
	waitState(t, r, StateSuggestionsShown)
}

func TestSelectEmitsReorderedAddressOnce(t *testing.T) {
	other := paix
	other.DisplayLabel = "Rue de la Paix, Lille"
	other.HouseNumber = nil
	chain := &fakeLookup{respond: func(context.Context, string) (geocoding.Outcome, error) {
		return geocoding.Outcome{Provider: "fake", Candidates: []geocoding.Candidate{other, paix}}, nil
	}}
	r, rec := newTestResolver(t, chain)

	require.NoError(t, r.SetQuery("rue de la paix"))
	waitState(t, r, StateSuggestionsShown)

	_, err := r.Select(2)
	require.ErrorIs(t, err, ErrInvalidSelection)

	got, err := r.Select(1)
	require.NoError(t, err)
	assert.Equal(t, 48.8566, got.Latitude)
	assert.Equal(t, 2.3522, got.Longitude)
	assert.Equal(t, "10", got.StreetNumber)

	snap := r.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Empty(t, snap.Suggestions)
	assert.Equal(t, paix.DisplayLabel, snap.Query)

	_, err = r.Select(0)
	assert.ErrorIs(t, err, ErrNoSuggestions)

	time.Sleep(4 * testDebounce)
	assert.Len(t, rec.all(), 1)
	assert.Len(t, chain.calls(), 1, "selecting must not start a lookup")
}

func TestStaleLookupIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	slowStarted := make(chan struct{})
	chain := &fakeLookup{respond: func(_ context.Context, q string) (geocoding.Outcome, error) {
		if q == "rue lente" {
			close(slowStarted)
			<-release
			stale := paix
			stale.DisplayLabel = "stale"
			return geocoding.Outcome{Candidates: []geocoding.Candidate{stale}}, nil
		}
		return geocoding.Outcome{Candidates: []geocoding.Candidate{paix}}, nil
	}}
	r, _ := newTestResolver(t, chain)

	require.NoError(t, r.SetQuery("rue lente"))
	<-slowStarted

	require.NoError(t, r.SetQuery("rue rapide"))
	waitState(t, r, StateSuggestionsShown)
	close(release)

	time.Sleep(4 * testDebounce)
	snap := r.Snapshot()
	require.Len(t, snap.Suggestions, 1)
	assert.Equal(t, paix.DisplayLabel, snap.Suggestions[0].DisplayLabel)
	assert.Equal(t, "rue rapide", snap.Query)
}

func TestManualEntryLifecycle(t *testing.T) {
	chain := &fakeLookup{}
	r, rec := newTestResolver(t, chain)

	require.NoError(t, r.SetQuery("rue du moulin"))
	require.NoError(t, r.EnterManual())
	assert.Equal(t, StateManualEntry, r.Snapshot().State)

	assert.ErrorIs(t, r.SetQuery("something else"), ErrManualEntryActive)

	time.Sleep(4 * testDebounce)
	assert.Empty(t, chain.calls(), "entering manual entry cancels the pending lookup")

	require.NoError(t, r.ExitManual())
	snap := r.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Nil(t, snap.Manual)
	assert.ErrorIs(t, r.ExitManual(), ErrNotManualEntry)

	_, err := r.SubmitManual(ManualAddress{})
	assert.ErrorIs(t, err, ErrNotManualEntry)
	assert.Empty(t, rec.all())
}

func validManual() ManualAddress {
	return ManualAddress{
		StreetNumber: "3",
		StreetName:   "Rue du Moulin",
		PostalCode:   "75001",
		City:         "Paris",
		Latitude:     floatPtr(48.86),
		Longitude:    floatPtr(2.34),
	}
}

func TestManualPostalCode(t *testing.T) {
	r, rec := newTestResolver(t, &fakeLookup{})
	require.NoError(t, r.EnterManual())

	bad := validManual()
	bad.PostalCode = "1234"
	_, err := r.SubmitManual(bad)
	require.Error(t, err)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Contains(t, appErr.Details, "postalCode")
	assert.Contains(t, r.Snapshot().FieldErrors, "postalCode")
	assert.Empty(t, rec.all())

	got, err := r.SubmitManual(validManual())
	require.NoError(t, err)
	assert.Equal(t, "3 Rue du Moulin, 75001 Paris", got.FullAddress)
	assert.Empty(t, r.Snapshot().FieldErrors)
	assert.Equal(t, StateManualEntry, r.Snapshot().State)
	assert.Len(t, rec.all(), 1)
}

func TestManualLatitudeBoundary(t *testing.T) {
	r, _ := newTestResolver(t, &fakeLookup{})
	require.NoError(t, r.EnterManual())

	over := validManual()
	over.Latitude = floatPtr(91)
	_, err := r.SubmitManual(over)
	require.Error(t, err)
	assert.Contains(t, r.Snapshot().FieldErrors, "latitude")

	edge := validManual()
	edge.Latitude = floatPtr(90)
	edge.Longitude = floatPtr(-180)
	got, err := r.SubmitManual(edge)
	require.NoError(t, err)
	assert.Equal(t, 90.0, got.Latitude)
	assert.Equal(t, -180.0, got.Longitude)
}

func TestManualReportsEveryFieldError(t *testing.T) {
	r, _ := newTestResolver(t, &fakeLookup{})
	require.NoError(t, r.EnterManual())

	_, err := r.SubmitManual(ManualAddress{
		StreetName: "   ",
		PostalCode: "7500A",
		Longitude:  floatPtr(181),
	})
	require.Error(t, err)

	fields := r.Snapshot().FieldErrors
	for _, f := range []string{"streetName", "city", "postalCode", "latitude", "longitude"} {
		assert.Contains(t, fields, f)
	}
}

func TestCallerErrorDoesNotChangeState(t *testing.T) {
	r, _ := newTestResolver(t, &fakeLookup{})
	require.NoError(t, r.SetQuery("rue de la paix"))
	waitState(t, r, StateSuggestionsShown)

	r.SetCallerError("Address is outside the diocese")
	snap := r.Snapshot()
	assert.Equal(t, StateSuggestionsShown, snap.State)
	assert.Equal(t, "Address is outside the diocese", snap.CallerError)
}

func TestInitialQueryDoesNotSearch(t *testing.T) {
	chain := &fakeLookup{}
	r := New(chain, Options{Debounce: testDebounce, InitialQuery: "10 Rue de la Paix"})
	t.Cleanup(r.Close)

	time.Sleep(4 * testDebounce)
	assert.Equal(t, "10 Rue de la Paix", r.Snapshot().Query)
	assert.Equal(t, StateIdle, r.Snapshot().State)
	assert.Empty(t, chain.calls())
}

func TestCloseDiscardsPendingWork(t *testing.T) {
	chain := &fakeLookup{}
	var changes int
	var mu sync.Mutex
	r := New(chain, Options{Debounce: testDebounce, OnChange: func(Snapshot) {
		mu.Lock()
		changes++
		mu.Unlock()
	}})

	require.NoError(t, r.SetQuery("rue de la paix"))
	r.Close()
	r.Close()

	time.Sleep(4 * testDebounce)
	assert.Empty(t, chain.calls())
	assert.ErrorIs(t, r.SetQuery("rue"), ErrClosed)
	mu.Lock()
	assert.Equal(t, 1, changes)
	mu.Unlock()
}

func TestEndToEndRueDeLaPaix(t *testing.T) {
	ban := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10 Rue de la Paix", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[{
			"geometry":{"type":"Point","coordinates":[2.3522,48.8566]},
			"properties":{"label":"10 Rue de la Paix, 75002 Paris","housenumber":"10",
				"street":"Rue de la Paix","postcode":"75002","city":"Paris"}}]}`))
	}))
	t.Cleanup(ban.Close)
	secondary := &fakeLookupProvider{}

	chain := geocoding.NewChain(geocoding.NewBAN(geocoding.ProviderOptions{BaseURL: ban.URL}), secondary, time.Second, nil)
	r, rec := newTestResolver(t, chain)

	require.NoError(t, r.SetQuery("10 Rue de la Paix"))
	waitState(t, r, StateSuggestionsShown)

	_, err := r.Select(0)
	require.NoError(t, err)

	require.Len(t, rec.all(), 1)
	assert.Equal(t, ResolvedAddress{
		StreetNumber: "10",
		StreetName:   "Rue de la Paix",
		PostalCode:   "75002",
		City:         "Paris",
		Latitude:     48.8566,
		Longitude:    2.3522,
		FullAddress:  "10 Rue de la Paix, 75002 Paris",
	}, rec.all()[0])
	assert.False(t, secondary.called)
}

type fakeLookupProvider struct{ called bool }

func (p *fakeLookupProvider) Name() string { return "secondary" }

func (p *fakeLookupProvider) Search(context.Context, string) ([]geocoding.Candidate, error) {
	p.called = true
	return nil, nil
}

func TestRevisionGrowsWithEveryEmittedChange(t *testing.T) {
	var mu sync.Mutex
	var revisions []uint64
	r := New(&fakeLookup{}, Options{
		Debounce: testDebounce,
		OnChange: func(s Snapshot) {
			mu.Lock()
			revisions = append(revisions, s.Sequence())
			mu.Unlock()
		},
	})
	t.Cleanup(r.Close)

	require.NoError(t, r.SetQuery("10 Rue"))
	waitState(t, r, StateSuggestionsShown)
	gen := r.Snapshot().Generation
	r.SetCallerError("already listed")

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []uint64{1, 2, 3}, revisions)
	snap := r.Snapshot()
	assert.Equal(t, uint64(3), snap.Revision)
	assert.Equal(t, gen, snap.Generation)
}
