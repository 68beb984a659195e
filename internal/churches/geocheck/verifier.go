// Package geocheck verifies stored church coordinates against the geocoders.
// Manually entered addresses are re-geocoded in the background and the
// distance to the provider's best candidate is recorded on the listing.
package geocheck

import (
	"context"
	"fmt"
	"time"

	"lightchurch_backend/internal/churches/repository"
	"lightchurch_backend/internal/events"
	"lightchurch_backend/internal/geocoding"
	"lightchurch_backend/internal/metrics"
	"lightchurch_backend/platform/logger"

	"github.com/google/uuid"
)

// DriftWarningMeters is the drift above which a check is logged as a warning.
const DriftWarningMeters = 1000

// Lookuper is the geocoding chain.
type Lookuper interface {
	Lookup(ctx context.Context, query string) (geocoding.Outcome, error)
}

// Result is one recorded check.
type Result struct {
	ChurchID    uuid.UUID
	Provider    string
	DriftMeters *float64
	CheckedAt   time.Time
}

type Verifier struct {
	store repository.GeocodeStore
	chain Lookuper
	log   *logger.Logger
	now   func() time.Time
}

func NewVerifier(store repository.GeocodeStore, chain Lookuper, log *logger.Logger) *Verifier {
	if log == nil {
		log = logger.Nop()
	}
	return &Verifier{store: store, chain: chain, log: log, now: time.Now}
}

// Verify loads a church and checks it.
func (v *Verifier) Verify(ctx context.Context, churchID uuid.UUID) (Result, error) {
	church, err := v.store.GetByID(ctx, churchID)
	if err != nil {
		return Result{}, err
	}
	return v.Check(ctx, church)
}

// Check re-geocodes the stored full address and records the drift between the
// stored coordinates and the first candidate. Provider failures are returned
// without recording anything so the check can be retried.
func (v *Verifier) Check(ctx context.Context, church repository.Church) (Result, error) {
	outcome, err := v.chain.Lookup(ctx, church.Address.FullAddress)
	if err != nil {
		return Result{}, fmt.Errorf("geocode church %s: %w", church.ID, err)
	}

	result := Result{ChurchID: church.ID, Provider: outcome.Provider, CheckedAt: v.now()}
	if len(outcome.Candidates) > 0 {
		best := outcome.Candidates[0].Coordinates
		drift := DistanceMeters(church.Address.Latitude, church.Address.Longitude, best.Lat, best.Lon)
		result.DriftMeters = &drift
		metrics.GeocheckDriftMeters.Observe(drift)
	}

	if err := v.store.RecordGeocodeCheck(ctx, church.ID, result.DriftMeters, result.CheckedAt); err != nil {
		return Result{}, fmt.Errorf("record geocode check: %w", err)
	}

	switch {
	case result.DriftMeters == nil:
		v.log.Info("geocode check found no candidate", "church_id", church.ID, "address", church.Address.FullAddress)
	case *result.DriftMeters > DriftWarningMeters:
		v.log.Warn("church coordinates drift from geocoded address",
			"church_id", church.ID,
			"drift_m", *result.DriftMeters,
			"provider", outcome.Provider,
		)
	default:
		v.log.Debug("church coordinates verified", "church_id", church.ID, "drift_m", *result.DriftMeters)
	}
	return result, nil
}

// Enqueuer schedules a background check.
type Enqueuer interface {
	EnqueueGeocodeVerify(ctx context.Context, churchID uuid.UUID) error
}

// Subscriber enqueues a check whenever a manual address is stored.
type Subscriber struct {
	enqueuer Enqueuer
	log      *logger.Logger
}

func NewSubscriber(enqueuer Enqueuer, log *logger.Logger) *Subscriber {
	if log == nil {
		log = logger.Nop()
	}
	return &Subscriber{enqueuer: enqueuer, log: log}
}

// Register subscribes to address changes on bus.
func (s *Subscriber) Register(bus events.Bus) {
	bus.Subscribe(events.ChurchAddressChanged{}.EventName(), s)
}

func (s *Subscriber) Handle(ctx context.Context, event events.Event) error {
	changed, ok := event.(events.ChurchAddressChanged)
	if !ok || changed.Source != events.AddressSourceManual {
		return nil
	}
	if err := s.enqueuer.EnqueueGeocodeVerify(ctx, changed.ChurchID); err != nil {
		return fmt.Errorf("enqueue geocode verify for %s: %w", changed.ChurchID, err)
	}
	s.log.Debug("geocode verify enqueued", "church_id", changed.ChurchID)
	return nil
}
