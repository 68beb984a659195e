// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	GeocoderRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lightchurch_geocoder_requests_total",
		Help: "Geocoding provider requests issued",
	}, []string{"provider"})
	GeocoderSuccessesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lightchurch_geocoder_successes_total",
		Help: "Geocoding provider calls answered with a valid payload",
	}, []string{"provider"})
	GeocoderFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lightchurch_geocoder_failures_total",
		Help: "Geocoding provider failures by reason",
	}, []string{"provider", "reason"})
	GeocoderEmptyResultsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lightchurch_geocoder_empty_results_total",
		Help: "Successful provider answers with no candidate",
	}, []string{"provider"})
	GeocoderDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lightchurch_geocoder_duration_ms",
		Help:    "Provider call duration in milliseconds",
		Buckets: []float64{10, 25, 50, 100, 200, 500, 1000, 2500, 5000},
	}, []string{"provider"})
	ChainOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lightchurch_geocoder_chain_outcomes_total",
		Help: "Chain lookups by answering provider, or degraded",
	}, []string{"outcome"})
	AddressSessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lightchurch_address_sessions_active",
		Help: "Open address resolver sessions",
	})
	AddressResolvedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lightchurch_address_resolved_total",
		Help: "Resolved addresses emitted, by mode",
	}, []string{"mode"})
	GeocheckDriftMeters = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "lightchurch_geocheck_drift_meters",
		Help:    "Distance between stored and re-geocoded church coordinates",
		Buckets: []float64{10, 50, 100, 250, 500, 1000, 5000, 20000},
	})
)

func init() {
	prometheus.MustRegister(GeocoderRequestsTotal)
	prometheus.MustRegister(GeocoderSuccessesTotal)
	prometheus.MustRegister(GeocoderFailuresTotal)
	prometheus.MustRegister(GeocoderEmptyResultsTotal)
	prometheus.MustRegister(GeocoderDurationMs)
	prometheus.MustRegister(ChainOutcomesTotal)
	prometheus.MustRegister(AddressSessionsActive)
	prometheus.MustRegister(AddressResolvedTotal)
	prometheus.MustRegister(GeocheckDriftMeters)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler { return promhttp.Handler() }
