package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"lightchurch_backend/internal/metrics"
	"lightchurch_backend/platform/logger"
)

// maxResponseBytes bounds provider payloads; five candidates fit well below.
const maxResponseBytes = 1 << 20

// httpClient is the transport shared by the providers: throttle check,
// request, status check and JSON decode, with metrics for each step.
type httpClient struct {
	client    *http.Client
	userAgent string
	throttle  Throttle
	log       *logger.Logger
}

func newHTTPClient(client *http.Client, userAgent string, throttle Throttle, log *logger.Logger) httpClient {
	if client == nil {
		client = &http.Client{}
	}
	if throttle == nil {
		throttle = noThrottle{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return httpClient{client: client, userAgent: userAgent, throttle: throttle, log: log}
}

func (h httpClient) getJSON(ctx context.Context, provider, reqURL string, dst interface{}) error {
	allowed, err := h.throttle.Allow(ctx, provider)
	if err != nil {
		h.log.Warn("geocoder throttle check failed, allowing call", "provider", provider, "error", err)
		allowed = true
	}
	if !allowed {
		return h.fail(provider, ReasonThrottled, errors.New("rate limit reached"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return h.fail(provider, ReasonTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	if h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}

	metrics.GeocoderRequestsTotal.WithLabelValues(provider).Inc()
	start := time.Now()
	defer func() {
		metrics.GeocoderDurationMs.WithLabelValues(provider).Observe(float64(time.Since(start).Milliseconds()))
	}()

	resp, err := h.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return h.fail(provider, ReasonTimeout, err)
		}
		return h.fail(provider, ReasonTransport, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return h.fail(provider, ReasonStatus, fmt.Errorf("upstream status %d", resp.StatusCode))
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(dst); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return h.fail(provider, ReasonTimeout, err)
		}
		return h.fail(provider, ReasonDecode, fmt.Errorf("%w: %v", ErrMalformedResponse, err))
	}

	return nil
}

func (h httpClient) fail(provider, reason string, err error) error {
	metrics.GeocoderFailuresTotal.WithLabelValues(provider, reason).Inc()
	return &ProviderError{Provider: provider, Reason: reason, Err: err}
}

func (h httpClient) malformed(provider string, format string, args ...interface{}) error {
	return h.fail(provider, ReasonDecode, fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...)))
}

func (h httpClient) succeeded(provider string, count int) {
	metrics.GeocoderSuccessesTotal.WithLabelValues(provider).Inc()
	if count == 0 {
		metrics.GeocoderEmptyResultsTotal.WithLabelValues(provider).Inc()
	}
}
