package geocoding

import (
	"net/http"

	"lightchurch_backend/platform/config"
	"lightchurch_backend/platform/logger"

	"github.com/redis/go-redis/v9"
)

// banRatePerSecond is the public BAN allowance per client IP.
const banRatePerSecond = 50

// ProviderLimits returns the per-second call allowance of each provider.
func ProviderLimits(cfg config.GeocodingConfig) map[string]int {
	return map[string]int{
		ProviderBAN:       banRatePerSecond,
		ProviderNominatim: cfg.GetGeocoderRatePerSecond(),
	}
}

// NewThrottle shares the provider allowance through Redis when a client is
// available and falls back to a per-process limiter otherwise.
func NewThrottle(client *redis.Client, cfg config.GeocodingConfig) Throttle {
	if client == nil {
		return NewLocalThrottle(ProviderLimits(cfg))
	}
	return NewRedisThrottle(client, ProviderLimits(cfg))
}

// NewChainFromConfig builds the BAN then Nominatim chain.
func NewChainFromConfig(cfg config.GeocodingConfig, throttle Throttle, log *logger.Logger) *Chain {
	client := &http.Client{Timeout: cfg.GetGeocoderTimeout()}
	opts := ProviderOptions{
		UserAgent:    cfg.GetGeocoderUserAgent(),
		Limit:        cfg.GetGeocoderResultLimit(),
		CountryCodes: cfg.GetGeocoderCountryCodes(),
		Client:       client,
		Throttle:     throttle,
		Logger:       log,
	}

	primary := opts
	primary.BaseURL = cfg.GetPrimaryGeocoderURL()
	secondary := opts
	secondary.BaseURL = cfg.GetSecondaryGeocoderURL()

	return NewChain(NewBAN(primary), NewNominatim(secondary), cfg.GetGeocoderTimeout(), log)
}
