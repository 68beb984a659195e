package geocoding

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"lightchurch_backend/platform/logger"
)

// ProviderBAN is the name of the Base Adresse Nationale provider.
const ProviderBAN = "ban"

// ProviderOptions configures one HTTP provider.
type ProviderOptions struct {
	BaseURL   string
	UserAgent string
	Limit     int
	// CountryCodes is a comma-separated ISO 3166-1 list; BAN only covers France
	// and ignores it.
	CountryCodes string
	Client       *http.Client
	Throttle     Throttle
	Logger       *logger.Logger
}

func (o ProviderOptions) limit() int {
	if o.Limit <= 0 {
		return 5
	}
	return o.Limit
}

// BAN queries api-adresse.data.gouv.fr.
type BAN struct {
	baseURL string
	limit   int
	http    httpClient
}

func NewBAN(opts ProviderOptions) *BAN {
	return &BAN{
		baseURL: opts.BaseURL,
		limit:   opts.limit(),
		http:    newHTTPClient(opts.Client, opts.UserAgent, opts.Throttle, opts.Logger),
	}
}

func (p *BAN) Name() string { return ProviderBAN }

func (p *BAN) Search(ctx context.Context, query string) ([]Candidate, error) {
	params := url.Values{}
	params.Add("q", query)
	params.Add("limit", strconv.Itoa(p.limit))

	var payload banFeatureCollection
	if err := p.http.getJSON(ctx, ProviderBAN, fmt.Sprintf("%s?%s", p.baseURL, params.Encode()), &payload); err != nil {
		return nil, err
	}
	if payload.Type != "FeatureCollection" {
		return nil, p.http.malformed(ProviderBAN, "unexpected type %q", payload.Type)
	}

	candidates := make([]Candidate, 0, len(payload.Features))
	for i, feature := range payload.Features {
		candidate, err := feature.candidate()
		if err != nil {
			return nil, p.http.malformed(ProviderBAN, "feature %d: %v", i, err)
		}
		candidates = append(candidates, candidate)
	}

	p.http.succeeded(ProviderBAN, len(candidates))
	return candidates, nil
}

type banFeatureCollection struct {
	Type     string       `json:"type"`
	Features []banFeature `json:"features"`
}

type banFeature struct {
	Geometry struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
	Properties struct {
		Label       string `json:"label"`
		City        string `json:"city"`
		Postcode    string `json:"postcode"`
		Street      string `json:"street"`
		Name        string `json:"name"`
		HouseNumber string `json:"housenumber"`
	} `json:"properties"`
}

func (f banFeature) candidate() (Candidate, error) {
	coords := f.Geometry.Coordinates
	if len(coords) < 2 {
		return Candidate{}, fmt.Errorf("expected 2 coordinates, got %d", len(coords))
	}
	if !finite(coords[0]) || !finite(coords[1]) {
		return Candidate{}, fmt.Errorf("non-finite coordinates")
	}
	if f.Properties.Label == "" {
		return Candidate{}, fmt.Errorf("missing label")
	}

	street := f.Properties.Street
	if street == "" {
		street = f.Properties.Name
	}

	return Candidate{
		DisplayLabel: f.Properties.Label,
		City:         f.Properties.City,
		PostalCode:   f.Properties.Postcode,
		StreetName:   street,
		HouseNumber:  optional(f.Properties.HouseNumber),
		Coordinates:  Coordinates{Lon: coords[0], Lat: coords[1]},
	}, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
