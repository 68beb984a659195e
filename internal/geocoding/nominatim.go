package geocoding

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// ProviderNominatim is the name of the OpenStreetMap Nominatim provider.
const ProviderNominatim = "nominatim"

// Nominatim queries an OSM Nominatim search endpoint.
type Nominatim struct {
	baseURL      string
	limit        int
	countryCodes string
	http         httpClient
}

func NewNominatim(opts ProviderOptions) *Nominatim {
	return &Nominatim{
		baseURL:      opts.BaseURL,
		limit:        opts.limit(),
		countryCodes: opts.CountryCodes,
		http:         newHTTPClient(opts.Client, opts.UserAgent, opts.Throttle, opts.Logger),
	}
}

func (p *Nominatim) Name() string { return ProviderNominatim }

func (p *Nominatim) Search(ctx context.Context, query string) ([]Candidate, error) {
	params := url.Values{}
	params.Add("q", query)
	params.Add("format", "json")
	params.Add("addressdetails", "1")
	params.Add("limit", strconv.Itoa(p.limit))
	if p.countryCodes != "" {
		params.Add("countrycodes", p.countryCodes)
	}

	var rawResults []nominatimResult
	if err := p.http.getJSON(ctx, ProviderNominatim, fmt.Sprintf("%s?%s", p.baseURL, params.Encode()), &rawResults); err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(rawResults))
	for i, raw := range rawResults {
		candidate, err := raw.candidate()
		if err != nil {
			return nil, p.http.malformed(ProviderNominatim, "result %d: %v", i, err)
		}
		candidates = append(candidates, candidate)
	}

	p.http.succeeded(ProviderNominatim, len(candidates))
	return candidates, nil
}

type nominatimAddress struct {
	Road        string `json:"road"`
	HouseNumber string `json:"house_number"`
	Postcode    string `json:"postcode"`
	City        string `json:"city"`
	Town        string `json:"town"`
	Village     string `json:"village"`
}

// nominatimResult mirrors the relevant parts of the OSM search payload.
type nominatimResult struct {
	DisplayName string           `json:"display_name"`
	Lat         string           `json:"lat"`
	Lon         string           `json:"lon"`
	Address     nominatimAddress `json:"address"`
}

func (r nominatimResult) candidate() (Candidate, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil || !finite(lat) {
		return Candidate{}, fmt.Errorf("invalid lat %q", r.Lat)
	}
	lon, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil || !finite(lon) {
		return Candidate{}, fmt.Errorf("invalid lon %q", r.Lon)
	}
	if r.DisplayName == "" {
		return Candidate{}, fmt.Errorf("missing display_name")
	}

	return Candidate{
		DisplayLabel: r.DisplayName,
		City:         pickCity(r.Address),
		PostalCode:   r.Address.Postcode,
		StreetName:   r.Address.Road,
		HouseNumber:  optional(r.Address.HouseNumber),
		Coordinates:  Coordinates{Lon: lon, Lat: lat},
	}, nil
}

func pickCity(address nominatimAddress) string {
	if address.Town != "" {
		return address.Town
	}
	if address.City != "" {
		return address.City
	}
	return address.Village
}
