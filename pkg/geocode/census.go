package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/pinwater/waterwatch/internal/model"
)

const (
	censusOneLineURL = "https://geocoding.geo.census.gov/geocoder/geographies/onelineaddress"
	censusCoordsURL  = "https://geocoding.geo.census.gov/geocoder/geographies/coordinates"
	censusBenchmark  = "Public_AR_Current"
	censusVintage    = "Current_Current"
)

// censusGeography is one geography layer record; only the state layer
// fields are read.
type censusGeography struct {
	GEOID  string `json:"GEOID"`
	STUSPS string `json:"STUSPS"`
	Name   string `json:"NAME"`
}

type censusForwardResponse struct {
	Result struct {
		AddressMatches []struct {
			MatchedAddress string `json:"matchedAddress"`
			Coordinates    struct {
				X float64 `json:"x"` // longitude
				Y float64 `json:"y"` // latitude
			} `json:"coordinates"`
			Geographies map[string][]censusGeography `json:"geographies"`
		} `json:"addressMatches"`
	} `json:"result"`
}

type censusReverseResponse struct {
	Result struct {
		Geographies map[string][]censusGeography `json:"geographies"`
	} `json:"result"`
}

// forward geocodes a one-line address or bare zip through the geographies
// benchmark, which returns coordinates plus the containing state layer.
func (c *client) forward(ctx context.Context, oneline string) (model.Location, error) {
	params := url.Values{
		"address":   {oneline},
		"benchmark": {censusBenchmark},
		"vintage":   {censusVintage},
		"format":    {"json"},
	}

	body, err := c.get(ctx, censusOneLineURL+"?"+params.Encode())
	if err != nil {
		return model.Location{}, err
	}

	var resp censusForwardResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return model.Location{}, eris.Wrap(err, "geocode: parse census response")
	}
	if len(resp.Result.AddressMatches) == 0 {
		return model.Location{}, ErrNoMatch
	}

	match := resp.Result.AddressMatches[0]
	loc := model.Location{
		Latitude:  match.Coordinates.Y,
		Longitude: match.Coordinates.X,
		Label:     match.MatchedAddress,
	}
	fillState(&loc, match.Geographies)
	return loc, nil
}

// resolveRegion reverse-resolves coordinates to their containing state.
// The coordinates pass through unchanged.
func (c *client) resolveRegion(ctx context.Context, lat, lon float64) (model.Location, error) {
	params := url.Values{
		"x":         {strconv.FormatFloat(lon, 'f', -1, 64)},
		"y":         {strconv.FormatFloat(lat, 'f', -1, 64)},
		"benchmark": {censusBenchmark},
		"vintage":   {censusVintage},
		"format":    {"json"},
	}

	body, err := c.get(ctx, censusCoordsURL+"?"+params.Encode())
	if err != nil {
		return model.Location{}, err
	}

	var resp censusReverseResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return model.Location{}, eris.Wrap(err, "geocode: parse census response")
	}

	loc := model.Location{Latitude: lat, Longitude: lon}
	fillState(&loc, resp.Result.Geographies)
	if loc.State == "" {
		return model.Location{}, ErrNoMatch
	}
	return loc, nil
}

func (c *client) get(ctx context.Context, reqURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: rate limit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: build request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: census returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: read body")
	}
	return body, nil
}

func fillState(loc *model.Location, geographies map[string][]censusGeography) {
	states, ok := geographies["States"]
	if !ok || len(states) == 0 {
		return
	}
	loc.State = states[0].STUSPS
	loc.StateFIPS = states[0].GEOID
	if loc.Label == "" {
		loc.Label = states[0].Name
	}
}
