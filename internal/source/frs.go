package source

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/pinwater/waterwatch/internal/model"
)

// FRSClient fetches NPDES-permitted facility (WWTP) locations from EPA FRS.
// It backs the spatial point cache.
type FRSClient struct {
	chain *Chain
}

// NewFRSClient creates the facility-location client.
func NewFRSClient(chain *Chain) *FRSClient {
	return &FRSClient{chain: chain}
}

// FetchState pulls one state's permitted facilities. Rows without usable
// coordinates are dropped; a point cache entry is useless without a point.
func (c *FRSClient) FetchState(ctx context.Context, state string) ([]model.Facility, error) {
	body, _, _, err := c.chain.Get(ctx, map[string]string{"state": state})
	if err != nil {
		return nil, eris.Wrapf(err, "frs: fetch %s", state)
	}
	rows, err := decodeRows(body, "frs_program_facility", "results")
	if err != nil {
		return nil, eris.Wrapf(err, "frs: decode %s", state)
	}

	facilities := make([]model.Facility, 0, len(rows))
	for _, r := range rows {
		lat, okLat := r.num("latitude83", "latitude", "lat")
		lon, okLon := r.num("longitude83", "longitude", "lon")
		if !okLat || !okLon || (lat == 0 && lon == 0) {
			continue
		}
		facilities = append(facilities, model.Facility{
			ID:        r.str("registry_id", "pgm_sys_id", "facility_registry_id"),
			Name:      titleCase(r.str("primary_name", "facility_name")),
			State:     state,
			Latitude:  lat,
			Longitude: lon,
		})
	}
	return facilities, nil
}
