package source

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pinwater/waterwatch/internal/model"
)

// FWSAdapter reports listed species and critical habitat near a point via
// the FWS IPaC resources API.
type FWSAdapter struct {
	chain *Chain
}

// NewFWSAdapter creates the species-habitat adapter.
func NewFWSAdapter(chain *Chain) *FWSAdapter {
	return &FWSAdapter{chain: chain}
}

// Domain implements Adapter.
func (a *FWSAdapter) Domain() model.Domain { return model.DomainHabitat }

type fwsResponse struct {
	Resources struct {
		PopulationsBySID []struct {
			CommonName    string `json:"commonName"`
			ListingStatus []struct {
				Status string `json:"status"`
			} `json:"listingStatus"`
			CritHab bool `json:"hasCriticalHabitat"`
		} `json:"populationsBySid"`
	} `json:"resources"`
}

// Fetch implements Adapter.
func (a *FWSAdapter) Fetch(ctx context.Context, q Query) model.SourceResult {
	body, endpoint, kind, err := a.chain.Get(ctx, map[string]string{
		"lat": strconv.FormatFloat(q.Location.Latitude, 'f', 6, 64),
		"lon": strconv.FormatFloat(q.Location.Longitude, 'f', 6, 64),
	})
	if err != nil {
		return model.Failed(model.DomainHabitat, kind)
	}

	var resp fwsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		zap.L().Debug("fws: malformed payload", zap.Error(err))
		return model.Failed(model.DomainHabitat, model.ErrMalformed)
	}

	summary := &model.HabitatSummary{}
	listed := make(map[string]struct{})
	for _, p := range resp.Resources.PopulationsBySID {
		summary.SpeciesCount++
		if p.CritHab {
			summary.CriticalHabitat = true
		}
		for _, ls := range p.ListingStatus {
			s := strings.ToLower(ls.Status)
			if strings.Contains(s, "endangered") || strings.Contains(s, "threatened") {
				listed[p.CommonName] = struct{}{}
			}
		}
	}
	for name := range listed {
		summary.ListedSpecies = append(summary.ListedSpecies, name)
	}
	sort.Strings(summary.ListedSpecies)

	return model.Succeeded(model.DomainHabitat, endpoint, summary)
}
