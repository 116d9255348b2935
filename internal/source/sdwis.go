package source

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/pinwater/waterwatch/internal/model"
)

// SDWISClient fetches drinking-water systems and violations from EPA
// Envirofacts. It backs the national bulk cache.
type SDWISClient struct {
	systems    *Chain
	violations *Chain
}

// NewSDWISClient creates the drinking-water client.
func NewSDWISClient(systems, violations *Chain) *SDWISClient {
	return &SDWISClient{systems: systems, violations: violations}
}

// FetchState pulls one state's systems plus open violations. A violations
// failure degrades the payload instead of failing the unit: system counts
// are still worth caching.
func (c *SDWISClient) FetchState(ctx context.Context, state string) (*model.DrinkingWaterSummary, error) {
	body, _, _, err := c.systems.Get(ctx, map[string]string{"state": state})
	if err != nil {
		return nil, eris.Wrapf(err, "sdwis: fetch systems %s", state)
	}
	rows, err := decodeRows(body, "water_system", "results")
	if err != nil {
		return nil, eris.Wrapf(err, "sdwis: decode systems %s", state)
	}

	summary := &model.DrinkingWaterSummary{State: state}
	for _, r := range rows {
		if act := r.str("activity_status_cd", "pws_activity_code"); act != "" && !strings.EqualFold(act, "A") {
			continue
		}
		summary.SystemCount++
		if pop, ok := r.num("population_served_count", "population_served"); ok {
			summary.PopulationServed += int(pop)
		}
	}

	if vb, _, _, err := c.violations.Get(ctx, map[string]string{"state": state}); err == nil {
		if vrows, err := decodeRows(vb, "violation", "results"); err == nil {
			for _, v := range vrows {
				status := v.str("violation_status", "compliance_status_code")
				if status != "" && !strings.EqualFold(status, "Resolved") && !strings.EqualFold(status, "Archived") {
					summary.ActiveViolations++
					if hb := v.str("is_health_based_ind", "health_based"); strings.EqualFold(hb, "Y") {
						summary.HealthBased++
					}
				}
			}
		}
	}

	return summary, nil
}
