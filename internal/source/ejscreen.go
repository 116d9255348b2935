package source

import (
	"context"
	"encoding/json"
	"strconv"

	"go.uber.org/zap"

	"github.com/pinwater/waterwatch/internal/model"
)

// EJScreenAdapter fetches demographic/equity indicators for the block group
// containing a point.
type EJScreenAdapter struct {
	chain *Chain
}

// NewEJScreenAdapter creates the equity-indicator adapter.
func NewEJScreenAdapter(chain *Chain) *EJScreenAdapter {
	return &EJScreenAdapter{chain: chain}
}

// Domain implements Adapter.
func (a *EJScreenAdapter) Domain() model.Domain { return model.DomainEquity }

// Fetch implements Adapter.
func (a *EJScreenAdapter) Fetch(ctx context.Context, q Query) model.SourceResult {
	body, endpoint, kind, err := a.chain.Get(ctx, map[string]string{
		"lat": strconv.FormatFloat(q.Location.Latitude, 'f', 6, 64),
		"lon": strconv.FormatFloat(q.Location.Longitude, 'f', 6, 64),
	})
	if err != nil {
		return model.Failed(model.DomainEquity, kind)
	}

	// EJScreen returns a flat record with percentile fields whose names have
	// shifted across releases; read it loosely.
	var raw row
	if err := json.Unmarshal(body, &raw); err != nil {
		zap.L().Debug("ejscreen: malformed payload", zap.Error(err))
		return model.Failed(model.DomainEquity, model.ErrMalformed)
	}

	summary := &model.EquitySummary{}
	if v, ok := raw.num("P_DEMOGIDX_2", "P_VULEOPCT", "demog_index_percentile"); ok {
		summary.DemographicIndex = model.Clamp(v, 0, 100)
	}
	if v, ok := raw.num("P_LWINCPCT", "low_income_percentile"); ok {
		summary.LowIncomePct = model.Clamp(v, 0, 100)
	}
	if v, ok := raw.num("P_PWDIS", "wastewater_percentile"); ok {
		summary.WastewaterPercile = model.Clamp(v, 0, 100)
	}

	return model.Succeeded(model.DomainEquity, endpoint, summary)
}
