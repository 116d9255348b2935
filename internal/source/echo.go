package source

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pinwater/waterwatch/internal/model"
)

// ECHOAdapter summarizes Clean Water Act compliance for the request's state.
type ECHOAdapter struct {
	chain *Chain
}

// NewECHOAdapter creates the enforcement/compliance adapter.
func NewECHOAdapter(chain *Chain) *ECHOAdapter {
	return &ECHOAdapter{chain: chain}
}

// Domain implements Adapter.
func (a *ECHOAdapter) Domain() model.Domain { return model.DomainEnforcement }

type echoResponse struct {
	Results struct {
		Facilities []row `json:"Facilities"`
	} `json:"Results"`
}

// Fetch implements Adapter.
func (a *ECHOAdapter) Fetch(ctx context.Context, q Query) model.SourceResult {
	body, endpoint, kind, err := a.chain.Get(ctx, map[string]string{
		"state": q.Location.State,
	})
	if err != nil {
		return model.Failed(model.DomainEnforcement, kind)
	}

	var resp echoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		zap.L().Debug("echo: malformed payload", zap.Error(err))
		return model.Failed(model.DomainEnforcement, model.ErrMalformed)
	}

	summary := &model.EnforcementSummary{State: q.Location.State}
	for _, f := range resp.Results.Facilities {
		summary.FacilityCount++
		if flag := f.str("CWPStatus", "ComplianceStatus"); strings.Contains(strings.ToLower(flag), "violation") {
			summary.InViolation++
		}
		if strings.EqualFold(f.str("CWPSNCStatus", "SNCFlag"), "Y") {
			summary.SignificantNoncomp++
		}
		if d := f.str("CWPLastFrmlEnfActDate", "LastFormalActionDate"); d != "" {
			if t, err := time.Parse("01/02/2006", d); err == nil && q.Now.Sub(t) < 365*24*time.Hour {
				summary.RecentActions = append(summary.RecentActions, model.EnforcementAction{
					Facility: titleCase(f.str("CWPName", "FacName")),
					Type:     "formal enforcement action",
					Date:     t,
				})
			}
		}
	}

	// Newest actions first; cap the list so the payload stays bounded.
	sort.Slice(summary.RecentActions, func(i, j int) bool {
		return summary.RecentActions[i].Date.After(summary.RecentActions[j].Date)
	})
	if len(summary.RecentActions) > 10 {
		summary.RecentActions = summary.RecentActions[:10]
	}

	return model.Succeeded(model.DomainEnforcement, endpoint, summary)
}
