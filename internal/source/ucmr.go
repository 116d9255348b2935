package source

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/pinwater/waterwatch/internal/model"
)

// UCMRAdapter summarizes unregulated-contaminant (PFAS) screening results.
// The UCMR export is national; results are filtered to the request's state.
type UCMRAdapter struct {
	chain *Chain
}

// NewUCMRAdapter creates the contamination adapter.
func NewUCMRAdapter(chain *Chain) *UCMRAdapter {
	return &UCMRAdapter{chain: chain}
}

// Domain implements Adapter.
func (a *UCMRAdapter) Domain() model.Domain { return model.DomainContamination }

// Fetch implements Adapter.
func (a *UCMRAdapter) Fetch(ctx context.Context, q Query) model.SourceResult {
	body, endpoint, kind, err := a.chain.Get(ctx, nil)
	if err != nil {
		return model.Failed(model.DomainContamination, kind)
	}

	rows, err := decodeRows(body, "ucmr4_all", "results")
	if err != nil {
		zap.L().Debug("ucmr: malformed payload", zap.Error(err))
		return model.Failed(model.DomainContamination, model.ErrMalformed)
	}

	summary := &model.ContaminationSummary{}
	detected := make(map[string]struct{})
	for _, r := range rows {
		if st := r.str("state", "state_code"); st != "" && !strings.EqualFold(st, q.Location.State) {
			continue
		}
		summary.ResultCount++
		// "<" qualified results are non-detects.
		sign := r.str("analytical_results_sign", "result_sign")
		val, ok := r.num("analytical_results_value", "result_value")
		if sign == "<" || !ok || val <= 0 {
			continue
		}
		summary.DetectionCount++
		if c := r.str("contaminant", "contaminant_name"); c != "" {
			detected[c] = struct{}{}
		}
	}

	for c := range detected {
		summary.Contaminants = append(summary.Contaminants, c)
	}
	sort.Strings(summary.Contaminants)

	return model.Succeeded(model.DomainContamination, endpoint, summary)
}
