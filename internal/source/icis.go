package source

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pinwater/waterwatch/internal/model"
)

// ICISAdapter summarizes NPDES discharge permits for the request's state.
type ICISAdapter struct {
	chain *Chain
}

// NewICISAdapter creates the discharge-permit adapter.
func NewICISAdapter(chain *Chain) *ICISAdapter {
	return &ICISAdapter{chain: chain}
}

// Domain implements Adapter.
func (a *ICISAdapter) Domain() model.Domain { return model.DomainPermits }

// Fetch implements Adapter.
func (a *ICISAdapter) Fetch(ctx context.Context, q Query) model.SourceResult {
	body, endpoint, kind, err := a.chain.Get(ctx, map[string]string{
		"state": q.Location.State,
	})
	if err != nil {
		return model.Failed(model.DomainPermits, kind)
	}

	rows, err := decodeRows(body, "icis_permits", "results")
	if err != nil {
		zap.L().Debug("icis: malformed payload", zap.Error(err))
		return model.Failed(model.DomainPermits, model.ErrMalformed)
	}

	summary := &model.PermitSummary{State: q.Location.State}
	for _, r := range rows {
		summary.PermitCount++
		if strings.EqualFold(r.str("major_minor_status_flag", "major_flag"), "M") {
			summary.MajorPermits++
		}
		if exp := r.str("expiration_date", "permit_expiration_date"); exp != "" {
			if t, err := parsePermitDate(exp); err == nil && t.Before(q.Now) {
				summary.ExpiredCount++
			}
		}
	}
	return model.Succeeded(model.DomainPermits, endpoint, summary)
}

// parsePermitDate accepts the date layouts Envirofacts emits.
func parsePermitDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "02-Jan-06", "01/02/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Parse(time.RFC3339, s)
}
