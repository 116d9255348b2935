// Package dossier assembles the site intelligence report: it fans out to
// every source adapter, settles all results into an evidence bundle, and
// hands the bundle to the scorer and the signal detector.
package dossier

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pinwater/waterwatch/internal/cache"
	"github.com/pinwater/waterwatch/internal/config"
	"github.com/pinwater/waterwatch/internal/metrics"
	"github.com/pinwater/waterwatch/internal/model"
	"github.com/pinwater/waterwatch/internal/scorer"
	"github.com/pinwater/waterwatch/internal/signal"
	"github.com/pinwater/waterwatch/internal/source"
)

// Assembler orchestrates a full dossier request.
type Assembler struct {
	adapters []source.Adapter
	coord    *cache.Coordinator
	scorer   *scorer.Scorer
	detector *signal.Detector
	cfg      config.SourcesConfig
	clock    func() time.Time
}

func NewAssembler(
	adapters []source.Adapter,
	coord *cache.Coordinator,
	sc *scorer.Scorer,
	det *signal.Detector,
	cfg config.SourcesConfig,
) *Assembler {
	return &Assembler{
		adapters: adapters,
		coord:    coord,
		scorer:   sc,
		detector: det,
		cfg:      cfg,
		clock:    time.Now,
	}
}

// Assemble produces a report for a resolved location. Every adapter runs;
// individual failures become explicit nil sections, never request errors.
func (a *Assembler) Assemble(ctx context.Context, loc model.Location) *model.Report {
	start := a.clock()
	a.warmCaches()

	bundle := a.fanOut(ctx, loc)

	report := &model.Report{
		ID:          uuid.NewString(),
		Location:    loc,
		Sections:    make(map[model.Domain]any, len(a.adapters)),
		GeneratedAt: a.clock().UTC(),
	}
	for _, ad := range a.adapters {
		d := ad.Domain()
		if r := bundle.Get(d); r.OK() {
			report.Sections[d] = r.Value
		} else {
			report.Sections[d] = nil
		}
	}

	report.Composite = a.scorer.Score(bundle)

	var readings []model.Reading
	if rt := model.Value[model.RealtimeReadings](bundle, model.DomainRealtime); rt != nil {
		readings = rt.Readings
	}
	enforcement := model.Value[model.EnforcementSummary](bundle, model.DomainEnforcement)
	report.Signals = a.detector.Detect(readings, enforcement, 0)

	elapsed := a.clock().Sub(start)
	metrics.ReportDuration.Observe(elapsed.Seconds())
	zap.L().Info("dossier: report assembled",
		zap.String("report_id", report.ID),
		zap.String("state", loc.State),
		zap.Duration("elapsed", elapsed),
	)
	return report
}

// Signals runs only the real-time and enforcement adapters for a region and
// returns ordered signals plus the per-domain source status summary.
func (a *Assembler) Signals(ctx context.Context, state string, limit int) ([]model.SignalEvent, map[model.Domain]model.SourceResult) {
	loc := model.Location{State: state}
	bundle := a.fanOut(ctx, loc, model.DomainRealtime, model.DomainEnforcement)

	var readings []model.Reading
	if rt := model.Value[model.RealtimeReadings](bundle, model.DomainRealtime); rt != nil {
		readings = rt.Readings
	}
	enforcement := model.Value[model.EnforcementSummary](bundle, model.DomainEnforcement)
	return a.detector.Detect(readings, enforcement, limit), bundle.Results
}

// fanOut queries adapters concurrently and settles every result into the
// bundle. When domains is non-empty only those adapters run.
func (a *Assembler) fanOut(ctx context.Context, loc model.Location, domains ...model.Domain) *model.EvidenceBundle {
	bundle := model.NewEvidenceBundle(loc)
	q := source.Query{
		Location:   loc,
		RadiusKM:   a.cfg.SearchRadiusKM,
		WindowDays: a.cfg.SampleWindowDays,
		Now:        a.clock(),
	}

	wanted := make(map[model.Domain]bool, len(domains))
	for _, d := range domains {
		wanted[d] = true
	}

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.MaxConcurrent)

	for _, ad := range a.adapters {
		if len(wanted) > 0 && !wanted[ad.Domain()] {
			continue
		}
		g.Go(func() error {
			res := ad.Fetch(gCtx, q)
			metrics.SourceResults.WithLabelValues(string(res.Domain), string(res.Status)).Inc()
			if res.Status == model.ResultFailed {
				zap.L().Debug("dossier: source failed",
					zap.String("domain", string(res.Domain)),
					zap.String("kind", string(res.ErrorKind)),
				)
			}
			mu.Lock()
			bundle.Results[res.Domain] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers never return errors
	return bundle
}

// warmCaches triggers background builds for any idle cache domain. The
// request does not wait; a first request on a cold process gets cache
// misses while the builds proceed.
func (a *Assembler) warmCaches() {
	if a.coord == nil {
		return
	}
	for _, domain := range a.coord.Domains() {
		a.coord.EnsureWarmed(domain)
	}
}
