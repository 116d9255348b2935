package source

import (
	_ "embed"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/pinwater/waterwatch/internal/config"
	"github.com/pinwater/waterwatch/internal/health"
)

//go:embed registry.yaml
var registryYAML []byte

// sourceSpec is one source entry from registry.yaml.
type sourceSpec struct {
	Timeout     string     `yaml:"timeout"` // "realtime" or "bulk"
	RateLimited bool       `yaml:"rate_limited"`
	Endpoints   []Endpoint `yaml:"endpoints"`
}

type registryFile struct {
	Sources map[string]sourceSpec `yaml:"sources"`
}

// Registry holds one configured Chain per source.
type Registry struct {
	chains map[string]*Chain
	Health *health.Registry
}

// LoadRegistry parses the embedded endpoint registry and wires chains with
// the configured timeouts, the shared EPA rate limiter, and a health
// registry.
func LoadRegistry(cfg config.SourcesConfig, reg *health.Registry) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(registryYAML, &file); err != nil {
		return nil, eris.Wrap(err, "source: parse registry")
	}
	if len(file.Sources) == 0 {
		return nil, eris.New("source: empty registry")
	}

	epaLimiter := rate.NewLimiter(rate.Limit(cfg.EPARatePerSec), 1)

	r := &Registry{
		chains: make(map[string]*Chain, len(file.Sources)),
		Health: reg,
	}
	for name, spec := range file.Sources {
		if len(spec.Endpoints) == 0 {
			return nil, eris.Errorf("source: %s has no endpoints", name)
		}
		timeout := cfg.BulkTimeout()
		if spec.Timeout == "realtime" {
			timeout = cfg.RealtimeTimeout()
		}
		var limiter *rate.Limiter
		if spec.RateLimited {
			limiter = epaLimiter
		}
		r.chains[name] = NewChain(name, spec.Endpoints, timeout, limiter, reg)
	}
	return r, nil
}

// Chain returns the chain for a source name, or nil when unregistered.
func (r *Registry) Chain(name string) *Chain {
	return r.chains[name]
}

// Sources lists the registered source names.
func (r *Registry) Sources() []string {
	out := make([]string, 0, len(r.chains))
	for name := range r.chains {
		out = append(out, name)
	}
	return out
}

// startDate formats the sample-window start for WQP queries (MM-DD-YYYY).
func startDate(now time.Time, windowDays int) string {
	return now.AddDate(0, 0, -windowDays).Format("01-02-2006")
}
