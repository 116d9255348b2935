// Package source implements the adapter layer over external data providers:
// an ordered endpoint chain per source, per-call timeouts, and normalization
// of heterogeneous upstream payloads into canonical domain shapes.
package source

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pinwater/waterwatch/internal/health"
	"github.com/pinwater/waterwatch/internal/model"
)

// Endpoint is one descriptor in a source's fallback chain. URL may contain
// {state}, {fips}, {lat}, {lon}, {start}, and {radius} placeholders.
type Endpoint struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Chain tries a source's endpoints in priority order, returning the body of
// the first success. Exhausting the chain yields a typed failure, never a
// panic or an escaping error.
type Chain struct {
	Source    string
	Endpoints []Endpoint
	Timeout   time.Duration

	client  *http.Client
	limiter *rate.Limiter // nil when the source is not rate limited
	health  *health.Registry
}

// NewChain builds a chain over the given endpoints. limiter and reg may be
// nil; the chain then applies no rate limit and no backoff skipping.
func NewChain(source string, endpoints []Endpoint, timeout time.Duration, limiter *rate.Limiter, reg *health.Registry) *Chain {
	return &Chain{
		Source:    source,
		Endpoints: endpoints,
		Timeout:   timeout,
		client:    &http.Client{},
		limiter:   limiter,
		health:    reg,
	}
}

// WithHTTPClient overrides the HTTP client, mainly for tests.
func (c *Chain) WithHTTPClient(hc *http.Client) *Chain {
	c.client = hc
	return c
}

// Get fetches the first endpoint that answers, substituting vars into the
// URL template. The returned ErrorKind is meaningful only when err != nil.
func (c *Chain) Get(ctx context.Context, vars map[string]string) ([]byte, string, model.ErrorKind, error) {
	var (
		lastKind = model.ErrExhausted
		lastErr  error
		skipped  int
	)

	for _, ep := range c.Endpoints {
		key := c.Source + "/" + ep.Name
		if c.health != nil && c.health.ShouldSkip(key) {
			skipped++
			continue
		}

		body, kind, err := c.fetch(ctx, expand(ep.URL, vars))
		if err == nil {
			if c.health != nil {
				c.health.RecordSuccess(key)
			}
			return body, ep.Name, "", nil
		}

		if c.health != nil {
			c.health.RecordFailure(key)
		}
		zap.L().Debug("source: endpoint failed, trying next",
			zap.String("source", c.Source),
			zap.String("endpoint", ep.Name),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		lastKind, lastErr = kind, err

		// Cancelled callers should not burn through remaining mirrors.
		if ctx.Err() != nil {
			break
		}
	}

	if lastErr == nil {
		if skipped == len(c.Endpoints) && skipped > 0 {
			return nil, "", model.ErrSkipped, errors.New("all endpoints inside backoff window")
		}
		return nil, "", model.ErrExhausted, errors.New("no endpoints configured")
	}
	return nil, "", lastKind, lastErr
}

// fetch performs one GET with the chain's timeout.
func (c *Chain) fetch(ctx context.Context, url string) ([]byte, model.ErrorKind, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, model.ErrTimeout, err
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, model.ErrUpstream, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		kind := model.ErrUpstream
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			kind = model.ErrTimeout
		}
		return nil, kind, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, model.ErrUpstream, errors.New(resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.ErrMalformed, err
	}
	return body, "", nil
}

// expand substitutes {key} placeholders in a URL template.
func expand(tmpl string, vars map[string]string) string {
	if len(vars) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
