// Package geocode resolves lookup inputs (coordinates, zip, or free-text
// address) into coordinates plus administrative region using the Census
// Geocoder.
package geocode

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/pinwater/waterwatch/internal/model"
)

// Query is the raw location input. Exactly one of coordinates, Zip, or
// Address should be set; State optionally overrides the resolved region.
type Query struct {
	Latitude  *float64
	Longitude *float64
	Zip       string
	Address   string
	State     string
}

// ErrNoInput is returned when a query carries no location at all.
var ErrNoInput = eris.New("geocode: no coordinates, zip, or address given")

// ErrNoMatch is returned when the geocoder cannot resolve the input.
var ErrNoMatch = eris.New("geocode: no match for input")

// Client resolves queries into locations.
type Client interface {
	Locate(ctx context.Context, q Query) (model.Location, error)
}

// Option configures the client.
type Option func(*client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second limit for Census API calls.
func WithRateLimit(rps float64) Option {
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return func(c *client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

type client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New creates a Census-backed geocoding client.
func New(opts ...Option) Client {
	c := &client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(10), 10),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Locate resolves a query. Coordinates are reverse-resolved only for their
// administrative region; zip and address inputs go through the forward
// geocoder.
func (c *client) Locate(ctx context.Context, q Query) (model.Location, error) {
	switch {
	case q.Latitude != nil && q.Longitude != nil:
		loc, err := c.resolveRegion(ctx, *q.Latitude, *q.Longitude)
		if err != nil {
			return model.Location{}, err
		}
		applyOverride(&loc, q.State)
		return loc, nil

	case q.Zip != "":
		loc, err := c.forward(ctx, q.Zip)
		if err != nil {
			return model.Location{}, err
		}
		applyOverride(&loc, q.State)
		return loc, nil

	case q.Address != "":
		loc, err := c.forward(ctx, q.Address)
		if err != nil {
			return model.Location{}, err
		}
		applyOverride(&loc, q.State)
		return loc, nil
	}
	return model.Location{}, ErrNoInput
}

func applyOverride(loc *model.Location, state string) {
	if state == "" {
		return
	}
	loc.State = strings.ToUpper(state)
	if fips, ok := model.FIPSFor(loc.State); ok {
		loc.StateFIPS = fips
	}
}
