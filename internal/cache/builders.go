package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pinwater/waterwatch/internal/model"
	"github.com/pinwater/waterwatch/internal/source"
)

// Cache domain names.
const (
	DomainAttains = "attains"
	DomainSDWIS   = "sdwis"
	DomainWWTP    = "wwtp"
)

// AttainsBuilder builds the national impairment cache, one unit per state.
type AttainsBuilder struct {
	client *source.AttainsClient
	ttl    time.Duration
}

// NewAttainsBuilder creates the impairment cache builder.
func NewAttainsBuilder(client *source.AttainsClient, ttl time.Duration) *AttainsBuilder {
	return &AttainsBuilder{client: client, ttl: ttl}
}

func (b *AttainsBuilder) Domain() string     { return DomainAttains }
func (b *AttainsBuilder) Units() []string    { return model.StateCodes() }
func (b *AttainsBuilder) TTL() time.Duration { return b.ttl }

func (b *AttainsBuilder) FetchUnit(ctx context.Context, key string) (any, error) {
	return b.client.FetchState(ctx, key)
}

func (b *AttainsBuilder) DecodeUnit(data []byte) (any, error) {
	var s model.ImpairmentSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SDWISBuilder builds the national drinking-water cache.
type SDWISBuilder struct {
	client *source.SDWISClient
	ttl    time.Duration
}

// NewSDWISBuilder creates the drinking-water cache builder.
func NewSDWISBuilder(client *source.SDWISClient, ttl time.Duration) *SDWISBuilder {
	return &SDWISBuilder{client: client, ttl: ttl}
}

func (b *SDWISBuilder) Domain() string     { return DomainSDWIS }
func (b *SDWISBuilder) Units() []string    { return model.StateCodes() }
func (b *SDWISBuilder) TTL() time.Duration { return b.ttl }

func (b *SDWISBuilder) FetchUnit(ctx context.Context, key string) (any, error) {
	return b.client.FetchState(ctx, key)
}

func (b *SDWISBuilder) DecodeUnit(data []byte) (any, error) {
	var s model.DrinkingWaterSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// WWTPBuilder builds the treatment-plant point cache. Units are fetched per
// state but committed into the spatial index for radius reads.
type WWTPBuilder struct {
	client *source.FRSClient
	index  *PointIndex
	ttl    time.Duration
}

// NewWWTPBuilder creates the point-cache builder over the given index.
func NewWWTPBuilder(client *source.FRSClient, index *PointIndex, ttl time.Duration) *WWTPBuilder {
	return &WWTPBuilder{client: client, index: index, ttl: ttl}
}

func (b *WWTPBuilder) Domain() string     { return DomainWWTP }
func (b *WWTPBuilder) Units() []string    { return model.StateCodes() }
func (b *WWTPBuilder) TTL() time.Duration { return b.ttl }

func (b *WWTPBuilder) FetchUnit(ctx context.Context, key string) (any, error) {
	facilities, err := b.client.FetchState(ctx, key)
	if err != nil {
		return nil, err
	}
	b.index.ReplaceState(key, facilities)
	return facilities, nil
}

func (b *WWTPBuilder) DecodeUnit(data []byte) (any, error) {
	var facilities []model.Facility
	if err := json.Unmarshal(data, &facilities); err != nil {
		return nil, err
	}
	if len(facilities) > 0 {
		b.index.ReplaceState(facilities[0].State, facilities)
	}
	return facilities, nil
}
