// Package cache decorates a geo.Provider with a Redis read-through cache.
//
// Cache failures never fail a lookup: a broken Redis degrades to calling the
// wrapped provider directly. Not-found answers and empty result lists are not
// cached.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-go-golems/waypoint/pkg/geo"
	"github.com/pkg/errors"
	backend "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type Provider struct {
	next   geo.Provider
	client backend.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ geo.Provider = (*Provider)(nil)

type Option func(*Provider)

func WithTTL(ttl time.Duration) Option {
	return func(p *Provider) {
		p.ttl = ttl
	}
}

func WithPrefix(prefix string) Option {
	return func(p *Provider) {
		p.prefix = prefix
	}
}

// New wraps next with a cache on a fresh client for address.
func New(next geo.Provider, address, password string, db int, opts ...Option) *Provider {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(next, rdb, opts...)
}

func NewFromClient(next geo.Provider, client backend.UniversalClient, opts ...Option) *Provider {
	p := &Provider{
		next:   next,
		client: client,
		prefix: "waypoint:geo:",
		ttl:    10 * time.Minute,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ping checks the connection, used at startup.
func (p *Provider) Ping(ctx context.Context) error {
	return errors.Wrap(p.client.Ping(ctx).Err(), "redis ping failed")
}

func (p *Provider) Close() error {
	return p.client.Close()
}

func (p *Provider) key(op string, parts ...any) string {
	b, _ := json.Marshal(parts)
	sum := sha256.Sum256(b)
	return p.prefix + op + ":" + hex.EncodeToString(sum[:12])
}

func (p *Provider) load(ctx context.Context, key string, v any) bool {
	data, err := p.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, backend.Nil) {
			log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("geo cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("dropping undecodable geo cache entry")
		_ = p.client.Del(ctx, key).Err()
		return false
	}
	return true
}

func (p *Provider) store(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := p.client.Set(ctx, key, data, p.ttl).Err(); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("geo cache write failed")
	}
}

// readThrough is the shared get-or-fill path for every lookup. Values
// for which empty reports true are returned but not stored.
func readThrough[T any](ctx context.Context, p *Provider, key string, fetch func() (T, error), empty func(T) bool) (T, error) {
	var cached T
	if p.load(ctx, key, &cached) {
		log.Ctx(ctx).Debug().Str("key", key).Msg("geo cache hit")
		return cached, nil
	}
	v, err := fetch()
	if err != nil {
		return v, err
	}
	if empty != nil && empty(v) {
		return v, nil
	}
	p.store(ctx, key, v)
	return v, nil
}

func (p *Provider) SearchPlaces(ctx context.Context, q geo.PlaceQuery) ([]geo.Place, error) {
	places, err := readThrough(ctx, p, p.key("search", q), func() ([]geo.Place, error) {
		return p.next.SearchPlaces(ctx, q)
	}, func(v []geo.Place) bool { return len(v) == 0 })
	if places == nil && err == nil {
		places = []geo.Place{}
	}
	return places, err
}

func (p *Provider) PlaceDetails(ctx context.Context, placeID string) (*geo.PlaceDetails, error) {
	return readThrough(ctx, p, p.key("details", placeID), func() (*geo.PlaceDetails, error) {
		return p.next.PlaceDetails(ctx, placeID)
	}, nil)
}

func (p *Provider) Directions(ctx context.Context, q geo.DirectionsQuery) ([]geo.Route, error) {
	return readThrough(ctx, p, p.key("directions", q), func() ([]geo.Route, error) {
		return p.next.Directions(ctx, q)
	}, func(v []geo.Route) bool { return len(v) == 0 })
}

func (p *Provider) Geocode(ctx context.Context, address string) (*geo.GeocodeResult, error) {
	return readThrough(ctx, p, p.key("geocode", address), func() (*geo.GeocodeResult, error) {
		return p.next.Geocode(ctx, address)
	}, nil)
}

func (p *Provider) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	return readThrough(ctx, p, p.key("reverse", fmt.Sprintf("%f,%f", lat, lng)), func() (string, error) {
		return p.next.ReverseGeocode(ctx, lat, lng)
	}, nil)
}
