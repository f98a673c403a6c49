package main

import (
	"context"
	"time"

	"github.com/go-go-golems/waypoint/pkg/capabilities/maps"
	"github.com/go-go-golems/waypoint/pkg/completion/openai"
	"github.com/go-go-golems/waypoint/pkg/dispatch"
	"github.com/go-go-golems/waypoint/pkg/geo"
	"github.com/go-go-golems/waypoint/pkg/geo/cache"
	"github.com/go-go-golems/waypoint/pkg/geo/googlemaps"
	"github.com/go-go-golems/waypoint/pkg/metrics"
	"github.com/go-go-golems/waypoint/pkg/orchestrator"
	"github.com/go-go-golems/waypoint/pkg/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var errMapsNotConfigured = errors.New("google maps api key is not configured")

// unconfiguredProvider stands in for Google Maps when no key is set, so the
// service still starts and reports the problem through /api/health.
type unconfiguredProvider struct{}

func (unconfiguredProvider) SearchPlaces(context.Context, geo.PlaceQuery) ([]geo.Place, error) {
	return nil, errMapsNotConfigured
}

func (unconfiguredProvider) PlaceDetails(context.Context, string) (*geo.PlaceDetails, error) {
	return nil, errMapsNotConfigured
}

func (unconfiguredProvider) Directions(context.Context, geo.DirectionsQuery) ([]geo.Route, error) {
	return nil, errMapsNotConfigured
}

func (unconfiguredProvider) Geocode(context.Context, string) (*geo.GeocodeResult, error) {
	return nil, errMapsNotConfigured
}

func (unconfiguredProvider) ReverseGeocode(context.Context, float64, float64) (string, error) {
	return "", errMapsNotConfigured
}

// buildGeo returns the geographic provider, wrapped in the redis cache when
// one is configured. The returned func releases the cache connection.
func buildGeo(ctx context.Context, s *settings.Settings) (geo.Provider, func(), error) {
	noop := func() {}
	if !s.MapsConfigured() {
		log.Warn().Msg("GOOGLE_MAPS_API_KEY is not set, geographic lookups will fail")
		return unconfiguredProvider{}, noop, nil
	}
	client, err := googlemaps.NewClient(s.Maps.APIKey, googlemaps.WithTimeout(s.Maps.Timeout))
	if err != nil {
		return nil, noop, errors.Wrap(err, "could not create google maps client")
	}
	if !s.CacheEnabled() {
		return client, noop, nil
	}

	cached := cache.New(client, s.Cache.RedisAddr, s.Cache.RedisPassword, s.Cache.RedisDB, cache.WithTTL(s.Cache.TTL))
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := cached.Ping(pctx); err != nil {
		// the cache falls through on errors, keep going
		log.Warn().Err(err).Str("addr", s.Cache.RedisAddr).Msg("Redis is not reachable, lookups will not be cached")
	} else {
		log.Info().Str("addr", s.Cache.RedisAddr).Dur("ttl", s.Cache.TTL).Msg("Caching geographic lookups")
	}
	return cached, func() {
		if err := cached.Close(); err != nil {
			log.Warn().Err(err).Msg("Could not close redis client")
		}
	}, nil
}

func buildDispatcher(s *settings.Settings, g geo.Provider, m *metrics.Recorder) (*dispatch.Dispatcher, error) {
	reg, err := maps.NewRegistry(g)
	if err != nil {
		return nil, err
	}
	return dispatch.NewDispatcher(reg,
		dispatch.WithTimeout(s.Dispatch.Timeout),
		dispatch.WithPlaceLimit(s.Dispatch.PlaceLimit),
		dispatch.WithMetrics(m),
	), nil
}

func buildOrchestrator(s *settings.Settings, g geo.Provider, m *metrics.Recorder) (*orchestrator.Orchestrator, error) {
	d, err := buildDispatcher(s, g, m)
	if err != nil {
		return nil, err
	}

	var engineOptions []openai.Option
	if s.LLM.Temperature != nil {
		engineOptions = append(engineOptions, openai.WithTemperature(float32(*s.LLM.Temperature)))
	}
	engine, err := openai.NewEngine(s.LLM.BaseURL, s.LLM.APIKey, s.LLM.Model, engineOptions...)
	if err != nil {
		return nil, errors.Wrap(err, "could not create completion engine")
	}

	options := []orchestrator.Option{
		orchestrator.WithCompletionTimeout(s.LLM.Timeout),
		orchestrator.WithMetrics(m),
		orchestrator.WithModelName(s.LLM.Model),
	}
	if s.Prompt.Template != "" {
		options = append(options, orchestrator.WithPromptTemplate(s.Prompt.Template))
	}
	return orchestrator.New(engine, d, options...)
}
