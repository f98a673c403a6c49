// Package googlemaps implements geo.Provider on top of the Google Maps
// Platform web services.
package googlemaps

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-go-golems/waypoint/pkg/geo"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"googlemaps.github.io/maps"
)

type Client struct {
	c       *maps.Client
	timeout time.Duration
}

var _ geo.Provider = (*Client)(nil)

type options struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

type Option func(*options)

// WithBaseURL points the client at another host, mostly for tests.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithTimeout bounds each provider request. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("google maps api key is not set")
	}
	o := options{timeout: 10 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	mopts := []maps.ClientOption{maps.WithAPIKey(apiKey)}
	if o.baseURL != "" {
		mopts = append(mopts, maps.WithBaseURL(strings.TrimRight(o.baseURL, "/")))
	}
	if o.httpClient != nil {
		mopts = append(mopts, maps.WithHTTPClient(o.httpClient))
	}
	c, err := maps.NewClient(mopts...)
	if err != nil {
		return nil, errors.Wrap(err, "could not create google maps client")
	}
	return &Client{c: c, timeout: o.timeout}, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// isNoResult reports whether err is the service's way of saying "nothing
// matched" rather than a real failure.
func isNoResult(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "ZERO_RESULTS") || strings.Contains(s, "NOT_FOUND")
}

func (c *Client) SearchPlaces(ctx context.Context, q geo.PlaceQuery) ([]geo.Place, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req := &maps.TextSearchRequest{
		Query:  q.Query,
		Radius: q.Radius,
	}
	if q.PlaceType != "" {
		req.Type = maps.PlaceType(q.PlaceType)
	}
	if loc := strings.TrimSpace(q.Location); loc != "" {
		ll, err := c.resolveLocation(ctx, loc)
		if err != nil {
			// keep the hint in the query text rather than dropping it
			log.Debug().Err(err).Str("location", loc).Msg("could not resolve search location, folding into query")
			req.Query = q.Query + " near " + loc
		} else {
			req.Location = ll
		}
	}
	if req.Location != nil && req.Radius == 0 {
		req.Radius = geo.DefaultSearchRadius
	}

	resp, err := c.c.TextSearch(ctx, req)
	if err != nil {
		if isNoResult(err) {
			return []geo.Place{}, nil
		}
		return nil, errors.Wrap(err, "text search failed")
	}

	ret := make([]geo.Place, 0, len(resp.Results))
	for _, r := range resp.Results {
		ret = append(ret, convertSearchResult(r))
	}
	return ret, nil
}

func (c *Client) resolveLocation(ctx context.Context, loc string) (*maps.LatLng, error) {
	if ll, err := maps.ParseLatLng(loc); err == nil {
		return &ll, nil
	}
	res, err := c.Geocode(ctx, loc)
	if err != nil {
		return nil, err
	}
	return &maps.LatLng{Lat: res.Location.Lat, Lng: res.Location.Lng}, nil
}

func (c *Client) PlaceDetails(ctx context.Context, placeID string) (*geo.PlaceDetails, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	r, err := c.c.PlaceDetails(ctx, &maps.PlaceDetailsRequest{PlaceID: placeID})
	if err != nil {
		if isNoResult(err) || strings.Contains(err.Error(), "INVALID_REQUEST") {
			return nil, geo.ErrNotFound
		}
		return nil, errors.Wrapf(err, "place details for %s failed", placeID)
	}
	if r.PlaceID == "" && r.Name == "" {
		return nil, geo.ErrNotFound
	}
	return convertDetails(r), nil
}

func (c *Client) Directions(ctx context.Context, q geo.DirectionsQuery) ([]geo.Route, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	mode := q.Mode
	if mode == "" {
		mode = geo.TravelModeDriving
	}
	routes, _, err := c.c.Directions(ctx, &maps.DirectionsRequest{
		Origin:       q.Origin,
		Destination:  q.Destination,
		Mode:         maps.Mode(mode),
		Alternatives: q.Alternatives,
	})
	if err != nil {
		if isNoResult(err) {
			return nil, geo.ErrNotFound
		}
		return nil, errors.Wrap(err, "directions request failed")
	}
	if len(routes) == 0 {
		return nil, geo.ErrNotFound
	}

	ret := make([]geo.Route, 0, len(routes))
	for _, r := range routes {
		ret = append(ret, convertRoute(r))
	}
	return ret, nil
}

func (c *Client) Geocode(ctx context.Context, address string) (*geo.GeocodeResult, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	res, err := c.c.Geocode(ctx, &maps.GeocodingRequest{Address: address})
	if err != nil {
		if isNoResult(err) {
			return nil, geo.ErrNotFound
		}
		return nil, errors.Wrapf(err, "geocoding %q failed", address)
	}
	if len(res) == 0 {
		return nil, geo.ErrNotFound
	}
	return convertGeocode(res[0]), nil
}

func (c *Client) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	res, err := c.c.ReverseGeocode(ctx, &maps.GeocodingRequest{LatLng: &maps.LatLng{Lat: lat, Lng: lng}})
	if err != nil {
		if isNoResult(err) {
			return "", geo.ErrNotFound
		}
		return "", errors.Wrap(err, "reverse geocoding failed")
	}
	if len(res) == 0 {
		return "", geo.ErrNotFound
	}
	return res[0].FormattedAddress, nil
}
