// Package geotest provides an in-memory geo.Provider for tests.
package geotest

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-go-golems/waypoint/pkg/geo"
)

// Provider answers from canned data and records every call.
type Provider struct {
	Places  []geo.Place
	Routes  []geo.Route
	Details map[string]*geo.PlaceDetails
	// Geocodes maps addresses to results; unknown addresses are not found.
	Geocodes map[string]*geo.GeocodeResult
	Address  string

	// Err, when set, is returned by every call.
	Err error
	// Block makes calls wait for context cancellation.
	Block bool
	// Panic makes calls panic.
	Panic bool

	mu               sync.Mutex
	PlaceQueries     []geo.PlaceQuery
	DirectionQueries []geo.DirectionsQuery
	DetailIDs        []string
}

var _ geo.Provider = (*Provider)(nil)

func (p *Provider) before(ctx context.Context) error {
	if p.Panic {
		panic("geotest: provider exploded")
	}
	if p.Block {
		<-ctx.Done()
		return ctx.Err()
	}
	return p.Err
}

func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.PlaceQueries) + len(p.DirectionQueries) + len(p.DetailIDs)
}

func (p *Provider) SearchPlaces(ctx context.Context, q geo.PlaceQuery) ([]geo.Place, error) {
	p.mu.Lock()
	p.PlaceQueries = append(p.PlaceQueries, q)
	p.mu.Unlock()
	if err := p.before(ctx); err != nil {
		return nil, err
	}
	return append([]geo.Place{}, p.Places...), nil
}

func (p *Provider) PlaceDetails(ctx context.Context, placeID string) (*geo.PlaceDetails, error) {
	p.mu.Lock()
	p.DetailIDs = append(p.DetailIDs, placeID)
	p.mu.Unlock()
	if err := p.before(ctx); err != nil {
		return nil, err
	}
	d, ok := p.Details[placeID]
	if !ok {
		return nil, geo.ErrNotFound
	}
	return d, nil
}

func (p *Provider) Directions(ctx context.Context, q geo.DirectionsQuery) ([]geo.Route, error) {
	p.mu.Lock()
	p.DirectionQueries = append(p.DirectionQueries, q)
	p.mu.Unlock()
	if err := p.before(ctx); err != nil {
		return nil, err
	}
	if len(p.Routes) == 0 {
		return nil, geo.ErrNotFound
	}
	return p.Routes, nil
}

func (p *Provider) Geocode(ctx context.Context, address string) (*geo.GeocodeResult, error) {
	if err := p.before(ctx); err != nil {
		return nil, err
	}
	r, ok := p.Geocodes[address]
	if !ok {
		return nil, geo.ErrNotFound
	}
	return r, nil
}

func (p *Provider) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	if err := p.before(ctx); err != nil {
		return "", err
	}
	if p.Address == "" {
		return "", geo.ErrNotFound
	}
	return p.Address, nil
}

// MakePlaces returns n distinct places named "Place 1".."Place n".
func MakePlaces(n int) []geo.Place {
	ret := make([]geo.Place, 0, n)
	for i := 1; i <= n; i++ {
		ret = append(ret, geo.Place{
			PlaceID:  fmt.Sprintf("place-%d", i),
			Name:     fmt.Sprintf("Place %d", i),
			Address:  fmt.Sprintf("%d Market St", i),
			Location: geo.LatLng{Lat: 37.77 + float64(i)/1000, Lng: -122.41},
			Rating:   4.0,
		})
	}
	return ret
}
