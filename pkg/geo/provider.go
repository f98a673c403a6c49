// Package geo is the boundary to the geographic data provider: place search,
// place details, directions and geocoding.
package geo

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the provider has no result for a lookup.
var ErrNotFound = errors.New("geo: not found")

type TravelMode string

const (
	TravelModeDriving   TravelMode = "driving"
	TravelModeWalking   TravelMode = "walking"
	TravelModeBicycling TravelMode = "bicycling"
	TravelModeTransit   TravelMode = "transit"
)

// TravelModes lists the supported modes in advertised order.
var TravelModes = []TravelMode{
	TravelModeDriving,
	TravelModeWalking,
	TravelModeBicycling,
	TravelModeTransit,
}

// SearchPlaceTypes are the place types the assistant may filter on.
var SearchPlaceTypes = []string{"restaurant", "cafe", "bar", "store", "park", "museum"}

const DefaultSearchRadius = 5000

// MaxSearchRadius is the largest radius the Places API accepts, in meters.
const MaxSearchRadius = 50000

type PlaceQuery struct {
	Query string `json:"query"`
	// Location is "lat,lng" or a free-form address. Empty means no location bias.
	Location  string `json:"location,omitempty"`
	Radius    uint   `json:"radius,omitempty"`
	PlaceType string `json:"place_type,omitempty"`
}

type DirectionsQuery struct {
	Origin       string     `json:"origin"`
	Destination  string     `json:"destination"`
	Mode         TravelMode `json:"mode"`
	Alternatives bool       `json:"alternatives"`
}

// Provider is implemented by geographic backends. Implementations must be
// safe for concurrent use.
type Provider interface {
	// SearchPlaces returns places in the provider's relevance order. No match
	// yields an empty slice, not an error.
	SearchPlaces(ctx context.Context, q PlaceQuery) ([]Place, error)
	PlaceDetails(ctx context.Context, placeID string) (*PlaceDetails, error)
	// Directions returns ErrNotFound when no route exists.
	Directions(ctx context.Context, q DirectionsQuery) ([]Route, error)
	Geocode(ctx context.Context, address string) (*GeocodeResult, error)
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}
