// Package maps binds the built-in geographic capabilities to a geo.Provider.
package maps

import (
	"context"

	"github.com/go-go-golems/waypoint/pkg/capabilities"
	"github.com/go-go-golems/waypoint/pkg/geo"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

const (
	SearchPlaces    = "search_places"
	GetDirections   = "get_directions"
	GetPlaceDetails = "get_place_details"
)

func travelModes() []string {
	ret := make([]string, 0, len(geo.TravelModes))
	for _, m := range geo.TravelModes {
		ret = append(ret, string(m))
	}
	return ret
}

func SearchPlacesSchema() capabilities.Schema {
	return capabilities.Schema{
		Name: SearchPlaces,
		Description: "Search for places such as restaurants, cafes, shops or attractions. " +
			"Use this whenever the user asks for places near them or for recommendations.",
		Kind: capabilities.KindSearch,
		Parameters: []capabilities.Parameter{
			{
				Name:        "query",
				Type:        capabilities.TypeString,
				Description: "What to search for, e.g. 'italian restaurants' or 'coffee shops'",
				Required:    true,
			},
			{
				Name:           "location",
				Type:           capabilities.TypeString,
				Description:    "Location to search around, as 'lat,lng' or an address. Use 'current location' for the user's own position.",
				CallerLocation: true,
			},
			{
				Name:        "radius",
				Type:        capabilities.TypeInteger,
				Description: "Search radius in meters",
				Default:     geo.DefaultSearchRadius,
				Minimum:     capabilities.Bound(1),
				Maximum:     capabilities.Bound(geo.MaxSearchRadius),
			},
			{
				Name:          "place_type",
				Type:          capabilities.TypeString,
				Description:   "Restrict results to one type of place",
				AllowedValues: append([]string(nil), geo.SearchPlaceTypes...),
			},
		},
	}
}

func GetDirectionsSchema() capabilities.Schema {
	return capabilities.Schema{
		Name:        GetDirections,
		Description: "Get directions between two locations.",
		Kind:        capabilities.KindDirections,
		Parameters: []capabilities.Parameter{
			{
				Name:           "origin",
				Type:           capabilities.TypeString,
				Description:    "Starting point, as 'lat,lng' or an address. Use 'current location' for the user's own position.",
				Required:       true,
				CallerLocation: true,
			},
			{
				Name:        "destination",
				Type:        capabilities.TypeString,
				Description: "Where to go, as 'lat,lng', an address or a place name",
				Required:    true,
			},
			{
				Name:          "mode",
				Type:          capabilities.TypeString,
				Description:   "Travel mode",
				Default:       string(geo.TravelModeDriving),
				AllowedValues: travelModes(),
			},
		},
	}
}

func GetPlaceDetailsSchema() capabilities.Schema {
	return capabilities.Schema{
		Name:        GetPlaceDetails,
		Description: "Get opening hours, phone number, website and reviews for a place returned by search_places.",
		Kind:        capabilities.KindLookup,
		Parameters: []capabilities.Parameter{
			{
				Name:        "place_id",
				Type:        capabilities.TypeString,
				Description: "The place_id of a previously found place",
				Required:    true,
			},
		},
	}
}

type searchArgs struct {
	Query     string `mapstructure:"query"`
	Location  string `mapstructure:"location"`
	Radius    uint   `mapstructure:"radius"`
	PlaceType string `mapstructure:"place_type"`
}

type directionsArgs struct {
	Origin      string `mapstructure:"origin"`
	Destination string `mapstructure:"destination"`
	Mode        string `mapstructure:"mode"`
}

type detailsArgs struct {
	PlaceID string `mapstructure:"place_id"`
}

func decode(args capabilities.Arguments, out any) error {
	d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return errors.Wrap(d.Decode(map[string]any(args)), "could not decode arguments")
}

// Register adds the three built-in capabilities, all served by p.
func Register(reg *capabilities.Registry, p geo.Provider) error {
	if err := reg.Register(SearchPlacesSchema(), searchHandler(p)); err != nil {
		return err
	}
	if err := reg.Register(GetDirectionsSchema(), directionsHandler(p)); err != nil {
		return err
	}
	return reg.Register(GetPlaceDetailsSchema(), detailsHandler(p))
}

// NewRegistry is a registry holding only the built-in capabilities.
func NewRegistry(p geo.Provider) (*capabilities.Registry, error) {
	reg := capabilities.NewRegistry()
	if err := Register(reg, p); err != nil {
		return nil, err
	}
	return reg, nil
}

func searchHandler(p geo.Provider) capabilities.Handler {
	return func(ctx context.Context, args capabilities.Arguments) (*capabilities.Output, error) {
		var a searchArgs
		if err := decode(args, &a); err != nil {
			return nil, err
		}
		places, err := p.SearchPlaces(ctx, geo.PlaceQuery{
			Query:     a.Query,
			Location:  a.Location,
			Radius:    a.Radius,
			PlaceType: a.PlaceType,
		})
		if err != nil {
			return nil, err
		}
		if len(places) == 0 {
			return nil, errors.Wrapf(geo.ErrNotFound, "no places matched %q", a.Query)
		}
		return &capabilities.Output{Places: places}, nil
	}
}

func directionsHandler(p geo.Provider) capabilities.Handler {
	return func(ctx context.Context, args capabilities.Arguments) (*capabilities.Output, error) {
		var a directionsArgs
		if err := decode(args, &a); err != nil {
			return nil, err
		}
		routes, err := p.Directions(ctx, geo.DirectionsQuery{
			Origin:       a.Origin,
			Destination:  a.Destination,
			Mode:         geo.TravelMode(a.Mode),
			Alternatives: true,
		})
		if err != nil {
			return nil, err
		}
		if len(routes) == 0 {
			return nil, errors.Wrapf(geo.ErrNotFound, "no route from %q to %q", a.Origin, a.Destination)
		}
		return &capabilities.Output{Routes: routes}, nil
	}
}

func detailsHandler(p geo.Provider) capabilities.Handler {
	return func(ctx context.Context, args capabilities.Arguments) (*capabilities.Output, error) {
		var a detailsArgs
		if err := decode(args, &a); err != nil {
			return nil, err
		}
		d, err := p.PlaceDetails(ctx, a.PlaceID)
		if err != nil {
			return nil, err
		}
		return &capabilities.Output{Place: d}, nil
	}
}
