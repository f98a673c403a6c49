package googlemaps

import (
	"github.com/go-go-golems/waypoint/pkg/geo"
	"googlemaps.github.io/maps"
)

func latLng(l maps.LatLng) geo.LatLng {
	return geo.LatLng{Lat: l.Lat, Lng: l.Lng}
}

func convertSearchResult(r maps.PlacesSearchResult) geo.Place {
	p := geo.Place{
		PlaceID:          r.PlaceID,
		Name:             r.Name,
		Address:          r.FormattedAddress,
		Location:         latLng(r.Geometry.Location),
		Rating:           r.Rating,
		UserRatingsTotal: r.UserRatingsTotal,
		PriceLevel:       r.PriceLevel,
		Types:            r.Types,
		BusinessStatus:   r.BusinessStatus,
	}
	if p.Address == "" {
		p.Address = r.Vicinity
	}
	if r.OpeningHours != nil {
		p.OpenNow = r.OpeningHours.OpenNow
	}
	return p
}

func convertDetails(r maps.PlaceDetailsResult) *geo.PlaceDetails {
	d := &geo.PlaceDetails{
		Place: geo.Place{
			PlaceID:          r.PlaceID,
			Name:             r.Name,
			Address:          r.FormattedAddress,
			Location:         latLng(r.Geometry.Location),
			Rating:           r.Rating,
			UserRatingsTotal: r.UserRatingsTotal,
			PriceLevel:       r.PriceLevel,
			Types:            r.Types,
			BusinessStatus:   r.BusinessStatus,
		},
		PhoneNumber: r.FormattedPhoneNumber,
		Website:     r.Website,
	}
	if r.OpeningHours != nil {
		d.OpenNow = r.OpeningHours.OpenNow
		d.OpeningHours = r.OpeningHours.WeekdayText
	}
	for _, rv := range r.Reviews {
		d.Reviews = append(d.Reviews, geo.Review{
			Author: rv.AuthorName,
			Rating: rv.Rating,
			Text:   rv.Text,
		})
	}
	return d
}

func convertRoute(r maps.Route) geo.Route {
	ret := geo.Route{
		Summary:    r.Summary,
		Polyline:   r.OverviewPolyline.Points,
		Warnings:   r.Warnings,
		Copyrights: r.Copyrights,
		Legs:       make([]geo.Leg, 0, len(r.Legs)),
	}
	for _, l := range r.Legs {
		if l == nil {
			continue
		}
		leg := geo.Leg{
			StartAddress:    l.StartAddress,
			EndAddress:      l.EndAddress,
			StartLocation:   latLng(l.StartLocation),
			EndLocation:     latLng(l.EndLocation),
			DistanceMeters:  l.Distance.Meters,
			DistanceText:    l.Distance.HumanReadable,
			DurationSeconds: int64(l.Duration.Seconds()),
			DurationText:    geo.FormatDuration(l.Duration),
		}
		for _, s := range l.Steps {
			if s == nil {
				continue
			}
			leg.Steps = append(leg.Steps, geo.Step{
				Instructions:    s.HTMLInstructions,
				DistanceText:    s.Distance.HumanReadable,
				DurationSeconds: int64(s.Duration.Seconds()),
				TravelMode:      s.TravelMode,
			})
		}
		ret.Legs = append(ret.Legs, leg)
	}
	return ret
}

func convertGeocode(r maps.GeocodingResult) *geo.GeocodeResult {
	return &geo.GeocodeResult{
		FormattedAddress: r.FormattedAddress,
		Location:         latLng(r.Geometry.Location),
		PlaceID:          r.PlaceID,
		Types:            r.Types,
	}
}
