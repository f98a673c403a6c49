package geo

import (
	"fmt"
	"time"
)

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (l LatLng) String() string {
	return fmt.Sprintf("%g,%g", l.Lat, l.Lng)
}

type Place struct {
	PlaceID          string   `json:"place_id"`
	Name             string   `json:"name"`
	Address          string   `json:"address,omitempty"`
	Location         LatLng   `json:"location"`
	Rating           float32  `json:"rating,omitempty"`
	UserRatingsTotal int      `json:"user_ratings_total,omitempty"`
	PriceLevel       int      `json:"price_level,omitempty"`
	Types            []string `json:"types,omitempty"`
	OpenNow          *bool    `json:"open_now,omitempty"`
	BusinessStatus   string   `json:"business_status,omitempty"`
}

type Review struct {
	Author string `json:"author"`
	Rating int    `json:"rating"`
	Text   string `json:"text"`
}

type PlaceDetails struct {
	Place
	PhoneNumber  string   `json:"phone_number,omitempty"`
	Website      string   `json:"website,omitempty"`
	OpeningHours []string `json:"opening_hours,omitempty"`
	Reviews      []Review `json:"reviews,omitempty"`
}

type Route struct {
	Summary    string   `json:"summary"`
	Legs       []Leg    `json:"legs"`
	Polyline   string   `json:"polyline,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
	Copyrights string   `json:"copyrights,omitempty"`
}

type Leg struct {
	StartAddress    string `json:"start_address"`
	EndAddress      string `json:"end_address"`
	StartLocation   LatLng `json:"start_location"`
	EndLocation     LatLng `json:"end_location"`
	DistanceMeters  int    `json:"distance_meters"`
	DistanceText    string `json:"distance_text"`
	DurationSeconds int64  `json:"duration_seconds"`
	DurationText    string `json:"duration_text"`
	Steps           []Step `json:"steps,omitempty"`
}

type Step struct {
	Instructions    string `json:"instructions"`
	DistanceText    string `json:"distance_text"`
	DurationSeconds int64  `json:"duration_seconds"`
	TravelMode      string `json:"travel_mode,omitempty"`
}

type GeocodeResult struct {
	FormattedAddress string   `json:"formatted_address"`
	Location         LatLng   `json:"location"`
	PlaceID          string   `json:"place_id,omitempty"`
	Types            []string `json:"types,omitempty"`
}

// FormatDuration renders d the way route summaries are read out, e.g.
// "1 hour 5 mins".
func FormatDuration(d time.Duration) string {
	mins := int((d + 30*time.Second) / time.Minute)
	if mins < 1 {
		return "1 min"
	}
	h, m := mins/60, mins%60
	unit := func(n int, s string) string {
		if n == 1 {
			return fmt.Sprintf("%d %s", n, s)
		}
		return fmt.Sprintf("%d %ss", n, s)
	}
	switch {
	case h == 0:
		return unit(m, "min")
	case m == 0:
		return unit(h, "hour")
	default:
		return unit(h, "hour") + " " + unit(m, "min")
	}
}
