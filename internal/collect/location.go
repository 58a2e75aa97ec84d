package collect

import (
	"context"
	"math"

	"github.com/ctxguard-project/ctxguard/internal/core"
)

// Fix is a raw position reading from whatever positioning source the host
// platform offers.
type Fix struct {
	Latitude  float64
	Longitude float64
}

// FixSource produces the current position, or an error when positioning is
// unavailable (no permission, no signal).
type FixSource func(ctx context.Context) (Fix, error)

// Location builds a location provider that matches raw fixes against the
// enrolled places in cfg. A fix inside the configured radius of a place is a
// known place with that place's category; anything else is an unknown place
// with UNKNOWN category.
func Location(cfg core.LocationConfig, source FixSource) core.LocationFunc {
	return func(ctx context.Context) (*core.LocationContext, bool) {
		if source == nil {
			return nil, false
		}
		fix, err := source(ctx)
		if err != nil {
			return nil, false
		}

		loc := &core.LocationContext{
			Category:  core.LocationUnknown,
			Latitude:  fix.Latitude,
			Longitude: fix.Longitude,
		}
		for _, place := range cfg.Places {
			if HaversineMeters(fix.Latitude, fix.Longitude, place.Latitude, place.Longitude) <= cfg.RadiusMeters {
				loc.KnownPlace = true
				loc.PlaceName = place.Name
				loc.Category = parsePlaceCategory(place.Category)
				break
			}
		}
		return loc, true
	}
}

func parsePlaceCategory(s string) core.LocationCategory {
	switch s {
	case "home":
		return core.LocationHome
	case "work":
		return core.LocationWork
	case "public":
		return core.LocationPublic
	default:
		return core.LocationUnknown
	}
}

const earthRadiusMeters = 6371000.0

// HaversineMeters returns the great-circle distance between two coordinates.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
