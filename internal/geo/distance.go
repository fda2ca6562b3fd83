package geo

import (
	"math"

	"github.com/kroegman/neartrip/internal/config"
)

const earthRadiusMeters = 6371000

// Distance returns the great-circle (haversine) distance in meters
// between two points given in decimal degrees.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	rlat1 := lat1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	dlat := (lat2 - lat1) * math.Pi / 180
	dlon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// ClosestStation returns the active station nearest to (lat, lon) and
// its distance in meters. Stations marked inactive or carrying
// non-finite coordinates are skipped; ties keep the earlier station.
// ok is false when no station qualifies or the input is not finite.
func ClosestStation(lat, lon float64, stations []config.Station) (config.Station, float64, bool) {
	if !finite(lat) || !finite(lon) {
		return config.Station{}, 0, false
	}

	var (
		best     config.Station
		bestDist float64
		found    bool
	)
	for _, s := range stations {
		if !s.IsActive() || !finite(s.Latitude) || !finite(s.Longitude) {
			continue
		}
		d := Distance(lat, lon, s.Latitude, s.Longitude)
		if !found || d < bestDist {
			best = s
			bestDist = d
			found = true
		}
	}
	return best, bestDist, found
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
