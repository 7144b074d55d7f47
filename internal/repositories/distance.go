package repositories

import (
	"math"
	"sort"

	"storefront/internal/models"
)

const earthRadiusMeters = 6371000

// haversineMeters returns the great-circle distance between two
// (lng, lat) points in meters.
func haversineMeters(lng1, lat1, lng2, lat2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// boundingBox returns a lng/lat box that fully contains the circle of
// radius meters around (lng, lat). Near the poles the longitude span
// degenerates; clamp to the full range.
func boundingBox(lng, lat, radius float64) (minLng, minLat, maxLng, maxLat float64) {
	latDelta := radius / earthRadiusMeters * 180 / math.Pi
	minLat = math.Max(lat-latDelta, -90)
	maxLat = math.Min(lat+latDelta, 90)

	cos := math.Cos(lat * math.Pi / 180)
	if cos < 1e-6 {
		return -180, minLat, 180, maxLat
	}
	lngDelta := latDelta / cos
	minLng = lng - lngDelta
	maxLng = lng + lngDelta
	if minLng < -180 || maxLng > 180 {
		minLng, maxLng = -180, 180
	}
	return minLng, minLat, maxLng, maxLat
}

// nearestWithin applies the exact distance cut and nearest-first order, then
// projects to summaries capped at limit.
func nearestWithin(stores []models.Store, lng, lat, maxMeters float64, limit int) []models.StoreSummary {
	type candidate struct {
		store    models.Store
		distance float64
	}
	candidates := make([]candidate, 0, len(stores))
	for _, s := range stores {
		d := haversineMeters(lng, lat, s.Location.Lng, s.Location.Lat)
		if d <= maxMeters {
			candidates = append(candidates, candidate{store: s, distance: d})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	summaries := make([]models.StoreSummary, 0, len(candidates))
	for _, c := range candidates {
		summaries = append(summaries, models.StoreSummary{
			Slug:        c.store.Slug,
			Name:        c.store.Name,
			Description: c.store.Description,
			Location:    c.store.Location,
			Photo:       c.store.Photo,
		})
	}
	return summaries
}
