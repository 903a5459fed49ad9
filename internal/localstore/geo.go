package localstore

import (
	"sort"

	"github.com/localnerve/crmsync/internal/models"
	"github.com/umahmood/haversine"
)

// SignDistance is a sign capture with its distance from a query point.
type SignDistance struct {
	Sign       models.Sign
	DistanceKm float64
}

// SignsNear returns the signs with coordinates within radiusKm of (lat, lng),
// nearest first. Signs without coordinates are skipped.
func (s *Store) SignsNear(lat, lng, radiusKm float64) []SignDistance {
	origin := haversine.Coord{Lat: lat, Lon: lng}
	var out []SignDistance
	for _, sign := range s.Signs() {
		if sign.Lat == nil || sign.Lng == nil {
			continue
		}
		_, km := haversine.Distance(origin, haversine.Coord{Lat: *sign.Lat, Lon: *sign.Lng})
		if km <= radiusKm {
			out = append(out, SignDistance{Sign: sign, DistanceKm: km})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	return out
}
