// Package matcher ranks available drivers by proximity to a pickup point.
package matcher

import (
	"sort"

	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/geo"
	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/models"
)

// Rank filters the roster to ONLINE drivers and orders them by ascending
// road-adjusted distance to the pickup. The sort is stable so roster order
// breaks ties. An empty result means no assignment is possible; it is not
// an error.
func Rank(pickup models.Coord, drivers []models.Driver) []models.RankedDriver {
	ranked := make([]models.RankedDriver, 0, len(drivers))
	for _, d := range drivers {
		if d.Status != models.DriverOnline {
			continue
		}
		ranked = append(ranked, models.RankedDriver{
			DriverID:   d.ID,
			Name:       d.Name,
			DistanceKm: geo.DistanceKm(d.Loc, pickup),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].DistanceKm < ranked[j].DistanceKm
	})
	return ranked
}
