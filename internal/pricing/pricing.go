// Package pricing computes fares, driver ETAs, and tariff suggestions.
package pricing

import (
	"errors"
	"math"

	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/models"
)

const avgSpeedKmh = 30 // average city speed

// etaBufferMin pads the estimate for parking and traffic.
const etaBufferMin = 2

var (
	rushPreset     = models.Tariff{BaseFare: 6.00, PerKmRate: 3.00}
	standardPreset = models.Tariff{BaseFare: 4.00, PerKmRate: 2.00}
)

var ErrInvalidTariff = errors.New("tariff: base fare and per-km rate must be positive, commission in [0,1]")

// Fare is baseFare + distance*rate, rounded to two decimals. The tariff must
// already be validated.
func Fare(distanceKm float64, t models.Tariff) float64 {
	return round2(t.BaseFare + distanceKm*t.PerKmRate)
}

// ETAMinutes estimates how long a driver needs to cover a road-adjusted
// distance, in whole minutes.
func ETAMinutes(distanceKm float64) int {
	return int(math.Ceil(distanceKm/avgSpeedKmh*60)) + etaBufferMin
}

// Validate enforces the tariff invariants.
func Validate(t models.Tariff) error {
	if t.BaseFare <= 0 || t.PerKmRate <= 0 || t.CommissionRate < 0 || t.CommissionRate > 1 {
		return ErrInvalidTariff
	}
	return nil
}

// Recommend picks the rush preset during the 8-10 and 16-19 windows
// (inclusive) and the standard preset otherwise. The commission rate is
// carried over from the current tariff, never replaced.
func Recommend(hour int, current models.Tariff) models.Tariff {
	rush := (hour >= 8 && hour <= 10) || (hour >= 16 && hour <= 19)
	suggested := standardPreset
	if rush {
		suggested = rushPreset
	}
	suggested.CommissionRate = current.CommissionRate
	return suggested
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
