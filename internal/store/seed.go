package store

import (
	"time"

	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/models"
)

// Seed reproduces the demo dataset: a fixed login roster and a few rides
// around central Cairo. Ride r3 is history and keeps its recorded numbers.
func Seed(now time.Time) State {
	dist := 18.5
	fare := 30.75
	return State{
		Users: []models.User{
			{ID: "a1", Name: "Mona", Role: models.RoleAdmin},
			{ID: "p1", Name: "Karim", Role: models.RolePassenger, Phone: "+201200000001"},
			{ID: "p2", Name: "Layla", Role: models.RolePassenger, Phone: "+201200000002"},
			{ID: "d1", Name: "John Doe", Role: models.RoleDriver, Phone: "+201000000001"},
			{ID: "d2", Name: "Jane Smith", Role: models.RoleDriver, Phone: "+201000000002"},
			{ID: "d3", Name: "Sam Wilson", Role: models.RoleDriver, Phone: "+201000000003"},
		},
		Drivers: []models.Driver{
			{
				User:    models.User{ID: "d1", Name: "John Doe", Role: models.RoleDriver, Phone: "+201000000001"},
				Status:  models.DriverOffline,
				Loc:     models.Coord{Lat: 30.0626, Lon: 31.2263}, // Zamalek
				Vehicle: "Toyota Prius",
				Earnings: 8.30,
			},
			{
				User:    models.User{ID: "d2", Name: "Jane Smith", Role: models.RoleDriver, Phone: "+201000000002"},
				Status:  models.DriverOffline,
				Loc:     models.Coord{Lat: 30.0444, Lon: 31.2357}, // Tahrir Square
				Vehicle: "Honda Civic",
			},
			{
				User:    models.User{ID: "d3", Name: "Sam Wilson", Role: models.RoleDriver, Phone: "+201000000003"},
				Status:  models.DriverOffline,
				Loc:     models.Coord{Lat: 29.9753, Lon: 31.2403}, // Maadi
				Vehicle: "Ford Fusion",
				Blocked: true,
			},
		},
		Rides: []models.Ride{
			{
				ID:            "r1",
				PassengerName: "Hossam",
				PickupLabel:   "AUC Tahrir Square",
				DropoffLabel:  "Khan el-Khalili",
				Pickup:        models.Coord{Lat: 30.0449, Lon: 31.2360},
				Dropoff:       models.Coord{Lat: 30.0478, Lon: 31.2623},
				Status:        models.RidePending,
				RequestedAt:   now,
			},
			{
				ID:            "r2",
				PassengerName: "Fatima",
				PickupLabel:   "Cairo Tower",
				DropoffLabel:  "City Stars Mall",
				Pickup:        models.Coord{Lat: 30.0459, Lon: 31.2243},
				Dropoff:       models.Coord{Lat: 30.0732, Lon: 31.3413},
				Status:        models.RidePending,
				RequestedAt:   now.Add(-5 * time.Minute),
			},
			{
				ID:            "r3",
				PassengerName: "Ali",
				PickupLabel:   "Maadi Grand Mall",
				DropoffLabel:  "Cairo Festival City Mall",
				Pickup:        models.Coord{Lat: 29.9622, Lon: 31.2497},
				Dropoff:       models.Coord{Lat: 30.0271, Lon: 31.4085},
				Status:        models.RideCompleted,
				DriverID:      "d1",
				RequestedAt:   now.Add(-2 * time.Hour),
				DistanceKm:    &dist,
				Fare:          &fare,
			},
		},
		Tariff: models.Tariff{BaseFare: 2.00, PerKmRate: 1.50, CommissionRate: 0.20},
	}
}
