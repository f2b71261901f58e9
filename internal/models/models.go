package models

import "time"

// Role identifies which kind of actor is driving an operation. The set is
// closed; handlers reject anything else before it reaches the services.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleDriver    Role = "DRIVER"
	RolePassenger Role = "PASSENGER"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDriver, RolePassenger:
		return true
	}
	return false
}

// DriverStatus is the driver's availability. A blocked driver is forced to
// OFFLINE and may not leave it until unblocked.
type DriverStatus string

const (
	DriverOffline DriverStatus = "OFFLINE"
	DriverOnline  DriverStatus = "ONLINE"
	DriverBusy    DriverStatus = "BUSY"
)

// RideStatus is the ride lifecycle state. COMPLETED and CANCELLED are
// terminal; see rides.Service for the transition rules.
type RideStatus string

const (
	RidePending         RideStatus = "PENDING"
	RideAssigned        RideStatus = "ASSIGNED"
	RideEnRouteToPickup RideStatus = "EN_ROUTE_TO_PICKUP"
	RideDriverArrived   RideStatus = "DRIVER_ARRIVED"
	RideInProgress      RideStatus = "IN_PROGRESS"
	RideCompleted       RideStatus = "COMPLETED"
	RideCancelled       RideStatus = "CANCELLED"
)

func (s RideStatus) Terminal() bool {
	return s == RideCompleted || s == RideCancelled
}

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
	Phone string `json:"phone,omitempty"`
}

type Driver struct {
	User
	Status   DriverStatus `json:"status"`
	Loc      Coord        `json:"loc"`
	Vehicle  string       `json:"vehicle"`
	Earnings float64      `json:"earnings"`
	Blocked  bool         `json:"blocked"`
	Updated  time.Time    `json:"updated"`
}

type ChatMessage struct {
	ID       string    `json:"id"`
	SenderID string    `json:"sender_id"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sent_at"`
}

// Ride keeps history forever: cancelled and completed rides are never
// removed from the store. DistanceKm/Fare stay nil until the calculator has
// run; ETAMin stays nil until a driver accepts.
type Ride struct {
	ID            string        `json:"id"`
	PassengerName string        `json:"passenger_name"`
	PickupLabel   string        `json:"pickup_label"`
	DropoffLabel  string        `json:"dropoff_label"`
	Pickup        Coord         `json:"pickup"`
	Dropoff       Coord         `json:"dropoff"`
	Status        RideStatus    `json:"status"`
	DriverID      string        `json:"driver_id,omitempty"`
	RequestedAt   time.Time     `json:"requested_at"`
	DistanceKm    *float64      `json:"distance_km,omitempty"`
	Fare          *float64      `json:"fare,omitempty"`
	ETAMin        *int          `json:"eta_min,omitempty"`
	Messages      []ChatMessage `json:"messages,omitempty"`
}

// Priced reports whether the calculator has produced distance and fare,
// which gates admin assignment.
func (r *Ride) Priced() bool { return r.DistanceKm != nil && r.Fare != nil }

type Tariff struct {
	BaseFare       float64 `json:"base_fare"`
	PerKmRate      float64 `json:"per_km_rate"`
	CommissionRate float64 `json:"commission_rate"`
}

type RankedDriver struct {
	DriverID   string  `json:"driver_id"`
	Name       string  `json:"name"`
	DistanceKm float64 `json:"distance_km"`
}

type PlaceResult struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Loc     Coord  `json:"loc"`
}
