// Package rides is the coordinator: the ride lifecycle state machine plus
// the role-scoped operations the admin, passenger, and driver views invoke.
// Every transition runs as one store transaction with a compare-and-swap on
// the ride's current status, so two actors racing on the same ride produce
// exactly one winner and one ErrConflict.
package rides

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/geo"
	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/matcher"
	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/models"
	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/observability"
	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/pricing"
	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/store"
)

// Notifier pushes events to connected clients. Best-effort; delivery
// failures never fail a transition.
type Notifier interface {
	OfferRide(driverID string, ride models.Ride)
	Chat(rideID string, msg models.ChatMessage)
}

// Payments optionally holds the fare when a ride is assigned, captures it
// on completion, and releases it on reject or cancel.
type Payments interface {
	Hold(ctx context.Context, amount int64, currency, customerID string) (string, error)
	Capture(ctx context.Context, holdID string) error
	Release(ctx context.Context, holdID string) error
}

type Service struct {
	Store    *store.Store
	Journal  store.Journal // optional write-through ride journal
	Notifier Notifier      // optional
	Payments Payments      // optional
	Logger   *slog.Logger
	Now      func() time.Time

	holdMu sync.Mutex
	holds  map[string]string // rideID -> payment hold ID
}

func NewService(st *store.Store, logger *slog.Logger) *Service {
	return &Service{
		Store:  st,
		Logger: logger,
		Now:    time.Now,
		holds:  make(map[string]string),
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Quote prices a prospective trip under the current tariff without creating
// anything.
func (s *Service) Quote(pickup, dropoff models.Coord) (distanceKm, fare float64, err error) {
	if !validCoord(pickup) || !validCoord(dropoff) {
		return 0, 0, ErrValidation
	}
	st, _ := s.Store.Snapshot()
	d := geo.DistanceKm(pickup, dropoff)
	return d, pricing.Fare(d, st.Tariff), nil
}

// Create opens a new PENDING ride for the passenger, priced under the
// current tariff. Rides are append-only history; they are never deleted.
func (s *Service) Create(ctx context.Context, passenger models.User, pickupLabel, dropoffLabel string, pickup, dropoff models.Coord) (models.Ride, error) {
	if passenger.Role != models.RolePassenger {
		return models.Ride{}, ErrForbidden
	}
	if pickupLabel == "" || dropoffLabel == "" || !validCoord(pickup) || !validCoord(dropoff) {
		return models.Ride{}, ErrValidation
	}
	ride := models.Ride{
		ID:            uuid.NewString(),
		PassengerName: passenger.Name,
		PickupLabel:   pickupLabel,
		DropoffLabel:  dropoffLabel,
		Pickup:        pickup,
		Dropoff:       dropoff,
		Status:        models.RidePending,
		RequestedAt:   s.now(),
	}
	err := s.Store.Update(func(st *store.State) error {
		d := geo.DistanceKm(pickup, dropoff)
		f := pricing.Fare(d, st.Tariff)
		ride.DistanceKm = &d
		ride.Fare = &f
		st.Rides = append(st.Rides, ride)
		return nil
	})
	if err != nil {
		return models.Ride{}, err
	}
	observability.RidesCreated.Inc()
	s.journalSave(ride)
	return ride, nil
}

// EnsurePriced computes distance and fare for a PENDING ride that predates
// the calculator (seed data). No-op when already priced.
func (s *Service) EnsurePriced(rideID string) (models.Ride, error) {
	var out models.Ride
	err := s.Store.Update(func(st *store.State) error {
		r := st.Ride(rideID)
		if r == nil {
			return ErrNotFound
		}
		if r.Status != models.RidePending {
			return ErrConflict
		}
		if !r.Priced() {
			d := geo.DistanceKm(r.Pickup, r.Dropoff)
			f := pricing.Fare(d, st.Tariff)
			r.DistanceKm = &d
			r.Fare = &f
		}
		out = *r
		return nil
	})
	if err != nil {
		return models.Ride{}, err
	}
	s.journalUpdate(out)
	return out, nil
}

// RankForRide orders online drivers by proximity to the ride's pickup.
// An empty result means no assignment is possible, not an error.
func (s *Service) RankForRide(rideID string) ([]models.RankedDriver, error) {
	st, _ := s.Store.Snapshot()
	r := st.Ride(rideID)
	if r == nil {
		return nil, ErrNotFound
	}
	if r.Status != models.RidePending {
		return nil, ErrConflict
	}
	return matcher.Rank(r.Pickup, st.Drivers), nil
}

// Assign moves a priced PENDING ride to ASSIGNED and marks the chosen
// driver BUSY. Admin only.
func (s *Service) Assign(ctx context.Context, admin models.User, rideID, driverID string) (models.Ride, error) {
	if admin.Role != models.RoleAdmin {
		return models.Ride{}, ErrForbidden
	}
	var out models.Ride
	err := s.Store.Update(func(st *store.State) error {
		r := st.Ride(rideID)
		if r == nil {
			return ErrNotFound
		}
		if r.Status != models.RidePending {
			return ErrConflict
		}
		if !r.Priced() {
			return ErrUnpriced
		}
		d := st.Driver(driverID)
		if d == nil {
			return ErrNotFound
		}
		if d.Blocked || d.Status != models.DriverOnline {
			return ErrDriverUnavailable
		}
		r.Status = models.RideAssigned
		r.DriverID = driverID
		d.Status = models.DriverBusy
		out = *r
		return nil
	})
	if err != nil {
		return models.Ride{}, err
	}
	observability.Assignments.Inc()
	s.refreshOnlineGauge()
	s.journalUpdate(out)
	if s.Notifier != nil {
		s.Notifier.OfferRide(driverID, out)
	}
	s.holdFare(ctx, out)
	return out, nil
}

// Accept is the driver taking an assigned ride; the ETA to pickup is fixed
// here from the driver's current position.
func (s *Service) Accept(ctx context.Context, driver models.User, rideID string) (models.Ride, error) {
	var out models.Ride
	err := s.driverTransition(driver, rideID, models.RideAssigned, models.RideEnRouteToPickup, func(st *store.State, r *models.Ride, d *models.Driver) {
		eta := pricing.ETAMinutes(geo.DistanceKm(d.Loc, r.Pickup))
		r.ETAMin = &eta
		out = *r
	})
	if err != nil {
		return models.Ride{}, err
	}
	s.journalUpdate(out)
	return out, nil
}

// Reject returns an assigned ride to the unassigned pool and the driver to
// ONLINE.
func (s *Service) Reject(ctx context.Context, driver models.User, rideID string) (models.Ride, error) {
	var out models.Ride
	err := s.driverTransition(driver, rideID, models.RideAssigned, models.RidePending, func(st *store.State, r *models.Ride, d *models.Driver) {
		r.DriverID = ""
		r.ETAMin = nil
		d.Status = models.DriverOnline
		out = *r
	})
	if err != nil {
		return models.Ride{}, err
	}
	s.refreshOnlineGauge()
	s.journalUpdate(out)
	s.releaseHold(ctx, rideID)
	return out, nil
}

// Arrived marks the driver at the pickup point.
func (s *Service) Arrived(ctx context.Context, driver models.User, rideID string) (models.Ride, error) {
	var out models.Ride
	err := s.driverTransition(driver, rideID, models.RideEnRouteToPickup, models.RideDriverArrived, func(st *store.State, r *models.Ride, d *models.Driver) {
		out = *r
	})
	if err != nil {
		return models.Ride{}, err
	}
	s.journalUpdate(out)
	return out, nil
}

// Start begins the trip. Setting the driver BUSY here is idempotent: the
// assignment already did it.
func (s *Service) Start(ctx context.Context, driver models.User, rideID string) (models.Ride, error) {
	var out models.Ride
	err := s.driverTransition(driver, rideID, models.RideDriverArrived, models.RideInProgress, func(st *store.State, r *models.Ride, d *models.Driver) {
		d.Status = models.DriverBusy
		out = *r
	})
	if err != nil {
		return models.Ride{}, err
	}
	s.journalUpdate(out)
	return out, nil
}

// Complete finishes the trip: the driver earns fare x (1 - commission) and
// goes back ONLINE.
func (s *Service) Complete(ctx context.Context, driver models.User, rideID string) (models.Ride, error) {
	var out models.Ride
	err := s.driverTransition(driver, rideID, models.RideInProgress, models.RideCompleted, func(st *store.State, r *models.Ride, d *models.Driver) {
		fare := 0.0
		if r.Fare != nil {
			fare = *r.Fare
		}
		d.Earnings = round2(d.Earnings + fare*(1-st.Tariff.CommissionRate))
		d.Status = models.DriverOnline
		out = *r
	})
	if err != nil {
		return models.Ride{}, err
	}
	observability.Completions.Inc()
	s.refreshOnlineGauge()
	s.journalUpdate(out)
	s.captureHold(ctx, rideID)
	return out, nil
}

// Cancel is passenger-only and only from PENDING.
func (s *Service) Cancel(ctx context.Context, passenger models.User, rideID string) (models.Ride, error) {
	if passenger.Role != models.RolePassenger {
		return models.Ride{}, ErrForbidden
	}
	var out models.Ride
	err := s.Store.Update(func(st *store.State) error {
		r := st.Ride(rideID)
		if r == nil {
			return ErrNotFound
		}
		if r.PassengerName != passenger.Name {
			return ErrForbidden
		}
		if r.Status != models.RidePending {
			return ErrConflict
		}
		r.Status = models.RideCancelled
		out = *r
		return nil
	})
	if err != nil {
		return models.Ride{}, err
	}
	observability.Cancellations.Inc()
	s.journalUpdate(out)
	s.releaseHold(ctx, rideID)
	return out, nil
}

// SendMessage appends to the ride's chat. Only the two parties may write,
// and only while the ride is live.
func (s *Service) SendMessage(sender models.User, rideID, text string) (models.ChatMessage, error) {
	if text == "" {
		return models.ChatMessage{}, ErrValidation
	}
	msg := models.ChatMessage{
		ID:       uuid.NewString(),
		SenderID: sender.ID,
		Text:     text,
		SentAt:   s.now(),
	}
	err := s.Store.Update(func(st *store.State) error {
		r := st.Ride(rideID)
		if r == nil {
			return ErrNotFound
		}
		if r.Status.Terminal() {
			return ErrConflict
		}
		party := (sender.Role == models.RoleDriver && sender.ID == r.DriverID) ||
			(sender.Role == models.RolePassenger && sender.Name == r.PassengerName)
		if !party {
			return ErrForbidden
		}
		r.Messages = append(r.Messages, msg)
		return nil
	})
	if err != nil {
		return models.ChatMessage{}, err
	}
	if s.Notifier != nil {
		s.Notifier.Chat(rideID, msg)
	}
	return msg, nil
}

// UpdateTariff validates and installs a new tariff, then reprices rides
// that are still PENDING or ASSIGNED. Completed history keeps its fares.
func (s *Service) UpdateTariff(admin models.User, t models.Tariff) error {
	if admin.Role != models.RoleAdmin {
		return ErrForbidden
	}
	if err := pricing.Validate(t); err != nil {
		return err
	}
	var repriced []models.Ride
	err := s.Store.Update(func(st *store.State) error {
		st.Tariff = t
		for i := range st.Rides {
			r := &st.Rides[i]
			if (r.Status == models.RidePending || r.Status == models.RideAssigned) && r.DistanceKm != nil {
				f := pricing.Fare(*r.DistanceKm, t)
				r.Fare = &f
				repriced = append(repriced, *r)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	observability.TariffUpdates.Inc()
	for _, r := range repriced {
		s.journalUpdate(r)
	}
	return nil
}

// RecommendTariff suggests a preset for the given moment, preserving the
// current commission.
func (s *Service) RecommendTariff(at time.Time) models.Tariff {
	st, _ := s.Store.Snapshot()
	return pricing.Recommend(at.Hour(), st.Tariff)
}

// SetDriverBlocked flips the admin block flag. Blocking forces the driver
// OFFLINE so the "blocked is never online or busy" invariant holds.
func (s *Service) SetDriverBlocked(admin models.User, driverID string, blocked bool) error {
	if admin.Role != models.RoleAdmin {
		return ErrForbidden
	}
	err := s.Store.Update(func(st *store.State) error {
		d := st.Driver(driverID)
		if d == nil {
			return ErrNotFound
		}
		d.Blocked = blocked
		if blocked {
			d.Status = models.DriverOffline
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.refreshOnlineGauge()
	return nil
}

// SetDriverStatus is the driver's own online/offline toggle. BUSY is owned
// by the lifecycle, not by this toggle.
func (s *Service) SetDriverStatus(driver models.User, status models.DriverStatus) error {
	if status != models.DriverOnline && status != models.DriverOffline {
		return ErrValidation
	}
	err := s.Store.Update(func(st *store.State) error {
		d := st.Driver(driver.ID)
		if d == nil {
			return ErrNotFound
		}
		if d.Blocked {
			return ErrDriverBlocked
		}
		if d.Status == models.DriverBusy {
			return ErrConflict
		}
		d.Status = status
		return nil
	})
	if err != nil {
		return err
	}
	s.refreshOnlineGauge()
	return nil
}

// UpdateDriverLocation applies a device position fix. Blocked drivers have
// their subscription rejected.
func (s *Service) UpdateDriverLocation(driverID string, loc models.Coord) error {
	if !validCoord(loc) {
		return ErrValidation
	}
	return s.Store.Update(func(st *store.State) error {
		d := st.Driver(driverID)
		if d == nil {
			return ErrNotFound
		}
		if d.Blocked {
			return ErrDriverBlocked
		}
		d.Loc = loc
		d.Updated = s.now()
		return nil
	})
}

// driverTransition runs one CAS lifecycle step owned by the assigned
// driver. mutate runs only after every check has passed.
func (s *Service) driverTransition(driver models.User, rideID string, from, to models.RideStatus, mutate func(*store.State, *models.Ride, *models.Driver)) error {
	if driver.Role != models.RoleDriver {
		return ErrForbidden
	}
	return s.Store.Update(func(st *store.State) error {
		r := st.Ride(rideID)
		if r == nil {
			return ErrNotFound
		}
		if r.DriverID != driver.ID {
			return ErrForbidden
		}
		d := st.Driver(driver.ID)
		if d == nil {
			return ErrNotFound
		}
		if d.Blocked {
			return ErrDriverBlocked
		}
		if r.Status != from {
			return ErrConflict
		}
		r.Status = to
		mutate(st, r, d)
		return nil
	})
}

func (s *Service) holdFare(ctx context.Context, r models.Ride) {
	if s.Payments == nil || r.Fare == nil {
		return
	}
	// stripe wants the smallest currency unit
	amount := int64(math.Round(*r.Fare * 100))
	id, err := s.Payments.Hold(ctx, amount, "egp", "")
	if err != nil {
		s.logWarn("payment hold failed", "ride_id", r.ID, "error", err)
		return
	}
	s.holdMu.Lock()
	s.holds[r.ID] = id
	s.holdMu.Unlock()
}

func (s *Service) captureHold(ctx context.Context, rideID string) {
	if id, ok := s.takeHold(rideID); ok {
		if err := s.Payments.Capture(ctx, id); err != nil {
			s.logWarn("payment capture failed", "ride_id", rideID, "error", err)
		}
	}
}

func (s *Service) releaseHold(ctx context.Context, rideID string) {
	if id, ok := s.takeHold(rideID); ok {
		if err := s.Payments.Release(ctx, id); err != nil {
			s.logWarn("payment release failed", "ride_id", rideID, "error", err)
		}
	}
}

func (s *Service) takeHold(rideID string) (string, bool) {
	if s.Payments == nil {
		return "", false
	}
	s.holdMu.Lock()
	defer s.holdMu.Unlock()
	id, ok := s.holds[rideID]
	if ok {
		delete(s.holds, rideID)
	}
	return id, ok
}

func (s *Service) journalSave(r models.Ride) {
	if s.Journal == nil {
		return
	}
	if err := s.Journal.SaveRide(r); err != nil {
		s.logWarn("ride journal save failed", "ride_id", r.ID, "error", err)
	}
}

func (s *Service) journalUpdate(r models.Ride) {
	if s.Journal == nil {
		return
	}
	if err := s.Journal.UpdateRide(r); err != nil {
		s.logWarn("ride journal update failed", "ride_id", r.ID, "error", err)
	}
}

func (s *Service) refreshOnlineGauge() {
	st, _ := s.Store.Snapshot()
	n := 0
	for _, d := range st.Drivers {
		if d.Status == models.DriverOnline {
			n++
		}
	}
	observability.DriversOnline.Set(float64(n))
}

func (s *Service) logWarn(msg string, args ...any) {
	if s.Logger != nil {
		s.Logger.Warn(msg, args...)
	}
}

func validCoord(c models.Coord) bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lon, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
