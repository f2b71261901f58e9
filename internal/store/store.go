// Package store owns the shared dataset every role's view reads: the user
// roster, drivers, ride history, and the current tariff. It replaces the
// ambient shared variables of the original demo with a versioned repository:
// reads see a consistent snapshot, writes run as all-or-nothing
// transactions, and subscribers are told when the version moves so they can
// refresh.
package store

import (
	"errors"
	"sync"

	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/models"
)

var ErrNotFound = errors.New("store: not found")

// State is one consistent snapshot of the shared entities. Drivers keep
// roster order (ranking ties depend on it) and rides keep request order;
// rides are never removed.
type State struct {
	Users   []models.User
	Drivers []models.Driver
	Rides   []models.Ride
	Tariff  models.Tariff
}

// Driver returns a pointer into the state for in-transaction mutation.
func (s *State) Driver(id string) *models.Driver {
	for i := range s.Drivers {
		if s.Drivers[i].ID == id {
			return &s.Drivers[i]
		}
	}
	return nil
}

// Ride returns a pointer into the state for in-transaction mutation.
func (s *State) Ride(id string) *models.Ride {
	for i := range s.Rides {
		if s.Rides[i].ID == id {
			return &s.Rides[i]
		}
	}
	return nil
}

func (s *State) User(id string) *models.User {
	for i := range s.Users {
		if s.Users[i].ID == id {
			return &s.Users[i]
		}
	}
	return nil
}

func (s *State) clone() State {
	out := State{
		Users:   append([]models.User(nil), s.Users...),
		Drivers: append([]models.Driver(nil), s.Drivers...),
		Rides:   append([]models.Ride(nil), s.Rides...),
		Tariff:  s.Tariff,
	}
	for i := range out.Rides {
		if r := &out.Rides[i]; r.Messages != nil {
			r.Messages = append([]models.ChatMessage(nil), r.Messages...)
		}
		if r := &out.Rides[i]; r.DistanceKm != nil {
			v := *r.DistanceKm
			r.DistanceKm = &v
		}
		if r := &out.Rides[i]; r.Fare != nil {
			v := *r.Fare
			r.Fare = &v
		}
		if r := &out.Rides[i]; r.ETAMin != nil {
			v := *r.ETAMin
			r.ETAMin = &v
		}
	}
	return out
}

type Store struct {
	mu      sync.RWMutex
	version uint64
	state   State

	subMu   sync.Mutex
	subs    map[uint64]chan uint64
	nextSub uint64
}

func New(initial State) *Store {
	return &Store{state: initial, subs: make(map[uint64]chan uint64)}
}

// Snapshot returns a deep copy of the current state and its version. The
// caller may hold it as long as it likes.
func (s *Store) Snapshot() (State, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone(), s.version
}

// Version returns the current version without copying state.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Update runs fn against a working copy of the state. If fn returns an
// error nothing is published and the version does not move; otherwise the
// copy replaces the state wholesale and subscribers are notified. This is
// what makes every failure path leave the prior valid state intact.
func (s *Store) Update(fn func(*State) error) error {
	s.mu.Lock()
	work := s.state.clone()
	if err := fn(&work); err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = work
	s.version++
	v := s.version
	s.mu.Unlock()

	s.notify(v)
	return nil
}

// Subscribe registers for version notifications. The channel is buffered
// and slow consumers miss intermediate versions rather than blocking a
// writer; a refresh against the latest snapshot is always sufficient.
// The returned func releases the subscription.
func (s *Store) Subscribe() (<-chan uint64, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan uint64, 1)
	s.subs[id] = ch
	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *Store) notify(version uint64) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- version:
		default:
			// drop; subscriber will catch up from the snapshot
		}
	}
}
