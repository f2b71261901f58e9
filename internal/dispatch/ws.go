// Package dispatch pushes events to connected clients: WebSocket sessions
// for the dashboards and an optional webhook for a driver-app backend.
// Delivery is best-effort everywhere; the store is the source of truth and
// a missed event is recovered by re-reading the snapshot.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/models"
	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/store"
)

var ErrNoSession = errors.New("dispatch: no ws session")

// Event is the wire shape pushed to clients.
type Event struct {
	Type    string              `json:"type"` // state | offer | chat
	Version uint64              `json:"version,omitempty"`
	RideID  string              `json:"ride_id,omitempty"`
	Ride    *models.Ride        `json:"ride,omitempty"`
	Message *models.ChatMessage `json:"message,omitempty"`
}

type wsSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *wsSession) send(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(ev)
}

// Registry holds one WebSocket session per user. Adding a session for a
// user who already has one replaces (and closes) the old one, keeping the
// "exactly one active subscription per session" rule.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*wsSession
	logger   *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{sessions: make(map[string]*wsSession), logger: logger}
}

func (r *Registry) Add(userID string, conn *websocket.Conn) {
	r.mu.Lock()
	old := r.sessions[userID]
	r.sessions[userID] = &wsSession{conn: conn}
	r.mu.Unlock()
	if old != nil {
		_ = old.conn.Close()
	}
}

func (r *Registry) Remove(userID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[userID]; ok && s.conn == conn {
		delete(r.sessions, userID)
	}
}

func (r *Registry) SendTo(userID string, ev Event) error {
	r.mu.RLock()
	s, ok := r.sessions[userID]
	r.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	if err := s.send(ev); err != nil {
		if r.logger != nil {
			r.logger.Warn("ws send failed", "user_id", userID, "error", err)
		}
		return err
	}
	return nil
}

func (r *Registry) Broadcast(ev Event) {
	r.mu.RLock()
	targets := make(map[string]*wsSession, len(r.sessions))
	for id, s := range r.sessions {
		targets[id] = s
	}
	r.mu.RUnlock()
	for id, s := range targets {
		if err := s.send(ev); err != nil && r.logger != nil {
			r.logger.Warn("ws broadcast failed", "user_id", id, "error", err)
		}
	}
}

// OfferRide implements rides.Notifier.
func (r *Registry) OfferRide(driverID string, ride models.Ride) {
	_ = r.SendTo(driverID, Event{Type: "offer", RideID: ride.ID, Ride: &ride})
}

// Chat implements rides.Notifier. Chat events are broadcast; clients filter
// by the rides they are party to.
func (r *Registry) Chat(rideID string, msg models.ChatMessage) {
	r.Broadcast(Event{Type: "chat", RideID: rideID, Message: &msg})
}

// WatchStore relays store version bumps to every connected client until
// ctx is done. Clients respond by refetching the snapshot.
func (r *Registry) WatchStore(ctx context.Context, s *store.Store) {
	ch, cancel := s.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-ch:
			if !ok {
				return
			}
			r.Broadcast(Event{Type: "state", Version: v})
		}
	}
}

// Fanout chains notifiers.
type Fanout []interface {
	OfferRide(driverID string, ride models.Ride)
	Chat(rideID string, msg models.ChatMessage)
}

func (f Fanout) OfferRide(driverID string, ride models.Ride) {
	for _, n := range f {
		n.OfferRide(driverID, ride)
	}
}

func (f Fanout) Chat(rideID string, msg models.ChatMessage) {
	for _, n := range f {
		n.Chat(rideID, msg)
	}
}
