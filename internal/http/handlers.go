// Package httpapi exposes the ride-hailing operations over REST plus a
// WebSocket for live updates. Handlers stay thin: decode, resolve the
// session user, delegate to the rides service, map the sentinel error to a
// status code.
package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/dispatch"
	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/ingest"
	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/models"
	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/places"
	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/pricing"
	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/rides"
	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/session"
	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/store"
)

type Server struct {
	Rides    *rides.Service
	Places   places.Provider
	Seq      *places.Sequencer
	Sessions session.Store
	Registry *dispatch.Registry
	Kafka    *ingest.KafkaProducer // optional; locations go through the broker when set

	logger *slog.Logger
	router *mux.Router
}

func NewServer(svc *rides.Service, provider places.Provider, sessions session.Store, reg *dispatch.Registry, logger *slog.Logger) *Server {
	s := &Server{
		Rides:    svc,
		Places:   provider,
		Seq:      places.NewSequencer(),
		Sessions: sessions,
		Registry: reg,
		logger:   logger,
		router:   mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/session/login", s.handleLogin).Methods("POST")
	api.HandleFunc("/session/logout", s.handleLogout).Methods("POST")
	api.HandleFunc("/session", s.handleSession).Methods("GET")

	api.HandleFunc("/state", s.handleState).Methods("GET")
	api.HandleFunc("/quote", s.handleQuote).Methods("POST")

	api.HandleFunc("/rides", s.handleCreateRide).Methods("POST")
	api.HandleFunc("/rides/{ride_id}/price", s.handlePriceRide).Methods("POST")
	api.HandleFunc("/rides/{ride_id}/rank", s.handleRank).Methods("GET")
	api.HandleFunc("/rides/{ride_id}/assign", s.handleAssign).Methods("POST")
	api.HandleFunc("/rides/{ride_id}/accept", s.driverAction(s.Rides.Accept)).Methods("POST")
	api.HandleFunc("/rides/{ride_id}/reject", s.driverAction(s.Rides.Reject)).Methods("POST")
	api.HandleFunc("/rides/{ride_id}/arrived", s.driverAction(s.Rides.Arrived)).Methods("POST")
	api.HandleFunc("/rides/{ride_id}/start", s.driverAction(s.Rides.Start)).Methods("POST")
	api.HandleFunc("/rides/{ride_id}/complete", s.driverAction(s.Rides.Complete)).Methods("POST")
	api.HandleFunc("/rides/{ride_id}/cancel", s.handleCancel).Methods("POST")
	api.HandleFunc("/rides/{ride_id}/messages", s.handleSendMessage).Methods("POST")

	api.HandleFunc("/tariff", s.handleUpdateTariff).Methods("PUT")
	api.HandleFunc("/tariff/recommendation", s.handleTariffRecommendation).Methods("GET")

	api.HandleFunc("/drivers/status", s.handleDriverStatus).Methods("POST")
	api.HandleFunc("/drivers/{driver_id}/location", s.handleDriverLocation).Methods("POST")
	api.HandleFunc("/drivers/{driver_id}/block", s.handleDriverBlock).Methods("POST")

	api.HandleFunc("/places/search", s.handlePlaceSearch).Methods("GET")
	api.HandleFunc("/places/reverse", s.handlePlaceReverse).Methods("GET")

	s.router.HandleFunc("/ws/{user_id}", s.handleWS)
	s.router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

// --- session ---

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		s.writeError(w, r, rides.ErrValidation)
		return
	}
	st, _ := s.Rides.Store.Snapshot()
	u, ok := lookupActor(&st, req.UserID)
	if !ok {
		s.writeError(w, r, rides.ErrNotFound)
		return
	}
	if err := s.Sessions.Save(r.Context(), u); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.Sessions.Clear(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	u, err := s.Sessions.Load(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

// --- shared state ---

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	st, v := s.Rides.Store.Snapshot()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"version": v,
		"users":   st.Users,
		"drivers": st.Drivers,
		"rides":   st.Rides,
		"tariff":  st.Tariff,
	})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pickup  models.Coord `json:"pickup"`
		Dropoff models.Coord `json:"dropoff"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, rides.ErrValidation)
		return
	}
	d, fare, err := s.Rides.Quote(req.Pickup, req.Dropoff)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"distance_km": d, "fare": fare})
}

// --- ride lifecycle ---

func (s *Server) handleCreateRide(w http.ResponseWriter, r *http.Request) {
	u, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		PickupLabel  string       `json:"pickup_label"`
		DropoffLabel string       `json:"dropoff_label"`
		Pickup       models.Coord `json:"pickup"`
		Dropoff      models.Coord `json:"dropoff"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, rides.ErrValidation)
		return
	}
	ride, err := s.Rides.Create(r.Context(), u, req.PickupLabel, req.DropoffLabel, req.Pickup, req.Dropoff)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, ride)
}

func (s *Server) handlePriceRide(w http.ResponseWriter, r *http.Request) {
	ride, err := s.Rides.EnsurePriced(mux.Vars(r)["ride_id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ride)
}

func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	ranked, err := s.Rides.RankForRide(mux.Vars(r)["ride_id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if ranked == nil {
		ranked = []models.RankedDriver{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"drivers": ranked})
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	u, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		DriverID string `json:"driver_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DriverID == "" {
		s.writeError(w, r, rides.ErrValidation)
		return
	}
	ride, err := s.Rides.Assign(r.Context(), u, mux.Vars(r)["ride_id"], req.DriverID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ride)
}

// driverAction adapts the driver-owned lifecycle transitions, which all
// share the same handler shape.
func (s *Server) driverAction(fn func(context.Context, models.User, string) (models.Ride, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := s.requireUser(w, r)
		if !ok {
			return
		}
		ride, err := fn(r.Context(), u, mux.Vars(r)["ride_id"])
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, ride)
	}
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	u, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	ride, err := s.Rides.Cancel(r.Context(), u, mux.Vars(r)["ride_id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ride)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	u, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, rides.ErrValidation)
		return
	}
	msg, err := s.Rides.SendMessage(u, mux.Vars(r)["ride_id"], req.Text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, msg)
}

// --- tariff ---

func (s *Server) handleUpdateTariff(w http.ResponseWriter, r *http.Request) {
	u, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var t models.Tariff
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		s.writeError(w, r, rides.ErrValidation)
		return
	}
	if err := s.Rides.UpdateTariff(u, t); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleTariffRecommendation(w http.ResponseWriter, r *http.Request) {
	at := time.Now()
	if v := r.URL.Query().Get("at"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.writeError(w, r, rides.ErrValidation)
			return
		}
		at = parsed
	}
	s.writeJSON(w, http.StatusOK, s.Rides.RecommendTariff(at))
}

// --- drivers ---

func (s *Server) handleDriverStatus(w http.ResponseWriter, r *http.Request) {
	u, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Status models.DriverStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, rides.ErrValidation)
		return
	}
	if u.Role != models.RoleDriver {
		s.writeError(w, r, rides.ErrForbidden)
		return
	}
	if err := s.Rides.SetDriverStatus(u, req.Status); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDriverLocation(w http.ResponseWriter, r *http.Request) {
	u, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	driverID := mux.Vars(r)["driver_id"]
	if u.Role != models.RoleAdmin && !(u.Role == models.RoleDriver && u.ID == driverID) {
		s.writeError(w, r, rides.ErrForbidden)
		return
	}
	var loc models.Coord
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		s.writeError(w, r, rides.ErrValidation)
		return
	}
	if err := s.Rides.UpdateDriverLocation(driverID, loc); err != nil {
		s.writeError(w, r, err)
		return
	}
	// mirror to the broker so downstream consumers see the same stream
	if s.Kafka != nil {
		if err := s.Kafka.PublishLocation(ingest.LocationUpdate{DriverID: driverID, Loc: loc, At: time.Now()}); err != nil {
			s.logger.Warn("location publish failed", "driver_id", driverID, "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDriverBlock(w http.ResponseWriter, r *http.Request) {
	u, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Blocked bool `json:"blocked"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, rides.ErrValidation)
		return
	}
	if err := s.Rides.SetDriverBlocked(u, mux.Vars(r)["driver_id"], req.Blocked); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- places ---

// handlePlaceSearch tags each lookup with a per-field token. When a newer
// request for the same field started while this one was in flight, the
// response is marked stale and carries no results, so the client never
// renders out-of-order suggestions.
func (s *Server) handlePlaceSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	field := r.URL.Query().Get("field")
	if field == "" {
		field = "search"
	}
	token := s.Seq.Next(field)
	results := s.Places.Search(r.Context(), q)
	if !s.Seq.Current(field, token) {
		s.writeJSON(w, http.StatusOK, map[string]any{"token": token, "stale": true, "results": []models.PlaceResult{}})
		return
	}
	if results == nil {
		results = []models.PlaceResult{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"token": token, "results": results})
}

func (s *Server) handlePlaceReverse(w http.ResponseWriter, r *http.Request) {
	lat, err1 := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, err2 := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if err1 != nil || err2 != nil {
		s.writeError(w, r, rides.ErrValidation)
		return
	}
	label := s.Places.Reverse(r.Context(), models.Coord{Lat: lat, Lon: lon})
	s.writeJSON(w, http.StatusOK, map[string]any{"label": label})
}

// --- websocket ---

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.Registry.Add(userID, conn)
	go func() {
		defer func() {
			s.Registry.Remove(userID, conn)
			_ = conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// --- helpers ---

func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	u, err := s.Sessions.Load(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return models.User{}, false
	}
	if u == nil {
		s.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not logged in"})
		return models.User{}, false
	}
	return *u, true
}

// lookupActor resolves a login ID against the roster; drivers live in their
// own list.
func lookupActor(st *store.State, id string) (models.User, bool) {
	if u := st.User(id); u != nil {
		return *u, true
	}
	if d := st.Driver(id); d != nil {
		return d.User, true
	}
	return models.User{}, false
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("response encode failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, rides.ErrNotFound) || errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, rides.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, rides.ErrForbidden) || errors.Is(err, rides.ErrDriverBlocked):
		status = http.StatusForbidden
	case errors.Is(err, rides.ErrValidation) || errors.Is(err, pricing.ErrInvalidTariff):
		status = http.StatusBadRequest
	case errors.Is(err, rides.ErrUnpriced):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, rides.ErrDriverUnavailable):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
