package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/dispatch"
	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/models"
	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/rides"
	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/session"
	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/store"
)

type fakeProvider struct {
	results []models.PlaceResult
	label   string
}

func (f *fakeProvider) Search(ctx context.Context, query string) []models.PlaceResult {
	return f.results
}

func (f *fakeProvider) Reverse(ctx context.Context, loc models.Coord) string { return f.label }

func testState() store.State {
	return store.State{
		Users: []models.User{
			{ID: "a1", Name: "Mona", Role: models.RoleAdmin},
			{ID: "p1", Name: "Karim", Role: models.RolePassenger},
		},
		Drivers: []models.Driver{
			{
				User:    models.User{ID: "dA", Name: "Hassan", Role: models.RoleDriver},
				Status:  models.DriverOnline,
				Loc:     models.Coord{Lat: 30.007, Lon: 31.0},
				Vehicle: "Toyota Corolla",
			},
			{
				User:    models.User{ID: "dB", Name: "Omar", Role: models.RoleDriver},
				Status:  models.DriverOffline,
				Loc:     models.Coord{Lat: 30.03, Lon: 31.0},
				Vehicle: "Honda Civic",
			},
		},
		Tariff: models.Tariff{BaseFare: 2.00, PerKmRate: 1.50, CommissionRate: 0.20},
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.New(testState())
	svc := rides.NewService(st, logger)
	provider := &fakeProvider{
		results: []models.PlaceResult{{Name: "Tahrir Square", Address: "Tahrir Square, Cairo", Loc: models.Coord{Lat: 30.0444, Lon: 31.2357}}},
		label:   "Talaat Harb, Cairo",
	}
	return NewServer(svc, provider, session.NewMemory(), dispatch.NewRegistry(logger), logger)
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, s *Server, userID string) {
	t.Helper()
	rec := doJSON(t, s, http.MethodPost, "/api/v1/session/login", map[string]string{"user_id": userID})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", userID, rec.Code, rec.Body.String())
	}
}

func decodeRide(t *testing.T, rec *httptest.ResponseRecorder) models.Ride {
	t.Helper()
	var r models.Ride
	if err := json.NewDecoder(rec.Body).Decode(&r); err != nil {
		t.Fatalf("decode ride: %v", err)
	}
	return r
}

func TestLoginUnknownUser(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/api/v1/session/login", map[string]string{"user_id": "nobody"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestLoginDriverResolvesFromRoster(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/api/v1/session/login", map[string]string{"user_id": "dA"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		User models.User `json:"user"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.User.Role != models.RoleDriver || resp.User.Name != "Hassan" {
		t.Fatalf("unexpected user: %+v", resp.User)
	}
}

func TestCreateRideRequiresSession(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/api/v1/rides", map[string]any{
		"pickup_label": "A", "dropoff_label": "B",
		"pickup":  models.Coord{Lat: 30.0, Lon: 31.0},
		"dropoff": models.Coord{Lat: 30.128, Lon: 31.0},
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestQuote(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/api/v1/quote", map[string]any{
		"pickup":  models.Coord{Lat: 30.0, Lon: 31.0},
		"dropoff": models.Coord{Lat: 30.128, Lon: 31.0},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		DistanceKm float64 `json:"distance_km"`
		Fare       float64 `json:"fare"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.DistanceKm != 18.5 || resp.Fare != 29.75 {
		t.Fatalf("quote = %.2f km / %.2f, want 18.5 / 29.75", resp.DistanceKm, resp.Fare)
	}
}

func TestFullLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)

	login(t, s, "p1")
	rec := doJSON(t, s, http.MethodPost, "/api/v1/rides", map[string]any{
		"pickup_label": "Downtown", "dropoff_label": "Heliopolis",
		"pickup":  models.Coord{Lat: 30.0, Lon: 31.0},
		"dropoff": models.Coord{Lat: 30.128, Lon: 31.0},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", rec.Code, rec.Body.String())
	}
	ride := decodeRide(t, rec)
	if ride.Status != models.RidePending || ride.Fare == nil || *ride.Fare != 29.75 {
		t.Fatalf("unexpected created ride: %+v", ride)
	}

	login(t, s, "a1")
	rec = doJSON(t, s, http.MethodGet, "/api/v1/rides/"+ride.ID+"/rank", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("rank: status %d", rec.Code)
	}
	var ranked struct {
		Drivers []models.RankedDriver `json:"drivers"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&ranked); err != nil {
		t.Fatal(err)
	}
	if len(ranked.Drivers) != 1 || ranked.Drivers[0].DriverID != "dA" {
		t.Fatalf("rank = %+v, want only dA (dB is offline)", ranked.Drivers)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/v1/rides/"+ride.ID+"/assign", map[string]string{"driver_id": "dA"})
	if rec.Code != http.StatusOK {
		t.Fatalf("assign: status %d body %s", rec.Code, rec.Body.String())
	}
	if got := decodeRide(t, rec); got.Status != models.RideAssigned {
		t.Fatalf("status after assign = %s", got.Status)
	}

	login(t, s, "dA")
	rec = doJSON(t, s, http.MethodPost, "/api/v1/rides/"+ride.ID+"/accept", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("accept: status %d body %s", rec.Code, rec.Body.String())
	}
	accepted := decodeRide(t, rec)
	if accepted.ETAMin == nil || *accepted.ETAMin != 4 {
		t.Fatalf("eta = %v, want 4", accepted.ETAMin)
	}

	for _, step := range []string{"arrived", "start", "complete"} {
		rec = doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/v1/rides/%s/%s", ride.ID, step), nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d body %s", step, rec.Code, rec.Body.String())
		}
	}

	rec = doJSON(t, s, http.MethodGet, "/api/v1/state", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("state: status %d", rec.Code)
	}
	var state struct {
		Version uint64          `json:"version"`
		Drivers []models.Driver `json:"drivers"`
		Rides   []models.Ride   `json:"rides"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&state); err != nil {
		t.Fatal(err)
	}
	if state.Version == 0 {
		t.Fatal("version did not advance")
	}
	if state.Rides[0].Status != models.RideCompleted {
		t.Fatalf("ride status = %s", state.Rides[0].Status)
	}
	// 29.75 x 0.8
	if state.Drivers[0].Earnings != 23.80 {
		t.Fatalf("earnings = %.2f, want 23.80", state.Drivers[0].Earnings)
	}
}

func TestCancelAfterAssignConflicts(t *testing.T) {
	s := newTestServer(t)

	login(t, s, "p1")
	rec := doJSON(t, s, http.MethodPost, "/api/v1/rides", map[string]any{
		"pickup_label": "A", "dropoff_label": "B",
		"pickup":  models.Coord{Lat: 30.0, Lon: 31.0},
		"dropoff": models.Coord{Lat: 30.128, Lon: 31.0},
	})
	ride := decodeRide(t, rec)

	login(t, s, "a1")
	if rec = doJSON(t, s, http.MethodPost, "/api/v1/rides/"+ride.ID+"/assign", map[string]string{"driver_id": "dA"}); rec.Code != http.StatusOK {
		t.Fatalf("assign: status %d", rec.Code)
	}

	login(t, s, "p1")
	if rec = doJSON(t, s, http.MethodPost, "/api/v1/rides/"+ride.ID+"/cancel", nil); rec.Code != http.StatusConflict {
		t.Fatalf("cancel after assign: status %d, want 409", rec.Code)
	}
}

func TestTariffEndpoints(t *testing.T) {
	s := newTestServer(t)

	login(t, s, "a1")
	rec := doJSON(t, s, http.MethodPut, "/api/v1/tariff", models.Tariff{BaseFare: -1, PerKmRate: 1, CommissionRate: 0.2})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid tariff: status %d, want 400", rec.Code)
	}

	rec = doJSON(t, s, http.MethodPut, "/api/v1/tariff", models.Tariff{BaseFare: 4, PerKmRate: 2, CommissionRate: 0.2})
	if rec.Code != http.StatusOK {
		t.Fatalf("valid tariff: status %d body %s", rec.Code, rec.Body.String())
	}

	login(t, s, "p1")
	if rec = doJSON(t, s, http.MethodPut, "/api/v1/tariff", models.Tariff{BaseFare: 4, PerKmRate: 2, CommissionRate: 0.2}); rec.Code != http.StatusForbidden {
		t.Fatalf("passenger tariff update: status %d, want 403", rec.Code)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/v1/tariff/recommendation?at=2026-03-02T09:00:00Z", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("recommendation: status %d", rec.Code)
	}
	var rush models.Tariff
	if err := json.NewDecoder(rec.Body).Decode(&rush); err != nil {
		t.Fatal(err)
	}
	if rush.BaseFare != 6.00 || rush.PerKmRate != 3.00 || rush.CommissionRate != 0.2 {
		t.Fatalf("rush recommendation = %+v", rush)
	}
}

func TestDriverStatusForbiddenForPassenger(t *testing.T) {
	s := newTestServer(t)
	login(t, s, "p1")
	rec := doJSON(t, s, http.MethodPost, "/api/v1/drivers/status", map[string]string{"status": "ONLINE"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestDriverLocationOwnership(t *testing.T) {
	s := newTestServer(t)

	login(t, s, "dA")
	rec := doJSON(t, s, http.MethodPost, "/api/v1/drivers/dB/location", models.Coord{Lat: 30.1, Lon: 31.1})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("other driver's location: status %d, want 403", rec.Code)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/v1/drivers/dA/location", models.Coord{Lat: 30.1, Lon: 31.1})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("own location: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodPost, "/api/v1/drivers/dA/location", models.Coord{Lat: 95, Lon: 31.1})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("out-of-range location: status %d, want 400", rec.Code)
	}
}

func TestBlockDriver(t *testing.T) {
	s := newTestServer(t)
	login(t, s, "a1")
	rec := doJSON(t, s, http.MethodPost, "/api/v1/drivers/dA/block", map[string]bool{"blocked": true})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("block: status %d", rec.Code)
	}

	login(t, s, "dA")
	rec = doJSON(t, s, http.MethodPost, "/api/v1/drivers/status", map[string]string{"status": "ONLINE"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("blocked driver going online: status %d, want 403", rec.Code)
	}
}

func TestPlaceSearch(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/api/v1/places/search?q=tahrir&field=pickup", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Token   uint64               `json:"token"`
		Stale   bool                 `json:"stale"`
		Results []models.PlaceResult `json:"results"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Stale || len(resp.Results) != 1 || resp.Results[0].Name != "Tahrir Square" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Token != 1 {
		t.Fatalf("token = %d, want 1", resp.Token)
	}
}

func TestPlaceReverse(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/api/v1/places/reverse?lat=30.0444&lon=31.2357", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Label string `json:"label"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Label != "Talaat Harb, Cairo" {
		t.Fatalf("label = %q", resp.Label)
	}

	if rec = doJSON(t, s, http.MethodGet, "/api/v1/places/reverse?lat=abc&lon=31", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad coords: status %d, want 400", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz: status %d body %q", rec.Code, rec.Body.String())
	}
}
