package places

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/models"
)

func newFakeNominatim(t *testing.T, handler http.HandlerFunc) *Nominatim {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewNominatim(srv.URL, "eg", 5, nil)
}

func TestSearchParsesResults(t *testing.T) {
	n := newFakeNominatim(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("countrycodes"); got != "eg" {
			t.Errorf("missing country filter, got %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("missing limit, got %q", got)
		}
		w.Write([]byte(`[
			{"name":"Cairo Tower","display_name":"Cairo Tower, Zamalek, Cairo","lat":"30.0459","lon":"31.2243"},
			{"name":"","display_name":"Khan el-Khalili, El-Gamaleya, Cairo","lat":"30.0478","lon":"31.2623"},
			{"name":"bad","display_name":"bad","lat":"not-a-number","lon":"31.0"}
		]`))
	})

	got := n.Search(context.Background(), "cairo tower")
	if len(got) != 2 {
		t.Fatalf("expected 2 results (bad coords dropped), got %d", len(got))
	}
	if got[0].Name != "Cairo Tower" || got[0].Loc.Lat != 30.0459 {
		t.Fatalf("unexpected first result: %+v", got[0])
	}
	// empty name falls back to the first display_name segment
	if got[1].Name != "Khan el-Khalili" {
		t.Fatalf("expected display_name fallback, got %q", got[1].Name)
	}
}

func TestSearchShortQuerySkipsNetwork(t *testing.T) {
	called := false
	n := newFakeNominatim(t, func(w http.ResponseWriter, r *http.Request) { called = true })
	if got := n.Search(context.Background(), "ab"); got != nil {
		t.Fatalf("expected nil for short query, got %+v", got)
	}
	if called {
		t.Fatal("short query should not reach the provider")
	}
}

func TestSearchDegradesToEmpty(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(500) },
		"garbage body": func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("<html>rate limited</html>")) },
	}
	for name, h := range cases {
		n := newFakeNominatim(t, h)
		if got := n.Search(context.Background(), "tahrir square"); len(got) != 0 {
			t.Fatalf("%s: expected empty, got %+v", name, got)
		}
	}
}

func TestReverseBuildsLabel(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"road and city", `{"address":{"road":"Talaat Harb","city":"Cairo"}}`, "Talaat Harb, Cairo"},
		{"suburb fallback", `{"address":{"suburb":"Zamalek","state":"Cairo Governorate"}}`, "Zamalek, Cairo Governorate"},
		{"district fallback", `{"address":{"city_district":"West District","city":"Giza"}}`, "West District, Giza"},
		{"village fallback", `{"address":{"village":"Tunis","state":"Fayoum"}}`, "Tunis, Fayoum"},
		{"nothing known", `{"address":{"city":"Cairo"}}`, "Unknown Road, Cairo"},
		{"no city", `{"address":{"road":"Ring Road"}}`, "Ring Road"},
	}
	for _, tc := range cases {
		n := newFakeNominatim(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(tc.body))
		})
		if got := n.Reverse(context.Background(), models.Coord{Lat: 30, Lon: 31}); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestReverseFallbackLabel(t *testing.T) {
	n := newFakeNominatim(t, func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(503) })
	loc := models.Coord{Lat: 30.04592, Lon: 31.22431}
	want := "Pinned Location (30.0459, 31.2243)"
	if got := n.Reverse(context.Background(), loc); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestSequencerLatestWins(t *testing.T) {
	s := NewSequencer()
	t1 := s.Next("pickup")
	t2 := s.Next("pickup")
	other := s.Next("dropoff")

	if s.Current("pickup", t1) {
		t.Fatal("superseded token should be stale")
	}
	if !s.Current("pickup", t2) {
		t.Fatal("latest token should be current")
	}
	if !s.Current("dropoff", other) {
		t.Fatal("fields must be tracked independently")
	}
}
