package places

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/models"
	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/observability"
)

const minQueryLen = 3

// Nominatim queries the OpenStreetMap geocoder.
type Nominatim struct {
	BaseURL string
	Country string // ISO country filter, e.g. "eg"
	Limit   int
	Client  *http.Client
	Logger  *slog.Logger
}

func NewNominatim(baseURL, country string, limit int, logger *slog.Logger) *Nominatim {
	if limit <= 0 {
		limit = 5
	}
	return &Nominatim{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Country: country,
		Limit:   limit,
		Client:  &http.Client{Timeout: 5 * time.Second},
		Logger:  logger,
	}
}

type searchItem struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

// Search geocodes free text. Queries shorter than three runes return empty
// without touching the network, matching the UI's debounce threshold.
func (n *Nominatim) Search(ctx context.Context, query string) []models.PlaceResult {
	if len([]rune(strings.TrimSpace(query))) < minQueryLen {
		return nil
	}
	q := url.Values{}
	q.Set("format", "json")
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(n.Limit))
	q.Set("addressdetails", "1")
	if n.Country != "" {
		q.Set("countrycodes", n.Country)
	}

	var items []searchItem
	if !n.getJSON(ctx, "/search?"+q.Encode(), &items, "search") {
		return nil
	}

	out := make([]models.PlaceResult, 0, len(items))
	for _, it := range items {
		lat, err1 := strconv.ParseFloat(it.Lat, 64)
		lon, err2 := strconv.ParseFloat(it.Lon, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		name := it.Name
		if name == "" {
			name = strings.TrimSpace(strings.SplitN(it.DisplayName, ",", 2)[0])
		}
		out = append(out, models.PlaceResult{
			Name:    name,
			Address: it.DisplayName,
			Loc:     models.Coord{Lat: lat, Lon: lon},
		})
	}
	return out
}

type reverseResponse struct {
	Address struct {
		Road         string `json:"road"`
		Suburb       string `json:"suburb"`
		CityDistrict string `json:"city_district"`
		Village      string `json:"village"`
		City         string `json:"city"`
		State        string `json:"state"`
	} `json:"address"`
}

// Reverse turns a coordinate into a readable label. Every failure path
// returns the pinned-location fallback so the caller always has a string.
func (n *Nominatim) Reverse(ctx context.Context, loc models.Coord) string {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(loc.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(loc.Lon, 'f', -1, 64))
	q.Set("zoom", "18")
	q.Set("addressdetails", "1")

	var resp reverseResponse
	if !n.getJSON(ctx, "/reverse?"+q.Encode(), &resp, "reverse") {
		return FallbackLabel(loc)
	}

	a := resp.Address
	main := firstNonEmpty(a.Road, a.Suburb, a.CityDistrict, a.Village)
	if main == "" {
		main = "Unknown Road"
	}
	city := firstNonEmpty(a.City, a.State)
	if city == "" {
		return main
	}
	return main + ", " + city
}

// FallbackLabel embeds the raw coordinate so the UI can still render a
// location the geocoder could not name.
func FallbackLabel(loc models.Coord) string {
	return fmt.Sprintf("Pinned Location (%.4f, %.4f)", loc.Lat, loc.Lon)
}

func (n *Nominatim) getJSON(ctx context.Context, path string, out any, op string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.BaseURL+path, nil)
	if err != nil {
		n.degrade(op, err)
		return false
	}
	resp, err := n.Client.Do(req)
	if err != nil {
		n.degrade(op, err)
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		n.degrade(op, fmt.Errorf("status %d", resp.StatusCode))
		return false
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		n.degrade(op, err)
		return false
	}
	return true
}

func (n *Nominatim) degrade(op string, err error) {
	observability.PlaceLookupFailures.WithLabelValues(op).Inc()
	if n.Logger != nil {
		n.Logger.Warn("place lookup degraded", "op", op, "error", err)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
