package places

import (
	"context"
	"log/slog"

	"googlemaps.github.io/maps"

	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/models"
	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/observability"
)

// Google is an alternate provider backed by the Google Maps Platform,
// selected when an API key is configured. Same degrade-to-empty contract
// as Nominatim.
type Google struct {
	client *maps.Client
	region string
	limit  int
	logger *slog.Logger
}

func NewGoogle(apiKey, region string, limit int, logger *slog.Logger) (*Google, error) {
	c, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}
	return &Google{client: c, region: region, limit: limit, logger: logger}, nil
}

func (g *Google) Search(ctx context.Context, query string) []models.PlaceResult {
	if len(query) < minQueryLen {
		return nil
	}
	resp, err := g.client.TextSearch(ctx, &maps.TextSearchRequest{
		Query:  query,
		Region: g.region,
	})
	if err != nil {
		g.degrade("search", err)
		return nil
	}
	out := make([]models.PlaceResult, 0, g.limit)
	for _, r := range resp.Results {
		if len(out) == g.limit {
			break
		}
		out = append(out, models.PlaceResult{
			Name:    r.Name,
			Address: r.FormattedAddress,
			Loc:     models.Coord{Lat: r.Geometry.Location.Lat, Lon: r.Geometry.Location.Lng},
		})
	}
	return out
}

func (g *Google) Reverse(ctx context.Context, loc models.Coord) string {
	results, err := g.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: loc.Lat, Lng: loc.Lon},
	})
	if err != nil || len(results) == 0 || results[0].FormattedAddress == "" {
		g.degrade("reverse", err)
		return FallbackLabel(loc)
	}
	return results[0].FormattedAddress
}

func (g *Google) degrade(op string, err error) {
	observability.PlaceLookupFailures.WithLabelValues(op).Inc()
	if g.logger != nil {
		g.logger.Warn("place lookup degraded", "op", op, "provider", "google", "error", err)
	}
}
