package dispatch

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/models"
)

// Webhook posts assignment offers to an external driver-app backend.
type Webhook struct {
	Endpoint string
	Key      string // optional bearer token
	Client   *http.Client
	Logger   *slog.Logger
}

func NewWebhook(endpoint, key string, logger *slog.Logger) *Webhook {
	return &Webhook{
		Endpoint: endpoint,
		Key:      key,
		Client:   &http.Client{Timeout: 3 * time.Second},
		Logger:   logger,
	}
}

func (w *Webhook) OfferRide(driverID string, ride models.Ride) {
	body, err := json.Marshal(map[string]any{
		"driver_id": driverID,
		"ride_id":   ride.ID,
		"ride":      ride,
	})
	if err != nil {
		return
	}
	req, err := http.NewRequest(http.MethodPost, w.Endpoint, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if w.Key != "" {
		req.Header.Set("Authorization", "Bearer "+w.Key)
	}
	resp, err := w.Client.Do(req)
	if err != nil {
		if w.Logger != nil {
			w.Logger.Warn("offer webhook failed", "driver_id", driverID, "error", err)
		}
		return
	}
	_ = resp.Body.Close()
}

// Chat is a no-op; the webhook only carries offers.
func (w *Webhook) Chat(rideID string, msg models.ChatMessage) {}
