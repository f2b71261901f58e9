package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RidesCreated  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ridehail", Name: "rides_created_total", Help: "Total rides requested"})
	Assignments   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ridehail", Name: "assignments_total", Help: "Total admin assignments"})
	Completions   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ridehail", Name: "completions_total", Help: "Total completed rides"})
	Cancellations = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ridehail", Name: "cancellations_total", Help: "Total cancelled rides"})
	TariffUpdates = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ridehail", Name: "tariff_updates_total", Help: "Total tariff updates applied"})
	DriversOnline = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "ridehail", Name: "drivers_online", Help: "Drivers currently online"})

	PlaceLookupFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ridehail", Name: "place_lookup_failures_total", Help: "Geocoding lookups that degraded to empty/fallback results"},
		[]string{"op"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ridehail", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ridehail",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
