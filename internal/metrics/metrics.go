/*
Package metrics holds the Prometheus collectors exported on /metrics.

Collectors are registered on the default registry at init through promauto; the
Record* helpers keep label sets consistent across callers.
*/
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupnav_api_requests_total",
			Help: "Total number of HTTP API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "groupnav_api_request_duration_seconds",
			Help:    "HTTP API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupnav_rate_limited_total",
			Help: "Requests rejected by a rate limiter",
		},
		[]string{"limiter"},
	)

	// Presence
	PresenceConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "groupnav_presence_connections",
			Help: "Currently open WebSocket connections",
		},
	)

	PresenceUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "groupnav_presence_users",
			Help: "Distinct users currently joined to the live session",
		},
	)

	PresenceMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupnav_presence_messages_received_total",
			Help: "Inbound WebSocket messages by type",
		},
		[]string{"type"},
	)

	PresenceMessagesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupnav_presence_messages_dropped_total",
			Help: "Inbound WebSocket messages ignored, by reason",
		},
		[]string{"reason"}, // "malformed", "unknown_type", "invalid", "unbound", "forged"
	)

	PresenceBroadcasts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupnav_presence_broadcasts_total",
			Help: "Outbound broadcasts fanned out to the live session, by type",
		},
		[]string{"type"},
	)

	PresenceEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "groupnav_presence_evictions_total",
			Help: "Connections closed because their send queue was full",
		},
	)

	// Location persistence
	LocationWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupnav_location_writes_total",
			Help: "Location persistence attempts by result",
		},
		[]string{"result"}, // "ok", "error", "breaker_open", "coalesced"
	)

	LocationWriteDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "groupnav_location_write_duration_seconds",
			Help:    "Duration of a single location write to the profile store",
			Buckets: prometheus.DefBuckets,
		},
	)

	LocationBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "groupnav_location_breaker_state",
			Help: "Location write circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)
)

// RecordAPIRequest records one completed HTTP request.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordLocationWrite records the outcome of one persistence attempt.
func RecordLocationWrite(duration time.Duration, err error) {
	LocationWriteDuration.Observe(duration.Seconds())
	if err != nil {
		LocationWrites.WithLabelValues("error").Inc()
		return
	}
	LocationWrites.WithLabelValues("ok").Inc()
}

// RecordDropped counts an inbound message that was ignored for reason.
func RecordDropped(reason string) {
	PresenceMessagesDropped.WithLabelValues(reason).Inc()
}
