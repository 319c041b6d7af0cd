// Package metrics holds the service's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "verity_http_requests_total",
		Help: "HTTP requests by method, path, and status code.",
	}, []string{"method", "path", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "verity_http_request_duration_seconds",
		Help:    "HTTP request latency by method and path.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	CallsScreened = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "verity_calls_screened_total",
		Help: "Screened calls by resulting alert band.",
	}, []string{"band"})

	AlertsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "verity_alerts_dispatched_total",
		Help: "Alerts fanned out to a profile's circle, by band.",
	}, []string{"band"})

	PushDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "verity_push_deliveries_total",
		Help: "Per-device push deliveries by outcome.",
	}, []string{"outcome"})

	TokensDeactivated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "verity_push_tokens_deactivated_total",
		Help: "Device tokens deactivated after invalid-recipient errors.",
	})

	InviteCodeCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "verity_invite_code_collisions_total",
		Help: "Invite code draws that collided with an existing code.",
	})
)

// Handler exposes the default registry for the /metrics route.
func Handler() http.Handler {
	return promhttp.Handler()
}
