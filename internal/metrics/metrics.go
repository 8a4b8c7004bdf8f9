// Package metrics provides Prometheus collectors of the dashboard
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActionsTotal counts administrative actions performed, by kind
	ActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guildpanel_actions_total",
		Help: "Number of administrative actions performed",
	}, []string{"action"})

	// ActionErrorsTotal counts failed administrative actions, by kind
	ActionErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guildpanel_action_errors_total",
		Help: "Number of administrative actions failed",
	}, []string{"action"})

	// WebsocketClients is a current number of connected realtime clients
	WebsocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "guildpanel_websocket_clients",
		Help: "Number of connected websocket clients",
	})

	// BroadcastsTotal counts events fanned out to websocket clients
	BroadcastsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guildpanel_broadcasts_total",
		Help: "Number of events broadcast to websocket clients",
	})

	// HTTPRequestsTotal counts served HTTP requests
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guildpanel_http_requests_total",
		Help: "Number of HTTP requests served",
	}, []string{"method", "status"})
)

// ObserveAction records action outcome
func ObserveAction(action string, err error) {
	if err != nil {
		ActionErrorsTotal.WithLabelValues(action).Inc()
		return
	}

	ActionsTotal.WithLabelValues(action).Inc()
}
