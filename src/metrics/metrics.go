// Package metrics holds the Prometheus collectors updated by the bridge:
//
//	bridge_commands_total{terminal,mode,command,result}
//	bridge_validation_failures_total{terminal,reason}
//	bridge_session_connected{terminal}
//
// They are registered on the default registry and served at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResultOK          = "ok"
	ResultRejected    = "rejected"
	ResultUnavailable = "unavailable"
	ResultNotSent     = "not_sent"
)

var (
	Commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_commands_total",
			Help: "Commands routed to a terminal, by outcome",
		},
		[]string{"terminal", "mode", "command", "result"},
	)

	ValidationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_validation_failures_total",
			Help: "Webhook payloads rejected before reaching a terminal",
		},
		[]string{"terminal", "reason"},
	)

	SessionConnected = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bridge_session_connected",
			Help: "1 while the terminal session is connected",
		},
		[]string{"terminal"},
	)
)

func init() {
	prometheus.MustRegister(Commands, ValidationFailures, SessionConnected)
}

func SetConnected(terminal string, connected bool) {
	v := 0.0
	if connected {
		v = 1
	}

	SessionConnected.WithLabelValues(terminal).Set(v)
}
