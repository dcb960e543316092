// Package metrics holds the bridge's prometheus instrumentation. Everything
// registers on the default registry and is served through promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tahoma2mqtt_commands_total",
		Help: "Gateway commands accepted, by command name.",
	}, []string{"command"})

	CommandFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tahoma2mqtt_command_failures_total",
		Help: "Gateway command dispatches that failed.",
	})

	UnrecognizedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tahoma2mqtt_unrecognized_payloads_total",
		Help: "Control payloads ignored because of an unknown action.",
	})

	PollsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tahoma2mqtt_execution_polls_total",
		Help: "Execution status probes sent to the gateway.",
	})

	CompletionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tahoma2mqtt_executions_completed_total",
		Help: "Tracked executions that reached completion.",
	})
)
