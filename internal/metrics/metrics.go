// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "studyplanner"

// Fanout failure stages.
const (
	StageLoadGroup = "load_group"
	StagePersist   = "persist"
	StagePush      = "push"
)

var (
	// Broadcasts counts events handed to a room or connection.
	// Labels: event (wire event name)
	Broadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "realtime",
		Name:      "broadcasts_total",
		Help:      "Realtime events broadcast by name",
	}, []string{"event"})

	// Connections is the number of live websocket connections.
	Connections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "realtime",
		Name:      "connections",
		Help:      "Open realtime connections",
	})

	NotificationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_created_total",
		Help:      "Notification records persisted by fanout",
	})

	// FanoutFailures counts best-effort fanout errors.
	// Labels: stage (load_group, persist, push)
	FanoutFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notification_fanout_failures_total",
		Help:      "Notification fanout failures by stage",
	}, []string{"stage"})
)
