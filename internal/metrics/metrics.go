// Package metrics holds the Prometheus collectors exported on /metrics.
// Collectors are registered on the default registry at init time.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tripmate"

var (
	// ActiveConnections is the number of live WebSocket connections by
	// channel ("chat" or "notifications").
	ActiveConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_active_connections",
			Help:      "Number of live WebSocket connections",
		},
		[]string{"channel"},
	)

	// HubMembers is the number of distinct connections registered in the hub,
	// sampled by the housekeeping job.
	HubMembers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "hub_members",
		Help:      "Connections currently registered in the fan-out hub",
	})

	// HubGroups is the number of non-empty groups, sampled by the
	// housekeeping job.
	HubGroups = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "hub_groups",
		Help:      "Non-empty fan-out groups",
	})

	// HandshakeRejections counts rejected WebSocket handshakes by reason.
	HandshakeRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_handshake_rejections_total",
			Help:      "Rejected WebSocket handshakes",
		},
		[]string{"reason"},
	)

	// FramesReceived counts decoded inbound frames by event type.
	FramesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_frames_received_total",
			Help:      "Inbound WebSocket frames by event type",
		},
		[]string{"type"},
	)

	// FrameErrors counts error frames sent back to clients by error kind.
	FrameErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_frame_errors_total",
			Help:      "Error frames returned to clients by kind",
		},
		[]string{"kind"},
	)

	// NotificationsSent counts notification frames handed to the hub.
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Notification frames handed to the fan-out hub",
		},
		[]string{"type"},
	)

	// NotificationsDropped counts notifications that could not be handed to
	// the hub.
	NotificationsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_dropped_total",
			Help:      "Notification frames dropped after a fan-out failure",
		},
		[]string{"type"},
	)

	// SlowConsumerDisconnects counts members dropped because their send
	// buffer was full.
	SlowConsumerDisconnects = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ws_slow_consumer_disconnects_total",
		Help:      "Connections dropped because their send buffer was full",
	})

	// ClusterRelayFailures counts failed publishes to the NATS fan-out relay.
	ClusterRelayFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cluster_relay_failures_total",
		Help:      "Failed publishes to the cross-instance fan-out relay",
	})
)
