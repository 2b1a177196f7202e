package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_rooms_active",
		Help: "Rooms currently present in the store, grace window included",
	})

	metricJoins = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_member_joins_total",
		Help: "Total member additions across all rooms",
	})

	metricLeaves = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_member_leaves_total",
		Help: "Total member removals across all rooms",
	})

	metricRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_messages_forwarded_total",
		Help: "Relay deliveries by routing kind",
	}, []string{"kind"})

	metricDroppedSends = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_sends_dropped_total",
		Help: "Deliveries skipped because the handle was closed or saturated",
	})
)
