// Package metrics exposes prometheus instrumentation for the node's
// background workers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IndexBlocksConnected counts blocks applied to the deadpool index.
	IndexBlocksConnected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "factord",
		Subsystem: "deadpoolindex",
		Name:      "blocks_connected_total",
		Help:      "Blocks applied to the deadpool index.",
	})

	// IndexBlocksDisconnected counts blocks rolled back from the index.
	IndexBlocksDisconnected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "factord",
		Subsystem: "deadpoolindex",
		Name:      "blocks_disconnected_total",
		Help:      "Blocks rolled back from the deadpool index.",
	})

	// IndexEntries counts deadpool entries written to the index.
	IndexEntries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "factord",
		Subsystem: "deadpoolindex",
		Name:      "entries_total",
		Help:      "Deadpool entries indexed.",
	})

	// IndexAnnouncements counts announcements written to the index.
	IndexAnnouncements = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "factord",
		Subsystem: "deadpoolindex",
		Name:      "announcements_total",
		Help:      "Deadpool announcements indexed.",
	})

	// IndexClaims counts claims observed by the index.
	IndexClaims = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "factord",
		Subsystem: "deadpoolindex",
		Name:      "claims_total",
		Help:      "Deadpool claims indexed.",
	})
)
