// Package telemetry centralizes the node's Prometheus counters and
// gauges, following the teacher's practice of registering metrics against
// the default registry at package init rather than threading a registry
// object through every component.
package telemetry

import "github.com/prometheus/client_golang/prometheus"

// GossipDropsTotal counts inbound datagrams rejected by the gossip fabric,
// labeled by the reason they were dropped.
var GossipDropsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "slt_node",
		Subsystem: "gossip",
		Name:      "drops_total",
		Help:      "Inbound datagrams dropped by the gossip fabric, by reason.",
	},
	[]string{"reason"},
)

// GossipPeersGauge reports the current size of the peer table.
var GossipPeersGauge = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "slt_node",
		Subsystem: "gossip",
		Name:      "peers",
		Help:      "Number of peers currently tracked by the gossip fabric.",
	},
)

// GossipBroadcastTotal counts outbound fanout sends.
var GossipBroadcastTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "slt_node",
		Subsystem: "gossip",
		Name:      "broadcasts_total",
		Help:      "Outbound fanout sends performed by the Transmitter.",
	},
)

// MempoolSizeGauge reports the current size of a named mempool.
var MempoolSizeGauge = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "slt_node",
		Subsystem: "mempool",
		Name:      "size",
		Help:      "Number of items currently held in a mempool, by pool name.",
	},
	[]string{"pool"},
)

// BankTasksTotal counts bank task outcomes by verb (queue, finish, revert,
// finalize) and result (ok, rejected).
var BankTasksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "slt_node",
		Subsystem: "bank",
		Name:      "tasks_total",
		Help:      "Bank task operations, by verb and result.",
	},
	[]string{"verb", "result"},
)

// ChainReorgsTotal counts fork-DAG reorganizations.
var ChainReorgsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "slt_node",
		Subsystem: "chain",
		Name:      "reorgs_total",
		Help:      "Number of times the longest chain has switched branches.",
	},
)

func init() {
	prometheus.MustRegister(
		GossipDropsTotal,
		GossipPeersGauge,
		GossipBroadcastTotal,
		MempoolSizeGauge,
		BankTasksTotal,
		ChainReorgsTotal,
	)
}
