package receiver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricHeadBlock = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chronicle_receiver_head_block",
		Help: "Highest block number accepted from the stream",
	})

	metricIrreversibleBlock = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chronicle_receiver_irreversible_block",
		Help: "Last irreversible block number reported by the upstream",
	})

	metricAckedBlock = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chronicle_receiver_acknowledged_block",
		Help: "Last block acknowledged by the exporter",
	})

	metricQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chronicle_receiver_queue_depth",
		Help: "Reactor queue depth sampled at backpressure checks",
	})

	metricPaused = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chronicle_receiver_paused",
		Help: "1 while the reader is paused for backpressure",
	})

	metricBlocksReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chronicle_receiver_blocks_received_total",
		Help: "Blocks accepted from the stream",
	})

	metricForks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chronicle_receiver_forks_total",
		Help: "Fork events, including restart recoveries",
	})

	metricAbiErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chronicle_receiver_abi_errors_total",
		Help: "Contract ABIs that failed to parse or were missing",
	})
)
