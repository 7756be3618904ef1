// Package metrics exposes the engine's Prometheus instrumentation: RPC
// health, detection throughput, and websocket hub activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds every Prometheus metric the engine records.
type Collector struct {
	RPCRequestDuration *prometheus.HistogramVec
	RPCErrorsTotal     *prometheus.CounterVec
	BlocksBehind       *prometheus.GaugeVec

	OpportunitiesDetectedTotal *prometheus.CounterVec
	TransactionsDetectedTotal  *prometheus.CounterVec
	TotalProfitDetectedUSD     *prometheus.CounterVec

	WebsocketConnections   prometheus.Gauge
	WebsocketMessagesTotal *prometheus.CounterVec

	StoreConnections *prometheus.GaugeVec
}

// NewCollector registers every metric against the default Prometheus
// registry and returns the handle used to record them.
func NewCollector() *Collector {
	return NewCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry registers every metric against reg, letting
// tests use a scratch registry instead of the global default.
func NewCollectorWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RPCRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "arbd_rpc_request_duration_seconds",
			Help:    "RPC call duration by chain and method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"chain", "method"}),
		RPCErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arbd_rpc_errors_total",
			Help: "Total RPC call failures by chain and method.",
		}, []string{"chain", "method"}),
		BlocksBehind: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "arbd_blocks_behind",
			Help: "Blocks between the chain tip and the last block the monitor processed.",
		}, []string{"chain"}),

		OpportunitiesDetectedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arbd_opportunities_detected_total",
			Help: "Total arbitrage opportunities detected by the pool scanner.",
		}, []string{"chain"}),
		TransactionsDetectedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arbd_transactions_detected_total",
			Help: "Total arbitrage transactions detected by the chain monitor, by strategy.",
		}, []string{"chain", "strategy"}),
		TotalProfitDetectedUSD: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arbd_total_profit_detected_usd",
			Help: "Cumulative estimated USD profit across opportunities detected by the pool scanner.",
		}, []string{"chain"}),

		WebsocketConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "arbd_websocket_connections",
			Help: "Current number of connected websocket clients.",
		}),
		WebsocketMessagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arbd_websocket_messages_total",
			Help: "Total websocket messages sent, by type.",
		}, []string{"type"}),

		StoreConnections: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "arbd_store_connections",
			Help: "Postgres connection pool size, by state (total, idle).",
		}, []string{"state"}),
	}
}

// ObserveRPCRequest records one RPC call's latency for chain/method.
// Implements chainconn.MetricsRecorder.
func (c *Collector) ObserveRPCRequest(chain, method string, seconds float64) {
	c.RPCRequestDuration.WithLabelValues(chain, method).Observe(seconds)
}

// IncRPCError records one failed RPC call for chain/method.
// Implements chainconn.MetricsRecorder.
func (c *Collector) IncRPCError(chain, method string) {
	c.RPCErrorsTotal.WithLabelValues(chain, method).Inc()
}

// SetBlocksBehind records how far chain's monitor trails the chain tip.
// Implements chainconn.MetricsRecorder and monitor.Metrics.
func (c *Collector) SetBlocksBehind(chain string, n float64) {
	c.BlocksBehind.WithLabelValues(chain).Set(n)
}

// IncTransactionsDetected records one confirmed arbitrage transaction for
// chain/strategy. Implements monitor.Metrics.
func (c *Collector) IncTransactionsDetected(chain, strategy string) {
	c.TransactionsDetectedTotal.WithLabelValues(chain, strategy).Inc()
}

// IncWebsocketMessages records one message delivered to a client mailbox,
// by message type. Implements broadcast.Metrics.
func (c *Collector) IncWebsocketMessages(msgType string) {
	c.WebsocketMessagesTotal.WithLabelValues(msgType).Inc()
}
