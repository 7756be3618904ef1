package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCollectorWithRegistry_RecordsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectorWithRegistry(reg)

	c.OpportunitiesDetectedTotal.WithLabelValues("bsc").Inc()
	c.TransactionsDetectedTotal.WithLabelValues("bsc", "2-hop").Inc()
	c.WebsocketConnections.Set(3)

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range families {
		if mf.GetName() == "arbd_opportunities_detected_total" {
			found = true
			require.Len(t, mf.Metric, 1)
			assert.Equal(t, float64(1), mf.Metric[0].Counter.GetValue())
		}
	}
	assert.True(t, found, "expected arbd_opportunities_detected_total to be registered")
}

func TestNewCollectorWithRegistry_BlocksBehindGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectorWithRegistry(reg)
	c.BlocksBehind.WithLabelValues("ethereum").Set(5)

	families, err := reg.Gather()
	require.NoError(t, err)

	var gauge *dto.Metric
	for _, mf := range families {
		if mf.GetName() == "arbd_blocks_behind" {
			gauge = mf.Metric[0]
		}
	}
	require.NotNil(t, gauge)
	assert.Equal(t, float64(5), gauge.Gauge.GetValue())
}

func TestCollector_HelperMethodsRecordUnderlyingMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectorWithRegistry(reg)

	c.ObserveRPCRequest("bsc", "eth_call", 0.05)
	c.IncRPCError("bsc", "eth_call")
	c.SetBlocksBehind("bsc", 3)
	c.IncTransactionsDetected("bsc", "2-hop")
	c.IncWebsocketMessages("opportunity")
	c.StoreConnections.WithLabelValues("total").Set(10)

	assert.Equal(t, float64(1), testutil.ToFloat64(c.RPCErrorsTotal.WithLabelValues("bsc", "eth_call")))
	assert.Equal(t, float64(3), testutil.ToFloat64(c.BlocksBehind.WithLabelValues("bsc")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.TransactionsDetectedTotal.WithLabelValues("bsc", "2-hop")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.WebsocketMessagesTotal.WithLabelValues("opportunity")))
	assert.Equal(t, float64(10), testutil.ToFloat64(c.StoreConnections.WithLabelValues("total")))
}
