package connstats

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	connstatsif "github.com/dep2p/go-connstats/pkg/interfaces/connstats"
)

func TestCollector_Totals(t *testing.T) {
	cfg := connstatsif.DefaultConfig()
	cfg.ExportPerConnection = false
	tr, _ := newTestTracker(t, cfg)

	stat := tr.Open("peer")
	stat.AddSentBytes(100)
	stat.AddReceivedBytes(50)
	tr.Open("other")

	c := NewCollector(tr)
	expected := `
# HELP connstats_bytes_total Total bytes transferred by all connections, including closed ones.
# TYPE connstats_bytes_total counter
connstats_bytes_total{direction="received"} 50
connstats_bytes_total{direction="sent"} 100
# HELP connstats_connections Number of tracked connections.
# TYPE connstats_connections gauge
connstats_connections 2
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"connstats_bytes_total", "connstats_connections"))

	assert.Zero(t, testutil.CollectAndCount(c, "connstats_connection_bytes_total"))
}

func TestCollector_PerConnection(t *testing.T) {
	tr, _ := newTestTracker(t, connstatsif.DefaultConfig())

	a := tr.Open("a")
	a.AddSentMessage("Ping")
	a.AddReceivedMessage("Pong")
	a.AddReceivedMessage("Inv")
	tr.Open("b")

	c := NewCollector(tr)
	assert.Equal(t, 4, testutil.CollectAndCount(c, "connstats_connection_bytes_total"))
	assert.Equal(t, 2, testutil.CollectAndCount(c, "connstats_connection_round_trip_time_seconds"))
	assert.Equal(t, 3, testutil.CollectAndCount(c, "connstats_connection_messages_total"))
}

func TestCollector_ClosedConnectionsLeaveTotals(t *testing.T) {
	tr, _ := newTestTracker(t, connstatsif.DefaultConfig())
	stat := tr.Open("a")
	stat.AddSentBytes(10)
	_, err := tr.CloseConnection(stat.ID())
	require.NoError(t, err)

	c := NewCollector(tr)
	assert.Zero(t, testutil.CollectAndCount(c, "connstats_connection_bytes_total"))
	assert.Equal(t, 1, testutil.CollectAndCount(c, "connstats_closed_connections_retained"))

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))
	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != "connstats_bytes_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			if m.GetLabel()[0].GetValue() == directionSent {
				assert.Equal(t, 10.0, m.GetCounter().GetValue())
			}
		}
	}
}

func TestCollector_Namespace(t *testing.T) {
	cfg := connstatsif.DefaultConfig()
	cfg.Namespace = "node"
	tr, _ := newTestTracker(t, cfg)

	c := NewCollector(tr)
	assert.Equal(t, 1, testutil.CollectAndCount(c, "node_connections"))
}

func TestCollector_InvalidUTF8Labels(t *testing.T) {
	tr, _ := newTestTracker(t, connstatsif.DefaultConfig())

	stat := tr.Open("\xffpeer")
	stat.AddReceivedMessage("\xff")
	stat.AddReceivedMessage("\xfe")
	stat.AddReceivedMessage("")
	stat.AddSentMessage("\xff")

	c := NewCollector(tr)
	assert.NotPanics(t, func() {
		ch := make(chan prometheus.Metric, 64)
		c.Collect(ch)
		close(ch)
	})

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))

	var families []*dto.MetricFamily
	require.NotPanics(t, func() {
		var err error
		families, err = reg.Gather()
		require.NoError(t, err)
	})

	received := make(map[string]float64)
	for _, mf := range families {
		switch mf.GetName() {
		case "connstats_connection_messages_total":
			assert.Equal(t, dto.MetricType_COUNTER, mf.GetType())
			for _, m := range mf.GetMetric() {
				labels := make(map[string]string)
				for _, l := range m.GetLabel() {
					labels[l.GetName()] = l.GetValue()
				}
				assert.Equal(t, "\uFFFDpeer", labels["remote"])
				if labels["direction"] == directionReceived {
					received[labels["type"]] = m.GetCounter().GetValue()
				}
			}
		case "connstats_connection_bytes_total":
			assert.Equal(t, dto.MetricType_COUNTER, mf.GetType())
		}
	}

	// \xff 与 \xfe 替换后标签相同，计数合并
	assert.Equal(t, map[string]float64{"\uFFFD": 2, "": 1}, received)
}
