package connstats

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	connstatsif "github.com/dep2p/go-connstats/pkg/interfaces/connstats"
)

// ============================================================================
//                              Prometheus 导出
// ============================================================================

const (
	directionSent     = "sent"
	directionReceived = "received"
)

// Collector 将连接统计导出为 Prometheus 指标
//
// 每次抓取时读取当前值，不保存历史。
type Collector struct {
	tracker       *Tracker
	perConnection bool

	bytesTotal   *prometheus.Desc
	bytesRate    *prometheus.Desc
	connections  *prometheus.Desc
	closed       *prometheus.Desc
	connBytes    *prometheus.Desc
	connRTT      *prometheus.Desc
	connIdle     *prometheus.Desc
	connAge      *prometheus.Desc
	connMessages *prometheus.Desc
}

// 确保实现接口
var _ prometheus.Collector = (*Collector)(nil)

// NewCollector 创建 Collector，指标名前缀取自 Config.Namespace
func NewCollector(tracker *Tracker) *Collector {
	cfg := tracker.Config()
	ns := cfg.Namespace
	connLabels := []string{"conn", "remote"}

	return &Collector{
		tracker:       tracker,
		perConnection: cfg.ExportPerConnection,

		bytesTotal: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "", "bytes_total"),
			"Total bytes transferred by all connections, including closed ones.",
			[]string{"direction"}, nil,
		),
		bytesRate: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "", "bytes_per_second"),
			"Average transfer rate over the last minute.",
			[]string{"direction"}, nil,
		),
		connections: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "", "connections"),
			"Number of tracked connections.",
			nil, nil,
		),
		closed: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "", "closed_connections_retained"),
			"Number of closed connection snapshots retained in history.",
			nil, nil,
		),
		connBytes: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "connection", "bytes_total"),
			"Bytes transferred by a connection.",
			append(connLabels, "direction"), nil,
		),
		connRTT: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "connection", "round_trip_time_seconds"),
			"Most recent round-trip time of a connection.",
			connLabels, nil,
		),
		connIdle: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "connection", "idle_seconds"),
			"Time since the last activity on a connection.",
			connLabels, nil,
		),
		connAge: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "connection", "age_seconds"),
			"Time since a connection statistic was created.",
			connLabels, nil,
		),
		connMessages: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "connection", "messages_total"),
			"Messages transferred by a connection, by message type.",
			append(connLabels, "direction", "type"), nil,
		),
	}
}

// Describe 实现 prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.bytesTotal
	ch <- c.bytesRate
	ch <- c.connections
	ch <- c.closed
	if c.perConnection {
		ch <- c.connBytes
		ch <- c.connRTT
		ch <- c.connIdle
		ch <- c.connAge
		ch <- c.connMessages
	}
}

// Collect 实现 prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	totals := c.tracker.Registry().Totals()
	ch <- prometheus.MustNewConstMetric(c.bytesTotal, prometheus.CounterValue, float64(totals.TotalSent), directionSent)
	ch <- prometheus.MustNewConstMetric(c.bytesTotal, prometheus.CounterValue, float64(totals.TotalReceived), directionReceived)
	ch <- prometheus.MustNewConstMetric(c.bytesRate, prometheus.GaugeValue, totals.SentRate, directionSent)
	ch <- prometheus.MustNewConstMetric(c.bytesRate, prometheus.GaugeValue, totals.ReceivedRate, directionReceived)
	ch <- prometheus.MustNewConstMetric(c.connections, prometheus.GaugeValue, float64(c.tracker.Count()))
	ch <- prometheus.MustNewConstMetric(c.closed, prometheus.GaugeValue, float64(len(c.tracker.Closed())))

	if !c.perConnection {
		return
	}

	now := c.tracker.clk.Now()
	for _, snap := range c.tracker.Connections() {
		c.collectConnection(ch, snap, now.Sub(snap.CreationTime).Seconds())
	}
}

// collectConnection 导出单个连接的指标
//
// 远端地址与消息类型来自调用方，可能不是合法 UTF-8，导出前统一替换。
// 替换后相同的类型标签合并计数。
func (c *Collector) collectConnection(ch chan<- prometheus.Metric, snap connstatsif.Snapshot, age float64) {
	id, remote := labelValue(snap.ID), labelValue(snap.Remote)

	sendMetric(ch, c.connBytes, prometheus.CounterValue, float64(snap.SentBytes), id, remote, directionSent)
	sendMetric(ch, c.connBytes, prometheus.CounterValue, float64(snap.ReceivedBytes), id, remote, directionReceived)
	sendMetric(ch, c.connRTT, prometheus.GaugeValue, float64(snap.RoundTripTimeMillis)/1000, id, remote)
	sendMetric(ch, c.connIdle, prometheus.GaugeValue, snap.LastActivityAge.Seconds(), id, remote)
	sendMetric(ch, c.connAge, prometheus.GaugeValue, age, id, remote)

	for t, n := range messageLabels(snap.SentMessages) {
		sendMetric(ch, c.connMessages, prometheus.CounterValue, float64(n), id, remote, directionSent, t)
	}
	for t, n := range messageLabels(snap.ReceivedMessages) {
		sendMetric(ch, c.connMessages, prometheus.CounterValue, float64(n), id, remote, directionReceived, t)
	}
}

// sendMetric 构造常量指标，失败时发送 InvalidMetric，由 Gather 作为错误返回
func sendMetric(ch chan<- prometheus.Metric, desc *prometheus.Desc, vt prometheus.ValueType, v float64, labels ...string) {
	m, err := prometheus.NewConstMetric(desc, vt, v, labels...)
	if err != nil {
		m = prometheus.NewInvalidMetric(desc, err)
	}
	ch <- m
}

func labelValue(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

func messageLabels(counts map[connstatsif.MessageType]int64) map[string]int64 {
	out := make(map[string]int64, len(counts))
	for t, n := range counts {
		out[labelValue(string(t))] += n
	}
	return out
}
