package connstats

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dustin/go-humanize"
	"go.uber.org/atomic"

	connstatsif "github.com/dep2p/go-connstats/pkg/interfaces/connstats"
)

// ============================================================================
//                              报告器实现
// ============================================================================

// Reporter 周期性记录全局统计与流量最大的连接
type Reporter struct {
	tracker  *Tracker
	clk      clock.Clock
	topN     int
	idle     time.Duration
	interval atomic.Duration

	mu      sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
	running atomic.Bool
	reports atomic.Int64

	// lastDropped 上次报告时的丢弃计数
	lastDropped atomic.Int64
}

// NewReporter 创建报告器
func NewReporter(tracker *Tracker, opts ...Option) *Reporter {
	o := applyOptions(opts)
	cfg := tracker.Config()
	return &Reporter{
		tracker: tracker,
		clk:     o.clock,
		topN:    cfg.TopN,
		idle:    cfg.IdleTimeout,
	}
}

// Start 启动定期报告
//
// interval <= 0 或已在运行时不做任何事。
func (r *Reporter) Start(interval time.Duration) {
	if interval <= 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running.Load() {
		return
	}

	r.interval.Store(interval)
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.running.Store(true)

	ticker := r.clk.Ticker(interval)
	go func(stopCh, doneCh chan struct{}) {
		defer close(doneCh)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				r.logReport(r.Report())
			case <-stopCh:
				return
			}
		}
	}(r.stopCh, r.doneCh)
}

// Stop 停止报告并等待后台协程退出
func (r *Reporter) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running.Load() {
		return
	}

	r.running.Store(false)
	close(r.stopCh)
	<-r.doneCh
	r.stopCh = nil
	r.doneCh = nil
}

// Running 返回是否在运行
func (r *Reporter) Running() bool {
	return r.running.Load()
}

// Reports 返回已记录的报告数
func (r *Reporter) Reports() int64 {
	return r.reports.Load()
}

// Report 生成报告
func (r *Reporter) Report() *connstatsif.Report {
	report := &connstatsif.Report{
		Timestamp:   r.clk.Now(),
		Interval:    r.interval.Load(),
		Totals:      r.tracker.Registry().Totals(),
		Connections: r.tracker.Count(),
		Top:         r.tracker.TopConnections(r.topN),

		DroppedUpdates: r.tracker.DroppedUpdates(),
	}
	if r.idle > 0 {
		report.Idle = r.tracker.Idle(r.idle)
	}
	return report
}

// logReport 记录报告
func (r *Reporter) logReport(report *connstatsif.Report) {
	r.reports.Inc()

	log.Info("连接统计报告",
		"totalSent", FormatBytes(report.Totals.TotalSent),
		"totalReceived", FormatBytes(report.Totals.TotalReceived),
		"sentRate", FormatRate(report.Totals.SentRate),
		"receivedRate", FormatRate(report.Totals.ReceivedRate),
		"connections", report.Connections,
		"idle", len(report.Idle),
	)

	// 丢弃告警在报告周期内汇总，更新路径上不做 I/O
	if prev := r.lastDropped.Swap(report.DroppedUpdates); report.DroppedUpdates > prev {
		log.Warn("慢消费者检测",
			"dropped", report.DroppedUpdates-prev,
			"droppedTotal", report.DroppedUpdates,
			"type", "EvtStatisticUpdated",
			"reason", "subscriber buffer full")
	}

	for i, snap := range report.Top {
		log.Debug("流量排行",
			"rank", i+1,
			"conn", snap.ID,
			"remote", snap.Remote,
			"sent", FormatBytes(snap.SentBytes),
			"received", FormatBytes(snap.ReceivedBytes),
			"rttMs", snap.RoundTripTimeMillis,
		)
	}

	for _, snap := range report.Idle {
		log.Warn("连接空闲",
			"conn", snap.ID,
			"remote", snap.Remote,
			"age", snap.LastActivityAge.Truncate(time.Second),
		)
	}
}

// ============================================================================
//                              格式化
// ============================================================================

// FormatBytes 格式化字节数
//
// 负值保留符号，如 -1.5 kB。
func FormatBytes(n int64) string {
	if n < 0 {
		if n == -n {
			// math.MinInt64
			return fmt.Sprintf("%d B", n)
		}
		return "-" + humanize.Bytes(uint64(-n))
	}
	return humanize.Bytes(uint64(n))
}

// FormatRate 格式化速率
func FormatRate(bytesPerSec float64) string {
	if bytesPerSec < 0 {
		return "-" + humanize.Bytes(uint64(-bytesPerSec)) + "/s"
	}
	return humanize.Bytes(uint64(bytesPerSec)) + "/s"
}
