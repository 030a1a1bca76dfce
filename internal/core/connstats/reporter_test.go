package connstats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dep2p/go-connstats/internal/core/eventbus"
	connstatsif "github.com/dep2p/go-connstats/pkg/interfaces/connstats"
)

func TestReporter_Report(t *testing.T) {
	cfg := connstatsif.DefaultConfig()
	cfg.TopN = 1
	cfg.IdleTimeout = time.Minute
	tr, mock := newTestTracker(t, cfg)

	busy := tr.Open("busy")
	busy.AddSentBytes(1000)
	tr.Open("quiet").AddReceivedBytes(1)

	mock.Add(2 * time.Minute)
	busy.UpdateLastActivity()

	r := NewReporter(tr, WithClock(mock))
	report := r.Report()

	assert.True(t, report.Timestamp.Equal(mock.Now()))
	assert.Equal(t, 2, report.Connections)
	assert.Equal(t, int64(1000), report.Totals.TotalSent)
	assert.Equal(t, int64(1), report.Totals.TotalReceived)
	require.Len(t, report.Top, 1)
	assert.Equal(t, "busy", report.Top[0].Remote)
	require.Len(t, report.Idle, 1)
	assert.Equal(t, "quiet", report.Idle[0].Remote)
}

func TestReporter_IdleDisabled(t *testing.T) {
	cfg := connstatsif.DefaultConfig()
	cfg.IdleTimeout = 0
	tr, mock := newTestTracker(t, cfg)
	tr.Open("a")
	mock.Add(time.Hour)

	assert.Empty(t, NewReporter(tr, WithClock(mock)).Report().Idle)
}

func TestReporter_DroppedUpdates(t *testing.T) {
	bus := eventbus.NewBus()
	defer bus.Close()
	stalled, err := eventbus.Subscribe[connstatsif.EvtStatisticUpdated](bus, eventbus.BufSize(0))
	require.NoError(t, err)
	defer stalled.Close()

	tr, mock := newTestTracker(t, connstatsif.DefaultConfig(), WithEventBus(bus))
	stat := tr.Open("peer")
	for i := 0; i < 10; i++ {
		stat.AddSentBytes(1)
	}

	r := NewReporter(tr, WithClock(mock))
	report := r.Report()
	assert.Equal(t, int64(10), report.DroppedUpdates)

	buf := captureLogs(t)
	r.logReport(report)
	assert.Contains(t, buf.String(), "慢消费者检测")
	assert.Contains(t, buf.String(), "dropped=10")

	// 没有新的丢弃时不再告警
	buf.Reset()
	r.logReport(r.Report())
	assert.NotContains(t, buf.String(), "慢消费者检测")

	stat.AddSentBytes(1)
	buf.Reset()
	r.logReport(r.Report())
	assert.Contains(t, buf.String(), "dropped=1 ")
	assert.Contains(t, buf.String(), "droppedTotal=11")
}

func TestReporter_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	tr, mock := newTestTracker(t, connstatsif.DefaultConfig())
	r := NewReporter(tr, WithClock(mock))

	r.Start(time.Minute)
	assert.True(t, r.Running())

	// 重复启动无效果
	r.Start(time.Minute)

	mock.Add(time.Minute)
	require.Eventually(t, func() bool { return r.Reports() == 1 }, time.Second, 5*time.Millisecond)

	mock.Add(time.Minute)
	require.Eventually(t, func() bool { return r.Reports() == 2 }, time.Second, 5*time.Millisecond)

	r.Stop()
	assert.False(t, r.Running())

	// 重复停止无效果
	r.Stop()
}

func TestReporter_ZeroIntervalNotStarted(t *testing.T) {
	tr, _ := newTestTracker(t, connstatsif.DefaultConfig())
	r := NewReporter(tr)

	r.Start(0)
	assert.False(t, r.Running())
	r.Stop()
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "0 B", FormatBytes(0))
	assert.Equal(t, "1.5 kB", FormatBytes(1500))
	assert.Equal(t, "-1.5 kB", FormatBytes(-1500))
	assert.Equal(t, "2.0 kB/s", FormatRate(2000))
}
