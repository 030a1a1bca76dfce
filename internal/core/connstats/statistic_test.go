package connstats

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-connstats/internal/core/eventbus"
	connstatsif "github.com/dep2p/go-connstats/pkg/interfaces/connstats"
)

// ============================================================================
//                              基础功能测试
// ============================================================================

func TestStatistic_New(t *testing.T) {
	mock := clock.NewMock()
	s := NewStatistic(NewRegistry(), WithClock(mock))

	assert.NotEmpty(t, s.ID())
	assert.True(t, s.CreationTime().Equal(mock.Now()))
	assert.True(t, s.LastActivity().Equal(s.CreationTime()))
	assert.Zero(t, s.SentBytes())
	assert.Zero(t, s.ReceivedBytes())
	assert.Zero(t, s.RoundTripTimeMillis())
	assert.Empty(t, s.SentMessages())
	assert.Empty(t, s.ReceivedMessages())
	assert.Zero(t, s.LastActivityAge())
}

func TestStatistic_NilRegistry(t *testing.T) {
	s := NewStatistic(nil)
	s.AddSentBytes(10)

	require.NotNil(t, s.Registry())
	assert.Equal(t, int64(10), s.Registry().TotalSent())
}

// 两个连接共享同一全局统计：C 发送 100 字节、D 发送 200 字节
func TestStatistic_SharedRegistryScenario(t *testing.T) {
	mock := clock.NewMock()
	reg := NewRegistry(WithClock(mock))

	c := NewStatistic(reg, WithClock(mock), WithID("C"))
	c.AddSentBytes(100)
	c.AddReceivedBytes(50)
	c.AddSentMessage("Ping")
	c.AddReceivedMessage("Pong")
	c.SetRoundTripTime(120)
	mock.Add(time.Second)
	c.UpdateLastActivity()

	assert.Zero(t, c.LastActivityAge())
	assert.Equal(t, int64(100), c.SentBytes())
	assert.Equal(t, int64(50), c.ReceivedBytes())
	assert.Equal(t, map[connstatsif.MessageType]int64{"Ping": 1}, c.SentMessages())
	assert.Equal(t, map[connstatsif.MessageType]int64{"Pong": 1}, c.ReceivedMessages())
	assert.Equal(t, int64(120), c.RoundTripTimeMillis())
	assert.Equal(t, 120*time.Millisecond, c.RoundTripTime())
	assert.Equal(t, int64(100), reg.TotalSent())
	assert.Equal(t, int64(50), reg.TotalReceived())

	d := NewStatistic(reg, WithClock(mock), WithID("D"))
	d.AddSentBytes(200)

	assert.Equal(t, int64(100), c.SentBytes())
	assert.Equal(t, int64(200), d.SentBytes())
	assert.Equal(t, int64(300), reg.TotalSent())
}

func TestStatistic_MessageCounts(t *testing.T) {
	s := NewStatistic(nil)

	for i := 0; i < 3; i++ {
		s.AddSentMessage("Ping")
	}
	s.AddSentMessage("GetData")
	s.AddSentMessage("")

	got := s.SentMessages()
	assert.Equal(t, int64(3), got["Ping"])
	assert.Equal(t, int64(1), got["GetData"])
	assert.Equal(t, int64(1), got[""])
	_, ok := got["Pong"]
	assert.False(t, ok, "从未出现的类型不应有条目")

	// 返回的是副本
	got["Ping"] = 100
	assert.Equal(t, int64(3), s.SentMessages()["Ping"])
}

func TestStatistic_MessageTrackingDisabled(t *testing.T) {
	s := NewStatistic(nil, WithMessageTracking(false))
	s.AddSentMessage("Ping")
	s.AddReceivedMessage("Pong")

	assert.Empty(t, s.SentMessages())
	assert.Empty(t, s.ReceivedMessages())
}

func TestStatistic_RoundTripTimeOverwrite(t *testing.T) {
	s := NewStatistic(nil)
	s.SetRoundTripTime(120)
	s.SetRoundTripTime(80)

	assert.Equal(t, int64(80), s.RoundTripTimeMillis())
}

func TestStatistic_ZeroBytes(t *testing.T) {
	reg := NewRegistry()
	s := NewStatistic(reg)
	s.AddSentBytes(0)
	s.AddReceivedBytes(0)

	assert.Zero(t, s.SentBytes())
	assert.Zero(t, reg.TotalSent())
	assert.Zero(t, reg.TotalReceived())
}

func TestStatistic_NegativeBytesStoredAsGiven(t *testing.T) {
	reg := NewRegistry()
	s := NewStatistic(reg)
	s.AddSentBytes(100)
	s.AddSentBytes(-30)

	assert.Equal(t, int64(70), s.SentBytes())
	assert.Equal(t, int64(70), reg.TotalSent())
}

// ============================================================================
//                              活动时间测试
// ============================================================================

func TestStatistic_LastActivityAge(t *testing.T) {
	mock := clock.NewMock()
	s := NewStatistic(nil, WithClock(mock))

	mock.Add(5 * time.Second)
	assert.Equal(t, 5*time.Second, s.LastActivityAge())

	s.UpdateLastActivity()
	assert.Zero(t, s.LastActivityAge())
	assert.True(t, s.LastActivity().Equal(mock.Now()))

	mock.Add(2 * time.Second)
	assert.Equal(t, 2*time.Second, s.LastActivityAge())
}

func TestStatistic_ByteUpdatesDoNotTouchActivity(t *testing.T) {
	mock := clock.NewMock()
	s := NewStatistic(nil, WithClock(mock))

	mock.Add(time.Second)
	s.AddSentBytes(10)

	assert.True(t, s.LastActivity().Equal(s.CreationTime()))
}

func TestStatistic_ActivityNeverMovesBackward(t *testing.T) {
	mock := clock.NewMock()
	mock.Add(time.Hour)
	s := NewStatistic(nil, WithClock(mock))

	mock.Add(10 * time.Second)
	s.UpdateLastActivity()
	later := s.LastActivity()

	// 时钟回拨
	mock.Set(mock.Now().Add(-time.Minute))
	s.UpdateLastActivity()

	assert.True(t, s.LastActivity().Equal(later))
	assert.Zero(t, s.LastActivityAge(), "回拨后时长不应为负")
	assert.False(t, s.LastActivity().Before(s.CreationTime()))
}

// ============================================================================
//                              快照测试
// ============================================================================

func TestStatistic_Snapshot(t *testing.T) {
	mock := clock.NewMock()
	s := NewStatistic(nil, WithClock(mock), WithID("conn-1"), WithRemote("10.0.0.1:8333"))
	s.AddSentBytes(100)
	s.AddReceivedBytes(50)
	s.AddSentMessage("Ping")
	s.SetRoundTripTime(42)
	mock.Add(3 * time.Second)

	snap := s.Snapshot()
	assert.Equal(t, "conn-1", snap.ID)
	assert.Equal(t, "10.0.0.1:8333", snap.Remote)
	assert.Equal(t, int64(100), snap.SentBytes)
	assert.Equal(t, int64(50), snap.ReceivedBytes)
	assert.Equal(t, int64(42), snap.RoundTripTimeMillis)
	assert.Equal(t, 3*time.Second, snap.LastActivityAge)
	assert.Equal(t, int64(1), snap.SentMessages["Ping"])
	assert.InDelta(t, 100.0/60, snap.SentRate, 1e-9)

	assert.Contains(t, s.String(), "sentBytes=100")
	assert.Contains(t, s.String(), "receivedBytes=50")
}

// ============================================================================
//                              通知测试
// ============================================================================

func TestStatistic_Notifier(t *testing.T) {
	bus := eventbus.NewBus()
	defer bus.Close()

	sub, err := eventbus.Subscribe[connstatsif.EvtStatisticUpdated](bus)
	require.NoError(t, err)
	defer sub.Close()

	n, err := NewNotifier(bus)
	require.NoError(t, err)
	defer n.Close()

	s := NewStatistic(nil, WithID("conn-1"), WithNotifier(n))
	s.AddSentBytes(1)
	s.SetRoundTripTime(5)

	for _, want := range []connstatsif.Field{connstatsif.FieldSentBytes, connstatsif.FieldRoundTripTime} {
		select {
		case evt := <-sub.Out():
			assert.Equal(t, "conn-1", evt.ConnID)
			assert.Equal(t, want, evt.Field)
		case <-time.After(time.Second):
			t.Fatalf("未收到 %s 事件", want)
		}
	}
}

func TestStatistic_NilNotifier(t *testing.T) {
	var n *Notifier
	assert.NotPanics(t, func() {
		n.notify("x", connstatsif.FieldActivity)
	})
	assert.NoError(t, n.Close())
}

// ============================================================================
//                              并发测试
// ============================================================================

func TestStatistic_ConcurrentUpdates(t *testing.T) {
	const (
		conns   = 8
		workers = 4
		updates = 1000
	)

	reg := NewRegistry()
	stats := make([]*Statistic, conns)
	for i := range stats {
		stats[i] = NewStatistic(reg)
	}

	var wg sync.WaitGroup
	for _, s := range stats {
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(s *Statistic) {
				defer wg.Done()
				for i := 0; i < updates; i++ {
					s.AddSentBytes(1)
					s.AddReceivedBytes(2)
					s.AddSentMessage("Ping")
					s.UpdateLastActivity()
				}
			}(s)
		}
	}
	wg.Wait()

	var sumSent, sumReceived int64
	for _, s := range stats {
		assert.Equal(t, int64(workers*updates), s.SentBytes())
		assert.Equal(t, int64(workers*updates), s.SentMessages()["Ping"])
		sumSent += s.SentBytes()
		sumReceived += s.ReceivedBytes()
	}
	assert.Equal(t, sumSent, reg.TotalSent())
	assert.Equal(t, sumReceived, reg.TotalReceived())
	assert.Equal(t, int64(conns*workers*updates*2), reg.TotalReceived())
}

func TestStatistic_ConcurrentReadWrite(t *testing.T) {
	s := NewStatistic(nil)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			s.AddReceivedMessage(connstatsif.MessageType(rune('a' + i%26)))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			for _, n := range s.ReceivedMessages() {
				if n < 1 {
					t.Errorf("计数为 %d 的键", n)
					return
				}
			}
		}
	}()
	wg.Wait()

	var total int64
	for _, n := range s.ReceivedMessages() {
		total += n
	}
	assert.Equal(t, int64(1000), total)
}
