package connstats

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/atomic"

	connstatsif "github.com/dep2p/go-connstats/pkg/interfaces/connstats"
)

// ============================================================================
//                              单连接统计
// ============================================================================

// Statistic 单个连接的统计
//
// 由该连接的 I/O 回调写入，由观察者（界面、日志、健康检查）读取。
// 写入方通常只有一个，但并发写入同样安全，只是不保证相互之间的顺序。
type Statistic struct {
	id       string
	remote   string
	clk      clock.Clock
	registry *Registry
	notifier *Notifier

	creationTime time.Time

	// lastActivity Unix 纳秒，只向前推进
	lastActivity atomic.Int64

	sentBytes     atomic.Int64
	receivedBytes atomic.Int64
	roundTripTime atomic.Int64 // 毫秒

	sentRate     *RateMeter
	receivedRate *RateMeter

	trackMessages    bool
	msgMu            sync.RWMutex
	sentMessages     map[connstatsif.MessageType]*atomic.Int64
	receivedMessages map[connstatsif.MessageType]*atomic.Int64
}

// 确保实现接口
var _ connstatsif.Statistics = (*Statistic)(nil)

// NewStatistic 创建连接统计
//
// registry 为 nil 时使用一个私有的 Registry，字节数不会计入任何共享总量。
func NewStatistic(registry *Registry, opts ...Option) *Statistic {
	o := applyOptions(opts)
	if registry == nil {
		registry = NewRegistry(WithClock(o.clock))
	}

	id := o.id
	if id == "" {
		id = uuid.NewString()
	}

	now := o.clock.Now()
	s := &Statistic{
		id:               id,
		remote:           o.remote,
		clk:              o.clock,
		registry:         registry,
		notifier:         o.notifier,
		creationTime:     now,
		sentRate:         NewRateMeter(o.clock),
		receivedRate:     NewRateMeter(o.clock),
		trackMessages:    o.trackMessages,
		sentMessages:     make(map[connstatsif.MessageType]*atomic.Int64),
		receivedMessages: make(map[connstatsif.MessageType]*atomic.Int64),
	}
	s.lastActivity.Store(now.UnixNano())
	return s
}

// ==================== 记录 ====================

// UpdateLastActivity 将最近活动时间更新为当前时间
//
// 时钟回拨时保持原值，最近活动时间不会倒退。
func (s *Statistic) UpdateLastActivity() {
	now := s.clk.Now().UnixNano()
	for {
		prev := s.lastActivity.Load()
		if now <= prev {
			return
		}
		if s.lastActivity.CompareAndSwap(prev, now) {
			s.notifier.notify(s.id, connstatsif.FieldActivity)
			return
		}
	}
}

// AddSentBytes 增加发送字节数，并累加到全局发送总量
func (s *Statistic) AddSentBytes(n int64) {
	s.sentBytes.Add(n)
	s.registry.AddSent(n)
	s.sentRate.Add(n)
	s.notifier.notify(s.id, connstatsif.FieldSentBytes)
}

// AddReceivedBytes 增加接收字节数，并累加到全局接收总量
func (s *Statistic) AddReceivedBytes(n int64) {
	s.receivedBytes.Add(n)
	s.registry.AddReceived(n)
	s.receivedRate.Add(n)
	s.notifier.notify(s.id, connstatsif.FieldReceivedBytes)
}

// AddSentMessage 记录一条发送消息
func (s *Statistic) AddSentMessage(t connstatsif.MessageType) {
	if !s.trackMessages {
		return
	}
	s.increment(s.sentMessages, t)
	s.notifier.notify(s.id, connstatsif.FieldSentMessages)
}

// AddReceivedMessage 记录一条接收消息
func (s *Statistic) AddReceivedMessage(t connstatsif.MessageType) {
	if !s.trackMessages {
		return
	}
	s.increment(s.receivedMessages, t)
	s.notifier.notify(s.id, connstatsif.FieldReceivedMessages)
}

// SetRoundTripTime 覆盖最近一次往返时延（毫秒）
func (s *Statistic) SetRoundTripTime(ms int64) {
	s.roundTripTime.Store(ms)
	s.notifier.notify(s.id, connstatsif.FieldRoundTripTime)
}

// increment 将指定类型的计数加 1
//
// 首次出现的类型在写锁内以 1 插入，读取方不会看到计数为 0 的键。
func (s *Statistic) increment(m map[connstatsif.MessageType]*atomic.Int64, t connstatsif.MessageType) {
	s.msgMu.RLock()
	c, ok := m[t]
	s.msgMu.RUnlock()
	if ok {
		c.Inc()
		return
	}

	s.msgMu.Lock()
	if c, ok = m[t]; ok {
		c.Inc()
	} else {
		m[t] = atomic.NewInt64(1)
	}
	s.msgMu.Unlock()
}

// ==================== 读取 ====================

// ID 返回连接标识
func (s *Statistic) ID() string {
	return s.id
}

// Remote 返回远端地址
func (s *Statistic) Remote() string {
	return s.remote
}

// CreationTime 返回创建时间
func (s *Statistic) CreationTime() time.Time {
	return s.creationTime
}

// LastActivity 返回最近活动时间
func (s *Statistic) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// LastActivityAge 返回距最近活动的时长，不小于 0
func (s *Statistic) LastActivityAge() time.Duration {
	age := s.clk.Now().Sub(s.LastActivity())
	if age < 0 {
		return 0
	}
	return age
}

// SentBytes 返回累计发送字节数
func (s *Statistic) SentBytes() int64 {
	return s.sentBytes.Load()
}

// ReceivedBytes 返回累计接收字节数
func (s *Statistic) ReceivedBytes() int64 {
	return s.receivedBytes.Load()
}

// SentRate 返回发送速率（字节/秒）
func (s *Statistic) SentRate() float64 {
	return s.sentRate.Rate()
}

// ReceivedRate 返回接收速率（字节/秒）
func (s *Statistic) ReceivedRate() float64 {
	return s.receivedRate.Rate()
}

// SentMessages 返回按类型的发送计数副本
//
// 从未出现过的类型不在结果中。
func (s *Statistic) SentMessages() map[connstatsif.MessageType]int64 {
	return s.copyCounts(s.sentMessages)
}

// ReceivedMessages 返回按类型的接收计数副本
func (s *Statistic) ReceivedMessages() map[connstatsif.MessageType]int64 {
	return s.copyCounts(s.receivedMessages)
}

// RoundTripTimeMillis 返回最近一次往返时延（毫秒）
func (s *Statistic) RoundTripTimeMillis() int64 {
	return s.roundTripTime.Load()
}

// RoundTripTime 返回最近一次往返时延
func (s *Statistic) RoundTripTime() time.Duration {
	return time.Duration(s.roundTripTime.Load()) * time.Millisecond
}

// Registry 返回该连接累加到的全局统计
func (s *Statistic) Registry() *Registry {
	return s.registry
}

// Snapshot 返回当前统计快照
func (s *Statistic) Snapshot() connstatsif.Snapshot {
	return connstatsif.Snapshot{
		ID:                  s.id,
		Remote:              s.remote,
		CreationTime:        s.creationTime,
		LastActivity:        s.LastActivity(),
		LastActivityAge:     s.LastActivityAge(),
		SentBytes:           s.SentBytes(),
		ReceivedBytes:       s.ReceivedBytes(),
		SentMessages:        s.SentMessages(),
		ReceivedMessages:    s.ReceivedMessages(),
		RoundTripTimeMillis: s.RoundTripTimeMillis(),
		SentRate:            s.SentRate(),
		ReceivedRate:        s.ReceivedRate(),
	}
}

// String 返回简要描述
func (s *Statistic) String() string {
	return s.Snapshot().String()
}

func (s *Statistic) copyCounts(m map[connstatsif.MessageType]*atomic.Int64) map[connstatsif.MessageType]int64 {
	s.msgMu.RLock()
	defer s.msgMu.RUnlock()

	out := make(map[connstatsif.MessageType]int64, len(m))
	for t, c := range m {
		out[t] = c.Load()
	}
	return out
}
