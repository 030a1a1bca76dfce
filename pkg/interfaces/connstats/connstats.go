// Package connstats 定义连接统计接口
//
// 连接统计模块负责：
// - 单连接的字节计数（发送/接收）
// - 单连接按消息类型的计数
// - 往返时延（RTT）与最近活动时间
// - 进程级的发送/接收字节总量
//
// 所有记录操作都不返回错误，也不会阻塞调用方的网络 I/O 路径。
package connstats

import (
	"fmt"
	"time"
)

// ============================================================================
//                              消息类型
// ============================================================================

// MessageType 消息类型标签
//
// 用作按类型计数的键。标签由消息自身声明，不依赖运行时反射。
type MessageType string

// MessageTypeUnknown 未声明类型的消息使用的标签
const MessageTypeUnknown MessageType = "Unknown"

// Typed 可声明自身类型标签的消息
type Typed interface {
	MessageType() MessageType
}

// TypeOf 返回消息的类型标签
//
// 未实现 Typed 的消息（包括 nil）返回 MessageTypeUnknown。
func TypeOf(msg any) MessageType {
	if t, ok := msg.(Typed); ok {
		return t.MessageType()
	}
	return MessageTypeUnknown
}

// ============================================================================
//                              统计字段
// ============================================================================

// Field 统计字段标识，用于变更通知
type Field int

const (
	// FieldActivity 最近活动时间
	FieldActivity Field = iota
	// FieldSentBytes 发送字节数
	FieldSentBytes
	// FieldReceivedBytes 接收字节数
	FieldReceivedBytes
	// FieldSentMessages 发送消息计数
	FieldSentMessages
	// FieldReceivedMessages 接收消息计数
	FieldReceivedMessages
	// FieldRoundTripTime 往返时延
	FieldRoundTripTime
)

// String 返回字段名称
func (f Field) String() string {
	switch f {
	case FieldActivity:
		return "activity"
	case FieldSentBytes:
		return "sentBytes"
	case FieldReceivedBytes:
		return "receivedBytes"
	case FieldSentMessages:
		return "sentMessages"
	case FieldReceivedMessages:
		return "receivedMessages"
	case FieldRoundTripTime:
		return "roundTripTime"
	default:
		return fmt.Sprintf("field(%d)", int(f))
	}
}

// ============================================================================
//                              快照
// ============================================================================

// Snapshot 单连接统计快照
//
// 各字段分别原子读取，快照整体不保证跨字段一致。
type Snapshot struct {
	// ID 连接标识
	ID string `json:"id"`

	// Remote 远端地址（可选）
	Remote string `json:"remote,omitempty"`

	// CreationTime 统计创建时间
	CreationTime time.Time `json:"creationTime"`

	// LastActivity 最近活动时间
	LastActivity time.Time `json:"lastActivity"`

	// LastActivityAge 距最近活动的时长
	LastActivityAge time.Duration `json:"lastActivityAgeNs"`

	// SentBytes 累计发送字节数
	SentBytes int64 `json:"sentBytes"`

	// ReceivedBytes 累计接收字节数
	ReceivedBytes int64 `json:"receivedBytes"`

	// SentMessages 按类型的发送消息计数
	SentMessages map[MessageType]int64 `json:"sentMessages"`

	// ReceivedMessages 按类型的接收消息计数
	ReceivedMessages map[MessageType]int64 `json:"receivedMessages"`

	// RoundTripTimeMillis 最近一次 RTT（毫秒）
	RoundTripTimeMillis int64 `json:"roundTripTimeMs"`

	// SentRate 发送速率 (bytes/sec)
	SentRate float64 `json:"sentRate"`

	// ReceivedRate 接收速率 (bytes/sec)
	ReceivedRate float64 `json:"receivedRate"`
}

// TotalBytes 返回发送与接收字节数之和
func (s Snapshot) TotalBytes() int64 {
	return s.SentBytes + s.ReceivedBytes
}

// String 返回简要描述
func (s Snapshot) String() string {
	return fmt.Sprintf("Statistic{creationTime=%s, lastActivity=%s, sentBytes=%d, receivedBytes=%d}",
		s.CreationTime.Format(time.RFC3339Nano),
		s.LastActivity.Format(time.RFC3339Nano),
		s.SentBytes,
		s.ReceivedBytes,
	)
}

// Totals 进程级统计
type Totals struct {
	// TotalSent 所有连接累计发送字节数（包括已关闭的连接）
	TotalSent int64 `json:"totalSent"`

	// TotalReceived 所有连接累计接收字节数（包括已关闭的连接）
	TotalReceived int64 `json:"totalReceived"`

	// SentRate 发送速率 (bytes/sec)
	SentRate float64 `json:"sentRate"`

	// ReceivedRate 接收速率 (bytes/sec)
	ReceivedRate float64 `json:"receivedRate"`
}

// Report 周期报告
type Report struct {
	// Timestamp 报告生成时间
	Timestamp time.Time `json:"timestamp"`

	// Interval 报告周期
	Interval time.Duration `json:"interval"`

	// Totals 全局统计
	Totals Totals `json:"totals"`

	// Connections 当前连接数
	Connections int `json:"connections"`

	// Top 流量最大的连接
	Top []Snapshot `json:"top,omitempty"`

	// Idle 超过空闲阈值的连接
	Idle []Snapshot `json:"idle,omitempty"`

	// DroppedUpdates 因订阅者过慢而丢弃的 EvtStatisticUpdated 累计数
	DroppedUpdates int64 `json:"droppedUpdates"`
}

// ============================================================================
//                              接口
// ============================================================================

// Recorder 单连接统计的写入接口
//
// 由传输层/消息层调用。所有方法都是并发安全的全函数。
type Recorder interface {
	// UpdateLastActivity 将最近活动时间更新为当前时间
	UpdateLastActivity()

	// AddSentBytes 增加发送字节数，同时累加到全局总量
	AddSentBytes(n int64)

	// AddReceivedBytes 增加接收字节数，同时累加到全局总量
	AddReceivedBytes(n int64)

	// AddSentMessage 按类型记录一条发送消息
	AddSentMessage(t MessageType)

	// AddReceivedMessage 按类型记录一条接收消息
	AddReceivedMessage(t MessageType)

	// SetRoundTripTime 覆盖最近一次 RTT（毫秒）
	SetRoundTripTime(ms int64)
}

// Reader 单连接统计的只读接口
type Reader interface {
	ID() string
	CreationTime() time.Time
	LastActivity() time.Time
	LastActivityAge() time.Duration
	SentBytes() int64
	ReceivedBytes() int64
	SentMessages() map[MessageType]int64
	ReceivedMessages() map[MessageType]int64
	RoundTripTimeMillis() int64
	Snapshot() Snapshot
}

// Statistics 单连接统计
type Statistics interface {
	Recorder
	Reader
}

// GlobalRegistry 进程级统计
type GlobalRegistry interface {
	AddSent(n int64)
	AddReceived(n int64)
	TotalSent() int64
	TotalReceived() int64
	Totals() Totals
}

// ============================================================================
//                              事件
// ============================================================================

// EvtStatisticUpdated 单连接统计字段变更
type EvtStatisticUpdated struct {
	ConnID string
	Field  Field
}

// EvtConnectionOpened 连接开始被跟踪
type EvtConnectionOpened struct {
	ConnID string
	Remote string
}

// EvtConnectionClosed 连接停止被跟踪
type EvtConnectionClosed struct {
	ConnID string
	Remote string
	Final  Snapshot
}

// ============================================================================
//                              配置
// ============================================================================

// Config 连接统计配置
type Config struct {
	// TrackMessages 是否按类型统计消息
	// 默认 true
	TrackMessages bool

	// ClosedHistory 保留的已关闭连接快照数量，0 表示不保留
	// 默认 64
	ClosedHistory int

	// IdleTimeout 空闲阈值，超过此时长无活动的连接会在报告中标记
	// 默认 5 分钟
	IdleTimeout time.Duration

	// ReportInterval 报告间隔，0 表示不启动周期报告
	// 默认 1 分钟
	ReportInterval time.Duration

	// TopN 报告中列出的流量最大连接数
	// 默认 10
	TopN int

	// ExportPerConnection 是否按连接导出 Prometheus 指标
	// 默认 true
	ExportPerConnection bool

	// Namespace Prometheus 指标命名空间
	// 默认 "connstats"
	Namespace string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		TrackMessages:       true,
		ClosedHistory:       64,
		IdleTimeout:         5 * time.Minute,
		ReportInterval:      time.Minute,
		TopN:                10,
		ExportPerConnection: true,
		Namespace:           "connstats",
	}
}
