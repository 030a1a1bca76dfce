package connstats

import (
	"net"

	corestats "github.com/dep2p/go-connstats/internal/core/connstats"
	connstatsif "github.com/dep2p/go-connstats/pkg/interfaces/connstats"
)

// ════════════════════════════════════════════════════════════════════════════
//                              类型导出
// ════════════════════════════════════════════════════════════════════════════

type (
	// Statistic 单个连接的统计
	Statistic = corestats.Statistic

	// Registry 进程级统计
	Registry = corestats.Registry

	// Tracker 当前连接的跟踪器
	Tracker = corestats.Tracker

	// Snapshot 单连接统计快照
	Snapshot = connstatsif.Snapshot

	// Totals 进程级统计快照
	Totals = connstatsif.Totals

	// MessageType 消息类型标签
	MessageType = connstatsif.MessageType

	// Typed 可声明自身类型标签的消息
	Typed = connstatsif.Typed
)

// MessageTypeUnknown 未声明类型的消息使用的标签
const MessageTypeUnknown = connstatsif.MessageTypeUnknown

// TypeOf 返回消息的类型标签
func TypeOf(msg any) MessageType {
	return connstatsif.TypeOf(msg)
}

// NewRegistry 创建独立于服务的进程级统计
func NewRegistry() *Registry {
	return corestats.NewRegistry()
}

// NewStatistic 创建累加到 registry 的连接统计
func NewStatistic(registry *Registry) *Statistic {
	return corestats.NewStatistic(registry)
}

// WrapConn 包装连接，读写的字节数与活动时间记入 stat
func WrapConn(c net.Conn, stat *Statistic) net.Conn {
	return corestats.WrapConn(c, stat)
}
