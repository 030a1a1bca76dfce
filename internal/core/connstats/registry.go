package connstats

import (
	"go.uber.org/atomic"

	connstatsif "github.com/dep2p/go-connstats/pkg/interfaces/connstats"
)

// ============================================================================
//                              全局统计
// ============================================================================

// Registry 进程级统计
//
// 累计所有连接（包括已关闭连接）的发送/接收字节数。
// 总量是纯历史累加值，连接关闭时不回退。
// 显式构造并注入每个 Statistic，测试可以使用相互隔离的实例。
type Registry struct {
	totalSent     atomic.Int64
	totalReceived atomic.Int64

	sentRate     *RateMeter
	receivedRate *RateMeter
}

// 确保实现接口
var _ connstatsif.GlobalRegistry = (*Registry)(nil)

// NewRegistry 创建进程级统计
func NewRegistry(opts ...Option) *Registry {
	o := applyOptions(opts)
	return &Registry{
		sentRate:     NewRateMeter(o.clock),
		receivedRate: NewRateMeter(o.clock),
	}
}

// AddSent 累加发送字节数
//
// 通常由 Statistic.AddSentBytes 调用。
func (r *Registry) AddSent(n int64) {
	r.totalSent.Add(n)
	r.sentRate.Add(n)
}

// AddReceived 累加接收字节数
func (r *Registry) AddReceived(n int64) {
	r.totalReceived.Add(n)
	r.receivedRate.Add(n)
}

// TotalSent 返回累计发送字节数
func (r *Registry) TotalSent() int64 {
	return r.totalSent.Load()
}

// TotalReceived 返回累计接收字节数
func (r *Registry) TotalReceived() int64 {
	return r.totalReceived.Load()
}

// SentRate 返回发送速率（字节/秒）
func (r *Registry) SentRate() float64 {
	return r.sentRate.Rate()
}

// ReceivedRate 返回接收速率（字节/秒）
func (r *Registry) ReceivedRate() float64 {
	return r.receivedRate.Rate()
}

// Totals 返回全局统计
func (r *Registry) Totals() connstatsif.Totals {
	return connstatsif.Totals{
		TotalSent:     r.TotalSent(),
		TotalReceived: r.TotalReceived(),
		SentRate:      r.SentRate(),
		ReceivedRate:  r.ReceivedRate(),
	}
}
