package connstats

import (
	"github.com/dep2p/go-connstats/internal/core/eventbus"
	connstatsif "github.com/dep2p/go-connstats/pkg/interfaces/connstats"
)

// Notifier 字段变更通知器
//
// 多个 Statistic 可共享一个 Notifier。发射不阻塞，慢订阅者丢事件。
// nil Notifier 是合法的空操作。
type Notifier struct {
	em *eventbus.Emitter[connstatsif.EvtStatisticUpdated]
}

// NewNotifier 在总线上创建通知器
func NewNotifier(bus *eventbus.Bus) (*Notifier, error) {
	em, err := eventbus.NewEmitter[connstatsif.EvtStatisticUpdated](bus)
	if err != nil {
		return nil, err
	}
	return &Notifier{em: em}, nil
}

// notify 发布一次字段变更
func (n *Notifier) notify(connID string, field connstatsif.Field) {
	if n == nil {
		return
	}
	// 总线关闭后的错误可以忽略：统计本身不受影响
	_ = n.em.Emit(connstatsif.EvtStatisticUpdated{ConnID: connID, Field: field})
}

// Close 关闭通知器
func (n *Notifier) Close() error {
	if n == nil {
		return nil
	}
	return n.em.Close()
}
