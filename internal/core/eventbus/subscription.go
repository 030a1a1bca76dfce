package eventbus

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// ============================================================================
//                              Subscription 实现
// ============================================================================

// Subscription 类型为 E 的事件订阅
type Subscription[E any] struct {
	bus       *Bus
	typ       reflect.Type
	out       chan E
	closeOnce sync.Once
}

// Out 返回事件通道
//
// 订阅或总线关闭后通道被关闭。
func (s *Subscription[E]) Out() <-chan E {
	return s.out
}

// Close 取消订阅
//
// 并发安全，可多次调用。
func (s *Subscription[E]) Close() error {
	if s.bus.removeSink(s.typ, s) {
		s.closeOut()
	}
	return nil
}

// deliver 非阻塞投递，缓冲区满时返回 false
func (s *Subscription[E]) deliver(event any) bool {
	e, ok := event.(E)
	if !ok {
		return false
	}
	select {
	case s.out <- e:
		return true
	default:
		return false
	}
}

// closeOut 关闭输出通道，调用前必须已从节点移除
func (s *Subscription[E]) closeOut() {
	s.closeOnce.Do(func() {
		close(s.out)
	})
}

// ============================================================================
//                              Emitter 实现
// ============================================================================

// Emitter 类型为 E 的事件发射器
type Emitter[E any] struct {
	bus       *Bus
	node      *node
	closed    atomic.Bool
	closeOnce sync.Once
}

// Emit 发射事件
//
// 不会阻塞：缓冲区已满的订阅者错过该事件。
func (e *Emitter[E]) Emit(event E) error {
	if e.closed.Load() {
		return ErrEmitterClosed
	}
	if e.bus.closed.Load() {
		return ErrClosed
	}

	e.node.emit(event)
	return nil
}

// Close 关闭发射器
func (e *Emitter[E]) Close() error {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		if e.node.nEmitters.Add(-1) == 0 {
			e.bus.tryDropNode(e.node.typ)
		}
	})
	return nil
}
