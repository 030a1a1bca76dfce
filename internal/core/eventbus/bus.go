package eventbus

import (
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
)

// ============================================================================
//                              错误定义
// ============================================================================

var (
	// ErrClosed 事件总线已关闭
	ErrClosed = errors.New("eventbus closed")
	// ErrEmitterClosed 发射器已关闭
	ErrEmitterClosed = errors.New("emitter closed")
)

// DefaultBufSize 默认订阅缓冲区大小
const DefaultBufSize = 16

// ============================================================================
//                              Bus 实现
// ============================================================================

// Bus 事件总线
//
// 每种事件类型对应一个节点，节点持有该类型的订阅者与最后一个事件。
type Bus struct {
	mu     sync.RWMutex
	nodes  map[reflect.Type]*node
	closed atomic.Bool
}

// sink 订阅者的无类型视图
type sink interface {
	deliver(event any) bool
	closeOut()
}

// node 事件类型节点
type node struct {
	lk        sync.Mutex
	typ       reflect.Type
	sinks     []sink
	nEmitters atomic.Int32
	keepLast  bool
	last      any
	dropCount atomic.Int64
}

// NewBus 创建新的事件总线
func NewBus() *Bus {
	return &Bus{
		nodes: make(map[reflect.Type]*node),
	}
}

// Subscribe 订阅类型为 E 的事件
func Subscribe[E any](b *Bus, opts ...SubscriptionOpt) (*Subscription[E], error) {
	settings := subscriptionSettings{buffer: DefaultBufSize}
	for _, opt := range opts {
		opt(&settings)
	}
	if settings.buffer < 0 {
		settings.buffer = 0
	}

	typ := reflect.TypeFor[E]()
	sub := &Subscription[E]{
		bus: b,
		typ: typ,
		out: make(chan E, settings.buffer),
	}

	err := b.withNode(typ, func(n *node) {
		n.sinks = append(n.sinks, sub)
		if n.keepLast && n.last != nil {
			sub.deliver(n.last)
		}
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// NewEmitter 获取类型为 E 的事件发射器
func NewEmitter[E any](b *Bus, opts ...EmitterOpt) (*Emitter[E], error) {
	var settings emitterSettings
	for _, opt := range opts {
		opt(&settings)
	}

	typ := reflect.TypeFor[E]()
	var n *node
	err := b.withNode(typ, func(nd *node) {
		n = nd
		n.nEmitters.Add(1)
		if settings.stateful {
			n.keepLast = true
		}
	})
	if err != nil {
		return nil, err
	}

	return &Emitter[E]{bus: b, node: n}, nil
}

// EventTypes 返回当前已注册的事件类型
func (b *Bus) EventTypes() []reflect.Type {
	b.mu.RLock()
	defer b.mu.RUnlock()

	types := make([]reflect.Type, 0, len(b.nodes))
	for typ := range b.nodes {
		types = append(types, typ)
	}
	return types
}

// Dropped 返回类型 E 因订阅者缓冲区满而丢弃的事件数
//
// 总线本身不记录丢弃日志，需要告警的调用方定期读取该计数。
func Dropped[E any](b *Bus) int64 {
	b.mu.RLock()
	n, ok := b.nodes[reflect.TypeFor[E]()]
	b.mu.RUnlock()
	if !ok {
		return 0
	}
	return n.dropCount.Load()
}

// Close 关闭事件总线
//
// 关闭所有订阅通道；之后的订阅和获取发射器返回 ErrClosed，
// 已有发射器的 Emit 返回 ErrClosed。
func (b *Bus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	b.mu.Lock()
	nodes := b.nodes
	b.nodes = make(map[reflect.Type]*node)
	b.mu.Unlock()

	for _, n := range nodes {
		n.lk.Lock()
		for _, s := range n.sinks {
			s.closeOut()
		}
		n.sinks = nil
		n.lk.Unlock()
	}
	return nil
}

// ============================================================================
//                              内部方法
// ============================================================================

// withNode 在节点上执行操作，节点不存在时创建
func (b *Bus) withNode(typ reflect.Type, cb func(*node)) error {
	b.mu.Lock()
	if b.closed.Load() {
		b.mu.Unlock()
		return ErrClosed
	}

	n, ok := b.nodes[typ]
	if !ok {
		n = &node{typ: typ}
		b.nodes[typ] = n
	}

	n.lk.Lock()
	b.mu.Unlock()

	cb(n)
	n.lk.Unlock()
	return nil
}

// tryDropNode 删除既没有订阅者也没有发射器的节点
func (b *Bus) tryDropNode(typ reflect.Type) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, ok := b.nodes[typ]
	if !ok {
		return
	}

	n.lk.Lock()
	idle := len(n.sinks) == 0 && n.nEmitters.Load() == 0
	n.lk.Unlock()

	if idle {
		delete(b.nodes, typ)
	}
}

// removeSink 从节点移除订阅者，返回是否找到
func (b *Bus) removeSink(typ reflect.Type, s sink) bool {
	b.mu.RLock()
	n, ok := b.nodes[typ]
	b.mu.RUnlock()
	if !ok {
		return false
	}

	n.lk.Lock()
	found := false
	for i, existing := range n.sinks {
		if existing == s {
			n.sinks = append(n.sinks[:i], n.sinks[i+1:]...)
			found = true
			break
		}
	}
	shouldDrop := len(n.sinks) == 0 && n.nEmitters.Load() == 0
	n.lk.Unlock()

	if shouldDrop {
		b.tryDropNode(typ)
	}
	return found
}

// emit 发射事件到所有订阅者
func (n *node) emit(event any) {
	n.lk.Lock()
	defer n.lk.Unlock()

	if n.keepLast {
		n.last = event
	}

	for _, s := range n.sinks {
		if s.deliver(event) {
			continue
		}

		// 发射路径不做 I/O，丢弃数由调用方通过 Dropped 定期读取
		n.dropCount.Add(1)
	}
}
