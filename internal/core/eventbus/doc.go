// Package eventbus 实现进程内类型化事件总线
//
// 用于把连接统计的变更通知推送给观察者（日志、健康检查、界面刷新等），
// 支持：
//   - 多订阅者
//   - 缓冲区配置
//   - 发射器引用计数
//   - 有状态模式（Stateful，新订阅者收到最后一个事件）
//   - 非阻塞发射：订阅者缓冲区满时丢弃事件，不拖慢发射方
//
// # 快速开始
//
//	bus := eventbus.NewBus()
//
//	sub, _ := eventbus.Subscribe[MyEvent](bus)
//	defer sub.Close()
//
//	go func() {
//	    for evt := range sub.Out() {
//	        // evt 的类型就是 MyEvent
//	    }
//	}()
//
//	em, _ := eventbus.NewEmitter[MyEvent](bus)
//	defer em.Close()
//	em.Emit(MyEvent{...})
//
// # Fx 模块
//
//	app := fx.New(
//	    eventbus.Module(),
//	    fx.Invoke(func(bus *eventbus.Bus) { ... }),
//	)
//
// # 并发安全
//
//   - 节点映射：RWMutex 保护
//   - 单个事件类型的订阅者列表：节点锁保护，发射期间持有
//   - 发射器引用计数：atomic.Int32
//   - 通道关闭：先从节点移除再关闭，发射方不会写入已关闭的通道
package eventbus
