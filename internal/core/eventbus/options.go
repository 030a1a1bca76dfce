package eventbus

// SubscriptionOpt 订阅选项
type SubscriptionOpt func(*subscriptionSettings)

// EmitterOpt 发射器选项
type EmitterOpt func(*emitterSettings)

type subscriptionSettings struct {
	buffer int
}

type emitterSettings struct {
	stateful bool
}

// BufSize 设置订阅缓冲区大小
func BufSize(size int) SubscriptionOpt {
	return func(s *subscriptionSettings) {
		s.buffer = size
	}
}

// Stateful 设置发射器为有状态模式
//
// 节点会保存最后一个事件，新订阅者订阅时立即收到它。
func Stateful() EmitterOpt {
	return func(s *emitterSettings) {
		s.stateful = true
	}
}
