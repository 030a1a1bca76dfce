package connstats

import (
	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-connstats/internal/core/eventbus"
)

// Option 构造选项，适用于 NewRegistry、NewStatistic 与 NewTracker
//
// 不适用的选项会被忽略。
type Option func(*options)

type options struct {
	clock         clock.Clock
	id            string
	remote        string
	trackMessages bool
	bus           *eventbus.Bus
	notifier      *Notifier
}

func defaultOptions() options {
	return options{
		clock:         clock.New(),
		trackMessages: true,
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.clock == nil {
		o.clock = clock.New()
	}
	return o
}

// WithClock 指定时间源，测试中传入 clock.NewMock()
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithID 指定连接标识
func WithID(id string) Option {
	return func(o *options) {
		o.id = id
	}
}

// WithRemote 指定远端地址
func WithRemote(remote string) Option {
	return func(o *options) {
		o.remote = remote
	}
}

// WithMessageTracking 是否按类型统计消息，默认开启
func WithMessageTracking(enabled bool) Option {
	return func(o *options) {
		o.trackMessages = enabled
	}
}

// WithEventBus 指定 Tracker 发布连接开启/关闭与字段变更事件的总线
func WithEventBus(bus *eventbus.Bus) Option {
	return func(o *options) {
		o.bus = bus
	}
}

// WithNotifier 指定 Statistic 的字段变更通知器
func WithNotifier(n *Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}
