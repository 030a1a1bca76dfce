package connstats

import (
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-connstats/config"
)

// Option 服务配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	config     *config.Config
	preset     string
	clock      clock.Clock
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
	fxOptions  []fx.Option
}

func newOptions() *options {
	return &options{
		config: config.NewConfig(),
	}
}

// WithConfig 使用完整配置，配置在 New 中被复制
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return errors.New("config is nil")
		}
		o.config = config.CloneConfig(cfg)
		return nil
	}
}

// WithPreset 在配置上应用预设（default/server/minimal）
//
// 预设在所有选项之后应用。
func WithPreset(name string) Option {
	return func(o *options) error {
		o.preset = name
		return nil
	}
}

// WithClock 指定时间源，测试中传入 clock.NewMock()
func WithClock(c clock.Clock) Option {
	return func(o *options) error {
		o.clock = c
		return nil
	}
}

// WithPrometheusRegisterer 将 Collector 注册到指定注册器
//
// 注册器同时实现 prometheus.Gatherer 时，/metrics 从它读取。
// 未指定时使用服务私有的注册器。
func WithPrometheusRegisterer(r prometheus.Registerer) Option {
	return func(o *options) error {
		if r == nil {
			return errors.New("prometheus registerer is nil")
		}
		o.registerer = r
		if g, ok := r.(prometheus.Gatherer); ok {
			o.gatherer = g
		}
		return nil
	}
}

// WithIntrospect 启用自省服务并指定监听地址
func WithIntrospect(addr string) Option {
	return func(o *options) error {
		o.config.Introspect.Enabled = true
		if addr != "" {
			o.config.Introspect.Addr = addr
		}
		return nil
	}
}

// WithFxOptions 追加自定义 Fx 选项
func WithFxOptions(opts ...fx.Option) Option {
	return func(o *options) error {
		o.fxOptions = append(o.fxOptions, opts...)
		return nil
	}
}

func (o *options) finalize() error {
	if err := config.ApplyPreset(o.config, o.preset); err != nil {
		return fmt.Errorf("apply preset: %w", err)
	}
	if o.clock == nil {
		o.clock = clock.New()
	}
	if o.registerer == nil {
		reg := prometheus.NewRegistry()
		o.registerer, o.gatherer = reg, reg
	}
	return nil
}
