package connstats

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-connstats/config"
	"github.com/dep2p/go-connstats/internal/core/eventbus"
	connstatsif "github.com/dep2p/go-connstats/pkg/interfaces/connstats"
)

// ============================================================================
//                              模块输入依赖
// ============================================================================

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	// UnifiedCfg 统一配置（可选）
	UnifiedCfg *config.Config `optional:"true"`

	// Clock 时间源（可选）
	Clock clock.Clock `optional:"true"`

	// Bus 事件总线（可选），提供时发布连接事件
	Bus *eventbus.Bus `optional:"true"`
}

// ============================================================================
//                              模块输出服务
// ============================================================================

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	Registry  *Registry
	Global    connstatsif.GlobalRegistry
	Tracker   *Tracker
	Reporter  *Reporter
	Collector *Collector
}

// ============================================================================
//                              服务提供
// ============================================================================

// ConfigFromUnified 从统一配置创建连接统计配置
func ConfigFromUnified(cfg *config.Config) connstatsif.Config {
	if cfg == nil {
		return connstatsif.DefaultConfig()
	}
	s := cfg.Stats
	return connstatsif.Config{
		TrackMessages:       s.TrackMessages,
		ClosedHistory:       s.ClosedHistory,
		IdleTimeout:         s.IdleTimeout.Duration(),
		ReportInterval:      s.ReportInterval.Duration(),
		TopN:                s.TopN,
		ExportPerConnection: s.ExportPerConnection,
		Namespace:           s.Namespace,
	}
}

// ProvideServices 提供模块服务
func ProvideServices(input ModuleInput) (ModuleOutput, error) {
	cfg := ConfigFromUnified(input.UnifiedCfg)

	clk := input.Clock
	if clk == nil {
		clk = clock.New()
	}

	opts := []Option{WithClock(clk)}
	if input.Bus != nil {
		opts = append(opts, WithEventBus(input.Bus))
	}

	registry := NewRegistry(opts...)
	tracker, err := NewTracker(registry, cfg, opts...)
	if err != nil {
		return ModuleOutput{}, fmt.Errorf("create tracker: %w", err)
	}

	return ModuleOutput{
		Registry:  registry,
		Global:    registry,
		Tracker:   tracker,
		Reporter:  NewReporter(tracker, opts...),
		Collector: NewCollector(tracker),
	}, nil
}

// ============================================================================
//                              模块定义
// ============================================================================

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("connstats",
		fx.Provide(ProvideServices),
		fx.Invoke(registerLifecycle),
	)
}

// lifecycleInput 生命周期输入参数
type lifecycleInput struct {
	fx.In
	LC        fx.Lifecycle
	Tracker   *Tracker
	Reporter  *Reporter
	Collector *Collector

	// Registerer 指标注册器（可选），提供时注册 Collector
	Registerer prometheus.Registerer `optional:"true"`
}

// registerLifecycle 注册生命周期
func registerLifecycle(input lifecycleInput) {
	cfg := input.Tracker.Config()

	input.LC.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			if input.Registerer != nil {
				if err := input.Registerer.Register(input.Collector); err != nil {
					return fmt.Errorf("register collector: %w", err)
				}
			}
			input.Reporter.Start(cfg.ReportInterval)

			log.Info("连接统计模块启动",
				"reportInterval", cfg.ReportInterval,
				"closedHistory", cfg.ClosedHistory,
				"trackMessages", cfg.TrackMessages,
			)
			return nil
		},
		OnStop: func(_ context.Context) error {
			input.Reporter.Stop()

			if input.Registerer != nil {
				input.Registerer.Unregister(input.Collector)
			}
			err := input.Tracker.Close()

			log.Info("连接统计模块停止",
				"connections", input.Tracker.Count(),
				"totalSent", FormatBytes(input.Tracker.Registry().TotalSent()),
				"totalReceived", FormatBytes(input.Tracker.Registry().TotalReceived()),
			)
			return err
		},
	})
}

// ============================================================================
//                              模块元信息
// ============================================================================

// 模块元信息常量
const (
	Version     = "1.0.0"
	Name        = "connstats"
	Description = "连接统计模块，提供单连接与进程级的字节、消息、RTT 与活动时间统计"
)

