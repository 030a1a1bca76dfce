package introspect

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-connstats/config"
	"github.com/dep2p/go-connstats/internal/core/connstats"
)

// ModuleInput 模块输入
type ModuleInput struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
	Tracker    *connstats.Tracker
	Gatherer   prometheus.Gatherer `optional:"true"`
	Clock      clock.Clock         `optional:"true"`
}

// ModuleOutput 模块输出
type ModuleOutput struct {
	fx.Out

	Server *Server
}

// ProvideServer 提供自省服务
func ProvideServer(in ModuleInput) ModuleOutput {
	icfg := config.DefaultIntrospectConfig()
	if in.UnifiedCfg != nil {
		icfg = in.UnifiedCfg.Introspect
	}

	cfg := Config{
		Addr:        icfg.Addr,
		Tracker:     in.Tracker,
		Gatherer:    in.Gatherer,
		EnablePprof: icfg.EnablePprof,
		Clock:       in.Clock,
	}
	return ModuleOutput{
		Server: New(cfg),
	}
}

// Module 返回 introspect fx 模块
//
// 仅当 Introspect.Enabled 为 true 时启动监听。
func Module() fx.Option {
	return fx.Module("introspect",
		fx.Provide(ProvideServer),
		fx.Invoke(registerLifecycle),
	)
}

type lifecycleInput struct {
	fx.In
	LC         fx.Lifecycle
	Server     *Server
	UnifiedCfg *config.Config `optional:"true"`
}

func registerLifecycle(in lifecycleInput) {
	if in.UnifiedCfg == nil || !in.UnifiedCfg.Introspect.Enabled {
		return
	}
	in.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return in.Server.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return in.Server.Stop(ctx)
		},
	})
}
