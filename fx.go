package connstats

import (
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	corestats "github.com/dep2p/go-connstats/internal/core/connstats"
	"github.com/dep2p/go-connstats/internal/core/eventbus"
	"github.com/dep2p/go-connstats/internal/core/introspect"
)

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：
//  1. EventBus
//  2. ConnStats: Registry → Tracker → Reporter → Collector
//  3. Introspect（仅在配置启用时监听）
//  4. 用户自定义 Fx 选项
func buildFxApp(o *options, svc *Service) (*fx.App, error) {
	modules := []fx.Option{
		fx.Supply(o.config),
		fx.Provide(
			func() clock.Clock { return o.clock },
			func() prometheus.Registerer { return o.registerer },
			func() prometheus.Gatherer { return o.gatherer },
		),

		eventbus.Module(),
		corestats.Module(),
		introspect.Module(),

		fx.Populate(&svc.bus, &svc.registry, &svc.tracker, &svc.reporter, &svc.server),
	}
	modules = append(modules, o.fxOptions...)
	modules = append(modules,
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
	)

	app := fx.New(modules...)
	if err := app.Err(); err != nil {
		return nil, fmt.Errorf("build fx app: %w", err)
	}
	return app, nil
}

