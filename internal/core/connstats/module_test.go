package connstats

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-connstats/config"
	"github.com/dep2p/go-connstats/internal/core/eventbus"
	connstatsif "github.com/dep2p/go-connstats/pkg/interfaces/connstats"
)

// ============================================================================
//                              Fx 模块测试
// ============================================================================

func TestModule_Load(t *testing.T) {
	var (
		tracker *Tracker
		global  connstatsif.GlobalRegistry
	)

	app := fxtest.New(t,
		Module(),
		fx.Populate(&tracker, &global),
	)
	defer app.RequireStart().RequireStop()

	require.NotNil(t, tracker)
	tracker.Open("a").AddSentBytes(100)
	assert.Equal(t, int64(100), global.TotalSent())
}

func TestModule_WithConfigAndBus(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Stats.ClosedHistory = 3
	cfg.Stats.TrackMessages = false
	cfg.Stats.ReportInterval = config.Duration(time.Minute)

	var (
		tracker  *Tracker
		reporter *Reporter
		bus      *eventbus.Bus
	)

	app := fxtest.New(t,
		fx.Supply(cfg),
		fx.Provide(func() clock.Clock { return clock.NewMock() }),
		eventbus.Module(),
		Module(),
		fx.Populate(&tracker, &reporter, &bus),
	)
	app.RequireStart()

	assert.Equal(t, 3, tracker.Config().ClosedHistory)
	assert.False(t, tracker.Config().TrackMessages)
	assert.True(t, reporter.Running())

	sub, err := eventbus.Subscribe[connstatsif.EvtConnectionOpened](bus)
	require.NoError(t, err)
	tracker.Open("peer")
	select {
	case evt := <-sub.Out():
		assert.Equal(t, "peer", evt.Remote)
	case <-time.After(time.Second):
		t.Fatal("未收到 EvtConnectionOpened")
	}

	app.RequireStop()
	assert.False(t, reporter.Running())
}

func TestModule_RegistersCollector(t *testing.T) {
	reg := prometheus.NewRegistry()

	app := fxtest.New(t,
		fx.Provide(func() prometheus.Registerer { return reg }),
		Module(),
	)
	app.RequireStart()

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	app.RequireStop()

	families, err = reg.Gather()
	require.NoError(t, err)
	assert.Empty(t, families, "停止后应注销 collector")
}

func TestConfigFromUnified(t *testing.T) {
	assert.Equal(t, connstatsif.DefaultConfig(), ConfigFromUnified(nil))
	assert.Equal(t, connstatsif.DefaultConfig(), ConfigFromUnified(config.NewConfig()))

	cfg := config.NewConfig()
	cfg.Stats.Namespace = "node"
	cfg.Stats.IdleTimeout = config.Duration(time.Second)
	got := ConfigFromUnified(cfg)
	assert.Equal(t, "node", got.Namespace)
	assert.Equal(t, time.Second, got.IdleTimeout)
}
