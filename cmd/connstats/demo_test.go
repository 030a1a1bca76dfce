package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corestats "github.com/dep2p/go-connstats/internal/core/connstats"
	connstatsif "github.com/dep2p/go-connstats/pkg/interfaces/connstats"
)

func TestRunDemo(t *testing.T) {
	tracker, err := corestats.NewTracker(nil, connstatsif.DefaultConfig())
	require.NoError(t, err)
	defer tracker.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, runDemo(ctx, tracker, 2, 10*time.Millisecond))

	totals := tracker.Registry().Totals()
	assert.Positive(t, totals.TotalSent)
	assert.Positive(t, totals.TotalReceived)
	assert.Zero(t, tracker.Count(), "退出后所有连接都已关闭")

	var pings int64
	for _, snap := range tracker.Closed() {
		pings += snap.SentMessages[msgPing]
	}
	assert.Positive(t, pings)
}

func TestBuildConfig_Defaults(t *testing.T) {
	cfg, err := buildConfig()
	require.NoError(t, err)
	assert.False(t, cfg.Introspect.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)
}
