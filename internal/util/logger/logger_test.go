package logger

import (
	"bytes"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	SetOutput(buf)
	t.Cleanup(func() { SetOutput(os.Stderr) })
	return buf
}

func TestSetOutput(t *testing.T) {
	buf := captureOutput(t)

	Logger("test").Info("test message", "key", "value")

	out := buf.String()
	assert.Contains(t, out, "test message")
	assert.Contains(t, out, "key=value")
	assert.Contains(t, out, "subsystem=test")
	assert.Contains(t, out, "level=info")
}

func TestSetOutput_ExistingLogger(t *testing.T) {
	log := Logger("test2")

	buf := captureOutput(t)
	log.Info("after switch", "key", "value")

	assert.Contains(t, buf.String(), "after switch")
}

func TestLogger_Cached(t *testing.T) {
	assert.Same(t, Logger("cached"), Logger("cached"))
}

func TestSetLevel_AppliesToDerivedLoggers(t *testing.T) {
	buf := captureOutput(t)
	log := Logger("leveled").With("conn", "c1")

	SetLevel("leveled", slog.LevelError)
	log.Info("hidden")
	assert.Empty(t, buf.String())

	SetLevel("leveled", slog.LevelDebug)
	log.Debug("shown")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "conn=c1")
}

func TestParseConfig(t *testing.T) {
	env := map[string]string{
		"CONNSTATS_LOG_LEVEL":      "connstats=debug, introspect=warn,error",
		"CONNSTATS_LOG_FORMAT":     "JSON",
		"CONNSTATS_LOG_ADD_SOURCE": "1",
	}
	cfg := parseConfig(func(k string) string { return env[k] })

	require.NotNil(t, cfg)
	assert.Equal(t, slog.LevelError, cfg.DefaultLevel)
	assert.Equal(t, slog.LevelDebug, cfg.LevelForSubsystem("connstats"))
	assert.Equal(t, slog.LevelWarn, cfg.LevelForSubsystem("introspect"))
	assert.Equal(t, slog.LevelError, cfg.LevelForSubsystem("other"))
	assert.Equal(t, FormatJSON, cfg.Format)
	assert.True(t, cfg.AddSource)
}

func TestParseLevel(t *testing.T) {
	level, ok := ParseLevel("WARNING")
	assert.True(t, ok)
	assert.Equal(t, slog.LevelWarn, level)

	_, ok = ParseLevel("verbose")
	assert.False(t, ok)
}

func TestDiscard(t *testing.T) {
	buf := captureOutput(t)
	Discard().Error("nothing")
	assert.Empty(t, buf.String())
}
