// Package logger 提供 connstats 的统一日志系统
//
// 基于标准库 log/slog，支持：
//   - 按子系统配置日志级别
//   - 环境变量配置（CONNSTATS_LOG_LEVEL, CONNSTATS_LOG_FORMAT）
//   - 运行时调整级别与输出目标
//
// 使用示例:
//
//	var log = logger.Logger("connstats")
//
//	func foo() {
//	    log.Info("connection tracked", "conn", id, "remote", remote)
//	    log.Debug("connection closed", "conn", id, "sent", sent)
//	}
//
// 环境变量配置:
//
//	# 所有模块为 info，connstats 模块为 debug
//	CONNSTATS_LOG_LEVEL=connstats=debug,info
//
//	# 使用 JSON 格式输出
//	CONNSTATS_LOG_FORMAT=json
package logger

import (
	"io"
	"log/slog"
	"sync"
)

var (
	// loggers 缓存各子系统的 Logger
	loggers sync.Map // map[string]*slog.Logger

	// handlers 缓存各子系统的 Handler（用于动态调整级别）
	handlers sync.Map // map[string]*subsystemHandler

	// levelOverride 运行时设置的全局级别，覆盖环境变量中的默认级别
	levelOverride   *slog.Level
	levelOverrideMu sync.RWMutex
)

// Logger 获取指定子系统的 Logger
//
// 同一子系统多次调用返回相同实例。
func Logger(subsystem string) *slog.Logger {
	if l, ok := loggers.Load(subsystem); ok {
		return l.(*slog.Logger)
	}

	cfg := ConfigFromEnv()
	level := cfg.LevelForSubsystem(subsystem)
	if _, explicit := cfg.SubsystemLevels[subsystem]; !explicit {
		levelOverrideMu.RLock()
		if levelOverride != nil {
			level = *levelOverride
		}
		levelOverrideMu.RUnlock()
	}

	h := newHandler(subsystem, level, cfg.Format)
	l := slog.New(h)

	actual, loaded := loggers.LoadOrStore(subsystem, l)
	if !loaded {
		handlers.Store(subsystem, h)
	}
	return actual.(*slog.Logger)
}

// SetLevel 动态设置子系统的日志级别
func SetLevel(subsystem string, level slog.Level) {
	if h, ok := handlers.Load(subsystem); ok {
		h.(*subsystemHandler).SetLevel(level)
	}
}

// SetGlobalLevel 设置所有子系统的日志级别
//
// 之后创建的 Logger 也使用该级别（环境变量中显式配置的子系统除外）。
func SetGlobalLevel(level slog.Level) {
	levelOverrideMu.Lock()
	levelOverride = &level
	levelOverrideMu.Unlock()

	cfg := ConfigFromEnv()
	handlers.Range(func(key, value any) bool {
		if _, explicit := cfg.SubsystemLevels[key.(string)]; !explicit {
			value.(*subsystemHandler).SetLevel(level)
		}
		return true
	})
}

// Discard 返回一个丢弃所有日志的 Logger
func Discard() *slog.Logger {
	return slog.New(DiscardHandler())
}

// SetOutput 设置全局日志输出目标
//
// 已创建的 Logger 同样会切换到新的输出。
func SetOutput(w io.Writer) {
	globalOutputMu.Lock()
	globalOutput = w
	globalOutputMu.Unlock()
}
