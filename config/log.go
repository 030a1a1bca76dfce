package config

import (
	"fmt"
	"strings"

	"github.com/dep2p/go-connstats/internal/util/logger"
)

// LogConfig 日志配置
//
// 环境变量 CONNSTATS_LOG_LEVEL 中按子系统显式指定的级别优先。
type LogConfig struct {
	// Level 全局日志级别 (debug/info/warn/error)
	// 默认值: "info"
	Level string `json:"level"`

	// File 日志文件路径，空表示 stderr
	File string `json:"file,omitempty"`
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level: "info",
	}
}

// Validate 验证日志配置
func (c *LogConfig) Validate() error {
	if c.Level == "" {
		return nil
	}
	if _, ok := logger.ParseLevel(c.Level); !ok {
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.Level)
	}
	return nil
}

// Apply 将日志级别应用到所有子系统
func (c *LogConfig) Apply() {
	if level, ok := logger.ParseLevel(strings.TrimSpace(c.Level)); ok {
		logger.SetGlobalLevel(level)
	}
}
