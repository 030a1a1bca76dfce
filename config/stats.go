package config

import (
	"fmt"
	"time"
)

// StatsConfig 连接统计配置
type StatsConfig struct {
	// TrackMessages 是否按消息类型计数
	// 默认值: true
	TrackMessages bool `json:"track_messages"`

	// ClosedHistory 保留的已关闭连接快照数量，0 表示不保留
	// 默认值: 64
	ClosedHistory int `json:"closed_history"`

	// IdleTimeout 空闲阈值
	// 默认值: 5m
	IdleTimeout Duration `json:"idle_timeout"`

	// ReportInterval 周期报告间隔，0 表示不报告
	// 默认值: 1m
	ReportInterval Duration `json:"report_interval"`

	// TopN 报告中列出的流量最大连接数
	// 默认值: 10
	TopN int `json:"top_n"`

	// ExportPerConnection 是否按连接导出 Prometheus 指标
	// 默认值: true
	ExportPerConnection bool `json:"export_per_connection"`

	// Namespace Prometheus 指标命名空间
	// 默认值: "connstats"
	Namespace string `json:"namespace"`
}

// DefaultStatsConfig 返回默认的连接统计配置
func DefaultStatsConfig() StatsConfig {
	return StatsConfig{
		TrackMessages:       true,
		ClosedHistory:       64,
		IdleTimeout:         Duration(5 * time.Minute),
		ReportInterval:      Duration(time.Minute),
		TopN:                10,
		ExportPerConnection: true,
		Namespace:           "connstats",
	}
}

// Validate 验证连接统计配置
func (c *StatsConfig) Validate() error {
	if c.ClosedHistory < 0 {
		return fmt.Errorf("%w: closed_history must be >= 0, got %d", ErrInvalidConfig, c.ClosedHistory)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("%w: idle_timeout must be >= 0, got %s", ErrInvalidConfig, c.IdleTimeout)
	}
	if c.ReportInterval < 0 {
		return fmt.Errorf("%w: report_interval must be >= 0, got %s", ErrInvalidConfig, c.ReportInterval)
	}
	if c.TopN < 0 {
		return fmt.Errorf("%w: top_n must be >= 0, got %d", ErrInvalidConfig, c.TopN)
	}
	if c.Namespace == "" {
		return fmt.Errorf("%w: namespace must not be empty", ErrInvalidConfig)
	}
	return nil
}
