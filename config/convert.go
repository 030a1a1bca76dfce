package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// FromJSON 从 JSON 数据创建配置
//
// 未出现的字段保持默认值。
//
// 示例 JSON:
//
//	{
//	  "stats": {"report_interval": "30s", "closed_history": 128},
//	  "introspect": {"enabled": true, "addr": "127.0.0.1:6060"}
//	}
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// Load 从文件加载并验证配置
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg, err := FromJSON(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ToJSON 将配置序列化为缩进的 JSON
func ToJSON(cfg *Config) ([]byte, error) {
	return json.MarshalIndent(cfg, "", "  ")
}

// ApplyPreset 应用预设配置
//
// 支持的预设：
//   - "default": 默认值
//   - "server": 长时间运行的节点，保留更多历史并开启自省
//   - "minimal": 只统计字节，不计消息、不报告、不按连接导出
func ApplyPreset(cfg *Config, presetName string) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	switch presetName {
	case "", "default":
		return nil
	case "server":
		cfg.Stats.ClosedHistory = 512
		cfg.Stats.IdleTimeout = Duration(15 * time.Minute)
		cfg.Stats.TopN = 20
		cfg.Introspect.Enabled = true
		return nil
	case "minimal":
		cfg.Stats.TrackMessages = false
		cfg.Stats.ClosedHistory = 0
		cfg.Stats.ReportInterval = 0
		cfg.Stats.ExportPerConnection = false
		return nil
	default:
		return fmt.Errorf("%w: unknown preset %q", ErrInvalidConfig, presetName)
	}
}

// CloneConfig 深拷贝配置
func CloneConfig(cfg *Config) *Config {
	if cfg == nil {
		return nil
	}
	clone := *cfg
	return &clone
}
