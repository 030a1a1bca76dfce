// Package config 提供统一的配置管理
//
// 主 Config 结构体嵌入所有子配置，每个子配置在独立文件中定义，
// 支持从 JSON 加载和保存，以及预设配置（default/server/minimal）。
//
// 使用示例：
//
//	cfg := config.NewConfig()
//	cfg.Stats.ReportInterval = config.Duration(30 * time.Second)
//
//	cfg, err := config.Load("connstats.json")
//
//	config.ApplyPreset(cfg, "server")
package config

// Config 是 connstats 的完整配置结构
//
//   - Stats: 连接统计
//   - Introspect: 本地自省 HTTP 服务
//   - Log: 日志
type Config struct {
	// Stats 连接统计配置
	Stats StatsConfig `json:"stats"`

	// Introspect 自省服务配置
	Introspect IntrospectConfig `json:"introspect"`

	// Log 日志配置
	Log LogConfig `json:"log"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Stats:      DefaultStatsConfig(),
		Introspect: DefaultIntrospectConfig(),
		Log:        DefaultLogConfig(),
	}
}
