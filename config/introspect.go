package config

import (
	"fmt"
	"net"
)

// IntrospectConfig 自省服务配置
type IntrospectConfig struct {
	// Enabled 启用自省服务
	// 默认值: false
	Enabled bool `json:"enabled"`

	// Addr 监听地址
	// 默认值: "127.0.0.1:6060"
	Addr string `json:"addr"`

	// EnablePprof 是否挂载 /debug/pprof
	// 默认值: false
	EnablePprof bool `json:"enable_pprof"`
}

// DefaultIntrospectConfig 返回默认自省配置
func DefaultIntrospectConfig() IntrospectConfig {
	return IntrospectConfig{
		Enabled: false,
		Addr:    "127.0.0.1:6060",
	}
}

// Validate 验证自省配置
func (c *IntrospectConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return fmt.Errorf("%w: introspect addr %q: %v", ErrInvalidConfig, c.Addr, err)
	}
	return nil
}
