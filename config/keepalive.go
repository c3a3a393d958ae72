package config

import "errors"

// KeepAliveConfig TCP keepalive 配置
//
// 服务器在接受连接时按此配置开启 keepalive。
type KeepAliveConfig struct {
	// Enable 是否在接受连接时启用 keepalive
	Enable bool `json:"enable"`

	// InitialDelay 首次探测前的空闲时间，0 表示使用系统默认值
	InitialDelay Duration `json:"initial_delay"`
}

// DefaultKeepAliveConfig 返回默认 keepalive 配置
func DefaultKeepAliveConfig() KeepAliveConfig {
	return KeepAliveConfig{
		Enable:       true,
		InitialDelay: 0,
	}
}

// Validate 验证 keepalive 配置
func (c KeepAliveConfig) Validate() error {
	if c.InitialDelay < 0 {
		return errors.New("keep_alive.initial_delay must not be negative")
	}
	return nil
}
