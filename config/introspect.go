package config

import (
	"fmt"
	"net"
)

// DefaultIntrospectAddr 自省服务默认监听地址
const DefaultIntrospectAddr = "127.0.0.1:6060"

// IntrospectConfig 本地自省 HTTP 服务配置
type IntrospectConfig struct {
	// Enable 是否启动自省服务
	Enable bool `json:"enable"`

	// Addr 监听地址（host:port），默认只绑定回环地址
	Addr string `json:"addr"`
}

// DefaultIntrospectConfig 返回默认自省配置
func DefaultIntrospectConfig() IntrospectConfig {
	return IntrospectConfig{
		Enable: false,
		Addr:   DefaultIntrospectAddr,
	}
}

// Validate 验证自省配置
func (c IntrospectConfig) Validate() error {
	if !c.Enable {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return fmt.Errorf("introspect.addr: %w", err)
	}
	return nil
}
