package config

import (
	"errors"
	"fmt"
)

// ValidateAll 验证配置，nil 配置视为错误
func ValidateAll(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	return c.Validate()
}

// ValidateAndFix 验证配置并修复可修复的问题
//
// 可修复的问题：
//   - 工作协程数为负 -> 0（CPU 核数）
//   - 重试间隔为负或为 0 -> 默认值
//   - keepalive 初始延迟为负 -> 0
//   - 命名空间为空 -> 默认值
//   - 自省地址为空 -> 默认值
//
// 端口越界无法修复，直接返回错误。
func ValidateAndFix(c *Config) (*Config, error) {
	if c == nil {
		return NewConfig(), nil
	}

	if c.Workers < 0 {
		c.Workers = 0
	}
	if c.CloseRetryInterval <= 0 {
		c.CloseRetryInterval = Duration(DefaultCloseRetryInterval)
	}
	if c.KeepAlive.InitialDelay < 0 {
		c.KeepAlive.InitialDelay = 0
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultMetricsConfig().Namespace
	}
	if c.Introspect.Addr == "" {
		c.Introspect.Addr = DefaultIntrospectAddr
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed after fixes: %w", err)
	}
	return c, nil
}

// MustValidate 验证配置，失败时 panic
func MustValidate(c *Config) {
	if err := ValidateAll(c); err != nil {
		panic(fmt.Sprintf("invalid config: %v", err))
	}
}
