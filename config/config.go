// Package config 提供 go-tcpserver 的配置管理
//
// 主 Config 结构体包含服务器的全部可调参数，
// 子配置（KeepAlive、Metrics、Introspect）在独立文件中定义。
//
// 使用示例：
//
//	// 创建默认配置
//	cfg := config.NewConfig()
//	cfg.Port = 8080
//	cfg.KeepAlive.InitialDelay = config.Duration(30 * time.Second)
//
//	// 从 JSON 加载
//	cfg, err := config.FromJSON(data)
//
//	// 从文件加载
//	cfg, err := config.LoadFile("server.json")
package config

import (
	"errors"
	"fmt"
	"time"
)

// 端口范围
const (
	MinPort = 0
	MaxPort = 65535
)

// 默认值
const (
	// DefaultCloseRetryInterval 不可关闭连接的重试间隔
	DefaultCloseRetryInterval = 10 * time.Millisecond
)

var (
	// ErrInvalidPort 端口超出 [0, 65535]
	ErrInvalidPort = errors.New("port out of range [0, 65535]")

	// ErrInvalidWorkers 工作协程数为负
	ErrInvalidWorkers = errors.New("workers must not be negative")

	// ErrInvalidRetryInterval 重试间隔为负
	ErrInvalidRetryInterval = errors.New("close retry interval must not be negative")
)

// Config 服务器完整配置
type Config struct {
	// Host 监听主机，空表示未指定地址（优先 IPv6 "::"）
	Host string `json:"host"`

	// Port 监听端口，0 表示由系统分配
	Port int `json:"port"`

	// Workers 工作池大小，0 表示使用 CPU 核数
	Workers int `json:"workers"`

	// KeepAlive 新连接的 TCP keepalive 配置
	KeepAlive KeepAliveConfig `json:"keep_alive"`

	// CloseRetryInterval 连接暂不可关闭时的重试间隔
	CloseRetryInterval Duration `json:"close_retry_interval"`

	// Metrics 指标配置
	Metrics MetricsConfig `json:"metrics"`

	// Introspect 自省服务配置
	Introspect IntrospectConfig `json:"introspect"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Host:               "",
		Port:               0,
		Workers:            0,
		KeepAlive:          DefaultKeepAliveConfig(),
		CloseRetryInterval: Duration(DefaultCloseRetryInterval),
		Metrics:            DefaultMetricsConfig(),
		Introspect:         DefaultIntrospectConfig(),
	}
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if c.Port < MinPort || c.Port > MaxPort {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Workers)
	}
	if c.CloseRetryInterval < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRetryInterval, c.CloseRetryInterval)
	}
	if err := c.KeepAlive.Validate(); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	return c.Introspect.Validate()
}
