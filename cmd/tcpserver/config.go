package main

import (
	"os"
	"strconv"
	"strings"

	"github.com/dep2p/go-tcpserver/config"
)

// 环境变量名（均使用 TCPSERVER_ 前缀）
const (
	envPrefix         = "TCPSERVER_"
	envHost           = "HOST"
	envPort           = "PORT"
	envWorkers        = "WORKERS"
	envKeepAlive      = "KEEP_ALIVE"
	envMetrics        = "METRICS"
	envIntrospectAddr = "INTROSPECT_ADDR"
	envLogFile        = "LOG_FILE"
)

// ============================================================================
//                              配置加载（CLI 专用）
// ============================================================================

// loadConfig 加载配置文件，未指定时返回默认配置
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.NewConfig(), nil
	}
	return config.LoadFile(path)
}

// applyEnvOverrides 应用环境变量覆盖配置
//
// 环境变量优先级高于配置文件，但低于命令行参数。
// 支持的环境变量：
//   - TCPSERVER_HOST: 监听主机
//   - TCPSERVER_PORT: 监听端口
//   - TCPSERVER_WORKERS: 工作协程数
//   - TCPSERVER_KEEP_ALIVE: 接纳时启用 keepalive
//   - TCPSERVER_METRICS: 启用指标
//   - TCPSERVER_INTROSPECT_ADDR: 自省服务地址（设置即启用）
func applyEnvOverrides(cfg *config.Config) {
	if v, ok := lookupEnv(envHost); ok {
		cfg.Host = v
	}

	if v, ok := lookupEnv(envPort); ok {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}

	if v, ok := lookupEnv(envWorkers); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}

	if v, ok := lookupEnv(envKeepAlive); ok {
		cfg.KeepAlive.Enable = parseBool(v)
	}

	if v, ok := lookupEnv(envMetrics); ok {
		cfg.Metrics.Enable = parseBool(v)
	}

	if v, ok := lookupEnv(envIntrospectAddr); ok && v != "" {
		cfg.Introspect.Enable = true
		cfg.Introspect.Addr = v
	}
}

// getLogFileFromEnv 从环境变量获取日志文件路径
func getLogFileFromEnv() string {
	return os.Getenv(envPrefix + envLogFile)
}

// ============================================================================
//                              辅助函数
// ============================================================================

func lookupEnv(name string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + name)
	return strings.TrimSpace(v), ok
}

// parseBool 解析布尔值字符串
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
