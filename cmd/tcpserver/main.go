// Package main 提供 tcpserver 命令行入口
//
// 启动一个 TCP 服务器，对每个连接执行回显（echo）或丢弃（discard）。
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/fx"

	tcpserver "github.com/dep2p/go-tcpserver"
	"github.com/dep2p/go-tcpserver/config"
	"github.com/dep2p/go-tcpserver/pkg/lib/log"
)

var logger = log.Logger("tcpserver/cmd")

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
//
//	命令行参数：运行时覆盖 / 快速测试
//	JSON 配置文件：持久化配置（keepalive、重试间隔、指标命名空间等）
//
// ═══════════════════════════════════════════════════════════════════════════
var (
	host       = flag.String("host", "", "监听主机（为空时监听所有地址）")
	port       = flag.Int("port", 0, "监听端口（0 = 随机端口）")
	workers    = flag.Int("workers", 0, "工作协程数（0 = CPU 核数）")
	configFile = flag.String("config", "", "配置文件路径")
	mode       = flag.String("mode", "echo", "连接处理模式 (echo/discard)")
	introspect = flag.String("introspect", "", "自省服务地址（为空时不启用）")

	logFile = flag.String("log", "", "日志文件路径")
	verbose = flag.Bool("v", false, "输出 debug 日志")

	showVersion = flag.Bool("version", false, "显示版本信息")
	showHelp    = flag.Bool("help", false, "显示帮助信息")
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	if *showVersion {
		printVersion()
		return nil
	}
	if *showHelp {
		printHelp()
		return nil
	}

	handler, err := connectionHandler(*mode)
	if err != nil {
		return err
	}

	closeLog, err := setupLogging()
	if err != nil {
		return err
	}
	defer closeLog()

	cfg, err := buildConfig()
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	var srv *tcpserver.Server
	app := tcpserver.NewApp([]fx.Option{
		fx.Supply(cfg),
		fx.Populate(&srv),
		fx.Invoke(func(s *tcpserver.Server) {
			s.OnClientConnected(handler)
			s.OnErrorOccurred(func(err error) {
				logger.Warn("服务器错误", "err", err)
			})
		}),
	})
	if err := app.Err(); err != nil {
		return fmt.Errorf("创建服务器失败: %w", err)
	}

	fmt.Printf("📦 %s\n", tcpserver.VersionInfo())
	logger.Info("启动 tcpserver", "version", tcpserver.Version, "commit", tcpserver.GitCommit, "buildDate", tcpserver.BuildDate)

	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}

	printServerInfo(srv, cfg)
	fmt.Println("服务器已启动，按 Ctrl+C 退出")
	waitForSignal()

	fmt.Println("\n正在关闭服务器...")
	stopCtx, cancelStop := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelStop()
	return app.Stop(stopCtx)
}

// buildConfig 构建配置
//
// 配置优先级（从高到低）：
//  1. 命令行参数
//  2. 环境变量（TCPSERVER_* 前缀）
//  3. 配置文件
//  4. 默认值
func buildConfig() (*config.Config, error) {
	cfg, err := loadConfig(*configFile)
	if err != nil {
		return nil, fmt.Errorf("加载配置文件失败: %w", err)
	}

	applyEnvOverrides(cfg)

	if isFlagSet("host") {
		cfg.Host = *host
	}
	if isFlagSet("port") {
		cfg.Port = *port
	}
	if isFlagSet("workers") {
		cfg.Workers = *workers
	}
	if *introspect != "" {
		cfg.Introspect.Enable = true
		cfg.Introspect.Addr = *introspect
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// connectionHandler 返回连接处理器
//
// 事件处理器运行在工作池上，阻塞式读写放到独立 goroutine。
func connectionHandler(name string) (tcpserver.ClientConnectedHandler, error) {
	var serve func(rw io.ReadWriteCloser) (int64, error)
	switch name {
	case "echo":
		serve = func(rw io.ReadWriteCloser) (int64, error) { return io.Copy(rw, rw) }
	case "discard":
		serve = func(rw io.ReadWriteCloser) (int64, error) { return io.Copy(io.Discard, rw) }
	default:
		return nil, fmt.Errorf("未知模式: %s", name)
	}

	return func(c *tcpserver.Connection) {
		logger.Debug("新连接", "conn", c.ShortID(), "remote", c.RemoteAddress())
		go func() {
			rw := c.Stream()
			defer func() { _ = rw.Close() }()
			n, err := serve(rw)
			if err != nil {
				logger.Debug("连接处理中断", "conn", c.ShortID(), "err", err)
				return
			}
			logger.Debug("连接处理完成", "conn", c.ShortID(), "bytes", n)
		}()
	}, nil
}

// isFlagSet 检查命令行参数是否被显式设置
func isFlagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// waitForSignal 等待退出信号
func waitForSignal() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals
}

// setupLogging 设置日志输出
//
// 指定日志文件（命令行 > 环境变量）时写入文件，否则输出到 stderr。
func setupLogging() (func(), error) {
	level := log.LevelInfo
	if *verbose {
		level = log.LevelDebug
	}

	path := *logFile
	if path == "" {
		path = getLogFileFromEnv()
	}
	if path == "" {
		log.SetOutput(os.Stderr, level)
		return func() {}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("创建日志目录失败: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600) //nolint:gosec // G304: 用户指定的日志路径
	if err != nil {
		return nil, fmt.Errorf("打开日志文件失败: %w", err)
	}
	log.SetOutput(file, level)
	return func() { _ = file.Close() }, nil
}

// printServerInfo 打印服务器信息
func printServerInfo(s *tcpserver.Server, cfg *config.Config) {
	fmt.Println()
	fmt.Println("╔════════════════════════════════════════════════════════════════╗")
	fmt.Printf("║  go-tcpserver %-49s║\n", tcpserver.Version)
	fmt.Println("╠════════════════════════════════════════════════════════════════╣")
	fmt.Printf("║  Address:    %-50s║\n", s.Address())
	fmt.Printf("║  Mode:       %-50s║\n", *mode)
	if cfg.Introspect.Enable {
		fmt.Printf("║  Introspect: %-50s║\n", "http://"+cfg.Introspect.Addr+"/debug/introspect")
	}
	fmt.Println("╚════════════════════════════════════════════════════════════════╝")
	fmt.Println()
}

// printVersion 打印版本信息
func printVersion() {
	fmt.Printf("tcpserver %s\n", tcpserver.Version)
	if tcpserver.GitCommit != "" {
		fmt.Printf("  commit: %s\n", tcpserver.GitCommit)
	}
	if tcpserver.BuildDate != "" {
		fmt.Printf("  built:  %s\n", tcpserver.BuildDate)
	}
}

// printHelp 打印帮助信息
func printHelp() {
	fmt.Println("tcpserver - 事件驱动的 TCP 服务器")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  tcpserver [选项]")
	fmt.Println()
	fmt.Println("选项:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("环境变量:")
	fmt.Println("  TCPSERVER_HOST              监听主机")
	fmt.Println("  TCPSERVER_PORT              监听端口")
	fmt.Println("  TCPSERVER_WORKERS           工作协程数")
	fmt.Println("  TCPSERVER_KEEP_ALIVE        接纳时启用 keepalive (true/false)")
	fmt.Println("  TCPSERVER_METRICS           启用指标 (true/false)")
	fmt.Println("  TCPSERVER_INTROSPECT_ADDR   自省服务地址")
	fmt.Println("  TCPSERVER_LOG_FILE          日志文件路径")
	fmt.Println("  TCPSERVER_LOG_LEVEL         组件日志级别，如 tcpserver=debug,info")
	fmt.Println("  TCPSERVER_LOG_FORMAT        日志格式 (text/json)")
	fmt.Println()
	fmt.Println("使用示例:")
	fmt.Println()
	fmt.Println("  # 回显服务，端口 7000")
	fmt.Println("  tcpserver -port 7000")
	fmt.Println()
	fmt.Println("  # 丢弃服务 + 自省端点")
	fmt.Println("  tcpserver -mode discard -port 9000 -introspect 127.0.0.1:6060")
	fmt.Println()
	fmt.Println("  # 使用配置文件")
	fmt.Println("  tcpserver -config server.json")
}
