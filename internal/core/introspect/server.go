// Package introspect 提供本地自省 HTTP 服务
//
// 该服务运行在本地端口，提供 JSON 格式的诊断信息，用于调试和监控。
// 默认绑定到 127.0.0.1，不暴露到网络。
//
// 端点：
//   - GET /debug/introspect             - 完整诊断报告 (JSON)
//   - GET /debug/introspect/connections - 连接信息
//   - GET /metrics                      - Prometheus 指标（提供 Gatherer 时）
//   - GET /health                       - 健康检查
//   - GET /debug/pprof/*                - Go pprof 端点
package introspect

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dep2p/go-tcpserver/config"
	"github.com/dep2p/go-tcpserver/pkg/lib/log"
	"github.com/dep2p/go-tcpserver/pkg/types"
)

var logger = log.Logger("core/introspect")

// Source 诊断数据来源
type Source interface {
	Report() types.ServerReport
}

// Server 本地自省 HTTP 服务
type Server struct {
	source   Source
	gatherer prometheus.Gatherer

	// 配置
	addr string

	// HTTP 服务器
	server   *http.Server
	listener net.Listener

	// 状态
	running bool
	mu      sync.Mutex
}

// Config 服务配置
type Config struct {
	// Addr 监听地址，默认 "127.0.0.1:6060"
	Addr string

	// Source 必需的诊断数据来源
	Source Source

	// Gatherer 可选的指标来源，为 nil 时不提供 /metrics
	Gatherer prometheus.Gatherer
}

// New 创建自省服务
func New(cfg Config) *Server {
	addr := cfg.Addr
	if addr == "" {
		addr = config.DefaultIntrospectAddr
	}

	return &Server{
		source:   cfg.Source,
		gatherer: cfg.Gatherer,
		addr:     addr,
	}
}

// Handler 返回路由
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/debug/introspect", s.handleIntrospect)
	r.Get("/debug/introspect/connections", s.handleConnections)
	r.Get("/health", s.handleHealth)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	r.Mount("/debug", middleware.Profiler())

	return r
}

// Start 启动服务
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("自省服务异常退出", "err", err)
		}
	}()

	s.running = true
	logger.Info("自省服务已启动", "addr", listener.Addr().String())
	return nil
}

// Stop 停止服务
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	if err := s.server.Shutdown(ctx); err != nil {
		logger.Error("关闭自省服务失败", "err", err)
		return err
	}

	s.running = false
	logger.Info("自省服务已停止")
	return nil
}

// Addr 返回实际监听地址
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ============================================================================
//                              HTTP 处理器
// ============================================================================

// handleIntrospect 处理完整诊断请求
func (s *Server) handleIntrospect(w http.ResponseWriter, _ *http.Request) {
	if s.source == nil {
		http.Error(w, "Server not available", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, s.source.Report())
}

// handleConnections 处理连接信息请求
func (s *Server) handleConnections(w http.ResponseWriter, _ *http.Request) {
	if s.source == nil {
		http.Error(w, "Server not available", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, s.source.Report().Connections)
}

// handleHealth 处理健康检查请求
//
// 服务器处于 LISTENING 时返回 200，否则返回 503。
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	health := struct {
		Status    string    `json:"status"`
		State     string    `json:"state,omitempty"`
		Timestamp time.Time `json:"timestamp"`
	}{
		Status:    "ok",
		Timestamp: time.Now(),
	}

	if s.source == nil {
		health.Status = "degraded"
	} else {
		health.State = s.source.Report().State
		if health.State != types.ServerListening.String() {
			health.Status = "degraded"
		}
	}

	if health.Status != "ok" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(health)
		return
	}
	s.writeJSON(w, health)
}

// writeJSON 写入 JSON 响应
func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		logger.Error("JSON 编码失败", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
