package tcpserver

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"github.com/dep2p/go-tcpserver/config"
	"github.com/dep2p/go-tcpserver/internal/core/eventbus"
	"github.com/dep2p/go-tcpserver/internal/core/metrics"
	"github.com/dep2p/go-tcpserver/internal/core/workerpool"
	"github.com/dep2p/go-tcpserver/pkg/interfaces"
	"github.com/dep2p/go-tcpserver/pkg/lib/log"
	"github.com/dep2p/go-tcpserver/pkg/types"
)

var logger = log.Logger("tcpserver")

// serverKey 服务器级事件的工作池键
const serverKey uint64 = 0

// Server TCP 服务器
//
// 状态转换由读写锁保护：连接注册和地址读取持有读锁，
// 发起或完成关闭持有写锁。
type Server struct {
	cfg     *config.Config
	engine  interfaces.Engine
	pool    *workerpool.Pool
	bus     *eventbus.Bus
	clock   clock.Clock
	metrics metrics.Recorder

	mu    sync.RWMutex
	state types.ServerState

	// 引擎 goroutine 是否已启动
	engineRunning bool
	engineDone    chan struct{}

	// 监听套接字已确认释放
	listenerClosed atomic.Bool

	// 缓存的绑定地址
	addr atomic.Pointer[types.Address]

	connsMu sync.Mutex
	conns   map[*Connection]struct{}
	nextKey atomic.Uint64

	// 已注销但 closed 事件尚未送达的连接数
	finishing atomic.Int64

	done      chan struct{}
	closeOnce sync.Once
}

// New 创建服务器
//
// 服务器创建后处于 NOT_STARTED 状态，调用 Listen 和 Start 开始服务。
func New(opts ...Option) (*Server, error) {
	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	recorder, err := o.newRecorder()
	if err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}

	engine, err := o.engineFactory()
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}

	s := &Server{
		cfg:        o.cfg,
		engine:     engine,
		pool:       workerpool.New(o.cfg.Workers),
		bus:        eventbus.NewBus(),
		clock:      o.clock,
		metrics:    recorder,
		state:      types.ServerNotStarted,
		engineDone: make(chan struct{}),
		conns:      make(map[*Connection]struct{}),
		done:       make(chan struct{}),
	}

	logger.Debug("服务器已创建", "workers", s.pool.Size())
	return s, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期
// ════════════════════════════════════════════════════════════════════════════

// Start 启动引擎 goroutine 并触发 listening 事件
//
// 只在 LISTENING 状态下生效。listening 事件在调用方 goroutine 上同步触发。
func (s *Server) Start() {
	s.mu.Lock()
	if s.state != types.ServerListening {
		s.mu.Unlock()
		return
	}
	s.startEngineLocked()
	s.mu.Unlock()

	_ = s.bus.Emit(EventListening, nil)
}

// Stop 停止服务器
//
// 幂等。请求关闭所有连接和监听套接字后进入 CLOSING，
// 引擎确认监听套接字释放且所有连接关闭完成后进入 CLOSED。
// 使用 Done 等待关闭完成。
func (s *Server) Stop() error {
	s.mu.Lock()

	switch s.state {
	case types.ServerClosing, types.ServerClosed:
		s.mu.Unlock()
		return nil

	case types.ServerNotStarted:
		s.state = types.ServerClosed
		err := s.teardownLocked()
		s.mu.Unlock()
		s.notifyClosed()
		return err
	}

	for _, c := range s.snapshotConns() {
		if err := c.Close(); err != nil {
			logger.Warn("关闭连接失败", "conn", c.ShortID(), "err", err)
		}
	}

	var err error
	if cerr := s.engine.CloseListener(s.onListenerClosed); cerr != nil {
		err = fmt.Errorf("close listener: %w", cerr)
		s.listenerClosed.Store(true)
	}
	s.state = types.ServerClosing
	s.addr.Store(nil)

	// 未调用 Start 时也需要引擎运行以确认关闭
	s.startEngineLocked()
	s.mu.Unlock()

	logger.Debug("服务器关闭中", "connections", s.ConnectionsCount())

	// 监听套接字关闭失败时不会收到确认
	if err != nil {
		s.pool.Submit(serverKey, s.tryFinishClose)
	}
	return err
}

// Close 等同于 Stop
func (s *Server) Close() error {
	return s.Stop()
}

// Done 返回在服务器进入 CLOSED 后关闭的通道
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// startEngineLocked 启动引擎 goroutine（只启动一次）
func (s *Server) startEngineLocked() {
	if s.engineRunning {
		return
	}
	s.engineRunning = true
	go s.runEngine()
}

// runEngine 驱动事件循环直到所有句柄释放，然后释放资源
func (s *Server) runEngine() {
	defer close(s.engineDone)

	runErr := s.engine.Run()
	if runErr != nil {
		s.metrics.Error(metrics.SourceServer)
		s.pool.Submit(serverKey, func() {
			_ = s.bus.Emit(EventErrorOccurred, runErr)
		})
	}

	err := multierr.Combine(runErr, s.engine.Release(), s.pool.Close())
	if err != nil {
		logger.Error("引擎退出", "err", err)
		return
	}
	logger.Debug("引擎已退出")
}

// teardownLocked 释放未进入监听或监听失败的服务器资源
//
// 引擎 goroutine 未启动，这里同步运行引擎以送达挂起的回调。
func (s *Server) teardownLocked() error {
	var err error
	if cerr := s.engine.CloseListener(nil); cerr != nil {
		err = multierr.Append(err, cerr)
	}
	if !s.engineRunning {
		s.engineRunning = true
		err = multierr.Append(err, s.engine.Run())
		err = multierr.Append(err, s.engine.Release())
		close(s.engineDone)
	}
	err = multierr.Append(err, s.pool.Close())
	return err
}

// onListenerClosed 监听套接字释放确认（引擎 goroutine）
func (s *Server) onListenerClosed() {
	s.listenerClosed.Store(true)
	s.pool.Submit(serverKey, s.tryFinishClose)
}

// tryFinishClose 监听套接字已释放且无连接时进入 CLOSED
//
// 只在工作池上调用。
func (s *Server) tryFinishClose() {
	s.mu.Lock()
	if s.state != types.ServerClosing || !s.listenerClosed.Load() ||
		s.ConnectionsCount() > 0 || s.finishing.Load() > 0 {
		s.mu.Unlock()
		return
	}
	s.state = types.ServerClosed
	s.mu.Unlock()

	logger.Info("服务器已关闭")
	s.notifyClosed()
}

// notifyClosed 触发 closed 事件并清除所有处理器
func (s *Server) notifyClosed() {
	s.closeOnce.Do(func() {
		_ = s.bus.Emit(EventClosed, nil)
		s.bus.RemoveAll()
		close(s.done)
	})
}

// ════════════════════════════════════════════════════════════════════════════
//                              连接注册
// ════════════════════════════════════════════════════════════════════════════

// onAccept 接纳新连接（引擎 goroutine）
func (s *Server) onAccept(h interfaces.ConnHandle) {
	c := newConnection(s, h, s.nextKey.Add(1))

	s.mu.RLock()
	if s.state != types.ServerListening {
		s.mu.RUnlock()
		s.metrics.ConnRejected()
		logger.Warn("服务器已关闭，拒绝连接", "conn", c.ShortID())
		if err := h.Close(nil); err != nil {
			logger.Debug("关闭被拒绝的连接失败", "err", err)
		}
		return
	}
	s.addConn(c)
	s.mu.RUnlock()

	s.metrics.ConnAccepted()

	if s.cfg.KeepAlive.Enable {
		if err := c.setKeepAlive(true, s.cfg.KeepAlive.InitialDelay.Std()); err != nil {
			s.reportError(fmt.Errorf("enable keepalive on %s: %w", c.ShortID(), err))
		}
	}

	logger.Debug("连接已接纳", "conn", c.ShortID())
	s.pool.Submit(c.key, func() {
		_ = s.bus.Emit(EventClientConnected, c)
	})
}

// reportError 在工作池上触发服务器 error 事件
func (s *Server) reportError(err error) {
	s.metrics.Error(metrics.SourceServer)
	logger.Warn("服务器错误", "err", err)
	s.pool.Submit(serverKey, func() {
		_ = s.bus.Emit(EventErrorOccurred, err)
	})
}

func (s *Server) addConn(c *Connection) {
	s.connsMu.Lock()
	s.conns[c] = struct{}{}
	s.connsMu.Unlock()
}

func (s *Server) removeConn(c *Connection) bool {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()

	if _, ok := s.conns[c]; !ok {
		return false
	}
	delete(s.conns, c)
	return true
}

func (s *Server) snapshotConns() []*Connection {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()

	conns := make([]*Connection, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	return conns
}

// ════════════════════════════════════════════════════════════════════════════
//                              查询
// ════════════════════════════════════════════════════════════════════════════

// State 返回服务器状态
func (s *Server) State() ServerState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// ConnectionsCount 返回已注册的连接数
func (s *Server) ConnectionsCount() int {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	return len(s.conns)
}

// Connections 返回已注册连接的快照
func (s *Server) Connections() []*Connection {
	return s.snapshotConns()
}

// Address 返回绑定地址
//
// 只在 LISTENING 状态下返回非 nil，首次成功解析后缓存。
func (s *Server) Address() *Address {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state != types.ServerListening {
		return nil
	}
	if cached := s.addr.Load(); cached != nil {
		addr := *cached
		return &addr
	}

	addr, err := s.engine.BoundAddress()
	if err != nil {
		logger.Debug("查询绑定地址失败", "err", err)
		return nil
	}
	s.addr.CompareAndSwap(nil, &addr)
	out := addr
	return &out
}

// String 返回服务器状态描述
func (s *Server) String() string {
	addr := "none"
	if a := s.Address(); a != nil {
		addr = a.String()
	}
	return fmt.Sprintf("TCPServer{state=%s, address=%s, connections=%d}",
		s.State(), addr, s.ConnectionsCount())
}

// Report 返回诊断快照
func (s *Server) Report() types.ServerReport {
	conns := s.snapshotConns()
	r := types.ServerReport{
		State:            s.State().String(),
		ConnectionsCount: len(conns),
		Connections:      make([]types.ConnReport, 0, len(conns)),
	}
	if a := s.Address(); a != nil {
		r.Address = a.String()
	}
	for _, c := range conns {
		r.Connections = append(r.Connections, c.Report())
	}
	return r
}

// ════════════════════════════════════════════════════════════════════════════
//                              事件订阅
// ════════════════════════════════════════════════════════════════════════════

// OnceListening 注册 listening 处理器（一次性）
//
// CLOSING/CLOSED 状态下忽略并返回 0。
func (s *Server) OnceListening(h ListeningHandler) HandlerID {
	if h == nil || s.closingOrClosed() {
		return 0
	}
	id, _ := s.bus.Once(EventListening, func(any) { h() })
	return id
}

// OnceClosed 注册 closed 处理器（一次性）
//
// CLOSED 状态下忽略并返回 0。
func (s *Server) OnceClosed(h ClosedHandler) HandlerID {
	if h == nil || s.State() == types.ServerClosed {
		return 0
	}
	id, _ := s.bus.Once(EventClosed, func(any) { h() })
	return id
}

// OnClientConnected 注册新连接处理器
//
// CLOSING/CLOSED 状态下忽略并返回 0。
func (s *Server) OnClientConnected(h ClientConnectedHandler) HandlerID {
	if h == nil || s.closingOrClosed() {
		return 0
	}
	id, _ := s.bus.On(EventClientConnected, func(data any) {
		if c, ok := data.(*Connection); ok {
			h(c)
		}
	})
	return id
}

// OnErrorOccurred 注册错误处理器
//
// CLOSING/CLOSED 状态下忽略并返回 0。
func (s *Server) OnErrorOccurred(h ErrorHandler) HandlerID {
	if h == nil || s.closingOrClosed() {
		return 0
	}
	id, _ := s.bus.On(EventErrorOccurred, func(data any) {
		if err, ok := data.(error); ok {
			h(err)
		}
	})
	return id
}

// RemoveHandler 移除处理器
func (s *Server) RemoveHandler(event string, id HandlerID) {
	s.bus.RemoveHandler(event, id)
}

func (s *Server) closingOrClosed() bool {
	st := s.State()
	return st == types.ServerClosing || st == types.ServerClosed
}
