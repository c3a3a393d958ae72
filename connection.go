package tcpserver

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dep2p/go-tcpserver/internal/core/eventbus"
	"github.com/dep2p/go-tcpserver/internal/core/gate"
	"github.com/dep2p/go-tcpserver/internal/core/metrics"
	"github.com/dep2p/go-tcpserver/pkg/interfaces"
	"github.com/dep2p/go-tcpserver/pkg/lib/log"
	"github.com/dep2p/go-tcpserver/pkg/types"
)

// Connection 服务器接受的 TCP 连接
//
// 读写方法立即返回，完成结果通过 CompletionHandler 在工作池上送达。
// 同一连接的所有回调由同一工作协程按顺序执行。
type Connection struct {
	id     string
	key    uint64
	server *Server
	handle interfaces.ConnHandle
	bus    *eventbus.Bus

	mu        sync.Mutex
	state     types.ConnState
	keepAlive bool
	local     *types.Address
	remote    *types.Address

	readGate  gate.Gate
	writeGate gate.Gate
}

func newConnection(s *Server, h interfaces.ConnHandle, key uint64) *Connection {
	c := &Connection{
		id:     uuid.NewString(),
		key:    key,
		server: s,
		handle: h,
		bus:    eventbus.NewBus(),
		state:  types.ConnOpen,
	}
	_, _ = c.bus.On(eventClientNotCloseable, func(any) { c.scheduleCloseRetry() })
	return c
}

// ID 返回连接唯一标识
func (c *Connection) ID() string {
	return c.id
}

// Server 返回接受该连接的服务器
func (c *Connection) Server() *Server {
	return c.server
}

// IsOpen 连接是否处于 OPEN 状态
func (c *Connection) IsOpen() bool {
	return c.State() == types.ConnOpen
}

// ShortID 返回截断的连接标识（日志用）
func (c *Connection) ShortID() string {
	return log.TruncateID(c.id, 8)
}

// State 返回连接状态
func (c *Connection) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ════════════════════════════════════════════════════════════════════════════
//                              读写
// ════════════════════════════════════════════════════════════════════════════

// Read 发起一次读操作
//
// 读取的数据写入 p[:n]，完成后调用 h(n)：n > 0 为读取字节数，
// n == 0 表示没有数据或引擎出错（错误通过 error 事件送达），
// n == -1 表示对端关闭，连接随后自动关闭。
// 完成前调用方不得访问 p。
func (c *Connection) Read(p []byte, h CompletionHandler) error {
	return c.read(p, h, false)
}

// Write 发起一次写操作
//
// p 在调用时被复制，调用返回后即可复用。h(n) 中 n 为引擎接受的字节数，
// 调用方据此推进位置：p = p[n:]。
func (c *Connection) Write(p []byte, h CompletionHandler) error {
	return c.write(p, h, false)
}

// read 发起读操作
//
// inline 为 true 时完成回调直接在引擎 goroutine 上执行，只供不阻塞的内部回调使用。
func (c *Connection) read(p []byte, h CompletionHandler, inline bool) error {
	c.mu.Lock()
	if c.state != types.ConnOpen {
		c.mu.Unlock()
		return ErrChannelClosed
	}
	if !c.readGate.TryAcquire() {
		c.mu.Unlock()
		return ErrReadPending
	}

	if len(p) == 0 {
		c.mu.Unlock()
		c.releaseGate(&c.readGate)
		complete(h, 0)
		return nil
	}

	buf := make([]byte, len(p))
	err := c.handle.Read(buf, func(n int, err error) {
		c.dispatch(inline, func() { c.completeRead(p, buf, n, err, h) })
	})
	c.mu.Unlock()

	if err != nil {
		c.dispatch(inline, func() {
			c.releaseGate(&c.readGate)
			c.reportError(err)
			complete(h, 0)
		})
	}
	return nil
}

// completeRead 读完成
func (c *Connection) completeRead(p, buf []byte, n int, err error, h CompletionHandler) {
	c.releaseGate(&c.readGate)

	switch {
	case err != nil && types.IsCanceled(err):
		complete(h, 0)

	case err != nil:
		c.reportError(err)
		complete(h, 0)
		c.closeAfterFailure()

	case n < 0:
		complete(h, -1)
		c.closeAfterFailure()

	default:
		copy(p, buf[:n])
		c.server.metrics.BytesRead(n)
		complete(h, n)
	}
}

// write 发起写操作
func (c *Connection) write(p []byte, h CompletionHandler, inline bool) error {
	c.mu.Lock()
	if c.state != types.ConnOpen {
		c.mu.Unlock()
		return ErrChannelClosed
	}
	if !c.writeGate.TryAcquire() {
		c.mu.Unlock()
		return ErrWritePending
	}

	if len(p) == 0 {
		c.mu.Unlock()
		c.releaseGate(&c.writeGate)
		complete(h, 0)
		return nil
	}

	buf := append([]byte(nil), p...)
	err := c.handle.Write(buf, func(n int, err error) {
		c.dispatch(inline, func() { c.completeWrite(n, err, h) })
	})
	c.mu.Unlock()

	if err != nil {
		c.dispatch(inline, func() {
			c.releaseGate(&c.writeGate)
			c.reportError(err)
			complete(h, 0)
		})
	}
	return nil
}

// completeWrite 写完成
func (c *Connection) completeWrite(n int, err error, h CompletionHandler) {
	c.releaseGate(&c.writeGate)
	c.server.metrics.BytesWritten(n)

	switch {
	case err != nil && types.IsCanceled(err):
		complete(h, n)

	case err != nil:
		c.reportError(err)
		complete(h, 0)
		c.closeAfterFailure()

	default:
		complete(h, n)
	}
}

func complete(h CompletionHandler, n int) {
	if h != nil {
		h(n)
	}
}

func (c *Connection) releaseGate(g *gate.Gate) {
	if err := g.Release(); err != nil {
		logger.Error("释放闸门失败", "conn", c.ShortID(), "err", err)
	}
}

// dispatch 在工作池或当前 goroutine 上执行
func (c *Connection) dispatch(inline bool, task func()) {
	if inline {
		task()
		return
	}
	c.submit(task)
}

func (c *Connection) submit(task func()) {
	if !c.server.pool.Submit(c.key, task) {
		logger.Debug("工作池已关闭，丢弃任务", "conn", c.ShortID())
	}
}

// reportError 在工作池上触发连接 error 事件
func (c *Connection) reportError(err error) {
	c.server.metrics.Error(metrics.SourceConnection)
	logger.Debug("连接错误", "conn", c.ShortID(), "err", err)
	c.submit(func() {
		_ = c.bus.Emit(EventErrorOccurred, err)
	})
}

func (c *Connection) closeAfterFailure() {
	if err := c.Close(); err != nil {
		logger.Debug("关闭连接失败", "conn", c.ShortID(), "err", err)
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              关闭
// ════════════════════════════════════════════════════════════════════════════

// Close 关闭连接
//
// 幂等。引擎报告句柄暂不可关闭（句柄正被其他操作占用）时不改变状态，
// 稍后在工作池上重试。引擎确认释放后连接进入 CLOSED 并从服务器注销。
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.state != types.ConnOpen {
		c.mu.Unlock()
		return nil
	}

	if !c.handle.Closeable() {
		c.mu.Unlock()
		logger.Debug("连接暂不可关闭", "conn", c.ShortID())
		_ = c.bus.Emit(eventClientNotCloseable, nil)
		return nil
	}

	c.state = types.ConnClosing
	c.local, c.remote = nil, nil
	err := c.handle.Close(c.onHandleClosed)
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("close connection %s: %w", c.ShortID(), err)
	}
	return nil
}

// scheduleCloseRetry 稍后在工作池上重试关闭
func (c *Connection) scheduleCloseRetry() {
	c.server.clock.AfterFunc(c.server.cfg.CloseRetryInterval.Std(), func() {
		c.submit(c.closeAfterFailure)
	})
	c.server.metrics.CloseRetry()
}

// onHandleClosed 句柄释放确认（引擎 goroutine）
func (c *Connection) onHandleClosed() {
	c.submit(c.finishClosing)
}

// finishClosing 完成关闭（工作池）
func (c *Connection) finishClosing() {
	c.mu.Lock()
	c.state = types.ConnClosed
	c.mu.Unlock()

	// 服务器在 closed 事件送达后才可能进入 CLOSED
	c.server.finishing.Add(1)
	if c.server.removeConn(c) {
		c.server.metrics.ConnClosed()
	}
	logger.Debug("连接已关闭", "conn", c.ShortID())

	_ = c.bus.Emit(EventClosed, nil)
	c.bus.RemoveAll()
	c.server.finishing.Add(-1)

	c.server.tryFinishClose()
}

// ════════════════════════════════════════════════════════════════════════════
//                              Keepalive 与地址
// ════════════════════════════════════════════════════════════════════════════

// EnableKeepAlive 启用 TCP keepalive
//
// 连接未打开或已启用时为空操作。引擎出错时状态不变，错误通过连接 error 事件报告。
func (c *Connection) EnableKeepAlive(initialDelay time.Duration) {
	if err := c.setKeepAlive(true, initialDelay); err != nil {
		c.reportError(err)
	}
}

// DisableKeepAlive 禁用 TCP keepalive
func (c *Connection) DisableKeepAlive() {
	if err := c.setKeepAlive(false, 0); err != nil {
		c.reportError(err)
	}
}

// setKeepAlive 切换 keepalive，引擎错误原样返回
func (c *Connection) setKeepAlive(enable bool, delay time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != types.ConnOpen || c.keepAlive == enable {
		return nil
	}
	if err := c.handle.SetKeepAlive(enable, delay); err != nil {
		return err
	}
	c.keepAlive = enable
	return nil
}

// KeepAliveEnabled 返回 keepalive 是否启用
func (c *Connection) KeepAliveEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keepAlive
}

// LocalAddress 返回本地地址，连接关闭中或已关闭时返回 nil
func (c *Connection) LocalAddress() *Address {
	return c.address(&c.local, c.handle.LocalAddress)
}

// RemoteAddress 返回远端地址，连接关闭中或已关闭时返回 nil
func (c *Connection) RemoteAddress() *Address {
	return c.address(&c.remote, c.handle.RemoteAddress)
}

func (c *Connection) address(cache **types.Address, resolve func() (types.Address, error)) *Address {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != types.ConnOpen {
		return nil
	}
	if *cache == nil {
		addr, err := resolve()
		if err != nil {
			logger.Debug("查询连接地址失败", "conn", c.ShortID(), "err", err)
			return nil
		}
		*cache = &addr
	}
	out := **cache
	return &out
}

// ════════════════════════════════════════════════════════════════════════════
//                              事件订阅
// ════════════════════════════════════════════════════════════════════════════

// OnceClosed 注册 closed 处理器（一次性）
//
// 连接已关闭时忽略并返回 0。
func (c *Connection) OnceClosed(h ClosedHandler) HandlerID {
	if h == nil || c.State() == types.ConnClosed {
		return 0
	}
	id, _ := c.bus.Once(EventClosed, func(any) { h() })
	return id
}

// OnErrorOccurred 注册错误处理器
//
// 连接已关闭时忽略并返回 0。
func (c *Connection) OnErrorOccurred(h ErrorHandler) HandlerID {
	if h == nil || c.State() == types.ConnClosed {
		return 0
	}
	id, _ := c.bus.On(EventErrorOccurred, func(data any) {
		if err, ok := data.(error); ok {
			h(err)
		}
	})
	return id
}

// RemoveHandler 移除处理器
func (c *Connection) RemoveHandler(event string, id HandlerID) {
	c.bus.RemoveHandler(event, id)
}

// Report 返回连接诊断快照
func (c *Connection) Report() types.ConnReport {
	r := types.ConnReport{
		ID:        c.id,
		State:     c.State().String(),
		KeepAlive: c.KeepAliveEnabled(),
	}
	if a := c.LocalAddress(); a != nil {
		r.Local = a.String()
	}
	if a := c.RemoteAddress(); a != nil {
		r.Remote = a.String()
	}
	return r
}

// String 返回连接描述
func (c *Connection) String() string {
	remote := "none"
	if a := c.RemoteAddress(); a != nil {
		remote = a.String()
	}
	return fmt.Sprintf("Connection{id=%s, state=%s, remote=%s}", c.ShortID(), c.State(), remote)
}
