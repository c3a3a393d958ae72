package mocks

import (
	"errors"
	"sync"
	"syscall"
	"time"

	"github.com/dep2p/go-tcpserver/pkg/interfaces"
	"github.com/dep2p/go-tcpserver/pkg/types"
)

// ErrNotListening 引擎未监听
var ErrNotListening = errors.New("mock engine: not listening")

// BindCall Bind 调用记录
type BindCall struct {
	IP      string
	Version types.IPVersion
	Port    int
}

// Engine 模拟 Engine 接口实现
type Engine struct {
	// 可覆盖的方法
	BindFunc          func(ip string, version types.IPVersion, port int) error
	ListenFunc        func(onAccept func(interfaces.ConnHandle)) error
	BoundAddressFunc  func() (types.Address, error)
	CloseListenerFunc func(onClosed func()) error
	RunFunc           func() error
	ReleaseFunc       func() error

	mu       sync.Mutex
	binds    []BindCall
	bound    *types.Address
	onAccept func(interfaces.ConnHandle)

	listenerClosed bool
	openHandles    int
	released       bool

	tasks chan func()
}

var _ interfaces.Engine = (*Engine)(nil)

// NewEngine 创建模拟引擎
func NewEngine() *Engine {
	return &Engine{
		tasks: make(chan func(), 1024),
	}
}

// Factory 返回始终提供该引擎的工厂
func (e *Engine) Factory() interfaces.EngineFactory {
	return func() (interfaces.Engine, error) {
		return e, nil
	}
}

// Bind 记录绑定
func (e *Engine) Bind(ip string, version types.IPVersion, port int) error {
	e.mu.Lock()
	e.binds = append(e.binds, BindCall{IP: ip, Version: version, Port: port})
	e.mu.Unlock()

	if e.BindFunc != nil {
		if err := e.BindFunc(ip, version, port); err != nil {
			return err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if port == 0 {
		port = 40000
	}
	addr := types.NewAddress(ip, version, port)
	e.bound = &addr
	return nil
}

// Binds 返回 Bind 调用记录
func (e *Engine) Binds() []BindCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]BindCall(nil), e.binds...)
}

// Listen 保存接受回调
func (e *Engine) Listen(onAccept func(interfaces.ConnHandle)) error {
	if e.ListenFunc != nil {
		return e.ListenFunc(onAccept)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.bound == nil {
		return ErrNotListening
	}
	e.onAccept = onAccept
	return nil
}

// BoundAddress 返回绑定地址
func (e *Engine) BoundAddress() (types.Address, error) {
	if e.BoundAddressFunc != nil {
		return e.BoundAddressFunc()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.bound == nil || e.listenerClosed {
		return types.Address{}, &types.EngineError{Op: "getsockname", Code: -int(syscall.EBADF), Name: "EBADF", Message: "bad file descriptor"}
	}
	return *e.bound, nil
}

// CloseListener 在循环上确认监听套接字释放
func (e *Engine) CloseListener(onClosed func()) error {
	if e.CloseListenerFunc != nil {
		return e.CloseListenerFunc(onClosed)
	}
	e.ConfirmListenerClosed(onClosed)
	return nil
}

// ConfirmListenerClosed 在循环上标记监听套接字已释放并调用 onClosed
//
// 覆盖 CloseListenerFunc 的测试用它手动确认释放。
func (e *Engine) ConfirmListenerClosed(onClosed func()) {
	e.Post(func() {
		e.mu.Lock()
		e.listenerClosed = true
		e.onAccept = nil
		e.mu.Unlock()
		if onClosed != nil {
			onClosed()
		}
	})
}

// Accept 模拟一个新连接，返回其句柄
//
// 接受回调在循环上执行。未监听时返回 nil。
func (e *Engine) Accept() *ConnHandle {
	h := NewConnHandle(e)
	if !e.AcceptHandle(h) {
		return nil
	}
	return h
}

// AcceptHandle 用预先配置的句柄模拟新连接
func (e *Engine) AcceptHandle(h *ConnHandle) bool {
	e.mu.Lock()
	onAccept := e.onAccept
	if onAccept == nil {
		e.mu.Unlock()
		return false
	}
	e.openHandles++
	e.mu.Unlock()

	e.Post(func() { onAccept(h) })
	return true
}

// Post 投递任务到循环
func (e *Engine) Post(task func()) {
	e.tasks <- task
}

// Run 执行任务直到监听套接字释放且所有句柄关闭
func (e *Engine) Run() error {
	if e.RunFunc != nil {
		return e.RunFunc()
	}
	for {
		if e.idle() {
			return nil
		}
		task := <-e.tasks
		task()
	}
}

func (e *Engine) idle() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return (e.listenerClosed || e.bound == nil) && e.openHandles == 0 && len(e.tasks) == 0
}

// Release 标记已释放
func (e *Engine) Release() error {
	if e.ReleaseFunc != nil {
		return e.ReleaseFunc()
	}
	e.mu.Lock()
	e.released = true
	e.mu.Unlock()
	return nil
}

// Released 是否已调用 Release
func (e *Engine) Released() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.released
}

// handleClosed 句柄关闭完成（循环上调用）
func (e *Engine) handleClosed() {
	e.mu.Lock()
	e.openHandles--
	e.mu.Unlock()
}

// ════════════════════════════════════════════════════════════════════════════
//                              ConnHandle
// ════════════════════════════════════════════════════════════════════════════

// ConnHandle 模拟 ConnHandle 接口实现
type ConnHandle struct {
	// 可覆盖的方法
	CloseableFunc     func() bool
	ReadFunc          func(buf []byte, cb func(n int, err error)) error
	WriteFunc         func(buf []byte, cb func(n int, err error)) error
	SetKeepAliveFunc  func(enable bool, delay time.Duration) error
	LocalAddressFunc  func() (types.Address, error)
	RemoteAddressFunc func() (types.Address, error)

	engine *Engine

	mu          sync.Mutex
	closed      bool
	closeCalls  int
	pendingBuf  []byte
	pendingRead func(n int, err error)
	written     []byte
	keepAlive   bool
	delay       time.Duration
}

var _ interfaces.ConnHandle = (*ConnHandle)(nil)

// NewConnHandle 创建模拟句柄
func NewConnHandle(e *Engine) *ConnHandle {
	return &ConnHandle{engine: e}
}

// Closeable 默认未关闭即可关闭
func (h *ConnHandle) Closeable() bool {
	if h.CloseableFunc != nil {
		return h.CloseableFunc()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.closed
}

// Close 取消挂起的读，然后在循环上确认关闭
func (h *ConnHandle) Close(onClosed func()) error {
	h.mu.Lock()
	h.closeCalls++
	if h.closed {
		h.mu.Unlock()
		return &types.EngineError{Op: "close", Code: -int(syscall.EINVAL), Name: "EINVAL", Message: "already closing"}
	}
	h.closed = true
	cb := h.pendingRead
	h.pendingRead, h.pendingBuf = nil, nil
	h.mu.Unlock()

	if cb != nil {
		h.engine.Post(func() { cb(0, types.NewCanceledError("read")) })
	}
	h.engine.Post(func() {
		h.engine.handleClosed()
		if onClosed != nil {
			onClosed()
		}
	})
	return nil
}

// CloseCalls 返回 Close 调用次数
func (h *ConnHandle) CloseCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closeCalls
}

// Read 保存挂起的读，等待 Deliver* 送达
func (h *ConnHandle) Read(buf []byte, cb func(n int, err error)) error {
	if h.ReadFunc != nil {
		return h.ReadFunc(buf, cb)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return &types.EngineError{Op: "read", Code: -int(syscall.EBADF), Name: "EBADF", Message: "bad file descriptor"}
	}
	h.pendingBuf, h.pendingRead = buf, cb
	return nil
}

// ReadPending 是否有挂起的读
func (h *ConnHandle) ReadPending() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pendingRead != nil
}

// DeliverData 送达读数据，返回是否有挂起的读
func (h *ConnHandle) DeliverData(data []byte) bool {
	return h.deliver(func(buf []byte) (int, error) {
		return copy(buf, data), nil
	})
}

// DeliverEOF 送达流结束
func (h *ConnHandle) DeliverEOF() bool {
	return h.deliver(func([]byte) (int, error) { return -1, nil })
}

// DeliverError 送达读错误
func (h *ConnHandle) DeliverError(err error) bool {
	return h.deliver(func([]byte) (int, error) { return 0, err })
}

func (h *ConnHandle) deliver(fill func(buf []byte) (int, error)) bool {
	h.mu.Lock()
	buf, cb := h.pendingBuf, h.pendingRead
	h.pendingBuf, h.pendingRead = nil, nil
	h.mu.Unlock()

	if cb == nil {
		return false
	}
	h.engine.Post(func() {
		n, err := fill(buf)
		cb(n, err)
	})
	return true
}

// Write 记录写出的数据并立即完成
func (h *ConnHandle) Write(buf []byte, cb func(n int, err error)) error {
	if h.WriteFunc != nil {
		return h.WriteFunc(buf, cb)
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return &types.EngineError{Op: "write", Code: -int(syscall.EBADF), Name: "EBADF", Message: "bad file descriptor"}
	}
	h.written = append(h.written, buf...)
	h.mu.Unlock()

	n := len(buf)
	h.engine.Post(func() { cb(n, nil) })
	return nil
}

// Written 返回已写出的数据
func (h *ConnHandle) Written() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]byte(nil), h.written...)
}

// SetKeepAlive 记录 keepalive 设置
func (h *ConnHandle) SetKeepAlive(enable bool, delay time.Duration) error {
	if h.SetKeepAliveFunc != nil {
		if err := h.SetKeepAliveFunc(enable, delay); err != nil {
			return err
		}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.keepAlive, h.delay = enable, delay
	return nil
}

// KeepAlive 返回 keepalive 设置
func (h *ConnHandle) KeepAlive() (bool, time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.keepAlive, h.delay
}

// LocalAddress 默认 127.0.0.1:40000
func (h *ConnHandle) LocalAddress() (types.Address, error) {
	if h.LocalAddressFunc != nil {
		return h.LocalAddressFunc()
	}
	return types.NewAddress("127.0.0.1", types.IPv4, 40000), nil
}

// RemoteAddress 默认 127.0.0.1:50000
func (h *ConnHandle) RemoteAddress() (types.Address, error) {
	if h.RemoteAddressFunc != nil {
		return h.RemoteAddressFunc()
	}
	return types.NewAddress("127.0.0.1", types.IPv4, 50000), nil
}
