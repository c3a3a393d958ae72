package loop

import (
	"errors"
	"io"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/dep2p/go-tcpserver/pkg/interfaces"
	"github.com/dep2p/go-tcpserver/pkg/types"
)

// handle 已接受连接的句柄
//
// 每个读写操作在独立 goroutine 上阻塞执行，完成后投递回循环。
type handle struct {
	loop *Loop
	conn *net.TCPConn

	mu      sync.Mutex
	closing bool
	reading bool
	writing bool

	// 在途回调，关闭确认在其全部送达后投递
	inflight sync.WaitGroup
}

var _ interfaces.ConnHandle = (*handle)(nil)

func newHandle(l *Loop, c *net.TCPConn) *handle {
	return &handle{loop: l, conn: c}
}

// Closeable 句柄是否可关闭
//
// 仅在另一个操作持有句柄锁提交时返回 false。在途读写不阻止关闭，
// 关闭后以取消错误完成。
func (h *handle) Closeable() bool {
	if !h.mu.TryLock() {
		return false
	}
	defer h.mu.Unlock()
	return !h.closing
}

// Close 关闭句柄
func (h *handle) Close(onClosed func()) error {
	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		return errnoError("close", syscall.EINVAL, nil)
	}
	h.closing = true
	h.mu.Unlock()

	err := h.conn.Close()

	go func() {
		h.inflight.Wait()
		h.loop.post(func() {
			h.loop.unref()
			if onClosed != nil {
				onClosed()
			}
		})
	}()

	if err != nil && !errors.Is(err, net.ErrClosed) {
		return toEngineError("close", err)
	}
	return nil
}

// Read 发起读操作
func (h *handle) Read(buf []byte, cb func(n int, err error)) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closing {
		return errnoError("read", syscall.EBADF, nil)
	}
	if h.reading {
		return errnoError("read", syscall.EALREADY, nil)
	}
	h.reading = true
	h.inflight.Add(1)

	go func() {
		n, err := h.conn.Read(buf)
		h.complete(func() {
			h.mu.Lock()
			h.reading = false
			closing := h.closing
			h.mu.Unlock()

			switch {
			case n > 0:
				cb(n, nil)
			case err == nil:
				cb(0, nil)
			case closing:
				cb(0, types.NewCanceledError("read"))
			case errors.Is(err, io.EOF):
				cb(-1, nil)
			default:
				cb(0, toEngineError("read", err))
			}
		})
	}()
	return nil
}

// Write 发起写操作
func (h *handle) Write(buf []byte, cb func(n int, err error)) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closing {
		return errnoError("write", syscall.EBADF, nil)
	}
	if h.writing {
		return errnoError("write", syscall.EALREADY, nil)
	}
	h.writing = true
	h.inflight.Add(1)

	go func() {
		n, err := h.conn.Write(buf)
		h.complete(func() {
			h.mu.Lock()
			h.writing = false
			closing := h.closing
			h.mu.Unlock()

			switch {
			case err == nil:
				cb(n, nil)
			case closing:
				cb(n, types.NewCanceledError("write"))
			default:
				cb(n, toEngineError("write", err))
			}
		})
	}()
	return nil
}

// SetKeepAlive 设置 TCP keepalive
func (h *handle) SetKeepAlive(enable bool, delay time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closing {
		return errnoError("keepalive", syscall.EBADF, nil)
	}
	if err := h.conn.SetKeepAlive(enable); err != nil {
		return toEngineError("keepalive", err)
	}
	if enable && delay > 0 {
		if err := h.conn.SetKeepAlivePeriod(delay); err != nil {
			return toEngineError("keepalive", err)
		}
	}
	return nil
}

// LocalAddress 本地地址
func (h *handle) LocalAddress() (types.Address, error) {
	return h.address("getsockname", h.conn.LocalAddr)
}

// RemoteAddress 远端地址
func (h *handle) RemoteAddress() (types.Address, error) {
	return h.address("getpeername", h.conn.RemoteAddr)
}

func (h *handle) address(op string, get func() net.Addr) (types.Address, error) {
	h.mu.Lock()
	closing := h.closing
	h.mu.Unlock()

	if closing {
		return types.Address{}, errnoError(op, syscall.EBADF, nil)
	}
	addr, err := types.NewAddressFromNetAddr(get())
	if err != nil {
		return types.Address{}, toEngineError(op, err)
	}
	return addr, nil
}

// complete 在循环上送达完成回调
func (h *handle) complete(cb func()) {
	if !h.loop.post(func() {
		defer h.inflight.Done()
		cb()
	}) {
		h.inflight.Done()
		logger.Warn("循环已终止，丢弃完成回调")
	}
}
