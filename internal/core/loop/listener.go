package loop

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/dep2p/go-tcpserver/pkg/interfaces"
	"github.com/dep2p/go-tcpserver/pkg/types"
)

// acceptBackoff 临时 Accept 错误后的等待时间
const acceptBackoff = 5 * time.Millisecond

// listener 监听套接字
type listener struct {
	loop *Loop

	mu         sync.Mutex
	ln         *net.TCPListener
	closing    bool
	acceptDone chan struct{}
}

// Bind 绑定本地地址
func (l *Loop) Bind(ip string, version types.IPVersion, port int) error {
	return l.ln.bind(ip, version, port)
}

// Listen 开始接受连接
func (l *Loop) Listen(onAccept func(interfaces.ConnHandle)) error {
	return l.ln.listen(onAccept)
}

// BoundAddress 返回实际绑定地址
func (l *Loop) BoundAddress() (types.Address, error) {
	return l.ln.boundAddress()
}

// CloseListener 释放监听套接字
func (l *Loop) CloseListener(onClosed func()) error {
	return l.ln.close(onClosed)
}

// network 选择监听网络
//
// IPv6 未指定地址使用双栈 "tcp"。
func network(ip string, version types.IPVersion) string {
	if version == types.IPv6 {
		if ip == types.UnspecifiedIPv6 {
			return "tcp"
		}
		return "tcp6"
	}
	return "tcp4"
}

func (ls *listener) bind(ip string, version types.IPVersion, port int) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.closing {
		return errnoError("bind", syscall.EBADF, nil)
	}
	if ls.ln != nil {
		return errnoError("bind", syscall.EINVAL, nil)
	}

	lc := net.ListenConfig{Control: reuseAddrControl}
	addr := net.JoinHostPort(ip, strconv.Itoa(port))
	nl, err := lc.Listen(context.Background(), network(ip, version), addr)
	if err != nil {
		return toEngineError("bind", err)
	}

	ls.ln = nl.(*net.TCPListener)
	ls.loop.ref()

	logger.Debug("监听套接字已绑定", "addr", nl.Addr().String())
	return nil
}

func (ls *listener) listen(onAccept func(interfaces.ConnHandle)) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.ln == nil || ls.closing {
		return errnoError("listen", syscall.EBADF, nil)
	}
	if ls.acceptDone != nil {
		return errnoError("listen", syscall.EINVAL, nil)
	}

	ls.acceptDone = make(chan struct{})
	go ls.acceptLoop(ls.ln, onAccept, ls.acceptDone)
	return nil
}

func (ls *listener) boundAddress() (types.Address, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.ln == nil || ls.closing {
		return types.Address{}, errnoError("getsockname", syscall.EBADF, nil)
	}
	addr, err := types.NewAddressFromNetAddr(ls.ln.Addr())
	if err != nil {
		return types.Address{}, toEngineError("getsockname", err)
	}
	return addr, nil
}

// close 关闭监听套接字
//
// 等待 Accept goroutine 退出后在循环上调用 onClosed，
// 之前已接受的连接回调都先于 onClosed 送达。
func (ls *listener) close(onClosed func()) error {
	ls.mu.Lock()
	if ls.closing {
		ls.mu.Unlock()
		return errnoError("close", syscall.EINVAL, nil)
	}
	ls.closing = true
	nl := ls.ln
	done := ls.acceptDone
	ls.mu.Unlock()

	finish := func() {
		if nl != nil {
			ls.loop.unref()
		}
		if onClosed != nil {
			onClosed()
		}
	}

	if nl == nil {
		ls.loop.post(finish)
		return nil
	}

	err := nl.Close()
	go func() {
		if done != nil {
			<-done
		}
		ls.loop.post(finish)
	}()

	if err != nil {
		return toEngineError("close", err)
	}
	logger.Debug("监听套接字已关闭", "addr", nl.Addr().String())
	return nil
}

// release 确保监听套接字已关闭
func (ls *listener) release() error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.ln == nil || ls.closing {
		return nil
	}
	ls.closing = true
	if err := ls.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return toEngineError("close", err)
	}
	return nil
}

// acceptLoop 接受连接并投递到循环
func (ls *listener) acceptLoop(nl *net.TCPListener, onAccept func(interfaces.ConnHandle), done chan struct{}) {
	defer close(done)

	for {
		c, err := nl.AcceptTCP()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Warn("接受连接失败", "err", err)
			time.Sleep(acceptBackoff)
			continue
		}

		h := newHandle(ls.loop, c)
		ls.loop.ref()
		if !ls.loop.post(func() { onAccept(h) }) {
			ls.loop.unref()
			_ = c.Close()
			return
		}
	}
}
