package interfaces

import (
	"time"

	"github.com/dep2p/go-tcpserver/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              Engine 接口
// ════════════════════════════════════════════════════════════════════════════

// Engine 单线程异步套接字引擎
//
// 一个 Engine 对应一个监听套接字和一个事件循环。
type Engine interface {
	// Bind 绑定本地地址
	//
	// 失败时返回 *types.EngineError。
	Bind(ip string, version types.IPVersion, port int) error

	// Listen 开始接受连接
	//
	// onAccept 在引擎 goroutine 上为每个新连接调用一次。
	Listen(onAccept func(ConnHandle)) error

	// BoundAddress 返回实际绑定地址
	//
	// 端口 0 绑定后返回内核分配的端口。
	BoundAddress() (types.Address, error)

	// CloseListener 释放监听套接字
	//
	// onClosed 在监听套接字真正释放后于引擎 goroutine 上调用。
	CloseListener(onClosed func()) error

	// Run 运行事件循环
	//
	// 阻塞直到不再有活动句柄和待处理任务。
	Run() error

	// Release 释放引擎资源
	//
	// 只能在 Run 返回后调用。
	Release() error
}

// ════════════════════════════════════════════════════════════════════════════
//                              ConnHandle 接口
// ════════════════════════════════════════════════════════════════════════════

// ConnHandle 已接受连接的引擎句柄
type ConnHandle interface {
	// Closeable 句柄当前是否可以关闭
	//
	// 正在关闭或有写操作在途时返回 false。
	Closeable() bool

	// Close 关闭句柄
	//
	// 挂起的读操作以取消错误完成，onClosed 在所有在途回调之后调用。
	Close(onClosed func()) error

	// Read 发起一次读操作
	//
	// 回调收到读取字节数；流结束时 n 为 -1；出错时 err 非空。
	Read(buf []byte, cb func(n int, err error)) error

	// Write 发起一次写操作
	//
	// 回调在 buf 全部写出或出错时调用，n 为已写出字节数。
	Write(buf []byte, cb func(n int, err error)) error

	// SetKeepAlive 设置 TCP keepalive
	//
	// delay <= 0 时使用系统默认间隔。
	SetKeepAlive(enable bool, delay time.Duration) error

	// LocalAddress 本地地址
	LocalAddress() (types.Address, error)

	// RemoteAddress 远端地址
	RemoteAddress() (types.Address, error)
}

// EngineFactory 引擎工厂
//
// 每个服务器实例创建并独占一个引擎。
type EngineFactory func() (Engine, error)
