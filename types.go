package tcpserver

import (
	"github.com/dep2p/go-tcpserver/internal/core/eventbus"
	"github.com/dep2p/go-tcpserver/internal/core/metrics"
	"github.com/dep2p/go-tcpserver/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              类型别名
// ════════════════════════════════════════════════════════════════════════════

// Address IP 端点地址
type Address = types.Address

// IPVersion IP 协议版本
type IPVersion = types.IPVersion

// ServerState 服务器状态
type ServerState = types.ServerState

// ConnState 连接状态
type ConnState = types.ConnState

// HandlerID 事件处理器注册标识，0 表示注册被忽略
type HandlerID = eventbus.HandlerID

// MetricsRecorder 指标上报接口
type MetricsRecorder = metrics.Recorder

// 状态常量
const (
	StateNotStarted = types.ServerNotStarted
	StateListening  = types.ServerListening
	StateClosing    = types.ServerClosing
	StateClosed     = types.ServerClosed

	ConnOpen    = types.ConnOpen
	ConnClosing = types.ConnClosing
	ConnClosed  = types.ConnClosed
)

// ════════════════════════════════════════════════════════════════════════════
//                              事件
// ════════════════════════════════════════════════════════════════════════════

// 事件名称
const (
	EventClientConnected = "CLIENT_CONNECTED"
	EventClosed          = "CLOSED"
	EventErrorOccurred   = "ERROR_OCCURRED"
	EventListening       = "LISTENING"

	// eventClientNotCloseable 连接暂不可关闭（内部）
	eventClientNotCloseable = "CLIENT_NOT_CLOSEABLE_ERROR"
)

// ListeningHandler 监听事件处理器
type ListeningHandler func()

// ClosedHandler 关闭事件处理器
type ClosedHandler func()

// ErrorHandler 错误事件处理器
type ErrorHandler func(err error)

// ClientConnectedHandler 新连接事件处理器
type ClientConnectedHandler func(c *Connection)

// CompletionHandler 读写完成处理器
//
// 读：n > 0 为读取字节数，0 表示无数据或出错，-1 表示流结束。
// 写：n 为引擎接受的字节数。
type CompletionHandler func(n int)

// ListenOptions Listen 参数
type ListenOptions struct {
	// Host 监听主机，空表示未指定地址（优先 IPv6）
	Host string

	// Port 监听端口，0 表示由系统分配
	Port int

	// OnListening Start 时触发一次
	OnListening ListeningHandler
}
