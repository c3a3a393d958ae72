package types

// ServerState 服务器状态
//
// 状态单调推进：NOT_STARTED → LISTENING → CLOSING → CLOSED。
type ServerState int32

const (
	// ServerNotStarted 已创建，未监听
	ServerNotStarted ServerState = iota
	// ServerListening 已绑定并监听
	ServerListening
	// ServerClosing 已请求关闭，等待引擎确认
	ServerClosing
	// ServerClosed 已关闭
	ServerClosed
)

// String 返回状态字符串
func (s ServerState) String() string {
	switch s {
	case ServerNotStarted:
		return "NOT_STARTED"
	case ServerListening:
		return "LISTENING"
	case ServerClosing:
		return "CLOSING"
	case ServerClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// ConnState 连接状态
//
// 状态单调推进：OPEN → CLOSING → CLOSED。
type ConnState int32

const (
	// ConnOpen 连接打开
	ConnOpen ConnState = iota
	// ConnClosing 已请求关闭，等待引擎确认
	ConnClosing
	// ConnClosed 已关闭
	ConnClosed
)

// String 返回状态字符串
func (s ConnState) String() string {
	switch s {
	case ConnOpen:
		return "OPEN"
	case ConnClosing:
		return "CLOSING"
	case ConnClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}
