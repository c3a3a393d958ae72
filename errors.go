package tcpserver

import (
	"errors"

	"github.com/dep2p/go-tcpserver/config"
	"github.com/dep2p/go-tcpserver/internal/core/eventbus"
	"github.com/dep2p/go-tcpserver/internal/core/gate"
	"github.com/dep2p/go-tcpserver/pkg/types"
)

// 公共错误定义
var (
	// ────────────────────────────────────────────────────────────────────────
	// 服务器错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrInvalidPort 端口超出 [0, 65535]
	ErrInvalidPort = config.ErrInvalidPort

	// ErrAlreadyListening 服务器已在监听
	ErrAlreadyListening = errors.New("server already listening")

	// ErrServerClosed 服务器正在关闭或已关闭
	ErrServerClosed = errors.New("server closed")

	// ErrHostUnresolvable 主机名无法解析
	ErrHostUnresolvable = errors.New("host unresolvable")

	// ────────────────────────────────────────────────────────────────────────
	// 连接错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrChannelClosed 连接正在关闭或已关闭
	ErrChannelClosed = errors.New("channel closed")

	// ErrReadPending 已有读操作在途
	ErrReadPending = errors.New("read pending")

	// ErrWritePending 已有写操作在途
	ErrWritePending = errors.New("write pending")

	// ────────────────────────────────────────────────────────────────────────
	// 基础组件错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrInvalidEventName 事件名称为空
	ErrInvalidEventName = eventbus.ErrInvalidName

	// ErrIllegalRelease 释放未持有的闸门
	ErrIllegalRelease = gate.ErrIllegalRelease
)

// EngineError 引擎报告的错误
type EngineError = types.EngineError

// IsEngineError 判断是否为引擎错误
func IsEngineError(err error) bool {
	return types.IsEngineError(err)
}
