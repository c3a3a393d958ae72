package loop

import (
	"errors"
	"io"
	"net"
	"os"
	"syscall"

	"github.com/dep2p/go-tcpserver/pkg/types"
)

var (
	// ErrLoopAlreadyRunning 循环已在运行
	ErrLoopAlreadyRunning = errors.New("loop: already running")

	// ErrLoopTerminated 循环已终止
	ErrLoopTerminated = errors.New("loop: terminated")

	// ErrLoopNotTerminated Run 尚未返回
	ErrLoopNotTerminated = errors.New("loop: not terminated")
)

// toEngineError 将 Go 错误转换为引擎错误
func toEngineError(op string, err error) *types.EngineError {
	if err == nil {
		return nil
	}

	var ee *types.EngineError
	if errors.As(err, &ee) {
		return ee
	}

	var errno syscall.Errno
	switch {
	case errors.As(err, &errno):
		return errnoError(op, errno, err)
	case errors.Is(err, net.ErrClosed):
		return errnoError(op, syscall.EBADF, err)
	case errors.Is(err, os.ErrDeadlineExceeded):
		return errnoError(op, syscall.ETIMEDOUT, err)
	case errors.Is(err, io.EOF):
		return &types.EngineError{
			Op:      op,
			Code:    types.CodeEOF,
			Name:    "EOF",
			Message: "end of file",
			Err:     err,
		}
	default:
		return &types.EngineError{
			Op:      op,
			Code:    types.CodeUnknown,
			Name:    "UNKNOWN",
			Message: err.Error(),
			Err:     err,
		}
	}
}

// errnoError 由系统错误码构造引擎错误
func errnoError(op string, errno syscall.Errno, err error) *types.EngineError {
	name := errnoName(errno)
	if name == "" {
		name = "UNKNOWN"
	}
	if err == nil {
		err = errno
	}
	return &types.EngineError{
		Op:      op,
		Code:    -int(errno),
		Name:    name,
		Message: errno.Error(),
		Err:     err,
	}
}
