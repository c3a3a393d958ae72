//go:build unix

package loop

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// reuseAddrControl 在监听套接字上设置 SO_REUSEADDR
func reuseAddrControl(_, _ string, c syscall.RawConn) error {
	var opErr error
	err := c.Control(func(fd uintptr) {
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			opErr = fmt.Errorf("set SO_REUSEADDR: %w", err)
		}
	})
	if err != nil {
		return err
	}
	return opErr
}

// errnoName 返回错误码名称（如 ECONNRESET）
func errnoName(errno syscall.Errno) string {
	return unix.ErrnoName(errno)
}
