//go:build !unix

package loop

import "syscall"

// reuseAddrControl 非 unix 平台不设置套接字选项
func reuseAddrControl(_, _ string, _ syscall.RawConn) error {
	return nil
}

// errnoName 非 unix 平台没有错误码名称表
func errnoName(_ syscall.Errno) string {
	return ""
}
