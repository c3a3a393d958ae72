// Package interfaces 定义 go-tcpserver 的引擎边界接口
//
// 服务器与连接只通过这里的接口访问底层异步套接字引擎。
// 引擎是单线程的：所有回调都在引擎自己的 goroutine 上执行。
// 句柄方法可从任意 goroutine 调用，实际操作由引擎排队执行；
// Run 与 Release 只能由拥有引擎的 goroutine 调用。
//
// # 接口列表
//
//   - Engine      - 监听套接字与事件循环
//   - ConnHandle  - 单个已接受连接的句柄
package interfaces
