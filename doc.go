// Package tcpserver 提供基于单线程异步套接字引擎的线程安全 TCP 服务器
//
// 引擎在专用 goroutine 上驱动事件循环，所有引擎回调都在该 goroutine 上执行；
// 回调立即转交给按连接分发的工作池，消费者的事件处理器永远不会运行在引擎 goroutine 上。
//
// # 快速开始
//
//	srv, err := tcpserver.New()
//	if err != nil {
//	    return err
//	}
//
//	srv.OnClientConnected(func(c *tcpserver.Connection) {
//	    buf := make([]byte, 4096)
//	    c.Read(buf, func(n int) {
//	        // buf[:n] 为收到的数据，n == -1 表示流结束
//	    })
//	})
//
//	if err := srv.Listen(tcpserver.ListenOptions{Port: 8080}); err != nil {
//	    return err
//	}
//	srv.Start()
//	defer srv.Stop()
//
// # 生命周期
//
//	NOT_STARTED ──Listen()──► LISTENING ──Stop()──► CLOSING ──引擎确认──► CLOSED
//
// 状态单调推进。CLOSED 在监听套接字确认释放且所有连接都完成关闭后才设置。
//
// # 连接
//
// 每个连接同一时刻最多只有一个读和一个写在途，重复调用立即返回
// ErrReadPending / ErrWritePending。关闭分两阶段：引擎报告句柄暂不可关闭时
// 稍后重试，确认释放后连接从服务器注销并触发 closed 事件。
//
// # 事件
//
//   - listening        服务器开始监听（一次性）
//   - closed           服务器或连接关闭完成（一次性）
//   - client connected 新连接被接纳
//   - error occurred   引擎报告的异步错误
package tcpserver
