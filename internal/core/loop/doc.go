// Package loop 实现基于 Go net 包的单线程异步套接字引擎
//
// Loop 拥有一个事件循环 goroutine（Run，锁定到 OS 线程），
// 循环不断取出入口队列中的任务执行。所有完成回调都在该 goroutine 上调用。
//
// 阻塞的套接字操作（Accept、Read、Write）在独立的 goroutine 上执行，
// 完成后把结果作为任务投递回循环。
//
// # 生命周期
//
// Run 在没有活动句柄且队列为空时返回（与 libuv 默认运行模式一致）：
//
//	Awake ──Run()──► Running ──(无活动句柄)──► Terminated
//
// 活动句柄包括已绑定的监听套接字和每个已接受的连接，
// 句柄在关闭回调送达后才被计为释放。
package loop
