// Package eventbus 实现按名称分发的进程内事件总线
//
// 提供基于事件名称的发布/订阅机制，支持：
//   - 持久处理器（On）与一次性处理器（Once）
//   - 同名处理器按注册顺序同步触发
//   - 并发安全的注册、移除与发射
//
// # 快速开始
//
//	bus := eventbus.NewBus()
//
//	id, _ := bus.On("CLIENT_CONNECTED", func(data any) {
//	    conn := data.(*tcpserver.Connection)
//	    // 处理连接
//	})
//
//	bus.Emit("CLIENT_CONNECTED", conn)
//	bus.RemoveHandler("CLIENT_CONNECTED", id)
//
// # 并发安全
//
// Bus 使用 sync.RWMutex 保护名称→节点映射，每个节点持有自己的锁：
//   - 注册/移除：只锁定对应名称的节点
//   - 发射：在节点锁内拍摄处理器快照，在锁外调用处理器
//   - 一次性处理器：atomic.Bool 保证在并发发射下只触发一次
//
// 处理器内部可以安全地再次注册或移除处理器。
package eventbus
