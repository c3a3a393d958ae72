// Package types 定义 go-tcpserver 的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他内部包。
// 所有类型都是纯值类型，用于在服务器、连接与引擎之间传递数据。
//
// # 文件组织
//
//   - address.go       - Address 端点地址（IP、版本、端口）
//   - state.go         - ServerState, ConnState 状态枚举
//   - engine_error.go  - EngineError 引擎错误
package types
