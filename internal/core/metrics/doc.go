// Package metrics 提供服务器的 Prometheus 指标
//
// Recorder 是服务器与连接上报事件的接口，有两个实现：
//   - Collector: 基于 prometheus/client_golang 的计数器与仪表
//   - Nop:       丢弃所有事件
//
// # 指标列表
//
//	<ns>_connections_active            当前注册的连接数
//	<ns>_connections_accepted_total    已接纳的连接总数
//	<ns>_connections_rejected_total    关闭后被拒绝的连接总数
//	<ns>_bytes_read_total              读取字节总数
//	<ns>_bytes_written_total           写出字节总数
//	<ns>_errors_total{source}          引擎错误总数（server / connection）
//	<ns>_close_retries_total           不可关闭重试总数
//
// # 快速开始
//
//	reg := prometheus.NewRegistry()
//	c, err := metrics.NewCollector(metrics.WithRegisterer(reg))
//	c.ConnAccepted()
package metrics
