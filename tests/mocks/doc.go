// Package mocks 提供测试用的引擎替身
//
// Engine 与 ConnHandle 实现 pkg/interfaces 中的接口，
// 通过 Func 字段覆盖任意方法，未覆盖时使用内置的内存行为：
// Engine 运行一个最小任务循环，ConnHandle 保存挂起的读并由测试手动送达。
package mocks
