package types

import (
	"errors"
	"fmt"
)

// 引擎错误码
//
// 与 libuv 约定一致：系统错误使用负的 errno，另有两个保留码。
const (
	// CodeEOF 流结束
	CodeEOF = -4095
	// CodeUnknown 未知错误
	CodeUnknown = -4094
	// CodeCanceled 操作因句柄关闭被取消（-ECANCELED）
	CodeCanceled = -125
)

// EngineError 异步引擎报告的错误
type EngineError struct {
	// Op 触发错误的操作（bind, read, write, ...）
	Op string
	// Code 错误码
	Code int
	// Name 错误名称（如 ECONNRESET）
	Name string
	// Message 错误描述
	Message string
	// Err 底层错误
	Err error
}

// Error 实现 error 接口
//
// 格式："op: [NAME] message"
func (e *EngineError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("[%s] %s", e.Name, e.Message)
	}
	return fmt.Sprintf("%s: [%s] %s", e.Op, e.Name, e.Message)
}

// Unwrap 返回底层错误
func (e *EngineError) Unwrap() error {
	return e.Err
}

// NewCanceledError 创建取消错误
func NewCanceledError(op string) *EngineError {
	return &EngineError{
		Op:      op,
		Code:    CodeCanceled,
		Name:    "ECANCELED",
		Message: "operation canceled",
	}
}

// IsEngineError 判断是否为引擎错误
func IsEngineError(err error) bool {
	var ee *EngineError
	return errors.As(err, &ee)
}

// IsCanceled 判断是否为取消错误
func IsCanceled(err error) bool {
	var ee *EngineError
	return errors.As(err, &ee) && ee.Code == CodeCanceled
}
