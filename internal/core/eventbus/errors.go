package eventbus

import "errors"

// ErrInvalidName 事件名称为空（去除空白后）
var ErrInvalidName = errors.New("invalid event name")
