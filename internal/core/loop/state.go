package loop

import "sync/atomic"

// State 循环状态
type State int32

const (
	// StateAwake 已创建，未运行
	StateAwake State = iota
	// StateRunning 正在运行
	StateRunning
	// StateTerminated 已终止
	StateTerminated
)

// String 返回状态字符串
func (s State) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// fastState 原子状态
type fastState struct {
	v atomic.Int32
}

func (s *fastState) Load() State {
	return State(s.v.Load())
}

func (s *fastState) Store(state State) {
	s.v.Store(int32(state))
}

func (s *fastState) TryTransition(from, to State) bool {
	return s.v.CompareAndSwap(int32(from), int32(to))
}
