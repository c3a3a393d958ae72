package loop

import (
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"

	"github.com/dep2p/go-tcpserver/pkg/interfaces"
	"github.com/dep2p/go-tcpserver/pkg/lib/log"
)

var logger = log.Logger("core/loop")

// Loop 单线程事件循环引擎
//
// 实现 interfaces.Engine。一个 Loop 管理一个监听套接字。
type Loop struct {
	state fastState

	// 入口队列
	mu      sync.Mutex
	ingress []func()
	wakeup  chan struct{}

	// 活动句柄数
	active atomic.Int64

	ln *listener

	releaseOnce sync.Once
}

var _ interfaces.Engine = (*Loop)(nil)

// New 创建事件循环
func New() *Loop {
	l := &Loop{
		wakeup: make(chan struct{}, 1),
	}
	l.ln = &listener{loop: l}
	return l
}

// NewEngine 引擎工厂
func NewEngine() (interfaces.Engine, error) {
	return New(), nil
}

// State 返回循环状态
func (l *Loop) State() State {
	return l.state.Load()
}

// ActiveHandles 返回活动句柄数
func (l *Loop) ActiveHandles() int {
	return int(l.active.Load())
}

// Run 运行事件循环
//
// 阻塞直到没有活动句柄且入口队列为空。
func (l *Loop) Run() error {
	if !l.state.TryTransition(StateAwake, StateRunning) {
		if l.state.Load() == StateTerminated {
			return ErrLoopTerminated
		}
		return ErrLoopAlreadyRunning
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	logger.Debug("事件循环已启动")

	var batch []func()
	for {
		batch = l.drain(batch[:0])
		for i, task := range batch {
			task()
			batch[i] = nil
		}
		if len(batch) > 0 {
			continue
		}

		if l.tryTerminate() {
			logger.Debug("事件循环已退出")
			return nil
		}
		<-l.wakeup
	}
}

// Release 释放循环资源
//
// 只能在 Run 返回后调用。
func (l *Loop) Release() error {
	if l.state.Load() != StateTerminated {
		return ErrLoopNotTerminated
	}

	var err error
	l.releaseOnce.Do(func() {
		l.mu.Lock()
		l.ingress = nil
		l.mu.Unlock()
		err = multierr.Append(err, l.ln.release())
	})
	return err
}

// post 将任务投递到循环
//
// 循环终止后返回 false。
func (l *Loop) post(task func()) bool {
	l.mu.Lock()
	if l.state.Load() == StateTerminated {
		l.mu.Unlock()
		return false
	}
	l.ingress = append(l.ingress, task)
	l.mu.Unlock()

	select {
	case l.wakeup <- struct{}{}:
	default:
	}
	return true
}

// drain 取出入口队列中的全部任务
func (l *Loop) drain(buf []func()) []func() {
	l.mu.Lock()
	buf = append(buf, l.ingress...)
	clear(l.ingress)
	l.ingress = l.ingress[:0]
	l.mu.Unlock()
	return buf
}

// tryTerminate 无活动句柄且队列为空时终止循环
func (l *Loop) tryTerminate() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.ingress) > 0 || l.active.Load() > 0 {
		return false
	}
	l.state.Store(StateTerminated)
	return true
}

// ref 增加活动句柄
func (l *Loop) ref() {
	l.active.Add(1)
}

// unref 释放活动句柄，只在循环 goroutine 上调用
func (l *Loop) unref() {
	l.active.Add(-1)
}
