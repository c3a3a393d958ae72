// Package workerpool 提供有界的按键分发工作池
//
// 引擎线程上的回调通过工作池转交给消费者可见的事件处理器，
// 保证消费者处理器永远不会在引擎线程上运行，也不会阻塞事件循环。
//
// 特性：
//   - 固定数量的工作协程（默认等于 CPU 核数）
//   - 每个工作协程拥有无界队列，Submit 永不阻塞
//   - 相同 key 的任务由同一工作协程按提交顺序执行
//   - 任务 panic 被恢复并记录，工作协程不会退出
package workerpool

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-tcpserver/pkg/lib/log"
)

var logger = log.Logger("core/workerpool")

// Pool 工作池
type Pool struct {
	workers []*worker
	group   errgroup.Group

	closed    atomic.Bool
	closeOnce sync.Once
}

// worker 单个工作协程及其队列
type worker struct {
	mu     sync.Mutex
	cond   *sync.Cond
	tasks  []func()
	closed bool
}

// New 创建工作池
//
// size <= 0 时使用 runtime.NumCPU()。
func New(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}

	p := &Pool{
		workers: make([]*worker, size),
	}

	for i := range p.workers {
		w := &worker{}
		w.cond = sync.NewCond(&w.mu)
		p.workers[i] = w
		p.group.Go(w.run)
	}

	logger.Debug("工作池已启动", "size", size)
	return p
}

// Size 返回工作协程数量
func (p *Pool) Size() int {
	return len(p.workers)
}

// Submit 提交任务
//
// 相同 key 的任务按提交顺序串行执行。工作池关闭后返回 false。
func (p *Pool) Submit(key uint64, task func()) bool {
	if task == nil {
		return false
	}
	if p.closed.Load() {
		return false
	}

	w := p.workers[key%uint64(len(p.workers))]

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false
	}
	w.tasks = append(w.tasks, task)
	w.mu.Unlock()
	w.cond.Signal()

	return true
}

// Close 关闭工作池
//
// 停止接收新任务，执行完已排队的任务后返回。
// 不能在工作池的任务内部调用。
func (p *Pool) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.closed.Store(true)

		for _, w := range p.workers {
			w.mu.Lock()
			w.closed = true
			w.mu.Unlock()
			w.cond.Broadcast()
		}

		err = p.group.Wait()
		logger.Debug("工作池已关闭")
	})
	return err
}

// Closed 返回工作池是否已关闭
func (p *Pool) Closed() bool {
	return p.closed.Load()
}

// run 工作协程主循环
func (w *worker) run() error {
	for {
		w.mu.Lock()
		for len(w.tasks) == 0 && !w.closed {
			w.cond.Wait()
		}
		if len(w.tasks) == 0 {
			w.mu.Unlock()
			return nil
		}
		task := w.tasks[0]
		w.tasks[0] = nil
		w.tasks = w.tasks[1:]
		w.mu.Unlock()

		execute(task)
	}
}

// execute 执行任务并恢复 panic
func execute(task func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("任务执行 panic", "panic", fmt.Sprint(r))
		}
	}()
	task()
}
