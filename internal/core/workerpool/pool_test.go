package workerpool

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPool_DefaultSize 测试默认大小等于 CPU 核数
func TestPool_DefaultSize(t *testing.T) {
	p := New(0)
	defer p.Close()

	assert.Equal(t, runtime.NumCPU(), p.Size())
}

// TestPool_RunsTasks 测试任务执行
func TestPool_RunsTasks(t *testing.T) {
	p := New(4)

	var count atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		ok := p.Submit(uint64(i), func() {
			defer wg.Done()
			count.Add(1)
		})
		require.True(t, ok)
	}

	wg.Wait()
	assert.Equal(t, int32(100), count.Load())
	require.NoError(t, p.Close())
}

// TestPool_KeyOrdering 测试相同 key 的任务按提交顺序执行
func TestPool_KeyOrdering(t *testing.T) {
	p := New(8)

	const tasks = 500
	var mu sync.Mutex
	order := make([]int, 0, tasks)

	for i := 0; i < tasks; i++ {
		i := i
		p.Submit(42, func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}

	require.NoError(t, p.Close())

	require.Len(t, order, tasks)
	for i := 0; i < tasks; i++ {
		assert.Equal(t, i, order[i])
	}
}

// TestPool_CloseDrainsQueue 测试关闭时执行完已排队任务
func TestPool_CloseDrainsQueue(t *testing.T) {
	p := New(1)

	release := make(chan struct{})
	var count atomic.Int32

	p.Submit(0, func() { <-release })
	for i := 0; i < 10; i++ {
		p.Submit(0, func() { count.Add(1) })
	}

	done := make(chan struct{})
	go func() {
		_ = p.Close()
		close(done)
	}()

	// 关闭在第一个任务完成前不会返回
	select {
	case <-done:
		t.Fatal("Close() returned before queued tasks finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-done
	assert.Equal(t, int32(10), count.Load())
}

// TestPool_SubmitAfterClose 测试关闭后提交被拒绝
func TestPool_SubmitAfterClose(t *testing.T) {
	p := New(2)
	require.NoError(t, p.Close())

	assert.True(t, p.Closed())
	assert.False(t, p.Submit(0, func() {}))

	// 重复关闭是安全的
	assert.NoError(t, p.Close())
}

// TestPool_RecoversPanic 测试任务 panic 不影响后续任务
func TestPool_RecoversPanic(t *testing.T) {
	p := New(1)
	defer p.Close()

	p.Submit(0, func() { panic("boom") })

	done := make(chan struct{})
	p.Submit(0, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not survive panic")
	}
}
