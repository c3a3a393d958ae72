package eventbus

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
//                              并发测试
// ============================================================================

// TestConcurrent_OnceUnderConcurrentEmit 测试并发发射下一次性处理器只触发一次
func TestConcurrent_OnceUnderConcurrentEmit(t *testing.T) {
	bus := NewBus()

	for round := 0; round < 50; round++ {
		var calls atomic.Int32
		_, err := bus.Once("EVT", func(any) { calls.Add(1) })
		require.NoError(t, err)

		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_ = bus.Emit("EVT", nil)
			}()
		}
		close(start)
		wg.Wait()

		assert.Equal(t, int32(1), calls.Load(), "round %d", round)
	}
}

// TestConcurrent_RegisterWhileEmitting 测试发射与注册/移除并发
func TestConcurrent_RegisterWhileEmitting(t *testing.T) {
	bus := NewBus()

	var total atomic.Int64
	_, err := bus.On("EVT", func(any) { total.Add(1) })
	require.NoError(t, err)

	var emitters, registrars sync.WaitGroup
	stop := make(chan struct{})

	// 发射者
	for i := 0; i < 4; i++ {
		emitters.Add(1)
		go func() {
			defer emitters.Done()
			for {
				select {
				case <-stop:
					return
				default:
					_ = bus.Emit("EVT", nil)
				}
			}
		}()
	}

	// 注册者
	for i := 0; i < 4; i++ {
		registrars.Add(1)
		go func(i int) {
			defer registrars.Done()
			name := fmt.Sprintf("EVT-%d", i)
			for j := 0; j < 200; j++ {
				id, err := bus.On(name, func(any) {})
				if err != nil {
					t.Errorf("On() failed: %v", err)
					return
				}
				_, _ = bus.Once("EVT", func(any) {})
				bus.RemoveHandler(name, id)
			}
		}(i)
	}

	registrars.Wait()
	close(stop)
	emitters.Wait()

	require.NoError(t, bus.Emit("EVT", nil))

	assert.Greater(t, total.Load(), int64(0))
	for i := 0; i < 4; i++ {
		assert.Equal(t, 0, bus.Count(fmt.Sprintf("EVT-%d", i)))
	}
	t.Log("✅ 并发注册/发射无数据竞争")
}
