package eventbus

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConcurrent_EmitWhileSubscribing 并发发射与订阅/取消订阅
// 运行 go test -race 时检测竞态
func TestConcurrent_EmitWhileSubscribing(t *testing.T) {
	bus := NewBus()

	em, err := NewEmitter[testEvent](bus)
	require.NoError(t, err)
	defer em.Close()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			_ = em.Emit(testEvent{Value: i})
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			sub, err := Subscribe[testEvent](bus, BufSize(4))
			if err != nil {
				t.Error(err)
				return
			}
			_ = sub.Close()
		}
	}()

	wg.Wait()
}

// TestConcurrent_EmittersCount 多个发射器并发写入同一订阅者
func TestConcurrent_EmittersCount(t *testing.T) {
	bus := NewBus()

	const emitters = 10
	const perEmitter = 50

	sub, err := Subscribe[testEvent](bus, BufSize(emitters*perEmitter))
	require.NoError(t, err)
	defer sub.Close()

	var wg sync.WaitGroup
	wg.Add(emitters)
	for i := 0; i < emitters; i++ {
		go func() {
			defer wg.Done()
			em, err := NewEmitter[testEvent](bus)
			if err != nil {
				t.Error(err)
				return
			}
			defer em.Close()
			for j := 0; j < perEmitter; j++ {
				_ = em.Emit(testEvent{Value: j})
			}
		}()
	}
	wg.Wait()

	assert.Len(t, sub.Out(), emitters*perEmitter)
	assert.Zero(t, Dropped[testEvent](bus))
}
