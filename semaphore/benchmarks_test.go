package semaphore

import (
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
)

func benchmarkSyncMutex(b *testing.B) {
	var (
		value int
		lock  sync.Mutex
	)

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			lock.Lock()
			value++
			lock.Unlock()
		}
	})
}

func benchmarkBinaryUncontended(b *testing.B) {
	var (
		value int
		s     = NewBinary("benchmark")
	)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Acquire("task")
		value++
		s.Release("task")
	}
}

func benchmarkBinaryTryAcquire(b *testing.B) {
	var (
		value int
		next  int32
		s     = NewBinary("benchmark")
	)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		id := strconv.Itoa(int(atomic.AddInt32(&next, 1)))
		for pb.Next() {
			for acquired := false; !acquired; {
				acquired, _ = s.TryAcquire(id)
			}

			value++
			s.Release(id)
		}
	})
}

func BenchmarkSingleResource(b *testing.B) {
	b.Run("sync.Mutex", benchmarkSyncMutex)
	b.Run("binary", func(b *testing.B) {
		b.Run("uncontended", benchmarkBinaryUncontended)
		b.Run("tryAcquire", benchmarkBinaryTryAcquire)
	})
}
