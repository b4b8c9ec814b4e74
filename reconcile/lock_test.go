package reconcile

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	k := newKeyedMutex()
	var active, peak int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			unlock := k.Lock(path)
			defer unlock()
			n := atomic.AddInt32(&active, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
		}([]string{"/sln/App/Foo.tt", "/SLN/app/foo.tt"}[i%2])
	}
	wg.Wait()

	assert.Equal(t, int32(1), peak, "paths differing only in case share a lock")
	assert.Zero(t, k.size(), "entries are released")
}

func TestKeyedMutex_DifferentKeysIndependent(t *testing.T) {
	k := newKeyedMutex()
	unlockA := k.Lock("/a.tt")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := k.Lock("/b.tt")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different input blocked")
	}
}
