package views

import (
	"sync"
	"testing"
	"time"
)

func TestLockManager(t *testing.T) {
	lm := NewLockManager()

	t.Run("ConcurrentReads", func(t *testing.T) {
		var wg sync.WaitGroup
		concurrentReads := 10
		results := make(chan time.Time, concurrentReads)

		for i := 0; i < concurrentReads; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				lm.Execute(ReadOperation, func() {
					start := time.Now()
					time.Sleep(10 * time.Millisecond)
					results <- start
				})
			}()
		}

		wg.Wait()
		close(results)

		var earliest, latest time.Time
		n := 0
		for start := range results {
			if n == 0 || start.Before(earliest) {
				earliest = start
			}
			if n == 0 || start.After(latest) {
				latest = start
			}
			n++
		}
		if n != concurrentReads {
			t.Errorf("expected %d reads, got %d", concurrentReads, n)
		}
		// Serialized reads would take at least 100ms
		if latest.Sub(earliest) > 80*time.Millisecond {
			t.Errorf("reads did not overlap: window %v", latest.Sub(earliest))
		}
	})

	t.Run("ExclusiveWrites", func(t *testing.T) {
		var wg sync.WaitGroup
		var mu sync.Mutex
		active, maxActive := 0, 0

		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				lm.Execute(WriteOperation, func() {
					mu.Lock()
					active++
					if active > maxActive {
						maxActive = active
					}
					mu.Unlock()

					time.Sleep(2 * time.Millisecond)

					mu.Lock()
					active--
					mu.Unlock()
				})
			}()
		}
		wg.Wait()

		if maxActive != 1 {
			t.Errorf("expected exclusive writes, saw %d concurrent", maxActive)
		}
	})

	t.Run("PanicReleasesLock", func(t *testing.T) {
		func() {
			defer func() { _ = recover() }()
			lm.Execute(WriteOperation, func() { panic("boom") })
		}()

		done := make(chan struct{})
		go func() {
			lm.Execute(WriteOperation, func() {})
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("lock was not released after panic")
		}
	})
}
