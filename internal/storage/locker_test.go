package storage

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordLocker_SerializesOneRecord(t *testing.T) {
	l := NewRecordLocker()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("a")
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Zero(t, l.held(), "released entries are dropped")
}

func TestRecordLocker_IndependentRecords(t *testing.T) {
	l := NewRecordLocker()

	unlockA := l.Lock("a")
	done := make(chan struct{})
	go func() {
		unlock := l.Lock("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on another record must not block")
	}

	assert.Equal(t, 1, l.held())
	unlockA()
	assert.Zero(t, l.held())
}
