package storage

import "sync"

// RecordLocker serializes read-modify-write cycles on one record.
// Services of a replica that write records share one RecordLocker.
type RecordLocker struct {
	locks map[string]*recordLock
	mu    sync.Mutex
}

type recordLock struct {
	mu   sync.Mutex
	refs int
}

// NewRecordLocker creates an empty locker
func NewRecordLocker() *RecordLocker {
	return &RecordLocker{locks: make(map[string]*recordLock)}
}

// Lock blocks until the record is free and returns the function releasing it.
// Entries are dropped once no caller holds or waits for them.
func (l *RecordLocker) Lock(syncID string) (unlock func()) {
	l.mu.Lock()
	lock, ok := l.locks[syncID]
	if !ok {
		lock = &recordLock{}
		l.locks[syncID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()

	return func() {
		lock.mu.Unlock()

		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, syncID)
		}
		l.mu.Unlock()
	}
}

// held returns the number of records with a holder or waiter
func (l *RecordLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
