package storage

import "sync"

// workerLocks hands out one mutex per worker id and drops it once nobody holds it.
type workerLocks struct {
	mu    sync.Mutex
	locks map[int64]*workerLock
}

type workerLock struct {
	mu   sync.Mutex
	refs int
}

func newWorkerLocks() *workerLocks {
	return &workerLocks{locks: make(map[int64]*workerLock)}
}

func (w *workerLocks) Lock(id int64) func() {
	w.mu.Lock()
	l, ok := w.locks[id]
	if !ok {
		l = &workerLock{}
		w.locks[id] = l
	}
	l.refs++
	w.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		w.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(w.locks, id)
		}
		w.mu.Unlock()
	}
}
