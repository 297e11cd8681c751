package websocket

import "sync"

// roomLocks hands out one mutex per room. Entries are reference counted and
// dropped when the last holder releases.
type roomLocks struct {
	mu    sync.Mutex
	locks map[string]*roomLock
}

type roomLock struct {
	mu   sync.Mutex
	refs int
}

func newRoomLocks() *roomLocks {
	return &roomLocks{locks: make(map[string]*roomLock)}
}

// lock blocks until room is free and returns the matching unlock.
func (r *roomLocks) lock(room string) func() {
	r.mu.Lock()
	l, ok := r.locks[room]
	if !ok {
		l = &roomLock{}
		r.locks[room] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, room)
		}
		r.mu.Unlock()
	}
}

func (r *roomLocks) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}
