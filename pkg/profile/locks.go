package profile

import (
	"context"
	"sync"
)

// userLocks serializes profile read-merge-write cycles per username.
// Entries are dropped once no caller holds or waits on them.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	sem  chan struct{}
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*userLock)}
}

// acquire blocks until username's lock is held or ctx is done.
func (l *userLocks) acquire(ctx context.Context, username string) (release func(), err error) {
	l.mu.Lock()
	entry, ok := l.locks[username]
	if !ok {
		entry = &userLock{sem: make(chan struct{}, 1)}
		l.locks[username] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
		return func() {
			<-entry.sem
			l.put(username, entry)
		}, nil
	case <-ctx.Done():
		l.put(username, entry)
		return nil, ctx.Err()
	}
}

func (l *userLocks) put(username string, entry *userLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, username)
	}
}
