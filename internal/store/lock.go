package store

import "sync"

// clientLock serializes writers of one client's keys. Entries are
// reference counted and dropped when the last holder releases.
type clientLock struct {
	mu   sync.Mutex
	refs int
}

var (
	clientLocksMu sync.Mutex
	clientLocks   = make(map[string]*clientLock)
)

func lockClient(clientID string) func() {
	clientLocksMu.Lock()
	cl, ok := clientLocks[clientID]
	if !ok {
		cl = &clientLock{}
		clientLocks[clientID] = cl
	}
	cl.refs++
	clientLocksMu.Unlock()

	cl.mu.Lock()
	return func() {
		cl.mu.Unlock()
		clientLocksMu.Lock()
		cl.refs--
		if cl.refs == 0 {
			delete(clientLocks, clientID)
		}
		clientLocksMu.Unlock()
	}
}
