package scheduler

import "sync"

// resourceLocks hands out one mutex per logical resource identifier.
// Mutating calls against the same resource are serialized in-process so that
// capacity checks stay correct on backends without serializable isolation.
// Cross-resource operations stay independent.
type resourceLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

var locks = &resourceLocks{locks: make(map[string]*sync.Mutex)}

func lockFor(resource string) *sync.Mutex {
	locks.mu.Lock()
	defer locks.mu.Unlock()

	l, ok := locks.locks[resource]
	if !ok {
		l = &sync.Mutex{}
		locks.locks[resource] = l
	}
	return l
}
