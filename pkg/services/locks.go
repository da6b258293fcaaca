package services

import "sync"

// workflowLocks serializes mutating commands per workflow ID. The workflow
// and its checklist, certificate and retention records form one consistency
// unit with a single writer; there is no cross-workflow ordering requirement.
// Entries are reference counted and removed once the last holder unlocks, so
// the map only holds workflows with commands in flight.
type workflowLocks struct {
	mu    sync.Mutex
	locks map[string]*workflowLock
}

type workflowLock struct {
	mu   sync.Mutex
	refs int
}

func newWorkflowLocks() *workflowLocks {
	return &workflowLocks{locks: make(map[string]*workflowLock)}
}

// Lock acquires the exclusive critical section for one workflow and returns
// the unlock function.
func (l *workflowLocks) Lock(workflowID string) func() {
	l.mu.Lock()

	lock, ok := l.locks[workflowID]
	if !ok {
		lock = &workflowLock{}
		l.locks[workflowID] = lock
	}

	lock.refs++

	l.mu.Unlock()

	lock.mu.Lock()

	return func() {
		lock.mu.Unlock()

		l.mu.Lock()

		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, workflowID)
		}

		l.mu.Unlock()
	}
}
