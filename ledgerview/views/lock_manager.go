package views

import "sync"

// OperationType defines whether an operation is read or write.
// Read operations share the registry; write operations are exclusive.
type OperationType int

const (
	// ReadOperation indicates an operation that only reads view state.
	// Multiple read operations can proceed concurrently.
	ReadOperation OperationType = iota

	// WriteOperation indicates an operation that modifies view state.
	// A write holds the registry exclusively until it returns, which makes
	// each propagation atomic with respect to every other registry access.
	WriteOperation
)

// LockManager centralizes the locking strategy of the registry so every
// access path uses the right lock type and never relocks.
type LockManager struct {
	mu *sync.RWMutex
}

// NewLockManager creates a new lock manager instance
func NewLockManager() *LockManager {
	return &LockManager{
		mu: &sync.RWMutex{},
	}
}

// Execute runs fn while holding the lock that matches opType.
// The lock is released via defer, so a panicking fn does not leave the
// registry locked.
//
// Example:
//
//	lm.Execute(ReadOperation, func() {
//	    // safe to read views here
//	})
func (lm *LockManager) Execute(opType OperationType, fn func()) {
	switch opType {
	case ReadOperation:
		lm.mu.RLock()
		defer lm.mu.RUnlock()
	case WriteOperation:
		lm.mu.Lock()
		defer lm.mu.Unlock()
	}
	fn()
}
