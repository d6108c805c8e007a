package tx

import (
	"sync"
	"time"

	"cairndb/internal/dbcore/file"
)

type lockKind int

const (
	lockNone lockKind = iota
	lockShared
	lockExclusive
)

// ConcurrencyManager is one transaction's view of locking: it tracks
// which blocks this transaction holds a lock on and at what strength,
// and talks to the single shared LockTable to acquire/release them.
//
// Unlike the teacher's concurrencyManager.go, which only ever releases
// everything at once (Release, called at commit/rollback), this also
// exposes ReleaseBlock for lock-coupled ("crabbing") B-tree descents:
// a read-purpose descent takes a shared lock on the child before
// releasing the parent, rather than holding every ancestor until the
// transaction ends.
type ConcurrencyManager struct {
	mu    sync.Mutex
	locks map[file.BlockID]lockKind
	lt    *LockTable
	wait  time.Duration
}

// NewConcurrencyManager returns a concurrency manager for one transaction,
// sharing lt with every other transaction in the process.
func NewConcurrencyManager(lt *LockTable, maxWait time.Duration) *ConcurrencyManager {
	return &ConcurrencyManager{
		locks: make(map[file.BlockID]lockKind),
		lt:    lt,
		wait:  maxWait,
	}
}

// SLock acquires a shared lock on block, a no-op if this transaction
// already holds a lock (of either strength) on it.
func (cm *ConcurrencyManager) SLock(block file.BlockID) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, ok := cm.locks[block]; ok {
		return nil
	}
	if err := cm.lt.SLock(block, cm.wait); err != nil {
		return err
	}
	cm.locks[block] = lockShared
	return nil
}

// XLock acquires an exclusive lock on block, first taking a shared lock
// if this transaction holds none, then upgrading.
func (cm *ConcurrencyManager) XLock(block file.BlockID) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.locks[block] == lockExclusive {
		return nil
	}
	if _, ok := cm.locks[block]; !ok {
		if err := cm.lt.SLock(block, cm.wait); err != nil {
			return err
		}
		cm.locks[block] = lockShared
	}
	if err := cm.lt.XLock(block, cm.wait); err != nil {
		return err
	}
	cm.locks[block] = lockExclusive
	return nil
}

// ReleaseBlock drops this transaction's lock on a single block
// immediately, ahead of commit/rollback. Used mid-descent once a child
// block is safely latched and the parent can no longer be needed (the
// crabbing step of spec.md §5's read-purpose traversal).
func (cm *ConcurrencyManager) ReleaseBlock(block file.BlockID) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, ok := cm.locks[block]; !ok {
		return
	}
	cm.lt.Unlock(block)
	delete(cm.locks, block)
}

// Release drops every lock this transaction holds. Called on
// commit/rollback.
func (cm *ConcurrencyManager) Release() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for block := range cm.locks {
		cm.lt.Unlock(block)
	}
	cm.locks = make(map[file.BlockID]lockKind)
}
