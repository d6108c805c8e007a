package buffer

import (
	"fmt"

	"cairndb/internal/dbcore/config"
	"cairndb/internal/dbcore/errors"
	"cairndb/internal/dbcore/file"
)

// pinEntry tracks how many times this transaction has pinned a given
// block. The teacher's bufferList.go instead stores one slice entry per
// pin, which makes "how many times did I pin this" an O(n) scan; a
// refcount is the same information kept honestly.
type pinEntry struct {
	frame *Frame
	refs  int
}

// TxManager is the transactional buffer manager (C3): a per-transaction
// façade over the shared Pool that tracks this transaction's own pins,
// collapses repeat pins of the same block into a single pool-level pin
// plus a refcount, and recovers from pool exhaustion via the re-pin
// protocol in spec.md §4.2.1 rather than cycle detection.
type TxManager struct {
	pool   *Pool
	cfg    config.BufferMgrConfig
	txnum  int64
	pinned map[file.BlockID]*pinEntry
}

// NewTxManager returns a buffer manager scoped to transaction txnum.
func NewTxManager(pool *Pool, cfg config.BufferMgrConfig, txnum int64) *TxManager {
	return &TxManager{
		pool:   pool,
		cfg:    cfg,
		txnum:  txnum,
		pinned: make(map[file.BlockID]*pinEntry),
	}
}

// Pin returns the page for block, pinning it on behalf of this
// transaction. Repeat pins of the same block by the same transaction are
// free at the pool level: only the first pin touches Pool.
func (tm *TxManager) Pin(block file.BlockID) (*file.Page, error) {
	if e, ok := tm.pinned[block]; ok {
		e.refs++
		return e.frame.Contents(), nil
	}

	// spec §4.2/§5 hard-failure guard: this transaction already owns every
	// frame the pool has, and block is a new distinct one. recoverThenPin
	// could never satisfy this — releasing this tx's own pins frees exactly
	// pool.Size() frames, one of which the new block would consume, leaving
	// only pool.Size()-1 to reacquire pool.Size() released blocks — so fail
	// fast here instead of releasing, waiting, and timing out in
	// reacquireAll.
	if len(tm.pinned) == tm.pool.Size() {
		return nil, errors.NewBufferAbortError(fmt.Sprintf("tx %d: already holds all %d pool frames, cannot pin another distinct block", tm.txnum, tm.pool.Size()))
	}

	frame, err := tm.pool.TryPin(block)
	if err != nil {
		return nil, err
	}
	if frame == nil {
		frame, err = tm.recoverThenPin(block)
		if err != nil {
			return nil, err
		}
	}

	tm.pinned[block] = &pinEntry{frame: frame, refs: 1}
	return frame.Contents(), nil
}

// PinNew appends a fresh block to filename, formats it via fmtr, and pins
// it on this transaction's behalf.
func (tm *TxManager) PinNew(filename string, fmtr PageFormatter) (*file.Page, file.BlockID, error) {
	// PinNew always targets a freshly appended block, so it is always a
	// new distinct block from this transaction's point of view — the same
	// hard-failure guard as Pin applies unconditionally here.
	if len(tm.pinned) == tm.pool.Size() {
		return nil, file.BlockID{}, errors.NewBufferAbortError(fmt.Sprintf("tx %d: already holds all %d pool frames, cannot pin another distinct block", tm.txnum, tm.pool.Size()))
	}

	frame, err := tm.pool.TryPinNew(filename, fmtr)
	if err != nil {
		return nil, file.BlockID{}, err
	}
	if frame == nil {
		frame, err = tm.recoverThenPinNew(filename, fmtr)
		if err != nil {
			return nil, file.BlockID{}, err
		}
	}

	block := frame.Block()
	tm.pinned[block] = &pinEntry{frame: frame, refs: 1}
	return frame.Contents(), block, nil
}

// Unpin releases one reference to block. The pool only sees an unpin once
// this transaction's refcount for the block reaches zero.
func (tm *TxManager) Unpin(block file.BlockID) {
	e, ok := tm.pinned[block]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(tm.pinned, block)
		tm.pool.Unpin(e.frame)
	}
}

// UnpinAll releases every block this transaction currently holds,
// regardless of refcount. Called on commit/rollback (spec.md §4.3).
func (tm *TxManager) UnpinAll() {
	for block, e := range tm.pinned {
		tm.pool.Unpin(e.frame)
		delete(tm.pinned, block)
	}
}

// SetModified stamps the frame backing block as dirty under this
// transaction, covered by the log record at lsn (or no log record if
// lsn is negative).
func (tm *TxManager) SetModified(block file.BlockID, lsn int64) {
	if e, ok := tm.pinned[block]; ok {
		e.frame.SetModified(tm.txnum, lsn)
	}
}

// FlushAll forces every frame this transaction has dirtied back to disk.
func (tm *TxManager) FlushAll() error {
	return tm.pool.FlushAll(tm.txnum)
}

// Available reports the pool's current unpinned-frame count, exposed so
// callers (and tests) can drive it toward exhaustion deliberately.
func (tm *TxManager) Available() int {
	return tm.pool.Available()
}

// recoverThenPin implements the re-pin recovery protocol: release every
// block this transaction currently holds, wait (FIFO, bounded by
// cfg.MaxTime) for the requested block, then re-acquire everything this
// transaction released. Releasing first — rather than blocking while
// still holding pins — is what avoids the classic hold-and-wait deadlock
// without needing a cycle detector (spec.md's Open Question on this
// tradeoff is resolved in favor of simplicity: a transaction that loses
// the race pays for it with an abort, never a hang).
func (tm *TxManager) recoverThenPin(block file.BlockID) (*Frame, error) {
	held := tm.releaseAll()

	frame, err := tm.pool.PinWait(block, tm.cfg.MaxTime)
	if err != nil {
		return nil, err
	}
	if frame == nil {
		return nil, errors.NewBufferAbortError(fmt.Sprintf("tx %d: timed out waiting for a free buffer frame", tm.txnum))
	}

	if err := tm.reacquireAll(held); err != nil {
		tm.pool.Unpin(frame)
		return nil, err
	}
	return frame, nil
}

func (tm *TxManager) recoverThenPinNew(filename string, fmtr PageFormatter) (*Frame, error) {
	held := tm.releaseAll()

	frame, err := tm.pool.PinNewWait(filename, fmtr, tm.cfg.MaxTime)
	if err != nil {
		return nil, err
	}
	if frame == nil {
		return nil, errors.NewBufferAbortError(fmt.Sprintf("tx %d: timed out waiting for a free buffer frame", tm.txnum))
	}

	if err := tm.reacquireAll(held); err != nil {
		tm.pool.Unpin(frame)
		return nil, err
	}
	return frame, nil
}

// releaseAll unpins every block this transaction holds at the pool level
// and returns the released set so it can be restored afterward.
func (tm *TxManager) releaseAll() map[file.BlockID]int {
	held := make(map[file.BlockID]int, len(tm.pinned))
	for block, e := range tm.pinned {
		held[block] = e.refs
		tm.pool.Unpin(e.frame)
	}
	tm.pinned = make(map[file.BlockID]*pinEntry)
	return held
}

// reacquireAll re-pins every block in held, restoring each one's refcount.
// If any re-acquisition itself times out, the transaction aborts: partial
// recovery is not a state worth returning to the caller.
func (tm *TxManager) reacquireAll(held map[file.BlockID]int) error {
	for block, refs := range held {
		frame, err := tm.pool.PinWait(block, tm.cfg.MaxTime)
		if err != nil {
			return err
		}
		if frame == nil {
			return errors.NewBufferAbortError(fmt.Sprintf("tx %d: timed out re-acquiring a released buffer frame", tm.txnum))
		}
		tm.pinned[block] = &pinEntry{frame: frame, refs: refs}
	}
	return nil
}
