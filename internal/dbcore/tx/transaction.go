package tx

import (
	"log"
	"sync/atomic"
	"time"

	"cairndb/internal/dbcore/buffer"
	"cairndb/internal/dbcore/config"
	"cairndb/internal/dbcore/errors"
	"cairndb/internal/dbcore/file"
	dblog "cairndb/internal/dbcore/log"
)

var nextTxNum atomic.Int64

// EndOfFile is the dummy block number Size and PinNew lock against, so that
// concurrent file-extension operations serialize the same way concurrent
// page writes do.
const EndOfFile int64 = -1

// Observer is notified when a transaction commits or rolls back. The
// B-tree index uses this to close the leaf page its cursor still has
// pinned when the transaction ends, whether by commit or rollback (locks
// themselves are released by the concurrency manager): rather than every
// collaborator reaching into Transaction's internals, it registers itself
// and gets a callback.
type Observer interface {
	OnCommit(tx *Transaction)
	OnRollback(tx *Transaction)
}

// Transaction is one unit of work: it owns a buffer manager, a
// concurrency manager, and a recovery manager scoped to its own
// transaction number, and coordinates them the way the teacher's
// transaction.go does, generalized to int64 txnums/offsets and to
// read-only enforcement (spec.md §6: a read-only transaction may open a
// cursor but may never call insert/delete).
type Transaction struct {
	fm       *file.FileManager
	bm       *buffer.TxManager
	cm       *ConcurrencyManager
	rm       *RecoveryManager
	txnum    int64
	readOnly bool
	maxWait  time.Duration

	observers []Observer
}

// NewTransaction starts a fresh read/write transaction.
func NewTransaction(fm *file.FileManager, lm *dblog.LogManager, pool *buffer.Pool, lt *LockTable, cfg config.BufferMgrConfig) *Transaction {
	return newTransaction(fm, lm, pool, lt, cfg, false)
}

// NewReadOnlyTransaction starts a transaction that rejects any write
// operation with ErrUnsupportedOperation.
func NewReadOnlyTransaction(fm *file.FileManager, lm *dblog.LogManager, pool *buffer.Pool, lt *LockTable, cfg config.BufferMgrConfig) *Transaction {
	return newTransaction(fm, lm, pool, lt, cfg, true)
}

func newTransaction(fm *file.FileManager, lm *dblog.LogManager, pool *buffer.Pool, lt *LockTable, cfg config.BufferMgrConfig, readOnly bool) *Transaction {
	txnum := nextTxNum.Add(1)
	return &Transaction{
		fm:       fm,
		bm:       buffer.NewTxManager(pool, cfg, txnum),
		cm:       NewConcurrencyManager(lt, cfg.MaxTime),
		rm:       NewRecoveryManager(lm, txnum),
		txnum:    txnum,
		readOnly: readOnly,
		maxWait:  cfg.MaxTime,
	}
}

// TxNum returns this transaction's number.
func (tx *Transaction) TxNum() int64 {
	return tx.txnum
}

// ReadOnly reports whether this transaction rejects writes.
func (tx *Transaction) ReadOnly() bool {
	return tx.readOnly
}

// Recovery exposes the recovery manager so index code can bracket a
// logical operation with LogicalStart/IndexInsertEnd/IndexDeleteEnd.
func (tx *Transaction) Recovery() *RecoveryManager {
	return tx.rm
}

// AddObserver registers o to be notified on Commit/Rollback.
func (tx *Transaction) AddObserver(o Observer) {
	tx.observers = append(tx.observers, o)
}

// Commit flushes this transaction's dirty pages, releases its locks, and
// unpins its buffers.
func (tx *Transaction) Commit() error {
	for _, o := range tx.observers {
		o.OnCommit(tx)
	}
	if err := tx.bm.FlushAll(); err != nil {
		return err
	}
	tx.cm.Release()
	tx.bm.UnpinAll()
	log.Printf("transaction %d committed", tx.txnum)
	return nil
}

// Rollback releases this transaction's locks and unpins its buffers.
// Undo of already-written pages is out of scope (spec.md's Non-goals);
// this only unwinds the transaction's own bookkeeping.
func (tx *Transaction) Rollback() error {
	for _, o := range tx.observers {
		o.OnRollback(tx)
	}
	tx.cm.Release()
	tx.bm.UnpinAll()
	log.Printf("transaction %d rolled back", tx.txnum)
	return nil
}

// Pin pins block on this transaction's behalf, taking a shared lock
// first (a reader is always entitled to pin).
func (tx *Transaction) Pin(block file.BlockID) (*file.Page, error) {
	if err := tx.cm.SLock(block); err != nil {
		return nil, err
	}
	return tx.bm.Pin(block)
}

// PinExclusive pins block after taking an exclusive lock, for callers
// about to modify the page.
func (tx *Transaction) PinExclusive(block file.BlockID) (*file.Page, error) {
	if err := tx.cm.XLock(block); err != nil {
		return nil, err
	}
	return tx.bm.Pin(block)
}

// PinNew appends and pins a freshly formatted block, under an exclusive
// lock on the end-of-file marker (so concurrent appends to the same file
// serialize).
func (tx *Transaction) PinNew(filename string, fmtr buffer.PageFormatter) (*file.Page, file.BlockID, error) {
	if tx.readOnly {
		return nil, file.BlockID{}, errors.ErrUnsupportedOperation
	}
	eof := file.NewBlockID(filename, EndOfFile)
	if err := tx.cm.XLock(eof); err != nil {
		return nil, file.BlockID{}, err
	}
	return tx.bm.PinNew(filename, fmtr)
}

// Unpin releases this transaction's pin on block.
func (tx *Transaction) Unpin(block file.BlockID) {
	tx.bm.Unpin(block)
}

// GetInt reads the 4-byte integer at offset in block, under a shared
// lock.
func (tx *Transaction) GetInt(block file.BlockID, offset int) (int32, error) {
	if err := tx.cm.SLock(block); err != nil {
		return 0, err
	}
	page, err := tx.bm.Pin(block)
	if err != nil {
		return 0, err
	}
	defer tx.bm.Unpin(block)
	return page.GetInt(offset), nil
}

// SetInt writes val to the 4-byte integer at offset in block, under an
// exclusive lock, and marks the block dirty.
func (tx *Transaction) SetInt(block file.BlockID, offset int, val int32, lsn int64) error {
	if tx.readOnly {
		return errors.ErrUnsupportedOperation
	}
	if err := tx.cm.XLock(block); err != nil {
		return err
	}
	page, err := tx.bm.Pin(block)
	if err != nil {
		return err
	}
	defer tx.bm.Unpin(block)
	page.SetInt(offset, val)
	tx.bm.SetModified(block, lsn)
	return nil
}

// GetInt64 reads the 8-byte integer at offset in block, under a shared
// lock.
func (tx *Transaction) GetInt64(block file.BlockID, offset int) (int64, error) {
	if err := tx.cm.SLock(block); err != nil {
		return 0, err
	}
	page, err := tx.bm.Pin(block)
	if err != nil {
		return 0, err
	}
	defer tx.bm.Unpin(block)
	return page.GetInt64(offset), nil
}

// SetInt64 writes val to the 8-byte integer at offset in block, under an
// exclusive lock, and marks the block dirty. lsn is the log record
// covering the write, or -1 if the caller is not logging this write
// (physical per-field undo logging is out of scope; see tx/recovery.go).
func (tx *Transaction) SetInt64(block file.BlockID, offset int, val, lsn int64) error {
	if tx.readOnly {
		return errors.ErrUnsupportedOperation
	}
	if err := tx.cm.XLock(block); err != nil {
		return err
	}
	page, err := tx.bm.Pin(block)
	if err != nil {
		return err
	}
	defer tx.bm.Unpin(block)
	page.SetInt64(offset, val)
	tx.bm.SetModified(block, lsn)
	return nil
}

// GetString reads the length-prefixed string at offset in block, under a
// shared lock.
func (tx *Transaction) GetString(block file.BlockID, offset int) (string, error) {
	if err := tx.cm.SLock(block); err != nil {
		return "", err
	}
	page, err := tx.bm.Pin(block)
	if err != nil {
		return "", err
	}
	defer tx.bm.Unpin(block)
	return page.GetString(offset), nil
}

// SetString writes val to the length-prefixed string at offset in block,
// under an exclusive lock, and marks the block dirty.
func (tx *Transaction) SetString(block file.BlockID, offset int, val string, lsn int64) error {
	if tx.readOnly {
		return errors.ErrUnsupportedOperation
	}
	if err := tx.cm.XLock(block); err != nil {
		return err
	}
	page, err := tx.bm.Pin(block)
	if err != nil {
		return err
	}
	defer tx.bm.Unpin(block)
	page.SetString(offset, val)
	tx.bm.SetModified(block, lsn)
	return nil
}

// ReleaseBlock drops this transaction's lock on block immediately
// (the crabbing "release the parent" step), without unpinning it — the
// caller is expected to Unpin separately once it is done reading the
// page's bytes.
func (tx *Transaction) ReleaseBlock(block file.BlockID) {
	tx.cm.ReleaseBlock(block)
}

// SetModified marks block as dirtied by this transaction under lsn (or
// -1 if the write was not logged), mirroring the teacher's
// buff.SetModified call after every SetInt/SetString.
func (tx *Transaction) SetModified(block file.BlockID, lsn int64) {
	tx.bm.SetModified(block, lsn)
}

// Size returns filename's length in blocks, under a shared lock on the
// end-of-file marker.
func (tx *Transaction) Size(filename string) (int64, error) {
	eof := file.NewBlockID(filename, EndOfFile)
	if err := tx.cm.SLock(eof); err != nil {
		return 0, err
	}
	return tx.fm.Length(filename)
}

// BlockSize returns the file manager's fixed block size.
func (tx *Transaction) BlockSize() int {
	return tx.fm.BlockSize()
}

// AvailableBuffers reports the buffer pool's current unpinned-frame
// count.
func (tx *Transaction) AvailableBuffers() int {
	return tx.bm.Available()
}

// MaxWait is the lock/pin wait budget configured for this transaction,
// exposed so collaborators (e.g. the B-tree cursor deciding whether to
// retry a crabbing step) can reason about it.
func (tx *Transaction) MaxWait() time.Duration {
	return tx.maxWait
}
