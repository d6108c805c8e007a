// Package buffer implements the pinned-page buffer pool (C2) and the
// per-transaction transactional buffer manager (C3) described in spec.md
// §4.1–§4.3.
package buffer

import (
	"cairndb/internal/dbcore/file"
	"cairndb/internal/dbcore/log"
)

// Frame is a single buffer frame (C1): one block's worth of bytes plus the
// bookkeeping needed to decide when it may be evicted and flushed.
type Frame struct {
	fm       *file.FileManager
	lm       *log.LogManager
	contents *file.Page
	block    file.BlockID
	bound    bool
	pins     int
	txnum    int64 // -1 indicates not modified by any transaction
	lsn      int64 // -1 indicates no corresponding log record
}

func newFrame(fm *file.FileManager, lm *log.LogManager) *Frame {
	return &Frame{
		fm:       fm,
		lm:       lm,
		contents: file.NewPage(fm.BlockSize()),
		txnum:    -1,
		lsn:      -1,
	}
}

// Contents returns the frame's in-memory page.
func (f *Frame) Contents() *file.Page {
	return f.contents
}

// Block returns the block currently bound to this frame. Callers must
// check Bound first; an unbound frame's BlockID is the zero value.
func (f *Frame) Block() file.BlockID {
	return f.block
}

// Bound reports whether this frame currently holds a block.
func (f *Frame) Bound() bool {
	return f.bound
}

// SetModified records that txnum last wrote this frame, with lsn as the
// log record covering the write (or -1 if the write was not logged).
func (f *Frame) SetModified(txnum, lsn int64) {
	f.txnum = txnum
	if lsn >= 0 {
		f.lsn = lsn
	}
}

func (f *Frame) IsPinned() bool {
	return f.pins > 0
}

func (f *Frame) ModifyingTx() int64 {
	return f.txnum
}

// assignToBlock flushes any dirty contents, then loads block into the
// frame. Invariant (spec.md §3): eviction/reassignment requires pins == 0.
func (f *Frame) assignToBlock(block file.BlockID) error {
	if err := f.flush(); err != nil {
		return err
	}
	f.block = block
	f.bound = true
	if err := f.fm.Read(block, f.contents); err != nil {
		return err
	}
	f.pins = 0
	return nil
}

// assignNew formats a freshly appended block via fmtr and binds it to this
// frame (pin_new, spec.md §4.1).
func (f *Frame) assignNew(filename string, fmtr PageFormatter) error {
	if err := f.flush(); err != nil {
		return err
	}
	block, err := f.fm.Append(filename)
	if err != nil {
		return err
	}
	f.contents = file.NewPage(f.fm.BlockSize())
	fmtr.Format(f.contents)
	f.block = block
	f.bound = true
	f.pins = 0
	if err := f.fm.Write(block, f.contents); err != nil {
		return err
	}
	return nil
}

// flush writes the frame back if dirty. Per the WAL rule (spec.md §4.1),
// the covering log record must be durable before the page bytes are
// written.
func (f *Frame) flush() error {
	if f.txnum < 0 {
		return nil
	}
	if err := f.lm.Flush(f.lsn); err != nil {
		return err
	}
	if err := f.fm.Write(f.block, f.contents); err != nil {
		return err
	}
	f.txnum = -1
	return nil
}

func (f *Frame) pin() {
	f.pins++
}

func (f *Frame) unpin() {
	if f.pins > 0 {
		f.pins--
	}
}

// PageFormatter initializes a freshly appended block's bytes. B-tree pages
// implement this to format a new leaf/directory block (spec.md §4.1
// pin_new).
type PageFormatter interface {
	Format(p *file.Page)
}
