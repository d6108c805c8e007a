// Package btree implements the secondary B-tree index (C4–C7): a page
// abstraction shared by leaf and directory blocks, a leaf cursor with
// overflow-chain and sibling-chain support, a directory with crabbing
// descent, and the top-level index that ties them together with logical
// logging.
package btree

import (
	"cairndb/internal/dbcore/file"
	"cairndb/internal/dbcore/record"
	"cairndb/internal/dbcore/tx"
	"cairndb/internal/dbcore/types"
)

// Header layout: two reserved int64 flags (spec.md §3 — their meaning is
// leaf/directory-specific, see leaf.go and dir.go) followed by a 4-byte
// record count. This replaces the teacher's single 4-byte flag, which has
// no room for both an overflow pointer and a sibling pointer at once.
const (
	flag0Offset  = 0
	flag1Offset  = 8
	numRecOffset = 16
	headerSize   = numRecOffset + 4
)

// Page is the slotted-record layout shared by BTree leaf and directory
// blocks: sorted, fixed-size records packed from the start of the block,
// a record count, and two header flags whose meaning the caller
// interprets. Grounded on the teacher's btPage.go, generalized to int64
// flags/block numbers and a pluggable Schema/Layout instead of a single
// hardcoded one.
type Page struct {
	tx     *tx.Transaction
	block  file.BlockID
	layout *record.Layout
}

// NewPage pins block with a shared lock and wraps it as a Page.
func NewPage(t *tx.Transaction, block file.BlockID, layout *record.Layout) (*Page, error) {
	if _, err := t.Pin(block); err != nil {
		return nil, err
	}
	return &Page{tx: t, block: block, layout: layout}, nil
}

// NewPageExclusive pins block with an exclusive lock up front, for a
// pessimistic (INSERT-purpose) directory descent that must hold every
// ancestor until it knows whether a split will propagate that far.
func NewPageExclusive(t *tx.Transaction, block file.BlockID, layout *record.Layout) (*Page, error) {
	if _, err := t.PinExclusive(block); err != nil {
		return nil, err
	}
	return &Page{tx: t, block: block, layout: layout}, nil
}

// Formatter formats a freshly appended block as an empty BTree page with
// the given flags.
type Formatter struct {
	Layout    *record.Layout
	Flag0     int64
	Flag1     int64
	BlockSize int
}

func (f Formatter) Format(p *file.Page) {
	p.SetInt64(flag0Offset, f.Flag0)
	p.SetInt64(flag1Offset, f.Flag1)
	p.SetInt(numRecOffset, 0)

	slotSize := f.Layout.SlotSize()
	for pos := headerSize; pos+slotSize <= f.BlockSize; pos += slotSize {
		formatDefaultRecord(p, pos, f.Layout)
	}
}

func formatDefaultRecord(p *file.Page, pos int, layout *record.Layout) {
	for _, fieldName := range layout.Schema().Fields() {
		offset := layout.Offset(fieldName)
		if layout.Schema().Type(fieldName) == types.Integer {
			p.SetInt64(pos+offset, 0)
		} else {
			p.SetString(pos+offset, "")
		}
	}
}

// Close unpins the underlying block. The Page must not be used
// afterward.
func (p *Page) Close() {
	p.tx.Unpin(p.block)
}

func (p *Page) Block() file.BlockID {
	return p.block
}

func (p *Page) Flag0() int64 {
	v, _ := p.tx.GetInt64(p.block, flag0Offset)
	return v
}

func (p *Page) SetFlag0(v int64) {
	_ = p.tx.SetInt64(p.block, flag0Offset, v, -1)
}

func (p *Page) Flag1() int64 {
	v, _ := p.tx.GetInt64(p.block, flag1Offset)
	return v
}

func (p *Page) SetFlag1(v int64) {
	_ = p.tx.SetInt64(p.block, flag1Offset, v, -1)
}

func (p *Page) NumRecs() int {
	v, _ := p.tx.GetInt(p.block, numRecOffset)
	return int(v)
}

func (p *Page) setNumRecs(n int) {
	_ = p.tx.SetInt(p.block, numRecOffset, int32(n), -1)
}

// IsFull reports whether one more record would reach or pass the end of
// the block.
func (p *Page) IsFull() bool {
	return p.slotPos(p.NumRecs()+1) >= p.tx.BlockSize()
}

// FindSlotBefore returns the slot index of the last record whose data
// value is strictly less than searchKey — i.e. one before where
// searchKey would be inserted or found.
func (p *Page) FindSlotBefore(searchKey types.Constant) int {
	slot := 0
	for slot < p.NumRecs() && p.DataVal(slot).CompareTo(searchKey) < 0 {
		slot++
	}
	return slot - 1
}

// DataVal returns the "dataval" field of the record at slot: the search
// key in both leaf and directory pages.
func (p *Page) DataVal(slot int) types.Constant {
	return p.getVal(slot, "dataval")
}

// ChildNum returns the "block" field of a directory record at slot: the
// child block number.
func (p *Page) ChildNum(slot int) int64 {
	return p.getInt64(slot, "block")
}

// DataRID returns the RID stored in a leaf record at slot. The record's
// "datafile" field names the data table the RID points into, which in
// general is not this leaf index's own file.
func (p *Page) DataRID(slot int) types.RID {
	block := file.NewBlockID(p.getString(slot, "datafile"), p.getInt64(slot, "block"))
	return types.NewRID(block, p.getInt64(slot, "id"))
}

// InsertDir inserts a directory entry (key, child block number) at slot.
func (p *Page) InsertDir(slot int, val types.Constant, childBlock int64) {
	p.insertSlot(slot)
	p.setVal(slot, "dataval", val)
	p.setInt64(slot, "block", childBlock)
}

// InsertLeaf inserts a leaf entry (key, RID) at slot, including the data
// file name the RID's block belongs to — a leaf index file is never the
// same file as the data it indexes, so the file name must be stored
// alongside the block number and slot, not assumed from the leaf's own
// block.
func (p *Page) InsertLeaf(slot int, val types.Constant, rid types.RID) {
	p.insertSlot(slot)
	p.setVal(slot, "dataval", val)
	p.setString(slot, "datafile", rid.Block().FileName())
	p.setInt64(slot, "block", rid.BlockNumber())
	p.setInt64(slot, "id", rid.Slot())
}

// Delete removes the record at slot, shifting later records down.
func (p *Page) Delete(slot int) {
	for i := slot + 1; i < p.NumRecs(); i++ {
		p.copyRecord(i, i-1)
	}
	p.setNumRecs(p.NumRecs() - 1)
}

// Split moves every record from splitPos onward into a freshly appended
// sibling block (formatted with flag0/flag1), and returns that block.
func (p *Page) Split(splitPos int, flag0, flag1 int64) (file.BlockID, error) {
	newBlock, err := p.appendNew(flag0, flag1)
	if err != nil {
		return file.BlockID{}, err
	}
	newPage, err := NewPage(p.tx, newBlock, p.layout)
	if err != nil {
		return file.BlockID{}, err
	}
	p.transferRecs(splitPos, newPage)
	newPage.SetFlag0(flag0)
	newPage.SetFlag1(flag1)
	newPage.Close()
	return newBlock, nil
}

// appendNew appends and formats a new block, then immediately unpins it:
// PinNew's own pin is only needed to write the formatted bytes, and the
// caller (Split) re-pins the block itself via NewPage.
func (p *Page) appendNew(flag0, flag1 int64) (file.BlockID, error) {
	_, block, err := p.tx.PinNew(p.block.FileName(), Formatter{
		Layout:    p.layout,
		Flag0:     flag0,
		Flag1:     flag1,
		BlockSize: p.tx.BlockSize(),
	})
	if err != nil {
		return file.BlockID{}, err
	}
	p.tx.Unpin(block)
	return block, nil
}

func (p *Page) insertSlot(slot int) {
	for i := p.NumRecs(); i > slot; i-- {
		p.copyRecord(i-1, i)
	}
	p.setNumRecs(p.NumRecs() + 1)
}

func (p *Page) copyRecord(from, to int) {
	for _, fieldName := range p.layout.Schema().Fields() {
		p.setVal(to, fieldName, p.getVal(from, fieldName))
	}
}

func (p *Page) transferRecs(slot int, dest *Page) {
	destSlot := 0
	for slot < p.NumRecs() {
		dest.insertSlot(destSlot)
		for _, fieldName := range p.layout.Schema().Fields() {
			dest.setVal(destSlot, fieldName, p.getVal(slot, fieldName))
		}
		p.Delete(slot)
		destSlot++
	}
}

func (p *Page) getInt64(slot int, fieldName string) int64 {
	v, _ := p.tx.GetInt64(p.block, p.fldPos(slot, fieldName))
	return v
}

func (p *Page) setInt64(slot int, fieldName string, v int64) {
	_ = p.tx.SetInt64(p.block, p.fldPos(slot, fieldName), v, -1)
}

func (p *Page) getString(slot int, fieldName string) string {
	v, _ := p.tx.GetString(p.block, p.fldPos(slot, fieldName))
	return v
}

func (p *Page) setString(slot int, fieldName, v string) {
	_ = p.tx.SetString(p.block, p.fldPos(slot, fieldName), v, -1)
}

func (p *Page) getVal(slot int, fieldName string) types.Constant {
	if p.layout.Schema().Type(fieldName) == types.Integer {
		return types.NewConstantInt(p.getInt64(slot, fieldName))
	}
	return types.NewConstantString(p.getString(slot, fieldName))
}

func (p *Page) setVal(slot int, fieldName string, val types.Constant) {
	if p.layout.Schema().Type(fieldName) == types.Integer {
		p.setInt64(slot, fieldName, val.AsInt())
	} else {
		p.setString(slot, fieldName, val.AsString())
	}
}

func (p *Page) fldPos(slot int, fieldName string) int {
	return p.slotPos(slot) + p.layout.Offset(fieldName)
}

func (p *Page) slotPos(slot int) int {
	return headerSize + slot*p.layout.SlotSize()
}
