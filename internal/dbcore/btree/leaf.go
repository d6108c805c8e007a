package btree

import (
	"cairndb/internal/dbcore/file"
	"cairndb/internal/dbcore/record"
	"cairndb/internal/dbcore/tx"
	"cairndb/internal/dbcore/types"
)

// Leaf is a B-tree leaf block cursor (C5). It is grounded on the
// teacher's btLeaf.go, which only ever searches for a single key.
// Leaf instead carries a types.ConstantRange: a point lookup is just
// the range [key, key], so Insert/Delete (always single-key operations)
// construct one via types.NewConstantPoint, while BeforeFirst/Next
// (cursor range scans) can carry a genuinely open-ended range.
//
// Leaf uses the two BTree page header flags this way:
//   - flag0: the overflow chain, a linked list of extra blocks holding
//     nothing but more duplicates of this block's first key, identical
//     to the teacher's single-flag overflow design.
//   - flag1: the forward sibling pointer to the next leaf block in key
//     order, set whenever a split leaves behind a block whose next
//     neighbor is no longer implicit (the teacher has no equivalent: its
//     cursor never needs to continue past one page because it only ever
//     looks for one key).
type Leaf struct {
	tx          *tx.Transaction
	layout      *record.Layout
	searchRange types.ConstantRange
	contents    *Page
	currentSlot int
	filename    string
}

// NewLeaf opens block as a leaf page and positions the cursor just
// before the first record that could match searchRange.
func NewLeaf(t *tx.Transaction, block file.BlockID, layout *record.Layout, searchRange types.ConstantRange) (*Leaf, error) {
	contents, err := NewPage(t, block, layout)
	if err != nil {
		return nil, err
	}

	l := &Leaf{
		tx:          t,
		layout:      layout,
		searchRange: searchRange,
		contents:    contents,
		filename:    block.FileName(),
	}

	start := types.MinValue(layout.Schema().Type("dataval"))
	if searchRange.HasLo() {
		start = searchRange.Lo()
	}
	l.currentSlot = contents.FindSlotBefore(start)
	return l, nil
}

// Close releases the leaf's current page.
func (l *Leaf) Close() {
	l.contents.Close()
}

// Next advances to the next record matching the leaf's search range,
// crossing overflow and sibling blocks as needed. It returns false once
// no further record in the range exists.
func (l *Leaf) Next() (bool, error) {
	for {
		l.currentSlot++
		if l.currentSlot < l.contents.NumRecs() {
			val := l.contents.DataVal(l.currentSlot)
			if l.searchRange.HasHi() && val.CompareTo(l.searchRange.Hi()) > 0 {
				// Overflow records share this page's first key, which
				// may still be in range even though later keys are not.
				if l.contents.Flag0() >= 0 && l.searchRange.Contains(l.contents.DataVal(0)) {
					if _, err := l.moveTo(l.contents.Flag0()); err != nil {
						return false, err
					}
					continue
				}
				return false, nil
			}
			if l.searchRange.Contains(val) {
				return true, nil
			}
			continue
		}

		advanced, err := l.advancePage()
		if err != nil {
			return false, err
		}
		if !advanced {
			return false, nil
		}
	}
}

// advancePage moves the cursor to the next block in the chain: the
// overflow block if this page has an overflow chain and its first key is
// within range, otherwise the sibling block, if either exists.
func (l *Leaf) advancePage() (bool, error) {
	if l.contents.NumRecs() > 0 && l.contents.Flag0() >= 0 {
		firstKey := l.contents.DataVal(0)
		if l.searchRange.Contains(firstKey) {
			return l.moveTo(l.contents.Flag0())
		}
	}
	if l.contents.Flag1() >= 0 {
		return l.moveTo(l.contents.Flag1())
	}
	return false, nil
}

func (l *Leaf) moveTo(blockNum int64) (bool, error) {
	next := file.NewBlockID(l.filename, blockNum)
	l.contents.Close()

	page, err := NewPage(l.tx, next, l.layout)
	if err != nil {
		return false, err
	}
	l.contents = page
	l.currentSlot = -1
	return true, nil
}

// DataRID returns the RID of the record the cursor currently sits on.
func (l *Leaf) DataRID() types.RID {
	return l.contents.DataRID(l.currentSlot)
}

// Delete removes the single leaf record (key, rid) this leaf was opened
// with a point range for.
func (l *Leaf) Delete(rid types.RID) error {
	for {
		ok, err := l.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if l.DataRID().Equals(rid) {
			l.contents.Delete(l.currentSlot)
			return nil
		}
	}
}

// Insert adds (key, rid) to this leaf, splitting or growing an overflow
// block as needed, and returns a DirEntry for the parent directory if the
// insert caused a split (nil otherwise).
func (l *Leaf) Insert(key types.Constant, rid types.RID) (*DirEntry, error) {
	if l.contents.Flag0() >= 0 && l.contents.NumRecs() > 0 && l.contents.DataVal(0).CompareTo(key) > 0 {
		// This block is an overflow-holding group whose smallest key is
		// larger than the key being inserted: carve the whole existing
		// group out to a new block (preserving its overflow chain and
		// sibling pointer) and turn this block into a fresh singleton
		// holding just the new, smaller key.
		firstVal := l.contents.DataVal(0)
		oldFlag0 := l.contents.Flag0()
		oldFlag1 := l.contents.Flag1()

		newBlock, err := l.contents.Split(0, oldFlag0, oldFlag1)
		if err != nil {
			return nil, err
		}

		l.currentSlot = 0
		l.contents.SetFlag0(-1)
		l.contents.SetFlag1(newBlock.Number())
		l.contents.InsertLeaf(0, key, rid)

		return &DirEntry{Key: firstVal, BlockNum: newBlock.Number()}, nil
	}

	l.currentSlot++
	l.contents.InsertLeaf(l.currentSlot, key, rid)
	if !l.contents.IsFull() {
		return nil, nil
	}

	firstKey := l.contents.DataVal(0)
	lastKey := l.contents.DataVal(l.contents.NumRecs() - 1)

	if lastKey.Equals(firstKey) {
		// Every record in the page shares one key: grow the overflow
		// chain instead of splitting on a key boundary that doesn't
		// exist.
		oldFlag0 := l.contents.Flag0()
		newBlock, err := l.contents.Split(1, oldFlag0, -1)
		if err != nil {
			return nil, err
		}
		l.contents.SetFlag0(newBlock.Number())
		return nil, nil
	}

	splitPos := l.contents.NumRecs() / 2
	splitKey := l.contents.DataVal(splitPos)
	if splitKey.Equals(firstKey) {
		for splitPos < l.contents.NumRecs() && l.contents.DataVal(splitPos).Equals(splitKey) {
			splitPos++
		}
		splitKey = l.contents.DataVal(splitPos)
	} else {
		for splitPos > 0 && l.contents.DataVal(splitPos-1).Equals(splitKey) {
			splitPos--
		}
	}

	oldFlag1 := l.contents.Flag1()
	newBlock, err := l.contents.Split(splitPos, -1, oldFlag1)
	if err != nil {
		return nil, err
	}
	l.contents.SetFlag1(newBlock.Number())

	return &DirEntry{Key: splitKey, BlockNum: newBlock.Number()}, nil
}
