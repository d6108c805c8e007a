package btree

import (
	"cairndb/internal/dbcore/file"
	"cairndb/internal/dbcore/record"
	"cairndb/internal/dbcore/tx"
	"cairndb/internal/dbcore/types"
)

// Dir is a B-tree directory (non-leaf) block (C6). Like the teacher's
// btreeDir.go, flag0 holds the block's level (0 = just above the leaf
// level, >0 = an internal level); flag1 is unused at this layer and
// always -1 (it only carries meaning for Leaf, which reuses the same
// page header for its overflow/sibling pointers).
//
// Dir separates locking by purpose, which the teacher's directory never
// locks at all:
//   - Search (a pure read, used both for lookups and as the first half of
//     a delete) lock-couples: it pins the child block before releasing
//     the parent, then drops the parent's lock immediately, so a scan
//     never holds more than two directory blocks locked at once.
//   - Insert is pessimistic: every directory page on the path from the
//     root down is opened with an exclusive lock and held for the
//     duration of the recursive call, because a leaf split can propagate
//     a new entry all the way up and any ancestor might need rewriting.
//     Optimistic crabbing (only the leaf locked until a split is known)
//     is the obvious next refinement, but it requires a second pass when
//     the optimism fails; see DESIGN.md for why the simpler pessimistic
//     scheme was chosen here.
type Dir struct {
	tx       *tx.Transaction
	layout   *record.Layout
	contents *Page
	filename string
}

// NewDir opens block with a shared lock, for a Search (read-purpose)
// descent.
func NewDir(t *tx.Transaction, block file.BlockID, layout *record.Layout) (*Dir, error) {
	contents, err := NewPage(t, block, layout)
	if err != nil {
		return nil, err
	}
	return &Dir{tx: t, layout: layout, contents: contents, filename: block.FileName()}, nil
}

// NewDirExclusive opens block with an exclusive lock, for an Insert
// (pessimistic) descent.
func NewDirExclusive(t *tx.Transaction, block file.BlockID, layout *record.Layout) (*Dir, error) {
	contents, err := NewPageExclusive(t, block, layout)
	if err != nil {
		return nil, err
	}
	return &Dir{tx: t, layout: layout, contents: contents, filename: block.FileName()}, nil
}

// Close releases this directory page.
func (d *Dir) Close() {
	d.contents.Close()
}

// Search descends, lock-coupled, to the leaf block that should contain
// key, releasing each directory ancestor as soon as its child is
// latched.
func (d *Dir) Search(key types.Constant) (int64, error) {
	childBlock, err := d.findChildBlock(key)
	if err != nil {
		return 0, err
	}

	for d.contents.Flag0() > 0 {
		child, err := NewPage(d.tx, childBlock, d.layout)
		if err != nil {
			return 0, err
		}
		parentBlock := d.contents.Block()
		d.contents.Close()
		d.tx.ReleaseBlock(parentBlock)
		d.contents = child

		childBlock, err = d.findChildBlock(key)
		if err != nil {
			return 0, err
		}
	}

	return childBlock.Number(), nil
}

// MakeNewRoot splits the current (root) block's contents into a fresh
// block and inserts both it and e as the new root's two children,
// raising the root's level by one. The root always stays at block 0, so
// when it splits, its own contents — not the new entry — are the ones
// that move.
func (d *Dir) MakeNewRoot(e *DirEntry) error {
	firstVal := d.contents.DataVal(0)
	level := d.contents.Flag0()

	newBlock, err := d.contents.Split(0, level, -1)
	if err != nil {
		return err
	}

	oldRoot := &DirEntry{Key: firstVal, BlockNum: newBlock.Number()}
	if _, err := d.insertEntry(oldRoot); err != nil {
		return err
	}
	if _, err := d.insertEntry(e); err != nil {
		return err
	}
	d.contents.SetFlag0(level + 1)
	return nil
}

// Insert adds e to the subtree rooted at this directory, recursing down
// to the level-0 directory above the leaves. It returns a DirEntry for
// the parent if this call caused a split.
func (d *Dir) Insert(e *DirEntry) (*DirEntry, error) {
	if d.contents.Flag0() == 0 {
		return d.insertEntry(e)
	}

	childBlock, err := d.findChildBlock(e.Key)
	if err != nil {
		return nil, err
	}

	child, err := NewDirExclusive(d.tx, childBlock, d.layout)
	if err != nil {
		return nil, err
	}
	myEntry, err := child.Insert(e)
	child.Close()
	if err != nil {
		return nil, err
	}

	if myEntry != nil {
		return d.insertEntry(myEntry)
	}
	return nil, nil
}

func (d *Dir) insertEntry(e *DirEntry) (*DirEntry, error) {
	newSlot := 1 + d.contents.FindSlotBefore(e.Key)
	d.contents.InsertDir(newSlot, e.Key, e.BlockNum)

	if !d.contents.IsFull() {
		return nil, nil
	}

	level := d.contents.Flag0()
	splitPos := d.contents.NumRecs() / 2
	splitVal := d.contents.DataVal(splitPos)

	newBlock, err := d.contents.Split(splitPos, level, -1)
	if err != nil {
		return nil, err
	}

	return &DirEntry{Key: splitVal, BlockNum: newBlock.Number()}, nil
}

func (d *Dir) findChildBlock(key types.Constant) (file.BlockID, error) {
	slot := d.contents.FindSlotBefore(key)
	if slot+1 < d.contents.NumRecs() && d.contents.DataVal(slot+1).Equals(key) {
		slot++
	}
	blockNum := d.contents.ChildNum(slot)
	return file.NewBlockID(d.filename, blockNum), nil
}
