package log

import (
	"fmt"

	"cairndb/internal/dbcore/file"
)

// LogIterator walks the log newest-record-first, the order the recovery
// collaborator needs for undo-style scans.
type LogIterator struct {
	fm           *file.FileManager
	currentBlock file.BlockID
	page         *file.Page
	currentPos   int
	boundary     int
}

func newLogIterator(fm *file.FileManager, blk file.BlockID) (*LogIterator, error) {
	it := &LogIterator{
		fm:           fm,
		currentBlock: blk,
		page:         file.NewPage(fm.BlockSize()),
	}
	if err := fm.Read(blk, it.page); err != nil {
		return nil, fmt.Errorf("error reading block %v: %w", blk, err)
	}
	it.boundary = int(it.page.GetInt(0))
	it.currentPos = it.boundary
	return it, nil
}

// HasNext reports whether there is another (older) record to read.
func (it *LogIterator) HasNext() bool {
	return it.currentPos < it.fm.BlockSize() || it.currentBlock.Number() > 0
}

// Next returns the next (older) record's raw bytes.
func (it *LogIterator) Next() ([]byte, error) {
	if it.currentPos == it.fm.BlockSize() {
		blk := file.NewBlockID(it.currentBlock.FileName(), it.currentBlock.Number()-1)
		if err := it.moveToBlock(blk); err != nil {
			return nil, err
		}
	}
	rec := it.page.GetBytes(it.currentPos)
	it.currentPos += 4 + len(rec)
	return rec, nil
}

func (it *LogIterator) moveToBlock(blk file.BlockID) error {
	if err := it.fm.Read(blk, it.page); err != nil {
		return fmt.Errorf("error reading block %v: %w", blk, err)
	}
	it.currentBlock = blk
	it.boundary = int(it.page.GetInt(0))
	it.currentPos = it.boundary
	return nil
}
