package file

import "fmt"

// BlockID identifies a single fixed-size block within a named file. It is
// the unit of disk I/O and of block-level locking.
type BlockID struct {
	filename    string
	blockNumber int64
}

// NewBlockID returns the BlockID for the given file and block number.
func NewBlockID(filename string, blockNumber int64) BlockID {
	return BlockID{filename: filename, blockNumber: blockNumber}
}

func (b BlockID) FileName() string {
	return b.filename
}

func (b BlockID) Number() int64 {
	return b.blockNumber
}

func (b BlockID) String() string {
	return fmt.Sprintf("[file %s, block %d]", b.filename, b.blockNumber)
}
