package types

import (
	"fmt"

	"cairndb/internal/dbcore/file"
)

// RID identifies a row of a data file: the block it lives in plus its slot
// number within that block.
type RID struct {
	block file.BlockID
	slot  int64
}

// NewRID builds an RID from its data block and slot number.
func NewRID(block file.BlockID, slot int64) RID {
	return RID{block: block, slot: slot}
}

func (r RID) Block() file.BlockID {
	return r.block
}

func (r RID) BlockNumber() int64 {
	return r.block.Number()
}

func (r RID) Slot() int64 {
	return r.slot
}

func (r RID) Equals(other RID) bool {
	return r.block == other.block && r.slot == other.slot
}

func (r RID) String() string {
	return fmt.Sprintf("[%s, slot %d]", r.block, r.slot)
}
