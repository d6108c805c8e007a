package btree

import "cairndb/internal/dbcore/types"

// DirEntry is the record a leaf or directory split propagates to its
// parent: the key that now separates the old block from the new one, and
// the new block's number.
type DirEntry struct {
	Key      types.Constant
	BlockNum int64
}
