// Package types holds the typed-value system shared by the record, index
// and B-tree layers: Constant (a tagged value), ConstantRange (an interval
// over one type), RID (a record identifier) and, via file.BlockID, the
// block identifier they are built from.
package types

import (
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// FieldType distinguishes the two value kinds a Constant can hold.
type FieldType int

const (
	Integer FieldType = iota
	Varchar
)

// Constant is a tagged value: either an integer or a string. Exactly one of
// the two internal fields is set.
type Constant struct {
	iVal *int64
	sVal *string
}

// NewConstantInt wraps an integer value.
func NewConstantInt(v int64) Constant {
	return Constant{iVal: &v}
}

// NewConstantString wraps a string value.
func NewConstantString(v string) Constant {
	return Constant{sVal: &v}
}

// MinValue returns the sentinel strictly below every legal value of t, used
// as the leftmost directory entry's key (spec.md §3).
func MinValue(t FieldType) Constant {
	if t == Integer {
		return NewConstantInt(math.MinInt64)
	}
	return NewConstantString("")
}

// Type reports which kind of value this Constant holds.
func (c Constant) Type() FieldType {
	if c.iVal != nil {
		return Integer
	}
	return Varchar
}

func (c Constant) AsInt() int64 {
	if c.iVal == nil {
		return 0
	}
	return *c.iVal
}

func (c Constant) AsString() string {
	if c.sVal == nil {
		return ""
	}
	return *c.sVal
}

// Equals reports value equality.
func (c Constant) Equals(other Constant) bool {
	if c.iVal != nil && other.iVal != nil {
		return *c.iVal == *other.iVal
	}
	if c.sVal != nil && other.sVal != nil {
		return *c.sVal == *other.sVal
	}
	return false
}

// CompareTo returns -1, 0 or 1 per the total order over this Constant's
// type. Comparing across types panics: the schema guarantees a single
// field never mixes Constant kinds.
func (c Constant) CompareTo(other Constant) int {
	if c.iVal != nil && other.iVal != nil {
		switch {
		case *c.iVal < *other.iVal:
			return -1
		case *c.iVal > *other.iVal:
			return 1
		default:
			return 0
		}
	}
	if c.sVal != nil && other.sVal != nil {
		return strings.Compare(*c.sVal, *other.sVal)
	}
	panic("cannot compare constants of different types")
}

// HashCode hashes the constant with FNV-1a, normalizing string values to
// NFKC first so that equal-looking strings with different Unicode
// representations hash identically.
func (c Constant) HashCode() uint64 {
	h := fnv.New64a()
	if c.iVal != nil {
		fmt.Fprintf(h, "%d", *c.iVal)
	} else if c.sVal != nil {
		h.Write([]byte(norm.NFKC.String(*c.sVal)))
	}
	return h.Sum64()
}

func (c Constant) String() string {
	if c.iVal != nil {
		return fmt.Sprintf("%d", *c.iVal)
	}
	return c.AsString()
}

// SerializedSize returns the fixed on-disk width of a Constant of type t,
// given the schema's declared string length for varchar fields (spec.md
// §3: "a fixed on-disk serialized size per type").
func SerializedSize(t FieldType, declaredStrLen int) int {
	if t == Integer {
		return 8
	}
	return 4 + declaredStrLen
}
