package record

import "cairndb/internal/dbcore/types"

// Layout computes the byte offset of each field within a fixed-size
// record slot. Unlike the teacher's layout.go, which sizes integer fields
// with unsafe.Sizeof(int(0)) (platform-dependent, and wrong the moment the
// file is read back on a different architecture), every integer field
// here is a fixed 8 bytes, matching types.SerializedSize and
// file.Page.GetInt64/SetInt64.
type Layout struct {
	schema   *Schema
	offsets  map[string]int
	slotSize int
}

// NewLayout computes offsets for schema's fields, reserving the leading
// 8 bytes of each slot for the in-use flag.
func NewLayout(schema *Schema) *Layout {
	offsets := make(map[string]int)
	pos := 8 // in-use flag

	for _, fieldName := range schema.Fields() {
		offsets[fieldName] = pos
		pos += fieldWidth(schema, fieldName)
	}

	return &Layout{schema: schema, offsets: offsets, slotSize: pos}
}

// NewLayoutWithOffsets rebuilds a Layout from previously computed offsets
// (e.g. loaded from a catalog rather than recomputed from the schema).
func NewLayoutWithOffsets(schema *Schema, offsets map[string]int, slotSize int) *Layout {
	return &Layout{schema: schema, offsets: offsets, slotSize: slotSize}
}

func (l *Layout) Schema() *Schema {
	return l.schema
}

// Offset returns the byte offset of fieldName within a slot, or -1 if the
// field does not exist.
func (l *Layout) Offset(fieldName string) int {
	off, ok := l.offsets[fieldName]
	if !ok {
		return -1
	}
	return off
}

func (l *Layout) SlotSize() int {
	return l.slotSize
}

func fieldWidth(schema *Schema, fieldName string) int {
	return types.SerializedSize(schema.Type(fieldName), schema.Length(fieldName))
}
