// Package record describes the physical layout of fixed-format records:
// which fields exist, their types, and their byte offsets within a slot.
// The B-tree layer (internal/dbcore/btree) uses two Schemas per index: a
// leaf schema (search key, the RID's data file name, block number and
// slot) and a directory schema (search key and child block number).
package record

import "cairndb/internal/dbcore/types"

// FieldInfo describes one field of a Schema.
type FieldInfo struct {
	Type   types.FieldType
	Length int // declared string length; meaningless for Integer fields
}

// Schema holds the name, type and (for varchar fields) declared length of
// every field in a record, in declaration order.
type Schema struct {
	fields []string
	info   map[string]FieldInfo
}

// NewSchema returns an empty schema.
func NewSchema() *Schema {
	return &Schema{info: make(map[string]FieldInfo)}
}

// AddField adds a field of the given type and (declared, varchar-only)
// length.
func (s *Schema) AddField(fieldName string, t types.FieldType, length int) {
	s.fields = append(s.fields, fieldName)
	s.info[fieldName] = FieldInfo{Type: t, Length: length}
}

// AddIntField adds an integer field.
func (s *Schema) AddIntField(fieldName string) {
	s.AddField(fieldName, types.Integer, 0)
}

// AddStringField adds a varchar field with the given declared length.
func (s *Schema) AddStringField(fieldName string, length int) {
	s.AddField(fieldName, types.Varchar, length)
}

// Fields returns the field names in declaration order.
func (s *Schema) Fields() []string {
	return s.fields
}

// HasField reports whether fieldName exists in the schema.
func (s *Schema) HasField(fieldName string) bool {
	_, ok := s.info[fieldName]
	return ok
}

// Type returns the type of fieldName.
func (s *Schema) Type(fieldName string) types.FieldType {
	return s.info[fieldName].Type
}

// Length returns the declared string length of fieldName (meaningless for
// integer fields).
func (s *Schema) Length(fieldName string) int {
	return s.info[fieldName].Length
}
