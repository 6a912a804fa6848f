// Package column describes a table's schema: the ordered list of
// typed columns used to lay out and serialize one row (spec §3).
package column

import "github.com/pkg/errors"

// Type identifies the wire representation of a column's values.
type Type int

const (
	Int32 Type = iota
	Uint64
	Varchar
)

func (t Type) String() string {
	switch t {
	case Int32:
		return "int32"
	case Uint64:
		return "uint64"
	case Varchar:
		return "varchar"
	default:
		return "unknown"
	}
}

// MaxVarcharLen is the largest varchar(n) this engine accepts
// (spec §3: "varchar(n), n <= 255").
const MaxVarcharLen = 255

// Column is one field of a table schema, as given by the caller
// before byte offsets are computed.
type Column struct {
	Name    string
	Type    Type
	MaxLen  uint32 // required, and <= MaxVarcharLen, for Varchar columns
}

// Schema is the ordered list of a table's columns.
type Schema []Column

// Field is a Column annotated with its computed byte layout within a
// serialized row.
type Field struct {
	Column
	Offset   uint32
	ByteSize uint32
}

// Layout is a schema's resolved on-disk row layout.
type Layout struct {
	Fields  []Field
	RowSize uint32
}

// Resolve validates schema and computes each column's byte offset and
// the total row size.
func Resolve(schema Schema) (*Layout, error) {
	if len(schema) == 0 {
		return nil, errors.New("column: schema must have at least one column")
	}
	fields := make([]Field, len(schema))
	var offset uint32
	for i, col := range schema {
		var size uint32
		switch col.Type {
		case Int32:
			size = 4
		case Uint64:
			size = 8
		case Varchar:
			if col.MaxLen == 0 || col.MaxLen > MaxVarcharLen {
				return nil, errors.Errorf("column: varchar column %q must have 0 < MaxLen <= %d, got %d", col.Name, MaxVarcharLen, col.MaxLen)
			}
			size = col.MaxLen
		default:
			return nil, errors.Errorf("column: unsupported type for column %q", col.Name)
		}
		fields[i] = Field{Column: col, Offset: offset, ByteSize: size}
		offset += size
	}
	return &Layout{Fields: fields, RowSize: offset}, nil
}
