package column

import (
	"encoding/binary"
	"strings"

	"github.com/pkg/errors"
)

// Row is one record's typed values, column order matching its
// Layout. Values are int32, uint64, or string (for Varchar columns).
type Row []interface{}

// Encode serializes row into a freshly allocated byte string per
// Layout's offsets (spec §3: "the record is serialized as one opaque
// byte string").
func Encode(layout *Layout, row Row) ([]byte, error) {
	if len(row) != len(layout.Fields) {
		return nil, errors.Errorf("column: row has %d values, schema has %d columns", len(row), len(layout.Fields))
	}
	buf := make([]byte, layout.RowSize)
	for i, f := range layout.Fields {
		dst := buf[f.Offset : f.Offset+f.ByteSize]
		switch f.Type {
		case Int32:
			v, ok := row[i].(int32)
			if !ok {
				return nil, errors.Errorf("column: column %q expects int32, got %T", f.Name, row[i])
			}
			binary.BigEndian.PutUint32(dst, uint32(v))

		case Uint64:
			v, ok := row[i].(uint64)
			if !ok {
				return nil, errors.Errorf("column: column %q expects uint64, got %T", f.Name, row[i])
			}
			binary.BigEndian.PutUint64(dst, v)

		case Varchar:
			s, ok := row[i].(string)
			if !ok {
				return nil, errors.Errorf("column: column %q expects string, got %T", f.Name, row[i])
			}
			if uint32(len(s)) > f.MaxLen {
				return nil, errors.Errorf("column: column %q value is %d bytes, exceeds varchar(%d)", f.Name, len(s), f.MaxLen)
			}
			copy(dst, s)
		}
	}
	return buf, nil
}

// Decode parses a byte string produced by Encode back into a Row.
func Decode(layout *Layout, buf []byte) (Row, error) {
	if uint32(len(buf)) != layout.RowSize {
		return nil, errors.Errorf("column: row buffer is %d bytes, schema row size is %d", len(buf), layout.RowSize)
	}
	row := make(Row, len(layout.Fields))
	for i, f := range layout.Fields {
		src := buf[f.Offset : f.Offset+f.ByteSize]
		switch f.Type {
		case Int32:
			row[i] = int32(binary.BigEndian.Uint32(src))
		case Uint64:
			row[i] = binary.BigEndian.Uint64(src)
		case Varchar:
			row[i] = strings.TrimRight(string(src), "\x00")
		}
	}
	return row, nil
}
