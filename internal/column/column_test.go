package column

import "testing"

func TestResolveComputesOffsetsAndRowSize(t *testing.T) {
	schema := Schema{
		{Name: "id", Type: Uint64},
		{Name: "age", Type: Int32},
		{Name: "name", Type: Varchar, MaxLen: 16},
	}
	layout, err := Resolve(schema)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := []struct {
		offset, size uint32
	}{
		{0, 8},
		{8, 4},
		{12, 16},
	}
	for i, w := range want {
		if layout.Fields[i].Offset != w.offset || layout.Fields[i].ByteSize != w.size {
			t.Fatalf("field %d = {offset:%d size:%d}, want {offset:%d size:%d}",
				i, layout.Fields[i].Offset, layout.Fields[i].ByteSize, w.offset, w.size)
		}
	}
	if layout.RowSize != 28 {
		t.Fatalf("RowSize = %d, want 28", layout.RowSize)
	}
}

func TestResolveRejectsEmptySchema(t *testing.T) {
	if _, err := Resolve(nil); err == nil {
		t.Fatal("expected an error resolving an empty schema")
	}
}

func TestResolveRejectsOversizeVarchar(t *testing.T) {
	schema := Schema{{Name: "bio", Type: Varchar, MaxLen: MaxVarcharLen + 1}}
	if _, err := Resolve(schema); err == nil {
		t.Fatal("expected an error resolving a varchar column past MaxVarcharLen")
	}
}

func TestResolveRejectsZeroLengthVarchar(t *testing.T) {
	schema := Schema{{Name: "bio", Type: Varchar, MaxLen: 0}}
	if _, err := Resolve(schema); err == nil {
		t.Fatal("expected an error resolving a zero-length varchar column")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	schema := Schema{
		{Name: "id", Type: Uint64},
		{Name: "age", Type: Int32},
		{Name: "name", Type: Varchar, MaxLen: 16},
	}
	layout, err := Resolve(schema)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	in := Row{uint64(42), int32(-7), "ada"}
	buf, err := Encode(layout, in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if uint32(len(buf)) != layout.RowSize {
		t.Fatalf("len(buf) = %d, want %d", len(buf), layout.RowSize)
	}
	out, err := Decode(layout, buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out[0] != in[0] || out[1] != in[1] || out[2] != in[2] {
		t.Fatalf("Decode = %v, want %v", out, in)
	}
}

func TestEncodeRejectsValueTooLongForVarchar(t *testing.T) {
	schema := Schema{{Name: "name", Type: Varchar, MaxLen: 4}}
	layout, err := Resolve(schema)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, err := Encode(layout, Row{"toolong"}); err == nil {
		t.Fatal("expected an error encoding a value longer than MaxLen")
	}
}

func TestEncodeRejectsWrongColumnCount(t *testing.T) {
	schema := Schema{{Name: "id", Type: Uint64}}
	layout, err := Resolve(schema)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, err := Encode(layout, Row{uint64(1), int32(2)}); err == nil {
		t.Fatal("expected an error encoding a row with the wrong column count")
	}
}

func TestEncodeRejectsTypeMismatch(t *testing.T) {
	schema := Schema{{Name: "id", Type: Uint64}}
	layout, err := Resolve(schema)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, err := Encode(layout, Row{int32(1)}); err == nil {
		t.Fatal("expected an error encoding a uint64 column with an int32 value")
	}
}
