package cell

import (
	"bytes"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name      string
		key       uint64
		payload   []byte
		leftChild uint32
	}{
		{"empty payload", 0, nil, 0},
		{"interior routing entry", 42, nil, 7},
		{"short text payload", 1, []byte("alice"), InvalidPageNum},
		{"max rowid", ^uint64(0), []byte("z"), 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf := Encode(tc.key, tc.payload, tc.leftChild)
			if len(buf) != Size(len(tc.payload)) {
				t.Fatalf("encoded length = %d, want %d", len(buf), Size(len(tc.payload)))
			}
			got, err := Decode(buf)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got.Key != tc.key {
				t.Errorf("Key = %d, want %d", got.Key, tc.key)
			}
			if !bytes.Equal(got.Payload, tc.payload) && !(len(got.Payload) == 0 && len(tc.payload) == 0) {
				t.Errorf("Payload = %q, want %q", got.Payload, tc.payload)
			}
			if got.LeftChild != tc.leftChild {
				t.Errorf("LeftChild = %d, want %d", got.LeftChild, tc.leftChild)
			}
		})
	}
}

func TestDecodeRejectsShortBuffer(t *testing.T) {
	if _, err := Decode(make([]byte, 13)); err == nil {
		t.Fatal("expected error decoding a 13-byte buffer")
	}
}

func TestPeekKeyMatchesDecode(t *testing.T) {
	buf := Encode(12345, []byte("hello"), 9)
	got, err := PeekKey(buf)
	if err != nil {
		t.Fatalf("PeekKey: %v", err)
	}
	if got != 12345 {
		t.Errorf("PeekKey = %d, want 12345", got)
	}
}

// InvalidPageNum mirrors page.InvalidPageNum without importing page,
// which would create an import cycle; cell is a leaf package.
const InvalidPageNum = 100
