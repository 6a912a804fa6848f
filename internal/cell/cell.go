// Package cell implements the on-page encoding of one B+tree entry:
// a leaf record or an interior routing entry.
//
// Layout, big-endian, fixed-width integers (see spec §4.1):
//
//	payload_size : u16
//	key          : u64
//	payload      : bytes[payload_size]
//	left_child   : u32
package cell

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	// HeaderlessPrefixSize is payload_size(2) + key(8), the portion a
	// caller can read without decoding the payload.
	HeaderlessPrefixSize = 2 + 8
	// TrailerSize is the size of the trailing left_child field.
	TrailerSize = 4
	// FixedOverhead is the total non-payload size of a cell.
	FixedOverhead = HeaderlessPrefixSize + TrailerSize
)

// Cell is the decoded form of one on-page entry.
type Cell struct {
	Key       uint64
	Payload   []byte
	LeftChild uint32
}

// Size returns the encoded size of a cell carrying payloadLen bytes.
func Size(payloadLen int) int {
	return FixedOverhead + payloadLen
}

// Encode serializes (key, payload, leftChild) into a freshly allocated
// byte slice of Size(len(payload)) bytes.
func Encode(key uint64, payload []byte, leftChild uint32) []byte {
	buf := make([]byte, Size(len(payload)))
	binary.BigEndian.PutUint16(buf[0:2], uint16(len(payload)))
	binary.BigEndian.PutUint64(buf[2:10], key)
	copy(buf[10:10+len(payload)], payload)
	binary.BigEndian.PutUint32(buf[10+len(payload):], leftChild)
	return buf
}

// Decode parses a cell out of buf. buf may be longer than the cell;
// only the first Size(payloadSize) bytes are consumed.
func Decode(buf []byte) (Cell, error) {
	if len(buf) < FixedOverhead {
		return Cell{}, errors.Errorf("cell: decode: buffer too short (%d bytes, need >= %d)", len(buf), FixedOverhead)
	}
	payloadSize := binary.BigEndian.Uint16(buf[0:2])
	key := binary.BigEndian.Uint64(buf[2:10])
	total := Size(int(payloadSize))
	if len(buf) < total {
		return Cell{}, errors.Errorf("cell: decode: buffer holds %d bytes, cell needs %d", len(buf), total)
	}
	payload := make([]byte, payloadSize)
	copy(payload, buf[10:10+payloadSize])
	leftChild := binary.BigEndian.Uint32(buf[10+payloadSize : total])
	return Cell{Key: key, Payload: payload, LeftChild: leftChild}, nil
}

// PeekKey reads just the key out of the first HeaderlessPrefixSize
// bytes of a cell, without decoding the payload or trailer. Used by
// the page when binary-searching the cell-pointer array.
func PeekKey(buf []byte) (uint64, error) {
	if len(buf) < HeaderlessPrefixSize {
		return 0, errors.Errorf("cell: peek key: buffer too short (%d bytes, need >= %d)", len(buf), HeaderlessPrefixSize)
	}
	return binary.BigEndian.Uint64(buf[2:10]), nil
}
