// Package page implements the fixed 4096-byte slotted node used by
// the B+tree: a header, a cell-pointer array growing downward from
// the header, and a cell content area growing upward from the end of
// the page. See spec §3 and §4.2.
package page

import (
	"encoding/binary"
	"sort"

	"github.com/pkg/errors"

	"vqlite/internal/cell"
)

// Size is the fixed on-disk page size.
const Size = 4096

// Kind identifies whether a page is a leaf or an interior node.
type Kind uint8

const (
	Leaf     Kind = 0x0d
	Interior Kind = 0x05
)

func (k Kind) String() string {
	switch k {
	case Leaf:
		return "leaf"
	case Interior:
		return "interior"
	default:
		return "unknown"
	}
}

// InvalidPageNum is the sentinel meaning "no child"; it doubles as
// TableMaxPages (spec §9's "quirk worth calling out").
const InvalidPageNum = 100

const (
	headerSize        = 12
	offType           = 0
	offFirstFreeBlock = 1
	offNumCells       = 3
	offCellsStart     = 5
	offFragFreeBytes  = 7
	offRightPointer   = 8
)

// Errors surfaced by Page operations.
var (
	ErrCorrupt      = errors.New("page: corrupt")
	ErrDuplicateKey = errors.New("page: duplicate key")
	ErrPageFull     = errors.New("page: full")
	ErrKeyMismatch  = errors.New("page: key mismatch")
	ErrSizeMismatch = errors.New("page: size mismatch")
	ErrEmpty        = errors.New("page: empty")
	ErrBadHeader    = errors.New("page: bad header")
)

// Page is one 4096-byte slotted node.
type Page struct {
	kind         Kind
	numCells     uint16
	cellsStart   uint16 // lowest occupied byte offset, or Size if empty
	rightPointer uint32
	// ptrs holds, in ascending-key order, the absolute byte offset of
	// each cell within buf.
	ptrs []uint16
	buf  [Size]byte
}

// New builds an empty page of the given kind.
func New(kind Kind) *Page {
	p := &Page{
		kind:         kind,
		numCells:     0,
		cellsStart:   Size,
		rightPointer: InvalidPageNum,
	}
	return p
}

// Load parses a 4096-byte image into a Page.
func Load(buf []byte) (*Page, error) {
	if len(buf) != Size {
		return nil, errors.Wrapf(ErrBadHeader, "load: buffer is %d bytes, want %d", len(buf), Size)
	}
	k := Kind(buf[offType])
	if k != Leaf && k != Interior {
		return nil, errors.Wrapf(ErrBadHeader, "load: unknown page type tag 0x%02x", buf[offType])
	}
	p := &Page{kind: k}
	p.numCells = binary.BigEndian.Uint16(buf[offNumCells : offNumCells+2])
	p.cellsStart = binary.BigEndian.Uint16(buf[offCellsStart : offCellsStart+2])
	p.rightPointer = binary.BigEndian.Uint32(buf[offRightPointer : offRightPointer+4])
	copy(p.buf[:], buf)

	if int(p.cellsStart) > Size || int(p.cellsStart) < headerSize+2*int(p.numCells) {
		return nil, errors.Wrapf(ErrBadHeader, "load: cells_start %d inconsistent with num_cells %d", p.cellsStart, p.numCells)
	}

	p.ptrs = make([]uint16, p.numCells)
	off := headerSize
	for i := 0; i < int(p.numCells); i++ {
		ptr := binary.LittleEndian.Uint16(buf[off : off+2])
		if int(ptr) >= Size || int(ptr) < headerSize+2*int(p.numCells) {
			return nil, errors.Wrapf(ErrCorrupt, "load: cell pointer %d (%d) out of range", i, ptr)
		}
		p.ptrs[i] = ptr
		off += 2
	}
	return p, nil
}

// Dump returns the canonical 4096-byte on-disk image of the page.
func (p *Page) Dump() [Size]byte {
	var out [Size]byte
	out[offType] = byte(p.kind)
	out[offFirstFreeBlock] = 0
	binary.BigEndian.PutUint16(out[offNumCells:offNumCells+2], p.numCells)
	binary.BigEndian.PutUint16(out[offCellsStart:offCellsStart+2], p.cellsStart)
	out[offFragFreeBytes] = 0
	binary.BigEndian.PutUint32(out[offRightPointer:offRightPointer+4], p.rightPointer)

	off := headerSize
	for _, ptr := range p.ptrs {
		binary.LittleEndian.PutUint16(out[off:off+2], ptr)
		off += 2
	}
	copy(out[p.cellsStart:], p.buf[p.cellsStart:])
	return out
}

// Kind reports whether this page is a leaf or interior node.
func (p *Page) Kind() Kind { return p.kind }

// NumCells returns the number of cells currently stored.
func (p *Page) NumCells() int { return int(p.numCells) }

// RightPointer returns the page's right_pointer field.
func (p *Page) RightPointer() uint32 { return p.rightPointer }

// SetRightPointer overwrites the right_pointer field directly.
func (p *Page) SetRightPointer(pageNum uint32) { p.rightPointer = pageNum }

func (p *Page) cellAt(idx int) (cell.Cell, error) {
	off := p.ptrs[idx]
	c, err := cell.Decode(p.buf[off:])
	if err != nil {
		return cell.Cell{}, errors.Wrapf(ErrCorrupt, "cell at pointer index %d: %v", idx, err)
	}
	return c, nil
}

// FirstKey returns the key of the lowest-ordered cell.
func (p *Page) FirstKey() (uint64, error) {
	if p.numCells == 0 {
		return 0, ErrEmpty
	}
	c, err := p.cellAt(0)
	if err != nil {
		return 0, err
	}
	return c.Key, nil
}

// LastKey returns the key of the highest-ordered cell.
func (p *Page) LastKey() (uint64, error) {
	if p.numCells == 0 {
		return 0, ErrEmpty
	}
	c, err := p.cellAt(int(p.numCells) - 1)
	if err != nil {
		return 0, err
	}
	return c.Key, nil
}

// MaxKey is a convenience wrapper around LastKey used by the pager
// when computing routing keys for a freshly split page.
func (p *Page) MaxKey() (uint64, error) { return p.LastKey() }

// FindPartition binary-searches the cell-pointer array for the lowest
// index whose key is >= key. If every key is smaller, it returns
// (NumCells(), 0, false). Otherwise it returns (index, keyAtIndex,
// true) and the caller can compare keyAtIndex with key for equality.
func (p *Page) FindPartition(key uint64) (index int, existingKey uint64, found bool) {
	n := int(p.numCells)
	i := sort.Search(n, func(i int) bool {
		k, err := cell.PeekKey(p.buf[p.ptrs[i]:])
		if err != nil {
			// Corrupt pointer sorts last; Load would already have
			// rejected this page, so this path is unreachable in
			// practice.
			return false
		}
		return k >= key
	})
	if i == n {
		return n, 0, false
	}
	k, err := cell.PeekKey(p.buf[p.ptrs[i]:])
	if err != nil {
		return i, 0, false
	}
	return i, k, true
}

// Route returns the child page number to descend into for key. Valid
// only on interior pages.
func (p *Page) Route(key uint64) (uint32, error) {
	if p.kind != Interior {
		return 0, errors.Wrap(ErrCorrupt, "route: called on a leaf page")
	}
	idx, _, found := p.FindPartition(key)
	if !found {
		return p.rightPointer, nil
	}
	c, err := p.cellAt(idx)
	if err != nil {
		return 0, err
	}
	return c.LeftChild, nil
}

// Insert places a new cell into the page, keeping the cell-pointer
// array sorted by key. See spec §4.2 for the full algorithm.
func (p *Page) Insert(key uint64, payload []byte, leftChild uint32) error {
	idx, existing, found := p.FindPartition(key)
	if found && existing == key {
		return errors.Wrapf(ErrDuplicateKey, "key %d", key)
	}

	size := cell.Size(len(payload))
	if int(p.cellsStart)-size < headerSize+2*(int(p.numCells)+1) {
		return ErrPageFull
	}

	newStart := int(p.cellsStart) - size
	copy(p.buf[newStart:], cell.Encode(key, payload, leftChild))

	p.ptrs = append(p.ptrs, 0)
	copy(p.ptrs[idx+1:], p.ptrs[idx:])
	p.ptrs[idx] = uint16(newStart)

	p.cellsStart = uint16(newStart)
	p.numCells++
	return nil
}

// Delete removes the cell referenced by cell-pointer index.
func (p *Page) Delete(index int) error {
	if index < 0 || index >= int(p.numCells) {
		return errors.Errorf("page: delete: index %d out of range [0,%d)", index, p.numCells)
	}
	p.ptrs = append(p.ptrs[:index], p.ptrs[index+1:]...)
	p.numCells--

	if p.numCells == 0 {
		p.cellsStart = Size
		return nil
	}
	lowest := p.ptrs[0]
	for _, off := range p.ptrs[1:] {
		if off < lowest {
			lowest = off
		}
	}
	p.cellsStart = lowest
	return nil
}

// UpdateSameSize overwrites the cell at cell-pointer index in place.
// The existing cell's key and payload length must be unchanged.
func (p *Page) UpdateSameSize(index int, key uint64, payload []byte, leftChild uint32) error {
	if index < 0 || index >= int(p.numCells) {
		return errors.Errorf("page: update: index %d out of range [0,%d)", index, p.numCells)
	}
	existing, err := p.cellAt(index)
	if err != nil {
		return err
	}
	if existing.Key != key {
		return errors.Wrapf(ErrKeyMismatch, "existing key %d, new key %d", existing.Key, key)
	}
	if len(existing.Payload) != len(payload) {
		return errors.Wrapf(ErrSizeMismatch, "existing payload %d bytes, new payload %d bytes", len(existing.Payload), len(payload))
	}
	off := p.ptrs[index]
	copy(p.buf[off:], cell.Encode(key, payload, leftChild))
	return nil
}

// MoveLastLeftChildToRightPointer moves the last cell's left_child
// into right_pointer and deletes that cell. Interior pages only; used
// after a split so the subtree holding the maximum key is addressed
// by right_pointer rather than by a trailing cell (spec §4.2).
func (p *Page) MoveLastLeftChildToRightPointer() error {
	if p.kind != Interior {
		return errors.Wrap(ErrCorrupt, "move last left child: called on a leaf page")
	}
	if p.numCells == 0 {
		return ErrEmpty
	}
	last, err := p.cellAt(int(p.numCells) - 1)
	if err != nil {
		return err
	}
	p.rightPointer = last.LeftChild
	return p.Delete(int(p.numCells) - 1)
}

// Split consumes the page's cells and distributes them across two
// freshly allocated pages of the same kind: the first ceil(n/2) cells
// go to left, the remainder to right. right inherits the original
// right_pointer; left's right_pointer is left at InvalidPageNum for
// leaves (the caller fixes it up for interior pages via
// MoveLastLeftChildToRightPointer).
func (p *Page) Split() (left, right *Page, err error) {
	n := int(p.numCells)
	if n == 0 {
		return nil, nil, ErrEmpty
	}
	cells := make([]cell.Cell, n)
	for i := 0; i < n; i++ {
		c, err := p.cellAt(i)
		if err != nil {
			return nil, nil, err
		}
		cells[i] = c
	}

	mid := (n + 1) / 2
	left = New(p.kind)
	right = New(p.kind)
	right.rightPointer = p.rightPointer

	for _, c := range cells[:mid] {
		if err := left.Insert(c.Key, c.Payload, c.LeftChild); err != nil {
			return nil, nil, errors.Wrap(err, "split: inserting into left page")
		}
	}
	for _, c := range cells[mid:] {
		if err := right.Insert(c.Key, c.Payload, c.LeftChild); err != nil {
			return nil, nil, errors.Wrap(err, "split: inserting into right page")
		}
	}
	return left, right, nil
}

// Cells yields decoded cells in cell-pointer order.
func (p *Page) Cells() ([]cell.Cell, error) {
	out := make([]cell.Cell, p.numCells)
	for i := range out {
		c, err := p.cellAt(i)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// Children yields the left_child of every interior cell followed by
// right_pointer, skipping InvalidPageNum. Interior pages only.
func (p *Page) Children() ([]uint32, error) {
	if p.kind != Interior {
		return nil, errors.Wrap(ErrCorrupt, "children: called on a leaf page")
	}
	cells, err := p.Cells()
	if err != nil {
		return nil, err
	}
	out := make([]uint32, 0, len(cells)+1)
	for _, c := range cells {
		if c.LeftChild != InvalidPageNum {
			out = append(out, c.LeftChild)
		}
	}
	if p.rightPointer != InvalidPageNum {
		out = append(out, p.rightPointer)
	}
	return out, nil
}

// Rows yields decoded record payloads from a leaf page. Leaf pages
// only.
func (p *Page) Rows() ([][]byte, error) {
	if p.kind != Leaf {
		return nil, errors.Wrap(ErrCorrupt, "rows: called on an interior page")
	}
	cells, err := p.Cells()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(cells))
	for i, c := range cells {
		out[i] = c.Payload
	}
	return out, nil
}
